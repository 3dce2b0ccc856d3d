package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func placedOrder(t *testing.T) (*Order, []Event) {
	t.Helper()
	events, err := PlaceOrder("order-1", []LineItem{{SKU: "DOG-FOOD-5LB", Quantity: 2, UnitPriceCents: 1299}}, time.Now())
	require.NoError(t, err)
	return Replay(events), events
}

func TestPlaceOrder_RejectsInvalidInput(t *testing.T) {
	_, err := PlaceOrder("order-1", nil, time.Now())
	require.ErrorIs(t, err, ErrInvalidOrder)

	_, err = PlaceOrder("order-1", []LineItem{{SKU: "X", Quantity: 0, UnitPriceCents: 100}}, time.Now())
	require.ErrorIs(t, err, ErrInvalidOrder)

	_, err = PlaceOrder("", []LineItem{{SKU: "X", Quantity: 1, UnitPriceCents: 100}}, time.Now())
	require.ErrorIs(t, err, ErrInvalidOrder)
}

func TestPlaceOrder_ProducesPlacedState(t *testing.T) {
	order, events := placedOrder(t)
	require.Len(t, events, 1)
	require.Equal(t, StatusPlaced, order.Status)
	require.Equal(t, int64(1), order.Version)
	require.Equal(t, int64(2598), order.TotalCents())
}

func TestOrder_HappyPathTransitions(t *testing.T) {
	order, events := placedOrder(t)

	step := func(decide func() ([]Event, error)) {
		produced, err := decide()
		require.NoError(t, err)
		events = append(events, produced...)
		order = Replay(events)
	}

	step(order.MarkPaymentRequested)
	require.Equal(t, StatusAwaitingPayment, order.Status)

	step(order.MarkReserved)
	require.Equal(t, StatusAwaitingPayment, order.Status)

	step(order.MarkPaymentAuthorized)
	require.Equal(t, StatusAwaitingFulfillment, order.Status)

	step(order.MarkFulfilled)
	require.Equal(t, StatusFulfilled, order.Status)
	require.True(t, order.Status.Terminal())
}

func TestOrder_InvalidTransitions(t *testing.T) {
	order, _ := placedOrder(t)

	_, err := order.MarkPaymentAuthorized()
	require.ErrorIs(t, err, ErrInvalidStateTransition, "authorization before payment requested")

	_, err = order.MarkFulfilled()
	require.ErrorIs(t, err, ErrInvalidStateTransition, "fulfillment before payment")
}

func TestOrder_MarkPaymentRequestedReplaysAsNoOp(t *testing.T) {
	order, events := placedOrder(t)

	produced, err := order.MarkPaymentRequested()
	require.NoError(t, err)
	order = Replay(append(events, produced...))

	again, err := order.MarkPaymentRequested()
	require.NoError(t, err)
	require.Empty(t, again, "re-issued kickoff appends nothing")
}

func TestOrder_CancelFromAnyNonTerminalState(t *testing.T) {
	order, events := placedOrder(t)

	cancelled, err := order.Cancel("InsufficientStock")
	require.NoError(t, err)
	order = Replay(append(events, cancelled...))
	require.Equal(t, StatusCancelled, order.Status)
	require.Equal(t, "InsufficientStock", order.FailureReason)

	_, err = order.Cancel("again")
	require.ErrorIs(t, err, ErrInvalidStateTransition, "terminal states reject further transitions")
	_, err = order.MarkFulfilled()
	require.ErrorIs(t, err, ErrInvalidStateTransition)
}

func TestReplay_IsDeterministic(t *testing.T) {
	events, err := PlaceOrder("order-1", []LineItem{{SKU: "A", Quantity: 1, UnitPriceCents: 500}}, time.Now())
	require.NoError(t, err)

	incremental := Replay(events)
	for _, decide := range []func() ([]Event, error){
		incremental.MarkPaymentRequested,
	} {
		produced, err := decide()
		require.NoError(t, err)
		events = append(events, produced...)
		incremental = Replay(events)
	}
	produced, err := incremental.MarkPaymentAuthorized()
	require.NoError(t, err)
	events = append(events, produced...)
	incremental = Replay(events)
	produced, err = incremental.MarkFulfilled()
	require.NoError(t, err)
	events = append(events, produced...)
	incremental = Replay(events)

	replayed := Replay(events)
	require.Equal(t, incremental, replayed, "full replay must reproduce incrementally folded state")
	require.Equal(t, int64(len(events)), replayed.Version)
}

func TestUnmarshalEvent_RoundTripsNames(t *testing.T) {
	event, err := UnmarshalEvent(EventOrderCancelled, []byte(`{"reason":"AuthorizationDenied"}`))
	require.NoError(t, err)
	cancelled, ok := event.(OrderCancelled)
	require.True(t, ok)
	require.Equal(t, "AuthorizationDenied", cancelled.Reason)

	_, err = UnmarshalEvent("orders.order.unknown", []byte(`{}`))
	require.Error(t, err)
}
