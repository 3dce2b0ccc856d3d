package application_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sagamemory "github.com/Apurer/go-order-fulfillment/internal/domains/fulfillment/adapters/memory"
	sagamessaging "github.com/Apurer/go-order-fulfillment/internal/domains/fulfillment/adapters/messaging"
	"github.com/Apurer/go-order-fulfillment/internal/domains/fulfillment/adapters/workflows"
	"github.com/Apurer/go-order-fulfillment/internal/domains/fulfillment/application"
	sagadomain "github.com/Apurer/go-order-fulfillment/internal/domains/fulfillment/domain"
	invmemory "github.com/Apurer/go-order-fulfillment/internal/domains/inventory/adapters/memory"
	invmessaging "github.com/Apurer/go-order-fulfillment/internal/domains/inventory/adapters/messaging"
	invapp "github.com/Apurer/go-order-fulfillment/internal/domains/inventory/application"
	invdomain "github.com/Apurer/go-order-fulfillment/internal/domains/inventory/domain"
	ordermessaging "github.com/Apurer/go-order-fulfillment/internal/domains/orders/adapters/messaging"
	orderapp "github.com/Apurer/go-order-fulfillment/internal/domains/orders/application"
	orderdomain "github.com/Apurer/go-order-fulfillment/internal/domains/orders/domain"
	"github.com/Apurer/go-order-fulfillment/internal/domains/payments/adapters/gateway"
	paymemory "github.com/Apurer/go-order-fulfillment/internal/domains/payments/adapters/memory"
	paymessaging "github.com/Apurer/go-order-fulfillment/internal/domains/payments/adapters/messaging"
	payapp "github.com/Apurer/go-order-fulfillment/internal/domains/payments/application"
	paydomain "github.com/Apurer/go-order-fulfillment/internal/domains/payments/domain"
	"github.com/Apurer/go-order-fulfillment/internal/platform/bus"
	busmemory "github.com/Apurer/go-order-fulfillment/internal/platform/bus/memory"
	esmemory "github.com/Apurer/go-order-fulfillment/internal/platform/eventstore/memory"
)

// harness wires all four contexts over the in-process dispatcher, the same
// topology the worker runs in production with the memory adapters swapped in.
type harness struct {
	dispatcher   *bus.Dispatcher
	orders       *orderapp.Service
	inventory    *invapp.Service
	payments     *payapp.Service
	orchestrator *application.Orchestrator
	sagas        *sagamemory.Store
	starter      *workflows.Inline
	now          time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	clock := func() time.Time { return h.now }

	h.orders = orderapp.NewService(esmemory.NewStore(), orderapp.WithClock(clock))
	h.inventory = invapp.NewService(invmemory.NewRepository(), invapp.WithClock(clock))
	h.payments = payapp.NewService(paymemory.NewRepository(),
		gateway.NewStatic(gateway.WithDeclineOver(100_000)), payapp.WithClock(clock))

	h.sagas = sagamemory.NewStore()
	h.orchestrator = application.NewOrchestrator(h.sagas,
		application.WithClock(clock),
		application.WithJoinDeadline(30*time.Second),
		application.WithReservationTTL(15*time.Minute))

	h.dispatcher = bus.NewDispatcher(busmemory.NewInbox(), bus.WithRetryPolicy(0, time.Millisecond))
	ordermessaging.Register(h.dispatcher, h.orders)
	invmessaging.Register(h.dispatcher, h.inventory)
	paymessaging.Register(h.dispatcher, h.payments)
	sagamessaging.Register(h.dispatcher, h.orchestrator)

	h.starter = workflows.NewInline(h.orders, h.dispatcher)
	return h
}

func (h *harness) stock(t *testing.T, sku string, qty int32) {
	t.Helper()
	require.NoError(t, h.inventory.SetStockLevel(context.Background(), sku, qty))
}

func (h *harness) place(t *testing.T, orderID string, items ...orderdomain.LineItem) {
	t.Helper()
	_, err := h.starter.PlaceOrder(context.Background(), orderID, items)
	require.NoError(t, err)
}

func (h *harness) order(t *testing.T, orderID string) *orderdomain.Order {
	t.Helper()
	order, err := h.orders.GetByID(context.Background(), orderID)
	require.NoError(t, err)
	return order
}

func (h *harness) saga(t *testing.T, orderID string) *sagadomain.Instance {
	t.Helper()
	instance, err := h.sagas.Get(context.Background(), orderID)
	require.NoError(t, err)
	return instance
}

func item(sku string, qty int32, price int64) orderdomain.LineItem {
	return orderdomain.LineItem{SKU: sku, Quantity: qty, UnitPriceCents: price}
}

func TestSaga_HappyPath(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.stock(t, "SKU-A", 10)
	h.stock(t, "SKU-B", 10)

	h.place(t, "order-1", item("SKU-A", 2, 1500), item("SKU-B", 1, 4000))

	order := h.order(t, "order-1")
	assert.Equal(t, orderdomain.StatusFulfilled, order.Status)

	instance := h.saga(t, "order-1")
	assert.Equal(t, sagadomain.StatusFulfilled, instance.Status)

	// Both holds firmed up, capacity permanently consumed.
	available, err := h.inventory.Available(ctx, "SKU-A")
	require.NoError(t, err)
	assert.Equal(t, int32(8), available)

	auth, err := h.payments.GetByOrder(ctx, "order-1")
	require.NoError(t, err)
	assert.Equal(t, paydomain.StateCaptured, auth.State)
	assert.Equal(t, int64(7000), auth.CapturedCents)
}

func TestSaga_InsufficientStock(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.stock(t, "SKU-A", 10)
	h.stock(t, "SKU-B", 0)

	h.place(t, "order-1", item("SKU-A", 2, 1500), item("SKU-B", 1, 4000))

	order := h.order(t, "order-1")
	assert.Equal(t, orderdomain.StatusCancelled, order.Status)
	assert.Equal(t, "InsufficientStock", order.FailureReason)

	instance := h.saga(t, "order-1")
	assert.Equal(t, sagadomain.StatusCancelled, instance.Status)

	// The successful hold was compensated.
	available, err := h.inventory.Available(ctx, "SKU-A")
	require.NoError(t, err)
	assert.Equal(t, int32(10), available)

	// The payment hold was voided, not captured.
	auth, err := h.payments.GetByOrder(ctx, "order-1")
	require.NoError(t, err)
	assert.Equal(t, paydomain.StateVoided, auth.State)
}

func TestSaga_AuthorizationDenied(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.stock(t, "SKU-A", 10)

	// Total above the static gateway limit declines.
	h.place(t, "order-1", item("SKU-A", 2, 60_000))

	order := h.order(t, "order-1")
	assert.Equal(t, orderdomain.StatusCancelled, order.Status)
	assert.Equal(t, "InsufficientFunds", order.FailureReason)

	instance := h.saga(t, "order-1")
	assert.Equal(t, sagadomain.StatusCancelled, instance.Status)

	// Capacity returned.
	available, err := h.inventory.Available(ctx, "SKU-A")
	require.NoError(t, err)
	assert.Equal(t, int32(10), available)
}

func TestSaga_ReservationExpiry(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.stock(t, "SKU-A", 10)

	// Hold the order at the join: stock reserved, payment answer withheld by
	// feeding events manually instead of running the full flow.
	instance := sagadomain.NewInstance("order-1",
		[]sagadomain.Item{{SKU: "SKU-A", Qty: 2, UnitPriceCents: 1500}},
		30*time.Second, h.now)
	require.NoError(t, h.sagas.Save(ctx, instance))
	_, err := h.orders.PlaceOrder(ctx, "order-1", []orderdomain.LineItem{item("SKU-A", 2, 1500)})
	require.NoError(t, err)
	_, err = h.orders.MarkPaymentRequested(ctx, "order-1")
	require.NoError(t, err)
	_, err = h.inventory.Hold(ctx, "order-1", "SKU-A", 2, 15*time.Minute)
	require.NoError(t, err)

	// TTL passes, the sweep records expiries and announces them.
	h.now = h.now.Add(16 * time.Minute)
	expired, err := h.inventory.SweepExpired(ctx)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, invdomain.StateExpired, expired[0].State)

	msgs, err := invmessaging.ExpiryMessages(expired)
	require.NoError(t, err)
	require.NoError(t, h.dispatcher.Publish(ctx, msgs...))

	order := h.order(t, "order-1")
	assert.Equal(t, orderdomain.StatusCancelled, order.Status)
	assert.Equal(t, "ReservationExpired", order.FailureReason)

	available, err := h.inventory.Available(ctx, "SKU-A")
	require.NoError(t, err)
	assert.Equal(t, int32(10), available)
}

func TestSaga_JoinDeadlineTimeout(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	// A saga stuck waiting: instance exists, no branch ever answered.
	instance := sagadomain.NewInstance("order-1",
		[]sagadomain.Item{{SKU: "SKU-A", Qty: 1, UnitPriceCents: 1000}},
		30*time.Second, h.now)
	require.NoError(t, h.sagas.Save(ctx, instance))
	_, err := h.orders.PlaceOrder(ctx, "order-1", []orderdomain.LineItem{item("SKU-A", 1, 1000)})
	require.NoError(t, err)

	h.now = h.now.Add(31 * time.Second)
	msgs, err := h.orchestrator.CheckDeadlines(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, msgs)
	require.NoError(t, h.dispatcher.Publish(ctx, msgs...))

	order := h.order(t, "order-1")
	assert.Equal(t, orderdomain.StatusCancelled, order.Status)
	assert.Equal(t, "FulfillmentTimeout", order.FailureReason)

	instance = h.saga(t, "order-1")
	assert.Equal(t, sagadomain.StatusCancelled, instance.Status)

	// A second sweep finds nothing: compensating sagas are not overdue.
	msgs, err = h.orchestrator.CheckDeadlines(ctx)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestSaga_RedeliveredEventsHaveNoEffect(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.stock(t, "SKU-A", 10)

	h.place(t, "order-1", item("SKU-A", 2, 1500))
	require.Equal(t, orderdomain.StatusFulfilled, h.order(t, "order-1").Status)

	// Replay the whole saga input from the top: same message IDs would be
	// deduplicated by the inbox, fresh IDs land on a terminal saga. Neither
	// may change any outcome.
	msg, err := bus.New("inventory.reservation_held", "order-1", map[string]any{
		"orderId": "order-1", "sku": "SKU-A", "qty": 2,
	})
	require.NoError(t, err)
	require.NoError(t, h.dispatcher.Publish(ctx, msg))

	available, err := h.inventory.Available(ctx, "SKU-A")
	require.NoError(t, err)
	assert.Equal(t, int32(8), available, "capacity unchanged")

	auth, err := h.payments.GetByOrder(ctx, "order-1")
	require.NoError(t, err)
	assert.Equal(t, int64(3000), auth.CapturedCents, "captured amount unchanged")
	assert.Equal(t, paydomain.StateCaptured, auth.State)
}

func TestSaga_StartIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.stock(t, "SKU-A", 4)

	h.place(t, "order-1", item("SKU-A", 2, 1500))
	require.Equal(t, orderdomain.StatusFulfilled, h.order(t, "order-1").Status)

	// A replayed OrderPlaced (fresh message ID) must not open a second saga
	// or hold stock again.
	msg, err := bus.New("orders.placed", "order-1", map[string]any{
		"orderId": "order-1",
		"items":   []map[string]any{{"sku": "SKU-A", "quantity": 2, "unitPriceCents": 1500}},
	})
	require.NoError(t, err)
	require.NoError(t, h.dispatcher.Publish(ctx, msg))

	available, err := h.inventory.Available(ctx, "SKU-A")
	require.NoError(t, err)
	assert.Equal(t, int32(2), available)
}

func TestSaga_CustomerCancellationCompensates(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.stock(t, "SKU-A", 10)

	// Freeze the saga mid-join, then cancel the order from outside.
	instance := sagadomain.NewInstance("order-1",
		[]sagadomain.Item{{SKU: "SKU-A", Qty: 2, UnitPriceCents: 1500}},
		30*time.Second, h.now)
	instance.MarkHeld("SKU-A")
	require.NoError(t, h.sagas.Save(ctx, instance))
	_, err := h.orders.PlaceOrder(ctx, "order-1", []orderdomain.LineItem{item("SKU-A", 2, 1500)})
	require.NoError(t, err)
	_, err = h.inventory.Hold(ctx, "order-1", "SKU-A", 2, 15*time.Minute)
	require.NoError(t, err)

	result, err := h.orders.Cancel(ctx, "order-1", "CustomerCancelled")
	require.NoError(t, err)
	msgs, err := ordermessaging.EventMessages("order-1", result.Events)
	require.NoError(t, err)
	require.NoError(t, h.dispatcher.Publish(ctx, msgs...))

	instance = h.saga(t, "order-1")
	assert.Equal(t, sagadomain.StatusCancelled, instance.Status)
	assert.Equal(t, "CustomerCancelled", instance.FailureReason)

	available, err := h.inventory.Available(ctx, "SKU-A")
	require.NoError(t, err)
	assert.Equal(t, int32(10), available, "held stock returned")
}

func TestSaga_ResumeReissuesOutstandingCommands(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.stock(t, "SKU-A", 10)

	// Simulate a crash right after the saga was opened: the instance exists
	// but no kickoff command was ever processed.
	instance := sagadomain.NewInstance("order-1",
		[]sagadomain.Item{{SKU: "SKU-A", Qty: 2, UnitPriceCents: 1500}},
		30*time.Second, h.now)
	require.NoError(t, h.sagas.Save(ctx, instance))
	_, err := h.orders.PlaceOrder(ctx, "order-1", []orderdomain.LineItem{item("SKU-A", 2, 1500)})
	require.NoError(t, err)
	_, err = h.orders.MarkPaymentRequested(ctx, "order-1")
	require.NoError(t, err)

	msgs, err := h.orchestrator.Resume(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, msgs)
	require.NoError(t, h.dispatcher.Publish(ctx, msgs...))

	assert.Equal(t, orderdomain.StatusFulfilled, h.order(t, "order-1").Status)
	assert.Equal(t, sagadomain.StatusFulfilled, h.saga(t, "order-1").Status)
}

func TestSaga_CaptureArrivingDuringCompensationIsRefunded(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.stock(t, "SKU-A", 10)

	// Commit phase in flight: the holds and the authorization are in, the
	// capture already executed at payments but its acknowledgement is still
	// on the wire.
	instance := sagadomain.NewInstance("order-1",
		[]sagadomain.Item{{SKU: "SKU-A", Qty: 1, UnitPriceCents: 2000}},
		30*time.Second, h.now)
	instance.MarkHeld("SKU-A")
	instance.PaymentAuthorized = true
	require.True(t, instance.BeginCommit(h.now.Add(30*time.Second)))
	require.NoError(t, h.sagas.Save(ctx, instance))
	_, err := h.orders.PlaceOrder(ctx, "order-1", []orderdomain.LineItem{item("SKU-A", 1, 2000)})
	require.NoError(t, err)
	_, err = h.orders.MarkPaymentRequested(ctx, "order-1")
	require.NoError(t, err)
	_, err = h.inventory.Hold(ctx, "order-1", "SKU-A", 1, 15*time.Minute)
	require.NoError(t, err)
	_, err = h.payments.Authorize(ctx, "order-1", 2000)
	require.NoError(t, err)
	_, err = h.payments.Capture(ctx, "order-1", 2000)
	require.NoError(t, err)

	// The expiry outruns the capture ack. Compensation starts and its void is
	// rejected against the captured funds.
	msg, err := bus.New("inventory.reservation_expired", "order-1", map[string]any{
		"orderId": "order-1", "sku": "SKU-A",
	})
	require.NoError(t, err)
	require.NoError(t, h.dispatcher.Publish(ctx, msg))

	instance = h.saga(t, "order-1")
	require.Equal(t, sagadomain.StatusCompensating, instance.Status)
	assert.False(t, instance.PaymentFreed)

	// The late capture ack lands: the saga swaps the void for a refund and
	// still converges to cancelled.
	msg, err = bus.New("payments.captured", "order-1", map[string]any{
		"orderId": "order-1", "amountCents": 2000,
	})
	require.NoError(t, err)
	require.NoError(t, h.dispatcher.Publish(ctx, msg))

	order := h.order(t, "order-1")
	assert.Equal(t, orderdomain.StatusCancelled, order.Status)
	assert.Equal(t, "ReservationExpired", order.FailureReason)

	instance = h.saga(t, "order-1")
	assert.Equal(t, sagadomain.StatusCancelled, instance.Status)

	auth, err := h.payments.GetByOrder(ctx, "order-1")
	require.NoError(t, err)
	assert.Equal(t, paydomain.StateRefunded, auth.State, "captured funds returned")

	available, err := h.inventory.Available(ctx, "SKU-A")
	require.NoError(t, err)
	assert.Equal(t, int32(10), available)
}

func TestSaga_CommitPhaseTimeoutCompensates(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.stock(t, "SKU-A", 10)

	// Commit phase opened, capture landed, but the reservation commit never
	// answers (its command was dead-lettered).
	instance := sagadomain.NewInstance("order-1",
		[]sagadomain.Item{{SKU: "SKU-A", Qty: 1, UnitPriceCents: 2000}},
		30*time.Second, h.now)
	instance.MarkHeld("SKU-A")
	instance.PaymentAuthorized = true
	require.True(t, instance.BeginCommit(h.now.Add(30*time.Second)))
	instance.PaymentCaptured = true
	require.NoError(t, h.sagas.Save(ctx, instance))
	_, err := h.orders.PlaceOrder(ctx, "order-1", []orderdomain.LineItem{item("SKU-A", 1, 2000)})
	require.NoError(t, err)
	_, err = h.orders.MarkPaymentRequested(ctx, "order-1")
	require.NoError(t, err)
	_, err = h.inventory.Hold(ctx, "order-1", "SKU-A", 1, 15*time.Minute)
	require.NoError(t, err)
	_, err = h.payments.Authorize(ctx, "order-1", 2000)
	require.NoError(t, err)
	_, err = h.payments.Capture(ctx, "order-1", 2000)
	require.NoError(t, err)

	// The commit-phase deadline passes; the sweep must not leave the saga in
	// limbo. Captured funds come back as a refund.
	h.now = h.now.Add(31 * time.Second)
	msgs, err := h.orchestrator.CheckDeadlines(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, msgs)
	require.NoError(t, h.dispatcher.Publish(ctx, msgs...))

	order := h.order(t, "order-1")
	assert.Equal(t, orderdomain.StatusCancelled, order.Status)
	assert.Equal(t, "FulfillmentTimeout", order.FailureReason)

	instance = h.saga(t, "order-1")
	assert.Equal(t, sagadomain.StatusCancelled, instance.Status)

	auth, err := h.payments.GetByOrder(ctx, "order-1")
	require.NoError(t, err)
	assert.Equal(t, paydomain.StateRefunded, auth.State)

	available, err := h.inventory.Available(ctx, "SKU-A")
	require.NoError(t, err)
	assert.Equal(t, int32(10), available)
}
