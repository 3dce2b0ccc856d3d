package application

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	ordermemory "github.com/Apurer/go-order-fulfillment/internal/domains/orders/adapters/memory"
	"github.com/Apurer/go-order-fulfillment/internal/domains/orders/domain"
	esmemory "github.com/Apurer/go-order-fulfillment/internal/platform/eventstore/memory"
)

func testItems() []domain.LineItem {
	return []domain.LineItem{{SKU: "DOG-FOOD-5LB", Quantity: 2, UnitPriceCents: 1299}}
}

func TestPlaceOrder_Success(t *testing.T) {
	svc := NewService(esmemory.NewStore())

	result, err := svc.PlaceOrder(context.Background(), "order-1", testItems())
	require.NoError(t, err)
	require.Equal(t, domain.StatusPlaced, result.Order.Status)
	require.Len(t, result.Events, 1)
	require.Equal(t, int64(1), result.Order.Version)
}

func TestPlaceOrder_InvalidInput(t *testing.T) {
	svc := NewService(esmemory.NewStore())

	_, err := svc.PlaceOrder(context.Background(), "order-1", nil)
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestPlaceOrder_IsIdempotentPerOrderID(t *testing.T) {
	svc := NewService(esmemory.NewStore())

	first, err := svc.PlaceOrder(context.Background(), "order-1", testItems())
	require.NoError(t, err)
	require.Len(t, first.Events, 1)

	second, err := svc.PlaceOrder(context.Background(), "order-1", testItems())
	require.NoError(t, err)
	require.Empty(t, second.Events, "redelivered placement must not append")
	require.Equal(t, first.Order.Version, second.Order.Version)
}

func TestMarkCommands_DriveStatus(t *testing.T) {
	svc := NewService(esmemory.NewStore())
	ctx := context.Background()

	_, err := svc.PlaceOrder(ctx, "order-1", testItems())
	require.NoError(t, err)

	result, err := svc.MarkPaymentRequested(ctx, "order-1")
	require.NoError(t, err)
	require.Equal(t, domain.StatusAwaitingPayment, result.Order.Status)

	result, err = svc.MarkReserved(ctx, "order-1")
	require.NoError(t, err)
	require.Equal(t, domain.StatusAwaitingPayment, result.Order.Status)

	result, err = svc.MarkPaymentAuthorized(ctx, "order-1")
	require.NoError(t, err)
	require.Equal(t, domain.StatusAwaitingFulfillment, result.Order.Status)

	result, err = svc.ConfirmFulfillment(ctx, "order-1")
	require.NoError(t, err)
	require.Equal(t, domain.StatusFulfilled, result.Order.Status)
}

func TestMarkCommands_RejectInvalidTransition(t *testing.T) {
	svc := NewService(esmemory.NewStore())
	ctx := context.Background()

	_, err := svc.PlaceOrder(ctx, "order-1", testItems())
	require.NoError(t, err)

	_, err = svc.ConfirmFulfillment(ctx, "order-1")
	require.ErrorIs(t, err, domain.ErrInvalidStateTransition)
}

func TestCancel_IsIdempotent(t *testing.T) {
	svc := NewService(esmemory.NewStore())
	ctx := context.Background()

	_, err := svc.PlaceOrder(ctx, "order-1", testItems())
	require.NoError(t, err)

	first, err := svc.Cancel(ctx, "order-1", "InsufficientStock")
	require.NoError(t, err)
	require.Equal(t, domain.StatusCancelled, first.Order.Status)
	require.Len(t, first.Events, 1)

	second, err := svc.Cancel(ctx, "order-1", "InsufficientStock")
	require.NoError(t, err)
	require.Empty(t, second.Events, "repeated compensation must be a no-op")
	require.Equal(t, first.Order.Version, second.Order.Version)
}

func TestService_UpdatesProjection(t *testing.T) {
	projection := ordermemory.NewProjection()
	svc := NewService(esmemory.NewStore(), WithProjection(projection))
	ctx := context.Background()

	_, err := svc.PlaceOrder(ctx, "order-1", testItems())
	require.NoError(t, err)
	_, err = svc.PlaceOrder(ctx, "order-2", testItems())
	require.NoError(t, err)

	list, err := projection.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
}
