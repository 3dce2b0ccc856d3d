package ports

import (
	"context"
	"errors"

	"github.com/Apurer/go-order-fulfillment/internal/domains/orders/domain"
)

// ErrNotFound indicates no stream exists for the order identity.
var ErrNotFound = errors.New("order not found")

// Result is the outcome of one order command: the folded state after the
// append plus the events the command produced. Events are empty when the
// command was an idempotent no-op.
type Result struct {
	Order  *domain.Order
	Events []domain.Event
}

// Service defines the order use cases exposed to adapters (inbound port).
// The Mark* commands are issued by the fulfillment saga, never by clients.
type Service interface {
	PlaceOrder(ctx context.Context, orderID string, items []domain.LineItem) (*Result, error)
	MarkPaymentRequested(ctx context.Context, orderID string) (*Result, error)
	MarkPaymentAuthorized(ctx context.Context, orderID string) (*Result, error)
	MarkPaymentFailed(ctx context.Context, orderID, reason string) (*Result, error)
	MarkReserved(ctx context.Context, orderID string) (*Result, error)
	MarkReservationFailed(ctx context.Context, orderID, reason string) (*Result, error)
	ConfirmFulfillment(ctx context.Context, orderID string) (*Result, error)
	Cancel(ctx context.Context, orderID, reason string) (*Result, error)
	GetByID(ctx context.Context, orderID string) (*domain.Order, error)
}
