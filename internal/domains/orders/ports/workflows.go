package ports

import (
	"context"

	"github.com/Apurer/go-order-fulfillment/internal/domains/orders/domain"
)

// FulfillmentStarter kicks off the fulfillment flow for a new order. The
// inline adapter runs the in-process saga; the Temporal adapter starts a
// durable workflow instead.
type FulfillmentStarter interface {
	PlaceOrder(ctx context.Context, orderID string, items []domain.LineItem) (*domain.Order, error)
}
