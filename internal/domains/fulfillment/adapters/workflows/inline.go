// Package workflows provides the two fulfillment entry points: the inline
// starter drives the in-process saga over the dispatcher, the Temporal
// starter hands the same flow to a durable workflow.
package workflows

import (
	"context"
	"fmt"

	ordermessaging "github.com/Apurer/go-order-fulfillment/internal/domains/orders/adapters/messaging"
	orderdomain "github.com/Apurer/go-order-fulfillment/internal/domains/orders/domain"
	orderports "github.com/Apurer/go-order-fulfillment/internal/domains/orders/ports"
	"github.com/Apurer/go-order-fulfillment/internal/platform/bus"
)

var _ orderports.FulfillmentStarter = (*Inline)(nil)

// Inline places the order and feeds its events straight into the dispatcher,
// which runs the saga to completion in-process.
type Inline struct {
	orders    orderports.Service
	publisher interface {
		Publish(ctx context.Context, msgs ...bus.Message) error
	}
}

// NewInline wires the inline starter.
func NewInline(orders orderports.Service, publisher interface {
	Publish(ctx context.Context, msgs ...bus.Message) error
}) *Inline {
	return &Inline{orders: orders, publisher: publisher}
}

// PlaceOrder creates the order and kicks the saga off with its events.
func (s *Inline) PlaceOrder(ctx context.Context, orderID string, items []orderdomain.LineItem) (*orderdomain.Order, error) {
	result, err := s.orders.PlaceOrder(ctx, orderID, items)
	if err != nil {
		return nil, err
	}
	msgs, err := ordermessaging.EventMessages(result.Order.ID, result.Events)
	if err != nil {
		return nil, err
	}
	if len(msgs) > 0 {
		if err := s.publisher.Publish(ctx, msgs...); err != nil {
			return nil, fmt.Errorf("publish order events: %w", err)
		}
	}
	return result.Order, nil
}
