// Package messaging binds the order service to the message bus: inbound saga
// commands become service calls, outbound domain events become integration
// events.
package messaging

import (
	"context"
	"errors"
	"fmt"

	"github.com/Apurer/go-order-fulfillment/internal/domains/orders/application"
	"github.com/Apurer/go-order-fulfillment/internal/domains/orders/domain"
	"github.com/Apurer/go-order-fulfillment/internal/domains/orders/ports"
	"github.com/Apurer/go-order-fulfillment/internal/platform/bus"
	"github.com/Apurer/go-order-fulfillment/internal/shared/messages"
)

// HandlerName keys inbox deduplication for this context.
const HandlerName = "orders"

// Handlers adapts bus commands onto the order service.
type Handlers struct {
	svc ports.Service
}

// Register subscribes the order command handlers on the dispatcher.
func Register(dispatcher *bus.Dispatcher, svc ports.Service) {
	h := &Handlers{svc: svc}
	dispatcher.Subscribe(HandlerName, h.Handle,
		messages.CancelOrderName,
		messages.MarkPaymentRequestedName,
		messages.MarkPaymentAuthorizedName,
		messages.MarkPaymentFailedName,
		messages.MarkReservedName,
		messages.MarkReservationFailedName,
		messages.ConfirmFulfillmentName,
	)
}

// Handle dispatches one command message to the service.
func (h *Handlers) Handle(ctx context.Context, msg bus.Message) ([]bus.Message, error) {
	result, err := h.execute(ctx, msg)
	if err != nil {
		return nil, classify(err)
	}
	if result == nil || result.Order == nil {
		return nil, nil
	}
	return EventMessages(result.Order.ID, result.Events)
}

func (h *Handlers) execute(ctx context.Context, msg bus.Message) (*ports.Result, error) {
	switch msg.Name {
	case messages.CancelOrderName:
		cmd, err := bus.Decode[messages.CancelOrder](msg)
		if err != nil {
			return nil, err
		}
		return h.svc.Cancel(ctx, cmd.OrderID, cmd.Reason)
	case messages.MarkPaymentRequestedName:
		cmd, err := bus.Decode[messages.MarkPaymentRequested](msg)
		if err != nil {
			return nil, err
		}
		return h.svc.MarkPaymentRequested(ctx, cmd.OrderID)
	case messages.MarkPaymentAuthorizedName:
		cmd, err := bus.Decode[messages.MarkPaymentAuthorized](msg)
		if err != nil {
			return nil, err
		}
		return h.svc.MarkPaymentAuthorized(ctx, cmd.OrderID)
	case messages.MarkPaymentFailedName:
		cmd, err := bus.Decode[messages.MarkPaymentFailed](msg)
		if err != nil {
			return nil, err
		}
		return h.svc.MarkPaymentFailed(ctx, cmd.OrderID, cmd.Reason)
	case messages.MarkReservedName:
		cmd, err := bus.Decode[messages.MarkReserved](msg)
		if err != nil {
			return nil, err
		}
		return h.svc.MarkReserved(ctx, cmd.OrderID)
	case messages.MarkReservationFailedName:
		cmd, err := bus.Decode[messages.MarkReservationFailed](msg)
		if err != nil {
			return nil, err
		}
		return h.svc.MarkReservationFailed(ctx, cmd.OrderID, cmd.Reason)
	case messages.ConfirmFulfillmentName:
		cmd, err := bus.Decode[messages.ConfirmFulfillment](msg)
		if err != nil {
			return nil, err
		}
		return h.svc.ConfirmFulfillment(ctx, cmd.OrderID)
	default:
		return nil, fmt.Errorf("unexpected order command %q", msg.Name)
	}
}

// EventMessages maps order stream events to their integration counterparts.
// Mark events stay private to the stream; only lifecycle milestones go out.
func EventMessages(orderID string, events []domain.Event) ([]bus.Message, error) {
	var out []bus.Message
	for _, event := range events {
		switch e := event.(type) {
		case domain.OrderPlaced:
			items := make([]messages.LineItem, 0, len(e.Items))
			for _, item := range e.Items {
				items = append(items, messages.LineItem{
					SKU:            item.SKU,
					Quantity:       item.Quantity,
					UnitPriceCents: item.UnitPriceCents,
				})
			}
			msg, err := bus.New(messages.OrderPlacedName, orderID, messages.OrderPlaced{
				OrderID:  e.OrderID,
				Items:    items,
				PlacedAt: e.PlacedAt,
			})
			if err != nil {
				return nil, err
			}
			out = append(out, msg)
		case domain.OrderFulfilled:
			msg, err := bus.New(messages.OrderFulfilledName, orderID, messages.OrderFulfilled{OrderID: orderID})
			if err != nil {
				return nil, err
			}
			out = append(out, msg)
		case domain.OrderCancelled:
			msg, err := bus.New(messages.OrderCancelledName, orderID, messages.OrderCancelled{OrderID: orderID, Reason: e.Reason})
			if err != nil {
				return nil, err
			}
			out = append(out, msg)
		}
	}
	return out, nil
}

// classify separates invariant violations (dead-lettered, per duplicate or
// out-of-order messages) from infrastructure failures (retried).
func classify(err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidStateTransition),
		errors.Is(err, application.ErrInvalidInput),
		errors.Is(err, ports.ErrNotFound):
		return err
	default:
		return bus.Transient(err)
	}
}
