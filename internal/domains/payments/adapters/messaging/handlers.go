// Package messaging binds the payment service to the message bus. Declines
// are reported as failure events; state-machine violations dead-letter; only
// infrastructure failures retry.
package messaging

import (
	"context"
	"errors"
	"fmt"

	"github.com/Apurer/go-order-fulfillment/internal/domains/payments/domain"
	"github.com/Apurer/go-order-fulfillment/internal/domains/payments/ports"
	"github.com/Apurer/go-order-fulfillment/internal/platform/bus"
	"github.com/Apurer/go-order-fulfillment/internal/shared/messages"
)

// HandlerName keys inbox deduplication for this context.
const HandlerName = "payments"

// Handlers adapts bus commands onto the payment service.
type Handlers struct {
	svc ports.Service
}

// Register subscribes the payment command handlers on the dispatcher.
func Register(dispatcher *bus.Dispatcher, svc ports.Service) {
	h := &Handlers{svc: svc}
	dispatcher.Subscribe(HandlerName, h.Handle,
		messages.AuthorizePaymentName,
		messages.CapturePaymentName,
		messages.VoidAuthorizationName,
		messages.RefundPaymentName,
	)
}

// Handle dispatches one command message to the service.
func (h *Handlers) Handle(ctx context.Context, msg bus.Message) ([]bus.Message, error) {
	switch msg.Name {
	case messages.AuthorizePaymentName:
		cmd, err := bus.Decode[messages.AuthorizePayment](msg)
		if err != nil {
			return nil, err
		}
		return h.authorize(ctx, cmd)
	case messages.CapturePaymentName:
		cmd, err := bus.Decode[messages.CapturePayment](msg)
		if err != nil {
			return nil, err
		}
		return h.capture(ctx, cmd)
	case messages.VoidAuthorizationName:
		cmd, err := bus.Decode[messages.VoidAuthorization](msg)
		if err != nil {
			return nil, err
		}
		return h.void(ctx, cmd)
	case messages.RefundPaymentName:
		cmd, err := bus.Decode[messages.RefundPayment](msg)
		if err != nil {
			return nil, err
		}
		return h.refund(ctx, cmd)
	default:
		return nil, fmt.Errorf("unexpected payment command %q", msg.Name)
	}
}

func (h *Handlers) authorize(ctx context.Context, cmd messages.AuthorizePayment) ([]bus.Message, error) {
	authorization, err := h.svc.Authorize(ctx, cmd.OrderID, cmd.AmountCents)
	if errors.Is(err, domain.ErrInvalidAmount) {
		return nil, err
	}
	if err != nil {
		return nil, bus.Transient(err)
	}
	if authorization.State == domain.StateDenied {
		return one(messages.AuthorizationDeniedName, cmd.OrderID, messages.AuthorizationDenied{
			OrderID: cmd.OrderID,
			Reason:  authorization.Reason,
		})
	}
	return one(messages.PaymentAuthorizedName, cmd.OrderID, messages.PaymentAuthorized{
		OrderID:     cmd.OrderID,
		AmountCents: authorization.AmountCents,
	})
}

func (h *Handlers) capture(ctx context.Context, cmd messages.CapturePayment) ([]bus.Message, error) {
	authorization, err := h.svc.Capture(ctx, cmd.OrderID, cmd.AmountCents)
	if err != nil {
		return nil, classify(err)
	}
	return one(messages.PaymentCapturedName, cmd.OrderID, messages.PaymentCaptured{
		OrderID:     cmd.OrderID,
		AmountCents: authorization.CapturedCents,
	})
}

func (h *Handlers) void(ctx context.Context, cmd messages.VoidAuthorization) ([]bus.Message, error) {
	if _, _, err := h.svc.Void(ctx, cmd.OrderID); err != nil {
		return nil, classify(err)
	}
	// Always acknowledge: compensation must converge even when there was
	// nothing left to void.
	return one(messages.AuthorizationVoidedName, cmd.OrderID, messages.AuthorizationVoided{OrderID: cmd.OrderID})
}

func (h *Handlers) refund(ctx context.Context, cmd messages.RefundPayment) ([]bus.Message, error) {
	authorization, _, err := h.svc.Refund(ctx, cmd.OrderID, cmd.AmountCents)
	if err != nil {
		return nil, classify(err)
	}
	return one(messages.PaymentRefundedName, cmd.OrderID, messages.PaymentRefunded{
		OrderID:     cmd.OrderID,
		AmountCents: authorization.CapturedCents,
	})
}

// classify separates state-machine violations (dead-lettered) from
// infrastructure failures (retried).
func classify(err error) error {
	switch {
	case errors.Is(err, domain.ErrAuthorizationNotFound),
		errors.Is(err, domain.ErrInvalidPaymentState),
		errors.Is(err, domain.ErrCaptureExceedsAuthorization),
		errors.Is(err, domain.ErrRefundExceedsCapture),
		errors.Is(err, domain.ErrInvalidAmount):
		return err
	default:
		return bus.Transient(err)
	}
}

func one(name, orderID string, payload any) ([]bus.Message, error) {
	msg, err := bus.New(name, orderID, payload)
	if err != nil {
		return nil, err
	}
	return []bus.Message{msg}, nil
}
