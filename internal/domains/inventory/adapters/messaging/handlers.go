// Package messaging binds the reservation ledger to the message bus.
// Business declines (insufficient stock, lapsed holds) are reported as
// failure events, not handler errors; only infrastructure failures retry.
package messaging

import (
	"context"
	"errors"
	"fmt"

	"github.com/Apurer/go-order-fulfillment/internal/domains/inventory/domain"
	"github.com/Apurer/go-order-fulfillment/internal/domains/inventory/ports"
	"github.com/Apurer/go-order-fulfillment/internal/platform/bus"
	"github.com/Apurer/go-order-fulfillment/internal/shared/messages"
)

// HandlerName keys inbox deduplication for this context.
const HandlerName = "inventory"

// Handlers adapts bus commands onto the reservation ledger.
type Handlers struct {
	svc ports.Service
}

// Register subscribes the inventory command handlers on the dispatcher.
func Register(dispatcher *bus.Dispatcher, svc ports.Service) {
	h := &Handlers{svc: svc}
	dispatcher.Subscribe(HandlerName, h.Handle,
		messages.ReserveStockName,
		messages.CommitReservationName,
		messages.ReleaseReservationName,
	)
}

// Handle dispatches one command message to the ledger.
func (h *Handlers) Handle(ctx context.Context, msg bus.Message) ([]bus.Message, error) {
	switch msg.Name {
	case messages.ReserveStockName:
		cmd, err := bus.Decode[messages.ReserveStock](msg)
		if err != nil {
			return nil, err
		}
		return h.reserve(ctx, cmd)
	case messages.CommitReservationName:
		cmd, err := bus.Decode[messages.CommitReservation](msg)
		if err != nil {
			return nil, err
		}
		return h.commit(ctx, cmd)
	case messages.ReleaseReservationName:
		cmd, err := bus.Decode[messages.ReleaseReservation](msg)
		if err != nil {
			return nil, err
		}
		return h.release(ctx, cmd)
	default:
		return nil, fmt.Errorf("unexpected inventory command %q", msg.Name)
	}
}

func (h *Handlers) reserve(ctx context.Context, cmd messages.ReserveStock) ([]bus.Message, error) {
	reservation, err := h.svc.Hold(ctx, cmd.OrderID, cmd.SKU, cmd.Qty, cmd.TTL)
	if errors.Is(err, domain.ErrInsufficientStock) {
		return one(messages.ReservationFailedName, cmd.OrderID, messages.ReservationFailed{
			OrderID: cmd.OrderID,
			SKU:     cmd.SKU,
			Reason:  "InsufficientStock",
		})
	}
	if errors.Is(err, domain.ErrInvalidHold) {
		return nil, err
	}
	if err != nil {
		return nil, bus.Transient(err)
	}
	return one(messages.ReservationHeldName, cmd.OrderID, messages.ReservationHeld{
		OrderID:   reservation.OrderID,
		SKU:       reservation.SKU,
		Qty:       reservation.Qty,
		ExpiresAt: reservation.ExpiresAt,
	})
}

func (h *Handlers) commit(ctx context.Context, cmd messages.CommitReservation) ([]bus.Message, error) {
	_, err := h.svc.CommitOrder(ctx, cmd.OrderID)
	if errors.Is(err, domain.ErrReservationExpired) || errors.Is(err, domain.ErrReservationNotFound) {
		// A hold lapsed between the join and the commit. Report failure so
		// the orchestrator compensates instead of retrying forever.
		return one(messages.ReservationFailedName, cmd.OrderID, messages.ReservationFailed{
			OrderID: cmd.OrderID,
			Reason:  "ReservationExpired",
		})
	}
	if err != nil {
		return nil, bus.Transient(err)
	}
	return one(messages.ReservationCommittedName, cmd.OrderID, messages.ReservationCommitted{OrderID: cmd.OrderID})
}

func (h *Handlers) release(ctx context.Context, cmd messages.ReleaseReservation) ([]bus.Message, error) {
	if _, err := h.svc.ReleaseOrder(ctx, cmd.OrderID); err != nil {
		return nil, bus.Transient(err)
	}
	// Always acknowledge: compensation must converge even when nothing was
	// left to release.
	return one(messages.ReservationReleasedName, cmd.OrderID, messages.ReservationReleased{OrderID: cmd.OrderID})
}

// ExpiryMessages maps swept reservations to their integration events.
func ExpiryMessages(expired []*domain.Reservation) ([]bus.Message, error) {
	out := make([]bus.Message, 0, len(expired))
	for _, reservation := range expired {
		msg, err := bus.New(messages.ReservationExpiredName, reservation.OrderID, messages.ReservationExpired{
			OrderID: reservation.OrderID,
			SKU:     reservation.SKU,
		})
		if err != nil {
			return nil, err
		}
		out = append(out, msg)
	}
	return out, nil
}

func one(name, orderID string, payload any) ([]bus.Message, error) {
	msg, err := bus.New(name, orderID, payload)
	if err != nil {
		return nil, err
	}
	return []bus.Message{msg}, nil
}
