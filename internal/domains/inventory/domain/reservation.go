package domain

import (
	"errors"
	"time"
)

// State is the lifecycle of a reservation hold.
type State string

const (
	StateHeld      State = "held"
	StateCommitted State = "committed"
	StateReleased  State = "released"
	StateExpired   State = "expired"
)

var (
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrReservationNotFound = errors.New("reservation not found")
	ErrReservationExpired  = errors.New("reservation expired")
	ErrInvalidHold         = errors.New("hold quantity must be greater than zero")
)

// Reservation is one hold of stock for an order, identified by (order, SKU).
type Reservation struct {
	OrderID   string
	SKU       string
	Qty       int32
	State     State
	ExpiresAt time.Time
}

// NewHold creates a Held reservation expiring after the TTL.
func NewHold(orderID, sku string, qty int32, ttl time.Duration, now time.Time) (*Reservation, error) {
	if orderID == "" || sku == "" || qty <= 0 {
		return nil, ErrInvalidHold
	}
	return &Reservation{
		OrderID:   orderID,
		SKU:       sku,
		Qty:       qty,
		State:     StateHeld,
		ExpiresAt: now.Add(ttl).UTC(),
	}, nil
}

// Lapsed reports whether a Held reservation ran past its expiry. Capacity
// counts it as returned from that moment, even before the sweep records it.
func (r *Reservation) Lapsed(now time.Time) bool {
	return r.State == StateHeld && !now.Before(r.ExpiresAt)
}

// Commit firms up a Held, non-expired reservation.
func (r *Reservation) Commit(now time.Time) error {
	if r.Lapsed(now) {
		return ErrReservationExpired
	}
	if r.State != StateHeld {
		return ErrReservationNotFound
	}
	r.State = StateCommitted
	return nil
}

// Release frees the hold or commitment. Releasing anything else is a no-op;
// compensation must tolerate re-execution. Reports whether state changed.
func (r *Reservation) Release() bool {
	if r.State != StateHeld && r.State != StateCommitted {
		return false
	}
	r.State = StateReleased
	return true
}

// Expire transitions a lapsed hold to Expired. Reports whether state changed.
func (r *Reservation) Expire(now time.Time) bool {
	if !r.Lapsed(now) {
		return false
	}
	r.State = StateExpired
	return true
}

// CountsAgainstStock reports whether the reservation still consumes capacity.
func (r *Reservation) CountsAgainstStock(now time.Time) bool {
	if r.State == StateCommitted {
		return true
	}
	return r.State == StateHeld && now.Before(r.ExpiresAt)
}
