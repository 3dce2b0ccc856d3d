// Package domain holds the fulfillment saga state machine. One Instance per
// order tracks the parallel reserve-and-authorize phase, the commit-and-
// capture phase, and compensation when either phase fails.
package domain

import (
	"errors"
	"time"
)

// Status is the saga lifecycle.
type Status string

const (
	StatusRunning      Status = "running"
	StatusCommitting   Status = "committing"
	StatusCompensating Status = "compensating"
	StatusFulfilled    Status = "fulfilled"
	StatusCancelled    Status = "cancelled"
)

// Failure reasons recorded on cancellation.
const (
	ReasonInsufficientStock   = "InsufficientStock"
	ReasonAuthorizationDenied = "AuthorizationDenied"
	ReasonReservationExpired  = "ReservationExpired"
	ReasonFulfillmentTimeout  = "FulfillmentTimeout"
	ReasonCustomerCancelled   = "CustomerCancelled"
)

// ErrInstanceNotFound indicates no saga exists for the order.
var ErrInstanceNotFound = errors.New("saga instance not found")

// Item is one order line the saga must reserve and charge for.
type Item struct {
	SKU            string
	Qty            int32
	UnitPriceCents int64
}

// Instance is the persisted saga state for one order. Flags record which
// branch acknowledgements arrived; the deadline bounds the reserve-and-
// authorize join.
type Instance struct {
	OrderID string
	Items   []Item
	Status  Status

	HeldSKUs          map[string]bool
	PaymentAuthorized bool
	StockCommitted    bool
	PaymentCaptured   bool

	ReleaseAcked bool
	PaymentFreed bool

	FailureReason string
	Deadline      time.Time
	StartedAt     time.Time
}

// NewInstance opens the saga for a freshly placed order.
func NewInstance(orderID string, items []Item, joinDeadline time.Duration, now time.Time) *Instance {
	return &Instance{
		OrderID:   orderID,
		Items:     append([]Item(nil), items...),
		Status:    StatusRunning,
		HeldSKUs:  map[string]bool{},
		Deadline:  now.Add(joinDeadline).UTC(),
		StartedAt: now.UTC(),
	}
}

// TotalCents is the amount the saga authorizes and captures.
func (i *Instance) TotalCents() int64 {
	var total int64
	for _, item := range i.Items {
		total += item.UnitPriceCents * int64(item.Qty)
	}
	return total
}

// Terminal reports whether the saga reached an end state.
func (i *Instance) Terminal() bool {
	return i.Status == StatusFulfilled || i.Status == StatusCancelled
}

// MarkHeld records one SKU's hold acknowledgement.
func (i *Instance) MarkHeld(sku string) {
	if i.HeldSKUs == nil {
		i.HeldSKUs = map[string]bool{}
	}
	i.HeldSKUs[sku] = true
}

// AllHeld reports whether every order line is held.
func (i *Instance) AllHeld() bool {
	for _, item := range i.Items {
		if !i.HeldSKUs[item.SKU] {
			return false
		}
	}
	return true
}

// JoinComplete reports whether both parallel branches succeeded.
func (i *Instance) JoinComplete() bool {
	return i.AllHeld() && i.PaymentAuthorized
}

// BeginCommit moves the saga into the commit-and-capture phase and re-arms
// the deadline to bound it. Only a running saga with a complete join
// transitions; anything else is a no-op so duplicate branch events cannot
// re-trigger phase two.
func (i *Instance) BeginCommit(deadline time.Time) bool {
	if i.Status != StatusRunning || !i.JoinComplete() {
		return false
	}
	i.Status = StatusCommitting
	i.Deadline = deadline.UTC()
	return true
}

// FinalizeComplete reports whether commit and capture both landed.
func (i *Instance) FinalizeComplete() bool {
	return i.StockCommitted && i.PaymentCaptured
}

// Fulfill closes the saga successfully.
func (i *Instance) Fulfill() bool {
	if i.Status != StatusCommitting || !i.FinalizeComplete() {
		return false
	}
	i.Status = StatusFulfilled
	return true
}

// BeginCompensation flips the saga into rollback with the first failure
// reason. Later failures keep the original reason; a terminal saga never
// re-enters compensation.
func (i *Instance) BeginCompensation(reason string) bool {
	if i.Status == StatusCompensating || i.Terminal() {
		return false
	}
	i.Status = StatusCompensating
	i.FailureReason = reason
	return true
}

// CompensationComplete reports whether both rollback acknowledgements
// arrived: capacity returned and the payment hold freed (voided or refunded).
func (i *Instance) CompensationComplete() bool {
	return i.ReleaseAcked && i.PaymentFreed
}

// Cancel closes a fully compensated saga.
func (i *Instance) Cancel() bool {
	if i.Status != StatusCompensating || !i.CompensationComplete() {
		return false
	}
	i.Status = StatusCancelled
	return true
}

// Overdue reports whether the saga ran past the deadline of its current
// phase. Both the join and the commit phase are bounded; compensation carries
// no deadline because its commands are re-issued until acknowledged.
func (i *Instance) Overdue(now time.Time) bool {
	if i.Status != StatusRunning && i.Status != StatusCommitting {
		return false
	}
	return !now.Before(i.Deadline)
}
