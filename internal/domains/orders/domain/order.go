package domain

import (
	"errors"
	"time"
)

// Status represents the lifecycle state of an order.
type Status string

const (
	StatusPlaced              Status = "placed"
	StatusAwaitingPayment     Status = "awaiting_payment"
	StatusAwaitingFulfillment Status = "awaiting_fulfillment"
	StatusFulfilled           Status = "fulfilled"
	StatusCancelled           Status = "cancelled"
)

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	return s == StatusFulfilled || s == StatusCancelled
}

var (
	ErrInvalidOrder           = errors.New("order must have at least one line item with positive quantity and price")
	ErrInvalidStateTransition = errors.New("invalid order state transition")
)

// LineItem is one ordered position. Immutable once the order is placed.
type LineItem struct {
	SKU            string `json:"sku"`
	Quantity       int32  `json:"quantity"`
	UnitPriceCents int64  `json:"unitPriceCents"`
}

// Order is the folded view of an order event stream. It is never mutated
// directly; commands return events and apply folds them in.
type Order struct {
	ID            string
	Items         []LineItem
	Status        Status
	FailureReason string
	PlacedAt      time.Time
	Version       int64
}

// TotalCents is the authorization amount for the order.
func (o *Order) TotalCents() int64 {
	var total int64
	for _, item := range o.Items {
		total += int64(item.Quantity) * item.UnitPriceCents
	}
	return total
}

// Replay folds an ordered event sequence into the aggregate state. Replaying
// the same sequence always yields the same state.
func Replay(events []Event) *Order {
	order := &Order{}
	for _, event := range events {
		order.apply(event)
	}
	return order
}

func (o *Order) apply(event Event) {
	switch e := event.(type) {
	case OrderPlaced:
		o.ID = e.OrderID
		o.Items = append([]LineItem(nil), e.Items...)
		o.PlacedAt = e.PlacedAt
		o.Status = StatusPlaced
	case OrderPaymentRequested:
		o.Status = StatusAwaitingPayment
	case OrderPaymentAuthorized:
		o.Status = StatusAwaitingFulfillment
	case OrderPaymentFailed:
		o.FailureReason = e.Reason
	case OrderReserved:
		// Join state lives in the saga; the stream records the fact only.
	case OrderReservationFailed:
		o.FailureReason = e.Reason
	case OrderFulfilled:
		o.Status = StatusFulfilled
	case OrderCancelled:
		o.Status = StatusCancelled
		if e.Reason != "" {
			o.FailureReason = e.Reason
		}
	}
	o.Version++
}

// PlaceOrder validates the items and produces the opening event.
func PlaceOrder(orderID string, items []LineItem, now time.Time) ([]Event, error) {
	if orderID == "" || len(items) == 0 {
		return nil, ErrInvalidOrder
	}
	for _, item := range items {
		if item.SKU == "" || item.Quantity <= 0 || item.UnitPriceCents < 0 {
			return nil, ErrInvalidOrder
		}
	}
	return []Event{OrderPlaced{
		OrderID:  orderID,
		Items:    append([]LineItem(nil), items...),
		PlacedAt: now.UTC(),
	}}, nil
}

// MarkPaymentRequested moves a freshly placed order into awaiting payment.
// Replaying it against an order already past that point is a no-op so a
// restarted saga can re-issue its kickoff safely.
func (o *Order) MarkPaymentRequested() ([]Event, error) {
	switch o.Status {
	case StatusPlaced:
		return []Event{OrderPaymentRequested{}}, nil
	case StatusAwaitingPayment, StatusAwaitingFulfillment:
		return nil, nil
	default:
		return nil, ErrInvalidStateTransition
	}
}

// MarkPaymentAuthorized records a successful authorization.
func (o *Order) MarkPaymentAuthorized() ([]Event, error) {
	if o.Status != StatusAwaitingPayment {
		return nil, ErrInvalidStateTransition
	}
	return []Event{OrderPaymentAuthorized{}}, nil
}

// MarkPaymentFailed records a payment failure while awaiting payment.
func (o *Order) MarkPaymentFailed(reason string) ([]Event, error) {
	if o.Status != StatusAwaitingPayment {
		return nil, ErrInvalidStateTransition
	}
	return []Event{OrderPaymentFailed{Reason: reason}}, nil
}

// MarkReserved records that all stock is held. Valid while the order waits
// for payment or fulfillment, whichever the saga reaches first.
func (o *Order) MarkReserved() ([]Event, error) {
	if o.Status != StatusAwaitingPayment && o.Status != StatusAwaitingFulfillment {
		return nil, ErrInvalidStateTransition
	}
	return []Event{OrderReserved{}}, nil
}

// MarkReservationFailed records an unsatisfiable hold.
func (o *Order) MarkReservationFailed(reason string) ([]Event, error) {
	if o.Status != StatusAwaitingPayment && o.Status != StatusAwaitingFulfillment {
		return nil, ErrInvalidStateTransition
	}
	return []Event{OrderReservationFailed{Reason: reason}}, nil
}

// MarkFulfilled closes the order successfully.
func (o *Order) MarkFulfilled() ([]Event, error) {
	if o.Status != StatusAwaitingFulfillment {
		return nil, ErrInvalidStateTransition
	}
	return []Event{OrderFulfilled{}}, nil
}

// Cancel terminates the order from any non-terminal state. The stream is
// retained for audit; cancellation is an appended event, not a deletion.
func (o *Order) Cancel(reason string) ([]Event, error) {
	if o.Status.Terminal() {
		return nil, ErrInvalidStateTransition
	}
	return []Event{OrderCancelled{Reason: reason}}, nil
}
