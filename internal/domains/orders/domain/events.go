package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event is the base interface for order stream events.
type Event interface {
	EventName() string
}

// Event type identifiers as stored in the stream.
const (
	EventOrderPlaced            = "orders.order.placed"
	EventOrderPaymentRequested  = "orders.order.payment_requested"
	EventOrderPaymentAuthorized = "orders.order.payment_authorized"
	EventOrderPaymentFailed     = "orders.order.payment_failed"
	EventOrderReserved          = "orders.order.reserved"
	EventOrderReservationFailed = "orders.order.reservation_failed"
	EventOrderFulfilled         = "orders.order.fulfilled"
	EventOrderCancelled         = "orders.order.cancelled"
)

// OrderPlaced starts the stream; line items are frozen from here on.
type OrderPlaced struct {
	OrderID  string     `json:"orderId"`
	Items    []LineItem `json:"items"`
	PlacedAt time.Time  `json:"placedAt"`
}

func (OrderPlaced) EventName() string { return EventOrderPlaced }

// OrderPaymentRequested is raised when authorization is initiated.
type OrderPaymentRequested struct{}

func (OrderPaymentRequested) EventName() string { return EventOrderPaymentRequested }

// OrderPaymentAuthorized is raised when the payment hold succeeded.
type OrderPaymentAuthorized struct{}

func (OrderPaymentAuthorized) EventName() string { return EventOrderPaymentAuthorized }

// OrderPaymentFailed records a payment decline or timeout.
type OrderPaymentFailed struct {
	Reason string `json:"reason"`
}

func (OrderPaymentFailed) EventName() string { return EventOrderPaymentFailed }

// OrderReserved is raised when all stock for the order is held.
type OrderReserved struct{}

func (OrderReserved) EventName() string { return EventOrderReserved }

// OrderReservationFailed records an unsatisfiable stock hold.
type OrderReservationFailed struct {
	Reason string `json:"reason"`
}

func (OrderReservationFailed) EventName() string { return EventOrderReservationFailed }

// OrderFulfilled is the terminal success event.
type OrderFulfilled struct{}

func (OrderFulfilled) EventName() string { return EventOrderFulfilled }

// OrderCancelled is the terminal failure event.
type OrderCancelled struct {
	Reason string `json:"reason"`
}

func (OrderCancelled) EventName() string { return EventOrderCancelled }

// UnmarshalEvent decodes a stored event by its stream name. The event set is
// closed; unknown names indicate stream corruption or a schema drift bug.
func UnmarshalEvent(name string, payload []byte) (Event, error) {
	switch name {
	case EventOrderPlaced:
		var e OrderPlaced
		return e, json.Unmarshal(payload, &e)
	case EventOrderPaymentRequested:
		var e OrderPaymentRequested
		return e, json.Unmarshal(payload, &e)
	case EventOrderPaymentAuthorized:
		var e OrderPaymentAuthorized
		return e, json.Unmarshal(payload, &e)
	case EventOrderPaymentFailed:
		var e OrderPaymentFailed
		return e, json.Unmarshal(payload, &e)
	case EventOrderReserved:
		var e OrderReserved
		return e, json.Unmarshal(payload, &e)
	case EventOrderReservationFailed:
		var e OrderReservationFailed
		return e, json.Unmarshal(payload, &e)
	case EventOrderFulfilled:
		var e OrderFulfilled
		return e, json.Unmarshal(payload, &e)
	case EventOrderCancelled:
		var e OrderCancelled
		return e, json.Unmarshal(payload, &e)
	default:
		return nil, fmt.Errorf("unknown order event %q", name)
	}
}
