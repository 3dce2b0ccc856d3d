// Package messages defines the command and event contracts exchanged between
// the orders, inventory, payments, and fulfillment contexts. The set is
// closed: dispatching happens by name against these types only.
package messages

import "time"

// Command names.
const (
	PlaceOrderName            = "orders.place"
	CancelOrderName           = "orders.cancel"
	MarkPaymentRequestedName  = "orders.mark_payment_requested"
	MarkPaymentAuthorizedName = "orders.mark_payment_authorized"
	MarkPaymentFailedName     = "orders.mark_payment_failed"
	MarkReservedName          = "orders.mark_reserved"
	MarkReservationFailedName = "orders.mark_reservation_failed"
	ConfirmFulfillmentName    = "orders.confirm_fulfillment"
	ReserveStockName          = "inventory.reserve_stock"
	CommitReservationName     = "inventory.commit_reservation"
	ReleaseReservationName    = "inventory.release_reservation"
	AuthorizePaymentName      = "payments.authorize"
	CapturePaymentName        = "payments.capture"
	VoidAuthorizationName     = "payments.void"
	RefundPaymentName         = "payments.refund"
)

// Event names.
const (
	OrderPlacedName          = "orders.placed"
	OrderFulfilledName       = "orders.fulfilled"
	OrderCancelledName       = "orders.cancelled"
	ReservationHeldName      = "inventory.reservation_held"
	ReservationFailedName    = "inventory.reservation_failed"
	ReservationCommittedName = "inventory.reservation_committed"
	ReservationReleasedName  = "inventory.reservation_released"
	ReservationExpiredName   = "inventory.reservation_expired"
	PaymentAuthorizedName    = "payments.authorized"
	AuthorizationDeniedName  = "payments.authorization_denied"
	PaymentCapturedName      = "payments.captured"
	AuthorizationVoidedName  = "payments.authorization_voided"
	PaymentRefundedName      = "payments.refunded"
)

// LineItem is the order line shared across contracts. Prices are cents.
type LineItem struct {
	SKU            string `json:"sku"`
	Quantity       int32  `json:"quantity"`
	UnitPriceCents int64  `json:"unitPriceCents"`
}

// PlaceOrder creates a new order; the order identity doubles as the
// idempotency key for the whole flow.
type PlaceOrder struct {
	OrderID string     `json:"orderId"`
	Items   []LineItem `json:"items"`
}

// OrderPlaced announces a newly accepted order.
type OrderPlaced struct {
	OrderID  string     `json:"orderId"`
	Items    []LineItem `json:"items"`
	PlacedAt time.Time  `json:"placedAt"`
}

// CancelOrder asks the order aggregate to terminate with the given reason.
type CancelOrder struct {
	OrderID string `json:"orderId"`
	Reason  string `json:"reason"`
}

// MarkPaymentRequested moves the order into its awaiting-payment state when
// the saga kicks off authorization.
type MarkPaymentRequested struct {
	OrderID string `json:"orderId"`
}

// MarkPaymentAuthorized records the successful authorization on the order.
type MarkPaymentAuthorized struct {
	OrderID string `json:"orderId"`
}

// MarkPaymentFailed records a payment failure on the order.
type MarkPaymentFailed struct {
	OrderID string `json:"orderId"`
	Reason  string `json:"reason"`
}

// MarkReserved records that all stock for the order is held.
type MarkReserved struct {
	OrderID string `json:"orderId"`
}

// MarkReservationFailed records a reservation failure on the order.
type MarkReservationFailed struct {
	OrderID string `json:"orderId"`
	Reason  string `json:"reason"`
}

// ConfirmFulfillment finalizes the order after capture and commit succeeded.
type ConfirmFulfillment struct {
	OrderID string `json:"orderId"`
}

// OrderFulfilled is the terminal success event of the whole flow.
type OrderFulfilled struct {
	OrderID string `json:"orderId"`
}

// OrderCancelled is the terminal failure event, carrying the cause.
type OrderCancelled struct {
	OrderID string `json:"orderId"`
	Reason  string `json:"reason"`
}

// ReserveStock places a hold on one SKU for the order.
type ReserveStock struct {
	OrderID string        `json:"orderId"`
	SKU     string        `json:"sku"`
	Qty     int32         `json:"qty"`
	TTL     time.Duration `json:"ttl"`
}

// ReservationHeld reports a successful hold.
type ReservationHeld struct {
	OrderID   string    `json:"orderId"`
	SKU       string    `json:"sku"`
	Qty       int32     `json:"qty"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ReservationFailed reports an unsatisfiable hold.
type ReservationFailed struct {
	OrderID string `json:"orderId"`
	SKU     string `json:"sku"`
	Reason  string `json:"reason"`
}

// CommitReservation turns every held reservation of the order into a firm
// commitment.
type CommitReservation struct {
	OrderID string `json:"orderId"`
}

// ReservationCommitted reports that all holds of the order are committed.
type ReservationCommitted struct {
	OrderID string `json:"orderId"`
}

// ReleaseReservation frees whatever the order still holds. Idempotent.
type ReleaseReservation struct {
	OrderID string `json:"orderId"`
}

// ReservationReleased reports capacity returned for the order.
type ReservationReleased struct {
	OrderID string `json:"orderId"`
}

// ReservationExpired reports a hold that lapsed before commit.
type ReservationExpired struct {
	OrderID string `json:"orderId"`
	SKU     string `json:"sku"`
}

// AuthorizePayment requests an authorization for the order total.
type AuthorizePayment struct {
	OrderID     string `json:"orderId"`
	AmountCents int64  `json:"amountCents"`
}

// PaymentAuthorized reports a successful authorization.
type PaymentAuthorized struct {
	OrderID     string `json:"orderId"`
	AmountCents int64  `json:"amountCents"`
}

// AuthorizationDenied reports a business decline.
type AuthorizationDenied struct {
	OrderID string `json:"orderId"`
	Reason  string `json:"reason"`
}

// CapturePayment captures the previously authorized amount.
type CapturePayment struct {
	OrderID     string `json:"orderId"`
	AmountCents int64  `json:"amountCents"`
}

// PaymentCaptured reports funds transfer.
type PaymentCaptured struct {
	OrderID     string `json:"orderId"`
	AmountCents int64  `json:"amountCents"`
}

// VoidAuthorization releases the hold on the payment instrument. Idempotent.
type VoidAuthorization struct {
	OrderID string `json:"orderId"`
}

// AuthorizationVoided reports the authorization hold was released.
type AuthorizationVoided struct {
	OrderID string `json:"orderId"`
}

// RefundPayment returns captured funds when fulfillment fails after the
// capture already went through. A zero amount refunds the full capture.
// Idempotent.
type RefundPayment struct {
	OrderID     string `json:"orderId"`
	AmountCents int64  `json:"amountCents,omitempty"`
}

// PaymentRefunded reports captured funds were returned.
type PaymentRefunded struct {
	OrderID     string `json:"orderId"`
	AmountCents int64  `json:"amountCents"`
}
