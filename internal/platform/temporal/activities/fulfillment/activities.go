// Package fulfillment exposes the bounded-context services as Temporal
// activities. Business declines come back as outcome values so the workflow
// can branch on them; only infrastructure failures surface as activity
// errors and retry.
package fulfillment

import (
	"context"
	"errors"
	"time"

	"go.temporal.io/sdk/activity"

	invdomain "github.com/Apurer/go-order-fulfillment/internal/domains/inventory/domain"
	invports "github.com/Apurer/go-order-fulfillment/internal/domains/inventory/ports"
	orderdomain "github.com/Apurer/go-order-fulfillment/internal/domains/orders/domain"
	orderports "github.com/Apurer/go-order-fulfillment/internal/domains/orders/ports"
	paydomain "github.com/Apurer/go-order-fulfillment/internal/domains/payments/domain"
	payports "github.com/Apurer/go-order-fulfillment/internal/domains/payments/ports"
)

// Activity registration names.
const (
	PlaceOrderActivityName            = "fulfillment.activities.PlaceOrder"
	MarkPaymentRequestedActivityName  = "fulfillment.activities.MarkPaymentRequested"
	ReserveStockActivityName          = "fulfillment.activities.ReserveStock"
	AuthorizePaymentActivityName      = "fulfillment.activities.AuthorizePayment"
	MarkReservedActivityName          = "fulfillment.activities.MarkReserved"
	MarkPaymentAuthorizedActivityName = "fulfillment.activities.MarkPaymentAuthorized"
	CommitReservationActivityName     = "fulfillment.activities.CommitReservation"
	CapturePaymentActivityName        = "fulfillment.activities.CapturePayment"
	ConfirmFulfillmentActivityName    = "fulfillment.activities.ConfirmFulfillment"
	ReleaseReservationActivityName    = "fulfillment.activities.ReleaseReservation"
	FreePaymentActivityName           = "fulfillment.activities.FreePayment"
	RecordFailureActivityName         = "fulfillment.activities.RecordFailure"
	CancelOrderActivityName           = "fulfillment.activities.CancelOrder"
)

// Item is one order line carried through the workflow.
type Item struct {
	SKU            string
	Qty            int32
	UnitPriceCents int64
}

// PlaceOrderInput opens the order stream.
type PlaceOrderInput struct {
	OrderID string
	Items   []Item
}

// OrderRef addresses an existing order.
type OrderRef struct {
	OrderID string
}

// ReserveInput places one hold.
type ReserveInput struct {
	OrderID string
	SKU     string
	Qty     int32
	TTL     time.Duration
}

// ReserveOutcome reports whether the hold was placed.
type ReserveOutcome struct {
	Held   bool
	Reason string
}

// AuthorizeInput requests a payment hold.
type AuthorizeInput struct {
	OrderID     string
	AmountCents int64
}

// AuthorizeOutcome reports the processor decision.
type AuthorizeOutcome struct {
	Approved bool
	Reason   string
}

// CommitOutcome reports whether the holds firmed up.
type CommitOutcome struct {
	Committed bool
	Reason    string
}

// FailureInput records a branch failure on the order stream.
type FailureInput struct {
	OrderID string
	Reason  string
	Payment bool
}

// CancelInput terminates the order.
type CancelInput struct {
	OrderID string
	Reason  string
}

// Activities bundles the three context services the workflow drives.
type Activities struct {
	orders    orderports.Service
	inventory invports.Service
	payments  payports.Service
}

// NewActivities wires the collaborators into the Temporal activities bundle.
func NewActivities(orders orderports.Service, inventory invports.Service, payments payports.Service) *Activities {
	return &Activities{orders: orders, inventory: inventory, payments: payments}
}

// PlaceOrder opens the order stream; replaying it returns the existing order.
func (a *Activities) PlaceOrder(ctx context.Context, input PlaceOrderInput) error {
	items := make([]orderdomain.LineItem, 0, len(input.Items))
	for _, item := range input.Items {
		items = append(items, orderdomain.LineItem{
			SKU:            item.SKU,
			Quantity:       item.Qty,
			UnitPriceCents: item.UnitPriceCents,
		})
	}
	_, err := a.orders.PlaceOrder(ctx, input.OrderID, items)
	return err
}

func (a *Activities) MarkPaymentRequested(ctx context.Context, ref OrderRef) error {
	_, err := a.orders.MarkPaymentRequested(ctx, ref.OrderID)
	return err
}

// ReserveStock places one hold. Insufficient stock is an outcome, not an
// error, so the workflow compensates instead of retrying.
func (a *Activities) ReserveStock(ctx context.Context, input ReserveInput) (ReserveOutcome, error) {
	logger := activity.GetLogger(ctx)
	_, err := a.inventory.Hold(ctx, input.OrderID, input.SKU, input.Qty, input.TTL)
	if errors.Is(err, invdomain.ErrInsufficientStock) {
		logger.Info("stock hold declined", "orderId", input.OrderID, "sku", input.SKU)
		return ReserveOutcome{Held: false, Reason: "InsufficientStock"}, nil
	}
	if err != nil {
		return ReserveOutcome{}, err
	}
	return ReserveOutcome{Held: true}, nil
}

// AuthorizePayment requests the hold. A decline is an outcome.
func (a *Activities) AuthorizePayment(ctx context.Context, input AuthorizeInput) (AuthorizeOutcome, error) {
	authorization, err := a.payments.Authorize(ctx, input.OrderID, input.AmountCents)
	if err != nil {
		return AuthorizeOutcome{}, err
	}
	if authorization.State == paydomain.StateDenied {
		return AuthorizeOutcome{Approved: false, Reason: authorization.Reason}, nil
	}
	return AuthorizeOutcome{Approved: true}, nil
}

func (a *Activities) MarkReserved(ctx context.Context, ref OrderRef) error {
	_, err := a.orders.MarkReserved(ctx, ref.OrderID)
	return err
}

func (a *Activities) MarkPaymentAuthorized(ctx context.Context, ref OrderRef) error {
	_, err := a.orders.MarkPaymentAuthorized(ctx, ref.OrderID)
	return err
}

// CommitReservation firms up every hold. A lapsed hold is an outcome so the
// workflow falls into compensation.
func (a *Activities) CommitReservation(ctx context.Context, ref OrderRef) (CommitOutcome, error) {
	_, err := a.inventory.CommitOrder(ctx, ref.OrderID)
	if errors.Is(err, invdomain.ErrReservationExpired) || errors.Is(err, invdomain.ErrReservationNotFound) {
		return CommitOutcome{Committed: false, Reason: "ReservationExpired"}, nil
	}
	if err != nil {
		return CommitOutcome{}, err
	}
	return CommitOutcome{Committed: true}, nil
}

func (a *Activities) CapturePayment(ctx context.Context, input AuthorizeInput) error {
	_, err := a.payments.Capture(ctx, input.OrderID, input.AmountCents)
	return err
}

func (a *Activities) ConfirmFulfillment(ctx context.Context, ref OrderRef) error {
	_, err := a.orders.ConfirmFulfillment(ctx, ref.OrderID)
	return err
}

// ReleaseReservation returns whatever the order still holds. Idempotent.
func (a *Activities) ReleaseReservation(ctx context.Context, ref OrderRef) error {
	_, err := a.inventory.ReleaseOrder(ctx, ref.OrderID)
	return err
}

// FreePayment unwinds the payment: refund when captured, void otherwise.
// Idempotent across replays.
func (a *Activities) FreePayment(ctx context.Context, ref OrderRef) error {
	authorization, err := a.payments.GetByOrder(ctx, ref.OrderID)
	if errors.Is(err, paydomain.ErrAuthorizationNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if authorization.State == paydomain.StateCaptured {
		_, _, err = a.payments.Refund(ctx, ref.OrderID, 0)
		return err
	}
	_, _, err = a.payments.Void(ctx, ref.OrderID)
	return err
}

// RecordFailure writes the reservation or payment failure onto the order
// stream before cancellation.
func (a *Activities) RecordFailure(ctx context.Context, input FailureInput) error {
	var err error
	if input.Payment {
		_, err = a.orders.MarkPaymentFailed(ctx, input.OrderID, input.Reason)
	} else {
		_, err = a.orders.MarkReservationFailed(ctx, input.OrderID, input.Reason)
	}
	if errors.Is(err, orderdomain.ErrInvalidStateTransition) {
		// The order may already be past the state the mark applies to; the
		// cancellation that follows carries the reason anyway.
		return nil
	}
	return err
}

func (a *Activities) CancelOrder(ctx context.Context, input CancelInput) error {
	_, err := a.orders.Cancel(ctx, input.OrderID, input.Reason)
	return err
}
