// Package application holds the saga orchestrator. It reacts to integration
// events, advances the persisted instance, and answers with the commands the
// next step needs. All routing decisions live here; the contexts it commands
// stay unaware of each other.
package application

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Apurer/go-order-fulfillment/internal/domains/fulfillment/domain"
	"github.com/Apurer/go-order-fulfillment/internal/domains/fulfillment/ports"
	"github.com/Apurer/go-order-fulfillment/internal/platform/bus"
	"github.com/Apurer/go-order-fulfillment/internal/shared/messages"
)

const (
	// DefaultJoinDeadline bounds the parallel reserve-and-authorize phase.
	DefaultJoinDeadline = 30 * time.Second
	// DefaultReservationTTL bounds how long a hold may wait for commit.
	DefaultReservationTTL = 15 * time.Minute
)

// Orchestrator drives one fulfillment saga per order.
type Orchestrator struct {
	store          ports.InstanceStore
	logger         *slog.Logger
	clock          func() time.Time
	joinDeadline   time.Duration
	reservationTTL time.Duration
}

// Option configures the orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock overrides the timestamp source, for deterministic tests.
func WithClock(clock func() time.Time) Option {
	return func(o *Orchestrator) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithJoinDeadline bounds how long the saga waits for both branches.
func WithJoinDeadline(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.joinDeadline = d
		}
	}
}

// WithReservationTTL sets the hold lifetime requested from inventory.
func WithReservationTTL(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.reservationTTL = d
		}
	}
}

// NewOrchestrator wires the orchestrator with its instance store.
func NewOrchestrator(store ports.InstanceStore, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:          store,
		logger:         slog.Default(),
		clock:          time.Now,
		joinDeadline:   DefaultJoinDeadline,
		reservationTTL: DefaultReservationTTL,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}

// Handle reacts to one integration event. Events for unknown or already
// terminal sagas are dropped; at-least-once delivery makes those routine.
func (o *Orchestrator) Handle(ctx context.Context, msg bus.Message) ([]bus.Message, error) {
	if msg.Name == messages.OrderPlacedName {
		event, err := bus.Decode[messages.OrderPlaced](msg)
		if err != nil {
			return nil, err
		}
		return o.start(ctx, event)
	}

	instance, err := o.store.Get(ctx, msg.OrderID)
	if errors.Is(err, domain.ErrInstanceNotFound) {
		o.logger.Debug("event for unknown saga dropped",
			slog.String("message", msg.Name),
			slog.String("orderId", msg.OrderID))
		return nil, nil
	}
	if err != nil {
		return nil, bus.Transient(err)
	}
	if instance.Terminal() {
		return nil, nil
	}

	var out []bus.Message
	switch msg.Name {
	case messages.ReservationHeldName:
		event, err := bus.Decode[messages.ReservationHeld](msg)
		if err != nil {
			return nil, err
		}
		out, err = o.onHeld(instance, event)
		if err != nil {
			return nil, err
		}
	case messages.ReservationFailedName:
		event, err := bus.Decode[messages.ReservationFailed](msg)
		if err != nil {
			return nil, err
		}
		out, err = o.fail(instance, failureReason(event.Reason), messages.MarkReservationFailedName)
		if err != nil {
			return nil, err
		}
	case messages.ReservationExpiredName:
		out, err = o.fail(instance, domain.ReasonReservationExpired, messages.MarkReservationFailedName)
		if err != nil {
			return nil, err
		}
	case messages.PaymentAuthorizedName:
		out, err = o.onAuthorized(instance)
		if err != nil {
			return nil, err
		}
	case messages.AuthorizationDeniedName:
		event, err := bus.Decode[messages.AuthorizationDenied](msg)
		if err != nil {
			return nil, err
		}
		instance.PaymentFreed = true // a denial holds nothing
		if instance.Status == domain.StatusCompensating {
			out, err = o.settle(instance)
		} else {
			out, err = o.fail(instance, reasonOr(event.Reason, domain.ReasonAuthorizationDenied), messages.MarkPaymentFailedName)
		}
		if err != nil {
			return nil, err
		}
	case messages.ReservationCommittedName:
		instance.StockCommitted = true
		out, err = o.finalize(instance)
		if err != nil {
			return nil, err
		}
	case messages.PaymentCapturedName:
		out, err = o.onCaptured(instance)
		if err != nil {
			return nil, err
		}
	case messages.ReservationReleasedName:
		instance.ReleaseAcked = true
		out, err = o.settle(instance)
		if err != nil {
			return nil, err
		}
	case messages.AuthorizationVoidedName, messages.PaymentRefundedName:
		instance.PaymentFreed = true
		out, err = o.settle(instance)
		if err != nil {
			return nil, err
		}
	case messages.OrderCancelledName:
		event, err := bus.Decode[messages.OrderCancelled](msg)
		if err != nil {
			return nil, err
		}
		out, err = o.onOrderCancelled(instance, event)
		if err != nil {
			return nil, err
		}
	default:
		return nil, nil
	}

	if err := o.store.Save(ctx, instance); err != nil {
		return nil, bus.Transient(err)
	}
	return out, nil
}

// start opens the saga and fires both branches in parallel. A replayed
// OrderPlaced for a known saga is a no-op.
func (o *Orchestrator) start(ctx context.Context, event messages.OrderPlaced) ([]bus.Message, error) {
	if _, err := o.store.Get(ctx, event.OrderID); err == nil {
		return nil, nil
	} else if !errors.Is(err, domain.ErrInstanceNotFound) {
		return nil, bus.Transient(err)
	}

	items := make([]domain.Item, 0, len(event.Items))
	for _, item := range event.Items {
		items = append(items, domain.Item{SKU: item.SKU, Qty: item.Quantity, UnitPriceCents: item.UnitPriceCents})
	}
	instance := domain.NewInstance(event.OrderID, items, o.joinDeadline, o.clock())
	if err := o.store.Save(ctx, instance); err != nil {
		return nil, bus.Transient(err)
	}
	o.logger.Info("fulfillment saga started",
		slog.String("orderId", event.OrderID),
		slog.Int64("totalCents", instance.TotalCents()))
	return o.kickoffCommands(instance)
}

func (o *Orchestrator) onHeld(instance *domain.Instance, event messages.ReservationHeld) ([]bus.Message, error) {
	if instance.Status == domain.StatusCompensating {
		// The release may have raced ahead of this hold; ask again so the
		// late hold does not sit on capacity until its TTL.
		return o.command(messages.ReleaseReservationName, instance.OrderID,
			messages.ReleaseReservation{OrderID: instance.OrderID})
	}
	wasComplete := instance.AllHeld()
	instance.MarkHeld(event.SKU)

	var out []bus.Message
	if instance.AllHeld() && !wasComplete {
		msgs, err := o.command(messages.MarkReservedName, instance.OrderID,
			messages.MarkReserved{OrderID: instance.OrderID})
		if err != nil {
			return nil, err
		}
		out = append(out, msgs...)
	}
	msgs, err := o.maybeBeginCommit(instance)
	if err != nil {
		return nil, err
	}
	return append(out, msgs...), nil
}

func (o *Orchestrator) onAuthorized(instance *domain.Instance) ([]bus.Message, error) {
	if instance.Status == domain.StatusCompensating {
		// Mirror of the late-hold race: the void may already be acked, so
		// repeat it for the authorization that just landed.
		return o.command(messages.VoidAuthorizationName, instance.OrderID,
			messages.VoidAuthorization{OrderID: instance.OrderID})
	}
	if instance.PaymentAuthorized {
		return nil, nil
	}
	instance.PaymentAuthorized = true

	out, err := o.command(messages.MarkPaymentAuthorizedName, instance.OrderID,
		messages.MarkPaymentAuthorized{OrderID: instance.OrderID})
	if err != nil {
		return nil, err
	}
	msgs, err := o.maybeBeginCommit(instance)
	if err != nil {
		return nil, err
	}
	return append(out, msgs...), nil
}

// maybeBeginCommit enters phase two once both branches are in, re-arming the
// deadline so a stalled capture or commit surfaces in CheckDeadlines.
func (o *Orchestrator) maybeBeginCommit(instance *domain.Instance) ([]bus.Message, error) {
	if !instance.BeginCommit(o.clock().Add(o.joinDeadline)) {
		return nil, nil
	}
	return o.commitCommands(instance)
}

// onCaptured folds the capture acknowledgement. When compensation already
// started, the void raced ahead and was rejected against the captured funds,
// so the money comes back through a refund instead.
func (o *Orchestrator) onCaptured(instance *domain.Instance) ([]bus.Message, error) {
	instance.PaymentCaptured = true
	if instance.Status == domain.StatusCompensating {
		return o.command(messages.RefundPaymentName, instance.OrderID,
			messages.RefundPayment{OrderID: instance.OrderID})
	}
	return o.finalize(instance)
}

// finalize closes the saga once commit and capture both landed.
func (o *Orchestrator) finalize(instance *domain.Instance) ([]bus.Message, error) {
	if !instance.Fulfill() {
		return nil, nil
	}
	o.logger.Info("fulfillment saga completed", slog.String("orderId", instance.OrderID))
	return o.command(messages.ConfirmFulfillmentName, instance.OrderID,
		messages.ConfirmFulfillment{OrderID: instance.OrderID})
}

// fail flips the saga into compensation, records the failure on the order
// stream, and fires the rollback commands.
func (o *Orchestrator) fail(instance *domain.Instance, reason, orderMark string) ([]bus.Message, error) {
	if !instance.BeginCompensation(reason) {
		return nil, nil
	}
	o.logger.Info("fulfillment saga compensating",
		slog.String("orderId", instance.OrderID),
		slog.String("reason", reason))

	var out []bus.Message
	if orderMark != "" {
		msgs, err := o.markCommand(orderMark, instance.OrderID, reason)
		if err != nil {
			return nil, err
		}
		out = append(out, msgs...)
	}
	msgs, err := o.compensationCommands(instance)
	if err != nil {
		return nil, err
	}
	return append(out, msgs...), nil
}

// settle closes the saga once both rollback acknowledgements arrived.
func (o *Orchestrator) settle(instance *domain.Instance) ([]bus.Message, error) {
	if !instance.Cancel() {
		return nil, nil
	}
	o.logger.Info("fulfillment saga cancelled",
		slog.String("orderId", instance.OrderID),
		slog.String("reason", instance.FailureReason))
	return o.command(messages.CancelOrderName, instance.OrderID,
		messages.CancelOrder{OrderID: instance.OrderID, Reason: instance.FailureReason})
}

// onOrderCancelled handles a cancellation arriving from outside the saga,
// e.g. the customer. The order is already terminal; the saga still has to
// unwind whatever it holds.
func (o *Orchestrator) onOrderCancelled(instance *domain.Instance, event messages.OrderCancelled) ([]bus.Message, error) {
	return o.fail(instance, reasonOr(event.Reason, domain.ReasonCustomerCancelled), "")
}

// CheckDeadlines fails every saga that outran the deadline of its current
// phase, join or commit. Fail closed: a saga that cannot prove its step
// succeeded in time is rolled back. The returned commands must be published
// by the caller.
func (o *Orchestrator) CheckDeadlines(ctx context.Context) ([]bus.Message, error) {
	overdue, err := o.store.ListOverdue(ctx, o.clock())
	if err != nil {
		return nil, err
	}
	var out []bus.Message
	for _, instance := range overdue {
		msgs, err := o.fail(instance, domain.ReasonFulfillmentTimeout, "")
		if err != nil {
			return nil, err
		}
		if err := o.store.Save(ctx, instance); err != nil {
			return nil, err
		}
		out = append(out, msgs...)
	}
	return out, nil
}

// Resume re-issues the outstanding commands of every non-terminal saga after
// a restart. Downstream idempotency absorbs commands that already took
// effect before the crash.
func (o *Orchestrator) Resume(ctx context.Context) ([]bus.Message, error) {
	active, err := o.store.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	var out []bus.Message
	for _, instance := range active {
		var msgs []bus.Message
		switch instance.Status {
		case domain.StatusRunning:
			msgs, err = o.pendingKickoff(instance)
		case domain.StatusCommitting:
			msgs, err = o.commitCommands(instance)
		case domain.StatusCompensating:
			msgs, err = o.compensationCommands(instance)
		}
		if err != nil {
			return nil, err
		}
		if len(msgs) > 0 {
			o.logger.Info("fulfillment saga resumed",
				slog.String("orderId", instance.OrderID),
				slog.String("status", string(instance.Status)),
				slog.Int("commands", len(msgs)))
		}
		out = append(out, msgs...)
	}
	return out, nil
}

// kickoffCommands fires phase one: move the order to awaiting payment, hold
// every line, authorize the total. Reserve and authorize run in parallel.
func (o *Orchestrator) kickoffCommands(instance *domain.Instance) ([]bus.Message, error) {
	out, err := o.command(messages.MarkPaymentRequestedName, instance.OrderID,
		messages.MarkPaymentRequested{OrderID: instance.OrderID})
	if err != nil {
		return nil, err
	}
	msgs, err := o.pendingKickoff(instance)
	if err != nil {
		return nil, err
	}
	return append(out, msgs...), nil
}

// pendingKickoff emits only the phase-one commands still unacknowledged.
func (o *Orchestrator) pendingKickoff(instance *domain.Instance) ([]bus.Message, error) {
	var out []bus.Message
	for _, item := range instance.Items {
		if instance.HeldSKUs[item.SKU] {
			continue
		}
		msgs, err := o.command(messages.ReserveStockName, instance.OrderID, messages.ReserveStock{
			OrderID: instance.OrderID,
			SKU:     item.SKU,
			Qty:     item.Qty,
			TTL:     o.reservationTTL,
		})
		if err != nil {
			return nil, err
		}
		out = append(out, msgs...)
	}
	if !instance.PaymentAuthorized {
		msgs, err := o.command(messages.AuthorizePaymentName, instance.OrderID, messages.AuthorizePayment{
			OrderID:     instance.OrderID,
			AmountCents: instance.TotalCents(),
		})
		if err != nil {
			return nil, err
		}
		out = append(out, msgs...)
	}
	return out, nil
}

// commitCommands fires phase two: capture the funds, then firm up the holds.
func (o *Orchestrator) commitCommands(instance *domain.Instance) ([]bus.Message, error) {
	var out []bus.Message
	if !instance.PaymentCaptured {
		msgs, err := o.command(messages.CapturePaymentName, instance.OrderID, messages.CapturePayment{
			OrderID:     instance.OrderID,
			AmountCents: instance.TotalCents(),
		})
		if err != nil {
			return nil, err
		}
		out = append(out, msgs...)
	}
	if !instance.StockCommitted {
		msgs, err := o.command(messages.CommitReservationName, instance.OrderID,
			messages.CommitReservation{OrderID: instance.OrderID})
		if err != nil {
			return nil, err
		}
		out = append(out, msgs...)
	}
	return out, nil
}

// compensationCommands fires the rollback: return capacity and free the
// payment. Funds already captured are refunded, an open hold is voided.
func (o *Orchestrator) compensationCommands(instance *domain.Instance) ([]bus.Message, error) {
	var out []bus.Message
	if !instance.ReleaseAcked {
		msgs, err := o.command(messages.ReleaseReservationName, instance.OrderID,
			messages.ReleaseReservation{OrderID: instance.OrderID})
		if err != nil {
			return nil, err
		}
		out = append(out, msgs...)
	}
	if !instance.PaymentFreed {
		name, payload := messages.VoidAuthorizationName, any(messages.VoidAuthorization{OrderID: instance.OrderID})
		if instance.PaymentCaptured {
			name, payload = messages.RefundPaymentName, any(messages.RefundPayment{OrderID: instance.OrderID})
		}
		msgs, err := o.command(name, instance.OrderID, payload)
		if err != nil {
			return nil, err
		}
		out = append(out, msgs...)
	}
	return out, nil
}

func (o *Orchestrator) markCommand(name, orderID, reason string) ([]bus.Message, error) {
	switch name {
	case messages.MarkReservationFailedName:
		return o.command(name, orderID, messages.MarkReservationFailed{OrderID: orderID, Reason: reason})
	case messages.MarkPaymentFailedName:
		return o.command(name, orderID, messages.MarkPaymentFailed{OrderID: orderID, Reason: reason})
	default:
		return nil, nil
	}
}

func (o *Orchestrator) command(name, orderID string, payload any) ([]bus.Message, error) {
	msg, err := bus.New(name, orderID, payload)
	if err != nil {
		return nil, err
	}
	return []bus.Message{msg}, nil
}

func failureReason(reason string) string {
	if reason == "" {
		return domain.ReasonInsufficientStock
	}
	return reason
}

func reasonOr(reason, fallback string) string {
	if reason == "" {
		return fallback
	}
	return reason
}
