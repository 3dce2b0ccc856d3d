// Package sequences holds the activity orderings the workflows execute.
package sequences

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	sagaactivities "github.com/Apurer/go-order-fulfillment/internal/platform/temporal/activities/fulfillment"
)

// FulfillmentInput parameterizes one saga run.
type FulfillmentInput struct {
	OrderID        string
	Items          []sagaactivities.Item
	JoinDeadline   time.Duration
	ReservationTTL time.Duration
}

// FulfillmentOutcome is the workflow result.
type FulfillmentOutcome struct {
	OrderID       string
	Fulfilled     bool
	FailureReason string
}

// RunFulfillmentSequence drives the saga: reserve and authorize in parallel,
// then commit and capture, compensating on any decline or deadline overrun.
func RunFulfillmentSequence(ctx workflow.Context, input FulfillmentInput) (FulfillmentOutcome, error) {
	logger := workflow.GetLogger(ctx)
	ref := sagaactivities.OrderRef{OrderID: input.OrderID}
	total := totalCents(input.Items)

	stepOptions := workflow.ActivityOptions{
		StartToCloseTimeout: time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    100 * time.Millisecond,
			BackoffCoefficient: 2.0,
			MaximumInterval:    10 * time.Second,
			MaximumAttempts:    5,
		},
	}
	// The join phase fails closed: whatever is not acknowledged before the
	// deadline counts as failed and triggers compensation.
	joinOptions := stepOptions
	if input.JoinDeadline > 0 {
		joinOptions.ScheduleToCloseTimeout = input.JoinDeadline
	}
	stepCtx := workflow.WithActivityOptions(ctx, stepOptions)
	joinCtx := workflow.WithActivityOptions(ctx, joinOptions)

	if err := workflow.ExecuteActivity(stepCtx, sagaactivities.PlaceOrderActivityName,
		sagaactivities.PlaceOrderInput{OrderID: input.OrderID, Items: input.Items}).Get(ctx, nil); err != nil {
		return FulfillmentOutcome{OrderID: input.OrderID}, err
	}
	if err := workflow.ExecuteActivity(stepCtx, sagaactivities.MarkPaymentRequestedActivityName, ref).Get(ctx, nil); err != nil {
		return FulfillmentOutcome{OrderID: input.OrderID}, err
	}

	// Phase one: all holds and the authorization run in parallel.
	reserveFutures := make([]workflow.Future, 0, len(input.Items))
	for _, item := range input.Items {
		reserveFutures = append(reserveFutures, workflow.ExecuteActivity(joinCtx,
			sagaactivities.ReserveStockActivityName, sagaactivities.ReserveInput{
				OrderID: input.OrderID,
				SKU:     item.SKU,
				Qty:     item.Qty,
				TTL:     input.ReservationTTL,
			}))
	}
	authorizeFuture := workflow.ExecuteActivity(joinCtx,
		sagaactivities.AuthorizePaymentActivityName,
		sagaactivities.AuthorizeInput{OrderID: input.OrderID, AmountCents: total})

	failureReason := ""
	paymentFailure := false
	for _, future := range reserveFutures {
		var outcome sagaactivities.ReserveOutcome
		if err := future.Get(ctx, &outcome); err != nil {
			failureReason = "FulfillmentTimeout"
		} else if !outcome.Held {
			failureReason = reasonOr(outcome.Reason, "InsufficientStock")
		}
	}
	var authorized sagaactivities.AuthorizeOutcome
	if err := authorizeFuture.Get(ctx, &authorized); err != nil {
		if failureReason == "" {
			failureReason = "FulfillmentTimeout"
		}
	} else if !authorized.Approved {
		if failureReason == "" {
			failureReason = reasonOr(authorized.Reason, "AuthorizationDenied")
			paymentFailure = true
		}
	}
	if failureReason != "" {
		return compensate(ctx, stepCtx, input.OrderID, failureReason, paymentFailure)
	}

	if err := workflow.ExecuteActivity(stepCtx, sagaactivities.MarkReservedActivityName, ref).Get(ctx, nil); err != nil {
		return FulfillmentOutcome{OrderID: input.OrderID}, err
	}
	if err := workflow.ExecuteActivity(stepCtx, sagaactivities.MarkPaymentAuthorizedActivityName, ref).Get(ctx, nil); err != nil {
		return FulfillmentOutcome{OrderID: input.OrderID}, err
	}

	// Phase two: move the money, then firm up the holds. A hold that expired
	// under us surfaces on commit and unwinds through the refund path.
	if err := workflow.ExecuteActivity(stepCtx, sagaactivities.CapturePaymentActivityName,
		sagaactivities.AuthorizeInput{OrderID: input.OrderID, AmountCents: total}).Get(ctx, nil); err != nil {
		return FulfillmentOutcome{OrderID: input.OrderID}, err
	}
	var committed sagaactivities.CommitOutcome
	if err := workflow.ExecuteActivity(stepCtx, sagaactivities.CommitReservationActivityName, ref).Get(ctx, &committed); err != nil {
		return FulfillmentOutcome{OrderID: input.OrderID}, err
	}
	if !committed.Committed {
		return compensate(ctx, stepCtx, input.OrderID, reasonOr(committed.Reason, "ReservationExpired"), false)
	}
	if err := workflow.ExecuteActivity(stepCtx, sagaactivities.ConfirmFulfillmentActivityName, ref).Get(ctx, nil); err != nil {
		return FulfillmentOutcome{OrderID: input.OrderID}, err
	}

	logger.Info("fulfillment sequence completed", "orderId", input.OrderID)
	return FulfillmentOutcome{OrderID: input.OrderID, Fulfilled: true}, nil
}

// compensate unwinds both branches and cancels the order. Every step is
// idempotent, so a workflow replay re-runs it safely.
func compensate(ctx workflow.Context, stepCtx workflow.Context, orderID, reason string, paymentFailure bool) (FulfillmentOutcome, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("fulfillment sequence compensating", "orderId", orderID, "reason", reason)
	ref := sagaactivities.OrderRef{OrderID: orderID}

	if err := workflow.ExecuteActivity(stepCtx, sagaactivities.RecordFailureActivityName,
		sagaactivities.FailureInput{OrderID: orderID, Reason: reason, Payment: paymentFailure}).Get(ctx, nil); err != nil {
		return FulfillmentOutcome{OrderID: orderID}, err
	}
	if err := workflow.ExecuteActivity(stepCtx, sagaactivities.ReleaseReservationActivityName, ref).Get(ctx, nil); err != nil {
		return FulfillmentOutcome{OrderID: orderID}, err
	}
	if err := workflow.ExecuteActivity(stepCtx, sagaactivities.FreePaymentActivityName, ref).Get(ctx, nil); err != nil {
		return FulfillmentOutcome{OrderID: orderID}, err
	}
	if err := workflow.ExecuteActivity(stepCtx, sagaactivities.CancelOrderActivityName,
		sagaactivities.CancelInput{OrderID: orderID, Reason: reason}).Get(ctx, nil); err != nil {
		return FulfillmentOutcome{OrderID: orderID}, err
	}
	return FulfillmentOutcome{OrderID: orderID, FailureReason: reason}, nil
}

func totalCents(items []sagaactivities.Item) int64 {
	var total int64
	for _, item := range items {
		total += item.UnitPriceCents * int64(item.Qty)
	}
	return total
}

func reasonOr(reason, fallback string) string {
	if reason == "" {
		return fallback
	}
	return reason
}
