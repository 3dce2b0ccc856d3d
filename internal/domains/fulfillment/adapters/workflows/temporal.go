package workflows

import (
	"context"
	"errors"
	"fmt"
	"time"

	oteltrace "go.opentelemetry.io/otel/trace"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"

	orderdomain "github.com/Apurer/go-order-fulfillment/internal/domains/orders/domain"
	orderports "github.com/Apurer/go-order-fulfillment/internal/domains/orders/ports"
	sagaactivities "github.com/Apurer/go-order-fulfillment/internal/platform/temporal/activities/fulfillment"
	"github.com/Apurer/go-order-fulfillment/internal/platform/temporal/sequences"
	sagaworkflows "github.com/Apurer/go-order-fulfillment/internal/platform/temporal/workflows/fulfillment"
)

var _ orderports.FulfillmentStarter = (*Temporal)(nil)

// Temporal starts order fulfillment as a durable workflow on a Temporal
// cluster. The workflow ID is derived from the order ID, so a redelivered
// place request attaches to the run already in flight.
type Temporal struct {
	client         client.Client
	orders         orderports.Service
	taskQueue      string
	joinDeadline   time.Duration
	reservationTTL time.Duration
}

// TemporalOption customizes the Temporal starter.
type TemporalOption func(*Temporal)

// WithJoinDeadline bounds the parallel reserve and authorize phase.
func WithJoinDeadline(d time.Duration) TemporalOption {
	return func(t *Temporal) {
		if d > 0 {
			t.joinDeadline = d
		}
	}
}

// WithReservationTTL sets how long stock holds stay valid.
func WithReservationTTL(d time.Duration) TemporalOption {
	return func(t *Temporal) {
		if d > 0 {
			t.reservationTTL = d
		}
	}
}

// NewTemporal wires a Temporal client into the starter.
func NewTemporal(c client.Client, orders orderports.Service, opts ...TemporalOption) *Temporal {
	t := &Temporal{
		client:         c,
		orders:         orders,
		taskQueue:      sagaworkflows.OrderFulfillmentTaskQueue,
		joinDeadline:   30 * time.Second,
		reservationTTL: 15 * time.Minute,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// PlaceOrder starts the durable workflow and waits for its outcome.
func (t *Temporal) PlaceOrder(ctx context.Context, orderID string, items []orderdomain.LineItem) (*orderdomain.Order, error) {
	if t == nil || t.client == nil {
		return nil, errors.New("temporal fulfillment workflows not configured")
	}
	workflowID := fmt.Sprintf("order-fulfillment-%s", orderID)
	options := client.StartWorkflowOptions{
		ID:        workflowID,
		TaskQueue: t.taskQueue,
	}
	input := sagaworkflows.OrderFulfillmentWorkflowInput{
		Command: sequences.FulfillmentInput{
			OrderID:        orderID,
			Items:          toActivityItems(items),
			JoinDeadline:   t.joinDeadline,
			ReservationTTL: t.reservationTTL,
		},
		TraceID: workflowTraceID(ctx),
	}
	run, err := t.client.ExecuteWorkflow(ctx, options, sagaworkflows.OrderFulfillmentWorkflow, input)
	if err != nil {
		var alreadyStarted *serviceerror.WorkflowExecutionAlreadyStarted
		if errors.As(err, &alreadyStarted) {
			existingRun := t.client.GetWorkflow(ctx, workflowID, alreadyStarted.RunId)
			return t.awaitOutcome(ctx, orderID, existingRun)
		}
		return nil, err
	}
	return t.awaitOutcome(ctx, orderID, run)
}

func (t *Temporal) awaitOutcome(ctx context.Context, orderID string, run client.WorkflowRun) (*orderdomain.Order, error) {
	var outcome sequences.FulfillmentOutcome
	if err := run.Get(ctx, &outcome); err != nil {
		return nil, err
	}
	return t.orders.GetByID(ctx, orderID)
}

func toActivityItems(items []orderdomain.LineItem) []sagaactivities.Item {
	converted := make([]sagaactivities.Item, 0, len(items))
	for _, item := range items {
		converted = append(converted, sagaactivities.Item{
			SKU:            item.SKU,
			Qty:            item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
		})
	}
	return converted
}

func workflowTraceID(ctx context.Context) string {
	span := oteltrace.SpanFromContext(ctx)
	if span == nil {
		return ""
	}
	spanCtx := span.SpanContext()
	if !spanCtx.IsValid() {
		return ""
	}
	return spanCtx.TraceID().String()
}
