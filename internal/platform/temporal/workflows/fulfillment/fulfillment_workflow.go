package fulfillment

import (
	"go.temporal.io/sdk/workflow"

	"github.com/Apurer/go-order-fulfillment/internal/platform/temporal/sequences"
)

const (
	// OrderFulfillmentWorkflowName is the public identifier for registering the workflow.
	OrderFulfillmentWorkflowName = "fulfillment.workflows.OrderFulfillment"
	// OrderFulfillmentTaskQueue is the queue consumed by the worker processing fulfillment workflows.
	OrderFulfillmentTaskQueue = "ORDER_FULFILLMENT"
)

// OrderFulfillmentWorkflowInput captures the payload required to fulfill one order.
type OrderFulfillmentWorkflowInput struct {
	Command sequences.FulfillmentInput
	TraceID string
}

// OrderFulfillmentWorkflow orchestrates reservation and payment for a placed order.
func OrderFulfillmentWorkflow(ctx workflow.Context, input OrderFulfillmentWorkflowInput) (*sequences.FulfillmentOutcome, error) {
	logger := workflow.GetLogger(ctx)
	orderID := input.Command.OrderID
	logger.Info("OrderFulfillmentWorkflow started", withTraceID(input.TraceID, "orderId", orderID)...)
	outcome, err := sequences.RunFulfillmentSequence(ctx, input.Command)
	if err != nil {
		logger.Error("OrderFulfillmentWorkflow failed", withTraceID(input.TraceID, "orderId", orderID, "error", err)...)
		return nil, err
	}
	if outcome.Fulfilled {
		logger.Info("OrderFulfillmentWorkflow completed", withTraceID(input.TraceID, "orderId", orderID)...)
	} else {
		logger.Info("OrderFulfillmentWorkflow compensated", withTraceID(input.TraceID, "orderId", orderID, "reason", outcome.FailureReason)...)
	}
	return &outcome, nil
}

func withTraceID(traceID string, keyvals ...interface{}) []interface{} {
	if traceID == "" {
		return keyvals
	}
	return append(keyvals, "traceId", traceID)
}
