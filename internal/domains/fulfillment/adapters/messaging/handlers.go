// Package messaging subscribes the saga orchestrator to the integration
// events it reacts to.
package messaging

import (
	"github.com/Apurer/go-order-fulfillment/internal/domains/fulfillment/application"
	"github.com/Apurer/go-order-fulfillment/internal/platform/bus"
	"github.com/Apurer/go-order-fulfillment/internal/shared/messages"
)

// HandlerName keys inbox deduplication for the orchestrator.
const HandlerName = "fulfillment"

// Register subscribes the orchestrator on the dispatcher.
func Register(dispatcher *bus.Dispatcher, orchestrator *application.Orchestrator) {
	dispatcher.Subscribe(HandlerName, orchestrator.Handle,
		messages.OrderPlacedName,
		messages.OrderCancelledName,
		messages.ReservationHeldName,
		messages.ReservationFailedName,
		messages.ReservationCommittedName,
		messages.ReservationReleasedName,
		messages.ReservationExpiredName,
		messages.PaymentAuthorizedName,
		messages.AuthorizationDeniedName,
		messages.PaymentCapturedName,
		messages.AuthorizationVoidedName,
		messages.PaymentRefundedName,
	)
}
