// Package http exposes the narrow order ingress: placing, inspecting, and
// cancelling orders. Everything else in the flow is message-driven.
package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Apurer/go-order-fulfillment/internal/domains/orders/adapters/messaging"
	"github.com/Apurer/go-order-fulfillment/internal/domains/orders/application"
	"github.com/Apurer/go-order-fulfillment/internal/domains/orders/domain"
	"github.com/Apurer/go-order-fulfillment/internal/domains/orders/ports"
	"github.com/Apurer/go-order-fulfillment/internal/platform/bus"
	sharederrors "github.com/Apurer/go-order-fulfillment/internal/shared/errors"
)

// Handler carries the order endpoints.
type Handler struct {
	svc        ports.Service
	starter    ports.FulfillmentStarter
	projection ports.Projection
	publisher  bus.Publisher
	responder  *sharederrors.ChainedResponder
}

// NewHandler wires the order HTTP surface.
func NewHandler(svc ports.Service, starter ports.FulfillmentStarter, projection ports.Projection, publisher bus.Publisher) *Handler {
	return &Handler{
		svc:        svc,
		starter:    starter,
		projection: projection,
		publisher:  publisher,
		responder:  sharederrors.NewChainedResponder("", mapOrderError),
	}
}

// Register mounts the routes on the router.
func (h *Handler) Register(router gin.IRouter) {
	router.POST("/orders", h.placeOrder)
	router.GET("/orders", h.listOrders)
	router.GET("/orders/:id", h.getOrder)
	router.POST("/orders/:id/cancel", h.cancelOrder)
}

type lineItemBody struct {
	SKU            string `json:"sku" binding:"required"`
	Quantity       int32  `json:"quantity" binding:"required"`
	UnitPriceCents int64  `json:"unitPriceCents"`
}

type placeOrderBody struct {
	OrderID string         `json:"orderId"`
	Items   []lineItemBody `json:"items" binding:"required"`
}

type cancelOrderBody struct {
	Reason string `json:"reason"`
}

type orderView struct {
	OrderID       string         `json:"orderId"`
	Status        string         `json:"status"`
	Items         []lineItemBody `json:"items"`
	TotalCents    int64          `json:"totalCents"`
	FailureReason string         `json:"failureReason,omitempty"`
	Version       int64          `json:"version"`
}

func (h *Handler) placeOrder(c *gin.Context) {
	var body placeOrderBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.responder.BadRequest(c, err.Error())
		return
	}
	orderID := body.OrderID
	if orderID == "" {
		orderID = uuid.NewString()
	}
	items := make([]domain.LineItem, 0, len(body.Items))
	for _, item := range body.Items {
		items = append(items, domain.LineItem{
			SKU:            item.SKU,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
		})
	}
	order, err := h.starter.PlaceOrder(c.Request.Context(), orderID, items)
	if err != nil {
		h.responder.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toView(order))
}

func (h *Handler) getOrder(c *gin.Context) {
	order, err := h.svc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.responder.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toView(order))
}

func (h *Handler) listOrders(c *gin.Context) {
	orders, err := h.projection.List(c.Request.Context())
	if err != nil {
		h.responder.RespondError(c, err)
		return
	}
	views := make([]orderView, 0, len(orders))
	for _, order := range orders {
		views = append(views, toView(order))
	}
	c.JSON(http.StatusOK, views)
}

// cancelOrder terminates the order and lets the saga compensate whatever the
// flow already acquired.
func (h *Handler) cancelOrder(c *gin.Context) {
	var body cancelOrderBody
	_ = c.ShouldBindJSON(&body) // body is optional
	reason := body.Reason
	if reason == "" {
		reason = "CustomerCancelled"
	}
	result, err := h.svc.Cancel(c.Request.Context(), c.Param("id"), reason)
	if err != nil {
		h.responder.RespondError(c, err)
		return
	}
	if len(result.Events) > 0 && h.publisher != nil {
		msgs, err := messaging.EventMessages(result.Order.ID, result.Events)
		if err == nil {
			_ = h.publisher.Publish(c.Request.Context(), msgs...)
		}
	}
	c.JSON(http.StatusAccepted, toView(result.Order))
}

func toView(order *domain.Order) orderView {
	view := orderView{
		OrderID:       order.ID,
		Status:        string(order.Status),
		TotalCents:    order.TotalCents(),
		FailureReason: order.FailureReason,
		Version:       order.Version,
	}
	for _, item := range order.Items {
		view.Items = append(view.Items, lineItemBody{
			SKU:            item.SKU,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
		})
	}
	return view
}

func mapOrderError(err error) (sharederrors.ProblemDetail, bool) {
	switch {
	case errors.Is(err, ports.ErrNotFound):
		return sharederrors.ErrNotFound.WithDetail("order not found"), true
	case errors.Is(err, application.ErrInvalidInput), errors.Is(err, domain.ErrInvalidOrder):
		return sharederrors.ErrValidation.WithDetail(err.Error()), true
	case errors.Is(err, domain.ErrInvalidStateTransition):
		return sharederrors.ErrConflict.WithDetail(err.Error()), true
	default:
		return sharederrors.ProblemDetail{}, false
	}
}
