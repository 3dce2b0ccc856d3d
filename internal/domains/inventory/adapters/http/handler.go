// Package http exposes the stock administration surface. Reservations are
// message-driven; only stock levels are set over HTTP.
package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Apurer/go-order-fulfillment/internal/domains/inventory/domain"
	"github.com/Apurer/go-order-fulfillment/internal/domains/inventory/ports"
	sharederrors "github.com/Apurer/go-order-fulfillment/internal/shared/errors"
)

// Handler carries the stock admin endpoints.
type Handler struct {
	svc       ports.Service
	responder *sharederrors.ChainedResponder
}

// NewHandler wires the inventory HTTP surface.
func NewHandler(svc ports.Service) *Handler {
	return &Handler{
		svc:       svc,
		responder: sharederrors.NewChainedResponder("", mapInventoryError),
	}
}

// Register mounts the routes on the router.
func (h *Handler) Register(router gin.IRouter) {
	router.PUT("/stock/:sku", h.setStockLevel)
	router.GET("/stock/:sku", h.getAvailable)
}

type stockLevelBody struct {
	Qty int32 `json:"qty" binding:"min=0"`
}

type stockView struct {
	SKU       string `json:"sku"`
	Available int32  `json:"available"`
}

func (h *Handler) setStockLevel(c *gin.Context) {
	var body stockLevelBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.responder.BadRequest(c, err.Error())
		return
	}
	sku := c.Param("sku")
	if err := h.svc.SetStockLevel(c.Request.Context(), sku, body.Qty); err != nil {
		h.responder.RespondError(c, err)
		return
	}
	available, err := h.svc.Available(c.Request.Context(), sku)
	if err != nil {
		h.responder.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stockView{SKU: sku, Available: available})
}

func (h *Handler) getAvailable(c *gin.Context) {
	sku := c.Param("sku")
	available, err := h.svc.Available(c.Request.Context(), sku)
	if err != nil {
		h.responder.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stockView{SKU: sku, Available: available})
}

func mapInventoryError(err error) (sharederrors.ProblemDetail, bool) {
	switch {
	case errors.Is(err, domain.ErrReservationNotFound):
		return sharederrors.ErrNotFound.WithDetail("reservation not found"), true
	case errors.Is(err, domain.ErrInvalidHold):
		return sharederrors.ErrValidation.WithDetail(err.Error()), true
	default:
		return sharederrors.ProblemDetail{}, false
	}
}
