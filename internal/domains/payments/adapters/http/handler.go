// Package http exposes the payment admin surface: inspecting an
// authorization and issuing an out-of-band refund.
package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Apurer/go-order-fulfillment/internal/domains/payments/domain"
	"github.com/Apurer/go-order-fulfillment/internal/domains/payments/ports"
	sharederrors "github.com/Apurer/go-order-fulfillment/internal/shared/errors"
)

// Handler carries the payment endpoints.
type Handler struct {
	svc       ports.Service
	responder *sharederrors.ChainedResponder
}

// NewHandler wires the payments HTTP surface.
func NewHandler(svc ports.Service) *Handler {
	return &Handler{
		svc:       svc,
		responder: sharederrors.NewChainedResponder("", mapPaymentError),
	}
}

// Register mounts the routes on the router.
func (h *Handler) Register(router gin.IRouter) {
	router.GET("/payments/:orderId", h.getAuthorization)
	router.POST("/payments/:orderId/refund", h.refund)
}

type authorizationView struct {
	OrderID       string `json:"orderId"`
	AmountCents   int64  `json:"amountCents"`
	CapturedCents int64  `json:"capturedCents"`
	State         string `json:"state"`
	Reason        string `json:"reason,omitempty"`
}

func (h *Handler) getAuthorization(c *gin.Context) {
	auth, err := h.svc.GetByOrder(c.Request.Context(), c.Param("orderId"))
	if err != nil {
		h.responder.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toView(auth))
}

type refundBody struct {
	AmountCents int64 `json:"amountCents"`
}

func (h *Handler) refund(c *gin.Context) {
	var body refundBody
	_ = c.ShouldBindJSON(&body) // body is optional, zero refunds the full capture
	auth, changed, err := h.svc.Refund(c.Request.Context(), c.Param("orderId"), body.AmountCents)
	if err != nil {
		h.responder.RespondError(c, err)
		return
	}
	status := http.StatusOK
	if changed {
		status = http.StatusAccepted
	}
	c.JSON(status, toView(auth))
}

func toView(auth *domain.Authorization) authorizationView {
	return authorizationView{
		OrderID:       auth.OrderID,
		AmountCents:   auth.AmountCents,
		CapturedCents: auth.CapturedCents,
		State:         string(auth.State),
		Reason:        auth.Reason,
	}
}

func mapPaymentError(err error) (sharederrors.ProblemDetail, bool) {
	switch {
	case errors.Is(err, domain.ErrAuthorizationNotFound):
		return sharederrors.ErrNotFound.WithDetail("authorization not found"), true
	case errors.Is(err, domain.ErrInvalidPaymentState):
		return sharederrors.ErrConflict.WithDetail(err.Error()), true
	case errors.Is(err, domain.ErrInvalidAmount), errors.Is(err, domain.ErrRefundExceedsCapture):
		return sharederrors.ErrValidation.WithDetail(err.Error()), true
	default:
		return sharederrors.ProblemDetail{}, false
	}
}
