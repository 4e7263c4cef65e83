package http

import (
	"net/http"

	"github.com/fjod/smartcart/internal/shopper"
	"go.uber.org/zap"
)

type CheckoutHandler struct {
	responder
	shopper *shopper.Service
}

func NewCheckoutHandler(svc *shopper.Service, log *zap.Logger) *CheckoutHandler {
	return &CheckoutHandler{responder: responder{log: log}, shopper: svc}
}

type VerifyResponseDTO struct {
	Status string `json:"status"`
}

func (h *CheckoutHandler) Verify(w http.ResponseWriter, r *http.Request) {
	if err := h.shopper.Verify(r.Context()); err != nil {
		h.handleError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, VerifyResponseDTO{Status: "OK"})
}

func (h *CheckoutHandler) Pay(w http.ResponseWriter, r *http.Request) {
	order, err := h.shopper.Pay(r.Context())
	if err != nil {
		h.handleError(w, err)
		return
	}
	if id, ok := identityFromContext(r.Context()); ok {
		h.log.Info("order paid", zap.String("username", id.Username), zap.String("order_id", order.ID))
	}
	h.respondJSON(w, http.StatusCreated, order)
}

func (h *CheckoutHandler) Exit(w http.ResponseWriter, r *http.Request) {
	if err := h.shopper.ConfirmExit(r.Context()); err != nil {
		h.handleError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *CheckoutHandler) Orders(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.shopper.Orders(r.Context()))
}
