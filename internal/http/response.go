package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fjod/smartcart/internal/backend"
	"github.com/fjod/smartcart/internal/cart"
	"github.com/fjod/smartcart/internal/catalog"
	"github.com/fjod/smartcart/internal/session"
	"github.com/fjod/smartcart/internal/shopper"
	"go.uber.org/zap"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

type responder struct {
	log *zap.Logger
}

func (rs responder) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		rs.log.Error("failed to encode response", zap.Error(err))
	}
}

func (rs responder) respondError(w http.ResponseWriter, status int, code, message string) {
	rs.respondJSON(w, status, ErrorResponse{Error: message, Code: code})
}

// errorMapping is checked in order; the first match wins.
var errorMapping = []struct {
	err    error
	status int
	code   string
}{
	{session.ErrEmptyCredentials, http.StatusBadRequest, "invalid_credentials"},
	{session.ErrAlreadyAuthenticated, http.StatusConflict, "already_authenticated"},
	{session.ErrUnauthenticated, http.StatusUnauthorized, "unauthenticated"},
	{session.ErrForbidden, http.StatusForbidden, "permission_denied"},
	{cart.ErrInvalidBudget, http.StatusBadRequest, "invalid_budget"},
	{catalog.ErrInvalidProduct, http.StatusBadRequest, "invalid_product"},
	{catalog.ErrProductNotFound, http.StatusNotFound, "not_found"},
	{shopper.ErrProductNotFound, http.StatusNotFound, "not_found"},
	{shopper.ErrEmptyCart, http.StatusUnprocessableEntity, "empty_cart"},
	{shopper.ErrCartMismatch, http.StatusConflict, "cart_mismatch"},
	{shopper.ErrNotVerified, http.StatusConflict, "not_verified"},
	{shopper.ErrCheckoutInProgress, http.StatusConflict, "checkout_in_progress"},
	{shopper.ErrPaymentFailed, http.StatusPaymentRequired, "payment_failed"},
	{backend.ErrUnavailable, http.StatusServiceUnavailable, "service_unavailable"},
	{context.DeadlineExceeded, http.StatusGatewayTimeout, "timeout"},
}

func (rs responder) handleError(w http.ResponseWriter, err error) {
	for _, m := range errorMapping {
		if errors.Is(err, m.err) {
			rs.respondError(w, m.status, m.code, err.Error())
			return
		}
	}
	rs.log.Error("unhandled error", zap.Error(err))
	rs.respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
}

func (rs responder) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		rs.respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return false
	}
	return true
}
