package http

import (
	"net/http"

	"github.com/fjod/smartcart/internal/domain"
	"github.com/fjod/smartcart/internal/session"
	"github.com/fjod/smartcart/internal/shopper"
	"go.uber.org/zap"
)

type SessionHandler struct {
	responder
	shopper *shopper.Service
	session *session.Engine
}

func NewSessionHandler(svc *shopper.Service, sess *session.Engine, log *zap.Logger) *SessionHandler {
	return &SessionHandler{responder: responder{log: log}, shopper: svc, session: sess}
}

type LoginRequestDTO struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type SessionResponseDTO struct {
	Authenticated bool             `json:"authenticated"`
	User          *domain.Identity `json:"user,omitempty"`
}

func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequestDTO
	if !h.decode(w, r, &req) {
		return
	}

	id, err := h.shopper.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, SessionResponseDTO{Authenticated: true, User: &id})
}

func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.shopper.Logout(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) Current(w http.ResponseWriter, _ *http.Request) {
	id, ok := h.session.Current()
	if !ok {
		h.respondJSON(w, http.StatusOK, SessionResponseDTO{})
		return
	}
	h.respondJSON(w, http.StatusOK, SessionResponseDTO{Authenticated: true, User: &id})
}
