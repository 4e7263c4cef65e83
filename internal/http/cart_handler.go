package http

import (
	"net/http"

	"github.com/fjod/smartcart/internal/cart"
	"github.com/fjod/smartcart/internal/domain"
	"github.com/fjod/smartcart/internal/shopper"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type CartHandler struct {
	responder
	shopper *shopper.Service
	cart    *cart.Engine
}

func NewCartHandler(svc *shopper.Service, c *cart.Engine, log *zap.Logger) *CartHandler {
	return &CartHandler{responder: responder{log: log}, shopper: svc, cart: c}
}

type CartResponseDTO struct {
	CartID      string              `json:"cartId,omitempty"`
	Items       []domain.CartLine   `json:"items"`
	TotalAmount decimal.Decimal     `json:"totalAmount"`
	Budget      decimal.NullDecimal `json:"budget"`
	ItemCount   int                 `json:"itemCount"`
	Revision    uint64              `json:"revision"`
}

type RegisterResponseDTO struct {
	CartID string `json:"cartId"`
}

type BudgetRequestDTO struct {
	Amount decimal.Decimal `json:"amount"`
}

type ScanRequestDTO struct {
	Barcode string `json:"barcode"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

func (h *CartHandler) cartResponse() CartResponseDTO {
	snap := h.cart.Snapshot()
	count := 0
	for _, l := range snap.Lines {
		count += l.Quantity
	}
	return CartResponseDTO{
		CartID:      h.shopper.CartID(),
		Items:       snap.Lines,
		TotalAmount: snap.TotalAmount,
		Budget:      snap.Budget,
		ItemCount:   count,
		Revision:    snap.Revision,
	}
}

func (h *CartHandler) GetCart(w http.ResponseWriter, _ *http.Request) {
	h.respondJSON(w, http.StatusOK, h.cartResponse())
}

func (h *CartHandler) Register(w http.ResponseWriter, r *http.Request) {
	id, err := h.shopper.RegisterCart(r.Context())
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, RegisterResponseDTO{CartID: id})
}

func (h *CartHandler) SetBudget(w http.ResponseWriter, r *http.Request) {
	var req BudgetRequestDTO
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.shopper.SetBudget(r.Context(), req.Amount); err != nil {
		h.handleError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, h.cartResponse())
}

func (h *CartHandler) Scan(w http.ResponseWriter, r *http.Request) {
	var req ScanRequestDTO
	if !h.decode(w, r, &req) {
		return
	}
	if _, err := h.shopper.Scan(r.Context(), req.Barcode); err != nil {
		h.handleError(w, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, h.cartResponse())
}

func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "product_id")

	var req UpdateQuantityRequestDTO
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.shopper.UpdateQuantity(r.Context(), productID, req.Quantity); err != nil {
		h.handleError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, h.cartResponse())
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "product_id")

	if err := h.shopper.RemoveItem(r.Context(), productID); err != nil {
		h.handleError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, h.cartResponse())
}
