package http

import (
	"net/http"

	"github.com/fjod/smartcart/internal/catalog"
	"github.com/fjod/smartcart/internal/shopper"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type AdminHandler struct {
	responder
	catalog *shopper.Catalog
}

func NewAdminHandler(c *shopper.Catalog, log *zap.Logger) *AdminHandler {
	return &AdminHandler{responder: responder{log: log}, catalog: c}
}

func (h *AdminHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.Products(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, products)
}

func (h *AdminHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req catalog.ProductInput
	if !h.decode(w, r, &req) {
		return
	}
	p, err := h.catalog.Create(r.Context(), req)
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, p)
}

func (h *AdminHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	var req catalog.ProductInput
	if !h.decode(w, r, &req) {
		return
	}
	p, err := h.catalog.Update(r.Context(), chi.URLParam(r, "product_id"), req)
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, p)
}

func (h *AdminHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.Delete(r.Context(), chi.URLParam(r, "product_id")); err != nil {
		h.handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
