package http

import (
	"net/http"
	"time"

	"github.com/fjod/smartcart/internal/cart"
	"github.com/fjod/smartcart/internal/logger"
	"github.com/fjod/smartcart/internal/notify"
	"github.com/fjod/smartcart/internal/session"
	"github.com/fjod/smartcart/internal/shopper"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// ToastSource exposes the toast currently on screen.
type ToastSource interface {
	Current() (notify.Toast, bool)
}

type Deps struct {
	Shopper *shopper.Service
	Catalog *shopper.Catalog
	Cart    *cart.Engine
	Session *session.Engine
	Toasts  ToastSource
}

func NewRouter(d Deps, requestTimeout time.Duration, log *zap.Logger) http.Handler {
	sessionHandler := NewSessionHandler(d.Shopper, d.Session, log)
	cartHandler := NewCartHandler(d.Shopper, d.Cart, log)
	checkoutHandler := NewCheckoutHandler(d.Shopper, log)
	adminHandler := NewAdminHandler(d.Catalog, log)
	rs := responder{log: log}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(logger.RequestLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		rs.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/session", func(r chi.Router) {
			r.Get("/", sessionHandler.Current)
			r.Post("/login", sessionHandler.Login)
			r.Post("/logout", sessionHandler.Logout)
		})

		r.Get("/notification", func(w http.ResponseWriter, _ *http.Request) {
			toast, ok := d.Toasts.Current()
			if !ok {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			rs.respondJSON(w, http.StatusOK, toast)
		})

		r.Group(func(r chi.Router) {
			r.Use(RequireCapability(d.Session, session.CapShopping, log))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", cartHandler.GetCart)
				r.Post("/register", cartHandler.Register)
				r.Put("/budget", cartHandler.SetBudget)
				r.Post("/scan", cartHandler.Scan)
				r.Put("/items/{product_id}", cartHandler.UpdateQuantity)
				r.Delete("/items/{product_id}", cartHandler.RemoveItem)
			})
			r.Route("/checkout", func(r chi.Router) {
				r.Post("/verify", checkoutHandler.Verify)
				r.Post("/pay", checkoutHandler.Pay)
			})
			r.Post("/exit", checkoutHandler.Exit)
			r.Get("/orders", checkoutHandler.Orders)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(RequireCapability(d.Session, session.CapCatalog, log))

			r.Get("/products", adminHandler.ListProducts)
			r.Post("/products", adminHandler.CreateProduct)
			r.Put("/products/{product_id}", adminHandler.UpdateProduct)
			r.Delete("/products/{product_id}", adminHandler.DeleteProduct)
		})
	})

	return otelhttp.NewHandler(r, "smartcart")
}
