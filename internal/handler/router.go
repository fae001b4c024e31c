package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/xenking/fulfillment/internal/domain/auth"
	"github.com/xenking/fulfillment/pkg/health"
	"github.com/xenking/fulfillment/pkg/httpmiddleware"
)

// HeaderUserID identifies the calling user.
const HeaderUserID = "X-User-ID"

// NewRouter mounts health probes and the /api routes. Middlewares run inside
// the router, after route matching has begun, so they can see the route
// pattern.
func NewRouter(h *Handler, sec *SecurityHandler, hc *health.Health, middlewares ...httpmiddleware.Middleware) http.Handler {
	r := chi.NewRouter()
	for _, m := range middlewares {
		r.Use(m)
	}
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeStatus(w, http.StatusNotFound, "not_found", "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeStatus(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})

	r.Get("/livez", hc.LiveEndpoint)
	r.Get("/readyz", hc.ReadyEndpoint)

	r.Route("/api", func(r chi.Router) {
		r.Get("/products", h.ListProducts)

		r.Route("/carts", func(r chi.Router) {
			r.Get("/{cartID}", h.GetCart)
			r.Group(func(r chi.Router) {
				r.Use(sec.RequireAPIKey(auth.ScopeCarts))
				r.Post("/", h.CreateCart)
				r.Put("/{cartID}", h.UpdateCart)
			})
		})

		r.Route("/orders", func(r chi.Router) {
			r.With(sec.RequireAPIKey(auth.ScopeOrders)).Post("/", h.CreateOrder)
			r.Get("/{orderID}/payment", h.GetPayment)
			r.With(sec.RequireAPIKey(auth.ScopePayments)).Post("/{orderID}/payment", h.ExecutePayment)
		})
	})
	return r
}

func userID(r *http.Request) (uuid.UUID, error) {
	raw := r.Header.Get(HeaderUserID)
	if raw == "" {
		return uuid.Nil, badRequest("missing %s header", HeaderUserID)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, badRequest("invalid %s header: %v", HeaderUserID, err)
	}
	return id, nil
}

func pathID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, badRequest("invalid %s: %v", name, err)
	}
	return id, nil
}
