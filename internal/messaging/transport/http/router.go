package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chi_middleware "github.com/go-chi/chi/v5/middleware"
)

// RouterDeps bundles what the HTTP surface needs.
type RouterDeps struct {
	MessageHandler      *MessageHandler
	ProvisioningHandler *ProvisioningHandler
	WebhookHandler      *WebhookHandler
	AuthMiddleware      func(http.Handler) http.Handler
	// HealthCheck reports store reachability; nil means always healthy.
	HealthCheck func(ctx context.Context) error
}

// NewRouter assembles the service's HTTP routes. Caller-facing routes sit
// behind JWT auth; webhook routes are open, each adapter authenticating
// its own vendor's callbacks.
func NewRouter(deps RouterDeps) chi.Router {
	r := chi.NewRouter()
	r.Use(chi_middleware.RequestID)
	r.Use(chi_middleware.RealIP)
	r.Use(chi_middleware.Recoverer)
	r.Use(chi_middleware.Timeout(60 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if deps.HealthCheck != nil {
			if err := deps.HealthCheck(r.Context()); err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusServiceUnavailable)
				_ = json.NewEncoder(w).Encode(map[string]string{"status": "unavailable"})
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	r.Route("/webhooks/{provider_name}", func(wr chi.Router) {
		wr.Post("/inbound", deps.WebhookHandler.HandleInbound)
		wr.Post("/status", deps.WebhookHandler.HandleStatus)
	})

	r.Route("/api/v1", func(v1 chi.Router) {
		v1.Use(deps.AuthMiddleware)

		v1.Post("/messages", deps.MessageHandler.Send)
		v1.Get("/messages", deps.MessageHandler.List)

		v1.Post("/numbers/search", deps.ProvisioningHandler.Search)
		v1.Post("/numbers", deps.ProvisioningHandler.Purchase)
		v1.Get("/numbers", deps.ProvisioningHandler.List)
		v1.Post("/numbers/{number_id}/attach", deps.ProvisioningHandler.RetryAttach)
	})

	return r
}
