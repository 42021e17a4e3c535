package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes configures all HTTP routes. The tracking endpoints are called
// cross-origin from arbitrary customer pages, so CORS is wide open there;
// request integrity comes from the HMAC protocol, not the origin.
func SetupRoutes(h *Handlers) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	// Health check and operational metrics
	r.Get("/health", h.HealthCheck)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Tracking protocol (browser script -> server)
	r.Post("/collect", h.HandleCollect)
	r.Post("/event", h.HandleEvent)
	r.Get("/script/{userCode}/{campaignCode}.js", h.HandleScript)

	// Affiliate platform callbacks
	r.Get("/platform-lead/{platformSlug}/{userCode}", h.HandlePlatformLead)

	return r
}
