package api

import (
	"net/http"

	"github.com/Priya8975/signalcore-billing/internal/billing"
	ws "github.com/Priya8975/signalcore-billing/internal/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterDeps bundles what the HTTP surface needs. Hub and Dashboard are
// optional.
type RouterDeps struct {
	Store     DashboardStore
	Webhook   http.Handler
	Hub       *ws.Hub
	Dashboard *DashboardHandler
	Tiers     *billing.TierTable
}

// NewRouter creates and configures the HTTP router.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	contractorHandler := NewContractorHandler(deps.Store, deps.Tiers)
	activityHandler := NewActivityHandler(deps.Store)

	// The webhook handler answers every method itself, OPTIONS included, so
	// non-POST requests get a JSON 405. It stays outside the CORS group.
	r.Handle("/api/webhooks/stripe", deps.Webhook)
	r.Handle("/api/stripe-webhook", deps.Webhook)

	r.Handle("/metrics", promhttp.Handler())

	// CORS for dashboard
	r.Group(func(r chi.Router) {
		r.Use(corsMiddleware)

		if deps.Hub != nil {
			r.Get("/ws", deps.Hub.HandleWebSocket)
		}

		r.Route("/api/v1", func(r chi.Router) {
			dashboardGet(r, "/health", HealthHandler(deps.Store))

			r.Route("/contractors", func(r chi.Router) {
				dashboardGet(r, "/", contractorHandler.List)
				dashboardGet(r, "/{id}", contractorHandler.Get)
			})

			dashboardGet(r, "/activities", activityHandler.List)

			if deps.Dashboard != nil {
				dashboardGet(r, "/stats", deps.Dashboard.Stats)
				dashboardGet(r, "/tiers", deps.Dashboard.Tiers)
			}
		})
	})

	return r
}

// dashboardGet registers a dashboard GET route plus an OPTIONS route so browser
// preflights reach corsMiddleware.
func dashboardGet(r chi.Router, pattern string, h http.HandlerFunc) {
	r.Get(pattern, h)
	r.Options(pattern, func(w http.ResponseWriter, r *http.Request) {})
}

// corsMiddleware adds CORS headers for dashboard development.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Stripe-Signature")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
