package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/ukydev/fleet-maintenance/internal/metrics"
	"github.com/ukydev/fleet-maintenance/internal/middleware"
	"github.com/ukydev/fleet-maintenance/internal/models"
)

// Run requests allowed per client per minute.
const runRateLimit = 6

// NewRouter wires the alert API behind JWT authentication.
func NewRouter(h *AlertHandler, authMW *middleware.AuthMiddleware, rateLimit *middleware.RateLimitMiddleware) *chi.Mux {
	router := chi.NewRouter()
	router.Use(chimw.RequestID)
	router.Use(middleware.RequestLogger)
	router.Use(chimw.Recoverer)
	router.Use(chimw.Heartbeat("/health"))
	router.Use(chimw.Timeout(runTimeout + 30*time.Second))
	router.Use(authMW.Authenticate)

	router.Get("/metrics", metrics.HandleMetrics)

	router.Route("/api", func(r chi.Router) {
		r.With(
			rateLimit.RateLimit(runRateLimit, 60),
			authMW.RequirePermission(models.ActionTriggerAlerts),
		).Post("/alerts/run", h.Run)

		r.With(authMW.RequirePermission(models.ActionViewNotifications)).
			Get("/notifications", h.ListNotifications)
	})

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Not found", http.StatusNotFound)
	})
	return router
}
