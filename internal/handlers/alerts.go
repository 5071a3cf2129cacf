package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-maintenance/internal/alerting"
	"github.com/ukydev/fleet-maintenance/internal/middleware"
	"github.com/ukydev/fleet-maintenance/internal/models"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
	runTimeout       = 5 * time.Minute
)

// Runner performs one alert run.
type Runner interface {
	Run(ctx context.Context) (alerting.Report, error)
}

// NotificationLister reads the newest notifications.
type NotificationLister interface {
	List(ctx context.Context, limit int64) ([]models.Alert, error)
}

// AlertHandler exposes on-demand runs and the notification feed.
type AlertHandler struct {
	runner        Runner
	notifications NotificationLister

	// one run at a time per process
	running sync.Mutex
}

// NewAlertHandler creates a new alert handler
func NewAlertHandler(runner Runner, notifications NotificationLister) *AlertHandler {
	return &AlertHandler{runner: runner, notifications: notifications}
}

// Run triggers an alert run and returns its report.
func (h *AlertHandler) Run(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !h.running.TryLock() {
		http.Error(w, "An alert run is already in progress", http.StatusConflict)
		return
	}
	defer h.running.Unlock()

	// a dropped client connection must not abort a half-finished run
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), runTimeout)
	defer cancel()

	fields := log.Fields{}
	if claims, ok := middleware.GetUserFromContext(r.Context()); ok {
		fields["triggered_by"] = claims.Username
	}

	report, err := h.runner.Run(ctx)
	if err != nil {
		log.WithFields(fields).WithError(err).Error("On-demand alert run failed")
		http.Error(w, "Alert run failed", http.StatusInternalServerError)
		return
	}

	log.WithFields(fields).WithField("run_id", report.RunID).Info("On-demand alert run completed")
	writeJSON(w, http.StatusOK, report)
}

// ListNotifications returns the newest notifications, newest first.
func (h *AlertHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := int64(defaultListLimit)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(n, maxListLimit)
	}

	alerts, err := h.notifications.List(r.Context(), limit)
	if err != nil {
		log.WithError(err).Error("Failed to list notifications")
		http.Error(w, "Failed to list notifications", http.StatusInternalServerError)
		return
	}
	if alerts == nil {
		alerts = []models.Alert{}
	}
	writeJSON(w, http.StatusOK, alerts)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Warn("Failed to encode response")
	}
}
