// Package alerting runs the maintenance checks over the fleet and turns their
// findings into stored, deduplicated notifications.
package alerting

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-maintenance/internal/dedup"
	"github.com/ukydev/fleet-maintenance/internal/email"
	"github.com/ukydev/fleet-maintenance/internal/maintenance"
	"github.com/ukydev/fleet-maintenance/internal/metrics"
	"github.com/ukydev/fleet-maintenance/internal/models"
	"github.com/ukydev/fleet-maintenance/internal/publish"
)

type SettingsSource interface {
	Load(ctx context.Context) (*models.Settings, error)
}

type FleetSource interface {
	ActiveVehicles(ctx context.Context, historyLimit int) ([]models.Vehicle, error)
	RecentMaintenance(ctx context.Context, since time.Time) ([]models.Maintenance, error)
}

// Sink persists a notification, filling in its ID.
type Sink interface {
	Create(ctx context.Context, alert *models.Alert) error
}

type RecipientSource interface {
	Recipients(ctx context.Context) ([]models.User, error)
}

type Notifier interface {
	Notify(ctx context.Context, alert models.Alert, vehicle *models.Vehicle, recipients []models.User) []email.Delivery
}

// Deps are the collaborators of an Engine. Settings, Fleet, Sink and Gate are
// required; the rest may be left nil.
type Deps struct {
	Settings     SettingsSource
	Fleet        FleetSource
	Sink         Sink
	Gate         dedup.Gate
	Recipients   RecipientSource
	Notifier     Notifier
	Publisher    publish.Publisher
	Evaluator    *maintenance.Evaluator
	Estimator    *maintenance.Estimator
	HistoryLimit int
	Now          func() time.Time
}

// Engine performs alert runs. A run reads everything it needs at its start,
// so settings changes take effect on the next run.
type Engine struct {
	settings     SettingsSource
	fleet        FleetSource
	sink         Sink
	gate         dedup.Gate
	recipients   RecipientSource
	notifier     Notifier
	publisher    publish.Publisher
	evaluator    *maintenance.Evaluator
	estimator    *maintenance.Estimator
	historyLimit int
	now          func() time.Time
}

func NewEngine(d Deps) *Engine {
	e := &Engine{
		settings:     d.Settings,
		fleet:        d.Fleet,
		sink:         d.Sink,
		gate:         d.Gate,
		recipients:   d.Recipients,
		notifier:     d.Notifier,
		publisher:    d.Publisher,
		evaluator:    d.Evaluator,
		estimator:    d.Estimator,
		historyLimit: d.HistoryLimit,
		now:          d.Now,
	}
	if e.publisher == nil {
		e.publisher = publish.NopPublisher{}
	}
	if e.evaluator == nil {
		e.evaluator = maintenance.NewEvaluator(nil)
	}
	if e.estimator == nil {
		e.estimator = maintenance.NewEstimator()
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// Report summarises one run.
type Report struct {
	RunID        string    `json:"run_id"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	Evaluated    int       `json:"evaluated"`
	Created      int       `json:"created"`
	Suppressed   int       `json:"suppressed"`
	Failed       int       `json:"failed"`
	EmailsSent   int       `json:"emails_sent"`
	EmailsFailed int       `json:"emails_failed"`
	Skipped      bool      `json:"skipped,omitempty"`
}

// run holds per-invocation state.
type run struct {
	*Engine
	report  *Report
	logger  *log.Entry
	toggles *models.NotificationToggles

	recipientsLoaded bool
	recipientList    []models.User
}

// Run executes the enabled checks once. Failures on a single vehicle,
// category or part are logged and counted; only a failure to read settings
// or fleet data aborts the run. A run cut short by ctx returns ctx.Err()
// wrapped, along with the partial report.
func (e *Engine) Run(ctx context.Context) (Report, error) {
	report := Report{RunID: uuid.NewString(), StartedAt: e.now()}
	logger := log.WithField("run_id", report.RunID)
	metrics.RunsTotal.Add(1)

	err := e.run(ctx, &report, logger)
	report.FinishedAt = e.now()
	if err != nil {
		metrics.RunFailures.Add(1)
		logger.WithError(err).Error("Alert run failed")
		return report, err
	}

	logger.WithFields(log.Fields{
		"evaluated":     report.Evaluated,
		"created":       report.Created,
		"suppressed":    report.Suppressed,
		"failed":        report.Failed,
		"emails_sent":   report.EmailsSent,
		"emails_failed": report.EmailsFailed,
		"duration":      report.FinishedAt.Sub(report.StartedAt).String(),
	}).Info("Alert run finished")
	return report, nil
}

func (e *Engine) run(ctx context.Context, report *Report, logger *log.Entry) error {
	settings, err := e.settings.Load(ctx)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	if settings == nil || settings.Notifications == nil {
		logger.Info("Notification settings absent, nothing to do")
		report.Skipped = true
		return nil
	}

	r := &run{Engine: e, report: report, logger: logger, toggles: settings.Notifications}

	upcoming, overdue := r.toggles.UpcomingEnabled(), r.toggles.OverdueEnabled()
	if upcoming || overdue {
		vehicles, err := e.fleet.ActiveVehicles(ctx, e.historyLimit)
		if err != nil {
			return fmt.Errorf("load active vehicles: %w", err)
		}
		r.checkFleet(ctx, vehicles, settings.MaintenanceIntervals, upcoming, overdue)
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("alert run interrupted: %w", err)
		}
	}

	if r.toggles.LowStockEnabled() {
		records, err := e.fleet.RecentMaintenance(ctx, e.now().Add(-maintenance.LowStockLookback))
		if err != nil {
			return fmt.Errorf("load recent maintenance: %w", err)
		}
		r.checkStock(ctx, records)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("alert run interrupted: %w", err)
	}
	return nil
}

func sortedCategories(intervals map[string]float64) []string {
	names := make([]string, 0, len(intervals))
	for name := range intervals {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *run) checkFleet(ctx context.Context, vehicles []models.Vehicle, intervals map[string]float64, upcoming, overdue bool) {
	categories := maintenance.LookupCategories(sortedCategories(intervals))
	for i := range vehicles {
		vehicle := &vehicles[i]
		for _, category := range categories {
			if ctx.Err() != nil {
				return
			}
			r.checkVehicle(ctx, vehicle, category, intervals[category.Name], upcoming, overdue)
		}
	}
}

func (r *run) checkVehicle(ctx context.Context, vehicle *models.Vehicle, category maintenance.Category, interval float64, upcoming, overdue bool) {
	logger := r.logger.WithFields(log.Fields{
		"vehicle_id": vehicle.ID.Hex(),
		"category":   category.Name,
	})
	defer func() {
		if p := recover(); p != nil {
			r.report.Failed++
			metrics.ItemFailures.Add(1)
			logger.WithField("panic", p).Error("Maintenance check panicked")
		}
	}()

	result := r.evaluator.Evaluate(*vehicle, interval, category)
	r.report.Evaluated++

	var alert *models.Alert
	switch result.Status {
	case maintenance.StatusUpcoming:
		if upcoming {
			alert = upcomingAlert(vehicle, category, interval, result)
		}
	case maintenance.StatusOverdue, maintenance.StatusOverdueNoRecord:
		if overdue {
			alert = overdueAlert(vehicle, category, interval, result)
		}
	}
	if alert == nil {
		return
	}

	if err := r.raise(ctx, alert, vehicle); err != nil {
		r.report.Failed++
		metrics.ItemFailures.Add(1)
		logger.WithError(err).Error("Failed to raise maintenance alert")
	}
}

func (r *run) checkStock(ctx context.Context, records []models.Maintenance) {
	for _, level := range r.estimator.LowStock(records) {
		if ctx.Err() != nil {
			return
		}
		if err := r.raise(ctx, lowStockAlert(level, len(records)), nil); err != nil {
			r.report.Failed++
			metrics.ItemFailures.Add(1)
			r.logger.WithError(err).WithField("part", level.Part).Error("Failed to raise low stock alert")
		}
	}
}

// raise gates, persists, publishes and, for vehicle alerts, emails alert.
func (r *run) raise(ctx context.Context, alert *models.Alert, vehicle *models.Vehicle) error {
	key := dedup.Key{Kind: alert.Kind, Title: alert.Title}
	if vehicle != nil {
		key.VehicleID = vehicle.ID.Hex()
	}

	suppress, err := r.gate.ShouldSuppress(ctx, key)
	if err != nil {
		return fmt.Errorf("dedup check: %w", err)
	}
	if suppress {
		r.report.Suppressed++
		metrics.AlertsSuppressed.Add(1)
		r.logger.WithField("key", key.String()).Debug("Equivalent alert raised recently, skipping")
		return nil
	}

	alert.CreatedAt = r.now()
	if err := r.sink.Create(ctx, alert); err != nil {
		if rerr := r.gate.Release(ctx, key); rerr != nil {
			r.logger.WithError(rerr).WithField("key", key.String()).Warn("Failed to release dedup claim")
		}
		return fmt.Errorf("persist alert: %w", err)
	}
	r.report.Created++
	metrics.AlertsCreated.Add(1)
	r.logger.WithFields(log.Fields{
		"kind":  alert.Kind,
		"title": alert.Title,
		"key":   key.String(),
	}).Info("Alert created")

	if err := r.publisher.Publish(ctx, *alert); err != nil {
		r.logger.WithError(err).WithField("key", key.String()).Warn("Failed to publish alert")
	}

	if vehicle != nil && r.toggles.EmailEnabled() && r.notifier != nil {
		r.email(ctx, *alert, vehicle)
	}
	return nil
}

func (r *run) email(ctx context.Context, alert models.Alert, vehicle *models.Vehicle) {
	recipients := r.loadRecipients(ctx)
	if len(recipients) == 0 {
		return
	}
	for _, d := range r.notifier.Notify(ctx, alert, vehicle, recipients) {
		if d.Sent {
			r.report.EmailsSent++
			metrics.EmailsSent.Add(1)
		} else {
			r.report.EmailsFailed++
			metrics.EmailsFailed.Add(1)
		}
	}
}

// loadRecipients queries the recipient list at most once per run.
func (r *run) loadRecipients(ctx context.Context) []models.User {
	if r.recipientsLoaded {
		return r.recipientList
	}
	r.recipientsLoaded = true
	if r.recipients == nil {
		return nil
	}
	users, err := r.recipients.Recipients(ctx)
	if err != nil {
		r.logger.WithError(err).Warn("Failed to load alert recipients, emails skipped for this run")
		return nil
	}
	if len(users) == 0 {
		r.logger.Info("No administrators to email")
	}
	r.recipientList = users
	return users
}
