package alerting

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/fleet-maintenance/internal/dedup"
	"github.com/ukydev/fleet-maintenance/internal/email"
	"github.com/ukydev/fleet-maintenance/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var fixedNow = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

type fakeSettings struct {
	settings *models.Settings
	err      error
}

func (f *fakeSettings) Load(context.Context) (*models.Settings, error) {
	return f.settings, f.err
}

type fakeFleet struct {
	vehicles    []models.Vehicle
	recent      []models.Maintenance
	err         error
	vehicleHits int
	recentSince time.Time
}

func (f *fakeFleet) ActiveVehicles(context.Context, int) ([]models.Vehicle, error) {
	f.vehicleHits++
	return f.vehicles, f.err
}

func (f *fakeFleet) RecentMaintenance(_ context.Context, since time.Time) ([]models.Maintenance, error) {
	f.recentSince = since
	return f.recent, f.err
}

// memSink stores alerts and answers FindRecent so it can back a StoreGate.
type memSink struct {
	mu     sync.Mutex
	alerts []models.Alert
	fail   func(*models.Alert) error
}

func (s *memSink) Create(_ context.Context, a *models.Alert) error {
	if s.fail != nil {
		if err := s.fail(a); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a.ID = primitive.NewObjectID()
	s.alerts = append(s.alerts, *a)
	return nil
}

func (s *memSink) FindRecent(_ context.Context, kind models.AlertKind, title, vehicleID string, since time.Time) (*models.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.alerts {
		a := s.alerts[i]
		if a.Kind == kind && a.Title == title && a.VehicleHex() == vehicleID && !a.CreatedAt.Before(since) {
			return &a, nil
		}
	}
	return nil, nil
}

type fakeRecipients struct {
	users []models.User
	err   error
	hits  int
}

func (f *fakeRecipients) Recipients(context.Context) ([]models.User, error) {
	f.hits++
	return f.users, f.err
}

type fakeNotifier struct {
	calls []models.Alert
	fail  bool
}

func (f *fakeNotifier) Notify(_ context.Context, alert models.Alert, _ *models.Vehicle, recipients []models.User) []email.Delivery {
	f.calls = append(f.calls, alert)
	out := make([]email.Delivery, 0, len(recipients))
	for _, u := range recipients {
		d := email.Delivery{Recipient: u, Sent: !f.fail}
		if f.fail {
			d.Err = errors.New("smtp down")
		}
		out = append(out, d)
	}
	return out
}

type recordingPublisher struct {
	published []models.Alert
	err       error
}

func (p *recordingPublisher) Publish(_ context.Context, a models.Alert) error {
	p.published = append(p.published, a)
	return p.err
}

func toggles(email, upcoming, overdue, lowStock bool) *models.NotificationToggles {
	return &models.NotificationToggles{
		Email:               models.Bool(email),
		UpcomingMaintenance: models.Bool(upcoming),
		OverdueMaintenance:  models.Bool(overdue),
		LowStock:            models.Bool(lowStock),
	}
}

func oilSettings(t *models.NotificationToggles) *models.Settings {
	return &models.Settings{
		MaintenanceIntervals: map[string]float64{"oilChange": 5000},
		Notifications:        t,
	}
}

func vehicleAt(plate string, mileage float64, history ...models.Maintenance) models.Vehicle {
	return models.Vehicle{
		ID:             primitive.NewObjectID(),
		Plate:          plate,
		Make:           "Toyota",
		Model:          "Hilux",
		Year:           2021,
		CurrentMileage: mileage,
		Status:         models.VehicleActive,
		History:        history,
	}
}

func oilChangeAt(mileage float64) models.Maintenance {
	return models.Maintenance{
		ID:            primitive.NewObjectID(),
		ServiceType:   "Oil Change",
		Mileage:       mileage,
		DatePerformed: fixedNow.AddDate(0, -3, 0),
	}
}

type harness struct {
	settings   *fakeSettings
	fleet      *fakeFleet
	sink       *memSink
	recipients *fakeRecipients
	notifier   *fakeNotifier
	publisher  *recordingPublisher
	engine     *Engine
}

func newHarness(settings *models.Settings, vehicles ...models.Vehicle) *harness {
	h := &harness{
		settings: &fakeSettings{settings: settings},
		fleet:    &fakeFleet{vehicles: vehicles},
		sink:     &memSink{},
		recipients: &fakeRecipients{users: []models.User{
			{ID: primitive.NewObjectID(), Email: "ops@example.com", Role: models.RoleAdmin, IsActive: true, IsApproved: true},
		}},
		notifier:  &fakeNotifier{},
		publisher: &recordingPublisher{},
	}
	h.engine = NewEngine(Deps{
		Settings:   h.settings,
		Fleet:      h.fleet,
		Sink:       h.sink,
		Gate:       dedup.NewStoreGate(h.sink, dedup.DefaultWindow, clock),
		Recipients: h.recipients,
		Notifier:   h.notifier,
		Publisher:  h.publisher,
		Now:        clock,
	})
	return h
}

func TestRun_UpcomingAlert(t *testing.T) {
	v := vehicleAt("ABC-123", 44600, oilChangeAt(40000))
	h := newHarness(oilSettings(toggles(false, true, true, false)), v)

	report, err := h.engine.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, h.sink.alerts, 1)
	a := h.sink.alerts[0]
	assert.Equal(t, models.KindUpcomingMaintenance, a.Kind)
	assert.Equal(t, "Oil Change Due Soon", a.Title)
	assert.Contains(t, a.Message, "400 km")
	require.NotNil(t, a.VehicleID)
	assert.Equal(t, v.ID, *a.VehicleID)
	assert.Nil(t, a.RecipientID)
	assert.False(t, a.IsRead)
	assert.Equal(t, fixedNow, a.CreatedAt)

	assert.Equal(t, 1, report.Evaluated)
	assert.Equal(t, 1, report.Created)
	assert.NotEmpty(t, report.RunID)
	assert.Len(t, h.publisher.published, 1)
}

func TestRun_OverdueAlerts(t *testing.T) {
	withRecord := vehicleAt("OVR-1", 45200, oilChangeAt(40000))
	noRecord := vehicleAt("OVR-2", 6000)
	h := newHarness(oilSettings(toggles(false, true, true, false)), withRecord, noRecord)

	report, err := h.engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Created)

	require.Len(t, h.sink.alerts, 2)
	for _, a := range h.sink.alerts {
		assert.Equal(t, models.KindOverdue, a.Kind)
		assert.Equal(t, "Oil Change Overdue", a.Title)
	}
	assert.Contains(t, h.sink.alerts[0].Message, "200 km overdue")
	assert.Contains(t, h.sink.alerts[1].Message, "no oil change on record")
	assert.Equal(t, true, h.sink.alerts[1].Metadata["no_record"])
}

func TestRun_OKVehicleRaisesNothing(t *testing.T) {
	h := newHarness(oilSettings(toggles(true, true, true, false)),
		vehicleAt("OK-1", 42000, oilChangeAt(40000)),
		vehicleAt("OK-2", 45000, oilChangeAt(40000)),
	)

	report, err := h.engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Evaluated)
	assert.Empty(t, h.sink.alerts)
	assert.Empty(t, h.notifier.calls)
}

func TestRun_SuppressesWithinWindow(t *testing.T) {
	h := newHarness(oilSettings(toggles(false, true, true, false)), vehicleAt("DUP-1", 44600, oilChangeAt(40000)))

	_, err := h.engine.Run(context.Background())
	require.NoError(t, err)

	// mileage moved, message changes, title does not
	h.fleet.vehicles[0].CurrentMileage = 44700
	second, err := h.engine.Run(context.Background())
	require.NoError(t, err)

	assert.Len(t, h.sink.alerts, 1)
	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 1, second.Suppressed)
}

func TestRun_UnchangedOverdueIsIdempotent(t *testing.T) {
	h := newHarness(oilSettings(toggles(true, true, true, false)),
		vehicleAt("IDEM-1", 45200, oilChangeAt(40000)),
		vehicleAt("IDEM-2", 6000),
	)

	for i := 0; i < 3; i++ {
		_, err := h.engine.Run(context.Background())
		require.NoError(t, err)
	}

	assert.Len(t, h.sink.alerts, 2)
	assert.Len(t, h.notifier.calls, 2)
}

func TestRun_AlertsAgainAfterWindow(t *testing.T) {
	now := fixedNow
	h := newHarness(oilSettings(toggles(false, true, true, false)), vehicleAt("WIN-1", 44600, oilChangeAt(40000)))
	tick := func() time.Time { return now }
	h.engine.now = tick
	h.engine.gate = dedup.NewStoreGate(h.sink, dedup.DefaultWindow, tick)

	_, err := h.engine.Run(context.Background())
	require.NoError(t, err)

	now = now.Add(25 * time.Hour)
	_, err = h.engine.Run(context.Background())
	require.NoError(t, err)

	assert.Len(t, h.sink.alerts, 2)
}

func TestRun_RespectsToggles(t *testing.T) {
	upcomingVehicle := vehicleAt("UP-1", 44600, oilChangeAt(40000))
	overdueVehicle := vehicleAt("OD-1", 45200, oilChangeAt(40000))

	tests := []struct {
		name      string
		toggles   *models.NotificationToggles
		wantKinds []models.AlertKind
	}{
		{"upcoming only", toggles(false, true, false, false), []models.AlertKind{models.KindUpcomingMaintenance}},
		{"overdue only", toggles(false, false, true, false), []models.AlertKind{models.KindOverdue}},
		{"both", toggles(false, true, true, false), []models.AlertKind{models.KindUpcomingMaintenance, models.KindOverdue}},
		{"none", toggles(false, false, false, false), nil},
		{"unset toggles", &models.NotificationToggles{}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(oilSettings(tt.toggles), upcomingVehicle, overdueVehicle)
			_, err := h.engine.Run(context.Background())
			require.NoError(t, err)

			var kinds []models.AlertKind
			for _, a := range h.sink.alerts {
				kinds = append(kinds, a.Kind)
			}
			assert.Equal(t, tt.wantKinds, kinds)
		})
	}
}

func TestRun_SkipsFleetReadWhenVehicleChecksDisabled(t *testing.T) {
	h := newHarness(oilSettings(toggles(true, false, false, false)), vehicleAt("X", 45200, oilChangeAt(40000)))

	_, err := h.engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, h.fleet.vehicleHits)
}

func TestRun_MissingNotificationSettings(t *testing.T) {
	for name, settings := range map[string]*models.Settings{
		"nil settings":      nil,
		"nil notifications": {MaintenanceIntervals: map[string]float64{"oilChange": 5000}},
	} {
		t.Run(name, func(t *testing.T) {
			h := newHarness(settings, vehicleAt("X", 45200, oilChangeAt(40000)))

			report, err := h.engine.Run(context.Background())
			require.NoError(t, err)
			assert.True(t, report.Skipped)
			assert.Equal(t, 0, h.fleet.vehicleHits)
			assert.Empty(t, h.sink.alerts)
		})
	}
}

func TestRun_SettingsErrorPropagates(t *testing.T) {
	h := newHarness(nil)
	h.settings.err = errors.New("mongo unavailable")

	_, err := h.engine.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load settings")
	assert.Contains(t, err.Error(), "mongo unavailable")
}

func TestRun_FleetErrorPropagates(t *testing.T) {
	h := newHarness(oilSettings(toggles(false, true, true, false)))
	h.fleet.err = errors.New("cursor closed")

	_, err := h.engine.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load active vehicles")
}

func TestRun_PersistFailureIsIsolated(t *testing.T) {
	broken := vehicleAt("BRK-1", 45200, oilChangeAt(40000))
	healthy := vehicleAt("OK-1", 45300, oilChangeAt(40000))
	h := newHarness(oilSettings(toggles(false, true, true, false)), broken, healthy)

	gate := dedup.NewMemoryGate(dedup.DefaultWindow, clock)
	h.engine.gate = gate
	h.sink.fail = func(a *models.Alert) error {
		if *a.VehicleID == broken.ID {
			return errors.New("write conflict")
		}
		return nil
	}

	report, err := h.engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.Created)

	// the failed claim was released, so the next run retries it
	h.sink.fail = nil
	report, err = h.engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Created)
	assert.Equal(t, 1, report.Suppressed)
	assert.Len(t, h.sink.alerts, 2)
}

func TestRun_EmailsAdministrators(t *testing.T) {
	h := newHarness(oilSettings(toggles(true, true, true, false)),
		vehicleAt("EM-1", 44600, oilChangeAt(40000)),
		vehicleAt("EM-2", 45200, oilChangeAt(40000)),
	)

	report, err := h.engine.Run(context.Background())
	require.NoError(t, err)

	assert.Len(t, h.notifier.calls, 2)
	assert.Equal(t, 2, report.EmailsSent)
	assert.Equal(t, 1, h.recipients.hits)
}

func TestRun_EmailDisabled(t *testing.T) {
	h := newHarness(oilSettings(toggles(false, true, true, false)), vehicleAt("EM-1", 44600, oilChangeAt(40000)))

	_, err := h.engine.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, h.sink.alerts, 1)
	assert.Empty(t, h.notifier.calls)
	assert.Equal(t, 0, h.recipients.hits)
}

func TestRun_EmailFailureKeepsAlert(t *testing.T) {
	h := newHarness(oilSettings(toggles(true, true, true, false)), vehicleAt("EM-1", 44600, oilChangeAt(40000)))
	h.notifier.fail = true

	report, err := h.engine.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, h.sink.alerts, 1)
	assert.Equal(t, 0, report.Failed)
	assert.Equal(t, 1, report.EmailsFailed)
}

func TestRun_RecipientLookupFailureSkipsEmail(t *testing.T) {
	h := newHarness(oilSettings(toggles(true, true, true, false)), vehicleAt("EM-1", 44600, oilChangeAt(40000)))
	h.recipients.err = errors.New("users collection missing")

	report, err := h.engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Created)
	assert.Empty(t, h.notifier.calls)
}

func TestRun_PublishFailureKeepsAlert(t *testing.T) {
	h := newHarness(oilSettings(toggles(false, true, true, false)), vehicleAt("PB-1", 44600, oilChangeAt(40000)))
	h.publisher.err = errors.New("broker offline")

	report, err := h.engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Created)
	assert.Equal(t, 0, report.Failed)
}

func TestRun_LowStock(t *testing.T) {
	var records []models.Maintenance
	for i := 0; i < 9; i++ {
		records = append(records, models.Maintenance{
			ID:          primitive.NewObjectID(),
			ServiceType: "Brake Service",
			Description: fmt.Sprintf("front pads #%d", i),
		})
	}
	h := newHarness(&models.Settings{Notifications: toggles(true, false, false, true)})
	h.fleet.recent = records

	report, err := h.engine.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, h.sink.alerts, 1)
	a := h.sink.alerts[0]
	assert.Equal(t, models.KindAlert, a.Kind)
	assert.Equal(t, "Low Stock: Brake Pads", a.Title)
	assert.Nil(t, a.VehicleID)
	assert.Contains(t, a.Message, "Estimated 3 Brake Pads remaining")
	assert.Equal(t, fixedNow.Add(-30*24*time.Hour), h.fleet.recentSince)
	assert.Empty(t, h.notifier.calls)
	assert.Equal(t, 1, report.Created)

	// fleet-wide alerts are suppressed by kind and title alone
	second, err := h.engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, second.Suppressed)
	assert.Len(t, h.sink.alerts, 1)
}

func TestRun_LowStockNoRecords(t *testing.T) {
	h := newHarness(&models.Settings{Notifications: toggles(false, false, false, true)})

	report, err := h.engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.Created)
	assert.Empty(t, h.sink.alerts)
}

func TestRun_UnconfiguredMailSurfacesAsFailedEmail(t *testing.T) {
	hook := logtest.NewGlobal()
	defer hook.Reset()

	h := newHarness(oilSettings(toggles(true, true, true, false)), vehicleAt("MAIL-1", 45200, oilChangeAt(40000)))
	transport := email.NewMailgunTransport("", "", "", "")
	h.engine.notifier = email.NewDispatcher(transport, email.NewRenderer("https://fleet.example.com"))

	report, err := h.engine.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Created)
	assert.Equal(t, 0, report.EmailsSent)
	assert.Equal(t, 1, report.EmailsFailed)
	assert.Equal(t, 1, h.recipients.hits)

	var warned bool
	for _, e := range hook.AllEntries() {
		if err, ok := e.Data[log.ErrorKey].(error); ok && e.Level == log.WarnLevel && errors.Is(err, email.ErrNotConfigured) {
			warned = true
		}
	}
	assert.True(t, warned, "expected a warning carrying the not-configured error")
}

func TestRun_CancelledMidRunReportsInterruption(t *testing.T) {
	first := vehicleAt("CXL-1", 45200, oilChangeAt(40000))
	second := vehicleAt("CXL-2", 45300, oilChangeAt(40000))
	h := newHarness(oilSettings(toggles(false, true, true, true)), first, second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.sink.fail = func(*models.Alert) error {
		cancel()
		return nil
	}

	report, err := h.engine.Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Contains(t, err.Error(), "alert run interrupted")
	assert.Equal(t, 1, report.Created)
	assert.Len(t, h.sink.alerts, 1)
	assert.False(t, report.FinishedAt.IsZero())
}

func TestRun_CancelledBeforeStart(t *testing.T) {
	h := newHarness(oilSettings(toggles(false, true, true, false)), vehicleAt("CXL-3", 45200, oilChangeAt(40000)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := h.engine.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, report.Evaluated)
	assert.Empty(t, h.sink.alerts)
}

func TestRun_CollidingCategoryLabelsStayDistinct(t *testing.T) {
	v := vehicleAt("FLS-1", 45200)
	settings := &models.Settings{
		MaintenanceIntervals: map[string]float64{"engineFlush": 5000, "EngineFlush": 5000},
		Notifications:        toggles(false, true, true, false),
	}
	h := newHarness(settings, v)

	report, err := h.engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Created)
	assert.Zero(t, report.Suppressed)

	require.Len(t, h.sink.alerts, 2)
	titles := []string{h.sink.alerts[0].Title, h.sink.alerts[1].Title}
	assert.ElementsMatch(t, []string{
		"Engine Flush (EngineFlush) Overdue",
		"Engine Flush (engineFlush) Overdue",
	}, titles)

	// the second run finds both in the window
	report, err = h.engine.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Created)
	assert.Equal(t, 2, report.Suppressed)
}
