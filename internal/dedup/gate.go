// Package dedup keeps the alerting engine from re-raising an equivalent alert
// inside the suppression window.
package dedup

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ukydev/fleet-maintenance/internal/models"
)

// DefaultWindow is the rolling period in which an equivalent alert is suppressed.
const DefaultWindow = 24 * time.Hour

// Key identifies equivalent alerts. VehicleID is "" for fleet-wide alerts.
type Key struct {
	Kind      models.AlertKind
	Title     string
	VehicleID string
}

func (k Key) String() string {
	vehicle := k.VehicleID
	if vehicle == "" {
		vehicle = "fleet"
	}
	return fmt.Sprintf("%s:%s:%s", k.Kind, vehicle, k.Title)
}

// Gate decides whether creating an alert for key must be skipped.
// A false answer may reserve the key; Release gives it back when the
// alert could not be persisted.
type Gate interface {
	ShouldSuppress(ctx context.Context, key Key) (bool, error)
	Release(ctx context.Context, key Key) error
}

// RecentFinder is the notification store lookup used by StoreGate.
type RecentFinder interface {
	FindRecent(ctx context.Context, kind models.AlertKind, title, vehicleID string, since time.Time) (*models.Alert, error)
}

// StoreGate asks the notification store for an equivalent alert newer than
// the window. It is check-then-act: two overlapping runs can both pass.
type StoreGate struct {
	finder RecentFinder
	window time.Duration
	now    func() time.Time
}

// NewStoreGate builds a gate over finder. now defaults to time.Now.
func NewStoreGate(finder RecentFinder, window time.Duration, now func() time.Time) *StoreGate {
	if window <= 0 {
		window = DefaultWindow
	}
	if now == nil {
		now = time.Now
	}
	return &StoreGate{finder: finder, window: window, now: now}
}

func (g *StoreGate) ShouldSuppress(ctx context.Context, key Key) (bool, error) {
	found, err := g.finder.FindRecent(ctx, key.Kind, key.Title, key.VehicleID, g.now().Add(-g.window))
	if err != nil {
		return false, fmt.Errorf("find recent alert: %w", err)
	}
	return found != nil, nil
}

// Release is a no-op; nothing was reserved.
func (g *StoreGate) Release(context.Context, Key) error {
	return nil
}

// MemoryGate claims keys in process memory. Suitable for a single instance.
type MemoryGate struct {
	mu      sync.Mutex
	window  time.Duration
	now     func() time.Time
	claimed map[string]time.Time
}

// NewMemoryGate builds an in-memory gate. now defaults to time.Now.
func NewMemoryGate(window time.Duration, now func() time.Time) *MemoryGate {
	if window <= 0 {
		window = DefaultWindow
	}
	if now == nil {
		now = time.Now
	}
	return &MemoryGate{window: window, now: now, claimed: make(map[string]time.Time)}
}

func (g *MemoryGate) ShouldSuppress(_ context.Context, key Key) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	k := key.String()
	if at, ok := g.claimed[k]; ok && now.Sub(at) < g.window {
		return true, nil
	}
	g.claimed[k] = now
	return false, nil
}

func (g *MemoryGate) Release(_ context.Context, key Key) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.claimed, key.String())
	return nil
}

// Cleanup drops claims older than the window.
func (g *MemoryGate) Cleanup() {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	for k, at := range g.claimed {
		if now.Sub(at) >= g.window {
			delete(g.claimed, k)
		}
	}
}
