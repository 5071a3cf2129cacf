package maintenance

import (
	"github.com/ukydev/fleet-maintenance/internal/models"
)

// Status is the outcome of evaluating one vehicle against one category.
type Status string

const (
	StatusOK              Status = "OK"
	StatusUpcoming        Status = "UPCOMING"
	StatusOverdue         Status = "OVERDUE"
	StatusOverdueNoRecord Status = "OVERDUE_NO_RECORD"
)

// Result carries the status and, for UPCOMING/OVERDUE, the remaining or excess km.
type Result struct {
	Status      Status
	DeltaKm     *float64
	SinceLast   float64
	LastService *models.Maintenance
}

// Evaluator classifies a vehicle's maintenance status. It has no side effects.
type Evaluator struct {
	Classifier Classifier
}

// NewEvaluator returns an evaluator using c, or DefaultClassifier when c is nil.
func NewEvaluator(c Classifier) *Evaluator {
	if c == nil {
		c = DefaultClassifier{}
	}
	return &Evaluator{Classifier: c}
}

// LastService returns the most recent record in history matching category.
func (e *Evaluator) LastService(history []models.Maintenance, category Category) *models.Maintenance {
	var last *models.Maintenance
	for i := range history {
		rec := &history[i]
		if !e.Classifier.Matches(*rec, category) {
			continue
		}
		if last == nil || rec.DatePerformed.After(last.DatePerformed) {
			last = rec
		}
	}
	return last
}

// Evaluate classifies vehicle against interval km for category.
func (e *Evaluator) Evaluate(vehicle models.Vehicle, interval float64, category Category) Result {
	if interval <= 0 {
		return Result{Status: StatusOK}
	}

	last := e.LastService(vehicle.History, category)
	if last == nil {
		if vehicle.CurrentMileage > interval {
			return Result{Status: StatusOverdueNoRecord, SinceLast: vehicle.CurrentMileage}
		}
		return Result{Status: StatusOK, SinceLast: vehicle.CurrentMileage}
	}

	sinceLast := vehicle.CurrentMileage - last.Mileage
	if sinceLast < 0 {
		// snapshot ahead of the odometer; treat as freshly serviced
		sinceLast = 0
	}

	if sinceLast > interval {
		delta := sinceLast - interval
		return Result{Status: StatusOverdue, DeltaKm: &delta, SinceLast: sinceLast, LastService: last}
	}

	remaining := interval - sinceLast
	if remaining > 0 && remaining <= category.UpcomingWindow {
		return Result{Status: StatusUpcoming, DeltaKm: &remaining, SinceLast: sinceLast, LastService: last}
	}
	return Result{Status: StatusOK, SinceLast: sinceLast, LastService: last}
}
