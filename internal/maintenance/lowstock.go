package maintenance

import (
	"strings"
	"time"

	"github.com/ukydev/fleet-maintenance/internal/models"
)

// LowStockLookback is how far back maintenance is counted as parts usage.
const LowStockLookback = 30 * 24 * time.Hour

// Part is a consumable with a nominal starting stock and an alert floor.
// Baseline is a fixed figure, not an inventory reading.
type Part struct {
	Name      string
	Keywords  []string
	Baseline  int
	Threshold int
}

// DefaultParts is the fixed catalog estimated by the low-stock check.
var DefaultParts = []Part{
	{Name: "Engine Oil", Keywords: []string{"oil"}, Baseline: 20, Threshold: 5},
	{Name: "Oil Filter", Keywords: []string{"oil filter", "oil change"}, Baseline: 15, Threshold: 3},
	{Name: "Brake Pads", Keywords: []string{"brake"}, Baseline: 12, Threshold: 3},
	{Name: "Air Filter", Keywords: []string{"air filter"}, Baseline: 10, Threshold: 2},
	{Name: "Tire", Keywords: []string{"tire", "tyre"}, Baseline: 16, Threshold: 4},
}

// StockLevel is the estimate for one part.
type StockLevel struct {
	Part               string
	Used               int
	EstimatedRemaining int
	Threshold          int
}

// Low reports whether the estimate is at or under the floor.
func (s StockLevel) Low() bool {
	return s.EstimatedRemaining <= s.Threshold
}

// Estimator infers parts consumption from maintenance text.
type Estimator struct {
	Parts []Part
}

// NewEstimator returns an estimator over DefaultParts.
func NewEstimator() *Estimator {
	return &Estimator{Parts: DefaultParts}
}

// Estimate returns one level per catalog part, in catalog order.
func (e *Estimator) Estimate(records []models.Maintenance) []StockLevel {
	levels := make([]StockLevel, 0, len(e.Parts))
	for _, part := range e.Parts {
		used := 0
		for _, rec := range records {
			if references(rec, part) {
				used++
			}
		}
		remaining := part.Baseline - used
		if remaining < 0 {
			remaining = 0
		}
		levels = append(levels, StockLevel{
			Part:               part.Name,
			Used:               used,
			EstimatedRemaining: remaining,
			Threshold:          part.Threshold,
		})
	}
	return levels
}

// LowStock returns only the parts at or under their threshold.
func (e *Estimator) LowStock(records []models.Maintenance) []StockLevel {
	var low []StockLevel
	for _, level := range e.Estimate(records) {
		if level.Low() {
			low = append(low, level)
		}
	}
	return low
}

func references(rec models.Maintenance, part Part) bool {
	text := strings.ToLower(rec.ServiceType + " " + rec.Description)
	for _, kw := range part.Keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
