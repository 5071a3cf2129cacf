package maintenance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/fleet-maintenance/internal/models"
)

func TestEstimator_NoRecords(t *testing.T) {
	e := NewEstimator()

	levels := e.Estimate(nil)
	require.Len(t, levels, len(DefaultParts))
	for i, level := range levels {
		assert.Equal(t, DefaultParts[i].Baseline, level.EstimatedRemaining)
		assert.False(t, level.Low(), level.Part)
	}
	assert.Empty(t, e.LowStock(nil))
}

func TestEstimator_FlagsConsumedParts(t *testing.T) {
	var records []models.Maintenance
	for i := 0; i < 16; i++ {
		records = append(records, models.Maintenance{ServiceType: "Oil change"})
	}
	records = append(records, models.Maintenance{ServiceType: "Inspection", Description: "replaced brake pads"})

	levels := NewEstimator().Estimate(records)
	byPart := map[string]StockLevel{}
	for _, l := range levels {
		byPart[l.Part] = l
	}

	assert.Equal(t, 4, byPart["Engine Oil"].EstimatedRemaining)
	assert.True(t, byPart["Engine Oil"].Low())
	assert.Equal(t, 0, byPart["Oil Filter"].EstimatedRemaining)
	assert.True(t, byPart["Oil Filter"].Low())
	assert.Equal(t, 11, byPart["Brake Pads"].EstimatedRemaining)
	assert.False(t, byPart["Brake Pads"].Low())

	low := NewEstimator().LowStock(records)
	require.Len(t, low, 2)
	assert.Equal(t, "Engine Oil", low[0].Part)
	assert.Equal(t, "Oil Filter", low[1].Part)
}

func TestEstimator_NeverNegative(t *testing.T) {
	e := &Estimator{Parts: []Part{{Name: "Tire", Keywords: []string{"tire"}, Baseline: 1, Threshold: 0}}}
	records := []models.Maintenance{{ServiceType: "tire"}, {ServiceType: "tire"}, {ServiceType: "tire"}}

	levels := e.Estimate(records)
	require.Len(t, levels, 1)
	assert.Equal(t, 0, levels[0].EstimatedRemaining)
	assert.Equal(t, 3, levels[0].Used)
	assert.True(t, levels[0].Low())
}
