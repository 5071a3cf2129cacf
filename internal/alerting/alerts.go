package alerting

import (
	"fmt"
	"strings"

	"github.com/ukydev/fleet-maintenance/internal/maintenance"
	"github.com/ukydev/fleet-maintenance/internal/models"
)

// Titles are fixed per category or part so that the dedup key stays stable
// while the message text changes with mileage.

func upcomingTitle(c maintenance.Category) string { return c.Label + " Due Soon" }
func overdueTitle(c maintenance.Category) string  { return c.Label + " Overdue" }
func lowStockTitle(part string) string            { return "Low Stock: " + part }

func vehicleRef(v *models.Vehicle) *models.Alert {
	id := v.ID
	return &models.Alert{VehicleID: &id}
}

func upcomingAlert(v *models.Vehicle, c maintenance.Category, interval float64, res maintenance.Result) *models.Alert {
	remaining := 0.0
	if res.DeltaKm != nil {
		remaining = *res.DeltaKm
	}
	a := vehicleRef(v)
	a.Kind = models.KindUpcomingMaintenance
	a.Title = upcomingTitle(c)
	a.Message = fmt.Sprintf("%s is due for %s in %.0f km (interval %.0f km, %.0f km since last service).",
		v.DisplayName(), strings.ToLower(c.Label), remaining, interval, res.SinceLast)
	a.Metadata = map[string]any{
		"category":        c.Name,
		"interval_km":     interval,
		"remaining_km":    remaining,
		"current_mileage": v.CurrentMileage,
	}
	if res.LastService != nil {
		a.Metadata["last_service_mileage"] = res.LastService.Mileage
		a.Metadata["last_service_date"] = res.LastService.DatePerformed
	}
	return a
}

func overdueAlert(v *models.Vehicle, c maintenance.Category, interval float64, res maintenance.Result) *models.Alert {
	a := vehicleRef(v)
	a.Kind = models.KindOverdue
	a.Title = overdueTitle(c)
	a.Metadata = map[string]any{
		"category":        c.Name,
		"interval_km":     interval,
		"current_mileage": v.CurrentMileage,
	}

	if res.Status == maintenance.StatusOverdueNoRecord || res.LastService == nil {
		a.Message = fmt.Sprintf("%s has no %s on record and is past the %.0f km interval (odometer %.0f km).",
			v.DisplayName(), strings.ToLower(c.Label), interval, v.CurrentMileage)
		a.Metadata["no_record"] = true
		return a
	}

	excess := 0.0
	if res.DeltaKm != nil {
		excess = *res.DeltaKm
	}
	a.Message = fmt.Sprintf("%s is %.0f km overdue for %s (last service at %.0f km on %s, interval %.0f km).",
		v.DisplayName(), excess, strings.ToLower(c.Label), res.LastService.Mileage,
		res.LastService.DatePerformed.Format("2006-01-02"), interval)
	a.Metadata["overdue_km"] = excess
	a.Metadata["last_service_mileage"] = res.LastService.Mileage
	a.Metadata["last_service_date"] = res.LastService.DatePerformed
	return a
}

func lowStockAlert(level maintenance.StockLevel, services int) *models.Alert {
	return &models.Alert{
		Kind:  models.KindAlert,
		Title: lowStockTitle(level.Part),
		Message: fmt.Sprintf("Estimated %d %s remaining (threshold %d) after %d uses in the last 30 days across %d services.",
			level.EstimatedRemaining, level.Part, level.Threshold, level.Used, services),
		Metadata: map[string]any{
			"part":                level.Part,
			"used":                level.Used,
			"estimated_remaining": level.EstimatedRemaining,
			"threshold":           level.Threshold,
		},
	}
}
