package models

// Settings is the admin-managed alerting configuration. Stored and JSON
// field names follow the admin app's camelCase document shape.
type Settings struct {
	// MaintenanceIntervals maps a category name to its mileage interval in km.
	// A category missing here is never evaluated.
	MaintenanceIntervals map[string]float64 `bson:"maintenanceIntervals" json:"maintenanceIntervals" toml:"maintenance_intervals"`
	// Notifications is nil when the admin never saved notification settings.
	Notifications *NotificationToggles `bson:"notifications,omitempty" json:"notifications,omitempty" toml:"notifications"`
}

// NotificationToggles gates each check and email delivery. An unset toggle is off.
type NotificationToggles struct {
	Email               *bool `bson:"email,omitempty" json:"email,omitempty" toml:"email"`
	UpcomingMaintenance *bool `bson:"upcomingMaintenance,omitempty" json:"upcomingMaintenance,omitempty" toml:"upcoming_maintenance"`
	OverdueMaintenance  *bool `bson:"overdueMaintenance,omitempty" json:"overdueMaintenance,omitempty" toml:"overdue_maintenance"`
	LowStock            *bool `bson:"lowStock,omitempty" json:"lowStock,omitempty" toml:"low_stock"`
}

func enabled(b *bool) bool {
	return b != nil && *b
}

func (t *NotificationToggles) EmailEnabled() bool    { return t != nil && enabled(t.Email) }
func (t *NotificationToggles) UpcomingEnabled() bool { return t != nil && enabled(t.UpcomingMaintenance) }
func (t *NotificationToggles) OverdueEnabled() bool  { return t != nil && enabled(t.OverdueMaintenance) }
func (t *NotificationToggles) LowStockEnabled() bool { return t != nil && enabled(t.LowStock) }

// Bool is a convenience for building toggles.
func Bool(v bool) *bool {
	return &v
}
