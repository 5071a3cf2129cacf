package db

import "errors"

// Collection names in the fleet database.
const (
	VehiclesCollection      = "vehicles"
	MaintenanceCollection   = "maintenance"
	UsersCollection         = "users"
	SettingsCollection      = "settings"
	NotificationsCollection = "notifications"
)

// ErrNilCollection is returned by every wrapper built without a collection.
var ErrNilCollection = errors.New("mongo collection is nil")
