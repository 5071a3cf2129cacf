package models

import (
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// VehicleStatus is the operational state of a fleet vehicle.
type VehicleStatus string

const (
	VehicleActive      VehicleStatus = "ACTIVE"
	VehicleInactive    VehicleStatus = "INACTIVE"
	VehicleMaintenance VehicleStatus = "MAINTENANCE"
)

// Vehicle represents a fleet vehicle (truck or trailer).
type Vehicle struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	VIN            string             `bson:"vin" json:"vin"`
	Plate          string             `bson:"plate" json:"plate"`
	Make           string             `bson:"make" json:"make"`
	Model          string             `bson:"model" json:"model"`
	Year           int                `bson:"year" json:"year"`
	CurrentMileage float64            `bson:"current_mileage" json:"current_mileage"` // in kilometers
	Status         VehicleStatus      `bson:"status" json:"status"`
	Deleted        bool               `bson:"deleted" json:"deleted"`
	DeletedAt      *time.Time         `bson:"deleted_at,omitempty" json:"deleted_at,omitempty"`
	CreatedAt      time.Time          `bson:"created_at" json:"created_at"`

	// History is the most recent maintenance, newest first. Filled by the fleet source.
	History []Maintenance `bson:"history,omitempty" json:"history,omitempty"`
}

// IsActive reports whether the vehicle takes part in maintenance checks.
func (v *Vehicle) IsActive() bool {
	return v.Status == VehicleActive && !v.Deleted
}

// DisplayName renders "PLATE (Year Make Model)" for messages.
func (v *Vehicle) DisplayName() string {
	desc := strings.TrimSpace(fmt.Sprintf("%s %s", v.Make, v.Model))
	if v.Year > 0 {
		desc = strings.TrimSpace(fmt.Sprintf("%d %s", v.Year, desc))
	}
	name := v.Plate
	if name == "" {
		name = v.VIN
	}
	if name == "" {
		name = v.ID.Hex()
	}
	if desc == "" {
		return name
	}
	return fmt.Sprintf("%s (%s)", name, desc)
}
