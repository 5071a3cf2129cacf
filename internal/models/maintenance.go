package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Maintenance represents a vehicle maintenance record.
type Maintenance struct {
	ID          primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	VehicleID   primitive.ObjectID `json:"vehicle_id" bson:"vehicle_id"`
	ServiceType string             `json:"service_type" bson:"service_type"` // free text, e.g. "Oil change + filter"
	Description string             `json:"description" bson:"description"`
	// Category is the explicit maintenance category ("oilChange", "tireRotation", ...).
	// Empty on legacy records.
	Category      string    `json:"category,omitempty" bson:"category,omitempty"`
	DatePerformed time.Time `json:"date_performed" bson:"date_performed"`
	Mileage       float64   `json:"mileage" bson:"mileage"` // vehicle odometer at time of service, km
	CreatedAt     time.Time `json:"created_at" bson:"created_at"`
}
