package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AlertKind classifies a persisted notification.
type AlertKind string

const (
	KindUpcomingMaintenance AlertKind = "upcoming_maintenance"
	KindOverdue             AlertKind = "overdue"
	KindAlert               AlertKind = "alert"
)

// Alert is a persisted notification in the admin feed.
type Alert struct {
	ID          primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Kind        AlertKind           `bson:"kind" json:"kind"`
	Title       string              `bson:"title" json:"title"`
	Message     string              `bson:"message" json:"message"`
	VehicleID   *primitive.ObjectID `bson:"vehicle_id,omitempty" json:"vehicle_id,omitempty"`
	RecipientID *primitive.ObjectID `bson:"recipient_id,omitempty" json:"recipient_id,omitempty"`
	IsRead      bool                `bson:"is_read" json:"is_read"`
	CreatedAt   time.Time           `bson:"created_at" json:"created_at"`
	Metadata    map[string]any      `bson:"metadata,omitempty" json:"metadata,omitempty"`
}

// VehicleHex returns the vehicle id as hex, or "" for fleet-wide alerts.
func (a *Alert) VehicleHex() string {
	if a.VehicleID == nil {
		return ""
	}
	return a.VehicleID.Hex()
}
