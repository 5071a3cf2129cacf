package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role represents user roles in the system
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleManager  Role = "manager"
	RoleOperator Role = "operator"
	RoleViewer   Role = "viewer"
)

// Actions checked by the alerting API.
const (
	ActionTriggerAlerts     = "trigger_alerts"
	ActionViewNotifications = "view_notifications"
)

// User represents a user in the system
type User struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Username   string             `bson:"username" json:"username"`
	Email      string             `bson:"email" json:"email"`
	Role       Role               `bson:"role" json:"role"`
	FirstName  string             `bson:"first_name" json:"first_name"`
	LastName   string             `bson:"last_name" json:"last_name"`
	IsActive   bool               `bson:"is_active" json:"is_active"`
	IsApproved bool               `bson:"is_approved" json:"is_approved"`
	CreatedAt  time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt  time.Time          `bson:"updated_at" json:"updated_at"`
}

// Claims represents JWT claims
type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
	Exp      int64  `json:"exp"`
}

// IsValidRole checks if a role is valid
func IsValidRole(role Role) bool {
	switch role {
	case RoleAdmin, RoleManager, RoleOperator, RoleViewer:
		return true
	default:
		return false
	}
}

// IsRecipient reports whether the user receives maintenance alert emails.
func (u *User) IsRecipient() bool {
	return u.Role == RoleAdmin && u.IsActive && u.IsApproved
}

// FullName falls back to the username when no name is recorded.
func (u *User) FullName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	default:
		return u.Username
	}
}

// HasPermission checks if a role may perform an alerting action
func HasPermission(role Role, action string) bool {
	switch role {
	case RoleAdmin:
		return true
	case RoleManager:
		return action == ActionTriggerAlerts || action == ActionViewNotifications
	case RoleOperator, RoleViewer:
		return action == ActionViewNotifications
	default:
		return false
	}
}
