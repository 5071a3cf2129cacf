package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/ukydev/fleet-maintenance/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// SettingsDocumentID is the _id of the system settings document.
const SettingsDocumentID = "system"

// MongoSettingsSource reads the admin-managed settings document.
type MongoSettingsSource struct {
	Collection *mongo.Collection
}

// Load returns the stored settings. A missing document yields empty settings,
// which the engine treats as "nothing configured".
func (s *MongoSettingsSource) Load(ctx context.Context) (*models.Settings, error) {
	if s.Collection == nil {
		return nil, ErrNilCollection
	}
	var settings models.Settings
	err := s.Collection.FindOne(ctx, bson.M{"_id": SettingsDocumentID}).Decode(&settings)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return &models.Settings{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	return &settings, nil
}
