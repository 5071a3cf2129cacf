package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ukydev/fleet-maintenance/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoNotificationSink persists alerts in the notification feed.
type MongoNotificationSink struct {
	Collection *mongo.Collection
}

// EnsureIndexes creates the index backing FindRecent and the feed listing.
func (s *MongoNotificationSink) EnsureIndexes(ctx context.Context) error {
	if s.Collection == nil {
		return ErrNilCollection
	}
	_, err := s.Collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{
			{Key: "kind", Value: 1},
			{Key: "title", Value: 1},
			{Key: "vehicle_id", Value: 1},
			{Key: "created_at", Value: -1},
		}},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("create notification indexes: %w", err)
	}
	return nil
}

// Create inserts alert and fills in its ID and CreatedAt.
func (s *MongoNotificationSink) Create(ctx context.Context, alert *models.Alert) error {
	if s.Collection == nil {
		return ErrNilCollection
	}
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now()
	}
	res, err := s.Collection.InsertOne(ctx, alert)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		alert.ID = id
	}
	return nil
}

// FindRecent returns the newest alert with the same kind, title and vehicle
// created at or after since, or nil. vehicleID "" matches fleet-wide alerts.
func (s *MongoNotificationSink) FindRecent(ctx context.Context, kind models.AlertKind, title, vehicleID string, since time.Time) (*models.Alert, error) {
	if s.Collection == nil {
		return nil, ErrNilCollection
	}
	filter := bson.M{
		"kind":       kind,
		"title":      title,
		"created_at": bson.M{"$gte": since},
		"vehicle_id": nil,
	}
	if vehicleID != "" {
		oid, err := primitive.ObjectIDFromHex(vehicleID)
		if err != nil {
			return nil, fmt.Errorf("invalid vehicle ID: %w", err)
		}
		filter["vehicle_id"] = oid
	}

	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})
	var alert models.Alert
	err := s.Collection.FindOne(ctx, filter, opts).Decode(&alert)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find recent notification: %w", err)
	}
	return &alert, nil
}

// List returns the newest alerts, at most limit.
func (s *MongoNotificationSink) List(ctx context.Context, limit int64) ([]models.Alert, error) {
	if s.Collection == nil {
		return nil, ErrNilCollection
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(limit)
	cursor, err := s.Collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	alerts := []models.Alert{}
	if err := cursor.All(ctx, &alerts); err != nil {
		return nil, fmt.Errorf("decode notifications: %w", err)
	}
	return alerts, nil
}
