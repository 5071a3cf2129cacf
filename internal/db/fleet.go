package db

import (
	"context"
	"fmt"
	"time"

	"github.com/ukydev/fleet-maintenance/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MinHistoryLimit is the fewest maintenance records loaded per vehicle.
const MinHistoryLimit = 10

// MongoFleetSource reads vehicles and their maintenance history.
type MongoFleetSource struct {
	Vehicles    *mongo.Collection
	Maintenance *mongo.Collection
}

// ActiveVehicles returns ACTIVE, non-deleted vehicles, each with its latest
// historyLimit maintenance records newest first.
func (s *MongoFleetSource) ActiveVehicles(ctx context.Context, historyLimit int) ([]models.Vehicle, error) {
	if s.Vehicles == nil || s.Maintenance == nil {
		return nil, ErrNilCollection
	}
	if historyLimit < MinHistoryLimit {
		historyLimit = MinHistoryLimit
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"status":  models.VehicleActive,
			"deleted": bson.M{"$ne": true},
		}}},
		{{Key: "$lookup", Value: bson.M{
			"from": s.Maintenance.Name(),
			"let":  bson.M{"vid": "$_id"},
			"pipeline": bson.A{
				bson.M{"$match": bson.M{"$expr": bson.M{"$eq": bson.A{"$vehicle_id", "$$vid"}}}},
				bson.M{"$sort": bson.M{"date_performed": -1}},
				bson.M{"$limit": historyLimit},
			},
			"as": "history",
		}}},
	}

	cursor, err := s.Vehicles.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate active vehicles: %w", err)
	}
	var vehicles []models.Vehicle
	if err := cursor.All(ctx, &vehicles); err != nil {
		return nil, fmt.Errorf("decode active vehicles: %w", err)
	}
	return vehicles, nil
}

// RecentMaintenance returns fleet-wide records performed at or after since.
func (s *MongoFleetSource) RecentMaintenance(ctx context.Context, since time.Time) ([]models.Maintenance, error) {
	if s.Maintenance == nil {
		return nil, ErrNilCollection
	}
	opts := options.Find().SetSort(bson.D{{Key: "date_performed", Value: -1}})
	cursor, err := s.Maintenance.Find(ctx, bson.M{"date_performed": bson.M{"$gte": since}}, opts)
	if err != nil {
		return nil, fmt.Errorf("find recent maintenance: %w", err)
	}
	var records []models.Maintenance
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("decode recent maintenance: %w", err)
	}
	return records, nil
}
