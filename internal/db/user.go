package db

import (
	"context"
	"fmt"

	"github.com/ukydev/fleet-maintenance/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// MongoUserCollection reads users for alert delivery.
type MongoUserCollection struct {
	Collection *mongo.Collection
}

// Recipients returns active, approved administrators.
func (c *MongoUserCollection) Recipients(ctx context.Context) ([]models.User, error) {
	if c.Collection == nil {
		return nil, ErrNilCollection
	}
	filter := bson.M{
		"role":        models.RoleAdmin,
		"is_active":   true,
		"is_approved": true,
	}
	cursor, err := c.Collection.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("find recipients: %w", err)
	}
	var users []models.User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("decode recipients: %w", err)
	}
	return users, nil
}
