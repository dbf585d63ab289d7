package mongostore

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureIndexes creates the indexes the repositories rely on, including the
// unique email index behind store.ErrConflict.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	users := []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true).SetName("email_unique")},
		{Keys: bson.D{{Key: "userType", Value: 1}}},
	}
	if _, err := db.Collection(usersCollection).Indexes().CreateMany(ctx, users); err != nil {
		return fmt.Errorf("create user indexes: %w", err)
	}

	properties := []mongo.IndexModel{
		{Keys: bson.D{{Key: "owner", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "isPublished", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "location.city", Value: 1}, {Key: "location.district", Value: 1}}},
		{Keys: bson.D{{Key: "price", Value: 1}}},
		{Keys: bson.D{{Key: "features", Value: 1}}},
	}
	if _, err := db.Collection(propertiesCollection).Indexes().CreateMany(ctx, properties); err != nil {
		return fmt.Errorf("create property indexes: %w", err)
	}
	return nil
}
