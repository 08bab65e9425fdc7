package database

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// IdentitiesCollection is the collection holding identity documents
const IdentitiesCollection = "identities"

// Index names, referenced when classifying duplicate key errors
const (
	MongoEmailIndex       = "uniq_email"
	MongoFederatedIDIndex = "uniq_federated_id"
)

// OpenMongo connects and pings a MongoDB deployment
func OpenMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	return client, nil
}

// EnsureMongoIndexes creates the unique and lookup indexes on the identities collection
func EnsureMongoIndexes(ctx context.Context, db *mongo.Database) error {
	models := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetName(MongoEmailIndex).SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "federated_id", Value: 1}},
			Options: options.Index().SetName(MongoFederatedIDIndex).SetUnique(true).SetSparse(true),
		},
		{
			Keys:    bson.D{{Key: "email_verification_token", Value: 1}},
			Options: options.Index().SetName("idx_email_verification_token").SetSparse(true),
		},
		{
			Keys:    bson.D{{Key: "reset_token_hash", Value: 1}},
			Options: options.Index().SetName("idx_reset_token_hash").SetSparse(true),
		},
	}

	if _, err := db.Collection(IdentitiesCollection).Indexes().CreateMany(ctx, models); err != nil {
		return fmt.Errorf("failed to create identity indexes: %w", err)
	}

	return nil
}
