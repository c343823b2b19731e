// Copyright (c) 2026 Kinbank. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package mongo provides a managed client for the document store.

Activation tokens, security profiles, customer profiles and exchange rates
live here. They are keyed by business identifiers (email, username, token)
rather than relational foreign keys.

Core Responsibilities:

  - Lifecycle: One pooled client per process, created and closed by cmd/api.
  - Schema: Unique indexes that make the stores' upserts atomic per key.
*/
package mongo

import (
	stdctx "context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/taibuivan/kinbank/internal/platform/constants"
)

// Opinionated client settings for the Kinbank workload.
const (
	connectTimeout         = 5 * time.Second
	serverSelectionTimeout = 5 * time.Second
	pingTimeout            = 2 * time.Second
	maxPoolSize            = 25
	minPoolSize            = 2
)

// NewClient connects to MongoDB and validates the connection with a ping.
//
// # Parameters
//   - context: Context for the initial ping.
//   - uri: A mongodb:// or mongodb+srv:// connection string.
//   - logger: Structured logger for connection events.
func NewClient(context stdctx.Context, uri string, logger *slog.Logger) (*mongo.Client, error) {
	clientOptions := options.Client().
		ApplyURI(uri).
		SetAppName(constants.AppName).
		SetConnectTimeout(connectTimeout).
		SetServerSelectionTimeout(serverSelectionTimeout).
		SetMaxPoolSize(maxPoolSize).
		SetMinPoolSize(minPoolSize)

	client, err := mongo.Connect(clientOptions)
	if err != nil {
		return nil, fmt.Errorf("mongo: failed to create client: %w", err)
	}

	if err := Ping(context, client); err != nil {
		_ = client.Disconnect(stdctx.Background())
		return nil, err
	}

	logger.Info("mongo client connected", slog.Int("max_pool_size", maxPoolSize))

	return client, nil
}

// Ping verifies that the primary is reachable.
func Ping(context stdctx.Context, client *mongo.Client) error {
	pingCtx, cancel := stdctx.WithTimeout(context, pingTimeout)
	defer cancel()

	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		return fmt.Errorf("mongo: ping failed: %w", err)
	}
	return nil
}

// EnsureIndexes creates the unique indexes the document stores rely on.
// Creating an index that already exists is a no-op, so this runs on every start.
func EnsureIndexes(context stdctx.Context, database *mongo.Database, logger *slog.Logger) error {
	plan := map[string][]mongo.IndexModel{
		constants.CollectionActivationTokens: {
			{Keys: bson.D{{Key: "token", Value: 1}}, Options: options.Index().SetUnique(true).SetName("uniq_token")},
			{Keys: bson.D{{Key: "user_name", Value: 1}, {Key: "activated", Value: 1}}, Options: options.Index().SetName("by_user_name")},
		},
		constants.CollectionSecurityProfiles: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true).SetName("uniq_email")},
		},
		constants.CollectionProfiles: {
			{Keys: bson.D{{Key: "user_id", Value: 1}}, Options: options.Index().SetUnique(true).SetName("uniq_user_id")},
			{Keys: bson.D{{Key: "image_ref", Value: 1}}, Options: options.Index().SetName("by_image_ref")},
		},
		constants.CollectionExchangeRates: {
			{Keys: bson.D{{Key: "base", Value: 1}, {Key: "quote", Value: 1}}, Options: options.Index().SetUnique(true).SetName("uniq_pair")},
		},
	}

	for collection, models := range plan {
		names, err := database.Collection(collection).Indexes().CreateMany(context, models)
		if err != nil {
			return fmt.Errorf("mongo: failed to create indexes on %s: %w", collection, err)
		}
		logger.Debug("mongo_indexes_ensured", slog.String("collection", collection), slog.Any("indexes", names))
	}

	return nil
}
