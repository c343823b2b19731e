// Copyright (c) 2026 Kinbank. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package profile

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/taibuivan/kinbank/internal/platform/constants"
	"github.com/taibuivan/kinbank/internal/platform/dberr"
)

// MongoRepository implements [Repository] on the profiles collection.
type MongoRepository struct {
	collection *mongo.Collection
	timeouts   dberr.Timeouts
}

// NewMongoRepository binds the repository to database.
func NewMongoRepository(database *mongo.Database, timeouts dberr.Timeouts) *MongoRepository {
	return &MongoRepository{
		collection: database.Collection(constants.CollectionProfiles),
		timeouts:   timeouts,
	}
}

func (repository *MongoRepository) FindByUserID(ctx context.Context, userID string) (*Profile, error) {
	callCtx, cancel := repository.timeouts.Read(ctx)
	defer cancel()

	profile := &Profile{}
	if err := repository.collection.FindOne(callCtx, bson.D{{Key: "user_id", Value: userID}}).Decode(profile); err != nil {
		return nil, dberr.Wrap(err, "mongo_profile_find")
	}
	return profile, nil
}

func (repository *MongoRepository) SetImage(ctx context.Context, userID, imageRef string, now time.Time) error {
	return repository.set(ctx, userID, bson.D{
		{Key: "image_ref", Value: imageRef},
		{Key: "updated_at", Value: now},
	}, "mongo_profile_set_image")
}

func (repository *MongoRepository) SetPincode(ctx context.Context, userID, pincodeHash string, now time.Time) error {
	return repository.set(ctx, userID, bson.D{
		{Key: "pincode_hash", Value: pincodeHash},
		{Key: "updated_at", Value: now},
	}, "mongo_profile_set_pincode")
}

func (repository *MongoRepository) MarkActivated(ctx context.Context, userID string, now time.Time) error {
	return repository.set(ctx, userID, bson.D{
		{Key: "activated", Value: true},
		{Key: "updated_at", Value: now},
	}, "mongo_profile_mark_activated")
}

// set upserts fields into the document of userID. A duplicate key error from
// two racing first writes is retried once as a plain update.
func (repository *MongoRepository) set(ctx context.Context, userID string, fields bson.D, action string) error {
	callCtx, cancel := repository.timeouts.Write(ctx)
	defer cancel()

	filter := bson.D{{Key: "user_id", Value: userID}}
	update := bson.D{{Key: "$set", Value: fields}}

	_, err := repository.collection.UpdateOne(callCtx, filter, update, options.UpdateOne().SetUpsert(true))
	if mongo.IsDuplicateKeyError(err) {
		_, err = repository.collection.UpdateOne(callCtx, filter, update)
	}
	if err != nil {
		return dberr.Wrap(err, action)
	}
	return nil
}
