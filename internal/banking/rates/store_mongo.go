// Copyright (c) 2026 Kinbank. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package rates

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/taibuivan/kinbank/internal/platform/constants"
	"github.com/taibuivan/kinbank/internal/platform/dberr"
)

// MongoRepository implements [Repository] on the exchange_rates collection,
// which carries a unique (base, quote) index.
type MongoRepository struct {
	collection *mongo.Collection
	timeouts   dberr.Timeouts
}

// NewMongoRepository binds the repository to database.
func NewMongoRepository(database *mongo.Database, timeouts dberr.Timeouts) *MongoRepository {
	return &MongoRepository{
		collection: database.Collection(constants.CollectionExchangeRates),
		timeouts:   timeouts,
	}
}

func (repository *MongoRepository) List(ctx context.Context, base string) ([]*Rate, error) {
	callCtx, cancel := repository.timeouts.Read(ctx)
	defer cancel()

	filter := bson.D{}
	if base != "" {
		filter = bson.D{{Key: "base", Value: base}}
	}
	sort := options.Find().SetSort(bson.D{{Key: "base", Value: 1}, {Key: "quote", Value: 1}})

	cursor, err := repository.collection.Find(callCtx, filter, sort)
	if err != nil {
		return nil, dberr.Wrap(err, "mongo_rate_list")
	}

	rates := []*Rate{}
	if err := cursor.All(callCtx, &rates); err != nil {
		return nil, dberr.Wrap(err, "mongo_rate_decode")
	}
	return rates, nil
}

func (repository *MongoRepository) Find(ctx context.Context, base, quote string) (*Rate, error) {
	callCtx, cancel := repository.timeouts.Read(ctx)
	defer cancel()

	rate := &Rate{}
	err := repository.collection.FindOne(callCtx, pairFilter(base, quote)).Decode(rate)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrRateNotFound
		}
		return nil, dberr.Wrap(err, "mongo_rate_find")
	}
	return rate, nil
}

// Upsert writes the pair in one UpdateOne. Two racing first writes may hit
// the unique index; the loser retries as a plain update.
func (repository *MongoRepository) Upsert(ctx context.Context, rate *Rate) error {
	callCtx, cancel := repository.timeouts.Write(ctx)
	defer cancel()

	filter := pairFilter(rate.Base, rate.Quote)
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "rate", Value: rate.Rate},
		{Key: "updated_at", Value: rate.UpdatedAt},
	}}}

	_, err := repository.collection.UpdateOne(callCtx, filter, update, options.UpdateOne().SetUpsert(true))
	if mongo.IsDuplicateKeyError(err) {
		_, err = repository.collection.UpdateOne(callCtx, filter, update)
	}
	if err != nil {
		return dberr.Wrap(err, "mongo_rate_upsert")
	}
	return nil
}

func pairFilter(base, quote string) bson.D {
	return bson.D{{Key: "base", Value: base}, {Key: "quote", Value: quote}}
}
