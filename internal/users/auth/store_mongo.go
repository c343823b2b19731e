// Copyright (c) 2026 Kinbank. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/taibuivan/kinbank/internal/platform/constants"
	"github.com/taibuivan/kinbank/internal/platform/dberr"
)

// # Activation Tokens

// MongoActivationRepository implements [ActivationRepository] on the
// activation_tokens collection.
type MongoActivationRepository struct {
	collection *mongo.Collection
	timeouts   dberr.Timeouts
}

// NewActivationRepository binds the repository to database.
func NewActivationRepository(database *mongo.Database, timeouts dberr.Timeouts) *MongoActivationRepository {
	return &MongoActivationRepository{
		collection: database.Collection(constants.CollectionActivationTokens),
		timeouts:   timeouts,
	}
}

func (repository *MongoActivationRepository) Create(ctx context.Context, token *ActivationToken) error {
	callCtx, cancel := repository.timeouts.Write(ctx)
	defer cancel()

	if _, err := repository.collection.InsertOne(callCtx, token); err != nil {
		return dberr.Wrap(err, "mongo_activation_create")
	}
	return nil
}

func (repository *MongoActivationRepository) FindByToken(ctx context.Context, token string) (*ActivationToken, error) {
	callCtx, cancel := repository.timeouts.Read(ctx)
	defer cancel()

	record := &ActivationToken{}
	err := repository.collection.FindOne(callCtx, bson.D{{Key: "token", Value: token}}).Decode(record)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrTokenNotFound
		}
		return nil, dberr.Wrap(err, "mongo_activation_find")
	}
	return record, nil
}

/*
Activate performs the Issued -> Activated transition as one conditional
update, so concurrent confirmations of the same token flip it exactly once.
*/
func (repository *MongoActivationRepository) Activate(ctx context.Context, token string, now time.Time) (bool, error) {
	callCtx, cancel := repository.timeouts.Write(ctx)
	defer cancel()

	filter := bson.D{
		{Key: "token", Value: token},
		{Key: "activated", Value: false},
		{Key: "expires_at", Value: bson.D{{Key: "$gte", Value: now}}},
	}
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "activated", Value: true},
		{Key: "activated_at", Value: now},
	}}}

	result, err := repository.collection.UpdateOne(callCtx, filter, update)
	if err != nil {
		return false, dberr.Wrap(err, "mongo_activation_activate")
	}
	return result.ModifiedCount == 1, nil
}

// # Security Profiles

// MongoSecurityRepository implements [SecurityRepository] on the
// security_profiles collection. A unique index on email backs the upserts.
type MongoSecurityRepository struct {
	collection *mongo.Collection
	timeouts   dberr.Timeouts
	now        func() time.Time
}

// NewSecurityRepository binds the repository to database.
func NewSecurityRepository(database *mongo.Database, timeouts dberr.Timeouts) *MongoSecurityRepository {
	return &MongoSecurityRepository{
		collection: database.Collection(constants.CollectionSecurityProfiles),
		timeouts:   timeouts,
		now:        time.Now,
	}
}

func (repository *MongoSecurityRepository) FindByEmail(ctx context.Context, email string) (*SecurityProfile, error) {
	callCtx, cancel := repository.timeouts.Read(ctx)
	defer cancel()

	profile := &SecurityProfile{}
	if err := repository.collection.FindOne(callCtx, bson.D{{Key: "email", Value: email}}).Decode(profile); err != nil {
		return nil, dberr.Wrap(err, "mongo_security_find")
	}
	return profile, nil
}

func (repository *MongoSecurityRepository) SetRecoveryCode(ctx context.Context, email, code string, expiresAt time.Time) error {
	update := bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "recover_pin", Value: code},
			{Key: "expires_at", Value: expiresAt},
			{Key: "updated_at", Value: repository.now()},
		}},
		{Key: "$unset", Value: bson.D{
			{Key: "recover_attempts", Value: ""},
			{Key: "reset_allowed_until", Value: ""},
		}},
	}
	return repository.upsert(ctx, email, update, "mongo_security_set_recovery_code")
}

func (repository *MongoSecurityRepository) ConsumeRecoveryCode(ctx context.Context, email, code string, now, resetUntil time.Time) (bool, error) {
	filter := bson.D{
		{Key: "email", Value: email},
		{Key: "recover_pin", Value: code},
		{Key: "expires_at", Value: bson.D{{Key: "$gte", Value: now}}},
	}
	update := bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "reset_allowed_until", Value: resetUntil},
			{Key: "updated_at", Value: now},
		}},
		{Key: "$unset", Value: bson.D{
			{Key: "recover_pin", Value: ""},
			{Key: "recover_attempts", Value: ""},
			{Key: "expires_at", Value: ""},
		}},
	}
	return repository.conditional(ctx, filter, update, "mongo_security_consume_code")
}

/*
RecordFailedRecoveryAttempt increments the guess counter of code, then drops
the code in a second conditional update once the counter reached limit. Both
filters name code, so a freshly issued code is never touched.
*/
func (repository *MongoSecurityRepository) RecordFailedRecoveryAttempt(ctx context.Context, email, code string, limit int) error {
	now := repository.now()
	filter := bson.D{
		{Key: "email", Value: email},
		{Key: "recover_pin", Value: code},
	}
	increment := bson.D{
		{Key: "$inc", Value: bson.D{{Key: "recover_attempts", Value: 1}}},
		{Key: "$set", Value: bson.D{{Key: "updated_at", Value: now}}},
	}
	if _, err := repository.conditional(ctx, filter, increment, "mongo_security_count_attempt"); err != nil {
		return err
	}

	exhausted := append(filter, bson.E{Key: "recover_attempts", Value: bson.D{{Key: "$gte", Value: limit}}})
	discard := bson.D{
		{Key: "$set", Value: bson.D{{Key: "updated_at", Value: now}}},
		{Key: "$unset", Value: bson.D{
			{Key: "recover_pin", Value: ""},
			{Key: "recover_attempts", Value: ""},
			{Key: "expires_at", Value: ""},
		}},
	}
	_, err := repository.conditional(ctx, exhausted, discard, "mongo_security_discard_code")
	return err
}

func (repository *MongoSecurityRepository) CloseResetWindow(ctx context.Context, email string, now time.Time) (bool, error) {
	filter := bson.D{
		{Key: "email", Value: email},
		{Key: "reset_allowed_until", Value: bson.D{{Key: "$gt", Value: now}}},
	}
	update := bson.D{
		{Key: "$set", Value: bson.D{{Key: "updated_at", Value: now}}},
		{Key: "$unset", Value: bson.D{{Key: "reset_allowed_until", Value: ""}}},
	}
	return repository.conditional(ctx, filter, update, "mongo_security_close_window")
}

func (repository *MongoSecurityRepository) ReopenResetWindow(ctx context.Context, email string, until time.Time) error {
	filter := bson.D{
		{Key: "email", Value: email},
		{Key: "reset_allowed_until", Value: bson.D{{Key: "$exists", Value: false}}},
	}
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "reset_allowed_until", Value: until},
		{Key: "updated_at", Value: repository.now()},
	}}}
	_, err := repository.conditional(ctx, filter, update, "mongo_security_reopen_window")
	return err
}

func (repository *MongoSecurityRepository) SetSecurityQuestion(ctx context.Context, email, question, answerHash string) error {
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "security_question", Value: question},
		{Key: "security_answer_hash", Value: answerHash},
		{Key: "updated_at", Value: repository.now()},
	}}}
	return repository.upsert(ctx, email, update, "mongo_security_set_question")
}

func (repository *MongoSecurityRepository) SetTransactionPin(ctx context.Context, email, pinHash string) error {
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "transaction_pin_hash", Value: pinHash},
		{Key: "updated_at", Value: repository.now()},
	}}}
	return repository.upsert(ctx, email, update, "mongo_security_set_pin")
}

// upsert applies update to the profile keyed by email, creating it if absent.
//
// Two first-time upserts for the same email can race on the unique index;
// the loser sees a duplicate key error and is retried once as a plain update.
func (repository *MongoSecurityRepository) upsert(ctx context.Context, email string, update bson.D, action string) error {
	callCtx, cancel := repository.timeouts.Write(ctx)
	defer cancel()

	filter := bson.D{{Key: "email", Value: email}}
	_, err := repository.collection.UpdateOne(callCtx, filter, update, options.UpdateOne().SetUpsert(true))
	if mongo.IsDuplicateKeyError(err) {
		_, err = repository.collection.UpdateOne(callCtx, filter, update)
	}
	if err != nil {
		return dberr.Wrap(err, action)
	}
	return nil
}

func (repository *MongoSecurityRepository) conditional(ctx context.Context, filter, update bson.D, action string) (bool, error) {
	callCtx, cancel := repository.timeouts.Write(ctx)
	defer cancel()

	result, err := repository.collection.UpdateOne(callCtx, filter, update)
	if err != nil {
		return false, dberr.Wrap(err, action)
	}
	return result.ModifiedCount == 1, nil
}
