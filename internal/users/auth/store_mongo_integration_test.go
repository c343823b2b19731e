// Copyright (c) 2026 Kinbank. All rights reserved.
// Author: tai.buivan.jp@gmail.com

//go:build integration

package auth_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/taibuivan/kinbank/internal/platform/constants"
	"github.com/taibuivan/kinbank/internal/platform/dberr"
	"github.com/taibuivan/kinbank/internal/platform/mongo/mongotest"
	"github.com/taibuivan/kinbank/internal/users/auth"
)

var mongoTimeouts = dberr.Timeouts{Call: 5 * time.Second}

// mongoNow is truncated to the millisecond precision BSON dates keep.
func mongoNow() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

func TestMongoActivationRepository(t *testing.T) {
	ctx := context.Background()
	now := mongoNow()

	issue := func(t *testing.T, repository *auth.MongoActivationRepository, value string, expiresAt time.Time) {
		t.Helper()
		require.NoError(t, repository.Create(ctx, &auth.ActivationToken{
			Username:  "bob",
			Email:     "b@x.com",
			Token:     value,
			CreatedAt: now,
			ExpiresAt: expiresAt,
		}))
	}

	t.Run("activates once", func(t *testing.T) {
		repository := auth.NewActivationRepository(mongotest.Database(t), mongoTimeouts)
		issue(t, repository, "tok-1", now.Add(5*time.Minute))

		activated, err := repository.Activate(ctx, "tok-1", now)
		require.NoError(t, err)
		assert.True(t, activated)

		activated, err = repository.Activate(ctx, "tok-1", now)
		require.NoError(t, err)
		assert.False(t, activated)

		stored, err := repository.FindByToken(ctx, "tok-1")
		require.NoError(t, err)
		assert.True(t, stored.Activated)
		require.NotNil(t, stored.ActivatedAt)
		assert.True(t, now.Equal(*stored.ActivatedAt))
	})

	t.Run("expired token does not activate", func(t *testing.T) {
		repository := auth.NewActivationRepository(mongotest.Database(t), mongoTimeouts)
		issue(t, repository, "tok-old", now.Add(-time.Second))

		activated, err := repository.Activate(ctx, "tok-old", now)
		require.NoError(t, err)
		assert.False(t, activated)

		stored, err := repository.FindByToken(ctx, "tok-old")
		require.NoError(t, err)
		assert.False(t, stored.Activated)
	})

	t.Run("expiry instant itself still activates", func(t *testing.T) {
		repository := auth.NewActivationRepository(mongotest.Database(t), mongoTimeouts)
		issue(t, repository, "tok-edge", now)

		activated, err := repository.Activate(ctx, "tok-edge", now)
		require.NoError(t, err)
		assert.True(t, activated)
	})

	t.Run("concurrent confirmations flip once", func(t *testing.T) {
		repository := auth.NewActivationRepository(mongotest.Database(t), mongoTimeouts)
		issue(t, repository, "tok-race", now.Add(time.Minute))

		var wg sync.WaitGroup
		var wins atomic.Int32
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				activated, err := repository.Activate(ctx, "tok-race", now)
				if err == nil && activated {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, int32(1), wins.Load())
	})

	t.Run("unknown token", func(t *testing.T) {
		repository := auth.NewActivationRepository(mongotest.Database(t), mongoTimeouts)
		_, err := repository.FindByToken(ctx, "missing")
		assert.ErrorIs(t, err, auth.ErrTokenNotFound)
	})
}

func TestMongoSecurityRepository(t *testing.T) {
	ctx := context.Background()
	now := mongoNow()
	const email = "a@x.com"

	t.Run("a code is consumed once and opens the window", func(t *testing.T) {
		repository := auth.NewSecurityRepository(mongotest.Database(t), mongoTimeouts)
		require.NoError(t, repository.SetRecoveryCode(ctx, email, "1234", now.Add(time.Minute)))

		consumed, err := repository.ConsumeRecoveryCode(ctx, email, "9999", now, now.Add(10*time.Minute))
		require.NoError(t, err)
		assert.False(t, consumed, "wrong code")

		consumed, err = repository.ConsumeRecoveryCode(ctx, email, "1234", now, now.Add(10*time.Minute))
		require.NoError(t, err)
		assert.True(t, consumed)

		consumed, err = repository.ConsumeRecoveryCode(ctx, email, "1234", now, now.Add(10*time.Minute))
		require.NoError(t, err)
		assert.False(t, consumed, "second use")

		profile, err := repository.FindByEmail(ctx, email)
		require.NoError(t, err)
		assert.Empty(t, profile.RecoverPin)
		assert.Nil(t, profile.ExpiresAt)
		assert.True(t, profile.ResetAllowed(now))
	})

	t.Run("expired code is not consumed", func(t *testing.T) {
		repository := auth.NewSecurityRepository(mongotest.Database(t), mongoTimeouts)
		require.NoError(t, repository.SetRecoveryCode(ctx, email, "1234", now))

		consumed, err := repository.ConsumeRecoveryCode(ctx, email, "1234", now.Add(time.Millisecond), now.Add(10*time.Minute))
		require.NoError(t, err)
		assert.False(t, consumed)
	})

	t.Run("reissue closes an open window", func(t *testing.T) {
		repository := auth.NewSecurityRepository(mongotest.Database(t), mongoTimeouts)
		require.NoError(t, repository.SetRecoveryCode(ctx, email, "1234", now.Add(time.Minute)))
		_, err := repository.ConsumeRecoveryCode(ctx, email, "1234", now, now.Add(10*time.Minute))
		require.NoError(t, err)

		require.NoError(t, repository.SetRecoveryCode(ctx, email, "5678", now.Add(time.Minute)))

		profile, err := repository.FindByEmail(ctx, email)
		require.NoError(t, err)
		assert.False(t, profile.ResetAllowed(now))
		assert.Equal(t, "5678", profile.RecoverPin)
	})

	t.Run("window closes once and can be reopened", func(t *testing.T) {
		repository := auth.NewSecurityRepository(mongotest.Database(t), mongoTimeouts)
		until := now.Add(10 * time.Minute)
		require.NoError(t, repository.SetRecoveryCode(ctx, email, "1234", now.Add(time.Minute)))
		_, err := repository.ConsumeRecoveryCode(ctx, email, "1234", now, until)
		require.NoError(t, err)

		closed, err := repository.CloseResetWindow(ctx, email, now)
		require.NoError(t, err)
		assert.True(t, closed)
		closed, err = repository.CloseResetWindow(ctx, email, now)
		require.NoError(t, err)
		assert.False(t, closed)

		require.NoError(t, repository.ReopenResetWindow(ctx, email, until))
		require.NoError(t, repository.ReopenResetWindow(ctx, email, until.Add(time.Hour)))

		profile, err := repository.FindByEmail(ctx, email)
		require.NoError(t, err)
		require.NotNil(t, profile.ResetAllowedUntil)
		assert.True(t, until.Equal(*profile.ResetAllowedUntil), "an open window is not extended")
	})

	t.Run("elapsed window does not close", func(t *testing.T) {
		repository := auth.NewSecurityRepository(mongotest.Database(t), mongoTimeouts)
		require.NoError(t, repository.SetRecoveryCode(ctx, email, "1234", now.Add(time.Minute)))
		_, err := repository.ConsumeRecoveryCode(ctx, email, "1234", now, now.Add(time.Second))
		require.NoError(t, err)

		closed, err := repository.CloseResetWindow(ctx, email, now.Add(time.Second))
		require.NoError(t, err)
		assert.False(t, closed)
	})

	t.Run("failed attempts discard the code at the limit", func(t *testing.T) {
		repository := auth.NewSecurityRepository(mongotest.Database(t), mongoTimeouts)
		require.NoError(t, repository.SetRecoveryCode(ctx, email, "1234", now.Add(time.Minute)))

		for range 2 {
			require.NoError(t, repository.RecordFailedRecoveryAttempt(ctx, email, "1234", 3))
		}
		profile, err := repository.FindByEmail(ctx, email)
		require.NoError(t, err)
		assert.Equal(t, "1234", profile.RecoverPin)
		assert.Equal(t, 2, profile.RecoverAttempts)

		require.NoError(t, repository.RecordFailedRecoveryAttempt(ctx, email, "1234", 3))
		profile, err = repository.FindByEmail(ctx, email)
		require.NoError(t, err)
		assert.Empty(t, profile.RecoverPin)
		assert.Zero(t, profile.RecoverAttempts)

		consumed, err := repository.ConsumeRecoveryCode(ctx, email, "1234", now, now.Add(time.Minute))
		require.NoError(t, err)
		assert.False(t, consumed)
	})

	t.Run("attempts against a replaced code are ignored", func(t *testing.T) {
		repository := auth.NewSecurityRepository(mongotest.Database(t), mongoTimeouts)
		require.NoError(t, repository.SetRecoveryCode(ctx, email, "1234", now.Add(time.Minute)))
		require.NoError(t, repository.RecordFailedRecoveryAttempt(ctx, email, "1234", 3))
		require.NoError(t, repository.SetRecoveryCode(ctx, email, "5678", now.Add(time.Minute)))

		require.NoError(t, repository.RecordFailedRecoveryAttempt(ctx, email, "1234", 1))

		profile, err := repository.FindByEmail(ctx, email)
		require.NoError(t, err)
		assert.Equal(t, "5678", profile.RecoverPin)
		assert.Zero(t, profile.RecoverAttempts, "reissue resets the counter")
	})

	t.Run("racing first writes leave one profile", func(t *testing.T) {
		database := mongotest.Database(t)
		repository := auth.NewSecurityRepository(database, mongoTimeouts)

		var wg sync.WaitGroup
		errs := make(chan error, 8)
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs <- repository.SetTransactionPin(ctx, "race@x.com", "hash")
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			assert.NoError(t, err)
		}

		count, err := database.Collection(constants.CollectionSecurityProfiles).
			CountDocuments(ctx, bson.D{{Key: "email", Value: "race@x.com"}})
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})

	t.Run("missing profile is not found", func(t *testing.T) {
		repository := auth.NewSecurityRepository(mongotest.Database(t), mongoTimeouts)
		_, err := repository.FindByEmail(ctx, "nobody@x.com")
		assert.ErrorIs(t, err, dberr.ErrNotFound)
	})
}
