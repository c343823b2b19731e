// Copyright (c) 2026 Kinbank. All rights reserved.
// Author: tai.buivan.jp@gmail.com

//go:build integration

package rates_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/taibuivan/kinbank/internal/banking/rates"
	"github.com/taibuivan/kinbank/internal/platform/constants"
	"github.com/taibuivan/kinbank/internal/platform/dberr"
	"github.com/taibuivan/kinbank/internal/platform/mongo/mongotest"
)

func TestMongoRepository(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)
	timeouts := dberr.Timeouts{Call: 5 * time.Second}

	t.Run("upsert replaces the pair and list is ordered", func(t *testing.T) {
		repository := rates.NewMongoRepository(mongotest.Database(t), timeouts)

		for _, rate := range []*rates.Rate{
			{Base: "USD", Quote: "VND", Rate: 25000, UpdatedAt: now},
			{Base: "EUR", Quote: "USD", Rate: 1.1, UpdatedAt: now},
			{Base: "USD", Quote: "EUR", Rate: 0.9, UpdatedAt: now},
			{Base: "USD", Quote: "VND", Rate: 25400, UpdatedAt: now.Add(time.Minute)},
		} {
			require.NoError(t, repository.Upsert(ctx, rate))
		}

		found, err := repository.Find(ctx, "USD", "VND")
		require.NoError(t, err)
		assert.Equal(t, 25400.0, found.Rate)
		assert.True(t, now.Add(time.Minute).Equal(found.UpdatedAt))

		all, err := repository.List(ctx, "")
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, []string{"EUR/USD", "USD/EUR", "USD/VND"}, pairs(all))

		usd, err := repository.List(ctx, "USD")
		require.NoError(t, err)
		assert.Equal(t, []string{"USD/EUR", "USD/VND"}, pairs(usd))
	})

	t.Run("missing pair", func(t *testing.T) {
		repository := rates.NewMongoRepository(mongotest.Database(t), timeouts)

		_, err := repository.Find(ctx, "USD", "JPY")
		assert.ErrorIs(t, err, rates.ErrRateNotFound)

		empty, err := repository.List(ctx, "JPY")
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("racing first upserts leave one document", func(t *testing.T) {
		database := mongotest.Database(t)
		repository := rates.NewMongoRepository(database, timeouts)

		var wg sync.WaitGroup
		errs := make(chan error, 8)
		for i := range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs <- repository.Upsert(ctx, &rates.Rate{Base: "GBP", Quote: "USD", Rate: 1.2 + float64(i)/100, UpdatedAt: now})
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			assert.NoError(t, err)
		}

		count, err := database.Collection(constants.CollectionExchangeRates).
			CountDocuments(ctx, bson.D{{Key: "base", Value: "GBP"}, {Key: "quote", Value: "USD"}})
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})
}

func pairs(list []*rates.Rate) []string {
	out := make([]string, 0, len(list))
	for _, rate := range list {
		out = append(out, rate.Base+"/"+rate.Quote)
	}
	return out
}
