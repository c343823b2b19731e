// Copyright (c) 2026 Kinbank. All rights reserved.
// Author: tai.buivan.jp@gmail.com

//go:build integration

/*
Package mongotest hands store integration tests a private database on a
disposable MongoDB container.

One container is started per test binary. Each call to [Database] gets a
fresh database with the production indexes, dropped when the test ends.
The container itself is reaped by testcontainers once the binary exits.

Run with:

	go test -tags integration ./...
*/
package mongotest

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/v2/mongo"

	platformmongo "github.com/taibuivan/kinbank/internal/platform/mongo"
)

const image = "mongo:7"

var (
	startOnce sync.Once
	client    *mongo.Client
	startErr  error
)

func start() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	container, err := mongodb.Run(ctx, image)
	if err != nil {
		startErr = err
		return
	}

	uri, err := container.ConnectionString(ctx)
	if err != nil {
		startErr = err
		return
	}

	client, startErr = platformmongo.NewClient(ctx, uri, slog.New(slog.DiscardHandler))
}

// Database returns an empty, indexed database owned by t.
func Database(t *testing.T) *mongo.Database {
	t.Helper()

	startOnce.Do(start)
	require.NoError(t, startErr, "mongo container")

	ctx := context.Background()
	name := "kinbank_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	database := client.Database(name)

	require.NoError(t, platformmongo.EnsureIndexes(ctx, database, slog.New(slog.DiscardHandler)))
	t.Cleanup(func() { _ = database.Drop(context.Background()) })

	return database
}
