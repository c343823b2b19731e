// Copyright (c) 2026 Kinbank. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package dberr provides a bridge between low-level store errors (pgx, mongo,
// go-redis) and
// higher-level application errors, plus the deadline policy every store call runs under.
package dberr

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/taibuivan/kinbank/internal/platform/apperr"
	"github.com/taibuivan/kinbank/internal/platform/constants"
)

var (
	// ErrNotFound is a standard error returned when a queried row doesn't exist.
	ErrNotFound = apperr.NotFound("Resource")
)

// # Deadlines

// Timeouts carries the per-call budget for store operations.
//
// The zero value uses [constants.DefaultStoreTimeout].
type Timeouts struct {
	Call time.Duration
}

func (t Timeouts) budget() time.Duration {
	if t.Call <= 0 {
		return constants.DefaultStoreTimeout
	}
	return t.Call
}

// Read derives a context for a read-only store call.
//
// It inherits cancellation from ctx, so an abandoned request stops reading.
func (t Timeouts) Read(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, t.budget())
}

// Write derives a context for a mutating store call.
//
// The returned context ignores cancellation of ctx: once a write has been
// issued it either completes or fails on its own deadline, never half-way
// because the client disconnected.
func (t Timeouts) Write(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), t.budget())
}

// # Classification

// Wrap inspects a store error and wraps it into a meaningful [apperr.AppError].
// It hides internal database details from the client while classifying the error type.
func Wrap(err error, action string) error {
	if err == nil {
		return nil
	}

	// Already classified further down the stack.
	if apperr.IsAppError(err) {
		return err
	}

	// 1. Not Found mapping
	if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}

	if mongo.IsDuplicateKeyError(err) {
		return apperr.Conflict("Resource already exists").WithCause(err)
	}

	// 2. Constraint violations
	var pgError *pgconn.PgError
	if errors.As(err, &pgError) {
		switch pgError.Code {
		case pgerrcode.UniqueViolation:
			return apperr.Conflict("Resource already exists").WithCause(err)
		case pgerrcode.ForeignKeyViolation:
			return apperr.NotFound("Referenced resource").WithCause(err)
		case pgerrcode.CheckViolation:
			return apperr.Unprocessable("Operation violates a data constraint").WithCause(err)
		case pgerrcode.QueryCanceled, pgerrcode.AdminShutdown, pgerrcode.CannotConnectNow:
			return apperr.StoreUnavailable(err)
		}
	}

	// 3. Deadlines and unreachable stores are retryable by the caller
	if IsUnavailable(err) {
		return apperr.StoreUnavailable(err)
	}

	// 4. Unknown query errors become Internal Server Errors
	return apperr.Internal(errors.Join(errors.New(action), err))
}

// IsUnavailable reports whether err means the store could not answer in time
// or could not be reached at all.
func IsUnavailable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if mongo.IsTimeout(err) || mongo.IsNetworkError(err) {
		return true
	}
	var netError net.Error
	if errors.As(err, &netError) {
		return true
	}
	var connectError *pgconn.ConnectError
	return errors.As(err, &connectError)
}

// IsUniqueViolation reports whether err is a PostgreSQL unique constraint violation.
func IsUniqueViolation(err error) bool {
	var pgError *pgconn.PgError
	return errors.As(err, &pgError) && pgError.Code == pgerrcode.UniqueViolation
}
