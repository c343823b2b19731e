// Copyright (c) 2026 Kinbank. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package profile

import (
	"context"
	"time"
)

// Repository defines the data access contract for profile documents.
//
// Every write is a single upsert keyed by user ID.
type Repository interface {

	// FindByUserID returns a not found error when no document exists yet.
	FindByUserID(context context.Context, userID string) (*Profile, error)

	SetImage(context context.Context, userID, imageRef string, now time.Time) error

	SetPincode(context context.Context, userID, pincodeHash string, now time.Time) error

	MarkActivated(context context.Context, userID string, now time.Time) error
}
