// Copyright (c) 2026 Kinbank. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package rates

import "context"

// Repository defines the data access contract for exchange rates.
type Repository interface {

	// List returns the rates quoted against base, or every rate when base is
	// empty, ordered by base then quote.
	List(context context.Context, base string) ([]*Rate, error)

	Find(context context.Context, base, quote string) (*Rate, error)

	// Upsert creates or replaces the rate of its pair.
	Upsert(context context.Context, rate *Rate) error
}
