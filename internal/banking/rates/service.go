// Copyright (c) 2026 Kinbank. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package rates

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/taibuivan/kinbank/internal/platform/ctxutil"
	"github.com/taibuivan/kinbank/internal/platform/dberr"
)

// Service maintains exchange rates and converts amounts with them.
type Service struct {
	repository Repository
	now        func() time.Time
}

// NewService constructs a new [Service]. A nil clock uses time.Now.
func NewService(repository Repository, clock func() time.Time) *Service {
	if clock == nil {
		clock = time.Now
	}
	return &Service{repository: repository, now: clock}
}

// List returns the rates quoted against base, or all rates for an empty base.
func (service *Service) List(ctx context.Context, base string) ([]*Rate, error) {
	return service.repository.List(ctx, normalize(base))
}

// Upsert sets the rate of one base/quote pair.
func (service *Service) Upsert(ctx context.Context, base, quote string, value float64) (*Rate, error) {
	base, quote = normalize(base), normalize(quote)
	if base == quote {
		return nil, ErrSamePair
	}

	rate := &Rate{Base: base, Quote: quote, Rate: value, UpdatedAt: service.now().UTC()}
	if err := service.repository.Upsert(ctx, rate); err != nil {
		return nil, err
	}

	ctxutil.GetLogger(ctx).InfoContext(ctx, "exchange_rate_updated",
		slog.String("base", base),
		slog.String("quote", quote),
		slog.Float64("rate", value),
	)
	return rate, nil
}

/*
Convert prices amount minor units of from in to, rounding half away from zero.

The direct pair is preferred; otherwise the inverse of the opposite pair is
used.

Returns:
  - *Conversion: the converted amount and the rate applied
  - error: [ErrRateNotFound] when neither direction is stored
*/
func (service *Service) Convert(ctx context.Context, amount int64, from, to string) (*Conversion, error) {
	from, to = normalize(from), normalize(to)

	rate, err := service.rate(ctx, from, to)
	if err != nil {
		return nil, err
	}

	return &Conversion{
		From:      from,
		To:        to,
		Amount:    amount,
		Converted: int64(math.Round(float64(amount) * rate)),
		Rate:      rate,
	}, nil
}

func (service *Service) rate(ctx context.Context, from, to string) (float64, error) {
	if from == to {
		return 1, nil
	}

	direct, err := service.repository.Find(ctx, from, to)
	if err == nil {
		return direct.Rate, nil
	}
	if !errors.Is(err, dberr.ErrNotFound) {
		return 0, err
	}

	inverse, err := service.repository.Find(ctx, to, from)
	if err != nil {
		if errors.Is(err, dberr.ErrNotFound) {
			return 0, ErrRateNotFound
		}
		return 0, err
	}
	return 1 / inverse.Rate, nil
}

func normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
