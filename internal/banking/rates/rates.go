// Copyright (c) 2026 Kinbank. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package rates publishes the exchange rates staff maintain and converts
amounts between currencies with them.

A pair is stored once, base to quote. Conversions in the other direction use
the inverse of the stored rate.
*/
package rates

import (
	"net/http"
	"time"

	"github.com/taibuivan/kinbank/internal/platform/apperr"
)

// Rate is the price of one unit of Base expressed in Quote.
type Rate struct {
	Base      string    `json:"base" bson:"base"`
	Quote     string    `json:"quote" bson:"quote"`
	Rate      float64   `json:"rate" bson:"rate"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updated_at"`
}

// Conversion is the result of converting Amount minor units of From into To.
type Conversion struct {
	From      string  `json:"from"`
	To        string  `json:"to"`
	Amount    int64   `json:"amount"`
	Converted int64   `json:"converted"`
	Rate      float64 `json:"rate"`
}

// maxRate rejects values that are clearly a typo in minor units.
const maxRate = 1_000_000

var (
	ErrRateNotFound = apperr.NotFound("Exchange rate")

	// ErrSamePair is returned when base and quote coincide.
	ErrSamePair = apperr.New(http.StatusUnprocessableEntity, "SAME_CURRENCY_PAIR", "Base and quote currency must differ")
)

const (
	FieldBase   = "base"
	FieldQuote  = "quote"
	FieldRate   = "rate"
	FieldAmount = "amount"
	FieldFrom   = "from"
	FieldTo     = "to"
)
