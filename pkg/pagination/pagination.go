// Copyright (c) 2026 Kinbank. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package pagination provides shared types and helpers for API list endpoints
// (transactions, loans).
package pagination

import (
	"net/http"
	"strconv"

	"github.com/taibuivan/kinbank/internal/platform/apperr"
)

const (
	// DefaultLimit is the number of items per page if not specified.
	DefaultLimit = 20
	// MaxLimit is the upper bound for items per page.
	MaxLimit = 100
)

// Params holds the parsed page and limit from a request's query string.
type Params struct {
	Page  int
	Limit int
}

// Offset returns the SQL OFFSET value derived from Page and Limit.
func (p Params) Offset() int {
	if p.Page <= 1 {
		return 0
	}
	return (p.Page - 1) * p.Limit
}

// Meta is the pagination block included next to "data" in list responses.
type Meta struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	Total      int  `json:"total"`
	TotalPages int  `json:"totalPages"`
	HasMore    bool `json:"hasMore"`
}

// NewMeta derives the page count from total and params.
func NewMeta(params Params, total int) Meta {
	totalPages := 0
	if params.Limit > 0 {
		totalPages = (total + params.Limit - 1) / params.Limit
	}

	return Meta{
		Page:       params.Page,
		Limit:      params.Limit,
		Total:      total,
		TotalPages: totalPages,
		HasMore:    params.Page < totalPages,
	}
}

// FromRequest parses "page" and "limit".
//
// Missing values take defaults; a limit above [MaxLimit] is clamped.
// Non-numeric or non-positive values are a VALIDATION_ERROR rather than
// being silently replaced.
func FromRequest(r *http.Request) (Params, error) {
	page, err := parsePositive(r, "page", 1)
	if err != nil {
		return Params{}, err
	}

	limit, err := parsePositive(r, "limit", DefaultLimit)
	if err != nil {
		return Params{}, err
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	return Params{Page: page, Limit: limit}, nil
}

func parsePositive(r *http.Request, key string, fallback int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}

	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, apperr.ValidationError("Invalid pagination", apperr.FieldError{
			Field:   key,
			Message: "Must be a positive integer",
		})
	}
	return n, nil
}
