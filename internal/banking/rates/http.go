// Copyright (c) 2026 Kinbank. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package rates

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/kinbank/internal/platform/middleware"
	requestutil "github.com/taibuivan/kinbank/internal/platform/request"
	"github.com/taibuivan/kinbank/internal/platform/respond"
	"github.com/taibuivan/kinbank/internal/platform/sec"
	"github.com/taibuivan/kinbank/internal/platform/validate"
)

// Handler implements the exchange rate HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a new [Handler].
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts the exchange rate endpoints on router.
//
// # Endpoints
//   - GET /rates                 : Published rates, optionally ?base=EUR.
//   - GET /rates/convert         : ?amount=&from=&to=
//   - PUT /rates/{base}/{quote}  : Sets a rate (admin).
func (handler *Handler) RegisterRoutes(router chi.Router) {
	router.Get("/rates", handler.list)
	router.Get("/rates/convert", handler.convert)
	router.With(middleware.RequireRole(sec.RoleAdmin)).Put("/rates/{base}/{quote}", handler.upsert)
}

type rateRequest struct {
	Rate float64 `json:"rate"`
}

func (handler *Handler) list(writer http.ResponseWriter, request *http.Request) {
	base := request.URL.Query().Get(FieldBase)
	if base != "" {
		validator := &validate.Validator{}
		if err := validator.Currency(FieldBase, base).Err(); err != nil {
			respond.Error(writer, request, err)
			return
		}
	}

	rates, err := handler.service.List(request.Context(), base)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, rates)
}

/*
Convert prices an amount in another currency.

GET /api/v1/rates/convert?amount=1000&from=EUR&to=USD

Response:
  - 200: Conversion
  - 404: Exchange rate not found
*/
func (handler *Handler) convert(writer http.ResponseWriter, request *http.Request) {
	amount, err := requestutil.QueryInt64(request, FieldAmount, 0)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	query := request.URL.Query()
	from, to := query.Get(FieldFrom), query.Get(FieldTo)

	validator := &validate.Validator{}
	validator.Positive(FieldAmount, amount).
		Currency(FieldFrom, from).
		Currency(FieldTo, to)
	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	conversion, err := handler.service.Convert(request.Context(), amount, from, to)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, conversion)
}

func (handler *Handler) upsert(writer http.ResponseWriter, request *http.Request) {
	base := requestutil.Param(request, FieldBase)
	quote := requestutil.Param(request, FieldQuote)

	var input rateRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	validator.Currency(FieldBase, base).
		Currency(FieldQuote, quote).
		Custom(FieldRate, input.Rate <= 0 || input.Rate > maxRate, "Must be a positive rate")
	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	rate, err := handler.service.Upsert(request.Context(), base, quote, input.Rate)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, rate)
}
