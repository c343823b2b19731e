// Copyright (c) 2026 Kinbank. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package banking

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/kinbank/internal/platform/middleware"
	requestutil "github.com/taibuivan/kinbank/internal/platform/request"
	"github.com/taibuivan/kinbank/internal/platform/respond"
	"github.com/taibuivan/kinbank/internal/platform/sec"
	"github.com/taibuivan/kinbank/internal/platform/validate"
	"github.com/taibuivan/kinbank/pkg/pagination"
	"github.com/taibuivan/kinbank/pkg/uuid"
)

// Handler implements the banking HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a new [Handler].
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts the banking endpoints on router. All of them need a
// session.
//
// # Endpoints
//   - GET  /accounts                       : Caller's accounts.
//   - POST /accounts                       : Opens an account.
//   - POST /accounts/{id}/deposit          : Credits an account (admin).
//   - GET  /accounts/{id}/transactions     : Paginated ledger.
//   - POST /transfers                      : Moves money, PIN required.
//   - GET  /loans                          : Caller's loan requests.
//   - POST /loans                          : Requests a loan.
//   - POST /loans/{id}/decision            : Approves or rejects (admin).
func (handler *Handler) RegisterRoutes(router chi.Router) {
	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth)

		r.Get("/accounts", handler.listAccounts)
		r.Post("/accounts", handler.openAccount)
		r.Get("/accounts/{id}/transactions", handler.listTransactions)
		r.Post("/transfers", handler.transfer)
		r.Get("/loans", handler.listLoans)
		r.Post("/loans", handler.requestLoan)

		// Administration
		r.With(middleware.RequireRole(sec.RoleAdmin)).Post("/accounts/{id}/deposit", handler.deposit)
		r.With(middleware.RequireRole(sec.RoleAdmin)).Post("/loans/{id}/decision", handler.decideLoan)
	})
}

// # Request Payloads

type openAccountRequest struct {
	Currency string `json:"currency"`
}

type depositRequest struct {
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
}

type transferRequest struct {
	FromAccountID   string `json:"fromAccountId"`
	ToAccountNumber string `json:"toAccountNumber"`
	Amount          int64  `json:"amount"`
	Description     string `json:"description"`
	Pin             string `json:"pin"`
}

type loanRequest struct {
	Amount     int64  `json:"amount"`
	Currency   string `json:"currency"`
	TermMonths int    `json:"termMonths"`
	Purpose    string `json:"purpose"`
}

type decisionRequest struct {
	Approve *bool `json:"approve"`
}

// # Accounts

func (handler *Handler) listAccounts(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	accounts, err := handler.service.ListAccounts(request.Context(), userID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, accounts)
}

/*
OpenAccount creates an empty account for the caller.

POST /api/v1/accounts

Request:
  - Body: {"currency": "EUR"}

Response:
  - 201: Account
*/
func (handler *Handler) openAccount(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input openAccountRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldCurrency, input.Currency).Currency(FieldCurrency, input.Currency)
	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	account, err := handler.service.OpenAccount(request.Context(), userID, input.Currency)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Created(writer, account)
}

func (handler *Handler) deposit(writer http.ResponseWriter, request *http.Request) {
	accountID := requestutil.Param(request, FieldID)

	var input depositRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	validator.UUID(FieldID, accountID).
		Positive(FieldAmount, input.Amount).
		MaxLen(FieldDescription, input.Description, MaxDescriptionLength)
	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	transaction, err := handler.service.Deposit(request.Context(), DepositInput{
		AccountID:   accountID,
		Amount:      input.Amount,
		Description: input.Description,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Created(writer, transaction)
}

/*
ListTransactions pages through the ledger of one of the caller's accounts.

GET /api/v1/accounts/{id}/transactions?page=1&limit=20

Response:
  - 200: Paginated list of Transaction
  - 404: Account not found or not owned by the caller
*/
func (handler *Handler) listTransactions(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	accountID := requestutil.Param(request, FieldID)
	if !uuid.Valid(accountID) {
		respond.Error(writer, request, ErrAccountNotFound)
		return
	}

	params, err := pagination.FromRequest(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	transactions, total, err := handler.service.ListTransactions(request.Context(), userID, accountID, params)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Paginated(writer, transactions, pagination.NewMeta(params, total))
}

// # Transfers

/*
Transfer moves money from one of the caller's accounts.

POST /api/v1/transfers

Request:
  - Body: transferRequest

Response:
  - 201: Transaction
  - 403: INVALID_TRANSACTION_PIN
  - 404: Account not found
  - 422: INSUFFICIENT_FUNDS, CURRENCY_MISMATCH, SAME_ACCOUNT
*/
func (handler *Handler) transfer(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input transferRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	validator.UUID(FieldFromAccount, input.FromAccountID).
		Digits(FieldToAccount, input.ToAccountNumber, AccountNumberDigits).
		Positive(FieldAmount, input.Amount).
		MaxLen(FieldDescription, input.Description, MaxDescriptionLength).
		Required(FieldPin, input.Pin)
	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	transaction, err := handler.service.Transfer(request.Context(), TransferInput{
		UserID:          userID,
		FromAccountID:   input.FromAccountID,
		ToAccountNumber: input.ToAccountNumber,
		Amount:          input.Amount,
		Description:     input.Description,
		Pin:             input.Pin,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Created(writer, transaction)
}

// # Loans

func (handler *Handler) listLoans(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	loans, err := handler.service.ListLoans(request.Context(), userID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, loans)
}

func (handler *Handler) requestLoan(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input loanRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	validator.Positive(FieldAmount, input.Amount).
		Required(FieldCurrency, input.Currency).
		Currency(FieldCurrency, input.Currency).
		Range(FieldTermMonths, input.TermMonths, MinLoanTerm, MaxLoanTerm).
		MaxLen(FieldPurpose, input.Purpose, MaxDescriptionLength)
	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	loan, err := handler.service.RequestLoan(request.Context(), LoanInput{
		UserID:     userID,
		Amount:     input.Amount,
		Currency:   input.Currency,
		TermMonths: input.TermMonths,
		Purpose:    input.Purpose,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Created(writer, loan)
}

func (handler *Handler) decideLoan(writer http.ResponseWriter, request *http.Request) {
	loanID := requestutil.Param(request, FieldID)

	var input decisionRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	validator.UUID(FieldID, loanID).
		Custom(FieldApprove, input.Approve == nil, "Approve must be true or false")
	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	loan, err := handler.service.DecideLoan(request.Context(), loanID, *input.Approve)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, loan)
}
