// Copyright (c) 2026 Kinbank. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package banking implements accounts, money movement and loan requests.

Amounts are int64 minor units (cents). Balances never go below zero: every
debit locks the affected rows and re-checks funds inside one PostgreSQL
transaction, and the bank.account CHECK constraint backs that up.
*/
package banking

import (
	"net/http"
	"time"

	"github.com/taibuivan/kinbank/internal/platform/apperr"
)

// # Domain Entities

// Account is a single-currency balance owned by one user.
type Account struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Number    string    `json:"number"`
	Currency  string    `json:"currency"`
	Balance   int64     `json:"balance"`
	CreatedAt time.Time `json:"createdAt"`
}

// Transaction is an immutable ledger entry. Deposits have no source account.
type Transaction struct {
	ID            string    `json:"id"`
	FromAccountID *string   `json:"fromAccountId,omitempty"`
	ToAccountID   string    `json:"toAccountId"`
	Amount        int64     `json:"amount"`
	Currency      string    `json:"currency"`
	Description   string    `json:"description"`
	CreatedAt     time.Time `json:"createdAt"`
}

// LoanStatus is the decision state of a loan request.
type LoanStatus string

const (
	LoanPending  LoanStatus = "pending"
	LoanApproved LoanStatus = "approved"
	LoanRejected LoanStatus = "rejected"
)

// Loan is a customer's request for credit, decided once by staff.
type Loan struct {
	ID         string     `json:"id"`
	UserID     string     `json:"userId"`
	Amount     int64      `json:"amount"`
	Currency   string     `json:"currency"`
	TermMonths int        `json:"termMonths"`
	Purpose    string     `json:"purpose"`
	Status     LoanStatus `json:"status"`
	CreatedAt  time.Time  `json:"createdAt"`
	DecidedAt  *time.Time `json:"decidedAt,omitempty"`
}

// # Limits

const (
	// AccountNumberDigits is the length of a generated account number.
	AccountNumberDigits = 12

	// accountNumberAttempts bounds retries after an account number collision.
	accountNumberAttempts = 3

	MinLoanTerm = 1
	MaxLoanTerm = 360

	// MaxDescriptionLength matches the bank.transaction column.
	MaxDescriptionLength = 200
)

// # Domain Errors

var (
	ErrAccountNotFound = apperr.NotFound("Account")
	ErrLoanNotFound    = apperr.NotFound("Loan")

	// ErrInsufficientFunds is returned when a debit would make a balance negative.
	ErrInsufficientFunds = apperr.New(http.StatusUnprocessableEntity, "INSUFFICIENT_FUNDS", "Insufficient funds")

	// ErrCurrencyMismatch is returned for transfers between accounts of different currencies.
	ErrCurrencyMismatch = apperr.New(http.StatusUnprocessableEntity, "CURRENCY_MISMATCH", "Accounts use different currencies")

	// ErrSameAccount is returned for a transfer whose source and target coincide.
	ErrSameAccount = apperr.New(http.StatusUnprocessableEntity, "SAME_ACCOUNT", "Source and target account must differ")

	// ErrInvalidPin is returned when the transaction PIN does not verify.
	ErrInvalidPin = apperr.New(http.StatusForbidden, "INVALID_TRANSACTION_PIN", "Transaction PIN is incorrect or not set")

	// ErrLoanDecided is returned when deciding a loan that is no longer pending.
	ErrLoanDecided = apperr.Conflict("Loan has already been decided")
)

// checkTransfer enforces the rules of moving amount from one locked account
// to another.
func checkTransfer(from, to *Account, amount int64) error {
	if from.ID == to.ID {
		return ErrSameAccount
	}
	if from.Currency != to.Currency {
		return ErrCurrencyMismatch
	}
	if from.Balance < amount {
		return ErrInsufficientFunds
	}
	return nil
}

// # Field Identifiers

const (
	FieldCurrency    = "currency"
	FieldAmount      = "amount"
	FieldDescription = "description"
	FieldFromAccount = "fromAccountId"
	FieldToAccount   = "toAccountNumber"
	FieldPin         = "pin"
	FieldTermMonths  = "termMonths"
	FieldPurpose     = "purpose"
	FieldApprove     = "approve"
	FieldID          = "id"
)
