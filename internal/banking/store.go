// Copyright (c) 2026 Kinbank. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package banking

import (
	"context"
	"time"
)

// Repository defines the data access contract for the bank schema.
type Repository interface {

	// CreateAccount returns a conflict error when the account number is taken.
	CreateAccount(context context.Context, account *Account) error

	FindAccount(context context.Context, id string) (*Account, error)

	FindAccountByNumber(context context.Context, number string) (*Account, error)

	// ListAccounts returns the user's accounts, oldest first.
	ListAccounts(context context.Context, userID string) ([]*Account, error)

	/*
		Transfer locks both accounts, re-checks the transfer rules on the locked
		rows, moves the amount and records transaction, all in one database
		transaction.

		Returns:
		  - error: [ErrInsufficientFunds], [ErrCurrencyMismatch] or storage errors
	*/
	Transfer(context context.Context, transaction *Transaction) error

	// Deposit credits transaction.ToAccountID and records transaction atomically.
	Deposit(context context.Context, transaction *Transaction) error

	// ListTransactions returns a page of entries touching accountID, newest
	// first, and the total count.
	ListTransactions(context context.Context, accountID string, limit, offset int) ([]*Transaction, int, error)

	CreateLoan(context context.Context, loan *Loan) error

	FindLoan(context context.Context, id string) (*Loan, error)

	ListLoans(context context.Context, userID string) ([]*Loan, error)

	/*
		DecideLoan moves a pending loan to status.

		Returns:
		  - *Loan: the decided loan
		  - error: not found when no pending loan has id
	*/
	DecideLoan(context context.Context, id string, status LoanStatus, decidedAt time.Time) (*Loan, error)
}

// PinVerifier checks a user's transaction PIN.
type PinVerifier interface {
	VerifyTransactionPin(context context.Context, userID, pin string) (bool, error)
}
