// Copyright (c) 2026 Kinbank. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package banking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/taibuivan/kinbank/internal/platform/apperr"
	"github.com/taibuivan/kinbank/internal/platform/ctxutil"
	"github.com/taibuivan/kinbank/internal/platform/dberr"
	"github.com/taibuivan/kinbank/internal/platform/sec"
	"github.com/taibuivan/kinbank/pkg/pagination"
	"github.com/taibuivan/kinbank/pkg/uuid"
)

// errNumberTaken matches the conflict raised by a duplicate account number.
var errNumberTaken = apperr.Conflict("")

// # Service Layer

// Service orchestrates accounts, transfers and loans.
type Service struct {
	repository Repository
	pins       PinVerifier
	now        func() time.Time
}

// NewService constructs a new [Service]. A nil clock uses time.Now.
func NewService(repository Repository, pins PinVerifier, clock func() time.Time) *Service {
	if clock == nil {
		clock = time.Now
	}
	return &Service{repository: repository, pins: pins, now: clock}
}

// # Accounts

/*
OpenAccount creates an empty account in currency for userID.

A random account number collision is retried a few times before giving up.
*/
func (service *Service) OpenAccount(ctx context.Context, userID, currency string) (*Account, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))

	var lastErr error
	for attempt := 0; attempt < accountNumberAttempts; attempt++ {
		number, err := sec.GenerateNumericCode(AccountNumberDigits)
		if err != nil {
			return nil, fmt.Errorf("account_number_failed: %w", err)
		}

		account := &Account{
			ID:        uuid.New(),
			UserID:    userID,
			Number:    number,
			Currency:  currency,
			CreatedAt: service.now().UTC(),
		}

		lastErr = service.repository.CreateAccount(ctx, account)
		if lastErr == nil {
			ctxutil.GetLogger(ctx).InfoContext(ctx, "account_opened",
				slog.String("user_id", userID),
				slog.String("account_id", account.ID),
				slog.String("currency", currency),
			)
			return account, nil
		}
		if !errors.Is(lastErr, errNumberTaken) {
			return nil, lastErr
		}
	}
	return nil, lastErr
}

// ListAccounts returns the accounts owned by userID.
func (service *Service) ListAccounts(ctx context.Context, userID string) ([]*Account, error) {
	return service.repository.ListAccounts(ctx, userID)
}

// ownedAccount loads accountID and hides accounts of other users behind a 404.
func (service *Service) ownedAccount(ctx context.Context, userID, accountID string) (*Account, error) {
	account, err := service.repository.FindAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, dberr.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	if account.UserID != userID {
		return nil, ErrAccountNotFound
	}
	return account, nil
}

// # Money Movement

// DepositInput describes a staff credit to an account.
type DepositInput struct {
	AccountID   string
	Amount      int64
	Description string
}

// Deposit credits an account. Only staff reach this operation.
func (service *Service) Deposit(ctx context.Context, input DepositInput) (*Transaction, error) {
	account, err := service.repository.FindAccount(ctx, input.AccountID)
	if err != nil {
		if errors.Is(err, dberr.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}

	transaction := &Transaction{
		ID:          uuid.New(),
		ToAccountID: account.ID,
		Amount:      input.Amount,
		Currency:    account.Currency,
		Description: strings.TrimSpace(input.Description),
		CreatedAt:   service.now().UTC(),
	}
	if err := service.repository.Deposit(ctx, transaction); err != nil {
		return nil, err
	}

	ctxutil.GetLogger(ctx).InfoContext(ctx, "deposit_recorded",
		slog.String("account_id", account.ID),
		slog.String("transaction_id", transaction.ID),
		slog.Int64("amount", transaction.Amount),
	)
	return transaction, nil
}

// TransferInput describes a customer initiated transfer.
type TransferInput struct {
	UserID          string
	FromAccountID   string
	ToAccountNumber string
	Amount          int64
	Description     string
	Pin             string
}

/*
Transfer moves money from one of the caller's accounts to any account.

Returns:
  - *Transaction: the recorded ledger entry
  - error: [ErrInvalidPin], [ErrAccountNotFound], [ErrSameAccount],
    [ErrCurrencyMismatch], [ErrInsufficientFunds] or storage errors
*/
func (service *Service) Transfer(ctx context.Context, input TransferInput) (*Transaction, error) {
	logger := ctxutil.GetLogger(ctx)

	ok, err := service.pins.VerifyTransactionPin(ctx, input.UserID, input.Pin)
	if err != nil {
		return nil, err
	}
	if !ok {
		logger.WarnContext(ctx, "transfer_pin_rejected", slog.String("user_id", input.UserID))
		return nil, ErrInvalidPin
	}

	from, err := service.ownedAccount(ctx, input.UserID, input.FromAccountID)
	if err != nil {
		return nil, err
	}

	to, err := service.repository.FindAccountByNumber(ctx, strings.TrimSpace(input.ToAccountNumber))
	if err != nil {
		if errors.Is(err, dberr.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}

	// Early answer on stale values; the store re-checks on locked rows.
	if err := checkTransfer(from, to, input.Amount); err != nil {
		return nil, err
	}

	transaction := &Transaction{
		ID:            uuid.New(),
		FromAccountID: &from.ID,
		ToAccountID:   to.ID,
		Amount:        input.Amount,
		Currency:      from.Currency,
		Description:   strings.TrimSpace(input.Description),
		CreatedAt:     service.now().UTC(),
	}
	if err := service.repository.Transfer(ctx, transaction); err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "transfer_completed",
		slog.String("user_id", input.UserID),
		slog.String("transaction_id", transaction.ID),
		slog.String("from_account_id", from.ID),
		slog.String("to_account_id", to.ID),
		slog.Int64("amount", transaction.Amount),
	)
	return transaction, nil
}

// ListTransactions returns one page of the ledger of an account owned by userID.
func (service *Service) ListTransactions(ctx context.Context, userID, accountID string, params pagination.Params) ([]*Transaction, int, error) {
	account, err := service.ownedAccount(ctx, userID, accountID)
	if err != nil {
		return nil, 0, err
	}
	return service.repository.ListTransactions(ctx, account.ID, params.Limit, params.Offset())
}

// # Loans

// LoanInput describes a loan request.
type LoanInput struct {
	UserID     string
	Amount     int64
	Currency   string
	TermMonths int
	Purpose    string
}

// RequestLoan records a pending loan request.
func (service *Service) RequestLoan(ctx context.Context, input LoanInput) (*Loan, error) {
	loan := &Loan{
		ID:         uuid.New(),
		UserID:     input.UserID,
		Amount:     input.Amount,
		Currency:   strings.ToUpper(strings.TrimSpace(input.Currency)),
		TermMonths: input.TermMonths,
		Purpose:    strings.TrimSpace(input.Purpose),
		Status:     LoanPending,
		CreatedAt:  service.now().UTC(),
	}
	if err := service.repository.CreateLoan(ctx, loan); err != nil {
		return nil, err
	}

	ctxutil.GetLogger(ctx).InfoContext(ctx, "loan_requested",
		slog.String("user_id", input.UserID),
		slog.String("loan_id", loan.ID),
		slog.Int64("amount", loan.Amount),
	)
	return loan, nil
}

// ListLoans returns the loans requested by userID, newest first.
func (service *Service) ListLoans(ctx context.Context, userID string) ([]*Loan, error) {
	return service.repository.ListLoans(ctx, userID)
}

/*
DecideLoan approves or rejects a pending loan.

Returns:
  - *Loan: the decided loan
  - error: [ErrLoanNotFound], [ErrLoanDecided] or storage errors
*/
func (service *Service) DecideLoan(ctx context.Context, loanID string, approve bool) (*Loan, error) {
	status := LoanRejected
	if approve {
		status = LoanApproved
	}

	loan, err := service.repository.DecideLoan(ctx, loanID, status, service.now().UTC())
	if err == nil {
		ctxutil.GetLogger(ctx).InfoContext(ctx, "loan_decided",
			slog.String("loan_id", loan.ID),
			slog.String("status", string(loan.Status)),
		)
		return loan, nil
	}
	if !errors.Is(err, dberr.ErrNotFound) {
		return nil, err
	}

	// No pending row matched: tell a missing loan from a decided one.
	if _, findErr := service.repository.FindLoan(ctx, loanID); findErr != nil {
		if errors.Is(findErr, dberr.ErrNotFound) {
			return nil, ErrLoanNotFound
		}
		return nil, findErr
	}
	return nil, ErrLoanDecided
}
