// Copyright (c) 2026 Kinbank. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package banking_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/taibuivan/kinbank/internal/banking"
	"github.com/taibuivan/kinbank/internal/platform/apperr"
	"github.com/taibuivan/kinbank/internal/platform/dberr"
)

// fakeRepository keeps the bank in maps and applies money movement under one
// lock, the way row locks serialize it in PostgreSQL.
type fakeRepository struct {
	mu           sync.Mutex
	accounts     map[string]*banking.Account
	transactions []*banking.Transaction
	loans        map[string]*banking.Loan
	takenNumbers int
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		accounts: make(map[string]*banking.Account),
		loans:    make(map[string]*banking.Loan),
	}
}

func (repository *fakeRepository) CreateAccount(_ context.Context, account *banking.Account) error {
	repository.mu.Lock()
	defer repository.mu.Unlock()

	if repository.takenNumbers > 0 {
		repository.takenNumbers--
		return apperr.Conflict("Resource already exists")
	}
	for _, existing := range repository.accounts {
		if existing.Number == account.Number {
			return apperr.Conflict("Resource already exists")
		}
	}
	copied := *account
	repository.accounts[account.ID] = &copied
	return nil
}

func (repository *fakeRepository) FindAccount(_ context.Context, id string) (*banking.Account, error) {
	repository.mu.Lock()
	defer repository.mu.Unlock()

	account, ok := repository.accounts[id]
	if !ok {
		return nil, banking.ErrAccountNotFound
	}
	copied := *account
	return &copied, nil
}

func (repository *fakeRepository) FindAccountByNumber(_ context.Context, number string) (*banking.Account, error) {
	repository.mu.Lock()
	defer repository.mu.Unlock()

	for _, account := range repository.accounts {
		if account.Number == number {
			copied := *account
			return &copied, nil
		}
	}
	return nil, banking.ErrAccountNotFound
}

func (repository *fakeRepository) ListAccounts(_ context.Context, userID string) ([]*banking.Account, error) {
	repository.mu.Lock()
	defer repository.mu.Unlock()

	accounts := []*banking.Account{}
	for _, account := range repository.accounts {
		if account.UserID == userID {
			copied := *account
			accounts = append(accounts, &copied)
		}
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].ID < accounts[j].ID })
	return accounts, nil
}

func (repository *fakeRepository) Transfer(_ context.Context, transaction *banking.Transaction) error {
	repository.mu.Lock()
	defer repository.mu.Unlock()

	from, ok := repository.accounts[*transaction.FromAccountID]
	if !ok {
		return banking.ErrAccountNotFound
	}
	to, ok := repository.accounts[transaction.ToAccountID]
	if !ok {
		return banking.ErrAccountNotFound
	}
	if from.Balance < transaction.Amount {
		return banking.ErrInsufficientFunds
	}

	from.Balance -= transaction.Amount
	to.Balance += transaction.Amount
	repository.transactions = append(repository.transactions, transaction)
	return nil
}

func (repository *fakeRepository) Deposit(_ context.Context, transaction *banking.Transaction) error {
	repository.mu.Lock()
	defer repository.mu.Unlock()

	to, ok := repository.accounts[transaction.ToAccountID]
	if !ok {
		return banking.ErrAccountNotFound
	}
	to.Balance += transaction.Amount
	repository.transactions = append(repository.transactions, transaction)
	return nil
}

func (repository *fakeRepository) ListTransactions(_ context.Context, accountID string, limit, offset int) ([]*banking.Transaction, int, error) {
	repository.mu.Lock()
	defer repository.mu.Unlock()

	matching := []*banking.Transaction{}
	for i := len(repository.transactions) - 1; i >= 0; i-- {
		transaction := repository.transactions[i]
		fromMatches := transaction.FromAccountID != nil && *transaction.FromAccountID == accountID
		if fromMatches || transaction.ToAccountID == accountID {
			matching = append(matching, transaction)
		}
	}

	total := len(matching)
	if offset >= total {
		return []*banking.Transaction{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matching[offset:end], total, nil
}

func (repository *fakeRepository) CreateLoan(_ context.Context, loan *banking.Loan) error {
	repository.mu.Lock()
	defer repository.mu.Unlock()

	copied := *loan
	repository.loans[loan.ID] = &copied
	return nil
}

func (repository *fakeRepository) FindLoan(_ context.Context, id string) (*banking.Loan, error) {
	repository.mu.Lock()
	defer repository.mu.Unlock()

	loan, ok := repository.loans[id]
	if !ok {
		return nil, banking.ErrLoanNotFound
	}
	copied := *loan
	return &copied, nil
}

func (repository *fakeRepository) ListLoans(_ context.Context, userID string) ([]*banking.Loan, error) {
	repository.mu.Lock()
	defer repository.mu.Unlock()

	loans := []*banking.Loan{}
	for _, loan := range repository.loans {
		if loan.UserID == userID {
			copied := *loan
			loans = append(loans, &copied)
		}
	}
	return loans, nil
}

func (repository *fakeRepository) DecideLoan(_ context.Context, id string, status banking.LoanStatus, decidedAt time.Time) (*banking.Loan, error) {
	repository.mu.Lock()
	defer repository.mu.Unlock()

	loan, ok := repository.loans[id]
	if !ok || loan.Status != banking.LoanPending {
		return nil, dberr.ErrNotFound
	}
	loan.Status = status
	loan.DecidedAt = &decidedAt
	copied := *loan
	return &copied, nil
}

// fakePins accepts the PIN stored for each user in pins.
type fakePins struct {
	pins map[string]string
	err  error
}

func (pins *fakePins) VerifyTransactionPin(_ context.Context, userID, pin string) (bool, error) {
	if pins.err != nil {
		return false, pins.err
	}
	stored, ok := pins.pins[userID]
	return ok && stored == pin, nil
}
