// Copyright (c) 2026 Kinbank. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package banking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/taibuivan/kinbank/internal/platform/database/schema"
	"github.com/taibuivan/kinbank/internal/platform/dberr"
	"github.com/taibuivan/kinbank/internal/platform/postgres"
)

// PostgresRepository implements [Repository] on the bank schema.
type PostgresRepository struct {
	db       postgres.DB
	timeouts dberr.Timeouts
}

// NewRepository creates a new PostgreSQL implementation of [Repository].
func NewRepository(db postgres.DB, timeouts dberr.Timeouts) *PostgresRepository {
	return &PostgresRepository{db: db, timeouts: timeouts}
}

// # Accounts

func (repository *PostgresRepository) CreateAccount(ctx context.Context, account *Account) error {
	table := schema.BankAccount
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES ($1, $2, $3, $4, $5, $6)`, table.Table, table.SelectList())

	callCtx, cancel := repository.timeouts.Write(ctx)
	defer cancel()

	_, err := repository.db.Exec(callCtx, query,
		account.ID, account.UserID, account.Number, account.Currency, account.Balance, account.CreatedAt)
	if err != nil {
		return dberr.Wrap(err, "postgres_account_create")
	}
	return nil
}

func (repository *PostgresRepository) FindAccount(ctx context.Context, id string) (*Account, error) {
	return repository.findAccount(ctx, schema.BankAccount.ID, id)
}

func (repository *PostgresRepository) FindAccountByNumber(ctx context.Context, number string) (*Account, error) {
	return repository.findAccount(ctx, schema.BankAccount.Number, number)
}

func (repository *PostgresRepository) findAccount(ctx context.Context, column, value string) (*Account, error) {
	table := schema.BankAccount
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1`, table.SelectList(), table.Table, column)

	callCtx, cancel := repository.timeouts.Read(ctx)
	defer cancel()

	account, err := scanAccount(repository.db.QueryRow(callCtx, query, value))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, dberr.Wrap(err, "postgres_account_find")
	}
	return account, nil
}

func (repository *PostgresRepository) ListAccounts(ctx context.Context, userID string) ([]*Account, error) {
	table := schema.BankAccount
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1 ORDER BY %s, %s`,
		table.SelectList(), table.Table, table.UserID, table.CreatedAt, table.ID)

	callCtx, cancel := repository.timeouts.Read(ctx)
	defer cancel()

	rows, err := repository.db.Query(callCtx, query, userID)
	if err != nil {
		return nil, dberr.Wrap(err, "postgres_account_list")
	}
	defer rows.Close()

	accounts := []*Account{}
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, dberr.Wrap(err, "postgres_account_scan")
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, dberr.Wrap(err, "postgres_account_list")
	}
	return accounts, nil
}

// # Money Movement

/*
Transfer debits the source and credits the target in one transaction.

Both rows are taken with SELECT ... FOR UPDATE in ascending id order, so two
opposite transfers between the same pair cannot deadlock, and the balance
check runs on the locked values.
*/
func (repository *PostgresRepository) Transfer(ctx context.Context, transaction *Transaction) error {
	if transaction.FromAccountID == nil {
		return ErrAccountNotFound
	}
	fromID, toID := *transaction.FromAccountID, transaction.ToAccountID

	callCtx, cancel := repository.timeouts.Write(ctx)
	defer cancel()

	err := postgres.InTransaction(callCtx, repository.db, func(tx pgx.Tx) error {
		first, second := fromID, toID
		if second < first {
			first, second = second, first
		}

		locked := make(map[string]*Account, 2)
		for _, id := range []string{first, second} {
			account, err := lockAccount(callCtx, tx, id)
			if err != nil {
				return err
			}
			locked[id] = account
		}

		if err := checkTransfer(locked[fromID], locked[toID], transaction.Amount); err != nil {
			return err
		}

		if err := adjustBalance(callCtx, tx, fromID, -transaction.Amount); err != nil {
			return err
		}
		if err := adjustBalance(callCtx, tx, toID, transaction.Amount); err != nil {
			return err
		}
		return insertTransaction(callCtx, tx, transaction)
	})
	if err != nil {
		return dberr.Wrap(err, "postgres_transfer")
	}
	return nil
}

// Deposit credits one account and records the entry.
func (repository *PostgresRepository) Deposit(ctx context.Context, transaction *Transaction) error {
	callCtx, cancel := repository.timeouts.Write(ctx)
	defer cancel()

	err := postgres.InTransaction(callCtx, repository.db, func(tx pgx.Tx) error {
		account, err := lockAccount(callCtx, tx, transaction.ToAccountID)
		if err != nil {
			return err
		}
		if account.Currency != transaction.Currency {
			return ErrCurrencyMismatch
		}
		if err := adjustBalance(callCtx, tx, account.ID, transaction.Amount); err != nil {
			return err
		}
		return insertTransaction(callCtx, tx, transaction)
	})
	if err != nil {
		return dberr.Wrap(err, "postgres_deposit")
	}
	return nil
}

func lockAccount(ctx context.Context, tx pgx.Tx, id string) (*Account, error) {
	table := schema.BankAccount
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1 FOR UPDATE`, table.SelectList(), table.Table, table.ID)

	account, err := scanAccount(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return account, nil
}

func adjustBalance(ctx context.Context, tx pgx.Tx, id string, delta int64) error {
	table := schema.BankAccount
	query := fmt.Sprintf(`UPDATE %s SET %s = %s + $2 WHERE %s = $1`, table.Table, table.Balance, table.Balance, table.ID)

	_, err := tx.Exec(ctx, query, id, delta)
	return err
}

func insertTransaction(ctx context.Context, tx pgx.Tx, transaction *Transaction) error {
	table := schema.BankTransaction
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES ($1, $2, $3, $4, $5, $6, $7)`, table.Table, table.SelectList())

	_, err := tx.Exec(ctx, query,
		transaction.ID,
		transaction.FromAccountID,
		transaction.ToAccountID,
		transaction.Amount,
		transaction.Currency,
		transaction.Description,
		transaction.CreatedAt,
	)
	return err
}

/*
ListTransactions returns one page of entries where accountID is the source
or the target. COUNT(*) OVER() carries the total in the same query.
*/
func (repository *PostgresRepository) ListTransactions(ctx context.Context, accountID string, limit, offset int) ([]*Transaction, int, error) {
	table := schema.BankTransaction
	query := fmt.Sprintf(`
		SELECT %s, COUNT(*) OVER() AS total_count
		FROM %s
		WHERE %s = $1 OR %s = $1
		ORDER BY %s DESC, %s DESC
		LIMIT $2 OFFSET $3`,
		table.SelectList(), table.Table,
		table.FromAccountID, table.ToAccountID,
		table.CreatedAt, table.ID,
	)

	callCtx, cancel := repository.timeouts.Read(ctx)
	defer cancel()

	rows, err := repository.db.Query(callCtx, query, accountID, limit, offset)
	if err != nil {
		return nil, 0, dberr.Wrap(err, "postgres_transaction_list")
	}
	defer rows.Close()

	transactions := []*Transaction{}
	var total int
	for rows.Next() {
		transaction := &Transaction{}
		if err := rows.Scan(
			&transaction.ID,
			&transaction.FromAccountID,
			&transaction.ToAccountID,
			&transaction.Amount,
			&transaction.Currency,
			&transaction.Description,
			&transaction.CreatedAt,
			&total,
		); err != nil {
			return nil, 0, dberr.Wrap(err, "postgres_transaction_scan")
		}
		transactions = append(transactions, transaction)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, dberr.Wrap(err, "postgres_transaction_list")
	}
	return transactions, total, nil
}

// # Loans

func (repository *PostgresRepository) CreateLoan(ctx context.Context, loan *Loan) error {
	table := schema.BankLoan
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`, table.Table, table.SelectList())

	callCtx, cancel := repository.timeouts.Write(ctx)
	defer cancel()

	_, err := repository.db.Exec(callCtx, query,
		loan.ID, loan.UserID, loan.Amount, loan.Currency, loan.TermMonths,
		loan.Purpose, loan.Status, loan.CreatedAt, loan.DecidedAt)
	if err != nil {
		return dberr.Wrap(err, "postgres_loan_create")
	}
	return nil
}

func (repository *PostgresRepository) FindLoan(ctx context.Context, id string) (*Loan, error) {
	table := schema.BankLoan
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1`, table.SelectList(), table.Table, table.ID)

	callCtx, cancel := repository.timeouts.Read(ctx)
	defer cancel()

	loan, err := scanLoan(repository.db.QueryRow(callCtx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLoanNotFound
		}
		return nil, dberr.Wrap(err, "postgres_loan_find")
	}
	return loan, nil
}

func (repository *PostgresRepository) ListLoans(ctx context.Context, userID string) ([]*Loan, error) {
	table := schema.BankLoan
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1 ORDER BY %s DESC`,
		table.SelectList(), table.Table, table.UserID, table.CreatedAt)

	callCtx, cancel := repository.timeouts.Read(ctx)
	defer cancel()

	rows, err := repository.db.Query(callCtx, query, userID)
	if err != nil {
		return nil, dberr.Wrap(err, "postgres_loan_list")
	}
	defer rows.Close()

	loans := []*Loan{}
	for rows.Next() {
		loan, err := scanLoan(rows)
		if err != nil {
			return nil, dberr.Wrap(err, "postgres_loan_scan")
		}
		loans = append(loans, loan)
	}
	if err := rows.Err(); err != nil {
		return nil, dberr.Wrap(err, "postgres_loan_list")
	}
	return loans, nil
}

// DecideLoan only matches pending rows, so a loan is decided at most once.
func (repository *PostgresRepository) DecideLoan(ctx context.Context, id string, status LoanStatus, decidedAt time.Time) (*Loan, error) {
	table := schema.BankLoan
	query := fmt.Sprintf(`UPDATE %s SET %s = $2, %s = $3 WHERE %s = $1 AND %s = $4 RETURNING %s`,
		table.Table, table.Status, table.DecidedAt, table.ID, table.Status, table.SelectList())

	callCtx, cancel := repository.timeouts.Write(ctx)
	defer cancel()

	loan, err := scanLoan(repository.db.QueryRow(callCtx, query, id, status, decidedAt, LoanPending))
	if err != nil {
		return nil, dberr.Wrap(err, "postgres_loan_decide")
	}
	return loan, nil
}

// # Scanners

func scanAccount(row pgx.Row) (*Account, error) {
	account := &Account{}
	err := row.Scan(
		&account.ID,
		&account.UserID,
		&account.Number,
		&account.Currency,
		&account.Balance,
		&account.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return account, nil
}

func scanLoan(row pgx.Row) (*Loan, error) {
	loan := &Loan{}
	err := row.Scan(
		&loan.ID,
		&loan.UserID,
		&loan.Amount,
		&loan.Currency,
		&loan.TermMonths,
		&loan.Purpose,
		&loan.Status,
		&loan.CreatedAt,
		&loan.DecidedAt,
	)
	if err != nil {
		return nil, err
	}
	return loan, nil
}
