// Copyright (c) 2026 Kinbank. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/taibuivan/kinbank/internal/platform/database/schema"
	"github.com/taibuivan/kinbank/internal/platform/dberr"
	"github.com/taibuivan/kinbank/internal/platform/postgres"
)

// # User Repository

// PostgresUserRepository implements [UserRepository] on users.account.
type PostgresUserRepository struct {
	db       postgres.DB
	timeouts dberr.Timeouts
}

// NewUserRepository creates a new PostgreSQL implementation of the UserRepository.
func NewUserRepository(db postgres.DB, timeouts dberr.Timeouts) *PostgresUserRepository {
	return &PostgresUserRepository{db: db, timeouts: timeouts}
}

/*
Create persists a new user record into the users.account table.

A unique violation on username or email (a registration race that slipped
past the service pre-check) is reported as [ErrDuplicateUser].
*/
func (repository *PostgresUserRepository) Create(ctx context.Context, user *User) error {
	table := schema.UserAccount
	query := fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		table.Table, table.SelectList(),
	)

	callCtx, cancel := repository.timeouts.Write(ctx)
	defer cancel()

	_, err := repository.db.Exec(callCtx, query,
		user.ID,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.FullName,
		user.DateOfBirth,
		user.Role,
		user.IsActivated,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if dberr.IsUniqueViolation(err) {
			return ErrDuplicateUser.WithCause(err)
		}
		return dberr.Wrap(err, "postgres_user_create")
	}
	return nil
}

// FindByID retrieves a user by primary key.
func (repository *PostgresUserRepository) FindByID(ctx context.Context, id string) (*User, error) {
	return repository.findOne(ctx, schema.UserAccount.ID, id)
}

// FindByUsername retrieves a user by unique username.
func (repository *PostgresUserRepository) FindByUsername(ctx context.Context, username string) (*User, error) {
	return repository.findOne(ctx, schema.UserAccount.Username, username)
}

// FindByEmail retrieves a user by unique email.
func (repository *PostgresUserRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	return repository.findOne(ctx, schema.UserAccount.Email, email)
}

func (repository *PostgresUserRepository) findOne(ctx context.Context, column, value string) (*User, error) {
	table := schema.UserAccount
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1`, table.SelectList(), table.Table, column)

	callCtx, cancel := repository.timeouts.Read(ctx)
	defer cancel()

	user, err := scanUser(repository.db.QueryRow(callCtx, query, value))
	if err != nil {
		return nil, dberr.Wrap(err, "postgres_user_find_by_"+column)
	}
	return user, nil
}

// ExistsByUsernameOrEmail reports whether either identifier is already taken.
func (repository *PostgresUserRepository) ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	table := schema.UserAccount
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE %s = $1 OR %s = $2)`,
		table.Table, table.Username, table.Email)

	callCtx, cancel := repository.timeouts.Read(ctx)
	defer cancel()

	var exists bool
	if err := repository.db.QueryRow(callCtx, query, username, email).Scan(&exists); err != nil {
		return false, dberr.Wrap(err, "postgres_user_exists")
	}
	return exists, nil
}

// UpdatePassword overwrites the password hash in place.
func (repository *PostgresUserRepository) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	table := schema.UserAccount
	query := fmt.Sprintf(`UPDATE %s SET %s = $2, %s = NOW() WHERE %s = $1`,
		table.Table, table.PasswordHash, table.UpdatedAt, table.ID)

	callCtx, cancel := repository.timeouts.Write(ctx)
	defer cancel()

	tag, err := repository.db.Exec(callCtx, query, userID, passwordHash)
	if err != nil {
		return dberr.Wrap(err, "postgres_user_update_password")
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// MarkActivated flags the account owning username as activated.
func (repository *PostgresUserRepository) MarkActivated(ctx context.Context, username string) (bool, error) {
	table := schema.UserAccount
	query := fmt.Sprintf(`UPDATE %s SET %s = TRUE, %s = NOW() WHERE %s = $1`,
		table.Table, table.IsActivated, table.UpdatedAt, table.Username)

	callCtx, cancel := repository.timeouts.Write(ctx)
	defer cancel()

	tag, err := repository.db.Exec(callCtx, query, username)
	if err != nil {
		return false, dberr.Wrap(err, "postgres_user_mark_activated")
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteByUsernameAndEmail hard-deletes the row matching both identifiers.
func (repository *PostgresUserRepository) DeleteByUsernameAndEmail(ctx context.Context, username, email string) (string, error) {
	table := schema.UserAccount
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s = $1 AND %s = $2 RETURNING %s`,
		table.Table, table.Username, table.Email, table.ID)

	callCtx, cancel := repository.timeouts.Write(ctx)
	defer cancel()

	var id string
	if err := repository.db.QueryRow(callCtx, query, username, email).Scan(&id); err != nil {
		return "", dberr.Wrap(err, "postgres_user_delete")
	}
	return id, nil
}

// scanUser reads one row in [schema.UserAccountTable.Columns] order.
func scanUser(row pgx.Row) (*User, error) {
	user := &User{}
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.FullName,
		&user.DateOfBirth,
		&user.Role,
		&user.IsActivated,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}
