// Copyright (c) 2026 Kinbank. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/kinbank/internal/platform/dberr"
	"github.com/taibuivan/kinbank/internal/platform/sec"
	"github.com/taibuivan/kinbank/internal/users/auth"
)

var userColumns = []string{
	"id", "username", "email", "passwordhash", "fullname",
	"dateofbirth", "role", "isactivated", "createdat", "updatedat",
}

func newMockRepository(t *testing.T) (*auth.PostgresUserRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err, "failed to create mock")
	t.Cleanup(mock.Close)
	return auth.NewUserRepository(mock, dberr.Timeouts{Call: time.Second}), mock
}

func TestPostgresUserRepository_Create(t *testing.T) {
	user := &auth.User{
		ID:           "0190f5a4-0000-7000-8000-000000000001",
		Username:     "alice",
		Email:        "a@x.com",
		PasswordHash: "salt:10000:key",
		Role:         sec.RoleCustomer,
	}

	tests := []struct {
		name      string
		setupMock func(mock pgxmock.PgxPoolIface)
		wantErr   error
	}{
		{
			name: "successful insert",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`INSERT INTO users.account`).
					WithArgs(user.ID, "alice", "a@x.com", "salt:10000:key", "", pgxmock.AnyArg(),
						sec.RoleCustomer, false, pgxmock.AnyArg(), pgxmock.AnyArg()).
					WillReturnResult(pgxmock.NewResult("INSERT", 1))
			},
		},
		{
			name: "unique violation is a duplicate user",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`INSERT INTO users.account`).
					WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
						pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
					WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})
			},
			wantErr: auth.ErrDuplicateUser,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repository, mock := newMockRepository(t)
			tt.setupMock(mock)

			err := repository.Create(context.Background(), user)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
		})
	}
}

func TestPostgresUserRepository_FindByUsername(t *testing.T) {
	ctx := context.Background()
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	birthday := time.Date(1990, 5, 17, 0, 0, 0, 0, time.UTC)

	t.Run("scans every column", func(t *testing.T) {
		repository, mock := newMockRepository(t)
		rows := pgxmock.NewRows(userColumns).
			AddRow("u1", "alice", "a@x.com", "hash", "Alice A", &birthday, sec.RoleAdmin, true, created, created)
		mock.ExpectQuery(`SELECT .+ FROM users.account WHERE username = \$1`).
			WithArgs("alice").
			WillReturnRows(rows)

		user, err := repository.FindByUsername(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, "u1", user.ID)
		assert.Equal(t, "Alice A", user.FullName)
		assert.Equal(t, birthday, *user.DateOfBirth)
		assert.Equal(t, sec.RoleAdmin, user.Role)
		assert.True(t, user.IsActivated)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no rows is not found", func(t *testing.T) {
		repository, mock := newMockRepository(t)
		mock.ExpectQuery(`SELECT .+ FROM users.account WHERE username = \$1`).
			WithArgs("ghost").
			WillReturnError(pgx.ErrNoRows)

		_, err := repository.FindByUsername(ctx, "ghost")
		assert.ErrorIs(t, err, dberr.ErrNotFound)
	})

	t.Run("driver failures are wrapped", func(t *testing.T) {
		repository, mock := newMockRepository(t)
		mock.ExpectQuery(`SELECT .+ FROM users.account`).
			WithArgs("alice").
			WillReturnError(errors.New("syntax error"))

		_, err := repository.FindByUsername(ctx, "alice")
		require.Error(t, err)
		assert.NotErrorIs(t, err, dberr.ErrNotFound)
	})
}

func TestPostgresUserRepository_Mutations(t *testing.T) {
	ctx := context.Background()

	t.Run("exists checks both identifiers", func(t *testing.T) {
		repository, mock := newMockRepository(t)
		mock.ExpectQuery(`SELECT EXISTS`).
			WithArgs("alice", "a@x.com").
			WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

		exists, err := repository.ExistsByUsernameOrEmail(ctx, "alice", "a@x.com")
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("update password of a missing user", func(t *testing.T) {
		repository, mock := newMockRepository(t)
		mock.ExpectExec(`UPDATE users.account SET passwordhash`).
			WithArgs("u1", "new-hash").
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		assert.ErrorIs(t, repository.UpdatePassword(ctx, "u1", "new-hash"), auth.ErrUserNotFound)
	})

	t.Run("mark activated reports whether a row changed", func(t *testing.T) {
		repository, mock := newMockRepository(t)
		mock.ExpectExec(`UPDATE users.account SET isactivated = TRUE`).
			WithArgs("alice").
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		activated, err := repository.MarkActivated(ctx, "alice")
		require.NoError(t, err)
		assert.True(t, activated)
	})

	t.Run("delete returns the removed id", func(t *testing.T) {
		repository, mock := newMockRepository(t)
		mock.ExpectQuery(`DELETE FROM users.account WHERE username = \$1 AND email = \$2 RETURNING id`).
			WithArgs("alice", "a@x.com").
			WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("u1"))

		id, err := repository.DeleteByUsernameAndEmail(ctx, "alice", "a@x.com")
		require.NoError(t, err)
		assert.Equal(t, "u1", id)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
