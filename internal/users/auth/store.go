// Copyright (c) 2026 Kinbank. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"time"
)

// # Credential Data Access

// UserRepository defines the data access contract for user accounts.
//
// Lookups return an error matching [dberr.ErrNotFound] for absent rows.
type UserRepository interface {

	/*
		Create persists a brand-new user account.

		Returns:
		  - error: [ErrDuplicateUser] when the username or email is taken
	*/
	Create(context context.Context, user *User) error

	// FindByID returns the account with the given ID.
	FindByID(context context.Context, id string) (*User, error)

	// FindByUsername returns the account with the given username.
	FindByUsername(context context.Context, username string) (*User, error)

	// FindByEmail returns the account with the given (normalized) email.
	FindByEmail(context context.Context, email string) (*User, error)

	// ExistsByUsernameOrEmail reports whether either identifier is taken.
	ExistsByUsernameOrEmail(context context.Context, username, email string) (bool, error)

	// UpdatePassword replaces only the user's password hash.
	UpdatePassword(context context.Context, userID, passwordHash string) error

	// MarkActivated sets isactivated for the account owning username.
	// Returns false when no such account exists.
	MarkActivated(context context.Context, username string) (bool, error)

	/*
		DeleteByUsernameAndEmail removes the account only when both identifiers
		match the same row.

		Returns:
		  - string: the deleted user's ID
		  - error: not found when no row matches both
	*/
	DeleteByUsernameAndEmail(context context.Context, username, email string) (string, error)
}

// # Activation Data Access

// ActivationRepository stores activation tokens. Tokens are never deleted.
type ActivationRepository interface {
	Create(context context.Context, token *ActivationToken) error

	// FindByToken returns [ErrTokenNotFound] for an unknown token.
	FindByToken(context context.Context, token string) (*ActivationToken, error)

	/*
		Activate flips activated to true in one conditional update that only
		matches an unactivated token whose expiry is not before now.

		Returns:
		  - bool: true if this call performed the transition
	*/
	Activate(context context.Context, token string, now time.Time) (bool, error)
}

// # Security Profile Data Access

// SecurityRepository stores per-email security profiles. Every write is a
// single atomic upsert keyed by email.
type SecurityRepository interface {

	// FindByEmail returns a not found error when no profile exists.
	FindByEmail(context context.Context, email string) (*SecurityProfile, error)

	// SetRecoveryCode stores a fresh code, replacing any previous one and
	// closing any open reset window.
	SetRecoveryCode(context context.Context, email, code string, expiresAt time.Time) error

	/*
		ConsumeRecoveryCode clears code and opens a reset window, but only if the
		stored code still equals code and has not expired at now.

		Returns:
		  - bool: true for exactly one caller per issued code
	*/
	ConsumeRecoveryCode(context context.Context, email, code string, now, resetUntil time.Time) (bool, error)

	// RecordFailedRecoveryAttempt counts a wrong guess against code and
	// discards code once limit guesses have failed. A code that was already
	// replaced or consumed is left alone.
	RecordFailedRecoveryAttempt(context context.Context, email, code string, limit int) error

	// CloseResetWindow removes an open window; true if one was open at now.
	CloseResetWindow(context context.Context, email string, now time.Time) (bool, error)

	// ReopenResetWindow restores a window closed by a reset that then failed.
	// It does nothing when a window is already open.
	ReopenResetWindow(context context.Context, email string, until time.Time) error

	SetSecurityQuestion(context context.Context, email, question, answerHash string) error

	SetTransactionPin(context context.Context, email, pinHash string) error
}

// # Session Data Access

// SessionStore is the server-side keyed store behind [SessionManager].
type SessionStore interface {

	// Get returns [ErrSessionNotFound] for absent or expired records.
	Get(context context.Context, id string) (*Session, error)

	// Set creates or replaces the record and (re)arms its expiry to ttl.
	Set(context context.Context, session *Session, ttl time.Duration) error

	// Refresh rewrites an existing record and re-arms its expiry to ttl.
	// It returns [ErrSessionNotFound] without writing when the record is gone,
	// so a destroy that lands first is never undone.
	Refresh(context context.Context, session *Session, ttl time.Duration) error

	// Destroy removes one record. Removing an absent record is not an error.
	Destroy(context context.Context, id string) error

	// DestroyUser removes every record belonging to userID.
	DestroyUser(context context.Context, userID string) error
}

// # Outbound Ports

// Notifier delivers activation links and recovery codes.
type Notifier interface {
	SendActivation(context context.Context, email, username, token string, expiresAt time.Time) error
	SendRecoveryCode(context context.Context, email, code string, expiresAt time.Time) error
}

// ActivationHook is told about accounts that completed activation.
type ActivationHook interface {
	AccountActivated(context context.Context, userID string) error
}
