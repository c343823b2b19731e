// Copyright (c) 2026 Kinbank. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"errors"
	"net/http"

	"github.com/taibuivan/kinbank/internal/platform/apperr"
)

// # Domain Errors

var (
	// ErrDuplicateUser is returned when the username or email is taken.
	ErrDuplicateUser = apperr.New(http.StatusConflict, "DUPLICATE_USER", "Username or email is already registered")

	// ErrTokenNotFound is returned for an unknown activation token.
	ErrTokenNotFound = apperr.New(http.StatusNotFound, "TOKEN_NOT_FOUND", "Activation token not found")

	// ErrTokenExpired is returned for an activation token past its expiry.
	ErrTokenExpired = apperr.New(http.StatusBadRequest, "TOKEN_EXPIRED", "Activation token has expired")

	// ErrInvalidCredentials covers both an unknown username and a wrong password.
	ErrInvalidCredentials = apperr.New(http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid username or password")

	// ErrSessionExpired is returned for a missing, expired or forged session.
	ErrSessionExpired = apperr.New(http.StatusUnauthorized, "SESSION_EXPIRED", "Session has expired")

	// ErrInvalidRecoveryCode is returned for a wrong, used or expired recovery
	// code, and for a reset attempted without an open reset window.
	ErrInvalidRecoveryCode = apperr.New(http.StatusForbidden, "INVALID_RECOVERY_CODE", "Recovery code is invalid or has expired")

	// ErrUserNotFound is returned by admin and reset flows naming a missing user.
	ErrUserNotFound = apperr.NotFound("User")
)

// ErrSessionNotFound is the [SessionStore] sentinel for an absent record.
// The service translates it into [ErrSessionExpired].
var ErrSessionNotFound = errors.New("auth: session not found")
