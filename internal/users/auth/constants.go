// Copyright (c) 2026 Kinbank. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import "time"

// # Lifecycle Defaults

const (
	// DefaultSessionTTL is the sliding inactivity window of a session.
	DefaultSessionTTL = 30 * time.Minute

	// DefaultActivationTTL is how long an activation token can be confirmed.
	DefaultActivationTTL = 5 * time.Minute

	// DefaultRecoveryCodeTTL is the lifetime of a password recovery code.
	DefaultRecoveryCodeTTL = 60 * time.Second

	// DefaultResetWindow is how long a successful code check permits a reset.
	DefaultResetWindow = 10 * time.Minute
)

// # Secret Sizes

const (
	// SessionIDLength is the byte length of a session id (256 bits).
	SessionIDLength = 32

	// ActivationTokenLength is the byte length of an activation token.
	ActivationTokenLength = 32

	// RecoveryCodeDigits is the length of the numeric recovery code.
	RecoveryCodeDigits = 4

	// TransactionPinDigits is the length of the transaction PIN.
	TransactionPinDigits = 4

	// MinPasswordLength applies to registration and resets.
	MinPasswordLength = 8

	// MaxRecoveryAttempts is how many wrong guesses a recovery code survives.
	MaxRecoveryAttempts = 5
)
