// Copyright (c) 2026 Kinbank. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package auth implements the credential and session lifecycle of Kinbank.

Registration, activation, login, session validity and password recovery are
orchestrated by [Service] on top of four stores:

  - Credentials: users.account in PostgreSQL ([UserRepository]).
  - Activation tokens: MongoDB activation_tokens ([ActivationRepository]).
  - Security profiles: MongoDB security_profiles ([SecurityRepository]).
  - Sessions: Redis or process memory ([SessionStore]).

# Referential Integrity

Activation tokens and security profiles reference users by username and email
only. They are weak references: the document store never checks that the user
row exists, and deleting a user leaves its documents behind as an audit trail.
*/
package auth

import (
	"time"

	"github.com/taibuivan/kinbank/internal/platform/sec"
)

// # Domain Entities

// User represents a registered bank customer or staff member.
type User struct {
	ID           string       `json:"id"`
	Username     string       `json:"username"`
	Email        string       `json:"email"`
	PasswordHash string       `json:"-"`
	FullName     string       `json:"fullName"`
	DateOfBirth  *time.Time   `json:"dateOfBirth,omitempty"`
	Role         sec.UserRole `json:"role"`
	IsActivated  bool         `json:"isActivated"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

// ActivationToken proves control of a username/email pair.
//
// # States
//
// Issued until confirmed (Activated, terminal) or until ExpiresAt passes
// (Expired, terminal). Records are never deleted.
type ActivationToken struct {
	Username    string     `bson:"user_name"    json:"username"`
	Email       string     `bson:"email"        json:"email"`
	Token       string     `bson:"token"        json:"token"`
	CreatedAt   time.Time  `bson:"created_at"   json:"createdAt"`
	ExpiresAt   time.Time  `bson:"expires_at"   json:"expiresAt"`
	Activated   bool       `bson:"activated"    json:"activated"`
	ActivatedAt *time.Time `bson:"activated_at,omitempty" json:"activatedAt,omitempty"`
}

// Expired reports whether the token can no longer be confirmed at now.
func (token *ActivationToken) Expired(now time.Time) bool {
	return now.After(token.ExpiresAt)
}

// SecurityProfile holds per-email recovery material. Secrets other than the
// short-lived recovery code are stored hashed.
type SecurityProfile struct {
	Email              string     `bson:"email"`
	SecurityQuestion   string     `bson:"security_question,omitempty"`
	SecurityAnswerHash string     `bson:"security_answer_hash,omitempty"`
	RecoverPin         string     `bson:"recover_pin,omitempty"`
	RecoverAttempts    int        `bson:"recover_attempts,omitempty"`
	ExpiresAt          *time.Time `bson:"expires_at,omitempty"`
	ResetAllowedUntil  *time.Time `bson:"reset_allowed_until,omitempty"`
	TransactionPinHash string     `bson:"transaction_pin_hash,omitempty"`
	UpdatedAt          time.Time  `bson:"updated_at"`
}

// ResetAllowed reports whether a password reset window is open at now.
func (profile *SecurityProfile) ResetAllowed(now time.Time) bool {
	return profile.ResetAllowedUntil != nil && now.Before(*profile.ResetAllowedUntil)
}

// Session binds an opaque id to an authenticated user.
type Session struct {
	ID         string       `json:"id"`
	UserID     string       `json:"user_id"`
	Username   string       `json:"username"`
	Role       sec.UserRole `json:"role"`
	CreatedAt  time.Time    `json:"created_at"`
	LastAccess time.Time    `json:"last_access"`
	ExpiresAt  time.Time    `json:"expires_at"`
}

// SessionStatus is the answer to "is this session still valid".
type SessionStatus struct {
	Valid     bool      `json:"valid"`
	UserID    string    `json:"userId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// # Field Identifiers

const (
	FieldUsername     = "username"
	FieldEmail        = "email"
	FieldPassword     = "password"
	FieldNewPassword  = "newPassword"
	FieldFullName     = "fullName"
	FieldDateOfBirth  = "dateOfBirth"
	FieldToken        = "token"
	FieldOTP          = "otp"
	FieldQuestion     = "question"
	FieldAnswer       = "answer"
	FieldPin          = "pin"
	FieldSessionToken = "sessionToken"
	FieldExpiresAt    = "expiresAt"
	FieldUser         = "user"
	FieldMessage      = "message"
)
