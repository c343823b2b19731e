// Copyright (c) 2026 Kinbank. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package sec provides cryptographic primitives and token management.
//
// # Architecture
//
// This package isolates security-sensitive code (password hashing, random
// codes, session token signing) from the domain logic. It acts as an
// Infrastructure service injected into the Application layer.
package sec

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidSessionToken is returned for tokens with a bad signature, a foreign
// issuer, or no session id.
var ErrInvalidSessionToken = errors.New("sec: invalid session token")

// SessionClaims is the payload of the client-facing session token.
//
// # Why sign an opaque id?
//
// The server-side session record stays the single source of truth for
// validity and expiry. The signature only lets the API reject forged or
// mistyped ids before a store round-trip.
type SessionClaims struct {
	jwt.RegisteredClaims

	SessionID string `json:"sid"`
}

// SessionSigner wraps session ids into HS256-signed tokens and back.
type SessionSigner struct {
	secret []byte
	issuer string
}

// NewSessionSigner creates a signer keyed by secret.
func NewSessionSigner(secret, issuer string) (*SessionSigner, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("sec: session secret must be at least 32 bytes")
	}
	return &SessionSigner{secret: []byte(secret), issuer: issuer}, nil
}

// Sign produces the client-facing token for sessionID.
func (signer *SessionSigner) Sign(sessionID string, issuedAt time.Time) (string, error) {
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   signer.issuer,
			IssuedAt: jwt.NewNumericDate(issuedAt),
		},
		SessionID: sessionID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(signer.secret)
	if err != nil {
		return "", fmt.Errorf("sec: failed to sign session token: %w", err)
	}
	return signed, nil
}

// Parse checks the signature of tokenString and returns the embedded session id.
func (signer *SessionSigner) Parse(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		return signer.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSessionToken, err)
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid || claims.SessionID == "" {
		return "", ErrInvalidSessionToken
	}
	if claims.Issuer != signer.issuer {
		return "", ErrInvalidSessionToken
	}

	return claims.SessionID, nil
}
