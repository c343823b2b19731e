// Copyright (c) 2026 Kinbank. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/taibuivan/kinbank/internal/platform/sec"
)

// SessionManager issues, validates and destroys server-side sessions.
//
// # Token Format
//
// Clients hold a signed token (see [sec.SessionSigner]) wrapping a 256-bit
// random session id. Only the id is used as the store key. Validity and
// expiry live exclusively in the [SessionStore] record.
//
// # Expiry
//
// The window slides: every successful validation moves ExpiresAt to
// now + ttl.
type SessionManager struct {
	store  SessionStore
	signer *sec.SessionSigner
	ttl    time.Duration
	now    func() time.Time
}

// NewSessionManager wires a manager. A non-positive ttl uses [DefaultSessionTTL].
func NewSessionManager(store SessionStore, signer *sec.SessionSigner, ttl time.Duration, clock func() time.Time) *SessionManager {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if clock == nil {
		clock = time.Now
	}
	return &SessionManager{store: store, signer: signer, ttl: ttl, now: clock}
}

// TTL returns the sliding inactivity window.
func (manager *SessionManager) TTL() time.Duration {
	return manager.ttl
}

/*
Create starts a session for user and returns the client token.

Returns:
  - string: signed session token
  - *Session: the stored record
*/
func (manager *SessionManager) Create(ctx context.Context, user *User) (string, *Session, error) {
	id, err := sec.GenerateSecureToken(SessionIDLength)
	if err != nil {
		return "", nil, fmt.Errorf("auth_session_id_failed: %w", err)
	}

	now := manager.now()
	session := &Session{
		ID:         id,
		UserID:     user.ID,
		Username:   user.Username,
		Role:       user.Role,
		CreatedAt:  now,
		LastAccess: now,
		ExpiresAt:  now.Add(manager.ttl),
	}

	token, err := manager.signer.Sign(id, now)
	if err != nil {
		return "", nil, fmt.Errorf("auth_session_sign_failed: %w", err)
	}

	if err := manager.store.Set(ctx, session, manager.ttl); err != nil {
		return "", nil, err
	}

	return token, session, nil
}

/*
Resolve validates token and slides the session's expiry.

Returns:
  - *Session: the refreshed record
  - error: [ErrSessionExpired] for forged, unknown or expired sessions;
    store failures are passed through unchanged
*/
func (manager *SessionManager) Resolve(ctx context.Context, token string) (*Session, error) {
	id, err := manager.signer.Parse(token)
	if err != nil {
		return nil, ErrSessionExpired
	}

	session, err := manager.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, ErrSessionExpired
		}
		return nil, err
	}

	now := manager.now()
	if now.After(session.ExpiresAt) {
		_ = manager.store.Destroy(ctx, id)
		return nil, ErrSessionExpired
	}

	session.LastAccess = now
	session.ExpiresAt = now.Add(manager.ttl)
	if err := manager.store.Refresh(ctx, session, manager.ttl); err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, ErrSessionExpired
		}
		return nil, err
	}

	return session, nil
}

// Authenticate resolves token into the identity carried by request contexts.
func (manager *SessionManager) Authenticate(ctx context.Context, token string) (*sec.Identity, error) {
	session, err := manager.Resolve(ctx, token)
	if err != nil {
		return nil, err
	}
	return &sec.Identity{
		UserID:    session.UserID,
		Username:  session.Username,
		Role:      session.Role,
		SessionID: session.ID,
	}, nil
}

// Destroy removes the session behind token. Invalid tokens and absent
// sessions are treated as already destroyed.
func (manager *SessionManager) Destroy(ctx context.Context, token string) error {
	id, err := manager.signer.Parse(token)
	if err != nil {
		return nil
	}
	return manager.store.Destroy(ctx, id)
}

// DestroyUser revokes every session of userID.
func (manager *SessionManager) DestroyUser(ctx context.Context, userID string) error {
	return manager.store.DestroyUser(ctx, userID)
}
