// Copyright (c) 2026 Kinbank. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/taibuivan/kinbank/internal/platform/constants"
	"github.com/taibuivan/kinbank/internal/platform/dberr"
	"github.com/taibuivan/kinbank/internal/platform/sec"
	"github.com/taibuivan/kinbank/internal/users/auth"
)

// # Clock

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (clock *fakeClock) Now() time.Time {
	clock.mu.Lock()
	defer clock.mu.Unlock()
	return clock.now
}

func (clock *fakeClock) Advance(d time.Duration) {
	clock.mu.Lock()
	defer clock.mu.Unlock()
	clock.now = clock.now.Add(d)
}

// # Users

type fakeUsers struct {
	mu        sync.Mutex
	byID      map[string]*auth.User
	err       error
	updateErr error
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byID: map[string]*auth.User{}}
}

func (users *fakeUsers) Create(_ context.Context, user *auth.User) error {
	users.mu.Lock()
	defer users.mu.Unlock()
	if users.err != nil {
		return users.err
	}
	for _, existing := range users.byID {
		if existing.Username == user.Username || existing.Email == user.Email {
			return auth.ErrDuplicateUser
		}
	}
	clone := *user
	users.byID[user.ID] = &clone
	return nil
}

func (users *fakeUsers) find(match func(*auth.User) bool) (*auth.User, error) {
	users.mu.Lock()
	defer users.mu.Unlock()
	if users.err != nil {
		return nil, users.err
	}
	for _, user := range users.byID {
		if match(user) {
			clone := *user
			return &clone, nil
		}
	}
	return nil, dberr.ErrNotFound
}

func (users *fakeUsers) FindByID(_ context.Context, id string) (*auth.User, error) {
	return users.find(func(user *auth.User) bool { return user.ID == id })
}

func (users *fakeUsers) FindByUsername(_ context.Context, username string) (*auth.User, error) {
	return users.find(func(user *auth.User) bool { return user.Username == username })
}

func (users *fakeUsers) FindByEmail(_ context.Context, email string) (*auth.User, error) {
	return users.find(func(user *auth.User) bool { return user.Email == email })
}

func (users *fakeUsers) ExistsByUsernameOrEmail(_ context.Context, username, email string) (bool, error) {
	_, err := users.find(func(user *auth.User) bool { return user.Username == username || user.Email == email })
	if err == dberr.ErrNotFound {
		return false, nil
	}
	return err == nil, err
}

func (users *fakeUsers) UpdatePassword(_ context.Context, userID, passwordHash string) error {
	users.mu.Lock()
	defer users.mu.Unlock()
	if users.updateErr != nil {
		return users.updateErr
	}
	user, ok := users.byID[userID]
	if !ok {
		return auth.ErrUserNotFound
	}
	user.PasswordHash = passwordHash
	return nil
}

func (users *fakeUsers) MarkActivated(_ context.Context, username string) (bool, error) {
	users.mu.Lock()
	defer users.mu.Unlock()
	for _, user := range users.byID {
		if user.Username == username {
			user.IsActivated = true
			return true, nil
		}
	}
	return false, nil
}

func (users *fakeUsers) DeleteByUsernameAndEmail(_ context.Context, username, email string) (string, error) {
	users.mu.Lock()
	defer users.mu.Unlock()
	for id, user := range users.byID {
		if user.Username == username && user.Email == email {
			delete(users.byID, id)
			return id, nil
		}
	}
	return "", dberr.ErrNotFound
}

// # Activation tokens

type fakeActivations struct {
	mu     sync.Mutex
	tokens map[string]*auth.ActivationToken
}

func newFakeActivations() *fakeActivations {
	return &fakeActivations{tokens: map[string]*auth.ActivationToken{}}
}

func (activations *fakeActivations) Create(_ context.Context, token *auth.ActivationToken) error {
	activations.mu.Lock()
	defer activations.mu.Unlock()
	clone := *token
	activations.tokens[token.Token] = &clone
	return nil
}

func (activations *fakeActivations) FindByToken(_ context.Context, token string) (*auth.ActivationToken, error) {
	activations.mu.Lock()
	defer activations.mu.Unlock()
	record, ok := activations.tokens[token]
	if !ok {
		return nil, auth.ErrTokenNotFound
	}
	clone := *record
	return &clone, nil
}

func (activations *fakeActivations) Activate(_ context.Context, token string, now time.Time) (bool, error) {
	activations.mu.Lock()
	defer activations.mu.Unlock()
	record, ok := activations.tokens[token]
	if !ok || record.Activated || now.After(record.ExpiresAt) {
		return false, nil
	}
	record.Activated = true
	record.ActivatedAt = &now
	return true, nil
}

// # Security profiles

type fakeSecurity struct {
	mu       sync.Mutex
	profiles map[string]*auth.SecurityProfile
}

func newFakeSecurity() *fakeSecurity {
	return &fakeSecurity{profiles: map[string]*auth.SecurityProfile{}}
}

func (security *fakeSecurity) profile(email string) *auth.SecurityProfile {
	profile, ok := security.profiles[email]
	if !ok {
		profile = &auth.SecurityProfile{Email: email}
		security.profiles[email] = profile
	}
	return profile
}

func (security *fakeSecurity) FindByEmail(_ context.Context, email string) (*auth.SecurityProfile, error) {
	security.mu.Lock()
	defer security.mu.Unlock()
	profile, ok := security.profiles[email]
	if !ok {
		return nil, dberr.ErrNotFound
	}
	clone := *profile
	return &clone, nil
}

func (security *fakeSecurity) SetRecoveryCode(_ context.Context, email, code string, expiresAt time.Time) error {
	security.mu.Lock()
	defer security.mu.Unlock()
	profile := security.profile(email)
	profile.RecoverPin = code
	profile.RecoverAttempts = 0
	profile.ExpiresAt = &expiresAt
	profile.ResetAllowedUntil = nil
	return nil
}

func (security *fakeSecurity) ConsumeRecoveryCode(_ context.Context, email, code string, now, resetUntil time.Time) (bool, error) {
	security.mu.Lock()
	defer security.mu.Unlock()
	profile, ok := security.profiles[email]
	if !ok || profile.RecoverPin != code || profile.ExpiresAt == nil || now.After(*profile.ExpiresAt) {
		return false, nil
	}
	profile.RecoverPin = ""
	profile.RecoverAttempts = 0
	profile.ExpiresAt = nil
	profile.ResetAllowedUntil = &resetUntil
	return true, nil
}

func (security *fakeSecurity) RecordFailedRecoveryAttempt(_ context.Context, email, code string, limit int) error {
	security.mu.Lock()
	defer security.mu.Unlock()
	profile, ok := security.profiles[email]
	if !ok || profile.RecoverPin != code {
		return nil
	}
	profile.RecoverAttempts++
	if profile.RecoverAttempts >= limit {
		profile.RecoverPin = ""
		profile.RecoverAttempts = 0
		profile.ExpiresAt = nil
	}
	return nil
}

func (security *fakeSecurity) ReopenResetWindow(_ context.Context, email string, until time.Time) error {
	security.mu.Lock()
	defer security.mu.Unlock()
	profile, ok := security.profiles[email]
	if ok && profile.ResetAllowedUntil == nil {
		profile.ResetAllowedUntil = &until
	}
	return nil
}

func (security *fakeSecurity) CloseResetWindow(_ context.Context, email string, now time.Time) (bool, error) {
	security.mu.Lock()
	defer security.mu.Unlock()
	profile, ok := security.profiles[email]
	if !ok || !profile.ResetAllowed(now) {
		return false, nil
	}
	profile.ResetAllowedUntil = nil
	return true, nil
}

func (security *fakeSecurity) SetSecurityQuestion(_ context.Context, email, question, answerHash string) error {
	security.mu.Lock()
	defer security.mu.Unlock()
	profile := security.profile(email)
	profile.SecurityQuestion = question
	profile.SecurityAnswerHash = answerHash
	return nil
}

func (security *fakeSecurity) SetTransactionPin(_ context.Context, email, pinHash string) error {
	security.mu.Lock()
	defer security.mu.Unlock()
	security.profile(email).TransactionPinHash = pinHash
	return nil
}

// # Notifier

type sentActivation struct {
	Email, Username, Token string
}

type fakeNotifier struct {
	mu          sync.Mutex
	activations []sentActivation
	codes       map[string]string
	err         error
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{codes: map[string]string{}}
}

func (notifier *fakeNotifier) SendActivation(_ context.Context, email, username, token string, _ time.Time) error {
	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if notifier.err != nil {
		return notifier.err
	}
	notifier.activations = append(notifier.activations, sentActivation{Email: email, Username: username, Token: token})
	return nil
}

func (notifier *fakeNotifier) SendRecoveryCode(_ context.Context, email, code string, _ time.Time) error {
	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if notifier.err != nil {
		return notifier.err
	}
	notifier.codes[email] = code
	return nil
}

func (notifier *fakeNotifier) lastCode(email string) string {
	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	return notifier.codes[email]
}

// # Activation hook

type fakeHook struct {
	mu        sync.Mutex
	activated []string
}

func (hook *fakeHook) AccountActivated(_ context.Context, userID string) error {
	hook.mu.Lock()
	defer hook.mu.Unlock()
	hook.activated = append(hook.activated, userID)
	return nil
}

// # Fixture

type fixture struct {
	service     *auth.Service
	clock       *fakeClock
	users       *fakeUsers
	activations *fakeActivations
	security    *fakeSecurity
	notifier    *fakeNotifier
	hook        *fakeHook
	sessions    *auth.MemorySessionStore
	manager     *auth.SessionManager
}

func newSigner(t *testing.T) *sec.SessionSigner {
	t.Helper()
	signer, err := sec.NewSessionSigner(strings.Repeat("s", 32), constants.AuthIssuer)
	require.NoError(t, err)
	return signer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	clock := newFakeClock()
	sessions := auth.NewMemorySessionStore(clock.Now)
	manager := auth.NewSessionManager(sessions, newSigner(t), auth.DefaultSessionTTL, clock.Now)

	fx := &fixture{
		clock:       clock,
		users:       newFakeUsers(),
		activations: newFakeActivations(),
		security:    newFakeSecurity(),
		notifier:    newFakeNotifier(),
		hook:        &fakeHook{},
		sessions:    sessions,
		manager:     manager,
	}

	fx.service = auth.NewService(auth.Dependencies{
		Users:       fx.users,
		Activations: fx.activations,
		Security:    fx.security,
		Sessions:    manager,
		Hasher:      sec.NewHasher(sec.MinIterations),
		Notifier:    fx.notifier,
		Hook:        fx.hook,
		Clock:       clock.Now,
	}, auth.Config{})

	return fx
}

func (fx *fixture) register(t *testing.T, username, password, email string) *auth.User {
	t.Helper()
	user, err := fx.service.Register(context.Background(), auth.RegisterInput{
		Username: username,
		Email:    email,
		Password: password,
	})
	require.NoError(t, err)
	return user
}
