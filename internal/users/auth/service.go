// Copyright (c) 2026 Kinbank. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/taibuivan/kinbank/internal/platform/apperr"
	"github.com/taibuivan/kinbank/internal/platform/ctxutil"
	"github.com/taibuivan/kinbank/internal/platform/dberr"
	"github.com/taibuivan/kinbank/internal/platform/sec"
	"github.com/taibuivan/kinbank/pkg/uuid"
)

// dummyPassword feeds the timing-equalizing verification for unknown users.
const dummyPassword = "kinbank-login-timing-equalizer"

// # Contracts & Types

// Config holds the lifetimes of the time-limited credentials.
// Zero values fall back to the package defaults.
type Config struct {
	ActivationTTL   time.Duration
	RecoveryCodeTTL time.Duration
	ResetWindow     time.Duration
}

// Dependencies groups the collaborators of [Service].
type Dependencies struct {
	Users       UserRepository
	Activations ActivationRepository
	Security    SecurityRepository
	Sessions    *SessionManager
	Hasher      *sec.Hasher
	Notifier    Notifier

	// Hook is optional.
	Hook ActivationHook

	// Clock defaults to time.Now.
	Clock func() time.Time
}

// Service orchestrates the credential and session lifecycle.
//
// # Review Process
//
// This service is critical for security. Any changes to hashing, login or
// recovery logic must be reviewed by the security team.
type Service struct {
	users       UserRepository
	activations ActivationRepository
	security    SecurityRepository
	sessions    *SessionManager
	hasher      *sec.Hasher
	notifier    Notifier
	hook        ActivationHook
	config      Config
	now         func() time.Time

	dummyOnce   sync.Once
	dummyRecord string
}

// NewService constructs a new [Service].
func NewService(deps Dependencies, config Config) *Service {
	if config.ActivationTTL <= 0 {
		config.ActivationTTL = DefaultActivationTTL
	}
	if config.RecoveryCodeTTL <= 0 {
		config.RecoveryCodeTTL = DefaultRecoveryCodeTTL
	}
	if config.ResetWindow <= 0 {
		config.ResetWindow = DefaultResetWindow
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	return &Service{
		users:       deps.Users,
		activations: deps.Activations,
		security:    deps.Security,
		sessions:    deps.Sessions,
		hasher:      deps.Hasher,
		notifier:    deps.Notifier,
		hook:        deps.Hook,
		config:      config,
		now:         clock,
	}
}

// # Registration Flow

// RegisterInput holds the data required to enroll a new customer.
type RegisterInput struct {
	Username    string
	Email       string
	Password    string
	FullName    string
	DateOfBirth *time.Time
}

/*
Register validates uniqueness, hashes the password and persists a new account.

The account starts unactivated. A concurrent registration that slips past the
pre-check is caught by the unique constraints and reported the same way.

Returns:
  - *User: Created entity
  - err: [ErrDuplicateUser] or storage errors
*/
func (service *Service) Register(ctx context.Context, input RegisterInput) (*User, error) {
	username := strings.TrimSpace(input.Username)
	email := normalizeEmail(input.Email)

	exists, err := service.users.ExistsByUsernameOrEmail(ctx, username, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrDuplicateUser
	}

	passwordHash, err := service.hasher.Hash(ctx, input.Password)
	if err != nil {
		return nil, fmt.Errorf("auth_service_hash_failed: %w", err)
	}

	now := service.now()
	user := &User{
		ID:           uuid.New(),
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		FullName:     strings.TrimSpace(input.FullName),
		DateOfBirth:  input.DateOfBirth,
		Role:         sec.RoleCustomer,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := service.users.Create(ctx, user); err != nil {
		return nil, err
	}

	ctxutil.GetLogger(ctx).InfoContext(ctx, "user_registered",
		slog.String("user_id", user.ID),
		slog.String("username", user.Username),
	)
	return user, nil
}

// # Activation Flow

/*
IssueActivation creates a fresh activation token and mails its link.

Every call creates a new token; earlier ones stay valid until they expire.
The user row is not consulted: tokens reference the account by username and
email only.

Returns:
  - *ActivationToken: the stored token
  - err: [apperr.NotificationFailure] when delivery fails (the token stays
    stored and can still be confirmed)
*/
func (service *Service) IssueActivation(ctx context.Context, username, email string) (*ActivationToken, error) {
	value, err := sec.GenerateSecureToken(ActivationTokenLength)
	if err != nil {
		return nil, fmt.Errorf("auth_activation_token_failed: %w", err)
	}

	now := service.now()
	token := &ActivationToken{
		Username:  strings.TrimSpace(username),
		Email:     normalizeEmail(email),
		Token:     value,
		CreatedAt: now,
		ExpiresAt: now.Add(service.config.ActivationTTL),
	}

	if err := service.activations.Create(ctx, token); err != nil {
		return nil, err
	}

	logger := ctxutil.GetLogger(ctx)
	if err := service.notifier.SendActivation(ctx, token.Email, token.Username, token.Token, token.ExpiresAt); err != nil {
		logger.WarnContext(ctx, "notification_failed",
			slog.String("kind", "activation"),
			slog.String("username", token.Username),
			slog.Any("error", err),
		)
		return nil, apperr.NotificationFailure(err)
	}

	logger.InfoContext(ctx, "activation_issued", slog.String("username", token.Username))
	return token, nil
}

/*
ConfirmActivation activates the token and, best effort, the account it names.

Confirming an already activated token succeeds without side effects.

Returns:
  - err: [ErrTokenNotFound], [ErrTokenExpired] or storage errors
*/
func (service *Service) ConfirmActivation(ctx context.Context, value string) error {
	token, err := service.activations.FindByToken(ctx, value)
	if err != nil {
		return err
	}
	if token.Activated {
		return nil
	}

	now := service.now()
	if token.Expired(now) {
		return ErrTokenExpired
	}

	activated, err := service.activations.Activate(ctx, value, now)
	if err != nil {
		return err
	}
	if !activated {
		// Lost a race: either a concurrent confirmation won or the token
		// expired between the read and the update.
		current, err := service.activations.FindByToken(ctx, value)
		if err != nil {
			return err
		}
		if current.Activated {
			return nil
		}
		return ErrTokenExpired
	}

	service.activateAccount(ctx, token)
	return nil
}

// activateAccount propagates a confirmed token to the account and profile.
// Only an account whose email is the one the token was mailed to is touched.
// Failures are logged; the token itself is already activated.
func (service *Service) activateAccount(ctx context.Context, token *ActivationToken) {
	logger := ctxutil.GetLogger(ctx)

	user, err := service.users.FindByUsername(ctx, token.Username)
	if err != nil {
		logger.WarnContext(ctx, "activation_account_lookup_failed",
			slog.String("username", token.Username),
			slog.Any("error", err),
		)
		return
	}

	if normalizeEmail(user.Email) != normalizeEmail(token.Email) {
		logger.WarnContext(ctx, "activation_email_mismatch", slog.String("user_id", user.ID))
		return
	}

	if _, err := service.users.MarkActivated(ctx, user.Username); err != nil {
		logger.WarnContext(ctx, "activation_account_update_failed",
			slog.String("user_id", user.ID),
			slog.Any("error", err),
		)
		return
	}

	if service.hook != nil {
		if err := service.hook.AccountActivated(ctx, user.ID); err != nil {
			logger.WarnContext(ctx, "activation_hook_failed",
				slog.String("user_id", user.ID),
				slog.Any("error", err),
			)
		}
	}

	logger.InfoContext(ctx, "account_activated", slog.String("user_id", user.ID))
}

// # Authentication Flow

// LoginInput holds the submitted credentials.
type LoginInput struct {
	Username string
	Password string
}

// LoginResult is returned by a successful [Service.Login].
type LoginResult struct {
	SessionToken string
	Session      *Session
	User         *User
}

/*
Login verifies credentials and starts a session.

Unknown usernames and wrong passwords fail identically, and an unknown
username still pays for one key derivation.

Returns:
  - *LoginResult: session token, record and user
  - err: [ErrInvalidCredentials] or storage errors
*/
func (service *Service) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	logger := ctxutil.GetLogger(ctx)

	user, err := service.users.FindByUsername(ctx, strings.TrimSpace(input.Username))
	if err != nil {
		if !errors.Is(err, dberr.ErrNotFound) {
			return nil, err
		}
		_, _ = service.hasher.Verify(ctx, input.Password, service.dummy(ctx))
		logger.InfoContext(ctx, "login_failed", slog.String("reason", "unknown_user"))
		return nil, ErrInvalidCredentials
	}

	matched, err := service.hasher.Verify(ctx, input.Password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("auth_service_verify_failed: %w", err)
	}
	if !matched {
		logger.InfoContext(ctx, "login_failed",
			slog.String("reason", "wrong_password"),
			slog.String("user_id", user.ID),
		)
		return nil, ErrInvalidCredentials
	}

	if service.hasher.NeedsRehash(user.PasswordHash) {
		service.rehash(ctx, user, input.Password)
	}

	token, session, err := service.sessions.Create(ctx, user)
	if err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "session_created",
		slog.String("user_id", user.ID),
		slog.Time("expires_at", session.ExpiresAt),
	)
	return &LoginResult{SessionToken: token, Session: session, User: user}, nil
}

// rehash upgrades a record derived with an outdated work factor.
func (service *Service) rehash(ctx context.Context, user *User, password string) {
	record, err := service.hasher.Hash(ctx, password)
	if err == nil {
		err = service.users.UpdatePassword(ctx, user.ID, record)
	}
	if err != nil {
		ctxutil.GetLogger(ctx).WarnContext(ctx, "password_rehash_failed",
			slog.String("user_id", user.ID),
			slog.Any("error", err),
		)
		return
	}
	user.PasswordHash = record
}

// dummy returns a well-formed record derived with the current work factor.
func (service *Service) dummy(ctx context.Context) string {
	service.dummyOnce.Do(func() {
		record, err := service.hasher.Hash(context.WithoutCancel(ctx), dummyPassword)
		if err == nil {
			service.dummyRecord = record
		}
	})
	return service.dummyRecord
}

// CheckSession reports whether token names a live session and slides its expiry.
func (service *Service) CheckSession(ctx context.Context, token string) (*SessionStatus, error) {
	session, err := service.sessions.Resolve(ctx, token)
	if err != nil {
		return nil, err
	}
	return &SessionStatus{Valid: true, UserID: session.UserID, ExpiresAt: session.ExpiresAt}, nil
}

// Logout destroys the session behind token. An absent session is not an error.
func (service *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := service.sessions.Destroy(ctx, token); err != nil {
		return err
	}
	ctxutil.GetLogger(ctx).InfoContext(ctx, "session_destroyed")
	return nil
}

// # Recovery Flow

/*
RequestPasswordRecovery mails a fresh numeric code to the owner of email.

The caller learns nothing about whether the email is registered: unknown
emails and delivery failures are logged and reported as success.
*/
func (service *Service) RequestPasswordRecovery(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	logger := ctxutil.GetLogger(ctx)

	if _, err := service.users.FindByEmail(ctx, email); err != nil {
		if errors.Is(err, dberr.ErrNotFound) {
			logger.InfoContext(ctx, "recovery_unknown_email")
			return nil
		}
		return err
	}

	code, err := sec.GenerateNumericCode(RecoveryCodeDigits)
	if err != nil {
		return fmt.Errorf("auth_recovery_code_failed: %w", err)
	}

	expiresAt := service.now().Add(service.config.RecoveryCodeTTL)
	if err := service.security.SetRecoveryCode(ctx, email, code, expiresAt); err != nil {
		return err
	}

	if err := service.notifier.SendRecoveryCode(ctx, email, code, expiresAt); err != nil {
		logger.WarnContext(ctx, "notification_failed",
			slog.String("kind", "recovery"),
			slog.Any("error", err),
		)
		return nil
	}

	logger.InfoContext(ctx, "recovery_code_issued")
	return nil
}

/*
VerifyRecoveryOtp checks a recovery code and consumes it.

A code verifies at most once and only before its expiry. Success opens the
reset window for email. After [MaxRecoveryAttempts] wrong guesses the code is
discarded and a new one must be requested.

Returns:
  - bool: true if the code was accepted by this call
*/
func (service *Service) VerifyRecoveryOtp(ctx context.Context, email, otp string) (bool, error) {
	email = normalizeEmail(email)

	profile, err := service.security.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, dberr.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	now := service.now()
	if profile.RecoverPin == "" || profile.ExpiresAt == nil || now.After(*profile.ExpiresAt) {
		return false, nil
	}
	if !sec.EqualCodes(otp, profile.RecoverPin) {
		if err := service.security.RecordFailedRecoveryAttempt(ctx, email, profile.RecoverPin, MaxRecoveryAttempts); err != nil {
			return false, err
		}
		return false, nil
	}

	consumed, err := service.security.ConsumeRecoveryCode(ctx, email, profile.RecoverPin, now, now.Add(service.config.ResetWindow))
	if err != nil {
		return false, err
	}
	if consumed {
		ctxutil.GetLogger(ctx).InfoContext(ctx, "recovery_code_accepted")
	}
	return consumed, nil
}

/*
ResetPassword replaces the password of the account owning email.

It requires the reset window opened by [Service.VerifyRecoveryOtp], closes
it, and revokes every session of the user.

Returns:
  - err: [ErrInvalidRecoveryCode] without an open window,
    [ErrUserNotFound] when no account owns email
*/
func (service *Service) ResetPassword(ctx context.Context, email, newPassword string) error {
	email = normalizeEmail(email)

	profile, err := service.security.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, dberr.ErrNotFound) {
			return ErrInvalidRecoveryCode
		}
		return err
	}
	if !profile.ResetAllowed(service.now()) {
		return ErrInvalidRecoveryCode
	}

	user, err := service.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, dberr.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	record, err := service.hasher.Hash(ctx, newPassword)
	if err != nil {
		return fmt.Errorf("auth_service_hash_failed: %w", err)
	}

	closed, err := service.security.CloseResetWindow(ctx, email, service.now())
	if err != nil {
		return err
	}
	if !closed {
		return ErrInvalidRecoveryCode
	}

	if err := service.users.UpdatePassword(ctx, user.ID, record); err != nil {
		if reopenErr := service.security.ReopenResetWindow(ctx, email, *profile.ResetAllowedUntil); reopenErr != nil {
			ctxutil.GetLogger(ctx).WarnContext(ctx, "reset_window_reopen_failed",
				slog.String("user_id", user.ID),
				slog.Any("error", reopenErr),
			)
		}
		return err
	}

	if err := service.sessions.DestroyUser(ctx, user.ID); err != nil {
		return err
	}

	ctxutil.GetLogger(ctx).InfoContext(ctx, "password_reset", slog.String("user_id", user.ID))
	return nil
}

// # Administration

// DeleteUser removes the account matching both username and email and
// revokes its sessions. Activation and security documents are kept.
func (service *Service) DeleteUser(ctx context.Context, username, email string) error {
	userID, err := service.users.DeleteByUsernameAndEmail(ctx, strings.TrimSpace(username), normalizeEmail(email))
	if err != nil {
		if errors.Is(err, dberr.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	if err := service.sessions.DestroyUser(ctx, userID); err != nil {
		return err
	}

	ctxutil.GetLogger(ctx).InfoContext(ctx, "user_deleted", slog.String("user_id", userID))
	return nil
}

// # Security Material

// SetSecurityQuestion stores the question and a hash of the normalized answer.
func (service *Service) SetSecurityQuestion(ctx context.Context, userID, question, answer string) error {
	user, err := service.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}

	answerHash, err := service.hasher.Hash(ctx, normalizeAnswer(answer))
	if err != nil {
		return fmt.Errorf("auth_service_hash_failed: %w", err)
	}

	return service.security.SetSecurityQuestion(ctx, user.Email, strings.TrimSpace(question), answerHash)
}

// CheckSecurityAnswer compares answer case-insensitively with the stored one.
// A missing profile or question yields false.
func (service *Service) CheckSecurityAnswer(ctx context.Context, email, answer string) (bool, error) {
	profile, err := service.security.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, dberr.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if profile.SecurityAnswerHash == "" {
		return false, nil
	}

	return service.verifySecret(ctx, normalizeAnswer(answer), profile.SecurityAnswerHash)
}

// SetTransactionPin stores a hash of the 4-digit transaction PIN.
func (service *Service) SetTransactionPin(ctx context.Context, userID, pin string) error {
	user, err := service.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}

	pinHash, err := service.hasher.Hash(ctx, pin)
	if err != nil {
		return fmt.Errorf("auth_service_hash_failed: %w", err)
	}

	return service.security.SetTransactionPin(ctx, user.Email, pinHash)
}

// VerifyTransactionPin reports whether pin matches the user's stored PIN.
// A user without a PIN never verifies.
func (service *Service) VerifyTransactionPin(ctx context.Context, userID, pin string) (bool, error) {
	user, err := service.users.FindByID(ctx, userID)
	if err != nil {
		return false, err
	}

	profile, err := service.security.FindByEmail(ctx, user.Email)
	if err != nil {
		if errors.Is(err, dberr.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if profile.TransactionPinHash == "" {
		return false, nil
	}

	return service.verifySecret(ctx, pin, profile.TransactionPinHash)
}

func (service *Service) verifySecret(ctx context.Context, secret, record string) (bool, error) {
	matched, err := service.hasher.Verify(ctx, secret, record)
	if err != nil {
		return false, fmt.Errorf("auth_service_verify_failed: %w", err)
	}
	return matched, nil
}

// # Helpers

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func normalizeAnswer(answer string) string {
	return strings.ToLower(strings.TrimSpace(answer))
}
