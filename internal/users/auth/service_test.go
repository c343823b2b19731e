// Copyright (c) 2026 Kinbank. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/kinbank/internal/platform/apperr"
	"github.com/taibuivan/kinbank/internal/platform/sec"
	"github.com/taibuivan/kinbank/internal/users/auth"
)

func TestService_Register(t *testing.T) {
	ctx := context.Background()

	t.Run("stores an unactivated customer with a hashed password", func(t *testing.T) {
		fx := newFixture(t)
		user := fx.register(t, "alice", "pw1-long-enough", " Alice@X.com ")

		assert.Equal(t, "alice", user.Username)
		assert.Equal(t, "alice@x.com", user.Email)
		assert.Equal(t, sec.RoleCustomer, user.Role)
		assert.False(t, user.IsActivated)
		assert.NotEqual(t, "pw1-long-enough", user.PasswordHash)

		matched, err := sec.NewHasher(sec.MinIterations).Verify(ctx, "pw1-long-enough", user.PasswordHash)
		require.NoError(t, err)
		assert.True(t, matched)
	})

	t.Run("same username twice is a duplicate", func(t *testing.T) {
		fx := newFixture(t)
		fx.register(t, "alice", "pw1", "a@x.com")

		_, err := fx.service.Register(ctx, auth.RegisterInput{Username: "alice", Email: "other@x.com", Password: "pw2"})
		assert.ErrorIs(t, err, auth.ErrDuplicateUser)
	})

	t.Run("same email in another case is a duplicate", func(t *testing.T) {
		fx := newFixture(t)
		fx.register(t, "alice", "pw1", "a@x.com")

		_, err := fx.service.Register(ctx, auth.RegisterInput{Username: "alice2", Email: "A@X.COM", Password: "pw2"})
		assert.ErrorIs(t, err, auth.ErrDuplicateUser)
	})
}

func TestService_Login(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	user := fx.register(t, "alice", "pw1", "a@x.com")

	t.Run("correct credentials start a session", func(t *testing.T) {
		result, err := fx.service.Login(ctx, auth.LoginInput{Username: "alice", Password: "pw1"})
		require.NoError(t, err)

		assert.NotEmpty(t, result.SessionToken)
		assert.Equal(t, user.ID, result.Session.UserID)
		assert.Equal(t, fx.clock.Now().Add(auth.DefaultSessionTTL), result.Session.ExpiresAt)
		assert.Equal(t, user.ID, result.User.ID)
	})

	t.Run("unknown user and wrong password fail identically", func(t *testing.T) {
		_, wrongPassword := fx.service.Login(ctx, auth.LoginInput{Username: "alice", Password: "nope"})
		_, unknownUser := fx.service.Login(ctx, auth.LoginInput{Username: "mallory", Password: "pw1"})

		require.ErrorIs(t, wrongPassword, auth.ErrInvalidCredentials)
		require.ErrorIs(t, unknownUser, auth.ErrInvalidCredentials)
		assert.Equal(t, wrongPassword.Error(), unknownUser.Error())
	})

	t.Run("store failures are not reported as bad credentials", func(t *testing.T) {
		broken := newFixture(t)
		broken.users.err = apperr.StoreUnavailable(errors.New("dial tcp: timeout"))

		_, err := broken.service.Login(ctx, auth.LoginInput{Username: "alice", Password: "pw1"})
		appErr := apperr.As(err)
		require.NotNil(t, appErr)
		assert.Equal(t, "STORE_UNAVAILABLE", appErr.Code)
	})
}

func TestService_Sessions(t *testing.T) {
	ctx := context.Background()

	t.Run("valid immediately and expired after the TTL", func(t *testing.T) {
		fx := newFixture(t)
		fx.register(t, "alice", "pw1", "a@x.com")
		result, err := fx.service.Login(ctx, auth.LoginInput{Username: "alice", Password: "pw1"})
		require.NoError(t, err)

		status, err := fx.service.CheckSession(ctx, result.SessionToken)
		require.NoError(t, err)
		assert.True(t, status.Valid)

		fx.clock.Advance(auth.DefaultSessionTTL + time.Second)
		_, err = fx.service.CheckSession(ctx, result.SessionToken)
		assert.ErrorIs(t, err, auth.ErrSessionExpired)
	})

	t.Run("activity slides the expiry", func(t *testing.T) {
		fx := newFixture(t)
		fx.register(t, "alice", "pw1", "a@x.com")
		result, err := fx.service.Login(ctx, auth.LoginInput{Username: "alice", Password: "pw1"})
		require.NoError(t, err)

		for range 3 {
			fx.clock.Advance(20 * time.Minute)
			status, err := fx.service.CheckSession(ctx, result.SessionToken)
			require.NoError(t, err)
			assert.Equal(t, fx.clock.Now().Add(auth.DefaultSessionTTL), status.ExpiresAt)
		}
	})

	t.Run("logout invalidates immediately", func(t *testing.T) {
		fx := newFixture(t)
		fx.register(t, "alice", "pw1", "a@x.com")
		result, err := fx.service.Login(ctx, auth.LoginInput{Username: "alice", Password: "pw1"})
		require.NoError(t, err)

		require.NoError(t, fx.service.Logout(ctx, result.SessionToken))
		_, err = fx.service.CheckSession(ctx, result.SessionToken)
		assert.ErrorIs(t, err, auth.ErrSessionExpired)

		assert.NoError(t, fx.service.Logout(ctx, result.SessionToken), "second logout succeeds")
	})

	t.Run("forged tokens are rejected", func(t *testing.T) {
		fx := newFixture(t)
		other, err := sec.NewSessionSigner("another-secret-that-is-32-bytes!", "kinbank.app")
		require.NoError(t, err)
		forged, err := other.Sign("deadbeef", fx.clock.Now())
		require.NoError(t, err)

		_, err = fx.service.CheckSession(ctx, forged)
		assert.ErrorIs(t, err, auth.ErrSessionExpired)
		_, err = fx.service.CheckSession(ctx, "not-a-token")
		assert.ErrorIs(t, err, auth.ErrSessionExpired)
	})
}

func TestService_EndToEnd_Alice(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	fx.register(t, "alice", "pw1", "a@x.com")
	result, err := fx.service.Login(ctx, auth.LoginInput{Username: "alice", Password: "pw1"})
	require.NoError(t, err)

	status, err := fx.service.CheckSession(ctx, result.SessionToken)
	require.NoError(t, err)
	assert.True(t, status.Valid)

	require.NoError(t, fx.service.Logout(ctx, result.SessionToken))

	_, err = fx.service.CheckSession(ctx, result.SessionToken)
	assert.ErrorIs(t, err, auth.ErrSessionExpired)
}

func TestService_Activation(t *testing.T) {
	ctx := context.Background()

	t.Run("bob's token expires after five minutes", func(t *testing.T) {
		fx := newFixture(t)
		token, err := fx.service.IssueActivation(ctx, "bob", "b@x.com")
		require.NoError(t, err)

		fx.clock.Advance(6 * time.Minute)
		assert.ErrorIs(t, fx.service.ConfirmActivation(ctx, token.Token), auth.ErrTokenExpired)
	})

	t.Run("activates exactly once and re-confirming is a no-op", func(t *testing.T) {
		fx := newFixture(t)
		user := fx.register(t, "bob", "pw1", "b@x.com")
		token, err := fx.service.IssueActivation(ctx, "bob", "b@x.com")
		require.NoError(t, err)
		require.Len(t, fx.notifier.activations, 1)
		assert.Equal(t, token.Token, fx.notifier.activations[0].Token)

		fx.clock.Advance(4 * time.Minute)
		require.NoError(t, fx.service.ConfirmActivation(ctx, token.Token))
		require.NoError(t, fx.service.ConfirmActivation(ctx, token.Token))

		stored, err := fx.users.FindByID(ctx, user.ID)
		require.NoError(t, err)
		assert.True(t, stored.IsActivated)
		assert.Equal(t, []string{user.ID}, fx.hook.activated)

		// Still a success once the expiry has passed.
		fx.clock.Advance(time.Hour)
		assert.NoError(t, fx.service.ConfirmActivation(ctx, token.Token))
	})

	t.Run("concurrent confirmations transition once", func(t *testing.T) {
		fx := newFixture(t)
		fx.register(t, "bob", "pw1", "b@x.com")
		token, err := fx.service.IssueActivation(ctx, "bob", "b@x.com")
		require.NoError(t, err)

		var wg sync.WaitGroup
		var failures atomic.Int32
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := fx.service.ConfirmActivation(ctx, token.Token); err != nil {
					failures.Add(1)
				}
			}()
		}
		wg.Wait()

		assert.Zero(t, failures.Load())
		assert.Len(t, fx.hook.activated, 1)
	})

	t.Run("unknown token", func(t *testing.T) {
		fx := newFixture(t)
		assert.ErrorIs(t, fx.service.ConfirmActivation(ctx, "missing"), auth.ErrTokenNotFound)
	})

	t.Run("token mailed to another address leaves the account alone", func(t *testing.T) {
		fx := newFixture(t)
		user := fx.register(t, "bob", "pw1", "b@x.com")
		token, err := fx.service.IssueActivation(ctx, "bob", "mallory@evil.com")
		require.NoError(t, err)

		require.NoError(t, fx.service.ConfirmActivation(ctx, token.Token))

		stored, err := fx.users.FindByID(ctx, user.ID)
		require.NoError(t, err)
		assert.False(t, stored.IsActivated)
		assert.Empty(t, fx.hook.activated)
	})

	t.Run("email comparison ignores case and padding", func(t *testing.T) {
		fx := newFixture(t)
		user := fx.register(t, "bob", "pw1", "b@x.com")
		token, err := fx.service.IssueActivation(ctx, "bob", "  B@X.com ")
		require.NoError(t, err)

		require.NoError(t, fx.service.ConfirmActivation(ctx, token.Token))

		stored, err := fx.users.FindByID(ctx, user.ID)
		require.NoError(t, err)
		assert.True(t, stored.IsActivated)
	})

	t.Run("every issue creates a distinct token", func(t *testing.T) {
		fx := newFixture(t)
		first, err := fx.service.IssueActivation(ctx, "bob", "b@x.com")
		require.NoError(t, err)
		second, err := fx.service.IssueActivation(ctx, "bob", "b@x.com")
		require.NoError(t, err)

		assert.NotEqual(t, first.Token, second.Token)
		assert.NoError(t, fx.service.ConfirmActivation(ctx, first.Token))
	})

	t.Run("delivery failure keeps the token", func(t *testing.T) {
		fx := newFixture(t)
		fx.notifier.err = errors.New("smtp: connection refused")

		_, err := fx.service.IssueActivation(ctx, "bob", "b@x.com")
		appErr := apperr.As(err)
		require.NotNil(t, appErr)
		assert.Equal(t, "NOTIFICATION_FAILURE", appErr.Code)
		assert.Len(t, fx.activations.tokens, 1)
	})
}

func TestService_Recovery(t *testing.T) {
	ctx := context.Background()

	t.Run("correct code verifies exactly once", func(t *testing.T) {
		fx := newFixture(t)
		fx.register(t, "alice", "pw1", "a@x.com")
		require.NoError(t, fx.service.RequestPasswordRecovery(ctx, "a@x.com"))

		code := fx.notifier.lastCode("a@x.com")
		require.Len(t, code, auth.RecoveryCodeDigits)

		wrong := "0000"
		if code == wrong {
			wrong = "1111"
		}
		accepted, err := fx.service.VerifyRecoveryOtp(ctx, "a@x.com", wrong)
		require.NoError(t, err)
		assert.False(t, accepted)

		accepted, err = fx.service.VerifyRecoveryOtp(ctx, "a@x.com", code)
		require.NoError(t, err)
		assert.True(t, accepted)

		accepted, err = fx.service.VerifyRecoveryOtp(ctx, "a@x.com", code)
		require.NoError(t, err)
		assert.False(t, accepted, "a code is consumed by its first success")
	})

	t.Run("codes expire", func(t *testing.T) {
		fx := newFixture(t)
		fx.register(t, "alice", "pw1", "a@x.com")
		require.NoError(t, fx.service.RequestPasswordRecovery(ctx, "a@x.com"))

		fx.clock.Advance(auth.DefaultRecoveryCodeTTL + time.Second)
		accepted, err := fx.service.VerifyRecoveryOtp(ctx, "a@x.com", fx.notifier.lastCode("a@x.com"))
		require.NoError(t, err)
		assert.False(t, accepted)
	})

	t.Run("reissue replaces the previous code", func(t *testing.T) {
		fx := newFixture(t)
		fx.register(t, "alice", "pw1", "a@x.com")

		require.NoError(t, fx.service.RequestPasswordRecovery(ctx, "a@x.com"))
		first := fx.notifier.lastCode("a@x.com")
		require.NoError(t, fx.service.RequestPasswordRecovery(ctx, "a@x.com"))
		second := fx.notifier.lastCode("a@x.com")

		if first != second {
			accepted, err := fx.service.VerifyRecoveryOtp(ctx, "a@x.com", first)
			require.NoError(t, err)
			assert.False(t, accepted)
		}
		accepted, err := fx.service.VerifyRecoveryOtp(ctx, "a@x.com", second)
		require.NoError(t, err)
		assert.True(t, accepted)
	})

	t.Run("too many wrong guesses discard the code", func(t *testing.T) {
		for _, guesses := range []int{auth.MaxRecoveryAttempts - 1, auth.MaxRecoveryAttempts} {
			fx := newFixture(t)
			fx.register(t, "alice", "pw1", "a@x.com")
			require.NoError(t, fx.service.RequestPasswordRecovery(ctx, "a@x.com"))
			code := fx.notifier.lastCode("a@x.com")

			wrong := "0000"
			if code == wrong {
				wrong = "1111"
			}
			for range guesses {
				accepted, err := fx.service.VerifyRecoveryOtp(ctx, "a@x.com", wrong)
				require.NoError(t, err)
				require.False(t, accepted)
			}

			accepted, err := fx.service.VerifyRecoveryOtp(ctx, "a@x.com", code)
			require.NoError(t, err)
			assert.Equal(t, guesses < auth.MaxRecoveryAttempts, accepted, "after %d wrong guesses", guesses)
		}
	})

	t.Run("a new code starts a fresh attempt budget", func(t *testing.T) {
		fx := newFixture(t)
		fx.register(t, "alice", "pw1", "a@x.com")
		require.NoError(t, fx.service.RequestPasswordRecovery(ctx, "a@x.com"))
		for range auth.MaxRecoveryAttempts {
			_, err := fx.service.VerifyRecoveryOtp(ctx, "a@x.com", "not-a-code")
			require.NoError(t, err)
		}

		require.NoError(t, fx.service.RequestPasswordRecovery(ctx, "a@x.com"))
		accepted, err := fx.service.VerifyRecoveryOtp(ctx, "a@x.com", fx.notifier.lastCode("a@x.com"))
		require.NoError(t, err)
		assert.True(t, accepted)
	})

	t.Run("unknown email and delivery failure look like success", func(t *testing.T) {
		fx := newFixture(t)
		fx.register(t, "alice", "pw1", "a@x.com")

		assert.NoError(t, fx.service.RequestPasswordRecovery(ctx, "nobody@x.com"))
		fx.notifier.err = errors.New("smtp down")
		assert.NoError(t, fx.service.RequestPasswordRecovery(ctx, "a@x.com"))
	})
}

func TestService_ResetPassword(t *testing.T) {
	ctx := context.Background()

	openWindow := func(t *testing.T, fx *fixture, email string) {
		t.Helper()
		require.NoError(t, fx.service.RequestPasswordRecovery(ctx, email))
		accepted, err := fx.service.VerifyRecoveryOtp(ctx, email, fx.notifier.lastCode(email))
		require.NoError(t, err)
		require.True(t, accepted)
	}

	t.Run("resets, closes the window and revokes sessions", func(t *testing.T) {
		fx := newFixture(t)
		fx.register(t, "alice", "pw1", "a@x.com")
		result, err := fx.service.Login(ctx, auth.LoginInput{Username: "alice", Password: "pw1"})
		require.NoError(t, err)

		openWindow(t, fx, "a@x.com")
		require.NoError(t, fx.service.ResetPassword(ctx, "a@x.com", "new-password"))

		_, err = fx.service.CheckSession(ctx, result.SessionToken)
		assert.ErrorIs(t, err, auth.ErrSessionExpired)

		_, err = fx.service.Login(ctx, auth.LoginInput{Username: "alice", Password: "pw1"})
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
		_, err = fx.service.Login(ctx, auth.LoginInput{Username: "alice", Password: "new-password"})
		assert.NoError(t, err)

		err = fx.service.ResetPassword(ctx, "a@x.com", "another-password")
		assert.ErrorIs(t, err, auth.ErrInvalidRecoveryCode, "window is single use")
	})

	t.Run("requires an open window", func(t *testing.T) {
		fx := newFixture(t)
		fx.register(t, "alice", "pw1", "a@x.com")

		assert.ErrorIs(t, fx.service.ResetPassword(ctx, "a@x.com", "new-password"), auth.ErrInvalidRecoveryCode)

		openWindow(t, fx, "a@x.com")
		fx.clock.Advance(auth.DefaultResetWindow + time.Second)
		assert.ErrorIs(t, fx.service.ResetPassword(ctx, "a@x.com", "new-password"), auth.ErrInvalidRecoveryCode)
	})

	t.Run("failed password write keeps the window open", func(t *testing.T) {
		fx := newFixture(t)
		fx.register(t, "alice", "pw1", "a@x.com")
		openWindow(t, fx, "a@x.com")

		fx.users.updateErr = apperr.StoreUnavailable(errors.New("connection reset"))
		err := fx.service.ResetPassword(ctx, "a@x.com", "new-password")
		assert.ErrorIs(t, err, apperr.StoreUnavailable(nil))

		fx.users.updateErr = nil
		require.NoError(t, fx.service.ResetPassword(ctx, "a@x.com", "new-password"))
		_, err = fx.service.Login(ctx, auth.LoginInput{Username: "alice", Password: "new-password"})
		assert.NoError(t, err)
	})

	t.Run("window without an account is not found", func(t *testing.T) {
		fx := newFixture(t)
		fx.register(t, "alice", "pw1", "a@x.com")
		openWindow(t, fx, "a@x.com")
		_, err := fx.users.DeleteByUsernameAndEmail(ctx, "alice", "a@x.com")
		require.NoError(t, err)

		assert.ErrorIs(t, fx.service.ResetPassword(ctx, "a@x.com", "new-password"), auth.ErrUserNotFound)
	})
}

func TestService_DeleteUser(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	fx.register(t, "alice", "pw1", "a@x.com")
	result, err := fx.service.Login(ctx, auth.LoginInput{Username: "alice", Password: "pw1"})
	require.NoError(t, err)

	assert.ErrorIs(t, fx.service.DeleteUser(ctx, "alice", "other@x.com"), auth.ErrUserNotFound)

	require.NoError(t, fx.service.DeleteUser(ctx, "alice", "a@x.com"))
	_, err = fx.service.CheckSession(ctx, result.SessionToken)
	assert.ErrorIs(t, err, auth.ErrSessionExpired)
}

func TestService_SecurityMaterial(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	user := fx.register(t, "alice", "pw1", "a@x.com")

	t.Run("answers compare case-insensitively", func(t *testing.T) {
		require.NoError(t, fx.service.SetSecurityQuestion(ctx, user.ID, "First pet?", "  Rex "))

		for answer, want := range map[string]bool{"rex": true, "REX": true, "max": false} {
			matched, err := fx.service.CheckSecurityAnswer(ctx, "a@x.com", answer)
			require.NoError(t, err)
			assert.Equal(t, want, matched, answer)
		}

		matched, err := fx.service.CheckSecurityAnswer(ctx, "nobody@x.com", "rex")
		require.NoError(t, err)
		assert.False(t, matched)
	})

	t.Run("transaction pin", func(t *testing.T) {
		matched, err := fx.service.VerifyTransactionPin(ctx, user.ID, "1234")
		require.NoError(t, err)
		assert.False(t, matched, "no pin set yet")

		require.NoError(t, fx.service.SetTransactionPin(ctx, user.ID, "1234"))

		matched, err = fx.service.VerifyTransactionPin(ctx, user.ID, "1234")
		require.NoError(t, err)
		assert.True(t, matched)

		matched, err = fx.service.VerifyTransactionPin(ctx, user.ID, "4321")
		require.NoError(t, err)
		assert.False(t, matched)
	})
}
