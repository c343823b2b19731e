// Copyright (c) 2026 Kinbank. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/taibuivan/kinbank/internal/platform/apperr"
	"github.com/taibuivan/kinbank/internal/platform/constants"
	"github.com/taibuivan/kinbank/internal/platform/ctxutil"
	"github.com/taibuivan/kinbank/internal/platform/respond"
	"github.com/taibuivan/kinbank/internal/platform/sec"
)

// SessionVerifier resolves a client session token into an identity.
//
// Implementations return an error for unknown, expired or forged tokens and an
// [apperr.AppError] with status 503 when the session store cannot be reached.
type SessionVerifier interface {
	Authenticate(ctx context.Context, token string) (*sec.Identity, error)
}

// SessionToken extracts the raw session token from the Authorization header
// or, failing that, from the session cookie.
//
// Returns "" when the request carries neither.
func SessionToken(request *http.Request) string {
	if header := request.Header.Get(constants.HeaderAuthorization); header != "" {
		scheme, token, found := strings.Cut(header, " ")
		if found && strings.EqualFold(scheme, "bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}

	if cookie, err := request.Cookie(constants.SessionCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// Authenticate resolves the session token, when present, and injects the
// [*sec.Identity] into the request context.
//
// # Flow
//  1. No token: the request proceeds as anonymous.
//  2. Invalid or expired token: the request proceeds as anonymous. Protected
//     routes reject it through [RequireAuth]; public ones (login) still work
//     with a stale cookie.
//  3. Store failure: the request is aborted with 503.
//  4. Valid token: identity and a user-scoped logger are added to the context.
func Authenticate(verifier SessionVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			token := SessionToken(request)
			if token == "" {
				next.ServeHTTP(writer, request)
				return
			}

			identity, err := verifier.Authenticate(request.Context(), token)
			if err != nil {
				if appErr := apperr.As(err); appErr != nil && appErr.HTTPStatus >= 500 {
					respond.Error(writer, request, appErr)
					return
				}
				next.ServeHTTP(writer, request)
				return
			}

			ctx := ctxutil.WithAuthUser(request.Context(), identity)
			ctx = ctxutil.WithLogger(ctx, ctxutil.GetLogger(ctx).With(slog.String("user_id", identity.UserID)))
			next.ServeHTTP(writer, request.WithContext(ctx))
		})
	}
}

// RequireAuth blocks requests that are not authenticated.
//
// Must be registered in the router AFTER [Authenticate].
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if ctxutil.GetAuthUser(request.Context()) == nil {
			respond.Error(writer, request, apperr.Unauthorized("Authentication required"))
			return
		}
		next.ServeHTTP(writer, request)
	})
}

// RequireRole blocks requests whose identity does not reach role.
//
// It implies [RequireAuth], so mounting both is unnecessary.
func RequireRole(role sec.UserRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			identity := ctxutil.GetAuthUser(request.Context())

			if identity == nil {
				respond.Error(writer, request, apperr.Unauthorized("Authentication required"))
				return
			}

			if !identity.Role.AtLeast(role) {
				respond.Error(writer, request, apperr.Forbidden("Insufficient permissions"))
				return
			}

			next.ServeHTTP(writer, request)
		})
	}
}
