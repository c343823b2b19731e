// Copyright (c) 2026 Kinbank. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/kinbank/internal/platform/apperr"
	"github.com/taibuivan/kinbank/internal/platform/constants"
	"github.com/taibuivan/kinbank/internal/platform/middleware"
	requestutil "github.com/taibuivan/kinbank/internal/platform/request"
	"github.com/taibuivan/kinbank/internal/platform/respond"
	"github.com/taibuivan/kinbank/internal/platform/sec"
	"github.com/taibuivan/kinbank/internal/platform/validate"
)

// # Definitions & Constructors

// ErrSecurityAnswerMismatch is returned when a security answer does not match.
var ErrSecurityAnswerMismatch = apperr.Forbidden("Security answer does not match")

// Handler implements the credential and session HTTP endpoints.
//
// # Scope
//
// Registration, activation, login, session checks, recovery and the
// security material used by transfers.
type Handler struct {
	authService   *Service
	secureCookies bool
}

// NewHandler constructs a new [Handler]. secureCookies sets the Secure flag
// on the session cookie and is disabled for plain-HTTP development.
func NewHandler(service *Service, secureCookies bool) *Handler {
	return &Handler{authService: service, secureCookies: secureCookies}
}

// RegisterRoutes mounts the endpoints on router at their root-level paths.
//
// # Endpoints
//   - POST   /users               : Creates a new account.
//   - DELETE /users               : Removes an account (admin).
//   - POST   /login               : Starts a session.
//   - POST   /logout              : Ends the current session.
//   - POST   /activation          : Issues and mails an activation token.
//   - POST   /activate            : Confirms an activation token.
//   - GET    /api/checkexpiration : Reports and slides the current session.
//   - POST   /recoverotp          : Mails a recovery code.
//   - POST   /checkotp            : Checks a recovery code.
//   - POST   /updatePassword      : Resets the password inside the reset window.
func (handler *Handler) RegisterRoutes(router chi.Router) {

	// Public endpoints
	router.Post("/users", handler.register)
	router.Post("/login", handler.login)
	router.Post("/logout", handler.logout)
	router.Post("/activation", handler.issueActivation)
	router.Post("/activate", handler.confirmActivation)
	router.Get("/api/checkexpiration", handler.checkExpiration)
	router.Post("/recoverotp", handler.requestRecovery)
	router.Post("/checkotp", handler.checkRecoveryCode)
	router.Post("/updatePassword", handler.resetPassword)
	router.Post("/security/answer", handler.checkSecurityAnswer)

	// Protected endpoints
	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.Put("/security/question", handler.setSecurityQuestion)
		r.Put("/security/pin", handler.setTransactionPin)
	})

	// Administration
	router.With(middleware.RequireRole(sec.RoleAdmin)).Delete("/users", handler.deleteUser)
}

// # Request Payloads

type registerRequest struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	FullName    string `json:"fullName"`
	DateOfBirth string `json:"dateOfBirth"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type identityRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

type tokenRequest struct {
	Token string `json:"token"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type otpRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

type resetPasswordRequest struct {
	Email       string `json:"email"`
	NewPassword string `json:"newPassword"`
}

type securityQuestionRequest struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type securityAnswerRequest struct {
	Email  string `json:"email"`
	Answer string `json:"answer"`
}

type pinRequest struct {
	Pin string `json:"pin"`
}

// # Registration

/*
Register handles the creation of a new user account.

POST /users

Response:
  - 201: User: Created user profile
  - 400: VALIDATION_ERROR
  - 409: DUPLICATE_USER
*/
func (handler *Handler) register(writer http.ResponseWriter, request *http.Request) {
	var input registerRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	validator.Username(FieldUsername, input.Username).
		Required(FieldEmail, input.Email).
		Email(FieldEmail, input.Email).
		MinLen(FieldPassword, input.Password, MinPasswordLength).
		MaxLen(FieldPassword, input.Password, 128).
		MaxLen(FieldFullName, input.FullName, 100)
	if input.DateOfBirth != "" {
		validator.Date(FieldDateOfBirth, input.DateOfBirth)
	}
	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	var dateOfBirth *time.Time
	if input.DateOfBirth != "" {
		parsed, _ := time.Parse(time.DateOnly, input.DateOfBirth)
		dateOfBirth = &parsed
	}

	user, err := handler.authService.Register(request.Context(), RegisterInput{
		Username:    input.Username,
		Email:       input.Email,
		Password:    input.Password,
		FullName:    input.FullName,
		DateOfBirth: dateOfBirth,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Created(writer, user)
}

// DeleteUser removes the account matching both username and email (admin only).
func (handler *Handler) deleteUser(writer http.ResponseWriter, request *http.Request) {
	var input identityRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldUsername, input.Username).Required(FieldEmail, input.Email)
	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.authService.DeleteUser(request.Context(), input.Username, input.Email); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}

// # Sessions

/*
Login authenticates a user and establishes a session.

POST /login

Description: Verifies credentials, starts a server-side session and sets the
session cookie. The token is also returned for header-based clients.

Response:
  - 200: {sessionToken, expiresAt, user}
  - 401: INVALID_CREDENTIALS
*/
func (handler *Handler) login(writer http.ResponseWriter, request *http.Request) {
	var input loginRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldUsername, input.Username).Required(FieldPassword, input.Password)
	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	result, err := handler.authService.Login(request.Context(), LoginInput{
		Username: input.Username,
		Password: input.Password,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	http.SetCookie(writer, &http.Cookie{
		Name:     constants.SessionCookieName,
		Value:    result.SessionToken,
		Path:     constants.SessionCookiePath,
		Secure:   handler.secureCookies,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})

	respond.OK(writer, map[string]any{
		FieldSessionToken: result.SessionToken,
		FieldExpiresAt:    result.Session.ExpiresAt,
		FieldUser:         result.User,
	})
}

/*
Logout terminates the current session and clears the cookie.

POST /logout

Response:
  - 200: always, even without a live session
*/
func (handler *Handler) logout(writer http.ResponseWriter, request *http.Request) {
	if err := handler.authService.Logout(request.Context(), middleware.SessionToken(request)); err != nil {
		respond.Error(writer, request, err)
		return
	}

	http.SetCookie(writer, &http.Cookie{
		Name:     constants.SessionCookieName,
		Value:    "",
		Path:     constants.SessionCookiePath,
		MaxAge:   -1,
		Secure:   handler.secureCookies,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})

	respond.Message(writer, "Logged out")
}

/*
CheckExpiration reports whether the presented session is still valid.

GET /api/checkexpiration

A successful check slides the session expiry.

Response:
  - 200: SessionStatus
  - 401: SESSION_EXPIRED
*/
func (handler *Handler) checkExpiration(writer http.ResponseWriter, request *http.Request) {
	token := middleware.SessionToken(request)
	if token == "" {
		respond.Error(writer, request, ErrSessionExpired)
		return
	}

	status, err := handler.authService.CheckSession(request.Context(), token)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, status)
}

// # Activation

/*
IssueActivation issues an activation token and mails the link.

POST /activation

Response:
  - 200: {message, token}
  - 502: NOTIFICATION_FAILURE (the token is stored regardless)
*/
func (handler *Handler) issueActivation(writer http.ResponseWriter, request *http.Request) {
	var input identityRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldUsername, input.Username).
		Required(FieldEmail, input.Email).
		Email(FieldEmail, input.Email)
	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	token, err := handler.authService.IssueActivation(request.Context(), input.Username, input.Email)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]any{
		FieldMessage:   "Activation email sent",
		FieldToken:     token.Token,
		FieldExpiresAt: token.ExpiresAt,
	})
}

/*
ConfirmActivation activates an account through its token.

POST /activate

Response:
  - 200: activated (also when already activated)
  - 400: TOKEN_EXPIRED
  - 404: TOKEN_NOT_FOUND
*/
func (handler *Handler) confirmActivation(writer http.ResponseWriter, request *http.Request) {
	var input tokenRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldToken, input.Token).MaxLen(FieldToken, input.Token, 128)
	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.authService.ConfirmActivation(request.Context(), input.Token); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Message(writer, "Account activated")
}

// # Recovery

// RequestRecovery always answers 200 so the response does not reveal
// whether the email is registered.
func (handler *Handler) requestRecovery(writer http.ResponseWriter, request *http.Request) {
	var input emailRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldEmail, input.Email).Email(FieldEmail, input.Email)
	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.authService.RequestPasswordRecovery(request.Context(), input.Email); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Message(writer, "If the email is registered, a recovery code has been sent")
}

func (handler *Handler) checkRecoveryCode(writer http.ResponseWriter, request *http.Request) {
	var input otpRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldEmail, input.Email)
	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	// A malformed code is answered like a wrong one.
	shape := &validate.Validator{}
	if shape.Digits(FieldOTP, input.OTP, RecoveryCodeDigits).Err() != nil {
		respond.Error(writer, request, ErrInvalidRecoveryCode)
		return
	}

	accepted, err := handler.authService.VerifyRecoveryOtp(request.Context(), input.Email, input.OTP)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	if !accepted {
		respond.Error(writer, request, ErrInvalidRecoveryCode)
		return
	}

	respond.Message(writer, "Code accepted")
}

/*
ResetPassword sets a new password inside the reset window.

POST /updatePassword

Response:
  - 200: password replaced, every session revoked
  - 403: INVALID_RECOVERY_CODE (no open reset window)
  - 404: NOT_FOUND
*/
func (handler *Handler) resetPassword(writer http.ResponseWriter, request *http.Request) {
	var input resetPasswordRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldEmail, input.Email).
		MinLen(FieldNewPassword, input.NewPassword, MinPasswordLength).
		MaxLen(FieldNewPassword, input.NewPassword, 128)
	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.authService.ResetPassword(request.Context(), input.Email, input.NewPassword); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Message(writer, "Password updated")
}

// # Security Material

func (handler *Handler) setSecurityQuestion(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input securityQuestionRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldQuestion, input.Question).
		MaxLen(FieldQuestion, input.Question, 200).
		Required(FieldAnswer, input.Answer).
		MaxLen(FieldAnswer, input.Answer, 100)
	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.authService.SetSecurityQuestion(request.Context(), userID, input.Question, input.Answer); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}

func (handler *Handler) checkSecurityAnswer(writer http.ResponseWriter, request *http.Request) {
	var input securityAnswerRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldEmail, input.Email).Required(FieldAnswer, input.Answer)
	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	matched, err := handler.authService.CheckSecurityAnswer(request.Context(), input.Email, input.Answer)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	if !matched {
		respond.Error(writer, request, ErrSecurityAnswerMismatch)
		return
	}

	respond.Message(writer, "Answer accepted")
}

func (handler *Handler) setTransactionPin(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input pinRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	validator.Digits(FieldPin, input.Pin, TransactionPinDigits)
	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.authService.SetTransactionPin(request.Context(), userID, input.Pin); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}
