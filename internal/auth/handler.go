package auth

import (
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/redmonkez12/propertyhub-identity/internal/httputil"
	"github.com/redmonkez12/propertyhub-identity/internal/identity"
	"github.com/redmonkez12/propertyhub-identity/internal/logging"
	"github.com/redmonkez12/propertyhub-identity/internal/ratelimit"
)

// Handler contains HTTP handlers for identity endpoints
type Handler struct {
	service     *Service
	rateLimiter ratelimit.Limiter
}

func NewHandler(service *Service, rateLimiter ratelimit.Limiter) *Handler {
	return &Handler{
		service:     service,
		rateLimiter: rateLimiter,
	}
}

// RegisterRequest represents the registration request body
type RegisterRequest struct {
	Name           string `json:"name"`
	Email          string `json:"email"`
	Password       string `json:"password"`
	Phone          string `json:"phone"`
	IsSeller       bool   `json:"isSeller"`
	CompanyName    string `json:"companyName"`
	RegistrationID string `json:"registrationId"`
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// GoogleRequest carries the ID token returned by Google Identity Services
type GoogleRequest struct {
	Credential string `json:"credential"`
}

// VerifyPhoneOTPRequest represents the phone code submission
type VerifyPhoneOTPRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

// EmailRequest is the body of the resend and forgot-password endpoints
type EmailRequest struct {
	Email string `json:"email"`
}

// ResetPasswordRequest represents the password reset confirmation
type ResetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// RegisterResponse represents the registration response
type RegisterResponse struct {
	User     identity.Profile `json:"user"`
	Message  string           `json:"message"`
	Warnings []Warning        `json:"warnings,omitempty"`
}

// SessionResponse is returned whenever the caller is signed in
type SessionResponse struct {
	Token         string           `json:"token"`
	ExpiresAt     time.Time        `json:"expiresAt"`
	User          identity.Profile `json:"user"`
	EmailVerified bool             `json:"emailVerified"`
	PhoneVerified bool             `json:"phoneVerified"`
}

// GoogleResponse is a SessionResponse that also tells whether the account is new
type GoogleResponse struct {
	SessionResponse
	Created bool `json:"created"`
}

// ProfileResponse is returned by the session check endpoint
type ProfileResponse struct {
	User identity.Profile `json:"user"`
}

// NoticeResponse is the generic answer of the endpoints keyed by email. It
// reads the same whether or not the address is registered.
type NoticeResponse struct {
	Message string `json:"message"`
}

func newSessionResponse(result *AuthResult) SessionResponse {
	return SessionResponse{
		Token:         result.Session.Token,
		ExpiresAt:     result.Session.ExpiresAt,
		User:          result.Identity.Profile(),
		EmailVerified: result.Identity.EmailVerified,
		PhoneVerified: result.Identity.PhoneVerified,
	}
}

// Register handles account creation
// @Summary      Register a new user
// @Description  Create an account. A verification link is emailed and a 6-digit code is texted; delivery problems come back as warnings.
// @Tags         identity
// @Accept       json
// @Produce      json
// @Param        request body RegisterRequest true "Registration details"
// @Success      201 {object} RegisterResponse
// @Failure      400 {object} httputil.ErrorResponse "Invalid request or validation error"
// @Failure      409 {object} httputil.ErrorResponse "Email already exists"
// @Failure      429 {object} httputil.ErrorResponse "Too many requests"
// @Failure      500 {object} httputil.ErrorResponse "Internal server error"
// @Router       /register [post]
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	if !h.allowRequest(w, r, logger, "register") {
		return
	}

	var req RegisterRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		logger.Warn("invalid registration request body", "error", err.Error())
		respondError(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	logger = logger.WithFields(map[string]any{"email": identity.NormalizeEmail(req.Email)})

	result, err := h.service.Register(r.Context(), RegisterInput{
		Name:           req.Name,
		Email:          req.Email,
		Password:       req.Password,
		Phone:          req.Phone,
		IsSeller:       req.IsSeller,
		CompanyName:    req.CompanyName,
		RegistrationID: req.RegistrationID,
	})
	if err != nil {
		if errors.Is(err, identity.ErrDuplicateEmail) {
			logger.Warn("registration failed: email already exists")
			respondError(w, "email already exists", httputil.CodeEmailAlreadyExists, http.StatusConflict)
			return
		}
		if code, ok := validationCode(err); ok {
			logger.Warn("registration failed: validation error", "error", err.Error())
			respondError(w, err.Error(), code, http.StatusBadRequest)
			return
		}
		logger.Error("registration failed: internal error", "error", err.Error())
		respondError(w, "failed to register user", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	logger.Info("user registered successfully", "user_id", result.Identity.ID, "warnings", len(result.Warnings))

	respondJSON(w, RegisterResponse{
		User:     result.Identity.Profile(),
		Message:  "Registration successful. Please verify your email and phone number.",
		Warnings: result.Warnings,
	}, http.StatusCreated)
}

// Login handles password sign-in
// @Summary      User login
// @Description  Authenticate with email and password. Unverified accounts still sign in; the verification flags are returned so the client can prompt.
// @Tags         identity
// @Accept       json
// @Produce      json
// @Param        request body LoginRequest true "Login credentials"
// @Success      200 {object} SessionResponse
// @Failure      400 {object} httputil.ErrorResponse "Invalid request body"
// @Failure      401 {object} httputil.ErrorResponse "Invalid credentials"
// @Failure      429 {object} httputil.ErrorResponse "Too many requests"
// @Failure      500 {object} httputil.ErrorResponse "Internal server error"
// @Router       /login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	if !h.allowRequest(w, r, logger, "login") {
		return
	}

	var req LoginRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		logger.Warn("invalid login request body", "error", err.Error())
		respondError(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	logger = logger.WithFields(map[string]any{"email": identity.NormalizeEmail(req.Email)})

	result, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			logger.Warn("login failed: invalid credentials")
			respondError(w, "invalid email or password", httputil.CodeInvalidCredentials, http.StatusUnauthorized)
			return
		}
		logger.Error("login failed: internal error", "error", err.Error())
		respondError(w, "failed to login", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	logger.Info("user logged in successfully",
		"user_id", result.Identity.ID,
		"email_verified", result.Identity.EmailVerified,
		"phone_verified", result.Identity.PhoneVerified,
	)

	respondJSON(w, newSessionResponse(result), http.StatusOK)
}

// Google handles federated sign-in with a Google ID token
// @Summary      Sign in with Google
// @Description  Verify a Google ID token, then sign in, link by email or create the account.
// @Tags         identity
// @Accept       json
// @Produce      json
// @Param        request body GoogleRequest true "Google ID token"
// @Success      200 {object} GoogleResponse
// @Failure      400 {object} httputil.ErrorResponse "Missing credential"
// @Failure      401 {object} httputil.ErrorResponse "Invalid assertion"
// @Failure      409 {object} httputil.ErrorResponse "Email linked to another Google account"
// @Failure      503 {object} httputil.ErrorResponse "Google sign-in not configured"
// @Router       /google [post]
func (h *Handler) Google(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	if !h.allowRequest(w, r, logger, "google") {
		return
	}

	var req GoogleRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		logger.Warn("invalid google sign-in request body", "error", err.Error())
		respondError(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}
	if req.Credential == "" {
		respondError(w, "credential is required", httputil.CodeAssertionRequired, http.StatusBadRequest)
		return
	}

	result, err := h.service.SignInFederated(r.Context(), req.Credential)
	if err != nil {
		if errors.Is(err, ErrFederatedDisabled) {
			logger.Warn("google sign-in attempted but not configured")
			respondError(w, "google sign-in is not available", httputil.CodeFederatedDisabled, http.StatusServiceUnavailable)
			return
		}
		if errors.Is(err, ErrInvalidAssertion) {
			respondError(w, "invalid google credential", httputil.CodeInvalidAssertion, http.StatusUnauthorized)
			return
		}
		if errors.Is(err, identity.ErrFederatedConflict) {
			logger.Warn("google sign-in failed: federated conflict")
			respondError(w, "this email is already linked to a different google account", httputil.CodeFederatedConflict, http.StatusConflict)
			return
		}
		logger.Error("google sign-in failed: internal error", "error", err.Error())
		respondError(w, "failed to sign in with google", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	logger.Info("google sign-in succeeded", "user_id", result.Identity.ID, "created", result.Created)

	respondJSON(w, GoogleResponse{SessionResponse: newSessionResponse(result), Created: result.Created}, http.StatusOK)
}

// Verify returns the profile behind the bearer token
// @Summary      Check session
// @Description  Validate the session token and return the current profile
// @Tags         identity
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} ProfileResponse
// @Failure      401 {object} httputil.ErrorResponse "Missing, invalid or expired token"
// @Failure      404 {object} httputil.ErrorResponse "User not found"
// @Router       /verify [get]
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		respondError(w, "missing authentication", httputil.CodeMissingAuth, http.StatusUnauthorized)
		return
	}
	respondJSON(w, ProfileResponse{User: principal.Profile}, http.StatusOK)
}

// VerifyEmail handles the link sent by email
// @Summary      Verify email address
// @Description  Consume an email verification token and sign the user in
// @Tags         identity
// @Produce      json
// @Param        token path string true "Verification token"
// @Success      200 {object} SessionResponse
// @Failure      400 {object} httputil.ErrorResponse "Invalid, expired or already used token"
// @Failure      500 {object} httputil.ErrorResponse "Internal server error"
// @Router       /verify-email/{token} [get]
func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	token := chi.URLParam(r, "token")
	if token == "" {
		respondError(w, "verification token required", httputil.CodeVerificationTokenRequired, http.StatusBadRequest)
		return
	}

	result, err := h.service.VerifyEmail(r.Context(), token)
	if err != nil {
		if errors.Is(err, ErrInvalidOrExpiredToken) {
			logger.Warn("email verification failed: invalid or expired token")
			respondError(w, "Invalid or expired verification link. Please request a new one.", httputil.CodeInvalidOrExpiredToken, http.StatusBadRequest)
			return
		}
		logger.Error("email verification failed: internal error", "error", err.Error())
		respondError(w, "failed to verify email", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	logger.Info("email verified successfully", "user_id", result.Identity.ID)

	respondJSON(w, newSessionResponse(result), http.StatusOK)
}

// VerifyPhoneOTP handles the code sent by SMS
// @Summary      Verify phone number
// @Description  Consume the 6-digit phone code and sign the user in
// @Tags         identity
// @Accept       json
// @Produce      json
// @Param        request body VerifyPhoneOTPRequest true "Email and code"
// @Success      200 {object} SessionResponse
// @Failure      400 {object} httputil.ErrorResponse "Invalid or expired code"
// @Failure      404 {object} httputil.ErrorResponse "User not found"
// @Failure      429 {object} httputil.ErrorResponse "Too many requests"
// @Router       /verify-phone-otp [post]
func (h *Handler) VerifyPhoneOTP(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	if !h.allowRequest(w, r, logger, "verify-phone") {
		return
	}

	var req VerifyPhoneOTPRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		logger.Warn("invalid phone verification request body", "error", err.Error())
		respondError(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}
	if req.OTP == "" {
		respondError(w, "verification code required", httputil.CodeOTPRequired, http.StatusBadRequest)
		return
	}

	logger = logger.WithFields(map[string]any{"email": identity.NormalizeEmail(req.Email)})

	result, err := h.service.VerifyPhoneOTP(r.Context(), req.Email, req.OTP)
	if err != nil {
		if errors.Is(err, ErrEmailRequired) {
			respondError(w, err.Error(), httputil.CodeEmailRequired, http.StatusBadRequest)
			return
		}
		if errors.Is(err, identity.ErrNotFound) {
			logger.Warn("phone verification failed: user not found")
			respondError(w, "user not found", httputil.CodeNotFound, http.StatusNotFound)
			return
		}
		if errors.Is(err, ErrInvalidOTP) {
			logger.Warn("phone verification failed: invalid code")
			respondError(w, "invalid or expired verification code", httputil.CodeInvalidOTP, http.StatusBadRequest)
			return
		}
		logger.Error("phone verification failed: internal error", "error", err.Error())
		respondError(w, "failed to verify phone", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	logger.Info("phone verified successfully", "user_id", result.Identity.ID)

	respondJSON(w, newSessionResponse(result), http.StatusOK)
}

// ResendEmailVerification handles resending the verification link
// @Summary      Resend verification email
// @Description  Send a new verification link. Always answers the same way for unknown addresses.
// @Tags         identity
// @Accept       json
// @Produce      json
// @Param        request body EmailRequest true "Email address"
// @Success      200 {object} NoticeResponse
// @Failure      400 {object} httputil.ErrorResponse "Invalid request body"
// @Failure      429 {object} httputil.ErrorResponse "Too many requests"
// @Router       /resend-email-verification [post]
func (h *Handler) ResendEmailVerification(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	if !h.allowRequest(w, r, logger, "resend-email") {
		return
	}

	var req EmailRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		logger.Warn("invalid resend verification request body", "error", err.Error())
		respondError(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	email := identity.NormalizeEmail(req.Email)
	if email == "" {
		respondError(w, ErrEmailRequired.Error(), httputil.CodeEmailRequired, http.StatusBadRequest)
		return
	}
	if !h.allowAddress(w, r, logger, "email-verification:"+email) {
		return
	}

	warnings, err := h.service.ResendEmailVerification(r.Context(), email)
	if err != nil && !errors.Is(err, identity.ErrNotFound) {
		logger.Error("resend verification failed", "error", err.Error())
	}
	logSuppressedWarnings(logger, warnings)

	respondJSON(w, NoticeResponse{
		Message: "If your email is registered and not verified, a new verification link has been sent.",
	}, http.StatusOK)
}

// ResendPhoneOTP handles resending the phone code
// @Summary      Resend phone code
// @Description  Text a new 6-digit code. Always answers the same way for unknown addresses.
// @Tags         identity
// @Accept       json
// @Produce      json
// @Param        request body EmailRequest true "Email address"
// @Success      200 {object} NoticeResponse
// @Failure      400 {object} httputil.ErrorResponse "Invalid request body"
// @Failure      429 {object} httputil.ErrorResponse "Too many requests"
// @Router       /resend-phone-otp [post]
func (h *Handler) ResendPhoneOTP(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	if !h.allowRequest(w, r, logger, "resend-phone") {
		return
	}

	var req EmailRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		logger.Warn("invalid resend phone code request body", "error", err.Error())
		respondError(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	email := identity.NormalizeEmail(req.Email)
	if email == "" {
		respondError(w, ErrEmailRequired.Error(), httputil.CodeEmailRequired, http.StatusBadRequest)
		return
	}
	if !h.allowAddress(w, r, logger, "phone-otp:"+email) {
		return
	}

	warnings, err := h.service.ResendPhoneOTP(r.Context(), email)
	if err != nil && !errors.Is(err, identity.ErrNotFound) {
		logger.Error("resend phone code failed", "error", err.Error())
	}
	logSuppressedWarnings(logger, warnings)

	respondJSON(w, NoticeResponse{
		Message: "If your account has a phone number on file, a new code has been sent.",
	}, http.StatusOK)
}

// ForgotPassword handles password reset requests
// @Summary      Request password reset
// @Description  Send a password reset link to the user's email. Always returns success to prevent email enumeration.
// @Tags         identity
// @Accept       json
// @Produce      json
// @Param        request body EmailRequest true "Email address"
// @Success      200 {object} NoticeResponse
// @Failure      400 {object} httputil.ErrorResponse "Invalid request body"
// @Failure      429 {object} httputil.ErrorResponse "Too many requests"
// @Router       /forgot-password [post]
func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	if !h.allowRequest(w, r, logger, "forgot-password") {
		return
	}

	var req EmailRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		logger.Warn("invalid forgot password request body", "error", err.Error())
		respondError(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	email := identity.NormalizeEmail(req.Email)
	if email == "" {
		respondError(w, ErrEmailRequired.Error(), httputil.CodeEmailRequired, http.StatusBadRequest)
		return
	}
	if !h.allowAddress(w, r, logger, "password-reset:"+email) {
		return
	}

	// Process request (always returns nil for security)
	_ = h.service.RequestPasswordReset(r.Context(), email)

	respondJSON(w, NoticeResponse{
		Message: "If an account exists with that email, a password reset link has been sent.",
	}, http.StatusOK)
}

// ResetPassword handles password reset with token
// @Summary      Reset password
// @Description  Set a new password using the token from the reset email
// @Tags         identity
// @Accept       json
// @Produce      json
// @Param        request body ResetPasswordRequest true "Reset token and new password"
// @Success      200 {object} NoticeResponse
// @Failure      400 {object} httputil.ErrorResponse "Invalid request or token"
// @Failure      429 {object} httputil.ErrorResponse "Too many requests"
// @Failure      500 {object} httputil.ErrorResponse "Internal server error"
// @Router       /reset-password [post]
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	if !h.allowRequest(w, r, logger, "reset-password") {
		return
	}

	var req ResetPasswordRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		logger.Warn("invalid reset password request body", "error", err.Error())
		respondError(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	err := h.service.ResetPassword(r.Context(), req.Token, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidOrExpiredToken) {
			logger.Warn("password reset failed: invalid or expired token")
			respondError(w, "invalid or expired reset token", httputil.CodeInvalidOrExpiredToken, http.StatusBadRequest)
			return
		}
		if code, ok := validationCode(err); ok {
			logger.Warn("password reset failed: validation error", "error", err.Error())
			respondError(w, err.Error(), code, http.StatusBadRequest)
			return
		}
		logger.Error("password reset failed: internal error", "error", err.Error())
		respondError(w, "failed to reset password", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	logger.Info("password reset successfully")

	respondJSON(w, NoticeResponse{
		Message: "Password reset successfully. You can now login with your new password.",
	}, http.StatusOK)
}

// allowRequest applies the per-IP budget for purpose and records the request.
// Limiter errors are logged and the request is let through.
func (h *Handler) allowRequest(w http.ResponseWriter, r *http.Request, logger *logging.Logger, purpose string) bool {
	ip := getClientIP(r)

	exceeded, err := h.rateLimiter.CheckIPRateLimitWithPurpose(r.Context(), ip, purpose)
	if err != nil {
		logger.Error("failed to check IP rate limit", "error", err.Error())
	} else if exceeded {
		logger.Warn("IP rate limit exceeded", "ip", ip, "purpose", purpose)
		respondError(w, "too many requests, please try again later", httputil.CodeTooManyRequests, http.StatusTooManyRequests)
		return false
	}

	if err := h.rateLimiter.RecordIPRequestWithPurpose(r.Context(), ip, purpose); err != nil {
		logger.Error("failed to record IP request", "error", err.Error())
	}
	return true
}

// allowAddress enforces the resend cooldown for key and starts a new one
func (h *Handler) allowAddress(w http.ResponseWriter, r *http.Request, logger *logging.Logger, key string) bool {
	onCooldown, err := h.rateLimiter.CheckCooldown(r.Context(), key)
	if err != nil {
		logger.Error("failed to check cooldown", "error", err.Error())
	} else if onCooldown {
		logger.Warn("address on cooldown", "key", key)
		respondError(w, "please wait before requesting another message", httputil.CodeCooldownActive, http.StatusTooManyRequests)
		return false
	}

	if err := h.rateLimiter.SetCooldown(r.Context(), key); err != nil {
		logger.Error("failed to set cooldown", "error", err.Error())
	}
	return true
}

// logSuppressedWarnings records delivery warnings that cannot be returned
// without revealing that the account exists
func logSuppressedWarnings(logger *logging.Logger, warnings []Warning) {
	for _, w := range warnings {
		logger.Warn("notification warning not returned to caller", "warning", w.Code)
	}
}

// validationCode maps input validation errors to their response code
func validationCode(err error) (string, bool) {
	switch {
	case errors.Is(err, ErrEmailRequired):
		return httputil.CodeEmailRequired, true
	case errors.Is(err, ErrInvalidEmailFormat):
		return httputil.CodeInvalidEmailFormat, true
	case errors.Is(err, ErrPasswordRequired):
		return httputil.CodePasswordRequired, true
	case errors.Is(err, ErrPasswordTooShort):
		return httputil.CodePasswordTooShort, true
	case errors.Is(err, ErrInvalidPhoneFormat):
		return httputil.CodeInvalidPhoneFormat, true
	}
	return "", false
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, data any, statusCode int) {
	httputil.RespondJSON(w, data, statusCode)
}

// respondError sends an error response with a machine-readable code
func respondError(w http.ResponseWriter, message string, code string, statusCode int) {
	httputil.RespondErrorWithCode(w, message, code, statusCode)
}

// getClientIP returns the host part of RemoteAddr. The router's RealIP
// middleware has already rewritten it from proxy headers.
func getClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
