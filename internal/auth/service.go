package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/redmonkez12/propertyhub-identity/internal/identity"
	"github.com/redmonkez12/propertyhub-identity/internal/logging"
)

var (
	ErrInvalidCredentials    = errors.New("invalid email or password")
	ErrEmailRequired         = errors.New("email is required")
	ErrInvalidEmailFormat    = errors.New("invalid email format")
	ErrPasswordRequired      = errors.New("password is required")
	ErrPasswordTooShort      = errors.New("password must be at least 8 characters")
	ErrInvalidPhoneFormat    = errors.New("phone must be in international format, e.g. +911234567890")
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")
	ErrInvalidOTP            = errors.New("invalid or expired verification code")
	ErrInvalidAssertion      = errors.New("invalid federated identity assertion")
	ErrFederatedDisabled     = errors.New("federated sign-in is not configured")
)

const minPasswordLength = 8

var phonePattern = regexp.MustCompile(`^\+[0-9]{8,15}$`)

// Warning codes attached to responses when a notification could not be sent
const (
	WarningEmailDeliveryFailed = "EMAIL_DELIVERY_FAILED"
	WarningSMSDeliveryFailed   = "SMS_DELIVERY_FAILED"
	WarningSMSSkippedNoPhone   = "SMS_SKIPPED_NO_PHONE"
)

// Warning is a non-fatal problem the caller should surface to the user
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Mailer delivers verification and reset links
type Mailer interface {
	SendVerificationEmail(ctx context.Context, toEmail, name, token string) error
	SendPasswordResetEmail(ctx context.Context, toEmail, token string) error
}

// OTPSender delivers one-time codes to a phone
type OTPSender interface {
	SendOTP(ctx context.Context, phone, code string) error
}

// Policy holds the lifetimes and switches the service runs with.
// A zero EmailTokenTTL or PhoneOTPTTL disables expiry for that artifact.
// Reset tokens always expire.
type Policy struct {
	EmailTokenTTL        time.Duration
	PhoneOTPTTL          time.Duration
	ResetTokenTTL        time.Duration
	NotifyTimeout        time.Duration
	LinkFederatedByEmail bool
}

// Session is a freshly minted session token
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// AuthResult is returned by every operation that signs the caller in
type AuthResult struct {
	Identity *identity.Identity
	Session  Session
	// Created is set when federated sign-in provisioned a new identity
	Created bool
}

// Service handles identity and verification business logic
type Service struct {
	store     identity.Store
	hasher    PasswordHasher
	tokens    TokenService
	mailer    Mailer
	otpSender OTPSender
	federated AssertionVerifier
	policy    Policy
	logger    *logging.Logger
	now       func() time.Time

	dummyHashOnce sync.Once
	dummyHash     string
}

// NewService wires the service. federated may be nil, in which case federated
// sign-in answers ErrFederatedDisabled.
func NewService(
	store identity.Store,
	hasher PasswordHasher,
	tokens TokenService,
	mailer Mailer,
	otpSender OTPSender,
	federated AssertionVerifier,
	policy Policy,
	logger *logging.Logger,
) *Service {
	if policy.NotifyTimeout <= 0 {
		policy.NotifyTimeout = 10 * time.Second
	}
	return &Service{
		store:     store,
		hasher:    hasher,
		tokens:    tokens,
		mailer:    mailer,
		otpSender: otpSender,
		federated: federated,
		policy:    policy,
		logger:    logger,
		now:       time.Now,
	}
}

// FederatedEnabled reports whether a federated assertion verifier is configured
func (s *Service) FederatedEnabled() bool {
	return s.federated != nil
}

func (s *Service) log(ctx context.Context) *logging.Logger {
	if logger, ok := logging.FromContext(ctx); ok {
		return logger
	}
	return s.logger
}

func (s *Service) issueSession(i *identity.Identity) (Session, error) {
	token, expiresAt, err := s.tokens.CreateToken(i)
	if err != nil {
		return Session{}, fmt.Errorf("failed to create session token: %w", err)
	}
	return Session{Token: token, ExpiresAt: expiresAt}, nil
}

// issuedAfter returns the oldest acceptable issue time for an artifact with
// the given lifetime, or the zero time when the lifetime is unbounded.
func (s *Service) issuedAfter(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return s.now().Add(-ttl)
}

// notify runs send with its own deadline. The request context only
// contributes values, so a client hanging up does not abort delivery.
func (s *Service) notify(ctx context.Context, code, message string, send func(ctx context.Context) error) *Warning {
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.policy.NotifyTimeout)
	defer cancel()

	if err := send(sendCtx); err != nil {
		s.log(ctx).Warn("notification delivery failed", "warning", code, "error", err)
		return &Warning{Code: code, Message: message}
	}
	return nil
}

func (s *Service) sendVerificationEmail(ctx context.Context, i *identity.Identity, token string) *Warning {
	return s.notify(ctx, WarningEmailDeliveryFailed,
		"We could not send the verification email. Please request a new one.",
		func(ctx context.Context) error {
			return s.mailer.SendVerificationEmail(ctx, i.Email, i.Name, token)
		})
}

func (s *Service) sendPhoneOTP(ctx context.Context, i *identity.Identity, code string) *Warning {
	if i.Phone == "" {
		return &Warning{Code: WarningSMSSkippedNoPhone, Message: "No phone number is on file, so no verification code was sent."}
	}
	return s.notify(ctx, WarningSMSDeliveryFailed,
		"We could not send the verification code. Please request a new one.",
		func(ctx context.Context) error {
			return s.otpSender.SendOTP(ctx, i.Phone, code)
		})
}

// verifyDummyPassword spends the same hashing work as a real check so that
// unknown emails and wrong passwords take comparable time.
func (s *Service) verifyDummyPassword(password string) {
	s.dummyHashOnce.Do(func() {
		hash, err := s.hasher.Hash("propertyhub-dummy-password")
		if err == nil {
			s.dummyHash = hash
		}
	})
	if s.dummyHash != "" {
		s.hasher.Verify(s.dummyHash, password)
	}
}

func validateEmail(email string) error {
	if email == "" {
		return ErrEmailRequired
	}
	if len(email) > 254 {
		return ErrInvalidEmailFormat
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return ErrInvalidEmailFormat
	}
	return nil
}

func validatePassword(password string) error {
	if password == "" {
		return ErrPasswordRequired
	}
	if len(password) < minPasswordLength {
		return ErrPasswordTooShort
	}
	return nil
}

func validatePhone(phone string) error {
	if phone != "" && !phonePattern.MatchString(phone) {
		return ErrInvalidPhoneFormat
	}
	return nil
}

func displayNameFor(name, email string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	local, _, _ := strings.Cut(email, "@")
	return local
}

func appendWarning(warnings []Warning, w *Warning) []Warning {
	if w == nil {
		return warnings
	}
	return append(warnings, *w)
}
