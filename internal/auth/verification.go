package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redmonkez12/propertyhub-identity/internal/identity"
)

// VerifyEmail consumes an email verification token and signs the owner in
func (s *Service) VerifyEmail(ctx context.Context, token string) (*AuthResult, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidOrExpiredToken
	}

	verified, err := s.store.ConsumeEmailVerificationToken(ctx, token, s.issuedAfter(s.policy.EmailTokenTTL))
	if err != nil {
		if errors.Is(err, identity.ErrNoMatch) {
			return nil, ErrInvalidOrExpiredToken
		}
		return nil, fmt.Errorf("failed to consume verification token: %w", err)
	}

	session, err := s.issueSession(verified)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Identity: verified, Session: session}, nil
}

// VerifyPhoneOTP consumes the phone code stored for email and signs the owner in
func (s *Service) VerifyPhoneOTP(ctx context.Context, email, otp string) (*AuthResult, error) {
	email = identity.NormalizeEmail(email)
	otp = strings.TrimSpace(otp)
	if email == "" {
		return nil, ErrEmailRequired
	}
	if otp == "" {
		return nil, ErrInvalidOTP
	}

	verified, err := s.store.ConsumePhoneOTP(ctx, email, otp, s.issuedAfter(s.policy.PhoneOTPTTL))
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return nil, identity.ErrNotFound
		}
		if errors.Is(err, identity.ErrNoMatch) {
			return nil, ErrInvalidOTP
		}
		return nil, fmt.Errorf("failed to consume phone code: %w", err)
	}

	session, err := s.issueSession(verified)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Identity: verified, Session: session}, nil
}

// ResendEmailVerification replaces the outstanding email token and sends it
// again. Already verified addresses are left alone. Returns
// identity.ErrNotFound for an unknown email; callers facing the public
// should not reveal that.
func (s *Service) ResendEmailVerification(ctx context.Context, email string) ([]Warning, error) {
	existing, err := s.store.GetByEmail(ctx, identity.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return nil, identity.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get identity: %w", err)
	}

	if existing.EmailVerified {
		return nil, nil
	}

	token, err := generateRandomToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate verification token: %w", err)
	}
	if err := s.store.SetEmailVerificationToken(ctx, existing.ID, token, s.now()); err != nil {
		return nil, fmt.Errorf("failed to update verification token: %w", err)
	}

	return appendWarning(nil, s.sendVerificationEmail(ctx, existing, token)), nil
}

// ResendPhoneOTP replaces the outstanding phone code and texts it again,
// whether or not the phone is already verified. Identities without a phone
// get an SMS_SKIPPED_NO_PHONE warning and no new code.
func (s *Service) ResendPhoneOTP(ctx context.Context, email string) ([]Warning, error) {
	existing, err := s.store.GetByEmail(ctx, identity.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return nil, identity.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get identity: %w", err)
	}

	if existing.Phone == "" {
		return appendWarning(nil, s.sendPhoneOTP(ctx, existing, "")), nil
	}

	otp, err := generateOTP()
	if err != nil {
		return nil, fmt.Errorf("failed to generate phone code: %w", err)
	}
	if err := s.store.SetPhoneOTP(ctx, existing.ID, otp, s.now()); err != nil {
		return nil, fmt.Errorf("failed to update phone code: %w", err)
	}

	return appendWarning(nil, s.sendPhoneOTP(ctx, existing, otp)), nil
}
