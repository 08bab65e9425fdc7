package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redmonkez12/propertyhub-identity/internal/identity"
)

// RegisterInput is the data collected by the sign-up form
type RegisterInput struct {
	Name           string
	Email          string
	Password       string
	Phone          string
	IsSeller       bool
	CompanyName    string
	RegistrationID string
}

// RegistrationResult carries the new identity and any delivery warnings
type RegistrationResult struct {
	Identity *identity.Identity
	Warnings []Warning
}

// Register creates a new identity with both channels unverified, then sends
// the email link and the phone code. Delivery failures do not undo the
// registration; they come back as warnings.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*RegistrationResult, error) {
	email := identity.NormalizeEmail(in.Email)
	phone := strings.TrimSpace(in.Phone)

	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword(in.Password); err != nil {
		return nil, err
	}
	if err := validatePhone(phone); err != nil {
		return nil, err
	}

	passwordHash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	emailToken, err := generateRandomToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate verification token: %w", err)
	}
	otp, err := generateOTP()
	if err != nil {
		return nil, fmt.Errorf("failed to generate phone code: %w", err)
	}

	now := s.now()
	created, err := s.store.Create(ctx, &identity.Identity{
		Name:                    displayNameFor(in.Name, email),
		Email:                   email,
		PasswordHash:            passwordHash,
		Phone:                   phone,
		IsSeller:                in.IsSeller,
		CompanyName:             strings.TrimSpace(in.CompanyName),
		RegistrationID:          strings.TrimSpace(in.RegistrationID),
		EmailVerificationToken:  emailToken,
		EmailVerificationSentAt: &now,
		PhoneOTP:                otp,
		PhoneOTPSentAt:          &now,
	})
	if err != nil {
		if errors.Is(err, identity.ErrDuplicateEmail) {
			return nil, identity.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("failed to create identity: %w", err)
	}

	var warnings []Warning
	warnings = appendWarning(warnings, s.sendVerificationEmail(ctx, created, emailToken))
	warnings = appendWarning(warnings, s.sendPhoneOTP(ctx, created, otp))

	return &RegistrationResult{Identity: created, Warnings: warnings}, nil
}
