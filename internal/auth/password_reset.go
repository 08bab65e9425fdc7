package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redmonkez12/propertyhub-identity/internal/identity"
)

// RequestPasswordReset initiates the password reset process.
// Always returns nil to prevent email enumeration attacks; problems are logged.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	logger := s.log(ctx)

	existing, err := s.store.GetByEmail(ctx, identity.NormalizeEmail(email))
	if err != nil {
		if !errors.Is(err, identity.ErrNotFound) {
			logger.Warn("failed to get identity for password reset", "error", err)
		}
		return nil
	}

	token, err := generateRandomToken()
	if err != nil {
		logger.Warn("failed to generate password reset token", "error", err)
		return nil
	}

	// Only the digest is stored; the raw token exists in the email alone
	expiresAt := s.now().Add(s.policy.ResetTokenTTL)
	if err := s.store.SetResetToken(ctx, existing.ID, hashToken(token), expiresAt); err != nil {
		logger.Warn("failed to store password reset token", "error", err)
		return nil
	}

	s.notify(ctx, WarningEmailDeliveryFailed, "password reset email not delivered", func(ctx context.Context) error {
		return s.mailer.SendPasswordResetEmail(ctx, existing.Email, token)
	})

	return nil
}

// ResetPassword replaces the password of the identity holding an unexpired
// reset token. The token is cleared in the same write.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrInvalidOrExpiredToken
	}

	passwordHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if _, err := s.store.ConsumeResetToken(ctx, hashToken(token), s.now(), passwordHash); err != nil {
		if errors.Is(err, identity.ErrNoMatch) {
			return ErrInvalidOrExpiredToken
		}
		return fmt.Errorf("failed to reset password: %w", err)
	}

	return nil
}
