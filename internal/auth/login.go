package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/redmonkez12/propertyhub-identity/internal/identity"
)

// Login authenticates with email and password. Verification state is never a
// gate: the result carries the identity so callers can read both flags and
// prompt for whatever is still missing.
func (s *Service) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = identity.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	existing, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			s.verifyDummyPassword(password)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get identity: %w", err)
	}

	// Federated-only identities have no password to check
	if !existing.HasPassword() {
		s.verifyDummyPassword(password)
		return nil, ErrInvalidCredentials
	}
	if !s.hasher.Verify(existing.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	session, err := s.issueSession(existing)
	if err != nil {
		return nil, err
	}

	s.touchLastLogin(ctx, existing)

	return &AuthResult{Identity: existing, Session: session}, nil
}

// touchLastLogin records the sign-in time. Failing to do so is logged, not
// returned: the credentials were already proven.
func (s *Service) touchLastLogin(ctx context.Context, i *identity.Identity) {
	now := s.now()
	if err := s.store.TouchLastLogin(ctx, i.ID, now); err != nil {
		s.log(ctx).Warn("failed to update last login", "identity_id", i.ID, "error", err)
		return
	}
	i.LastLogin = &now
}
