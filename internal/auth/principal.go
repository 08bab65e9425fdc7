package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/redmonkez12/propertyhub-identity/internal/identity"
)

// Principal is the authenticated caller behind a session token
type Principal struct {
	ID        uuid.UUID
	Email     string
	IsSeller  bool
	ExpiresAt time.Time
	Profile   identity.Profile
}

// Authenticate validates a session token and resolves the identity it names.
// Returns ErrExpiredToken, ErrInvalidToken or identity.ErrNotFound.
func (s *Service) Authenticate(ctx context.Context, token string) (Principal, error) {
	claims, err := s.tokens.VerifyToken(token)
	if err != nil {
		return Principal{}, err
	}

	current, err := s.store.GetByID(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return Principal{}, identity.ErrNotFound
		}
		return Principal{}, fmt.Errorf("failed to get identity: %w", err)
	}

	return Principal{
		ID:        current.ID,
		Email:     current.Email,
		IsSeller:  current.IsSeller,
		ExpiresAt: claims.ExpiresAt,
		Profile:   current.Profile(),
	}, nil
}

type principalContextKey struct{}

// WithPrincipal returns a copy of ctx carrying p
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the authenticated caller from the request context
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(Principal)
	return p, ok
}
