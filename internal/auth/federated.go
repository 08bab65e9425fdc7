package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redmonkez12/propertyhub-identity/internal/identity"
)

// FederatedClaims is what a verified assertion tells us about the caller
type FederatedClaims struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
	Picture       string
}

// AssertionVerifier validates a signed identity assertion from an external
// provider and returns its claims
type AssertionVerifier interface {
	Verify(ctx context.Context, rawAssertion string) (*FederatedClaims, error)
}

// SignInFederated signs in with a provider assertion. An identity already
// holding the subject is signed in. An identity with the same email and no
// subject is linked when linking by email is enabled. Otherwise a new
// identity is provisioned with its email verified and no password.
func (s *Service) SignInFederated(ctx context.Context, assertion string) (*AuthResult, error) {
	if s.federated == nil {
		return nil, ErrFederatedDisabled
	}
	assertion = strings.TrimSpace(assertion)
	if assertion == "" {
		return nil, ErrInvalidAssertion
	}

	claims, err := s.federated.Verify(ctx, assertion)
	if err != nil {
		s.log(ctx).Warn("federated assertion rejected", "error", err)
		return nil, ErrInvalidAssertion
	}

	email := identity.NormalizeEmail(claims.Email)
	if claims.Subject == "" || email == "" || !claims.EmailVerified {
		return nil, ErrInvalidAssertion
	}

	existing, err := s.store.GetByEmail(ctx, email)
	switch {
	case errors.Is(err, identity.ErrNotFound):
		return s.provisionFederated(ctx, claims, email)
	case err != nil:
		return nil, fmt.Errorf("failed to get identity: %w", err)
	}

	linked, err := s.linkFederated(ctx, existing, claims)
	if err != nil {
		return nil, err
	}
	return s.completeFederated(ctx, linked, false)
}

// linkFederated attaches the assertion's subject to an identity found by
// email. The provider picture fills the avatar when none is set.
func (s *Service) linkFederated(ctx context.Context, existing *identity.Identity, claims *FederatedClaims) (*identity.Identity, error) {
	if existing.FederatedID == claims.Subject && (existing.Avatar != "" || claims.Picture == "") {
		return existing, nil
	}
	if existing.FederatedID != "" && existing.FederatedID != claims.Subject {
		return nil, identity.ErrFederatedConflict
	}
	if existing.FederatedID == "" && !s.policy.LinkFederatedByEmail {
		return nil, identity.ErrFederatedConflict
	}

	linked, err := s.store.LinkFederatedID(ctx, existing.ID, claims.Subject, claims.Picture)
	if err != nil {
		if errors.Is(err, identity.ErrFederatedConflict) {
			return nil, identity.ErrFederatedConflict
		}
		return nil, fmt.Errorf("failed to link federated identity: %w", err)
	}
	s.log(ctx).Info("federated identity linked", "identity_id", linked.ID)
	return linked, nil
}

func (s *Service) provisionFederated(ctx context.Context, claims *FederatedClaims, email string) (*AuthResult, error) {
	created, err := s.store.Create(ctx, &identity.Identity{
		Name:          displayNameFor(claims.Name, email),
		Email:         email,
		Avatar:        claims.Picture,
		EmailVerified: true,
		FederatedID:   claims.Subject,
	})
	if err != nil {
		// Lost a race with a concurrent sign-up for the same email
		if errors.Is(err, identity.ErrDuplicateEmail) {
			existing, getErr := s.store.GetByEmail(ctx, email)
			if getErr != nil {
				return nil, fmt.Errorf("failed to get identity: %w", getErr)
			}
			linked, linkErr := s.linkFederated(ctx, existing, claims)
			if linkErr != nil {
				return nil, linkErr
			}
			return s.completeFederated(ctx, linked, false)
		}
		if errors.Is(err, identity.ErrFederatedConflict) {
			return nil, identity.ErrFederatedConflict
		}
		return nil, fmt.Errorf("failed to create identity: %w", err)
	}
	return s.completeFederated(ctx, created, true)
}

func (s *Service) completeFederated(ctx context.Context, i *identity.Identity, created bool) (*AuthResult, error) {
	session, err := s.issueSession(i)
	if err != nil {
		return nil, err
	}
	s.touchLastLogin(ctx, i)
	return &AuthResult{Identity: i, Session: session, Created: created}, nil
}
