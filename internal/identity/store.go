package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound          = errors.New("identity not found")
	ErrDuplicateEmail    = errors.New("email already exists")
	ErrNoMatch           = errors.New("no identity matches the presented artifact")
	ErrFederatedConflict = errors.New("identity is linked to a different federated subject")
)

// Store persists identities. Every Consume* method is a single conditional
// update: it matches the artifact and clears it in one operation, so a value
// can be consumed at most once even under concurrent requests.
type Store interface {
	// Create inserts a new identity, assigning ID and timestamps.
	// Returns ErrDuplicateEmail if the email is taken.
	Create(ctx context.Context, i *Identity) (*Identity, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Identity, error)
	GetByEmail(ctx context.Context, email string) (*Identity, error)

	// SetEmailVerificationToken overwrites any outstanding email token.
	SetEmailVerificationToken(ctx context.Context, id uuid.UUID, token string, sentAt time.Time) error
	// ConsumeEmailVerificationToken marks the email verified for the identity
	// holding token, provided it was issued after issuedAfter (zero disables
	// the check). Returns ErrNoMatch otherwise.
	ConsumeEmailVerificationToken(ctx context.Context, token string, issuedAfter time.Time) (*Identity, error)

	// SetPhoneOTP overwrites any outstanding phone code.
	SetPhoneOTP(ctx context.Context, id uuid.UUID, otp string, sentAt time.Time) error
	// ConsumePhoneOTP marks the phone verified when otp matches the code stored
	// for email. Returns ErrNotFound for an unknown email, ErrNoMatch for a
	// wrong, consumed or expired code.
	ConsumePhoneOTP(ctx context.Context, email, otp string, issuedAfter time.Time) (*Identity, error)

	// SetResetToken replaces any outstanding reset request.
	SetResetToken(ctx context.Context, id uuid.UUID, tokenHash string, expiresAt time.Time) error
	// ConsumeResetToken replaces the password hash of the identity holding
	// tokenHash whose expiry is after now, clearing both reset fields.
	// Returns ErrNoMatch otherwise, leaving every credential untouched.
	ConsumeResetToken(ctx context.Context, tokenHash string, now time.Time, passwordHash string) (*Identity, error)

	// LinkFederatedID attaches federatedID and marks the email verified. A
	// non-empty avatar is stored only when the identity has none yet.
	// Returns ErrFederatedConflict if a different subject is already attached.
	LinkFederatedID(ctx context.Context, id uuid.UUID, federatedID, avatar string) (*Identity, error)
	TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
}

// NormalizeEmail trims and lower-cases an address before any store access
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func prepareNew(i *Identity, now time.Time) *Identity {
	c := i.clone()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.CreatedAt = now
	c.UpdatedAt = now
	return c
}
