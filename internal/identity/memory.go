package identity

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps identities in process memory. Used for local development
// and tests; every method holds the lock for its whole read-modify-write.
type MemoryStore struct {
	mu      sync.Mutex
	byID    map[uuid.UUID]*Identity
	byEmail map[string]uuid.UUID
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:    make(map[uuid.UUID]*Identity),
		byEmail: make(map[string]uuid.UUID),
		now:     time.Now,
	}
}

func (s *MemoryStore) Create(_ context.Context, i *Identity) (*Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byEmail[i.Email]; exists {
		return nil, ErrDuplicateEmail
	}
	if i.FederatedID != "" && s.findLocked(func(x *Identity) bool { return x.FederatedID == i.FederatedID }) != nil {
		return nil, ErrFederatedConflict
	}

	created := prepareNew(i, s.now())
	s.byID[created.ID] = created
	s.byEmail[created.Email] = created.ID

	return created.clone(), nil
}

func (s *MemoryStore) GetByID(_ context.Context, id uuid.UUID) (*Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return i.clone(), nil
}

func (s *MemoryStore) GetByEmail(_ context.Context, email string) (*Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byEmail[email]
	if !ok {
		return nil, ErrNotFound
	}
	return s.byID[id].clone(), nil
}

func (s *MemoryStore) SetEmailVerificationToken(_ context.Context, id uuid.UUID, token string, sentAt time.Time) error {
	return s.update(id, func(i *Identity) {
		i.EmailVerificationToken = token
		i.EmailVerificationSentAt = &sentAt
	})
}

func (s *MemoryStore) ConsumeEmailVerificationToken(_ context.Context, token string, issuedAfter time.Time) (*Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.findLocked(func(x *Identity) bool {
		return token != "" && x.EmailVerificationToken == token && issuedAfterCutoff(x.EmailVerificationSentAt, issuedAfter)
	})
	if i == nil {
		return nil, ErrNoMatch
	}

	i.EmailVerified = true
	i.EmailVerificationToken = ""
	i.EmailVerificationSentAt = nil
	i.UpdatedAt = s.now()

	return i.clone(), nil
}

func (s *MemoryStore) SetPhoneOTP(_ context.Context, id uuid.UUID, otp string, sentAt time.Time) error {
	return s.update(id, func(i *Identity) {
		i.PhoneOTP = otp
		i.PhoneOTPSentAt = &sentAt
	})
}

func (s *MemoryStore) ConsumePhoneOTP(_ context.Context, email, otp string, issuedAfter time.Time) (*Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byEmail[email]
	if !ok {
		return nil, ErrNotFound
	}
	i := s.byID[id]
	if otp == "" || i.PhoneOTP != otp || !issuedAfterCutoff(i.PhoneOTPSentAt, issuedAfter) {
		return nil, ErrNoMatch
	}

	i.PhoneVerified = true
	i.PhoneOTP = ""
	i.PhoneOTPSentAt = nil
	i.UpdatedAt = s.now()

	return i.clone(), nil
}

func (s *MemoryStore) SetResetToken(_ context.Context, id uuid.UUID, tokenHash string, expiresAt time.Time) error {
	return s.update(id, func(i *Identity) {
		i.ResetTokenHash = tokenHash
		i.ResetTokenExpiry = &expiresAt
	})
}

func (s *MemoryStore) ConsumeResetToken(_ context.Context, tokenHash string, now time.Time, passwordHash string) (*Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.findLocked(func(x *Identity) bool {
		return tokenHash != "" && x.ResetTokenHash == tokenHash && x.ResetTokenExpiry != nil && x.ResetTokenExpiry.After(now)
	})
	if i == nil {
		return nil, ErrNoMatch
	}

	i.PasswordHash = passwordHash
	i.ResetTokenHash = ""
	i.ResetTokenExpiry = nil
	i.UpdatedAt = s.now()

	return i.clone(), nil
}

func (s *MemoryStore) LinkFederatedID(_ context.Context, id uuid.UUID, federatedID, avatar string) (*Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	if i.FederatedID != "" && i.FederatedID != federatedID {
		return nil, ErrFederatedConflict
	}
	if other := s.findLocked(func(x *Identity) bool { return x.FederatedID == federatedID }); other != nil && other.ID != id {
		return nil, ErrFederatedConflict
	}

	i.FederatedID = federatedID
	i.EmailVerified = true
	if i.Avatar == "" {
		i.Avatar = avatar
	}
	i.UpdatedAt = s.now()

	return i.clone(), nil
}

func (s *MemoryStore) TouchLastLogin(_ context.Context, id uuid.UUID, at time.Time) error {
	return s.update(id, func(i *Identity) {
		i.LastLogin = &at
	})
}

func (s *MemoryStore) update(id uuid.UUID, fn func(*Identity)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	fn(i)
	i.UpdatedAt = s.now()
	return nil
}

func (s *MemoryStore) findLocked(match func(*Identity) bool) *Identity {
	for _, i := range s.byID {
		if match(i) {
			return i
		}
	}
	return nil
}

// issuedAfterCutoff reports whether sentAt is strictly after cutoff.
// A zero cutoff disables expiry.
func issuedAfterCutoff(sentAt *time.Time, cutoff time.Time) bool {
	if cutoff.IsZero() {
		return true
	}
	return sentAt != nil && sentAt.After(cutoff)
}
