package identity

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/propertyhub-identity/internal/database"
)

func newTestIdentity(email string) *Identity {
	return &Identity{Name: "Asha", Email: email, PasswordHash: "hash", Phone: "+911234567890"}
}

// storeBackend builds an empty Store for one subtest
type storeBackend struct {
	name  string
	setup func(t *testing.T) Store
}

// storeBackends always includes the memory store. Postgres runs when
// IDENTITY_TEST_POSTGRES_DSN is set, MongoDB when IDENTITY_TEST_MONGO_URI is set.
func storeBackends() []storeBackend {
	backends := []storeBackend{
		{name: "memory", setup: func(*testing.T) Store { return NewMemoryStore() }},
	}

	if dsn := os.Getenv("IDENTITY_TEST_POSTGRES_DSN"); dsn != "" {
		backends = append(backends, storeBackend{name: "postgres", setup: func(t *testing.T) Store {
			t.Helper()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			db, err := database.OpenPostgres(ctx, dsn)
			if err != nil {
				t.Skipf("cannot connect to Postgres: %v", err)
			}
			t.Cleanup(func() { db.Close() })

			require.NoError(t, database.CreateSchema(ctx, db))
			_, err = db.ExecContext(ctx, "TRUNCATE TABLE identities")
			require.NoError(t, err)
			return NewPostgresStore(db)
		}})
	}

	if uri := os.Getenv("IDENTITY_TEST_MONGO_URI"); uri != "" {
		backends = append(backends, storeBackend{name: "mongo", setup: func(t *testing.T) Store {
			t.Helper()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			client, err := database.OpenMongo(ctx, uri)
			if err != nil {
				t.Skipf("cannot connect to MongoDB: %v", err)
			}
			db := client.Database(fmt.Sprintf("identity_test_%d", time.Now().UnixNano()))
			t.Cleanup(func() {
				_ = db.Drop(context.Background())
				_ = client.Disconnect(context.Background())
			})

			require.NoError(t, database.EnsureMongoIndexes(ctx, db))
			return NewMongoStore(db)
		}})
	}

	return backends
}

func TestStores(t *testing.T) {
	cases := []struct {
		name string
		run  func(t *testing.T, s Store)
	}{
		{"CreateAssignsIDAndRejectsDuplicates", testCreateRejectsDuplicates},
		{"CreateRejectsDuplicateFederatedID", testCreateRejectsDuplicateFederatedID},
		{"EmailTokenSingleUse", testEmailTokenSingleUse},
		{"EmailTokenExpiry", testEmailTokenExpiry},
		{"PhoneOTP", testPhoneOTP},
		{"PhoneOTPExpiry", testPhoneOTPExpiry},
		{"ResetToken", testResetToken},
		{"LinkFederatedID", testLinkFederatedID},
		{"LinkFederatedIDFillsMissingAvatar", testLinkFillsMissingAvatar},
		{"LinkFederatedIDUnknownIdentity", testLinkUnknownIdentity},
		{"TouchLastLogin", testTouchLastLogin},
		{"ConcurrentConsumeSucceedsOnce", testConcurrentConsume},
	}

	for _, backend := range storeBackends() {
		t.Run(backend.name, func(t *testing.T) {
			for _, tc := range cases {
				t.Run(tc.name, func(t *testing.T) {
					tc.run(t, backend.setup(t))
				})
			}
		})
	}
}

func testCreateRejectsDuplicates(t *testing.T, s Store) {
	ctx := context.Background()

	created, err := s.Create(ctx, newTestIdentity("a@x.com"))
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, created.ID)
	require.False(t, created.CreatedAt.IsZero())

	_, err = s.Create(ctx, newTestIdentity("a@x.com"))
	require.ErrorIs(t, err, ErrDuplicateEmail)

	got, err := s.GetByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	require.Equal(t, created.ID, got.ID)

	_, err = s.GetByEmail(ctx, "nobody@x.com")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetByID(ctx, uuid.New())
	require.ErrorIs(t, err, ErrNotFound)
}

func testCreateRejectsDuplicateFederatedID(t *testing.T, s Store) {
	ctx := context.Background()

	first := newTestIdentity("a@x.com")
	first.FederatedID = "google-1"
	_, err := s.Create(ctx, first)
	require.NoError(t, err)

	second := newTestIdentity("b@x.com")
	second.FederatedID = "google-1"
	_, err = s.Create(ctx, second)
	require.ErrorIs(t, err, ErrFederatedConflict)

	// Identities without a subject never collide
	_, err = s.Create(ctx, newTestIdentity("c@x.com"))
	require.NoError(t, err)
	_, err = s.Create(ctx, newTestIdentity("d@x.com"))
	require.NoError(t, err)
}

func testEmailTokenSingleUse(t *testing.T, s Store) {
	ctx := context.Background()

	created, err := s.Create(ctx, newTestIdentity("a@x.com"))
	require.NoError(t, err)
	require.NoError(t, s.SetEmailVerificationToken(ctx, created.ID, "tok", time.Now()))

	got, err := s.ConsumeEmailVerificationToken(ctx, "tok", time.Time{})
	require.NoError(t, err)
	require.True(t, got.EmailVerified)
	require.Empty(t, got.EmailVerificationToken)
	require.Nil(t, got.EmailVerificationSentAt)

	_, err = s.ConsumeEmailVerificationToken(ctx, "tok", time.Time{})
	require.ErrorIs(t, err, ErrNoMatch)
}

func testEmailTokenExpiry(t *testing.T, s Store) {
	ctx := context.Background()

	created, err := s.Create(ctx, newTestIdentity("a@x.com"))
	require.NoError(t, err)

	sentAt := time.Now().Add(-2 * time.Hour)
	require.NoError(t, s.SetEmailVerificationToken(ctx, created.ID, "tok", sentAt))

	_, err = s.ConsumeEmailVerificationToken(ctx, "tok", time.Now().Add(-time.Hour))
	require.ErrorIs(t, err, ErrNoMatch)

	got, err := s.GetByID(ctx, created.ID)
	require.NoError(t, err)
	require.False(t, got.EmailVerified)
	require.Equal(t, "tok", got.EmailVerificationToken)
}

func testPhoneOTP(t *testing.T, s Store) {
	ctx := context.Background()

	created, err := s.Create(ctx, newTestIdentity("a@x.com"))
	require.NoError(t, err)
	require.NoError(t, s.SetPhoneOTP(ctx, created.ID, "123456", time.Now()))

	_, err = s.ConsumePhoneOTP(ctx, "nobody@x.com", "123456", time.Time{})
	require.ErrorIs(t, err, ErrNotFound)

	_, err = s.ConsumePhoneOTP(ctx, "a@x.com", "654321", time.Time{})
	require.ErrorIs(t, err, ErrNoMatch)

	got, err := s.ConsumePhoneOTP(ctx, "a@x.com", "123456", time.Time{})
	require.NoError(t, err)
	require.True(t, got.PhoneVerified)
	require.Empty(t, got.PhoneOTP)

	_, err = s.ConsumePhoneOTP(ctx, "a@x.com", "123456", time.Time{})
	require.ErrorIs(t, err, ErrNoMatch)
}

func testPhoneOTPExpiry(t *testing.T, s Store) {
	ctx := context.Background()

	created, err := s.Create(ctx, newTestIdentity("a@x.com"))
	require.NoError(t, err)
	require.NoError(t, s.SetPhoneOTP(ctx, created.ID, "123456", time.Now().Add(-20*time.Minute)))

	_, err = s.ConsumePhoneOTP(ctx, "a@x.com", "123456", time.Now().Add(-10*time.Minute))
	require.ErrorIs(t, err, ErrNoMatch)

	got, err := s.GetByID(ctx, created.ID)
	require.NoError(t, err)
	require.False(t, got.PhoneVerified)
	require.Equal(t, "123456", got.PhoneOTP)
}

func testResetToken(t *testing.T, s Store) {
	ctx := context.Background()
	now := time.Now()

	created, err := s.Create(ctx, newTestIdentity("a@x.com"))
	require.NoError(t, err)
	require.NoError(t, s.SetResetToken(ctx, created.ID, "digest", now.Add(time.Hour)))

	// After expiry: no match, credential untouched
	_, err = s.ConsumeResetToken(ctx, "digest", now.Add(2*time.Hour), "new-hash")
	require.ErrorIs(t, err, ErrNoMatch)
	got, err := s.GetByID(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, "hash", got.PasswordHash)

	got, err = s.ConsumeResetToken(ctx, "digest", now, "new-hash")
	require.NoError(t, err)
	require.Equal(t, "new-hash", got.PasswordHash)
	require.Empty(t, got.ResetTokenHash)
	require.Nil(t, got.ResetTokenExpiry)

	_, err = s.ConsumeResetToken(ctx, "digest", now, "other-hash")
	require.ErrorIs(t, err, ErrNoMatch)
}

func testLinkFederatedID(t *testing.T, s Store) {
	ctx := context.Background()

	created, err := s.Create(ctx, newTestIdentity("a@x.com"))
	require.NoError(t, err)

	linked, err := s.LinkFederatedID(ctx, created.ID, "google-1", "")
	require.NoError(t, err)
	require.Equal(t, "google-1", linked.FederatedID)
	require.True(t, linked.EmailVerified)

	// Same subject is idempotent
	_, err = s.LinkFederatedID(ctx, created.ID, "google-1", "")
	require.NoError(t, err)

	_, err = s.LinkFederatedID(ctx, created.ID, "google-2", "")
	require.ErrorIs(t, err, ErrFederatedConflict)

	// A subject owned by another identity cannot be attached
	other, err := s.Create(ctx, newTestIdentity("b@x.com"))
	require.NoError(t, err)
	_, err = s.LinkFederatedID(ctx, other.ID, "google-1", "")
	require.ErrorIs(t, err, ErrFederatedConflict)
}

func testLinkFillsMissingAvatar(t *testing.T, s Store) {
	ctx := context.Background()

	bare, err := s.Create(ctx, newTestIdentity("a@x.com"))
	require.NoError(t, err)

	linked, err := s.LinkFederatedID(ctx, bare.ID, "google-1", "https://img.example.com/a.png")
	require.NoError(t, err)
	require.Equal(t, "https://img.example.com/a.png", linked.Avatar)

	withAvatar := newTestIdentity("b@x.com")
	withAvatar.Avatar = "https://cdn.example.com/own.png"
	created, err := s.Create(ctx, withAvatar)
	require.NoError(t, err)

	linked, err = s.LinkFederatedID(ctx, created.ID, "google-2", "https://img.example.com/b.png")
	require.NoError(t, err)
	require.Equal(t, "https://cdn.example.com/own.png", linked.Avatar)

	got, err := s.GetByID(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, "https://cdn.example.com/own.png", got.Avatar)
}

func testLinkUnknownIdentity(t *testing.T, s Store) {
	_, err := s.LinkFederatedID(context.Background(), uuid.New(), "google-1", "")
	require.ErrorIs(t, err, ErrNotFound)
}

func testTouchLastLogin(t *testing.T, s Store) {
	ctx := context.Background()

	created, err := s.Create(ctx, newTestIdentity("a@x.com"))
	require.NoError(t, err)

	at := time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, s.TouchLastLogin(ctx, created.ID, at))

	got, err := s.GetByID(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastLogin)
	require.True(t, at.Equal(*got.LastLogin))

	require.ErrorIs(t, s.TouchLastLogin(ctx, uuid.New(), at), ErrNotFound)
}

func testConcurrentConsume(t *testing.T, s Store) {
	ctx := context.Background()

	created, err := s.Create(ctx, newTestIdentity("a@x.com"))
	require.NoError(t, err)
	require.NoError(t, s.SetEmailVerificationToken(ctx, created.ID, "tok", time.Now()))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.ConsumeEmailVerificationToken(ctx, "tok", time.Time{}); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), wins.Load())
}
