package auth

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const testGoogleClientID = "1234.apps.googleusercontent.com"

func signGoogleToken(t *testing.T, key *rsa.PrivateKey, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func googleClaims(now time.Time) jwt.MapClaims {
	return jwt.MapClaims{
		"iss":            googleIssuer,
		"aud":            testGoogleClientID,
		"sub":            "110248495921238986420",
		"email":          "gita@example.com",
		"email_verified": true,
		"name":           "Gita",
		"picture":        "https://lh3.googleusercontent.com/a/photo",
		"iat":            now.Unix(),
		"exp":            now.Add(time.Hour).Unix(),
	}
}

func newTestGoogleVerifier(t *testing.T, now time.Time) (*GoogleVerifier, *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	keySet := &oidc.StaticKeySet{PublicKeys: []crypto.PublicKey{key.Public()}}
	return newGoogleVerifierWithKeySet(keySet, testGoogleClientID, func() time.Time { return now }), key
}

func TestGoogleVerifierAcceptsValidToken(t *testing.T) {
	now := time.Now()
	verifier, key := newTestGoogleVerifier(t, now)

	claims, err := verifier.Verify(context.Background(), signGoogleToken(t, key, googleClaims(now)))
	require.NoError(t, err)
	require.Equal(t, &FederatedClaims{
		Subject:       "110248495921238986420",
		Email:         "gita@example.com",
		EmailVerified: true,
		Name:          "Gita",
		Picture:       "https://lh3.googleusercontent.com/a/photo",
	}, claims)
}

func TestGoogleVerifierRejectsInvalidTokens(t *testing.T) {
	now := time.Now()
	verifier, key := newTestGoogleVerifier(t, now)

	otherKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token func() string
	}{
		{"wrong audience", func() string {
			c := googleClaims(now)
			c["aud"] = "someone-else.apps.googleusercontent.com"
			return signGoogleToken(t, key, c)
		}},
		{"wrong issuer", func() string {
			c := googleClaims(now)
			c["iss"] = "https://evil.example.com"
			return signGoogleToken(t, key, c)
		}},
		{"expired", func() string {
			c := googleClaims(now.Add(-2 * time.Hour))
			return signGoogleToken(t, key, c)
		}},
		{"unknown signer", func() string {
			return signGoogleToken(t, otherKey, googleClaims(now))
		}},
		{"missing email", func() string {
			c := googleClaims(now)
			delete(c, "email")
			return signGoogleToken(t, key, c)
		}},
		{"garbage", func() string { return "not-a-jwt" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := verifier.Verify(context.Background(), tt.token())
			require.Error(t, err)
		})
	}
}

func TestGoogleVerifierPassesUnverifiedEmailThrough(t *testing.T) {
	now := time.Now()
	verifier, key := newTestGoogleVerifier(t, now)

	c := googleClaims(now)
	c["email_verified"] = false

	claims, err := verifier.Verify(context.Background(), signGoogleToken(t, key, c))
	require.NoError(t, err)
	require.False(t, claims.EmailVerified)
}
