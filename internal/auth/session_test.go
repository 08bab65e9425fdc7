package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/propertyhub-identity/internal/identity"
)

var sessionTestIdentity = &identity.Identity{
	ID:       uuid.MustParse("6f1c2d3e-4a5b-4c6d-8e7f-9a0b1c2d3e4f"),
	Email:    "seller@x.com",
	IsSeller: true,
}

func newTokenServices(t *testing.T, now func() time.Time) map[string]TokenService {
	t.Helper()

	jwtSvc, err := NewJWTService([]byte(strings.Repeat("j", 32)), 7*24*time.Hour)
	require.NoError(t, err)
	jwtSvc.now = now

	pasetoSvc, err := NewPasetoService([]byte(strings.Repeat("p", 32)), 7*24*time.Hour)
	require.NoError(t, err)
	pasetoSvc.now = now

	return map[string]TokenService{"jwt": jwtSvc, "paseto": pasetoSvc}
}

func TestTokenServicesRoundTrip(t *testing.T) {
	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for name, svc := range newTokenServices(t, func() time.Time { return issued }) {
		t.Run(name, func(t *testing.T) {
			token, expiresAt, err := svc.CreateToken(sessionTestIdentity)
			require.NoError(t, err)
			require.Equal(t, issued.Add(7*24*time.Hour), expiresAt)

			claims, err := svc.VerifyToken(token)
			require.NoError(t, err)
			require.Equal(t, sessionTestIdentity.ID, claims.ID)
			require.Equal(t, "seller@x.com", claims.Email)
			require.True(t, claims.IsSeller)
			require.True(t, claims.ExpiresAt.Equal(expiresAt))
			require.True(t, claims.IssuedAt.Equal(issued))
		})
	}
}

func TestTokenServicesReportExpiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for name, svc := range newTokenServices(t, func() time.Time { return now }) {
		t.Run(name, func(t *testing.T) {
			token, _, err := svc.CreateToken(sessionTestIdentity)
			require.NoError(t, err)

			now = now.Add(7*24*time.Hour + time.Second)
			defer func() { now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }()

			_, err = svc.VerifyToken(token)
			require.ErrorIs(t, err, ErrExpiredToken)
		})
	}
}

func TestTokenServicesRejectTampering(t *testing.T) {
	for name, svc := range newTokenServices(t, time.Now) {
		t.Run(name, func(t *testing.T) {
			token, _, err := svc.CreateToken(sessionTestIdentity)
			require.NoError(t, err)

			_, err = svc.VerifyToken(token[:len(token)-2] + "xx")
			require.ErrorIs(t, err, ErrInvalidToken)

			_, err = svc.VerifyToken("")
			require.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestTokenServicesRejectOtherKeys(t *testing.T) {
	services := newTokenServices(t, time.Now)

	otherJWT, err := NewJWTService([]byte(strings.Repeat("k", 32)), time.Hour)
	require.NoError(t, err)
	token, _, err := otherJWT.CreateToken(sessionTestIdentity)
	require.NoError(t, err)
	_, err = services["jwt"].VerifyToken(token)
	require.ErrorIs(t, err, ErrInvalidToken)

	otherPaseto, err := NewPasetoService([]byte(strings.Repeat("k", 32)), time.Hour)
	require.NoError(t, err)
	token, _, err = otherPaseto.CreateToken(sessionTestIdentity)
	require.NoError(t, err)
	_, err = services["paseto"].VerifyToken(token)
	require.ErrorIs(t, err, ErrInvalidToken)

	// A JWT is not a PASETO and the other way round
	jwtToken, _, err := services["jwt"].CreateToken(sessionTestIdentity)
	require.NoError(t, err)
	_, err = services["paseto"].VerifyToken(jwtToken)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTServiceRejectsNoneAlgorithm(t *testing.T) {
	svc, err := NewJWTService([]byte(strings.Repeat("j", 32)), time.Hour)
	require.NoError(t, err)

	claims := jwt.MapClaims{
		"id":  sessionTestIdentity.ID.String(),
		"iss": sessionIssuer,
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = svc.VerifyToken(unsigned)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewTokenService(t *testing.T) {
	secret := []byte(strings.Repeat("s", 32))

	svc, err := NewTokenService("jwt", secret, nil, time.Hour)
	require.NoError(t, err)
	require.IsType(t, &JWTService{}, svc)

	svc, err = NewTokenService("paseto", nil, secret, time.Hour)
	require.NoError(t, err)
	require.IsType(t, &PasetoService{}, svc)

	_, err = NewTokenService("jwt", []byte("short"), nil, time.Hour)
	require.Error(t, err)

	_, err = NewTokenService("saml", secret, secret, time.Hour)
	require.Error(t, err)
}
