package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/redmonkez12/propertyhub-identity/internal/identity"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

const sessionIssuer = "propertyhub"

// SessionClaims is the signed session claim {id, email, isSeller, exp}
type SessionClaims struct {
	ID        uuid.UUID
	Email     string
	IsSeller  bool
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenService mints and validates session tokens.
// Implementations are JWTService (HS256) and PasetoService (v4.local).
type TokenService interface {
	CreateToken(i *identity.Identity) (token string, expiresAt time.Time, err error)
	// VerifyToken returns ErrExpiredToken for a well-formed but expired token
	// and ErrInvalidToken for anything else that fails validation.
	VerifyToken(tokenStr string) (*SessionClaims, error)
}

// jwtClaims is the JWT payload
type jwtClaims struct {
	UserID   string `json:"id"`
	Email    string `json:"email"`
	IsSeller bool   `json:"isSeller"`
	jwt.RegisteredClaims
}

// JWTService signs session claims with HS256
type JWTService struct {
	secretKey []byte
	ttl       time.Duration
	now       func() time.Time
}

func NewJWTService(secretKey []byte, ttl time.Duration) (*JWTService, error) {
	if len(secretKey) < 32 {
		return nil, fmt.Errorf("secret key must be at least 32 bytes, got %d", len(secretKey))
	}
	return &JWTService{secretKey: secretKey, ttl: ttl, now: time.Now}, nil
}

// CreateToken generates a signed JWT for the identity
func (j *JWTService) CreateToken(i *identity.Identity) (string, time.Time, error) {
	now := j.now()
	expiresAt := now.Add(j.ttl)

	claims := jwtClaims{
		UserID:   i.ID.String(),
		Email:    i.Email,
		IsSeller: i.IsSeller,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    sessionIssuer,
			Subject:   i.ID.String(),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secretKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, expiresAt, nil
}

// VerifyToken validates signature and expiry and returns the claims
func (j *JWTService) VerifyToken(tokenStr string) (*SessionClaims, error) {
	claims := &jwtClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.secretKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(sessionIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(j.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, ErrInvalidToken
	}

	out := &SessionClaims{
		ID:        userID,
		Email:     claims.Email,
		IsSeller:  claims.IsSeller,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	return out, nil
}

// NewTokenService builds the session token service for format, "jwt" or "paseto"
func NewTokenService(format string, jwtSecret, pasetoKey []byte, ttl time.Duration) (TokenService, error) {
	switch format {
	case "jwt":
		return NewJWTService(jwtSecret, ttl)
	case "paseto":
		return NewPasetoService(pasetoKey, ttl)
	}
	return nil, fmt.Errorf("unknown session format %q", format)
}
