package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/propertyhub-identity/internal/auth"
	"github.com/redmonkez12/propertyhub-identity/internal/config"
	"github.com/redmonkez12/propertyhub-identity/internal/identity"
	"github.com/redmonkez12/propertyhub-identity/internal/logging"
	"github.com/redmonkez12/propertyhub-identity/internal/ratelimit"
)

type outbox struct {
	verificationToken string
	otp               string
}

func (o *outbox) SendVerificationEmail(_ context.Context, _, _, token string) error {
	o.verificationToken = token
	return nil
}

func (o *outbox) SendPasswordResetEmail(_ context.Context, _, _ string) error {
	return nil
}

func (o *outbox) SendOTP(_ context.Context, _, code string) error {
	o.otp = code
	return nil
}

func newTestRouter(t *testing.T) (http.Handler, *outbox) {
	t.Helper()

	cfg := &config.Config{
		Server: config.ServerConfig{
			Env:            "prod",
			TrustedOrigins: []string{"http://localhost:3000"},
		},
	}

	tokens, err := auth.NewJWTService([]byte(strings.Repeat("k", 32)), 7*24*time.Hour)
	require.NoError(t, err)

	box := &outbox{}
	logger := logging.NewNopLogger()
	svc := auth.NewService(
		identity.NewMemoryStore(),
		auth.NewArgon2Hasher(auth.Argon2Params{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLen: 32, SaltLen: 16}),
		tokens,
		box,
		box,
		nil,
		auth.Policy{EmailTokenTTL: 24 * time.Hour, PhoneOTPTTL: 10 * time.Minute, ResetTokenTTL: time.Hour},
		logger,
	)

	handler := auth.NewHandler(svc, ratelimit.NewLocalLimiter(ratelimit.DefaultPolicy(0)))
	return NewRouter(cfg, handler, auth.NewMiddleware(svc), logger), box
}

func send(t *testing.T, router http.Handler, method, path, body, bearer string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := send(t, router, http.MethodGet, "/health", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestSecurityHeaders(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := send(t, router, http.MethodGet, "/health", "", "")
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, apiCSP, rec.Header().Get("Content-Security-Policy"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.Empty(t, rec.Header().Get("Strict-Transport-Security"))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Contains(t, rec.Header().Get("Strict-Transport-Security"), "max-age=")
}

func TestSwaggerDisabledOutsideDevelopment(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := send(t, router, http.MethodGet, "/swagger/index.html", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/login", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestVerifyRequiresBearer(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := send(t, router, http.MethodGet, "/verify", "", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "MISSING_AUTH")
}

func TestRegisterThenVerifyBothChannels(t *testing.T) {
	router, box := newTestRouter(t)

	rec := send(t, router, http.MethodPost, "/register",
		`{"email":"a@x.com","password":"Secret123","phone":"+911234567890"}`, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.NotEmpty(t, box.verificationToken)
	require.Len(t, box.otp, 6)

	rec = send(t, router, http.MethodGet, "/verify-email/"+box.verificationToken, "", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = send(t, router, http.MethodPost, "/verify-phone-otp", `{"email":"a@x.com","otp":"`+box.otp+`"}`, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var session auth.SessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &session))
	require.True(t, session.EmailVerified)
	require.True(t, session.PhoneVerified)

	rec = send(t, router, http.MethodGet, "/verify", "", session.Token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var profile auth.ProfileResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &profile))
	assert.Equal(t, "a@x.com", profile.User.Email)
	assert.Equal(t, "a", profile.User.Name)
	assert.True(t, profile.User.EmailVerified)
	assert.True(t, profile.User.PhoneVerified)
}
