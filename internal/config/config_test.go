package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SESSION_SECRET", testSecret)

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "8080", cfg.Server.Port)
	require.True(t, cfg.Server.IsDevelopment())
	require.Equal(t, StoreDriverPostgres, cfg.Store.Driver)
	require.Equal(t, SessionFormatJWT, cfg.Auth.SessionFormat)
	require.Equal(t, 7*24*time.Hour, cfg.Auth.SessionTTL)
	require.Equal(t, time.Hour, cfg.Auth.ResetTokenTTL)
	require.Equal(t, 24*time.Hour, cfg.Auth.EmailTokenTTL)
	require.Equal(t, 10*time.Minute, cfg.Auth.PhoneOTPTTL)
	require.Zero(t, cfg.Auth.ResendCooldown)
	require.True(t, cfg.Federated.LinkByEmail)
	require.Equal(t, EmailProviderConsole, cfg.Email.Provider)
	require.Equal(t, SMSProviderConsole, cfg.SMS.Provider)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SESSION_FORMAT", "paseto")
	t.Setenv("PASETO_KEY", testSecret)
	t.Setenv("STORE_DRIVER", "mongo")
	t.Setenv("EMAIL_TOKEN_TTL", "0")
	t.Setenv("PHONE_OTP_TTL", "300")
	t.Setenv("FEDERATED_LINK_BY_EMAIL", "false")
	t.Setenv("PUBLIC_BASE_URL", "https://homes.example.com/")
	t.Setenv("TRUSTED_ORIGINS", "https://a.example.com, https://b.example.com")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, StoreDriverMongo, cfg.Store.Driver)
	require.Zero(t, cfg.Auth.EmailTokenTTL)
	require.Equal(t, 5*time.Minute, cfg.Auth.PhoneOTPTTL)
	require.False(t, cfg.Federated.LinkByEmail)
	require.Equal(t, "https://homes.example.com", cfg.Server.PublicBaseURL)
	require.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.Server.TrustedOrigins)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"short jwt secret", map[string]string{"SESSION_SECRET": "short"}},
		{"bad paseto key", map[string]string{"SESSION_FORMAT": "paseto", "PASETO_KEY": "short"}},
		{"unknown store", map[string]string{"SESSION_SECRET": testSecret, "STORE_DRIVER": "sqlite"}},
		{"smtp without host", map[string]string{"SESSION_SECRET": testSecret, "EMAIL_PROVIDER": "smtp"}},
		{"unknown sms provider", map[string]string{"SESSION_SECRET": testSecret, "SMS_PROVIDER": "pigeon"}},
		{"console email in prod", map[string]string{"SESSION_SECRET": testSecret, "APP_ENV": "prod", "SMS_PROVIDER": "sns"}},
		{"console sms in prod", map[string]string{"SESSION_SECRET": testSecret, "APP_ENV": "prod", "EMAIL_PROVIDER": "ses"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
		})
	}
}

func TestLoadProductionProviders(t *testing.T) {
	t.Setenv("SESSION_SECRET", testSecret)
	t.Setenv("APP_ENV", "prod")
	t.Setenv("EMAIL_PROVIDER", "ses")
	t.Setenv("SMS_PROVIDER", "sns")

	cfg, err := Load()
	require.NoError(t, err)
	require.True(t, cfg.Server.IsProduction())

	t.Setenv("SMS_PROVIDER", "console")
	_, err = Load()
	require.ErrorContains(t, err, "SMS_PROVIDER=console")
}

func TestDatabaseConnectionString(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: "5432", User: "u", Password: "p", DBName: "n", SSLMode: "require", ChannelBinding: "require"}
	require.Equal(t, "host=db port=5432 user=u password=p dbname=n sslmode=require channel_binding=require", c.ConnectionString())
}
