package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMongo    = "mongo"
	StoreDriverMemory   = "memory"
)

// Session token formats
const (
	SessionFormatJWT    = "jwt"
	SessionFormatPaseto = "paseto"
)

// Notification providers
const (
	EmailProviderSMTP    = "smtp"
	EmailProviderSES     = "ses"
	EmailProviderConsole = "console"
	SMSProviderSNS       = "sns"
	SMSProviderConsole   = "console"
)

// Rate limit backends
const (
	RateLimitRedis = "redis"
	RateLimitLocal = "local"
)

type Config struct {
	Server    ServerConfig
	Store     StoreConfig
	Database  DatabaseConfig
	Mongo     MongoConfig
	Redis     RedisConfig
	Auth      AuthConfig
	Federated FederatedConfig
	Email     EmailConfig
	SMS       SMSConfig
	AWS       AWSConfig
}

type ServerConfig struct {
	Port            string
	Env             string // dev or prod
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	TrustedOrigins  []string
	PublicBaseURL   string // base for verification and reset links
}

type StoreConfig struct {
	Driver string
}

type DatabaseConfig struct {
	Host           string
	Port           string
	User           string
	Password       string
	DBName         string
	SSLMode        string
	ChannelBinding string // "require" for Neon DB, empty for local
}

type MongoConfig struct {
	URI      string
	Database string
}

type RedisConfig struct {
	Host      string
	Port      string
	Password  string
	DB        int
	RateLimit string // redis or local
}

type AuthConfig struct {
	SessionFormat string
	// HS256 signing secret, at least 32 bytes
	SessionSecret []byte
	// PASETO symmetric key (must be 32 bytes for v4.local)
	PasetoKey      []byte
	SessionTTL     time.Duration
	ResetTokenTTL  time.Duration
	EmailTokenTTL  time.Duration // 0 disables expiry
	PhoneOTPTTL    time.Duration // 0 disables expiry
	ResendCooldown time.Duration // 0 disables the cooldown
	NotifyTimeout  time.Duration
}

type FederatedConfig struct {
	GoogleClientID string
	LinkByEmail    bool
}

type EmailConfig struct {
	Provider     string
	SMTPHost     string
	SMTPPort     string
	SMTPUser     string
	SMTPPassword string
	From         string
}

type SMSConfig struct {
	Provider string
	SenderID string
}

type AWSConfig struct {
	Region string
}

// Load reads configuration from environment variables
// Call godotenv.Load() before this if using .env file
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "8080"),
			Env:             getEnv("APP_ENV", "dev"),
			ReadTimeout:     getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getDurationEnv("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getDurationEnv("SERVER_SHUTDOWN_TIMEOUT", 15*time.Second),
			TrustedOrigins:  getSliceEnv("TRUSTED_ORIGINS", []string{"http://localhost:3000"}),
			PublicBaseURL:   strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:3000"), "/"),
		},
		Store: StoreConfig{
			Driver: getEnv("STORE_DRIVER", StoreDriverPostgres),
		},
		Database: DatabaseConfig{
			Host:           getEnv("DB_HOST", "localhost"),
			Port:           getEnv("DB_PORT", "5432"),
			User:           getEnv("DB_USER", "postgres"),
			Password:       getEnv("DB_PASSWORD", "postgres"),
			DBName:         getEnv("DB_NAME", "propertyhub"),
			SSLMode:        getEnv("DB_SSLMODE", "disable"),
			ChannelBinding: getEnv("DB_CHANNEL_BINDING", ""),
		},
		Mongo: MongoConfig{
			URI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
			Database: getEnv("MONGO_DATABASE", "propertyhub"),
		},
		Redis: RedisConfig{
			Host:      getEnv("REDIS_HOST", "localhost"),
			Port:      getEnv("REDIS_PORT", "6379"),
			Password:  getEnv("REDIS_PASSWORD", ""),
			DB:        getIntEnv("REDIS_DB", 0),
			RateLimit: getEnv("RATE_LIMIT_BACKEND", RateLimitRedis),
		},
		Auth: AuthConfig{
			SessionFormat:  getEnv("SESSION_FORMAT", SessionFormatJWT),
			SessionSecret:  []byte(getEnv("SESSION_SECRET", "")),
			PasetoKey:      []byte(getEnv("PASETO_KEY", "")),
			SessionTTL:     getDurationEnv("SESSION_TTL", 7*24*time.Hour),
			ResetTokenTTL:  getDurationEnv("RESET_TOKEN_TTL", time.Hour),
			EmailTokenTTL:  getDurationEnv("EMAIL_TOKEN_TTL", 24*time.Hour),
			PhoneOTPTTL:    getDurationEnv("PHONE_OTP_TTL", 10*time.Minute),
			ResendCooldown: getDurationEnv("RESEND_COOLDOWN", 0),
			NotifyTimeout:  getDurationEnv("NOTIFY_TIMEOUT", 10*time.Second),
		},
		Federated: FederatedConfig{
			GoogleClientID: getEnv("GOOGLE_CLIENT_ID", ""),
			LinkByEmail:    getBoolEnv("FEDERATED_LINK_BY_EMAIL", true),
		},
		Email: EmailConfig{
			Provider:     getEnv("EMAIL_PROVIDER", EmailProviderConsole),
			SMTPHost:     getEnv("SMTP_HOST", ""),
			SMTPPort:     getEnv("SMTP_PORT", "587"),
			SMTPUser:     getEnv("SMTP_USER", ""),
			SMTPPassword: getEnv("SMTP_PASS", ""),
			From:         getEnv("EMAIL_FROM", "no-reply@propertyhub.local"),
		},
		SMS: SMSConfig{
			Provider: getEnv("SMS_PROVIDER", SMSProviderConsole),
			SenderID: getEnv("SMS_SENDER_ID", "PROPHUB"),
		},
		AWS: AWSConfig{
			Region: getEnv("AWS_REGION", "us-east-1"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Store.Driver {
	case StoreDriverPostgres, StoreDriverMongo, StoreDriverMemory:
	default:
		return fmt.Errorf("STORE_DRIVER must be one of postgres, mongo, memory, got %q", c.Store.Driver)
	}

	switch c.Auth.SessionFormat {
	case SessionFormatJWT:
		if len(c.Auth.SessionSecret) < 32 {
			return fmt.Errorf("SESSION_SECRET must be at least 32 bytes, got %d", len(c.Auth.SessionSecret))
		}
	case SessionFormatPaseto:
		// Validate PASETO key length (must be 32 bytes for v4.local)
		if len(c.Auth.PasetoKey) != 32 {
			return fmt.Errorf("PASETO_KEY must be exactly 32 bytes, got %d", len(c.Auth.PasetoKey))
		}
	default:
		return fmt.Errorf("SESSION_FORMAT must be jwt or paseto, got %q", c.Auth.SessionFormat)
	}

	if c.Auth.SessionTTL <= 0 || c.Auth.ResetTokenTTL <= 0 {
		return fmt.Errorf("SESSION_TTL and RESET_TOKEN_TTL must be positive")
	}
	if c.Auth.EmailTokenTTL < 0 || c.Auth.PhoneOTPTTL < 0 || c.Auth.ResendCooldown < 0 {
		return fmt.Errorf("EMAIL_TOKEN_TTL, PHONE_OTP_TTL and RESEND_COOLDOWN must not be negative")
	}

	switch c.Email.Provider {
	case EmailProviderSMTP:
		if c.Email.SMTPHost == "" {
			return fmt.Errorf("SMTP_HOST is required when EMAIL_PROVIDER=smtp")
		}
	case EmailProviderSES, EmailProviderConsole:
	default:
		return fmt.Errorf("EMAIL_PROVIDER must be one of smtp, ses, console, got %q", c.Email.Provider)
	}

	switch c.SMS.Provider {
	case SMSProviderSNS, SMSProviderConsole:
	default:
		return fmt.Errorf("SMS_PROVIDER must be sns or console, got %q", c.SMS.Provider)
	}

	// Console providers write links and codes to the log
	if c.Server.IsProduction() {
		if c.Email.Provider == EmailProviderConsole {
			return fmt.Errorf("EMAIL_PROVIDER=console is not allowed when APP_ENV=prod")
		}
		if c.SMS.Provider == SMSProviderConsole {
			return fmt.Errorf("SMS_PROVIDER=console is not allowed when APP_ENV=prod")
		}
	}

	switch c.Redis.RateLimit {
	case RateLimitRedis, RateLimitLocal:
	default:
		return fmt.Errorf("RATE_LIMIT_BACKEND must be redis or local, got %q", c.Redis.RateLimit)
	}

	return nil
}

func (c *DatabaseConfig) ConnectionString() string {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)

	// Add channel_binding if configured (required for Neon DB)
	if c.ChannelBinding != "" {
		connStr += fmt.Sprintf(" channel_binding=%s", c.ChannelBinding)
	}

	return connStr
}

// Address returns Redis connection address (host:port)
func (c *RedisConfig) Address() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// IsDevelopment returns true if the environment is set to dev
func (c *ServerConfig) IsDevelopment() bool {
	return c.Env == "dev"
}

// IsProduction returns true if the environment is set to prod
func (c *ServerConfig) IsProduction() bool {
	return c.Env == "prod"
}

// Address returns the listen address for the HTTP server
func (c *ServerConfig) Address() string {
	return ":" + c.Port
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	boolValue, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}

	return boolValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	seconds, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return time.Duration(seconds) * time.Second
}

func getSliceEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Split by comma and trim whitespace
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}

	if len(result) == 0 {
		return defaultValue
	}

	return result
}
