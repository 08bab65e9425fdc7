package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/redis/go-redis/v9"

	_ "github.com/redmonkez12/propertyhub-identity/docs" // Swagger docs (generated)
	"github.com/redmonkez12/propertyhub-identity/internal/auth"
	"github.com/redmonkez12/propertyhub-identity/internal/config"
	"github.com/redmonkez12/propertyhub-identity/internal/database"
	"github.com/redmonkez12/propertyhub-identity/internal/email"
	httpServer "github.com/redmonkez12/propertyhub-identity/internal/http"
	"github.com/redmonkez12/propertyhub-identity/internal/identity"
	"github.com/redmonkez12/propertyhub-identity/internal/logging"
	"github.com/redmonkez12/propertyhub-identity/internal/ratelimit"
	"github.com/redmonkez12/propertyhub-identity/internal/sms"
)

// @title           PropertyHub Identity API
// @version         1.0
// @description     Accounts, email and phone verification, Google sign-in and password reset for the PropertyHub marketplace.

// @contact.name   API Support
// @contact.email  support@example.com

// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT

// @host      localhost:8080
// @BasePath  /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the session token.

func main() {
	if err := run(); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	logger := logging.NewLogger(cfg.Server.IsDevelopment())
	logger.Info("starting application",
		"env", cfg.Server.Env,
		"port", cfg.Server.Port,
		"store", cfg.Store.Driver,
		"session_format", cfg.Auth.SessionFormat,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize identity store
	store, closeStore, err := initStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer closeStore()

	// Initialize rate limiter
	policy := ratelimit.DefaultPolicy(cfg.Auth.ResendCooldown)
	var rateLimiter ratelimit.Limiter
	if cfg.Redis.RateLimit == config.RateLimitRedis {
		redisClient, err := initRedis(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("failed to initialize Redis: %w", err)
		}
		defer redisClient.Close()
		rateLimiter = ratelimit.NewRedisLimiter(redisClient, policy)
	} else {
		rateLimiter = ratelimit.NewLocalLimiter(policy)
	}

	// Initialize session tokens
	tokenService, err := auth.NewTokenService(cfg.Auth.SessionFormat, cfg.Auth.SessionSecret, cfg.Auth.PasetoKey, cfg.Auth.SessionTTL)
	if err != nil {
		return fmt.Errorf("failed to initialize session tokens: %w", err)
	}

	// Initialize notification gateways
	emailSender, smsSender, err := initSenders(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize notification senders: %w", err)
	}
	emailService := email.NewService(emailSender, cfg.Server.PublicBaseURL, cfg.Auth.EmailTokenTTL, cfg.Auth.ResetTokenTTL)
	smsService := sms.NewService(smsSender, cfg.Auth.PhoneOTPTTL)

	// Google sign-in is optional
	var federated auth.AssertionVerifier
	if cfg.Federated.GoogleClientID != "" {
		googleVerifier, err := auth.NewGoogleVerifier(ctx, cfg.Federated.GoogleClientID)
		if err != nil {
			return fmt.Errorf("failed to initialize google sign-in: %w", err)
		}
		federated = googleVerifier
	} else {
		logger.Warn("GOOGLE_CLIENT_ID not set, google sign-in disabled")
	}

	// Initialize auth service
	authService := auth.NewService(
		store,
		auth.NewArgon2Hasher(auth.DefaultArgon2Params),
		tokenService,
		emailService,
		smsService,
		federated,
		auth.Policy{
			EmailTokenTTL:        cfg.Auth.EmailTokenTTL,
			PhoneOTPTTL:          cfg.Auth.PhoneOTPTTL,
			ResetTokenTTL:        cfg.Auth.ResetTokenTTL,
			NotifyTimeout:        cfg.Auth.NotifyTimeout,
			LinkFederatedByEmail: cfg.Federated.LinkByEmail,
		},
		logger,
	)

	// Initialize HTTP handlers
	authHandler := auth.NewHandler(authService, rateLimiter)
	authMiddleware := auth.NewMiddleware(authService)

	// Initialize router
	router := httpServer.NewRouter(cfg, authHandler, authMiddleware, logger)

	server := httpServer.NewServer(
		cfg.Server.Address(),
		router,
		cfg.Server.ReadTimeout,
		cfg.Server.WriteTimeout,
		cfg.Server.ShutdownTimeout,
		logger,
	)

	return server.Run(ctx)
}

// initStore opens the configured identity store and prepares its schema
func initStore(ctx context.Context, cfg *config.Config) (identity.Store, func(), error) {
	switch cfg.Store.Driver {
	case config.StoreDriverPostgres:
		db, err := database.OpenPostgres(ctx, cfg.Database.ConnectionString())
		if err != nil {
			return nil, nil, err
		}
		if err := database.CreateSchema(ctx, db); err != nil {
			db.Close()
			return nil, nil, err
		}
		return identity.NewPostgresStore(db), func() { db.Close() }, nil

	case config.StoreDriverMongo:
		client, err := database.OpenMongo(ctx, cfg.Mongo.URI)
		if err != nil {
			return nil, nil, err
		}
		db := client.Database(cfg.Mongo.Database)
		if err := database.EnsureMongoIndexes(ctx, db); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, nil, err
		}
		return identity.NewMongoStore(db), func() { _ = client.Disconnect(context.Background()) }, nil

	default:
		return identity.NewMemoryStore(), func() {}, nil
	}
}

// initRedis initializes the Redis connection and returns a Redis client
func initRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Verify connection
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return client, nil
}

// initSenders picks the email and SMS transports. AWS configuration is only
// loaded when one of them needs it.
func initSenders(ctx context.Context, cfg *config.Config, logger *logging.Logger) (email.Sender, sms.Sender, error) {
	var emailSender email.Sender
	var smsSender sms.Sender

	needsAWS := cfg.Email.Provider == config.EmailProviderSES || cfg.SMS.Provider == config.SMSProviderSNS
	var sesClient *ses.Client
	var snsClient *sns.Client
	if needsAWS {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		sesClient = ses.NewFromConfig(awsCfg)
		snsClient = sns.NewFromConfig(awsCfg)
	}

	switch cfg.Email.Provider {
	case config.EmailProviderSMTP:
		emailSender = email.NewSMTPSender(cfg.Email.SMTPHost, cfg.Email.SMTPPort, cfg.Email.SMTPUser, cfg.Email.SMTPPassword, cfg.Email.From)
	case config.EmailProviderSES:
		emailSender = email.NewSESSender(sesClient, cfg.Email.From)
	default:
		emailSender = email.NewConsoleSender(logger)
	}

	switch cfg.SMS.Provider {
	case config.SMSProviderSNS:
		smsSender = sms.NewSNSSender(snsClient, cfg.SMS.SenderID)
	default:
		smsSender = sms.NewConsoleSender(logger)
	}

	return emailSender, smsSender, nil
}
