package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"

	"github.com/lumenhq/onboard-api/internal/auth"
	"github.com/lumenhq/onboard-api/internal/billing"
	"github.com/lumenhq/onboard-api/internal/config"
	"github.com/lumenhq/onboard-api/internal/database"
	"github.com/lumenhq/onboard-api/internal/email"
	httpServer "github.com/lumenhq/onboard-api/internal/http"
	"github.com/lumenhq/onboard-api/internal/logging"
	"github.com/lumenhq/onboard-api/internal/onboarding"
	"github.com/lumenhq/onboard-api/internal/preferences"
	"github.com/lumenhq/onboard-api/internal/ratelimit"
	"github.com/lumenhq/onboard-api/internal/user"
	"github.com/lumenhq/onboard-api/migrations"
)

// @title           Onboard API
// @version         1.0
// @description     Post-signup onboarding service: session bootstrap, plan selection, checkout hand-off and routing decisions.

// @contact.name   API Support
// @contact.email  support@lumenhq.io

// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT

// @host      localhost:8080
// @BasePath  /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the access token.

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
	)

	// Initialize database connection
	db, err := initDB(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	// Run pending migrations
	if err := migrations.Migrate(db.DB); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// Initialize Redis connection
	redisClient, err := initRedis(cfg.Redis)
	if err != nil {
		return fmt.Errorf("failed to initialize Redis: %w", err)
	}
	defer redisClient.Close()

	// Initialize repositories
	userRepo := user.NewRepository(db)
	authRepo := auth.NewRedisRepository(redisClient)
	loginCodeRepo := auth.NewLoginCodeRepository(redisClient, cfg.Auth.LoginCodeDuration)

	// Preferences store: repository behind a read-through cache that also
	// feeds the change watcher for the event stream.
	prefsWatcher := preferences.NewWatcher(redisClient)
	prefsRepo := preferences.NewRepository(db)
	prefsStore := preferences.NewCache(prefsRepo, redisClient, prefsWatcher, cfg.Onboarding.PreferencesCacheTTL, logger)

	// Billing: local records refreshed from the provider API
	billingRepo := billing.NewRepository(db)
	billingClient := billing.NewClient(cfg.Billing.APIBaseURL, cfg.Billing.APIKey, cfg.Billing.APITimeout)
	billingService := billing.NewService(billingRepo, billingClient, logger)

	// Initialize rate limiter
	rateLimiter := ratelimit.NewLimiter(redisClient)

	// Initialize PASETO service
	pasetoService, err := auth.NewPasetoService(cfg.Auth.PasetoKey)
	if err != nil {
		return fmt.Errorf("failed to initialize PASETO service: %w", err)
	}

	// Initialize email service
	emailService := email.NewService(
		cfg.Email.SMTPHost,
		cfg.Email.SMTPPort,
		cfg.Email.SMTPUser,
		cfg.Email.SMTPPassword,
		cfg.Email.FrontendURL,
	)

	// Checkout redirects return to the completion endpoint on the frontend
	checkoutBuilder := billing.NewCheckoutBuilder(
		cfg.Billing.CheckoutBaseURL,
		cfg.Email.FrontendURL+"/onboarding/complete",
	)
	selectionLocker := onboarding.NewRedisSelectionLocker(redisClient, cfg.Onboarding.SelectionLockTTL)

	// Onboarding flow
	onboardingService := onboarding.NewService(
		prefsStore,
		billingService,
		checkoutBuilder,
		selectionLocker,
		emailService,
		cfg.Onboarding,
		logger,
	)
	onboardingHandler := onboarding.NewHandler(onboardingService, prefsWatcher, rateLimiter, logger)

	// Initialize auth service
	authService := auth.NewService(
		userRepo,
		authRepo,
		loginCodeRepo,
		pasetoService,
		logger,
		cfg.Auth.AccessTokenDuration,
		cfg.Auth.RefreshTokenDuration,
	)

	// Initialize HTTP handlers
	authHandler := auth.NewHandler(
		authService,
		&bootstrapAdapter{svc: onboardingService},
		rateLimiter,
		logger,
		!cfg.Server.IsDevelopment(), // isProduction
		cfg.Auth.AccessTokenDuration,
		cfg.Auth.RefreshTokenDuration,
	)
	authMiddleware := auth.NewMiddleware(pasetoService)

	// Initialize router
	router := httpServer.NewRouter(cfg, authHandler, authMiddleware, onboardingHandler, logger)

	// Initialize HTTP server
	serverAddr := ":" + cfg.Server.Port
	server := httpServer.NewServer(
		serverAddr,
		router,
		cfg.Server.ReadTimeout,
		cfg.Server.WriteTimeout,
	)

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Start()
	}()

	// Wait for interrupt signal or server error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		log.Printf("Received signal: %v", sig)

		// Graceful shutdown with timeout
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// bootstrapAdapter exposes the onboarding bootstrap to the auth handler
// without the auth package importing the onboarding package.
type bootstrapAdapter struct {
	svc *onboarding.Service
}

func (a *bootstrapAdapter) Bootstrap(ctx context.Context, userID uuid.UUID, explicitTarget string) auth.Destination {
	dest := a.svc.Bootstrap(ctx, userID, explicitTarget)
	return auth.Destination{Route: string(dest.Route), Path: dest.Path}
}

// initDB initializes the database connection and returns a Bun DB instance
func initDB(cfg config.DatabaseConfig) (*bun.DB, error) {
	sqlDB, err := sql.Open("postgres", cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Verify connection
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Set connection pool settings
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	return database.NewBunDB(sqlDB), nil
}

// initRedis initializes the Redis connection and returns a Redis client
func initRedis(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Verify connection
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return client, nil
}
