package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"storefront-api/internal/auth"
	"storefront-api/internal/config"
	"storefront-api/internal/database"
	"storefront-api/internal/email"
	httpServer "storefront-api/internal/http"
	"storefront-api/internal/invoice"
	"storefront-api/internal/logging"
	"storefront-api/internal/order"
	"storefront-api/internal/ratelimit"
	"storefront-api/internal/session"
	"storefront-api/internal/storage"
	"storefront-api/internal/token"
	"storefront-api/internal/user"
)

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
	db, err := database.Connect(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	// Initialize Redis connection
	redisClient, err := initRedis(cfg.Redis)
	if err != nil {
		return fmt.Errorf("failed to initialize Redis: %w", err)
	}
	defer redisClient.Close()

	// Initialize token codec
	codec, err := token.NewCodec(cfg.Auth.TokenKey)
	if err != nil {
		return fmt.Errorf("failed to initialize token codec: %w", err)
	}

	// Initialize session store, refresh token store and rate limiter
	sessionStore := session.NewStore(redisClient, cfg.Auth.SessionDuration)
	refreshStore := auth.NewRedisRefreshStore(redisClient)
	rateLimiter := ratelimit.NewLimiter(redisClient)

	// Initialize invoice storage
	uploader, err := storage.NewS3Uploader(context.Background(), cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize object storage: %w", err)
	}

	// Initialize email service
	emailService := email.NewService(
		cfg.Email.SMTPHost,
		cfg.Email.SMTPPort,
		cfg.Email.SMTPUser,
		cfg.Email.SMTPPassword,
		cfg.Email.FromName,
		cfg.Email.FrontendURL,
	)

	// Initialize repositories
	userRepo := user.NewRepository(db)
	orderRepo := order.NewRepository(db)

	// Initialize services
	authService := auth.NewService(userRepo, codec, sessionStore, refreshStore, emailService, logger)
	orderService := order.NewService(
		orderRepo,
		userRepo,
		invoice.NewRenderer(cfg.Email.FromName),
		uploader,
		emailService,
		logger,
		cfg.Email.OperatorEmail,
	)

	// Initialize HTTP handlers and the auth gate
	authHandler := auth.NewHandler(
		authService,
		rateLimiter,
		logger,
		!cfg.Server.IsDevelopment(), // isProduction
		cfg.Auth.SessionDuration,
	)
	orderHandler := order.NewHandler(orderService, logger)
	gate := auth.NewGate(codec, sessionStore)

	// Initialize router
	router := httpServer.NewRouter(cfg, authHandler, orderHandler, gate, logger)

	// Initialize HTTP server
	serverAddr := ":" + cfg.Server.Port
	server := httpServer.NewServer(
		serverAddr,
		router,
		cfg.Server.ReadTimeout,
		cfg.Server.WriteTimeout,
		logger,
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
		logger.Info("received shutdown signal", "signal", sig.String())

		// Graceful shutdown with timeout
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
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
