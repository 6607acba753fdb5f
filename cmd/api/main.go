package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/coinpilot/exchange-ledger/internal/events"
	infrakafka "github.com/coinpilot/exchange-ledger/internal/infra/kafka"
	"github.com/coinpilot/exchange-ledger/internal/infra/postgres"
	infraredis "github.com/coinpilot/exchange-ledger/internal/infra/redis"
	"github.com/coinpilot/exchange-ledger/internal/ledger"
	"github.com/coinpilot/exchange-ledger/internal/module/escrow"
	"github.com/coinpilot/exchange-ledger/internal/module/rewards"
	"github.com/coinpilot/exchange-ledger/internal/module/withdrawal"
	"github.com/coinpilot/exchange-ledger/internal/module/yield"
	"github.com/coinpilot/exchange-ledger/internal/platform/asset"
	"github.com/coinpilot/exchange-ledger/internal/transport/httpapi"
	"github.com/coinpilot/exchange-ledger/internal/transport/httpapi/handler"
	"github.com/coinpilot/exchange-ledger/internal/transport/httpapi/middleware"
	"github.com/coinpilot/exchange-ledger/pkg/config"
	"github.com/coinpilot/exchange-ledger/pkg/logger"
)

// pointsAssetID is the asset reward grants are denominated in
const pointsAssetID = "PTS"

// redisPinger adapts the redis client to the health handler
type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func main() {
	// Create context that listens for termination signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewDefault(cfg.Env)
	log.Info("Starting ledger API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	// Initialize database connection pool
	db, err := postgres.NewPool(ctx, postgres.Config{URL: cfg.DatabaseURL})
	if err != nil {
		log.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	log.Info("Database connection established")

	// Initialize Redis client for asset caching
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	log.Info("Redis connection established")

	// Event publisher: Kafka when brokers are configured, no-op otherwise
	var publisher events.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher := infrakafka.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, log)
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher
		log.Info("Kafka publisher initialized", "topic", cfg.KafkaTopic)
	} else {
		publisher = events.NopPublisher{}
		log.Warn("KAFKA_BROKERS not configured, events disabled")
	}

	// Initialize repositories
	ledgerRepo := postgres.NewLedgerRepository(db.Pool)
	assetRepo := postgres.NewAssetRepository(db.Pool)
	withdrawalRepo := postgres.NewWithdrawalRepository(db.Pool)
	escrowRepo := postgres.NewEscrowRepository(db.Pool)
	yieldRepo := postgres.NewYieldRepository(db.Pool)

	// Initialize services
	assetCache := infraredis.NewAssetCache(redisClient, log)
	assetSvc := asset.NewService(assetRepo, assetCache, log)
	ledgerSvc := ledger.NewService(ledgerRepo, log)
	withdrawalSvc := withdrawal.NewService(withdrawalRepo, ledgerSvc, assetSvc, publisher, log)
	escrowSvc := escrow.NewService(escrowRepo, ledgerSvc, assetSvc, publisher, log)
	yieldSvc := yield.NewService(yieldRepo, ledgerSvc, assetSvc, publisher, log)
	rewardsSvc := rewards.NewService(ledgerSvc, assetSvc, publisher, log, pointsAssetID)
	jwtSvc := middleware.NewJWTService(cfg.JWTSecret)

	// Initialize HTTP handlers
	healthHandler := handler.NewHealthHandler(db.Pool, redisPinger{client: redisClient})
	ledgerHandler := handler.NewLedgerHandler(ledgerSvc)
	withdrawalHandler := handler.NewWithdrawalHandler(withdrawalSvc)
	escrowHandler := handler.NewEscrowHandler(escrowSvc)
	yieldHandler := handler.NewYieldHandler(yieldSvc)
	assetHandler := handler.NewAssetHandler(assetSvc)
	rewardsHandler := handler.NewRewardsHandler(rewardsSvc)

	// Determine allowed origins for CORS
	allowedOrigins := []string{"http://localhost:5173"}
	if cfg.IsProduction() {
		if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
			allowedOrigins = []string{origins}
		}
	}

	// Create HTTP router
	r := httpapi.NewRouter(httpapi.Config{
		Logger:            log,
		AllowedOrigins:    allowedOrigins,
		HealthHandler:     healthHandler,
		LedgerHandler:     ledgerHandler,
		WithdrawalHandler: withdrawalHandler,
		EscrowHandler:     escrowHandler,
		YieldHandler:      yieldHandler,
		AssetHandler:      assetHandler,
		RewardsHandler:    rewardsHandler,
		JWTMiddleware:     middleware.JWT(jwtSvc),
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for termination signal
	<-ctx.Done()
	log.Info("Shutdown signal received")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown failed", "error", err)
		os.Exit(1)
	}

	log.Info("Server stopped")
}
