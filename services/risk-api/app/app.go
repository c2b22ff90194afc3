package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ArchanaN2125/FinGuard-AI/pkg"
	"github.com/ArchanaN2125/FinGuard-AI/pkg/cache"
	"github.com/ArchanaN2125/FinGuard-AI/pkg/database"
	middleware "github.com/ArchanaN2125/FinGuard-AI/pkg/middlewares"
	"github.com/ArchanaN2125/FinGuard-AI/pkg/repositories"
	"github.com/ArchanaN2125/FinGuard-AI/services/risk-api/configs"
	"github.com/ArchanaN2125/FinGuard-AI/services/risk-api/internal/handlers"
	"github.com/ArchanaN2125/FinGuard-AI/services/risk-api/internal/services"
)

// NewApp wires dependencies, builds the Gin engine, and returns an *http.Server and a cleanup func.
// It reads configuration from environment variables via configs.Load.
func NewApp(ctx context.Context, logger *zap.Logger) (*http.Server, func(), error) {
	// Load config
	cfg, err := configs.Load(logger)
	if err != nil {
		return nil, nil, err
	}

	// Initialize postgres db
	dbConfig := database.Config{
		PrimaryDSN: cfg.PrimaryDbAddr,
		ReadDSNs:   []string{cfg.ReplicaDbAddr},
		MaxConns:   cfg.MaxDbCons,
		MinConns:   cfg.MinDbCons,
	}
	db, disconnect, err := database.New(ctx, logger, dbConfig)
	if err != nil {
		return nil, nil, err
	}

	// Run migrations on primary
	if err = database.RunMigrations(logger, cfg.PrimaryDbAddr); err != nil {
		disconnect()
		return nil, nil, err
	}

	// Redis backs the dashboard feeds and the distributed ingest limiter
	redisClient, redisCloser, err := cache.New(ctx, cache.Config{Addr: cfg.RedisAddr})
	if err != nil {
		disconnect()
		return nil, nil, err
	}

	// Setup dependencies
	baseHandler := handlers.NewBaseHandler(logger)
	publisher := services.NewKafkaPublisher(logger, ctx, cfg)
	feedService := services.NewFeedService(logger, cfg, db, redisClient, repositories.NewRiskRecordRepository())
	limiter := pkg.NewDistributedLimiter(redisClient, "global:ingest_rate", cfg.IngestRatePerSec, cfg.IngestBurst, time.Minute, logger)
	transactionHandler := handlers.NewTransactionHandler(logger, cfg, publisher, feedService, limiter)

	// Router
	r := gin.Default()

	api := r.Group("/api/v1")
	api.Use(middleware.TraceID())
	api.Use(middleware.Metrics())

	transactionHandler.RegisterRoutes(api)
	baseHandler.RegisterRoutes(r)

	addr := fmt.Sprintf(":%s", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	cleanup := func() {
		// close db pools
		disconnect()
		// close redis client
		redisCloser()
		// close kafka producer
		publisher.Close()
	}

	return srv, cleanup, nil
}
