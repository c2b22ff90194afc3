package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ArchanaN2125/FinGuard-AI/pkg"
	"github.com/ArchanaN2125/FinGuard-AI/pkg/cache"
	"github.com/ArchanaN2125/FinGuard-AI/pkg/database"
	kafkautils "github.com/ArchanaN2125/FinGuard-AI/pkg/kafka"
	"github.com/ArchanaN2125/FinGuard-AI/pkg/repositories"
	"github.com/ArchanaN2125/FinGuard-AI/services/risk-worker/configs"
	"github.com/ArchanaN2125/FinGuard-AI/services/risk-worker/internal/engine"
	"github.com/ArchanaN2125/FinGuard-AI/services/risk-worker/internal/handlers"
)

// main initializes and runs the risk scoring worker.
func main() {
	// Initialize global logger with default configuration
	pkg.InitLogger()
	logger := pkg.Logger
	defer logger.Sync() // Ensure all buffered logs are flushed on exit

	// Load configuration from environment and optional config file
	cfg, err := configs.Load(logger)
	if err != nil {
		logger.Fatal("failed_to_load_config", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Apply schema migrations before opening the pool
	if err = database.RunMigrations(logger, cfg.PrimaryDbAddr); err != nil {
		logger.Fatal("failed_to_run_migrations", zap.Error(err))
	}

	// Initialize PostgreSQL database connection
	db, disconnect, err := database.New(ctx, logger, database.Config{
		PrimaryDSN: cfg.PrimaryDbAddr,
		ReadDSNs:   []string{cfg.ReadDbAddr},
		MaxConns:   cfg.MaxDbCons,
		MinConns:   cfg.MinDbCons,
	})
	if err != nil {
		logger.Fatal("failed_to_initialize_database", zap.Error(err))
	}
	defer disconnect()

	// Initialize Redis client backing the dashboard feeds
	redisClient, redisCloser, err := cache.New(ctx, cache.Config{
		Addr: cfg.RedisAddr,
	})
	if err != nil {
		logger.Fatal("failed_to_initialize_redis", zap.Error(err))
	}
	logger.Info("Redis client initialized successfully")

	// Ensure ingest and DLQ topics exist
	err = kafkautils.InitKafkaTopics(logger, ctx, kafkautils.KafkaConfig{
		BootstrapServers: cfg.KafkaBrokers,
		Topics: []kafkautils.TopicConfig{
			{
				Topic:             cfg.KafkaIngestTopic,
				NumPartitions:     cfg.KafkaPartition,
				ReplicationFactor: 1,
			},
			{
				Topic:             cfg.KafkaDLQTopic,
				NumPartitions:     1,
				ReplicationFactor: 1,
				Config: map[string]string{
					"retention.ms": strconv.FormatInt(cfg.KafkaDLQRetention.Milliseconds(), 10),
				},
			},
		},
	})
	if err != nil {
		logger.Fatal("failed_to_initialize_kafka_topics", zap.Error(err))
	}

	// Expose Prometheus metrics
	metricsServer := &http.Server{Addr: cfg.MetricsAddr, Handler: promhttp.Handler()}
	go func() {
		logger.Info("Metrics server listening", zap.String("addr", cfg.MetricsAddr))
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics_server_failed", zap.Error(err))
		}
	}()

	// Wire the scoring pipeline: profiles and windows in memory, records
	// drained to Postgres and the Redis feeds by the publisher.
	engineCfg := cfg.Engine()
	profiles := engine.NewProfileStore(engineCfg.HealthWeight)
	windows := engine.NewWindowEngine(engineCfg.WindowDuration)
	publisher := engine.NewStorePublisher(logger, engine.PublisherConfig{
		BufferSize: cfg.PublishBufferSize,
		FeedLength: cfg.FeedLength,
	}, db, repositories.NewRiskRecordRepository(), redisClient)
	closePublisher := publisher.Start(ctx)

	pipeline := engine.NewPipeline(logger, engineCfg, engine.PipelineConfig{
		ShardCount:       cfg.PipelineShards,
		QueueDepth:       cfg.ShardQueueDepth,
		PublishAttempts:  cfg.MaxPublishRetries,
		RetryBaseBackoff: cfg.RetryBaseBackoff,
		MaxRetryBackoff:  cfg.MaxRetryBackoff,
	}, profiles, windows, publisher)
	closePipeline := pipeline.Start()

	// Set up the ingest consumer
	consumer := handlers.NewKafkaTransactionConsumer(handlers.KafkaTransactionConfig{
		Context:  ctx,
		Logger:   logger,
		Config:   cfg,
		Pipeline: pipeline,
	})
	closeConsumer := consumer.Start()

	// Handle graceful shutdown on SIGINT or SIGTERM
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	osSignal := <-sigChan
	logger.Info("Received shutdown signal", zap.String("signal", osSignal.String()))
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	// Stop intake first, then drain queued work, then flush the publisher.
	closeConsumer()
	closePipeline()
	closePublisher()
	cancel()
	redisCloser()
	_ = metricsServer.Shutdown(shutdownCtx)
	logger.Info("Service shutdown completed successfully")
}
