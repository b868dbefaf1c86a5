package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/SkrCodyxx/DounieCuisine-sub001/internal/channels"
	"github.com/SkrCodyxx/DounieCuisine-sub001/internal/config"
	"github.com/SkrCodyxx/DounieCuisine-sub001/internal/database"
	"github.com/SkrCodyxx/DounieCuisine-sub001/internal/jobqueue"
	"github.com/SkrCodyxx/DounieCuisine-sub001/internal/monitoring"
	"github.com/SkrCodyxx/DounieCuisine-sub001/internal/template"
	"github.com/SkrCodyxx/DounieCuisine-sub001/internal/worker"
)

func main() {
	// Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Starting Delivery Worker Service")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	// Initialize metrics
	metrics := monitoring.NewMetrics()

	// Connect to PostgreSQL
	postgres, err := database.NewPostgresDB(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}
	defer postgres.Close()

	// Connect to Redis
	redisClient, err := database.NewRedisClient(cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	logger.Info("Redis connected")

	// Wire the queue, templates, and send channel
	queueStore := jobqueue.NewPostgresStore(postgres, cfg.Worker.LeaseDuration)
	templateStore := template.NewCachedStore(template.NewPostgresStore(postgres), redisClient, 0, logger)
	emailChannel := channels.NewEmailChannel(cfg.Channels.SendGrid, logger)
	logger.Info("Email channel initialized")

	// Start the worker pool
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool := worker.NewPool(queueStore, templateStore, emailChannel, metrics, logger, cfg.Worker)
	pool.Start(ctx)

	// Start metrics server if enabled
	if cfg.Metrics.Enabled {
		metricsServer := &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
			Handler: metrics.Handler(),
		}
		go func() {
			logger.Info("Starting metrics server", zap.String("addr", metricsServer.Addr))
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("Metrics server error", zap.Error(err))
			}
		}()
	}

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down delivery worker...")
	cancel()
	pool.Stop()
	logger.Info("Delivery worker exited")
}
