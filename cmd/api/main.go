package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/SkrCodyxx/DounieCuisine-sub001/api/rest"
	"github.com/SkrCodyxx/DounieCuisine-sub001/internal/campaign"
	"github.com/SkrCodyxx/DounieCuisine-sub001/internal/config"
	"github.com/SkrCodyxx/DounieCuisine-sub001/internal/database"
	"github.com/SkrCodyxx/DounieCuisine-sub001/internal/events"
	"github.com/SkrCodyxx/DounieCuisine-sub001/internal/jobqueue"
	"github.com/SkrCodyxx/DounieCuisine-sub001/internal/monitoring"
	"github.com/SkrCodyxx/DounieCuisine-sub001/internal/order"
)

func main() {
	// Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Starting Fulfillment API Service")

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

	// Initialize database schema
	if err := postgres.InitSchema(); err != nil {
		logger.Fatal("Failed to initialize database schema", zap.Error(err))
	}
	logger.Info("Database connected and schema initialized")

	// Connect to Redis
	redisClient, err := database.NewRedisClient(cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	logger.Info("Redis connected")

	// Initialize Kafka event publisher
	publisher := events.NewPublisher(cfg.Kafka)
	defer publisher.Close()
	logger.Info("Kafka event publisher initialized")

	// Wire stores and services
	queueStore := jobqueue.NewPostgresStore(postgres, cfg.Worker.LeaseDuration)
	orderStore := order.NewPostgresStore(postgres)
	orderService := order.NewService(orderStore, queueStore, publisher, logger)
	campaignStore := campaign.NewPostgresStore(postgres)
	dispatcher := campaign.NewDispatcher(campaignStore, queueStore, publisher, redisClient, cfg.Campaign, logger)

	// Initialize REST API handler
	handler := rest.NewHandler(orderService, dispatcher, queueStore, metrics, logger)
	router := handler.SetupRoutes()

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

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

	logger.Info("Shutting down API service...")
	time.Sleep(2 * time.Second)
	logger.Info("API service exited")
}
