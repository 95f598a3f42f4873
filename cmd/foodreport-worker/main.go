package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/yf-yang/thu-food-report/internal/amqp"
	"github.com/yf-yang/thu-food-report/internal/config"
	"github.com/yf-yang/thu-food-report/internal/ingest"
	"github.com/yf-yang/thu-food-report/internal/log"
	"github.com/yf-yang/thu-food-report/internal/services"
	"github.com/yf-yang/thu-food-report/internal/storage"
	"github.com/yf-yang/thu-food-report/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	cfg := config.Load()
	level, _ := config.ParseLevel(cfg.LogLevel)
	logger := log.New(log.Config{Level: level, Component: log.ComponentWorker, Format: os.Getenv("LOG_FORMAT")})
	log.SetDefault(logger)

	logger.Info("Starting foodreport-worker", log.FieldOperation, log.OpStartup)

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required by the worker")
		os.Exit(1)
	}
	policy, _ := cfg.Policy()

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", log.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	start, end := policy.Period()
	fetcher := ingest.NewFetcher(ingest.FetcherConfig{
		BaseURL:     cfg.CardServiceURL,
		MaxAttempts: cfg.FetchMaxAttempts,
		Start:       start,
		End:         end,
	})
	// The worker only ingests; reports are built by the server.
	reportService := services.NewReportService(repo, fetcher, &http.Client{Timeout: cfg.FetchTimeout}, services.Options{
		Policy:       policy,
		FetchTimeout: cfg.FetchTimeout,
		CacheSize:    1,
		CacheTTL:     time.Minute,
	})
	ingestWorker := worker.NewIngestWorker(reportService)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	janitor := worker.NewJanitor(repo, worker.JanitorConfig{Retention: cfg.SessionRetention})
	if err := janitor.Start(ctx); err != nil {
		logger.Error("Failed to start janitor", log.FieldError, err)
		os.Exit(1)
	}

	go func() {
		if err := amqpClient.ConsumeIngestRequests(ctx, ingestWorker.HandleIngestMessage); err != nil {
			if !errors.Is(err, context.Canceled) {
				logger.Error("Message consumption failed", log.FieldError, err)
			}
			cancel()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", log.FieldOperation, log.OpShutdown, "signal", sig.String())
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	logger.Info("Shutting down worker...")
	cancel()
	if err := janitor.Stop(shutdownCtx); err != nil {
		logger.Warn("Janitor shutdown", log.FieldError, err)
	}
	logger.Info("Worker shutdown complete")
}
