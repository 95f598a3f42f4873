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
	"github.com/yf-yang/thu-food-report/internal/cache"
	"github.com/yf-yang/thu-food-report/internal/config"
	apphttp "github.com/yf-yang/thu-food-report/internal/http"
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
	logger := log.New(log.Config{Level: level, Component: log.ComponentApp, Format: os.Getenv("LOG_FORMAT")})
	log.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	policy, _ := cfg.Policy()

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", log.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	opts := services.Options{
		Policy:       policy,
		FetchTimeout: cfg.FetchTimeout,
		CacheSize:    cfg.ReportCacheSize,
		CacheTTL:     cfg.ReportCacheTTL,
	}
	if cfg.IngestMode == config.IngestAsync {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		defer amqpClient.Close()
		opts.Publisher = amqpClient
		logger.Info("Ingestion handed to worker", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	}

	start, end := policy.Period()
	fetcher := ingest.NewFetcher(ingest.FetcherConfig{
		BaseURL:     cfg.CardServiceURL,
		MaxAttempts: cfg.FetchMaxAttempts,
		Start:       start,
		End:         end,
	})
	client := &http.Client{Timeout: cfg.FetchTimeout}
	reportService := services.NewReportService(repo, fetcher, client, opts)

	cacheManager := cache.NewManager()
	cacheManager.Register("reports", reportService.ReportCache())
	cacheManager.StartCleanup(time.Minute)
	defer cacheManager.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Without a worker process nobody else purges expired sessions.
	if cfg.IngestMode == config.IngestSync {
		janitor := worker.NewJanitor(repo, worker.JanitorConfig{Retention: cfg.SessionRetention})
		if err := janitor.Start(ctx); err != nil {
			logger.Error("Failed to start janitor", log.FieldError, err)
			os.Exit(1)
		}
		defer janitor.Stop(context.Background())
	}

	srv := apphttp.NewServer(":"+cfg.Port, reportService, apphttp.Options{
		Logger:            logger,
		RequestsPerMinute: cfg.RateLimitPerMinute,
		Ready:             repo,
	})
	srv.ReadTimeout = 10 * time.Second
	// Sync session creation fetches the whole year before replying.
	srv.WriteTimeout = cfg.FetchTimeout + 10*time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", log.FieldOperation, log.OpShutdown, "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		cancel()
	}()

	logger.Info("Starting foodreport server",
		log.FieldOperation, log.OpStartup,
		"port", cfg.Port,
		"ingest_mode", cfg.IngestMode,
		"report_year", policy.Year)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
