package main

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/printforge/printforge/internal"
	"github.com/printforge/printforge/internal/jobs"
	"github.com/printforge/printforge/internal/render"
	"github.com/printforge/printforge/internal/repository"
	"github.com/printforge/printforge/internal/service"
	"github.com/printforge/printforge/internal/storage"
	"github.com/printforge/printforge/internal/worker"
)

func run() error {
	ctx := context.Background()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Run migrations over database/sql; goose needs the stdlib driver
	migrateDB, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	if err := migrateDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	if err := internal.RunMigrations(migrateDB); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	if err := migrateDB.Close(); err != nil {
		return fmt.Errorf("close migration connection: %w", err)
	}

	// Application queries run over pgx natively
	pool, err := pgxpool.New(ctx, cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database pool failed: %w", err)
	}
	defer pool.Close()
	logger.Info("Database ready")

	// Initialize repository
	queries := repository.New(pool)

	// Initialize storage backend
	var store storage.Storage
	switch cfg.StorageProvider {
	case storage.ProviderS3:
		store, err = storage.NewS3Storage(storage.S3Config{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			BucketName:      cfg.S3BucketName,
			PublicURL:       cfg.S3PublicURL,
		}, logger)
	default:
		store, err = storage.NewLocalStorage(storage.LocalConfig{
			BasePath: cfg.LocalStoragePath,
			BaseURL:  cfg.LocalStorageURL,
		}, logger)
	}
	if err != nil {
		return fmt.Errorf("storage initialization failed: %w", err)
	}
	logger.Info("Storage ready", "provider", cfg.StorageProvider)

	// Initialize the renderer
	imageRenderer, err := render.NewImageRenderer()
	if err != nil {
		return fmt.Errorf("renderer initialization failed: %w", err)
	}

	// Initialize services
	subscriptionService := service.NewSubscriptionService(queries, logger)

	// Initialize background worker
	var w *worker.Worker
	if cfg.WorkerEnabled {
		workerCfg := worker.DefaultConfig()
		workerCfg.Concurrency = cfg.WorkerConcurrency
		workerCfg.PollInterval = cfg.WorkerPollInterval
		workerCfg.JobTimeout = cfg.WorkerJobTimeout
		workerCfg.RetryBaseDelay = cfg.WorkerRetryBaseDelay
		workerCfg.StaleThreshold = cfg.WorkerStaleThreshold
		w, err = worker.New(queries, workerCfg, logger)
		if err != nil {
			return fmt.Errorf("worker initialization failed: %w", err)
		}
		w.Register(jobs.NewRenderDesignHandler(queries, store, imageRenderer, logger))
		w.Start(ctx)
		logger.Info("Worker started", "concurrency", cfg.WorkerConcurrency)
	}

	// Roll expired billing windows forward on a schedule
	rolloverCtx, stopRollover := context.WithCancel(ctx)
	defer stopRollover()
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-rolloverCtx.Done():
				return
			case <-ticker.C:
				if _, err := subscriptionService.RolloverDuePeriods(rolloverCtx); err != nil {
					logger.Error("Billing period rollover failed", "error", err)
				}
			}
		}
	}()

	// ==========================================================================
	// Create router and register routes
	// ==========================================================================

	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		if err := pool.Ping(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Prometheus metrics, optionally behind basic auth
	mux.Handle("GET /metrics", metricsHandler(cfg))

	// Rendered artifacts when running on local storage
	if cfg.StorageProvider == storage.ProviderLocal {
		filesFS := http.FileServer(http.Dir(cfg.LocalStoragePath))
		mux.Handle("GET /files/", http.StripPrefix("/files/", filesFS))
	}

	// ==========================================================================
	// Start server
	// ==========================================================================

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: mux,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Server started", "address", server.Addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
		}
	}()

	<-sigChan
	logger.Info("Shutdown signal received, initiating graceful shutdown...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}
	if w != nil {
		w.Stop()
	}

	logger.Info("Graceful shutdown complete")
	return nil
}

// metricsHandler protects /metrics with basic auth when credentials are
// configured.
func metricsHandler(cfg *internal.Config) http.Handler {
	promHandler := promhttp.Handler()
	if cfg.MetricsUsername == "" && cfg.MetricsPassword == "" {
		return promHandler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok ||
			subtle.ConstantTimeCompare([]byte(user), []byte(cfg.MetricsUsername)) != 1 ||
			subtle.ConstantTimeCompare([]byte(pass), []byte(cfg.MetricsPassword)) != 1 {
			w.Header().Set("WWW-Authenticate", `Basic realm="metrics"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		promHandler.ServeHTTP(w, r)
	})
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
