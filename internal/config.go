package internal

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env         string
	Port        int
	LogLevel    string
	DatabaseUrl string

	// Application base URL (for artifact links behind local storage)
	BaseURL string

	// Storage Configuration
	StorageProvider string // "local" or "s3"

	// Local Storage (development)
	LocalStoragePath string // Base directory for local file storage
	LocalStorageURL  string // Base URL for accessing local files

	// S3-compatible Storage (production: S3, R2, MinIO)
	S3Endpoint        string // Optional custom endpoint for R2/MinIO
	S3Region          string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3BucketName      string
	S3PublicURL       string // Optional CDN/custom domain URL

	// Worker Configuration
	WorkerEnabled        bool
	WorkerConcurrency    int
	WorkerPollInterval   time.Duration
	WorkerJobTimeout     time.Duration
	WorkerRetryBaseDelay time.Duration
	WorkerStaleThreshold time.Duration

	// Metrics endpoint authentication
	// If both are empty, the /metrics endpoint will be unprotected (not recommended)
	MetricsUsername string
	MetricsPassword string
}

func NewConfig() (*Config, error) {
	// Load .env file if it exists (ignored in production)
	_ = godotenv.Load()

	cfg := &Config{
		Env:      getEnv("ENV", "development"),
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "debug"),

		// Base URL defaults to localhost for development
		BaseURL: getEnv("BASE_URL", "http://localhost:8080"),

		// Storage defaults to local filesystem for development
		StorageProvider:  getEnv("STORAGE_PROVIDER", "local"),
		LocalStoragePath: getEnv("LOCAL_STORAGE_PATH", "./storage"),
		LocalStorageURL:  getEnv("LOCAL_STORAGE_URL", "http://localhost:8080/files"),

		// S3 configuration (production only)
		S3Endpoint:        getEnv("S3_ENDPOINT", ""),
		S3Region:          getEnv("S3_REGION", "us-east-1"),
		S3AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
		S3SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
		S3BucketName:      getEnv("S3_BUCKET_NAME", ""),
		S3PublicURL:       getEnv("S3_PUBLIC_URL", ""),

		// Worker defaults
		WorkerEnabled:        getEnvBool("WORKER_ENABLED", true),
		WorkerConcurrency:    getEnvInt("WORKER_CONCURRENCY", 2),
		WorkerPollInterval:   getEnvDuration("WORKER_POLL_INTERVAL", 5*time.Second),
		WorkerJobTimeout:     getEnvDuration("WORKER_JOB_TIMEOUT", 2*time.Minute),
		WorkerRetryBaseDelay: getEnvDuration("WORKER_RETRY_BASE_DELAY", 30*time.Second),
		WorkerStaleThreshold: getEnvDuration("WORKER_STALE_THRESHOLD", 10*time.Minute),

		// Metrics authentication
		MetricsUsername: getEnv("METRICS_USERNAME", ""),
		MetricsPassword: getEnv("METRICS_PASSWORD", ""),
	}

	// Required
	cfg.DatabaseUrl = os.Getenv("DATABASE_URL")
	if cfg.DatabaseUrl == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	// Validate storage configuration
	if cfg.StorageProvider == "s3" {
		if cfg.S3AccessKeyID == "" {
			return nil, fmt.Errorf("S3_ACCESS_KEY_ID is required when STORAGE_PROVIDER is 's3'")
		}
		if cfg.S3SecretAccessKey == "" {
			return nil, fmt.Errorf("S3_SECRET_ACCESS_KEY is required when STORAGE_PROVIDER is 's3'")
		}
		if cfg.S3BucketName == "" {
			return nil, fmt.Errorf("S3_BUCKET_NAME is required when STORAGE_PROVIDER is 's3'")
		}
	} else if cfg.StorageProvider != "local" {
		return nil, fmt.Errorf("STORAGE_PROVIDER must be either 'local' or 's3', got: %s", cfg.StorageProvider)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
