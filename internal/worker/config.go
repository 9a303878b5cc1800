package worker

import (
	"fmt"
	"time"
)

// Config holds the configuration for the background job worker pool.
type Config struct {
	// Concurrency is the number of worker goroutines polling for jobs.
	// Default: 2
	Concurrency int

	// PollInterval is how often each worker checks for new jobs when
	// idle. Default: 5 seconds
	PollInterval time.Duration

	// JobTimeout is the wall-clock cap for a single job. Exceeding it
	// cancels the job's context and counts as a failure. Default: 2 minutes
	JobTimeout time.Duration

	// ShutdownTimeout is how long to wait for running jobs during
	// graceful shutdown. Default: 30 seconds
	ShutdownTimeout time.Duration

	// RetryBaseDelay is the first retry delay; subsequent retries back
	// off exponentially with jitter. Default: 30 seconds
	RetryBaseDelay time.Duration

	// StaleThreshold defines how old a running job, or a design stuck in
	// rendering, must be before the periodic sweep recovers it.
	// Default: 10 minutes
	StaleThreshold time.Duration
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		Concurrency:     2,
		PollInterval:    5 * time.Second,
		JobTimeout:      2 * time.Minute,
		ShutdownTimeout: 30 * time.Second,
		RetryBaseDelay:  30 * time.Second,
		StaleThreshold:  10 * time.Minute,
	}
}

// Validate checks if the configuration is valid.
func (c Config) Validate() error {
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency)
	}
	if c.Concurrency > 100 {
		return fmt.Errorf("concurrency too high (max 100), got %d", c.Concurrency)
	}
	if c.PollInterval < 100*time.Millisecond {
		return fmt.Errorf("poll interval must be at least 100ms, got %v", c.PollInterval)
	}
	if c.JobTimeout < 1*time.Second {
		return fmt.Errorf("job timeout must be at least 1 second, got %v", c.JobTimeout)
	}
	if c.ShutdownTimeout < 1*time.Second {
		return fmt.Errorf("shutdown timeout must be at least 1 second, got %v", c.ShutdownTimeout)
	}
	if c.RetryBaseDelay < 1*time.Second {
		return fmt.Errorf("retry base delay must be at least 1 second, got %v", c.RetryBaseDelay)
	}
	if c.StaleThreshold < 1*time.Minute {
		return fmt.Errorf("stale threshold must be at least 1 minute, got %v", c.StaleThreshold)
	}
	return nil
}
