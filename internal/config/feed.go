package config

import (
	"fmt"
	"log/slog"
	"time"

	"newsloom/internal/pkg/config"
)

// FeedConfig holds configuration for the feed fetch stage (C2): how many
// sources are fetched concurrently and how long a single feed GET may take.
type FeedConfig struct {
	// Workers bounds the number of sources fetched concurrently.
	// Default: 30, env FEED_WORKERS.
	Workers int

	// FetchTimeout bounds a single feed GET.
	// Default: 10s, env FETCH_TIMEOUT_S (integer seconds).
	FetchTimeout time.Duration
}

// DefaultFeedConfig returns a FeedConfig with the spec's default values.
func DefaultFeedConfig() FeedConfig {
	return FeedConfig{
		Workers:      30,
		FetchTimeout: 10 * time.Second,
	}
}

// Validate checks the configuration, aggregating every field error.
func (c *FeedConfig) Validate() error {
	var errs []error

	if err := config.ValidateIntRange(c.Workers, 1, 200); err != nil {
		errs = append(errs, fmt.Errorf("feed workers: %w", err))
	}
	if err := config.ValidatePositiveDuration(c.FetchTimeout); err != nil {
		errs = append(errs, fmt.Errorf("fetch timeout: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed: %v", errs)
	}
	return nil
}

// LoadFeedConfig loads feed configuration from the environment with
// validation and fail-open fallback to defaults.
//
// Environment variables:
//   - FEED_WORKERS: integer 1-200 (default 30)
//   - FETCH_TIMEOUT_S: integer seconds, 1-120 (default 10)
func LoadFeedConfig(logger *slog.Logger, metrics *config.ConfigMetrics) FeedConfig {
	cfg := DefaultFeedConfig()
	fallbackApplied := false

	apply := func(field string, result config.ConfigLoadResult) {
		if !result.FallbackApplied {
			return
		}
		fallbackApplied = true
		metrics.RecordValidationError(field)
		metrics.RecordFallback(field, "default")
		for _, warning := range result.Warnings {
			logger.Warn("configuration fallback applied",
				slog.String("field", field), slog.String("warning", warning))
		}
	}

	workersResult := config.LoadEnvInt("FEED_WORKERS", cfg.Workers, func(v int) error {
		return config.ValidateIntRange(v, 1, 200)
	})
	cfg.Workers = workersResult.Value.(int)
	apply("feed_workers", workersResult)

	timeoutSecResult := config.LoadEnvInt("FETCH_TIMEOUT_S", int(cfg.FetchTimeout/time.Second), func(v int) error {
		return config.ValidateIntRange(v, 1, 120)
	})
	cfg.FetchTimeout = time.Duration(timeoutSecResult.Value.(int)) * time.Second
	apply("fetch_timeout", timeoutSecResult)

	metrics.SetFallbackActive("feed", fallbackApplied)
	metrics.RecordLoadTimestamp()

	return cfg
}
