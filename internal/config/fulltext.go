package config

import (
	"fmt"
	"log/slog"
	"time"

	"newsloom/internal/pkg/config"
)

// FulltextConfig holds configuration for the Full-Text Fetcher (C6): fetch
// security/size limits and the worker pool bound from spec.md §4.6's
// "fan-out bounded (default 5-10 workers)".
type FulltextConfig struct {
	// Workers bounds concurrent full-text fetches per cycle.
	// Default: 8, env FULLTEXT_WORKERS.
	Workers int

	// Timeout bounds a single tier-1 HTTP GET.
	// Default: 10s, env FULLTEXT_TIMEOUT_S (integer seconds).
	Timeout time.Duration

	// MaxBodySize is the maximum response body read before rejecting, in
	// bytes. Default: 10MB, env FULLTEXT_MAX_BODY_BYTES.
	MaxBodySize int64

	// MaxRedirects is the maximum redirect chain length followed.
	// Default: 5, env FULLTEXT_MAX_REDIRECTS.
	MaxRedirects int

	// DenyPrivateIPs enables SSRF prevention by rejecting hostnames that
	// resolve to loopback/private/link-local addresses. Default: true,
	// env FULLTEXT_DENY_PRIVATE_IPS.
	DenyPrivateIPs bool
}

// DefaultFulltextConfig returns a FulltextConfig with the spec's default
// values.
func DefaultFulltextConfig() FulltextConfig {
	return FulltextConfig{
		Workers:        8,
		Timeout:        10 * time.Second,
		MaxBodySize:    10 * 1024 * 1024,
		MaxRedirects:   5,
		DenyPrivateIPs: true,
	}
}

// Validate checks the configuration, aggregating every field error.
func (c *FulltextConfig) Validate() error {
	var errs []error

	if err := config.ValidateIntRange(c.Workers, 1, 50); err != nil {
		errs = append(errs, fmt.Errorf("fulltext workers: %w", err))
	}
	if err := config.ValidatePositiveDuration(c.Timeout); err != nil {
		errs = append(errs, fmt.Errorf("fulltext timeout: %w", err))
	}
	if c.MaxBodySize < 1024 || c.MaxBodySize > 100*1024*1024 {
		errs = append(errs, fmt.Errorf("fulltext max body size must be between 1KB and 100MB, got %d", c.MaxBodySize))
	}
	if err := config.ValidateIntRange(c.MaxRedirects, 0, 10); err != nil {
		errs = append(errs, fmt.Errorf("fulltext max redirects: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed: %v", errs)
	}
	return nil
}

// LoadFulltextConfig loads full-text fetcher configuration from the
// environment with validation and fail-open fallback to defaults.
//
// Environment variables:
//   - FULLTEXT_WORKERS: integer 1-50 (default 8)
//   - FULLTEXT_TIMEOUT_S: integer seconds, 1-120 (default 10)
//   - FULLTEXT_MAX_BODY_BYTES: integer bytes, 1024-104857600 (default 10485760)
//   - FULLTEXT_MAX_REDIRECTS: integer 0-10 (default 5)
//   - FULLTEXT_DENY_PRIVATE_IPS: bool (default true)
func LoadFulltextConfig(logger *slog.Logger, metrics *config.ConfigMetrics) FulltextConfig {
	cfg := DefaultFulltextConfig()
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

	workersResult := config.LoadEnvInt("FULLTEXT_WORKERS", cfg.Workers, func(v int) error {
		return config.ValidateIntRange(v, 1, 50)
	})
	cfg.Workers = workersResult.Value.(int)
	apply("fulltext_workers", workersResult)

	timeoutResult := config.LoadEnvInt("FULLTEXT_TIMEOUT_S", int(cfg.Timeout/time.Second), func(v int) error {
		return config.ValidateIntRange(v, 1, 120)
	})
	cfg.Timeout = time.Duration(timeoutResult.Value.(int)) * time.Second
	apply("fulltext_timeout", timeoutResult)

	maxBodyResult := config.LoadEnvInt("FULLTEXT_MAX_BODY_BYTES", int(cfg.MaxBodySize), func(v int) error {
		if v < 1024 || v > 100*1024*1024 {
			return fmt.Errorf("must be between 1024 and %d", 100*1024*1024)
		}
		return nil
	})
	cfg.MaxBodySize = int64(maxBodyResult.Value.(int))
	apply("fulltext_max_body_bytes", maxBodyResult)

	maxRedirectsResult := config.LoadEnvInt("FULLTEXT_MAX_REDIRECTS", cfg.MaxRedirects, func(v int) error {
		return config.ValidateIntRange(v, 0, 10)
	})
	cfg.MaxRedirects = maxRedirectsResult.Value.(int)
	apply("fulltext_max_redirects", maxRedirectsResult)

	denyPrivateResult := config.LoadEnvBool("FULLTEXT_DENY_PRIVATE_IPS", cfg.DenyPrivateIPs)
	cfg.DenyPrivateIPs = denyPrivateResult.Value.(bool)

	metrics.SetFallbackActive("fulltext", fallbackApplied)
	metrics.RecordLoadTimestamp()

	return cfg
}
