package config

import (
	"fmt"
	"log/slog"
	"time"

	"newsloom/internal/pkg/config"
)

// LockConfig holds configuration for the run-lock stage (C12): how long a
// cycle may hold the lock before a subsequent cycle is allowed to reclaim
// it as stale.
type LockConfig struct {
	// Timeout is the age beyond which an `is_running` lock row is
	// considered stale and reclaimable. Default: 30m, env
	// RUN_LOCK_TIMEOUT_MIN (integer minutes).
	Timeout time.Duration
}

// DefaultLockConfig returns a LockConfig with the spec's default timeout.
func DefaultLockConfig() LockConfig {
	return LockConfig{
		Timeout: 30 * time.Minute,
	}
}

// Validate checks the configuration.
func (c *LockConfig) Validate() error {
	if err := config.ValidatePositiveDuration(c.Timeout); err != nil {
		return fmt.Errorf("run lock timeout: %w", err)
	}
	return nil
}

// LoadLockConfig loads run-lock configuration from the environment with
// validation and fail-open fallback to defaults.
//
// Environment variables:
//   - RUN_LOCK_TIMEOUT_MIN: integer minutes, 1-1440 (default 30)
func LoadLockConfig(logger *slog.Logger, metrics *config.ConfigMetrics) LockConfig {
	cfg := DefaultLockConfig()
	fallbackApplied := false

	timeoutMinResult := config.LoadEnvInt("RUN_LOCK_TIMEOUT_MIN", int(cfg.Timeout/time.Minute), func(v int) error {
		return config.ValidateIntRange(v, 1, 1440)
	})
	cfg.Timeout = time.Duration(timeoutMinResult.Value.(int)) * time.Minute

	if timeoutMinResult.FallbackApplied {
		fallbackApplied = true
		metrics.RecordValidationError("run_lock_timeout")
		metrics.RecordFallback("run_lock_timeout", "default")
		for _, warning := range timeoutMinResult.Warnings {
			logger.Warn("configuration fallback applied",
				slog.String("field", "run_lock_timeout"), slog.String("warning", warning))
		}
	}

	metrics.SetFallbackActive("lock", fallbackApplied)
	metrics.RecordLoadTimestamp()

	return cfg
}
