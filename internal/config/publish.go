package config

import (
	"fmt"
	"log/slog"
	"time"

	"newsloom/internal/pkg/config"
)

// PublishConfig holds configuration for the publish/revision stage (C11):
// the two revision triggers (a high-value new source, or enough new
// sources accumulating) and their shared cooldown (§9 open question:
// the spec assumes one shared cooldown per cluster).
type PublishConfig struct {
	// HighScoreThreshold is the display score above which a single new
	// source triggers an immediate revision. Default: 850, env
	// UPDATE_HIGH_SCORE.
	HighScoreThreshold int

	// SourceDelta is the number of additional sources since the last
	// publish/revision that triggers a revision. Default: 4, env
	// UPDATE_SOURCE_DELTA.
	SourceDelta int

	// Cooldown is the minimum time between revisions of the same
	// published article, shared by both triggers. Default: 30m, env
	// UPDATE_COOLDOWN_MIN (integer minutes).
	Cooldown time.Duration
}

// DefaultPublishConfig returns a PublishConfig with the spec's default
// revision-trigger values.
func DefaultPublishConfig() PublishConfig {
	return PublishConfig{
		HighScoreThreshold: 850,
		SourceDelta:        4,
		Cooldown:           30 * time.Minute,
	}
}

// Validate checks the configuration.
func (c *PublishConfig) Validate() error {
	var errs []error

	if err := config.ValidateIntRange(c.HighScoreThreshold, 0, 1000); err != nil {
		errs = append(errs, fmt.Errorf("update high score: %w", err))
	}
	if err := config.ValidateIntRange(c.SourceDelta, 1, 100); err != nil {
		errs = append(errs, fmt.Errorf("update source delta: %w", err))
	}
	if err := config.ValidatePositiveDuration(c.Cooldown); err != nil {
		errs = append(errs, fmt.Errorf("update cooldown: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed: %v", errs)
	}
	return nil
}

// LoadPublishConfig loads publish/revision configuration from the
// environment with validation and fail-open fallback to defaults.
//
// Environment variables:
//   - UPDATE_HIGH_SCORE: integer 0-1000 (default 850)
//   - UPDATE_SOURCE_DELTA: integer 1-100 (default 4)
//   - UPDATE_COOLDOWN_MIN: integer minutes, 1-1440 (default 30)
func LoadPublishConfig(logger *slog.Logger, metrics *config.ConfigMetrics) PublishConfig {
	cfg := DefaultPublishConfig()
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

	highScoreResult := config.LoadEnvInt("UPDATE_HIGH_SCORE", cfg.HighScoreThreshold, func(v int) error {
		return config.ValidateIntRange(v, 0, 1000)
	})
	cfg.HighScoreThreshold = highScoreResult.Value.(int)
	apply("update_high_score", highScoreResult)

	deltaResult := config.LoadEnvInt("UPDATE_SOURCE_DELTA", cfg.SourceDelta, func(v int) error {
		return config.ValidateIntRange(v, 1, 100)
	})
	cfg.SourceDelta = deltaResult.Value.(int)
	apply("update_source_delta", deltaResult)

	cooldownMinResult := config.LoadEnvInt("UPDATE_COOLDOWN_MIN", int(cfg.Cooldown/time.Minute), func(v int) error {
		return config.ValidateIntRange(v, 1, 1440)
	})
	cfg.Cooldown = time.Duration(cooldownMinResult.Value.(int)) * time.Minute
	apply("update_cooldown", cooldownMinResult)

	metrics.SetFallbackActive("publish", fallbackApplied)
	metrics.RecordLoadTimestamp()

	return cfg
}
