package config

import (
	"fmt"
	"log/slog"
	"time"

	"newsloom/internal/pkg/config"
)

// ClusterConfig holds configuration for the clustering engine (C5):
// similarity thresholds and cluster lifecycle timeouts.
type ClusterConfig struct {
	// THigh is the cosine-similarity threshold above which two articles are
	// assigned to the same cluster outright. Default: 0.87, env
	// CLUSTER_T_HIGH.
	THigh float64

	// TMid is the cosine-similarity threshold above which a lexical
	// (Jaccard) check is also consulted before merging. Default: 0.78, env
	// CLUSTER_T_MID.
	TMid float64

	// Jaccard is the minimum token-overlap ratio required alongside TMid
	// for a same-cluster decision. Default: 0.35, env CLUSTER_JACCARD.
	Jaccard float64

	// IdleTimeout marks a cluster eligible for closure once it has
	// received no new sources for this long. Default: 24h, env
	// CLUSTER_IDLE_HOURS (integer hours).
	IdleTimeout time.Duration

	// MaxAge force-closes a cluster once it has been active this long,
	// regardless of recent activity. Default: 48h, env CLUSTER_MAX_HOURS
	// (integer hours).
	MaxAge time.Duration
}

// DefaultClusterConfig returns a ClusterConfig with the spec's default
// thresholds.
func DefaultClusterConfig() ClusterConfig {
	return ClusterConfig{
		THigh:       0.87,
		TMid:        0.78,
		Jaccard:     0.35,
		IdleTimeout: 24 * time.Hour,
		MaxAge:      48 * time.Hour,
	}
}

// Validate checks the configuration, including that THigh >= TMid and
// MaxAge >= IdleTimeout (a cluster cannot idle out after it was already
// force-closed).
func (c *ClusterConfig) Validate() error {
	var errs []error

	if err := config.ValidateFloatRange(c.THigh, 0.0, 1.0); err != nil {
		errs = append(errs, fmt.Errorf("cluster t_high: %w", err))
	}
	if err := config.ValidateFloatRange(c.TMid, 0.0, 1.0); err != nil {
		errs = append(errs, fmt.Errorf("cluster t_mid: %w", err))
	}
	if err := config.ValidateFloatRange(c.Jaccard, 0.0, 1.0); err != nil {
		errs = append(errs, fmt.Errorf("cluster jaccard: %w", err))
	}
	if c.THigh < c.TMid {
		errs = append(errs, fmt.Errorf("cluster t_high (%v) must be >= t_mid (%v)", c.THigh, c.TMid))
	}
	if err := config.ValidatePositiveDuration(c.IdleTimeout); err != nil {
		errs = append(errs, fmt.Errorf("cluster idle timeout: %w", err))
	}
	if err := config.ValidatePositiveDuration(c.MaxAge); err != nil {
		errs = append(errs, fmt.Errorf("cluster max age: %w", err))
	}
	if c.MaxAge < c.IdleTimeout {
		errs = append(errs, fmt.Errorf("cluster max age (%v) must be >= idle timeout (%v)", c.MaxAge, c.IdleTimeout))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed: %v", errs)
	}
	return nil
}

// LoadClusterConfig loads clustering configuration from the environment
// with validation and fail-open fallback to defaults.
//
// Environment variables:
//   - CLUSTER_T_HIGH: float 0.0-1.0 (default 0.87)
//   - CLUSTER_T_MID: float 0.0-1.0 (default 0.78)
//   - CLUSTER_JACCARD: float 0.0-1.0 (default 0.35)
//   - CLUSTER_IDLE_HOURS: integer hours, 1-168 (default 24)
//   - CLUSTER_MAX_HOURS: integer hours, 1-336 (default 48)
func LoadClusterConfig(logger *slog.Logger, metrics *config.ConfigMetrics) ClusterConfig {
	cfg := DefaultClusterConfig()
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

	tHighResult := config.LoadEnvFloat("CLUSTER_T_HIGH", cfg.THigh, func(v float64) error {
		return config.ValidateFloatRange(v, 0.0, 1.0)
	})
	cfg.THigh = tHighResult.Value.(float64)
	apply("cluster_t_high", tHighResult)

	tMidResult := config.LoadEnvFloat("CLUSTER_T_MID", cfg.TMid, func(v float64) error {
		return config.ValidateFloatRange(v, 0.0, 1.0)
	})
	cfg.TMid = tMidResult.Value.(float64)
	apply("cluster_t_mid", tMidResult)

	jaccardResult := config.LoadEnvFloat("CLUSTER_JACCARD", cfg.Jaccard, func(v float64) error {
		return config.ValidateFloatRange(v, 0.0, 1.0)
	})
	cfg.Jaccard = jaccardResult.Value.(float64)
	apply("cluster_jaccard", jaccardResult)

	idleHoursResult := config.LoadEnvInt("CLUSTER_IDLE_HOURS", int(cfg.IdleTimeout/time.Hour), func(v int) error {
		return config.ValidateIntRange(v, 1, 168)
	})
	cfg.IdleTimeout = time.Duration(idleHoursResult.Value.(int)) * time.Hour
	apply("cluster_idle_hours", idleHoursResult)

	maxHoursResult := config.LoadEnvInt("CLUSTER_MAX_HOURS", int(cfg.MaxAge/time.Hour), func(v int) error {
		return config.ValidateIntRange(v, 1, 336)
	})
	cfg.MaxAge = time.Duration(maxHoursResult.Value.(int)) * time.Hour
	apply("cluster_max_hours", maxHoursResult)

	metrics.SetFallbackActive("cluster", fallbackApplied)
	metrics.RecordLoadTimestamp()

	return cfg
}
