package worker

import (
	"fmt"
	"log/slog"
	"time"

	"newsloom/internal/pkg/config"
)

// OrchestratorConfig holds the configuration for the pipeline's serve mode:
// the cron fallback schedule, timezone, per-cycle deadline, and the
// operational health server.
//
// Configuration sources:
//   - Environment variables (loaded via LoadConfigFromEnv)
//   - Default values (provided by DefaultConfig)
type OrchestratorConfig struct {
	// CronSchedule is the cron expression for the periodic fallback tick
	// that runs a cycle if no external trigger has fired recently.
	// Default: "*/15 * * * *" (every 15 minutes)
	CronSchedule string

	// Timezone is the IANA timezone name used to interpret CronSchedule.
	// Default: "UTC"
	Timezone string

	// CycleDeadline bounds the wall-clock time a single cycle may run
	// before the orchestrator aborts it and reports a failed cycle.
	// Default: 30 minutes, set via CYCLE_DEADLINE_MIN (integer minutes).
	CycleDeadline time.Duration

	// HealthPort is the port for the liveness/readiness HTTP server.
	// Default: 9091
	HealthPort int
}

// DefaultConfig returns an OrchestratorConfig with sensible default values.
func DefaultConfig() OrchestratorConfig {
	return OrchestratorConfig{
		CronSchedule:  "*/15 * * * *",
		Timezone:      "UTC",
		CycleDeadline: 30 * time.Minute,
		HealthPort:    9091,
	}
}

// Validate checks if the configuration values are valid, collecting all
// field errors together rather than failing on the first one.
func (c *OrchestratorConfig) Validate() error {
	var errs []error

	if err := config.ValidateCronSchedule(c.CronSchedule); err != nil {
		errs = append(errs, fmt.Errorf("cron schedule: %w", err))
	}
	if err := config.ValidateTimezone(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("timezone: %w", err))
	}
	if err := config.ValidatePositiveDuration(c.CycleDeadline); err != nil {
		errs = append(errs, fmt.Errorf("cycle deadline: %w", err))
	}
	if err := config.ValidateIntRange(c.HealthPort, 1024, 65535); err != nil {
		errs = append(errs, fmt.Errorf("health port: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed: %v", errs)
	}
	return nil
}

// LoadConfigFromEnv loads orchestrator configuration from environment
// variables with validation and automatic fallback to default values,
// following the fail-open strategy: an invalid field logs a warning,
// increments a metric, and falls back to its default rather than
// aborting startup.
//
// Environment variables:
//   - PIPELINE_CRON_SCHEDULE: cron expression (default "*/15 * * * *")
//   - PIPELINE_TIMEZONE: IANA timezone name (default "UTC")
//   - CYCLE_DEADLINE_MIN: integer minutes, 1-120 (default 30)
//   - PIPELINE_HEALTH_PORT: integer 1024-65535 (default 9091)
func LoadConfigFromEnv(logger *slog.Logger, metrics *OrchestratorMetrics) (*OrchestratorConfig, error) {
	cfg := DefaultConfig()
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
				slog.String("field", field),
				slog.String("warning", warning))
		}
	}

	result := config.LoadEnvWithFallback("PIPELINE_CRON_SCHEDULE", cfg.CronSchedule, config.ValidateCronSchedule)
	cfg.CronSchedule = result.Value.(string)
	apply("cron_schedule", result)

	result = config.LoadEnvWithFallback("PIPELINE_TIMEZONE", cfg.Timezone, config.ValidateTimezone)
	cfg.Timezone = result.Value.(string)
	apply("timezone", result)

	minutesResult := config.LoadEnvInt("CYCLE_DEADLINE_MIN", int(cfg.CycleDeadline/time.Minute), func(v int) error {
		return config.ValidateIntRange(v, 1, 120)
	})
	cfg.CycleDeadline = time.Duration(minutesResult.Value.(int)) * time.Minute
	apply("cycle_deadline", minutesResult)

	result = config.LoadEnvInt("PIPELINE_HEALTH_PORT", cfg.HealthPort, func(v int) error {
		return config.ValidateIntRange(v, 1024, 65535)
	})
	cfg.HealthPort = result.Value.(int)
	apply("health_port", result)

	metrics.SetFallbackActive("", fallbackApplied)
	metrics.RecordLoadTimestamp()

	return &cfg, nil
}
