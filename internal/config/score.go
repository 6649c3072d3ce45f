package config

import (
	"fmt"
	"log/slog"

	"newsloom/internal/pkg/config"
)

// AdmissionContract names which admission-score contract (§9 open question)
// a deployment has picked: A is 0-100/threshold 70, B is 0-1000/threshold
// 700. Exactly one must be active; the spec forbids mixing them.
type AdmissionContract string

const (
	ContractA AdmissionContract = "A"
	ContractB AdmissionContract = "B"
)

// ScoreConfig holds configuration for the admission scorer (C4): batch size
// for LLM calls and the admission contract in force.
type ScoreConfig struct {
	// BatchSize is the number of candidates sent to the scorer per LLM call.
	// Default: 30, env SCORE_BATCH_SIZE.
	BatchSize int

	// Contract selects the 0-100 or 0-1000 admission scale.
	// Default: ContractA, env ADMISSION_CONTRACT (A|B).
	Contract AdmissionContract

	// Threshold is the minimum score (on Contract's scale) to admit a
	// candidate. Default: 70 for contract A, 700 for contract B, env
	// SCORE_THRESHOLD.
	Threshold int
}

// DefaultScoreConfig returns a ScoreConfig using contract A's defaults.
func DefaultScoreConfig() ScoreConfig {
	return ScoreConfig{
		BatchSize: 30,
		Contract:  ContractA,
		Threshold: 70,
	}
}

func validateAdmissionContract(v string) error {
	switch AdmissionContract(v) {
	case ContractA, ContractB:
		return nil
	default:
		return fmt.Errorf("admission contract must be 'A' or 'B', got %q", v)
	}
}

// Validate checks the configuration, including that Threshold is sane for
// the selected Contract's scale.
func (c *ScoreConfig) Validate() error {
	var errs []error

	if err := config.ValidateIntRange(c.BatchSize, 1, 200); err != nil {
		errs = append(errs, fmt.Errorf("score batch size: %w", err))
	}
	if err := validateAdmissionContract(string(c.Contract)); err != nil {
		errs = append(errs, fmt.Errorf("admission contract: %w", err))
	}

	maxThreshold := 100
	if c.Contract == ContractB {
		maxThreshold = 1000
	}
	if err := config.ValidateIntRange(c.Threshold, 0, maxThreshold); err != nil {
		errs = append(errs, fmt.Errorf("score threshold: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed: %v", errs)
	}
	return nil
}

// LoadScoreConfig loads score configuration from the environment with
// validation and fail-open fallback to defaults. The default Threshold
// tracks whichever Contract is selected (70 for A, 700 for B) unless
// SCORE_THRESHOLD is set explicitly.
//
// Environment variables:
//   - SCORE_BATCH_SIZE: integer 1-200 (default 30)
//   - ADMISSION_CONTRACT: "A" or "B" (default "A")
//   - SCORE_THRESHOLD: integer within the selected contract's scale
//     (default 70 for A, 700 for B)
func LoadScoreConfig(logger *slog.Logger, metrics *config.ConfigMetrics) ScoreConfig {
	cfg := DefaultScoreConfig()
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

	batchResult := config.LoadEnvInt("SCORE_BATCH_SIZE", cfg.BatchSize, func(v int) error {
		return config.ValidateIntRange(v, 1, 200)
	})
	cfg.BatchSize = batchResult.Value.(int)
	apply("score_batch_size", batchResult)

	contractResult := config.LoadEnvWithFallback("ADMISSION_CONTRACT", string(cfg.Contract), validateAdmissionContract)
	cfg.Contract = AdmissionContract(contractResult.Value.(string))
	apply("admission_contract", contractResult)

	defaultThreshold := 70
	if cfg.Contract == ContractB {
		defaultThreshold = 700
	}
	maxThreshold := 100
	if cfg.Contract == ContractB {
		maxThreshold = 1000
	}
	thresholdResult := config.LoadEnvInt("SCORE_THRESHOLD", defaultThreshold, func(v int) error {
		return config.ValidateIntRange(v, 0, maxThreshold)
	})
	cfg.Threshold = thresholdResult.Value.(int)
	apply("score_threshold", thresholdResult)

	metrics.SetFallbackActive("score", fallbackApplied)
	metrics.RecordLoadTimestamp()

	return cfg
}
