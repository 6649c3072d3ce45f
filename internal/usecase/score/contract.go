package score

import (
	"newsloom/internal/config"
)

// AdmissionContract captures one of the two independent scoring scales
// spec.md §4.4 allows (0-100 or 0-1000); picking the strategy once at
// construction keeps the scoring logic itself contract-agnostic instead of
// branching on config.AdmissionContract throughout Service.Score.
type AdmissionContract interface {
	// Name identifies the contract for logging/metrics.
	Name() string

	// MaxScore is the top of this contract's scale (100 or 1000).
	MaxScore() float64

	// Threshold is the minimum score to admit a candidate.
	Threshold() float64

	// NeutralDefault is the score assigned to a batch that persistently
	// fails to score, per spec.md §4.4's failure model. It sits below
	// Threshold so the affected articles are rejected rather than admitted
	// on faith.
	NeutralDefault() float64
}

type contractA struct{ threshold int }

func (c contractA) Name() string            { return "A" }
func (c contractA) MaxScore() float64       { return 100 }
func (c contractA) Threshold() float64      { return float64(c.threshold) }
func (c contractA) NeutralDefault() float64 { return 0 }

type contractB struct{ threshold int }

func (c contractB) Name() string            { return "B" }
func (c contractB) MaxScore() float64       { return 1000 }
func (c contractB) Threshold() float64      { return float64(c.threshold) }
func (c contractB) NeutralDefault() float64 { return 0 }

// NewAdmissionContract builds the AdmissionContract named by cfg.Contract.
func NewAdmissionContract(cfg config.ScoreConfig) AdmissionContract {
	if cfg.Contract == config.ContractB {
		return contractB{threshold: cfg.Threshold}
	}
	return contractA{threshold: cfg.Threshold}
}
