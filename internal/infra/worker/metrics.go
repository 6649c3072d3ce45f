package worker

import (
	"newsloom/internal/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// OrchestratorMetrics provides Prometheus metrics for the pipeline's serve
// mode: configuration fallback tracking (embedded from ConfigMetrics) plus
// per-cycle run counters.
type OrchestratorMetrics struct {
	*config.ConfigMetrics

	// CycleRunsTotal counts orchestrator cycle runs by outcome
	// (success, skipped, failed).
	CycleRunsTotal *prometheus.CounterVec

	// CycleDurationSeconds measures end-to-end cycle duration.
	CycleDurationSeconds prometheus.Histogram

	// CycleArticlesFetchedTotal counts raw articles fetched per cycle run.
	CycleArticlesFetchedTotal prometheus.Counter

	// CycleLastSuccessTimestamp records the Unix timestamp of the last
	// successful cycle.
	CycleLastSuccessTimestamp prometheus.Gauge
}

// NewOrchestratorMetrics creates a new OrchestratorMetrics instance.
// Metrics are registered with Prometheus automatically via promauto.
func NewOrchestratorMetrics() *OrchestratorMetrics {
	return &OrchestratorMetrics{
		ConfigMetrics: config.NewConfigMetrics("orchestrator"),

		CycleRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeline_cycle_runs_total",
			Help: "Total number of pipeline cycle runs by outcome",
		}, []string{"outcome"}),

		CycleDurationSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "pipeline_cycle_duration_seconds",
			Help:    "Duration of a full pipeline cycle in seconds",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1200},
		}),

		CycleArticlesFetchedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pipeline_cycle_articles_fetched_total",
			Help: "Total number of raw articles fetched across all cycles",
		}),

		CycleLastSuccessTimestamp: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "pipeline_cycle_last_success_timestamp",
			Help: "Unix timestamp of the last successful pipeline cycle",
		}),
	}
}

// RecordCycleRun increments the cycle counter for the given outcome.
func (m *OrchestratorMetrics) RecordCycleRun(outcome string) {
	m.CycleRunsTotal.WithLabelValues(outcome).Inc()
}

// RecordCycleDuration observes the duration of a completed cycle, in seconds.
func (m *OrchestratorMetrics) RecordCycleDuration(seconds float64) {
	m.CycleDurationSeconds.Observe(seconds)
}

// RecordArticlesFetched adds the number of raw articles fetched in a cycle.
func (m *OrchestratorMetrics) RecordArticlesFetched(count int) {
	m.CycleArticlesFetchedTotal.Add(float64(count))
}

// RecordLastSuccess records the current time as the last successful cycle.
func (m *OrchestratorMetrics) RecordLastSuccess() {
	m.CycleLastSuccessTimestamp.SetToCurrentTime()
}
