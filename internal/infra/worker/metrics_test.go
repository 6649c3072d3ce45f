package worker

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewOrchestratorMetrics(t *testing.T) {
	metrics := globalTestMetrics

	if metrics == nil {
		t.Fatal("NewOrchestratorMetrics returned nil")
	}
	if metrics.ConfigMetrics == nil {
		t.Error("ConfigMetrics is nil")
	}
	if metrics.CycleRunsTotal == nil {
		t.Error("CycleRunsTotal is nil")
	}
	if metrics.CycleDurationSeconds == nil {
		t.Error("CycleDurationSeconds is nil")
	}
	if metrics.CycleArticlesFetchedTotal == nil {
		t.Error("CycleArticlesFetchedTotal is nil")
	}
	if metrics.CycleLastSuccessTimestamp == nil {
		t.Error("CycleLastSuccessTimestamp is nil")
	}
}

func TestOrchestratorMetrics_RecordCycleRun(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "test_pipeline_cycle_runs_total",
		Help: "Test counter",
	}, []string{"outcome"})
	reg.MustRegister(counter)

	metrics := &OrchestratorMetrics{CycleRunsTotal: counter}

	metrics.RecordCycleRun("success")
	metrics.RecordCycleRun("success")
	metrics.RecordCycleRun("failed")

	if got := testutil.ToFloat64(metrics.CycleRunsTotal.WithLabelValues("success")); got != 2 {
		t.Errorf("Expected success count 2, got %f", got)
	}
	if got := testutil.ToFloat64(metrics.CycleRunsTotal.WithLabelValues("failed")); got != 1 {
		t.Errorf("Expected failed count 1, got %f", got)
	}
}

func TestOrchestratorMetrics_RecordCycleDuration(t *testing.T) {
	reg := prometheus.NewRegistry()
	histogram := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "test_pipeline_cycle_duration_seconds",
		Help:    "Test histogram",
		Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1200},
	})
	reg.MustRegister(histogram)

	metrics := &OrchestratorMetrics{CycleDurationSeconds: histogram}

	metrics.RecordCycleDuration(30.0)
	metrics.RecordCycleDuration(120.0)
	metrics.RecordCycleDuration(600.0)

	metricFamilies, err := reg.Gather()
	if err != nil {
		t.Fatalf("Failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range metricFamilies {
		if mf.GetName() == "test_pipeline_cycle_duration_seconds" {
			found = true
			if mf.GetMetric()[0].GetHistogram().GetSampleCount() != 3 {
				t.Errorf("Expected 3 observations, got %d", mf.GetMetric()[0].GetHistogram().GetSampleCount())
			}
		}
	}
	if !found {
		t.Error("Histogram metric not found in registry")
	}
}

func TestOrchestratorMetrics_RecordArticlesFetched(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "test_pipeline_cycle_articles_fetched_total",
		Help: "Test counter",
	})
	reg.MustRegister(counter)

	metrics := &OrchestratorMetrics{CycleArticlesFetchedTotal: counter}

	metrics.RecordArticlesFetched(10)
	metrics.RecordArticlesFetched(25)

	if got := testutil.ToFloat64(metrics.CycleArticlesFetchedTotal); got != 35 {
		t.Errorf("Expected total 35, got %f", got)
	}
}

func TestOrchestratorMetrics_RecordLastSuccess(t *testing.T) {
	reg := prometheus.NewRegistry()
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "test_pipeline_cycle_last_success_timestamp",
		Help: "Test gauge",
	})
	reg.MustRegister(gauge)

	metrics := &OrchestratorMetrics{CycleLastSuccessTimestamp: gauge}

	if got := testutil.ToFloat64(metrics.CycleLastSuccessTimestamp); got != 0 {
		t.Errorf("Expected initial value 0, got %f", got)
	}

	metrics.RecordLastSuccess()

	if got := testutil.ToFloat64(metrics.CycleLastSuccessTimestamp); got <= 0 {
		t.Errorf("Expected positive timestamp, got %f", got)
	}
}

func TestOrchestratorMetrics_ConcurrentAccess(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "test_pipeline_cycle_runs_concurrent",
		Help: "Test counter",
	}, []string{"outcome"})
	reg.MustRegister(counter)

	articlesCounter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "test_pipeline_cycle_articles_concurrent",
		Help: "Test counter",
	})
	reg.MustRegister(articlesCounter)

	metrics := &OrchestratorMetrics{
		CycleRunsTotal:            counter,
		CycleArticlesFetchedTotal: articlesCounter,
	}

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func() {
			metrics.RecordCycleRun("success")
			metrics.RecordArticlesFetched(1)
			done <- true
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}

	if got := testutil.ToFloat64(metrics.CycleRunsTotal.WithLabelValues("success")); got != 10 {
		t.Errorf("Expected 10 successful runs, got %f", got)
	}
	if got := testutil.ToFloat64(metrics.CycleArticlesFetchedTotal); got != 10 {
		t.Errorf("Expected 10 total articles, got %f", got)
	}
}
