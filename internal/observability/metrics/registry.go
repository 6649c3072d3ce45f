// Package metrics provides centralized Prometheus metrics for the application.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics track HTTP request patterns and performance
var (
	// HTTPRequestsTotal counts total HTTP requests by method, path, and status
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration measures HTTP request duration in seconds
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestSize measures HTTP request body size in bytes
	HTTPRequestSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_size_bytes",
			Help:    "HTTP request size in bytes",
			Buckets: prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	// HTTPResponseSize measures HTTP response body size in bytes
	HTTPResponseSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "HTTP response size in bytes",
			Buckets: prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	// ActiveConnections tracks the number of active HTTP connections
	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_active_connections",
			Help: "Number of active HTTP connections",
		},
	)
)

// Pipeline metrics track the C1-C13 stage operations of each cycle.
var (
	// SourceArticlesTotal tracks total number of source articles in the store.
	SourceArticlesTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "source_articles_total",
			Help: "Total number of source articles in the database",
		},
	)

	// SourcesTotal tracks the fixed catalogue size (C1).
	SourcesTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sources_total",
			Help: "Total number of sources in the catalogue",
		},
	)

	// FeedItemsFetchedTotal counts raw feed items fetched from each source (C2).
	FeedItemsFetchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_items_fetched_total",
			Help: "Total number of feed items fetched from sources",
		},
		[]string{"source"},
	)

	// FeedFetchDuration measures time to fetch and parse one source's feed (C2).
	FeedFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "feed_fetch_duration_seconds",
			Help:    "Time taken to fetch one source's feed",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		},
		[]string{"source"},
	)

	// FeedFetchErrorsTotal counts errors during feed fetching (C2).
	FeedFetchErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_fetch_errors_total",
			Help: "Total number of feed fetch errors",
		},
		[]string{"source", "error_type"},
	)

	// DedupDecisionsTotal counts new-vs-duplicate outcomes of the Dedup Gate (C3).
	DedupDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dedup_decisions_total",
			Help: "Total number of dedup gate decisions",
		},
		[]string{"decision"}, // decision: new, duplicate
	)

	// ScoreDecisionsTotal counts admit-vs-reject outcomes of the Scorer (C4).
	ScoreDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "score_decisions_total",
			Help: "Total number of scorer admission decisions",
		},
		[]string{"decision"}, // decision: admit, reject
	)

	// ScoreDuration measures time to score one batch (C4).
	ScoreDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "score_duration_seconds",
			Help:    "Time taken to score one batch of candidates",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		},
	)

	// FullTextFetchAttemptsTotal counts full-text fetch attempts by result (C6).
	FullTextFetchAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fulltext_fetch_attempts_total",
			Help: "Total number of full text fetch attempts",
		},
		[]string{"result"}, // result: success, failure, skipped
	)

	// FullTextFetchDuration measures time to fetch one article's full text (C6).
	FullTextFetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fulltext_fetch_duration_seconds",
			Help:    "Time taken to fetch article full text",
			Buckets: []float64{0.1, 0.2, 0.4, 0.8, 1.6, 3.2, 6.4, 12.8},
		},
	)

	// FullTextFetchSize measures fetched full-text size in bytes (C6).
	FullTextFetchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "fulltext_fetch_size_bytes",
			Help: "Fetched article full text size in bytes",
			Buckets: []float64{
				100, 200, 400, 800, 1600, 3200, 6400, 12800,
				25600, 51200, 102400, 204800, 409600, 819200,
				1638400, 3276800, 6553600, 10485760, // up to 10MB
			},
		},
	)

	// ClustersActiveTotal tracks the current number of active clusters (C5).
	ClustersActiveTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "clusters_active_total",
			Help: "Current number of active clusters",
		},
	)

	// ClusterAssignmentsTotal counts clustering outcomes by kind (C5).
	ClusterAssignmentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cluster_assignments_total",
			Help: "Total number of clustering assignments",
		},
		[]string{"kind"}, // kind: new_cluster, attached
	)

	// PublishedArticlesTotal tracks total published articles in the store (C11).
	PublishedArticlesTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "published_articles_total",
			Help: "Total number of published articles in the database",
		},
	)

	// PublishDecisionsTotal counts publish pipeline outcomes by action (C11).
	PublishDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "publish_decisions_total",
			Help: "Total number of publish decisions",
		},
		[]string{"action"}, // action: insert, revise, skip
	)

	// LifecycleClustersClosedTotal counts clusters closed by the sweeper (C12).
	LifecycleClustersClosedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lifecycle_clusters_closed_total",
			Help: "Total number of clusters closed by the lifecycle sweeper",
		},
	)
)

// Database metrics track database performance
var (
	// DBQueryDuration measures database query duration
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 10),
		},
		[]string{"operation"},
	)

	// DBConnectionsActive tracks active database connections
	DBConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_active",
			Help: "Number of active database connections",
		},
	)

	// DBConnectionsIdle tracks idle database connections
	DBConnectionsIdle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_idle",
			Help: "Number of idle database connections",
		},
	)
)

// RecordHTTPRequest records an HTTP request with its metadata
func RecordHTTPRequest(method, path, status string, duration time.Duration, requestSize, responseSize int) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())

	if requestSize > 0 {
		HTTPRequestSize.WithLabelValues(method, path).Observe(float64(requestSize))
	}
	if responseSize > 0 {
		HTTPResponseSize.WithLabelValues(method, path).Observe(float64(responseSize))
	}
}

// RecordOperationDuration records the duration of a named operation
func RecordOperationDuration(operation string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}
