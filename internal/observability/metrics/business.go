package metrics

import (
	"time"
)

// RecordFeedItemsFetched records the number of feed items fetched from a source (C2).
func RecordFeedItemsFetched(source string, count int) {
	FeedItemsFetchedTotal.WithLabelValues(source).Add(float64(count))
}

// RecordFeedFetch records metrics for one source's feed fetch (C2).
func RecordFeedFetch(source string, duration time.Duration, itemsFound int) {
	FeedFetchDuration.WithLabelValues(source).Observe(duration.Seconds())
	if itemsFound > 0 {
		RecordFeedItemsFetched(source, itemsFound)
	}
}

// RecordFeedFetchError records an error during feed fetching (C2).
func RecordFeedFetchError(source string, errorType string) {
	FeedFetchErrorsTotal.WithLabelValues(source, errorType).Inc()
}

// RecordDedupDecision records a new-vs-duplicate outcome from the Dedup Gate (C3).
func RecordDedupDecision(isNew bool) {
	decision := "duplicate"
	if isNew {
		decision = "new"
	}
	DedupDecisionsTotal.WithLabelValues(decision).Inc()
}

// RecordScoreDecision records an admit-vs-reject outcome from the Scorer (C4).
func RecordScoreDecision(admitted bool) {
	decision := "reject"
	if admitted {
		decision = "admit"
	}
	ScoreDecisionsTotal.WithLabelValues(decision).Inc()
}

// RecordScoreDuration records the time taken to score one batch (C4).
func RecordScoreDuration(duration time.Duration) {
	ScoreDuration.Observe(duration.Seconds())
}

// RecordFullTextFetchSuccess records a successful full text fetch (C6).
func RecordFullTextFetchSuccess(duration time.Duration, size int) {
	FullTextFetchAttemptsTotal.WithLabelValues("success").Inc()
	FullTextFetchDuration.Observe(duration.Seconds())
	FullTextFetchSize.Observe(float64(size))
}

// RecordFullTextFetchFailed records a failed full text fetch (C6).
func RecordFullTextFetchFailed(duration time.Duration) {
	FullTextFetchAttemptsTotal.WithLabelValues("failure").Inc()
	FullTextFetchDuration.Observe(duration.Seconds())
}

// RecordFullTextFetchSkipped records a skipped full text fetch, used when the
// RSS content already satisfies the length threshold (C6).
func RecordFullTextFetchSkipped() {
	FullTextFetchAttemptsTotal.WithLabelValues("skipped").Inc()
}

// RecordClusterAssignment records whether an attach opened a new cluster or
// joined an existing one (C5).
func RecordClusterAssignment(isNewCluster bool) {
	kind := "attached"
	if isNewCluster {
		kind = "new_cluster"
	}
	ClusterAssignmentsTotal.WithLabelValues(kind).Inc()
}

// UpdateClustersActive updates the current count of active clusters (C5).
func UpdateClustersActive(count int) {
	ClustersActiveTotal.Set(float64(count))
}

// RecordPublishDecision records a publish pipeline outcome (C11).
func RecordPublishDecision(action string) {
	PublishDecisionsTotal.WithLabelValues(action).Inc()
}

// UpdateSourceArticlesTotal updates the total count of source articles in the
// database. This gauge should be updated periodically to reflect current state.
func UpdateSourceArticlesTotal(count int) {
	SourceArticlesTotal.Set(float64(count))
}

// UpdateSourcesTotal updates the catalogue's source count (C1).
func UpdateSourcesTotal(count int) {
	SourcesTotal.Set(float64(count))
}

// UpdatePublishedArticlesTotal updates the total count of published articles
// in the database (C11).
func UpdatePublishedArticlesTotal(count int) {
	PublishedArticlesTotal.Set(float64(count))
}

// RecordLifecycleClusterClosed records one cluster closed by the sweeper (C12).
func RecordLifecycleClusterClosed() {
	LifecycleClustersClosedTotal.Inc()
}

// RecordDBQuery records the duration of a database query operation.
// Operation should describe the query type (e.g., "select_source_articles", "insert_cluster").
func RecordDBQuery(operation string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// UpdateDBConnectionStats updates database connection pool statistics.
func UpdateDBConnectionStats(active, idle int) {
	DBConnectionsActive.Set(float64(active))
	DBConnectionsIdle.Set(float64(idle))
}
