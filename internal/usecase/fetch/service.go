// Package fetch provides the Feed Fetcher use case (C2): fanning out across
// the source catalogue to produce RawArticle values for the dedup gate.
package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"newsloom/internal/domain/entity"
	"newsloom/internal/observability/metrics"

	"golang.org/x/sync/errgroup"
)

// Fetcher retrieves one source's feed and returns its newest entries as
// RawArticle values. Implementations isolate their own network/parse
// failures; Service treats a Fetcher error as a per-source failure, never
// aborting the rest of the fan-out.
type Fetcher interface {
	Fetch(ctx context.Context, sourceName, feedURL string) ([]entity.RawArticle, error)
}

// FetchStats summarizes one FetchAll call.
type FetchStats struct {
	Sources       int
	SourcesFailed int64
	ItemsFetched  int64
	Duration      time.Duration
}

// Service implements C2's fetch_all(sources) -> sequence of RawArticle
// contract: a bounded worker pool over the static catalogue, isolating each
// source's failure from the rest.
type Service struct {
	Fetcher Fetcher
	Workers int
}

// NewService builds a Service bounded at workers concurrent fetches.
func NewService(fetcher Fetcher, workers int) *Service {
	return &Service{Fetcher: fetcher, Workers: workers}
}

// FetchAll fetches every source in sources concurrently, bounded at
// s.Workers in flight. A single source's fetch error is logged, recorded in
// metrics, and counted in FetchStats.SourcesFailed; it never aborts the
// other sources, matching spec.md §4.2's per-source isolation requirement.
func (s *Service) FetchAll(ctx context.Context, sources []entity.Source) ([]entity.RawArticle, *FetchStats, error) {
	start := time.Now()
	stats := &FetchStats{Sources: len(sources)}

	var mu sync.Mutex
	var articles []entity.RawArticle

	eg := &errgroup.Group{}
	eg.SetLimit(s.Workers)

	for _, src := range sources {
		source := src
		eg.Go(func() error {
			s.fetchOne(ctx, source, &mu, &articles, stats)
			return nil
		})
	}

	// Wait never actually returns an error today since fetchOne swallows
	// per-source failures into stats; kept so a future fatal (non
	// per-source) error has somewhere to surface without changing the
	// signature.
	if err := eg.Wait(); err != nil {
		return nil, stats, fmt.Errorf("fetch all sources: %w", err)
	}

	stats.Duration = time.Since(start)

	slog.Info("feed fetch completed",
		slog.Int("sources", stats.Sources),
		slog.Int64("sources_failed", stats.SourcesFailed),
		slog.Int64("items_fetched", stats.ItemsFetched),
		slog.Duration("duration", stats.Duration))

	return articles, stats, nil
}

func (s *Service) fetchOne(
	ctx context.Context,
	source entity.Source,
	mu *sync.Mutex,
	articles *[]entity.RawArticle,
	stats *FetchStats,
) {
	start := time.Now()

	items, err := s.Fetcher.Fetch(ctx, source.Name, source.FeedURL)
	duration := time.Since(start)

	if err != nil {
		atomic.AddInt64(&stats.SourcesFailed, 1)
		metrics.RecordFeedFetchError(source.Name, classifyFetchError(err))
		slog.Warn("feed fetch failed, skipping source",
			slog.String("source", source.Name),
			slog.String("feed_url", source.FeedURL),
			slog.Any("error", err))
		return
	}

	metrics.RecordFeedFetch(source.Name, duration, len(items))
	atomic.AddInt64(&stats.ItemsFetched, int64(len(items)))

	mu.Lock()
	*articles = append(*articles, items...)
	mu.Unlock()
}

// classifyFetchError buckets a fetch error into a coarse label for the
// feed_fetch_errors_total metric.
func classifyFetchError(err error) string {
	if err == context.DeadlineExceeded || err == context.Canceled {
		return "timeout"
	}
	return "fetch_failed"
}
