package fulltext

import (
	"context"
	"log/slog"
	"time"

	"newsloom/internal/observability/metrics"
	"newsloom/internal/usecase/fulltext"
)

// TieredFetcher implements the C6 two-tier strategy from spec.md §4.6:
// attempt the direct readability fetch first, fall back to the reader-API
// service on any tier-1 failure.
type TieredFetcher struct {
	tier1 fulltext.Fetcher
	tier2 fulltext.Fetcher
}

// NewTieredFetcher composes tier1 and tier2 into a single fulltext.Fetcher.
func NewTieredFetcher(tier1, tier2 fulltext.Fetcher) *TieredFetcher {
	return &TieredFetcher{tier1: tier1, tier2: tier2}
}

// Fetch implements fulltext.Fetcher.
func (f *TieredFetcher) Fetch(ctx context.Context, url string) (*fulltext.Article, error) {
	start := time.Now()

	article, err := f.tier1.Fetch(ctx, url)
	if err == nil {
		metrics.RecordFullTextFetchSuccess(time.Since(start), len(article.Text))
		return article, nil
	}

	slog.Debug("tier-1 full text fetch failed, falling back to reader API",
		slog.String("url", url), slog.Any("error", err))

	article, err2 := f.tier2.Fetch(ctx, url)
	if err2 != nil {
		metrics.RecordFullTextFetchFailed(time.Since(start))
		return nil, err2
	}

	metrics.RecordFullTextFetchSuccess(time.Since(start), len(article.Text))
	return article, nil
}
