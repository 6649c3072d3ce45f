// Package dedup provides the URL Normalizer & Dedup Gate (C3): it turns a
// RawArticle's link into a canonical key and decides whether that key has
// been seen before.
package dedup

import (
	"context"
	"log/slog"
	"net/url"
	"sort"
	"strings"

	"newsloom/internal/observability/metrics"
	"newsloom/internal/repository"
)

// trackingParams are stripped during normalization regardless of position or
// case; the set matches spec.md §4.3 exactly.
var trackingParams = map[string]struct{}{
	"utm_source":   {},
	"utm_medium":   {},
	"utm_campaign": {},
	"utm_term":     {},
	"utm_content":  {},
	"ref":          {},
	"source":       {},
	"fbclid":       {},
	"gclid":        {},
	"_ga":          {},
	"mc_cid":       {},
	"mc_eid":       {},
}

// Gate decides whether an incoming article's URL is new, backed by the
// SourceArticleRepository's unique index on normalized_url.
type Gate struct {
	Repo repository.SourceArticleRepository
}

// NewGate builds a Gate over repo.
func NewGate(repo repository.SourceArticleRepository) *Gate {
	return &Gate{Repo: repo}
}

// Normalize canonicalizes rawURL per spec.md §4.3: lower-case host, strip a
// leading "www.", drop tracking query parameters and the fragment, and sort
// the remaining query keys. Malformed URLs are returned unchanged (trimmed)
// so a bad link still participates in dedup rather than being discarded.
func Normalize(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return strings.TrimSpace(rawURL)
	}

	u.Host = strings.ToLower(u.Host)
	u.Host = strings.TrimPrefix(u.Host, "www.")
	u.Fragment = ""

	if u.RawQuery != "" {
		q := u.Query()
		for key := range trackingParams {
			q.Del(key)
		}
		u.RawQuery = sortedQuery(q)
	}

	return u.String()
}

func sortedQuery(q url.Values) string {
	if len(q) == 0 {
		return ""
	}
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		vals := q[k]
		sort.Strings(vals)
		for _, v := range vals {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(k))
			if v != "" {
				b.WriteByte('=')
				b.WriteString(url.QueryEscape(v))
			}
		}
	}
	return b.String()
}

// IsNew reports whether normalizedURL has not been seen before. On a
// transient lookup failure it fails open and reports true, per spec.md
// §4.3's "rely on the unique constraint at persistence time" rule: a false
// positive here is caught later by the repository's unique index, while a
// false negative would silently drop a real article.
func (g *Gate) IsNew(ctx context.Context, normalizedURL string) (bool, error) {
	exists, err := g.Repo.ExistsByNormalizedURL(ctx, normalizedURL)
	if err != nil {
		slog.Warn("dedup lookup failed, treating as new",
			slog.String("normalized_url", normalizedURL),
			slog.Any("error", err))
		metrics.RecordDedupDecision(true)
		return true, nil
	}

	isNew := !exists
	metrics.RecordDedupDecision(isNew)
	return isNew, nil
}

// IsNewBatch mirrors IsNew across many URLs in one round trip, avoiding N+1
// lookups across a feed's items. Order of the returned map has no relation
// to input order; callers index by normalizedURL.
func (g *Gate) IsNewBatch(ctx context.Context, normalizedURLs []string) (map[string]bool, error) {
	if len(normalizedURLs) == 0 {
		return map[string]bool{}, nil
	}

	exists, err := g.Repo.ExistsByNormalizedURLBatch(ctx, normalizedURLs)
	if err != nil {
		slog.Warn("batch dedup lookup failed, treating all as new",
			slog.Int("count", len(normalizedURLs)),
			slog.Any("error", err))
		result := make(map[string]bool, len(normalizedURLs))
		for _, u := range normalizedURLs {
			result[u] = true
			metrics.RecordDedupDecision(true)
		}
		return result, nil
	}

	result := make(map[string]bool, len(normalizedURLs))
	for _, u := range normalizedURLs {
		isNew := !exists[u]
		result[u] = isNew
		metrics.RecordDedupDecision(isNew)
	}
	return result, nil
}
