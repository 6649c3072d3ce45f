// Package feed provides the C2 Feed Fetcher adapter: an RSS/Atom client
// wrapping gofeed with the resilience stack (circuit breaker + retry) the
// teacher applies to every outbound vendor call.
package feed

import (
	"context"
	"net/http"
	"regexp"
	"strings"
	"time"

	"newsloom/internal/domain/entity"
	"newsloom/internal/resilience/circuitbreaker"
	"newsloom/internal/resilience/retry"

	"github.com/mmcdole/gofeed"
	"github.com/mmcdole/gofeed/extensions"
)

// MaxItemsPerSource caps how many of the newest feed entries are emitted per
// source per spec.md §4.2 ("emit up to N (default 10) newest entries").
const MaxItemsPerSource = 10

// RSSFetcher fetches and parses one source's RSS/Atom feed into
// entity.RawArticle values. Safe for concurrent use.
type RSSFetcher struct {
	client         *http.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	timeout        time.Duration
}

// NewRSSFetcher builds an RSSFetcher bounding every GET to timeout.
func NewRSSFetcher(timeout time.Duration) *RSSFetcher {
	return &RSSFetcher{
		client:         &http.Client{Timeout: timeout},
		circuitBreaker: circuitbreaker.New(circuitbreaker.FeedFetchConfig()),
		timeout:        timeout,
	}
}

// Fetch retrieves and parses sourceName's feed at feedURL, returning up to
// MaxItemsPerSource newest entries as RawArticle values. Per-source failures
// (network, parse, TLS) are the caller's to isolate; Fetch itself applies
// retry-with-backoff and a circuit breaker exactly as the feed-fetch
// resilience configs are tuned for.
func (f *RSSFetcher) Fetch(ctx context.Context, sourceName, feedURL string) ([]entity.RawArticle, error) {
	result, err := f.circuitBreaker.Execute(func() (interface{}, error) {
		var feed *gofeed.Feed
		retryErr := retry.WithBackoff(ctx, retry.FeedFetchConfig(), func() error {
			var fetchErr error
			feed, fetchErr = f.doFetch(ctx, feedURL)
			return fetchErr
		})
		return feed, retryErr
	})
	if err != nil {
		return nil, err
	}

	feed := result.(*gofeed.Feed)
	return toRawArticles(sourceName, feed), nil
}

func (f *RSSFetcher) doFetch(ctx context.Context, feedURL string) (*gofeed.Feed, error) {
	fp := gofeed.NewParser()
	fp.UserAgent = "Mozilla/5.0 (compatible; NewsloomBot/1.0; +https://example.invalid/bot)"
	fp.Client = f.client

	reqCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	return fp.ParseURLWithContext(feedURL, reqCtx)
}

func toRawArticles(sourceName string, feed *gofeed.Feed) []entity.RawArticle {
	if feed == nil {
		return nil
	}

	items := feed.Items
	if len(items) > MaxItemsPerSource {
		items = items[:MaxItemsPerSource]
	}

	out := make([]entity.RawArticle, 0, len(items))
	for _, item := range items {
		out = append(out, entity.RawArticle{
			SourceName:  sourceName,
			Title:       item.Title,
			Description: itemDescription(item),
			Link:        item.Link,
			GUID:        item.GUID,
			ImageURL:    itemImage(item),
			PublishedAt: itemPublishedAt(item),
			Author:      itemAuthor(item),
		})
	}
	return out
}

// itemDescription prefers Content over Description; falls back to empty.
func itemDescription(item *gofeed.Item) string {
	if item.Content != "" {
		return item.Content
	}
	return item.Description
}

// itemPublishedAt prefers the parsed "published" timestamp, falling back
// to "updated" per spec.md §4.2; absence is permitted.
func itemPublishedAt(item *gofeed.Item) *time.Time {
	if item.PublishedParsed != nil {
		return item.PublishedParsed
	}
	return item.UpdatedParsed
}

func itemAuthor(item *gofeed.Item) string {
	if item.Author != nil && item.Author.Name != "" {
		return item.Author.Name
	}
	if len(item.Authors) > 0 && item.Authors[0] != nil {
		return item.Authors[0].Name
	}
	return ""
}

var imgTagRe = regexp.MustCompile(`(?i)<img[^>]+src=["']([^"']+)["']`)

// itemImage applies the fallback order from spec.md §4.2: media:content,
// then media:thumbnail, then an enclosure whose type starts with "image/",
// then the first <img> found in the item's HTML content, then empty.
func itemImage(item *gofeed.Item) string {
	if item.Extensions != nil {
		if media, ok := item.Extensions["media"]; ok {
			if url := firstMediaURL(media["content"]); url != "" {
				return url
			}
			if url := firstMediaURL(media["thumbnail"]); url != "" {
				return url
			}
		}
	}

	for _, enc := range item.Enclosures {
		if enc != nil && strings.HasPrefix(enc.Type, "image/") && enc.URL != "" {
			return enc.URL
		}
	}

	html := item.Content
	if html == "" {
		html = item.Description
	}
	if m := imgTagRe.FindStringSubmatch(html); m != nil {
		return m[1]
	}

	return ""
}

func firstMediaURL(exts []extensions.Extension) string {
	for _, e := range exts {
		if url, ok := e.Attrs["url"]; ok && url != "" {
			return url
		}
	}
	return ""
}
