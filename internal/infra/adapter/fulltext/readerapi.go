package fulltext

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"newsloom/internal/resilience/circuitbreaker"
	"newsloom/internal/usecase/fulltext"
)

// ReaderAPIFetcher is the C6 tier-2 fallback: a reader service that returns
// cleaned markdown for a target URL, used when the tier-1 direct fetch
// fails (blocked, paywalled, or unparseable). Reuses the outbound-proxy
// credential pair from VendorConfig since both are "another service fetches
// this URL for us" integrations and spec.md's closed env set does not add a
// dedicated reader-API credential.
type ReaderAPIFetcher struct {
	client         *http.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	baseURL        string
	apiKey         string
}

// NewReaderAPIFetcher builds a ReaderAPIFetcher. baseURL is the reader
// service endpoint; requests are issued as baseURL/<target-url>. An empty
// baseURL disables tier 2: Fetch always returns ErrExtractionFailed.
func NewReaderAPIFetcher(baseURL, apiKey string, timeout time.Duration) *ReaderAPIFetcher {
	return &ReaderAPIFetcher{
		client:         &http.Client{Timeout: timeout},
		circuitBreaker: circuitbreaker.New(circuitbreaker.WebScraperConfig()),
		baseURL:        strings.TrimRight(baseURL, "/"),
		apiKey:         apiKey,
	}
}

// Fetch implements fulltext.Fetcher.
func (f *ReaderAPIFetcher) Fetch(ctx context.Context, urlStr string) (*fulltext.Article, error) {
	if f.baseURL == "" {
		return nil, fmt.Errorf("%w: reader API not configured", fulltext.ErrExtractionFailed)
	}

	result, err := f.circuitBreaker.Execute(func() (interface{}, error) {
		return f.doFetch(ctx, urlStr)
	})
	if err != nil {
		return nil, err
	}
	return result.(*fulltext.Article), nil
}

func (f *ReaderAPIFetcher) doFetch(ctx context.Context, urlStr string) (*fulltext.Article, error) {
	target := f.baseURL + "/" + urlStr

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", fulltext.ErrInvalidURL, err)
	}
	if f.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+f.apiKey)
	}
	req.Header.Set("Accept", "text/markdown, text/plain, */*")

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", fulltext.ErrTimeout, err)
		}
		return nil, fmt.Errorf("reader API request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("reader API returned %d: %s", resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2*1024*1024))
	if err != nil {
		return nil, fmt.Errorf("read reader API response: %w", err)
	}

	text := strings.TrimSpace(string(body))
	if len(text) < fulltext.MinChars {
		return nil, fmt.Errorf("%w: got %d characters", fulltext.ErrTooShort, len(text))
	}

	return &fulltext.Article{Text: fulltext.Truncate(text)}, nil
}
