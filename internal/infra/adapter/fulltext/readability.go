package fulltext

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"newsloom/internal/config"
	"newsloom/internal/resilience/circuitbreaker"
	"newsloom/internal/usecase/fulltext"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

// ReadabilityFetcher is the C6 tier-1 fetcher: a direct HTTPS GET with a
// browser-like user agent, Mozilla Readability text extraction, and a
// goquery pass over the same document for image selection.
//
// Thread safety: safe for concurrent use.
type ReadabilityFetcher struct {
	client         *http.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	cfg            config.FulltextConfig
}

// NewReadabilityFetcher builds a ReadabilityFetcher from cfg, wiring a
// redirect-validating HTTP client and a dedicated circuit breaker.
func NewReadabilityFetcher(cfg config.FulltextConfig) *ReadabilityFetcher {
	cb := circuitbreaker.New(circuitbreaker.WebScraperConfig())

	f := &ReadabilityFetcher{circuitBreaker: cb, cfg: cfg}

	f.client = &http.Client{
		Timeout: cfg.Timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS12},
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= f.cfg.MaxRedirects {
				return fmt.Errorf("%w: %d redirects", fulltext.ErrTooManyRedirects, len(via))
			}
			if err := validateURL(req.URL.String(), f.cfg.DenyPrivateIPs); err != nil {
				return fmt.Errorf("redirect target validation failed: %w", err)
			}
			return nil
		},
	}

	return f
}

// Fetch implements fulltext.Fetcher.
func (f *ReadabilityFetcher) Fetch(ctx context.Context, urlStr string) (*fulltext.Article, error) {
	if err := validateURL(urlStr, f.cfg.DenyPrivateIPs); err != nil {
		return nil, err
	}

	result, err := f.circuitBreaker.Execute(func() (interface{}, error) {
		return f.doFetch(ctx, urlStr)
	})
	if err != nil {
		return nil, err
	}

	return result.(*fulltext.Article), nil
}

func (f *ReadabilityFetcher) doFetch(ctx context.Context, urlStr string) (*fulltext.Article, error) {
	reqCtx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", fulltext.ErrInvalidURL, err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; NewsloomBot/1.0; +https://example.invalid/bot)")

	resp, err := f.client.Do(req)
	if err != nil {
		if reqCtx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", fulltext.ErrTimeout, err)
		}
		if urlErr, ok := err.(*url.Error); ok && urlErr.Err != nil {
			return nil, urlErr.Err
		}
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, resp.Status)
	}

	limited := io.LimitReader(resp.Body, f.cfg.MaxBodySize+1)
	htmlBytes, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if int64(len(htmlBytes)) > f.cfg.MaxBodySize {
		return nil, fmt.Errorf("%w: %d bytes exceeds limit %d", fulltext.ErrBodyTooLarge, len(htmlBytes), f.cfg.MaxBodySize)
	}

	finalURL, err := url.Parse(urlStr)
	if err != nil {
		finalURL = nil
	}
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL
	}

	article, err := readability.FromReader(bytes.NewReader(htmlBytes), finalURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", fulltext.ErrExtractionFailed, err)
	}

	text := article.TextContent
	if text == "" {
		text = article.Content
	}
	if len(strings.TrimSpace(text)) < fulltext.MinChars {
		return nil, fmt.Errorf("%w: got %d characters", fulltext.ErrTooShort, len(text))
	}

	img := extractImage(htmlBytes, finalURL)

	return &fulltext.Article{
		Title:    article.Title,
		Text:     fulltext.Truncate(text),
		ImageURL: img,
	}, nil
}

// extractImage picks the best candidate image from the document: og:image,
// then twitter:image, then the largest in-article <img> by declared
// width*height. Best-effort; empty string on no candidate.
func extractImage(htmlBytes []byte, base *url.URL) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(htmlBytes))
	if err != nil {
		return ""
	}

	if og, ok := doc.Find(`meta[property="og:image"]`).Attr("content"); ok && og != "" {
		return resolveImageURL(og, base)
	}
	if tw, ok := doc.Find(`meta[name="twitter:image"]`).Attr("content"); ok && tw != "" {
		return resolveImageURL(tw, base)
	}

	container := doc.Find("article").First()
	if container.Length() == 0 {
		container = doc.Find(`[role="main"]`).First()
	}
	if container.Length() == 0 {
		container = doc.Selection
	}

	var bestSrc string
	var bestArea int
	container.Find("img").Each(func(_ int, s *goquery.Selection) {
		src, ok := s.Attr("src")
		if !ok || src == "" {
			return
		}
		w, _ := strconv.Atoi(s.AttrOr("width", "0"))
		h, _ := strconv.Atoi(s.AttrOr("height", "0"))
		area := w * h
		if area >= bestArea {
			bestArea = area
			bestSrc = src
		}
	})

	if bestSrc == "" {
		return ""
	}
	return resolveImageURL(bestSrc, base)
}

func resolveImageURL(raw string, base *url.URL) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if base == nil || u.IsAbs() {
		return u.String()
	}
	return base.ResolveReference(u).String()
}
