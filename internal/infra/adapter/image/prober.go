// Package imageadapter probes remote image URLs for their dimensions and
// format, without downloading more of the file than needed.
package imageadapter

import (
	"context"
	"fmt"
	stdimage "image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"newsloom/internal/usecase/image"
)

// HTTPProber implements image.Prober by streaming just enough of the
// response body for image.DecodeConfig to read the format header.
type HTTPProber struct {
	Client  *http.Client
	Timeout time.Duration
}

// NewHTTPProber builds an HTTPProber with sane defaults.
func NewHTTPProber() *HTTPProber {
	return &HTTPProber{
		Client:  &http.Client{},
		Timeout: 10 * time.Second,
	}
}

// Probe fetches rawURL and decodes its dimensions and format. webp images
// are reported with Format "webp" but zero dimensions, since Go's standard
// image package has no webp decoder; the selector's format filter still
// applies, but webp never passes the dimension filter.
func (p *HTTPProber) Probe(ctx context.Context, rawURL string) (image.Dimensions, error) {
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return image.Dimensions{}, fmt.Errorf("image probe: build request: %w", err)
	}

	resp, err := p.Client.Do(req)
	if err != nil {
		return image.Dimensions{}, fmt.Errorf("image probe: fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return image.Dimensions{}, fmt.Errorf("image probe: unexpected status %d", resp.StatusCode)
	}

	if format := formatFromExtension(rawURL); format == "webp" {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 1))
		return image.Dimensions{Format: "webp"}, nil
	}

	cfg, format, err := stdimage.DecodeConfig(resp.Body)
	if err != nil {
		return image.Dimensions{}, fmt.Errorf("image probe: decode config: %w", err)
	}

	return image.Dimensions{Width: cfg.Width, Height: cfg.Height, Format: format}, nil
}

func formatFromExtension(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	ext := strings.ToLower(path.Ext(u.Path))
	ext = strings.TrimPrefix(ext, ".")
	if ext == "jpg" {
		return "jpeg"
	}
	return ext
}
