// Package synthesize implements the Multi-Source Synthesizer use case (C8):
// turning a cluster's member articles into one firsthand-reading article.
package synthesize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"newsloom/internal/domain/entity"
)

// ErrRejected means synthesis could not satisfy the post-LLM invariants
// after retrying; the cluster stays unpublished for this cycle.
var ErrRejected = errors.New("synthesis rejected: invariants not satisfied after retries")

// maxRetries is spec.md §4.8's "retry up to twice" on word-count failures.
const maxRetries = 2

// banNewsAgencyPhrasing is the firsthand-reporting check (§4.8): the article
// must not read as a roundup of other outlets.
var banNewsAgencyPhrasing = []string{
	"reports say", "according to multiple reports", "sources say",
	"outlets report", "various reports",
}

// SourceText is one cluster member's text, reduced to what the synthesizer
// needs: full content where C6 succeeded, description otherwise.
type SourceText struct {
	SourceName  string
	Credibility int
	PublishedAt time.Time
	Text        string
}

// SourceTextFromArticle builds a SourceText from a persisted SourceArticle,
// preferring its full-text Content and falling back to Description.
func SourceTextFromArticle(a *entity.SourceArticle, credibility int) SourceText {
	text := a.Content
	if text == "" {
		text = a.Description
	}
	var published time.Time
	if a.PublishedAt != nil {
		published = *a.PublishedAt
	}
	return SourceText{
		SourceName:  a.SourceName,
		Credibility: credibility,
		PublishedAt: published,
		Text:        text,
	}
}

// Synthesis is the strict-JSON output of the LLM, validated against
// spec.md §4.8's invariants before being handed to the enricher.
type Synthesis struct {
	Title           string
	SummaryBullets  []string
	ContentStandard string
	ContentB2       string
	Keywords        []string
	Category        string
}

// Client is the LLM boundary for synthesis, implemented in
// internal/infra/adapter/llm.
type Client interface {
	Synthesize(ctx context.Context, clusterTitle string, sources []SourceText) (*Synthesis, error)
}

// Service orchestrates the synthesize-then-validate-then-retry loop.
type Service struct {
	Client Client
}

// NewService builds a Service.
func NewService(client Client) *Service {
	return &Service{Client: client}
}

// Synthesize produces a validated Synthesis for cluster, retrying up to
// maxRetries times on word-count failures before rejecting outright.
func (s *Service) Synthesize(ctx context.Context, clusterTitle string, sources []SourceText) (*Synthesis, error) {
	sources = resolveConflicts(sources)

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		synthesis, err := s.Client.Synthesize(ctx, clusterTitle, sources)
		if err != nil {
			lastErr = err
			slog.WarnContext(ctx, "synthesis attempt failed",
				slog.Int("attempt", attempt), slog.String("error", err.Error()))
			continue
		}

		if err := validate(synthesis); err != nil {
			lastErr = err
			slog.WarnContext(ctx, "synthesis failed validation, retrying",
				slog.Int("attempt", attempt), slog.String("error", err.Error()))
			continue
		}

		return synthesis, nil
	}

	return nil, fmt.Errorf("%w: %v", ErrRejected, lastErr)
}

// resolveConflicts orders sources newest-first so the synthesizer prompt
// naturally prefers the most recent account; ties keep the input order,
// which callers should already have ranked by credibility if known.
func resolveConflicts(sources []SourceText) []SourceText {
	out := make([]SourceText, len(sources))
	copy(out, sources)
	for i := 1; i < len(out); i++ {
		j := i
		for j > 0 && out[j].PublishedAt.After(out[j-1].PublishedAt) {
			out[j], out[j-1] = out[j-1], out[j]
			j--
		}
	}
	return out
}

// validate enforces spec.md §4.8's post-LLM invariants: bullet count and
// word-count bounds, standard/B2 content length, and no roundup phrasing.
func validate(s *Synthesis) error {
	if s == nil {
		return errors.New("empty synthesis")
	}
	if err := entity.ValidateBullets(s.SummaryBullets); err != nil {
		return err
	}
	if wc := entity.WordCount(s.ContentStandard); wc < 300 || wc > 400 {
		return fmt.Errorf("content_standard word count %d out of [300,400]", wc)
	}
	if wc := entity.WordCount(s.ContentB2); wc < 300 || wc > 400 {
		return fmt.Errorf("content_b2 word count %d out of [300,400]", wc)
	}
	combined := strings.ToLower(s.ContentStandard + " " + s.ContentB2)
	for _, phrase := range banNewsAgencyPhrasing {
		if strings.Contains(combined, phrase) {
			return fmt.Errorf("content reads as a roundup (contains %q)", phrase)
		}
	}
	return nil
}
