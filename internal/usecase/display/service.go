// Package display implements the Scorer-for-Display and Tagger use case
// (C10): two independent LLM calls that decide a published article's
// priority score and its country/topic tags.
package display

import (
	"context"
	"log/slog"

	"newsloom/internal/domain/entity"
)

// defaultScore is the fallback used when the display scorer's output is
// out-of-range or unparseable, per spec.md §4.10.
const defaultScore = 750

const (
	minScore = 0
	maxScore = 1000
)

// ReferenceAnchor is one recently-scored article used to calibrate the
// display scorer's spread across tiers.
type ReferenceAnchor struct {
	Title string
	Score int
}

// Tags is the Tagger's raw output before vocabulary filtering.
type Tags struct {
	Countries []string
	Topics    []string
}

// ScoreClient is the LLM boundary for the display score call.
type ScoreClient interface {
	Score(ctx context.Context, title string, bullets []string, anchors []ReferenceAnchor) (int, error)
}

// TagClient is the LLM boundary for the tagger call.
type TagClient interface {
	Tag(ctx context.Context, title string, bullets []string, category string) (*Tags, error)
}

// Service runs both calls and normalizes their output against the closed
// vocabularies and score range.
type Service struct {
	ScoreClient ScoreClient
	TagClient   TagClient
}

// NewService builds a Service.
func NewService(scoreClient ScoreClient, tagClient TagClient) *Service {
	return &Service{ScoreClient: scoreClient, TagClient: tagClient}
}

// Result is the combined, normalized output of both calls.
type Result struct {
	DisplayScore int
	Countries    []string
	Topics       []string
}

// Evaluate runs the display score and tagger calls independently; either
// failing falls back to a safe default rather than blocking publication.
func (s *Service) Evaluate(ctx context.Context, title string, bullets []string, category string, anchors []ReferenceAnchor) Result {
	score := s.evaluateScore(ctx, title, bullets, anchors)
	countries, topics := s.evaluateTags(ctx, title, bullets, category)

	return Result{DisplayScore: score, Countries: countries, Topics: topics}
}

func (s *Service) evaluateScore(ctx context.Context, title string, bullets []string, anchors []ReferenceAnchor) int {
	raw, err := s.ScoreClient.Score(ctx, title, bullets, anchors)
	if err != nil {
		slog.WarnContext(ctx, "display score call failed, using default",
			slog.Int("default", defaultScore), slog.String("error", err.Error()))
		return defaultScore
	}
	if raw < minScore || raw > maxScore {
		slog.WarnContext(ctx, "display score out of range, using default",
			slog.Int("raw", raw), slog.Int("default", defaultScore))
		return defaultScore
	}
	return raw
}

func (s *Service) evaluateTags(ctx context.Context, title string, bullets []string, category string) ([]string, []string) {
	raw, err := s.TagClient.Tag(ctx, title, bullets, category)
	if err != nil || raw == nil {
		if err != nil {
			slog.WarnContext(ctx, "tagger call failed, using category fallback only",
				slog.String("error", err.Error()))
		}
		return nil, []string{entity.DefaultTopicForCategory(category)}
	}

	countries := entity.FilterCountries(raw.Countries)
	topics := entity.FilterTopics(raw.Topics, category)
	return countries, topics
}
