// Package score provides the Admission Scorer use case (C4): batches
// candidates to an LLM judge, applies the configured admission contract,
// and marks each candidate admitted or rejected.
package score

import (
	"context"
	"log/slog"
	"time"

	"newsloom/internal/domain/entity"
	"newsloom/internal/observability/metrics"
	"newsloom/internal/repository"
)

// RequestItem is one candidate sent to the LLM judge.
type RequestItem struct {
	ID          int64
	Title       string
	Description string
	Source      string
}

// ResultItem is one candidate's judged outcome.
type ResultItem struct {
	ID       int64
	Score    float64
	Category string
}

// Client scores one batch of candidates against an external LLM. The
// adapter implementation owns the prompt, the JSON schema, retry and
// circuit-breaking; Service treats ScoreBatch as a single unit of work that
// either returns a result per item or fails outright.
type Client interface {
	ScoreBatch(ctx context.Context, items []RequestItem) ([]ResultItem, error)
}

// Stats summarizes one Score call.
type Stats struct {
	Candidates          int
	AutoRejectedNoImage int
	Admitted            int
	Rejected            int
	BatchFailures       int
}

// Service implements C4: `Score(ctx, candidates) (*Stats, error)`.
type Service struct {
	Client    Client
	Contract  AdmissionContract
	Repo      repository.SourceArticleRepository
	BatchSize int
}

// NewService builds a Service. batchSize should come from
// config.ScoreConfig.BatchSize (spec default 30).
func NewService(client Client, contract AdmissionContract, repo repository.SourceArticleRepository, batchSize int) *Service {
	return &Service{Client: client, Contract: contract, Repo: repo, BatchSize: batchSize}
}

// Score judges every candidate in candidates, persisting each one's score,
// category and admit/reject status via Repo.UpdateScore. Articles with no
// image are auto-rejected before ever reaching the LLM, per spec.md §4.4.
func (s *Service) Score(ctx context.Context, candidates []*entity.SourceArticle) (*Stats, error) {
	stats := &Stats{Candidates: len(candidates)}

	scorable := make([]*entity.SourceArticle, 0, len(candidates))
	for _, c := range candidates {
		if c.ImageURL == "" {
			stats.AutoRejectedNoImage++
			stats.Rejected++
			if err := s.reject(ctx, c.ID, 0, c.Category); err != nil {
				return stats, err
			}
			continue
		}
		scorable = append(scorable, c)
	}

	for start := 0; start < len(scorable); start += s.BatchSize {
		end := start + s.BatchSize
		if end > len(scorable) {
			end = len(scorable)
		}
		if err := s.scoreBatch(ctx, scorable[start:end], stats); err != nil {
			return stats, err
		}
	}

	return stats, nil
}

func (s *Service) scoreBatch(ctx context.Context, batch []*entity.SourceArticle, stats *Stats) error {
	start := time.Now()

	byID := make(map[int64]*entity.SourceArticle, len(batch))
	items := make([]RequestItem, 0, len(batch))
	for _, c := range batch {
		byID[c.ID] = c
		items = append(items, RequestItem{
			ID:          c.ID,
			Title:       c.Title,
			Description: c.Description,
			Source:      c.SourceName,
		})
	}

	results, err := s.Client.ScoreBatch(ctx, items)
	metrics.RecordScoreDuration(time.Since(start))

	if err != nil {
		slog.Warn("score batch failed persistently, applying neutral default",
			slog.Int("batch_size", len(batch)),
			slog.Any("error", err))
		stats.BatchFailures++
		for _, c := range batch {
			stats.Rejected++
			if uerr := s.reject(ctx, c.ID, s.Contract.NeutralDefault(), c.Category); uerr != nil {
				return uerr
			}
		}
		return nil
	}

	seen := make(map[int64]bool, len(results))
	for _, r := range results {
		seen[r.ID] = true
		c, ok := byID[r.ID]
		if !ok {
			continue
		}
		if err := s.apply(ctx, c, r); err != nil {
			return err
		}
		if r.Score >= s.Contract.Threshold() {
			stats.Admitted++
		} else {
			stats.Rejected++
		}
	}

	// Any requested item the LLM silently dropped from its response (schema
	// recovery truncated the array short) is treated as a persistent
	// failure for that item alone, not the whole batch.
	for _, c := range batch {
		if seen[c.ID] {
			continue
		}
		stats.Rejected++
		if err := s.reject(ctx, c.ID, s.Contract.NeutralDefault(), c.Category); err != nil {
			return err
		}
	}

	return nil
}

func (s *Service) apply(ctx context.Context, c *entity.SourceArticle, r ResultItem) error {
	status := entity.StatusRejected
	admitted := r.Score >= s.Contract.Threshold()
	if admitted {
		status = entity.StatusPending
	}
	metrics.RecordScoreDecision(admitted)

	category := r.Category
	if category == "" {
		category = c.Category
	}
	return s.Repo.UpdateScore(ctx, c.ID, r.Score, category, status)
}

func (s *Service) reject(ctx context.Context, id int64, scoreValue float64, category string) error {
	metrics.RecordScoreDecision(false)
	return s.Repo.UpdateScore(ctx, id, scoreValue, category, entity.StatusRejected)
}
