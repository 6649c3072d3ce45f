// Package publish implements the Publisher use case (C11): upserting a
// cluster's synthesized article and deciding when an already-published
// article needs revision.
package publish

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"newsloom/internal/config"
	"newsloom/internal/domain/entity"
	"newsloom/internal/repository"
)

// Action reports what PublishOrRevise did, for the cycle's stats counters.
type Action string

const (
	ActionPublished Action = "published"
	ActionRevised   Action = "revised"
	ActionSkipped   Action = "skipped"
)

// Service decides publish vs. revise vs. skip per spec.md §4.11.
type Service struct {
	Repo   repository.PublishedArticleRepository
	Config config.PublishConfig
	Now    func() time.Time
}

// NewService builds a Service.
func NewService(repo repository.PublishedArticleRepository, cfg config.PublishConfig) *Service {
	return &Service{Repo: repo, Config: cfg, Now: time.Now}
}

// PublishOrRevise upserts candidate for cluster. candidate's ClusterID must
// already be set to cluster.ID. On a first publish, PublishedAt,
// LastRevisedAt and SourceCountAtPublish are stamped here; on revision the
// existing row's PublishedAt is preserved and only content fields advance.
func (s *Service) PublishOrRevise(ctx context.Context, cluster *entity.Cluster, candidate *entity.PublishedArticle) (Action, error) {
	now := s.Now()

	existing, err := s.Repo.GetByClusterID(ctx, cluster.ID)
	if err != nil {
		return ActionSkipped, fmt.Errorf("publish: lookup existing: %w", err)
	}

	if existing == nil {
		candidate.PublishedAt = now
		candidate.LastRevisedAt = now
		candidate.SourceCountAtPublish = cluster.SourceCount
		if err := s.Repo.Upsert(ctx, candidate); err != nil {
			return ActionSkipped, fmt.Errorf("publish: insert: %w", err)
		}
		return ActionPublished, nil
	}

	if cluster.Status == entity.ClusterClosed {
		slog.DebugContext(ctx, "revision inhibited: cluster closed", slog.Int64("cluster_id", cluster.ID))
		return ActionSkipped, nil
	}

	highScoreTrigger := candidate.DisplayScore >= s.Config.HighScoreThreshold
	sourceDeltaTrigger := cluster.SourceCount-existing.SourceCountAtPublish >= s.Config.SourceDelta

	if !highScoreTrigger && !sourceDeltaTrigger {
		return ActionSkipped, nil
	}

	if now.Sub(existing.LastRevisedAt) < s.Config.Cooldown {
		slog.DebugContext(ctx, "revision inhibited: cooldown active", slog.Int64("cluster_id", cluster.ID))
		return ActionSkipped, nil
	}

	candidate.ID = existing.ID
	candidate.PublishedAt = existing.PublishedAt
	candidate.LastRevisedAt = now
	candidate.SourceCountAtPublish = cluster.SourceCount

	if err := s.Repo.Upsert(ctx, candidate); err != nil {
		return ActionSkipped, fmt.Errorf("publish: revise: %w", err)
	}

	return ActionRevised, nil
}
