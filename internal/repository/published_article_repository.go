package repository

import (
	"context"

	"newsloom/internal/domain/entity"
)

// PublishedArticleRepository persists PublishedArticle rows (C11).
type PublishedArticleRepository interface {
	// GetByClusterID returns the article published for a cluster, if any.
	// Used to decide insert vs. in-place revise.
	GetByClusterID(ctx context.Context, clusterID int64) (*entity.PublishedArticle, error)

	// Upsert inserts a new row or updates the existing one in place, keyed
	// on cluster_id, matching the data model's "no new row on revision"
	// invariant.
	Upsert(ctx context.Context, a *entity.PublishedArticle) error

	// ListRecent returns the most recently published or revised articles,
	// used as calibration anchors for the Display Scorer (C10).
	ListRecent(ctx context.Context, limit int) ([]*entity.PublishedArticle, error)
}
