// Package repository defines storage contracts for the pipeline's four
// tables. Interfaces live here, Postgres implementations in
// internal/infra/adapter/persistence/postgres, following the teacher's
// repository-per-entity split.
package repository

import (
	"context"
	"errors"

	"newsloom/internal/domain/entity"
)

// ErrDuplicateNormalizedURL indicates Create hit the unique constraint on
// normalized_url, e.g. a race against another cycle or a retry within the
// same one. Callers treat this as idempotent success (error kind 5).
var ErrDuplicateNormalizedURL = errors.New("source article: normalized_url already exists")

// SourceArticleRepository persists SourceArticle rows (C3-C5).
type SourceArticleRepository interface {
	// Create inserts a new SourceArticle. A unique-constraint violation on
	// normalized_url returns ErrDuplicateNormalizedURL, which the caller
	// treats as idempotent success (C3's failure model, error kind 5 in
	// the error handling design).
	Create(ctx context.Context, a *entity.SourceArticle) error

	// ExistsByNormalizedURL backs the Dedup Gate's is_new lookup.
	ExistsByNormalizedURL(ctx context.Context, normalizedURL string) (bool, error)

	// ExistsByNormalizedURLBatch avoids N+1 lookups across a feed's items,
	// mirroring the teacher's ExistsByURLBatch.
	ExistsByNormalizedURLBatch(ctx context.Context, normalizedURLs []string) (map[string]bool, error)

	// ListPending returns SourceArticles awaiting the Scorer (C4).
	ListPending(ctx context.Context, limit int) ([]*entity.SourceArticle, error)

	// UpdateScore applies a Scorer decision.
	UpdateScore(ctx context.Context, id int64, score float64, category string, status entity.SourceArticleStatus) error

	// UpdateContent stores full text fetched by C6.
	UpdateContent(ctx context.Context, id int64, content string) error

	// AttachToCluster marks the row clustered, per the immutability invariant.
	AttachToCluster(ctx context.Context, id int64, clusterID int64) error

	// ListByCluster returns all SourceArticles for a cluster, used by C6-C10.
	ListByCluster(ctx context.Context, clusterID int64) ([]*entity.SourceArticle, error)

	// CountByCluster backs the source_count invariant check.
	CountByCluster(ctx context.Context, clusterID int64) (int, error)
}
