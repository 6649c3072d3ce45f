package repository

import (
	"context"

	"newsloom/internal/domain/entity"
)

// SimilarCluster is one result of a cosine-similarity search against active
// cluster centroids, mirroring the teacher's SimilarArticle shape.
type SimilarCluster struct {
	ClusterID  int64
	Similarity float64
}

// ClusterRepository persists Cluster rows and their pgvector centroids (C5).
type ClusterRepository interface {
	// Create opens a new cluster.
	Create(ctx context.Context, c *entity.Cluster) error

	// ListActive returns clusters with status=active, used to seed the
	// clustering engine's in-memory table at cycle start.
	ListActive(ctx context.Context) ([]*entity.Cluster, error)

	// Get fetches a single cluster by id.
	Get(ctx context.Context, id int64) (*entity.Cluster, error)

	// UpdateState persists a cluster's centroid, keywords and timestamps
	// after an attach, following the teacher's Upsert-by-key idiom.
	UpdateState(ctx context.Context, c *entity.Cluster) error

	// SearchSimilar finds active clusters whose centroid is closest to the
	// given embedding via pgvector's <=> cosine-distance operator, exactly
	// as the teacher's ArticleEmbeddingRepo.SearchSimilar does.
	SearchSimilar(ctx context.Context, embedding []float32, limit int) ([]SimilarCluster, error)

	// Close marks clusters closed, used by the lifecycle sweeper (C12).
	Close(ctx context.Context, ids []int64) error

	// ListStale returns active clusters past the idle/max-age window,
	// for the sweeper to close.
	ListStale(ctx context.Context, idleHours, maxHours int) ([]*entity.Cluster, error)
}
