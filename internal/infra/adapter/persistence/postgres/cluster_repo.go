package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"newsloom/internal/domain/entity"
	"newsloom/internal/repository"
)

// DefaultSearchTimeout bounds the centroid similarity query (C5), mirroring
// the teacher's ArticleEmbeddingRepo.
const DefaultSearchTimeout = 5 * time.Second

// ClusterRepo implements repository.ClusterRepository for PostgreSQL.
type ClusterRepo struct {
	db *sql.DB
}

// NewClusterRepo creates a new PostgreSQL-based ClusterRepository.
func NewClusterRepo(db *sql.DB) repository.ClusterRepository {
	return &ClusterRepo{db: db}
}

// Create opens a new cluster seeded from its first member's embedding.
func (r *ClusterRepo) Create(ctx context.Context, c *entity.Cluster) error {
	if c == nil {
		return fmt.Errorf("Create: cluster is nil")
	}

	vector := pgvector.NewVector(c.CentroidEmbedding)

	const query = `
INSERT INTO clusters (title, keywords, centroid_embedding, status, source_count, category, first_seen_at, last_updated_at)
VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
RETURNING id, first_seen_at, last_updated_at`

	err := r.db.QueryRowContext(ctx, query,
		c.Title, pq.Array(c.Keywords), vector, string(c.Status), c.SourceCount, c.Category,
	).Scan(&c.ID, &c.FirstSeenAt, &c.LastUpdatedAt)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

// ListActive returns clusters with status=active.
func (r *ClusterRepo) ListActive(ctx context.Context) ([]*entity.Cluster, error) {
	const query = `
SELECT id, title, keywords, centroid_embedding, status, source_count, category, first_seen_at, last_updated_at
FROM clusters
WHERE status = 'active'
ORDER BY last_updated_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ListActive: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanClusters(rows)
}

// Get fetches a single cluster by id.
func (r *ClusterRepo) Get(ctx context.Context, id int64) (*entity.Cluster, error) {
	const query = `
SELECT id, title, keywords, centroid_embedding, status, source_count, category, first_seen_at, last_updated_at
FROM clusters
WHERE id = $1`

	c := &entity.Cluster{}
	var status string
	var keywords pq.StringArray
	var vector pgvector.Vector

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&c.ID, &c.Title, &keywords, &vector, &status, &c.SourceCount, &c.Category, &c.FirstSeenAt, &c.LastUpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	c.Keywords = []string(keywords)
	c.CentroidEmbedding = vector.Slice()
	c.Status = entity.ClusterStatus(status)
	return c, nil
}

// UpdateState persists a cluster's centroid, keywords and timestamps after
// an attach, following the teacher's Upsert-by-key idiom even though this
// is a plain keyed update (the row always pre-exists via Create).
func (r *ClusterRepo) UpdateState(ctx context.Context, c *entity.Cluster) error {
	if c == nil {
		return fmt.Errorf("UpdateState: cluster is nil")
	}

	vector := pgvector.NewVector(c.CentroidEmbedding)

	const query = `
UPDATE clusters
SET title = $1, keywords = $2, centroid_embedding = $3, status = $4,
    source_count = $5, category = $6, last_updated_at = NOW()
WHERE id = $7
RETURNING last_updated_at`

	err := r.db.QueryRowContext(ctx, query,
		c.Title, pq.Array(c.Keywords), vector, string(c.Status), c.SourceCount, c.Category, c.ID,
	).Scan(&c.LastUpdatedAt)
	if err != nil {
		return fmt.Errorf("UpdateState: %w", err)
	}
	return nil
}

// SearchSimilar finds active clusters whose centroid is closest to the
// given embedding via pgvector's <=> cosine-distance operator, exactly as
// the teacher's ArticleEmbeddingRepo.SearchSimilar does.
func (r *ClusterRepo) SearchSimilar(ctx context.Context, embedding []float32, limit int) ([]repository.SimilarCluster, error) {
	searchCtx, cancel := context.WithTimeout(ctx, DefaultSearchTimeout)
	defer cancel()

	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}

	vector := pgvector.NewVector(embedding)

	const query = `
SELECT id, 1 - (centroid_embedding <=> $1) AS similarity
FROM clusters
WHERE status = 'active'
ORDER BY centroid_embedding <=> $1
LIMIT $2`

	rows, err := r.db.QueryContext(searchCtx, query, vector, limit)
	if err != nil {
		return nil, fmt.Errorf("SearchSimilar: %w", err)
	}
	defer func() { _ = rows.Close() }()

	results := make([]repository.SimilarCluster, 0, limit)
	for rows.Next() {
		var result repository.SimilarCluster
		if err := rows.Scan(&result.ClusterID, &result.Similarity); err != nil {
			return nil, fmt.Errorf("SearchSimilar: Scan: %w", err)
		}
		results = append(results, result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("SearchSimilar: %w", err)
	}
	return results, nil
}

// Close marks clusters closed, used by the lifecycle sweeper (C12).
func (r *ClusterRepo) Close(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	const query = `UPDATE clusters SET status = 'closed' WHERE id = ANY($1)`

	if _, err := r.db.ExecContext(ctx, query, pq.Array(ids)); err != nil {
		return fmt.Errorf("Close: %w", err)
	}
	return nil
}

// ListStale returns active clusters past the idle/max-age window, for the
// sweeper to close.
func (r *ClusterRepo) ListStale(ctx context.Context, idleHours, maxHours int) ([]*entity.Cluster, error) {
	const query = `
SELECT id, title, keywords, centroid_embedding, status, source_count, category, first_seen_at, last_updated_at
FROM clusters
WHERE status = 'active'
  AND (last_updated_at < NOW() - ($1 || ' hours')::INTERVAL
       OR first_seen_at < NOW() - ($2 || ' hours')::INTERVAL)`

	rows, err := r.db.QueryContext(ctx, query, idleHours, maxHours)
	if err != nil {
		return nil, fmt.Errorf("ListStale: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanClusters(rows)
}

func scanClusters(rows *sql.Rows) ([]*entity.Cluster, error) {
	clusters := make([]*entity.Cluster, 0)
	for rows.Next() {
		c := &entity.Cluster{}
		var status string
		var keywords pq.StringArray
		var vector pgvector.Vector

		err := rows.Scan(
			&c.ID, &c.Title, &keywords, &vector, &status, &c.SourceCount, &c.Category, &c.FirstSeenAt, &c.LastUpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanClusters: Scan: %w", err)
		}
		c.Keywords = []string(keywords)
		c.CentroidEmbedding = vector.Slice()
		c.Status = entity.ClusterStatus(status)
		clusters = append(clusters, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scanClusters: %w", err)
	}
	return clusters, nil
}
