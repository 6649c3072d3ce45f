package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"newsloom/internal/domain/entity"
	"newsloom/internal/repository"
)

// uniqueViolationCode is Postgres' SQLSTATE for a unique-constraint violation.
const uniqueViolationCode = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolationCode
	}
	return false
}

// SourceArticleRepo implements repository.SourceArticleRepository for PostgreSQL.
type SourceArticleRepo struct {
	db *sql.DB
}

// NewSourceArticleRepo creates a new PostgreSQL-based SourceArticleRepository.
func NewSourceArticleRepo(db *sql.DB) repository.SourceArticleRepository {
	return &SourceArticleRepo{db: db}
}

// Create inserts a new SourceArticle. A unique-constraint violation on
// normalized_url is surfaced to the caller, who treats it as idempotent
// success per the error handling design.
func (r *SourceArticleRepo) Create(ctx context.Context, a *entity.SourceArticle) error {
	if a == nil {
		return fmt.Errorf("Create: article is nil")
	}
	if err := a.Validate(); err != nil {
		return fmt.Errorf("Create: %w", err)
	}

	const query = `
INSERT INTO source_articles
    (normalized_url, original_url, source_name, title, description, content,
     image_url, published_at, fetched_at, score, category, cluster_id, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
RETURNING id, fetched_at`

	err := r.db.QueryRowContext(ctx, query,
		a.NormalizedURL, a.OriginalURL, a.SourceName, a.Title, a.Description, a.Content,
		a.ImageURL, a.PublishedAt, a.FetchedAt, a.Score, a.Category, a.ClusterID, string(a.Status),
	).Scan(&a.ID, &a.FetchedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicateNormalizedURL
		}
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

// ExistsByNormalizedURL backs the Dedup Gate's is_new lookup.
func (r *SourceArticleRepo) ExistsByNormalizedURL(ctx context.Context, normalizedURL string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM source_articles WHERE normalized_url = $1)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, normalizedURL).Scan(&exists); err != nil {
		return false, fmt.Errorf("ExistsByNormalizedURL: %w", err)
	}
	return exists, nil
}

// ExistsByNormalizedURLBatch avoids N+1 lookups across a feed's items.
func (r *SourceArticleRepo) ExistsByNormalizedURLBatch(ctx context.Context, normalizedURLs []string) (map[string]bool, error) {
	result := make(map[string]bool, len(normalizedURLs))
	if len(normalizedURLs) == 0 {
		return result, nil
	}
	for _, u := range normalizedURLs {
		result[u] = false
	}

	const query = `SELECT normalized_url FROM source_articles WHERE normalized_url = ANY($1)`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(normalizedURLs))
	if err != nil {
		return nil, fmt.Errorf("ExistsByNormalizedURLBatch: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("ExistsByNormalizedURLBatch: Scan: %w", err)
		}
		result[u] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ExistsByNormalizedURLBatch: %w", err)
	}
	return result, nil
}

// ListPending returns SourceArticles awaiting the Scorer (C4).
func (r *SourceArticleRepo) ListPending(ctx context.Context, limit int) ([]*entity.SourceArticle, error) {
	if limit <= 0 {
		limit = 100
	}

	const query = `
SELECT id, normalized_url, original_url, source_name, title, description, content,
       image_url, published_at, fetched_at, score, category, cluster_id, status
FROM source_articles
WHERE status = 'pending'
ORDER BY fetched_at
LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("ListPending: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanSourceArticles(rows)
}

// UpdateScore applies a Scorer decision.
func (r *SourceArticleRepo) UpdateScore(ctx context.Context, id int64, score float64, category string, status entity.SourceArticleStatus) error {
	const query = `UPDATE source_articles SET score = $1, category = $2, status = $3 WHERE id = $4`

	if _, err := r.db.ExecContext(ctx, query, score, category, string(status), id); err != nil {
		return fmt.Errorf("UpdateScore: %w", err)
	}
	return nil
}

// UpdateContent stores full text fetched by C6.
func (r *SourceArticleRepo) UpdateContent(ctx context.Context, id int64, content string) error {
	const query = `UPDATE source_articles SET content = $1 WHERE id = $2`

	if _, err := r.db.ExecContext(ctx, query, content, id); err != nil {
		return fmt.Errorf("UpdateContent: %w", err)
	}
	return nil
}

// AttachToCluster marks the row clustered, per the immutability invariant.
func (r *SourceArticleRepo) AttachToCluster(ctx context.Context, id int64, clusterID int64) error {
	const query = `
UPDATE source_articles
SET cluster_id = $1, status = 'clustered'
WHERE id = $2 AND cluster_id IS NULL`

	result, err := r.db.ExecContext(ctx, query, clusterID, id)
	if err != nil {
		return fmt.Errorf("AttachToCluster: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("AttachToCluster: RowsAffected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("AttachToCluster: article %d already clustered or missing", id)
	}
	return nil
}

// ListByCluster returns all SourceArticles for a cluster, used by C6-C10.
func (r *SourceArticleRepo) ListByCluster(ctx context.Context, clusterID int64) ([]*entity.SourceArticle, error) {
	const query = `
SELECT id, normalized_url, original_url, source_name, title, description, content,
       image_url, published_at, fetched_at, score, category, cluster_id, status
FROM source_articles
WHERE cluster_id = $1
ORDER BY fetched_at`

	rows, err := r.db.QueryContext(ctx, query, clusterID)
	if err != nil {
		return nil, fmt.Errorf("ListByCluster: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanSourceArticles(rows)
}

// CountByCluster backs the source_count invariant check.
func (r *SourceArticleRepo) CountByCluster(ctx context.Context, clusterID int64) (int, error) {
	const query = `SELECT COUNT(*) FROM source_articles WHERE cluster_id = $1`

	var count int
	if err := r.db.QueryRowContext(ctx, query, clusterID).Scan(&count); err != nil {
		return 0, fmt.Errorf("CountByCluster: %w", err)
	}
	return count, nil
}

func scanSourceArticles(rows *sql.Rows) ([]*entity.SourceArticle, error) {
	articles := make([]*entity.SourceArticle, 0)
	for rows.Next() {
		a := &entity.SourceArticle{}
		var status string
		err := rows.Scan(
			&a.ID, &a.NormalizedURL, &a.OriginalURL, &a.SourceName, &a.Title, &a.Description, &a.Content,
			&a.ImageURL, &a.PublishedAt, &a.FetchedAt, &a.Score, &a.Category, &a.ClusterID, &status,
		)
		if err != nil {
			return nil, fmt.Errorf("scanSourceArticles: Scan: %w", err)
		}
		a.Status = entity.SourceArticleStatus(status)
		articles = append(articles, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scanSourceArticles: %w", err)
	}
	return articles, nil
}
