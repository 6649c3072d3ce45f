package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"newsloom/internal/domain/entity"
	"newsloom/internal/repository"
)

// PublishedArticleRepo implements repository.PublishedArticleRepository for PostgreSQL.
type PublishedArticleRepo struct {
	db *sql.DB
}

// NewPublishedArticleRepo creates a new PostgreSQL-based PublishedArticleRepository.
func NewPublishedArticleRepo(db *sql.DB) repository.PublishedArticleRepository {
	return &PublishedArticleRepo{db: db}
}

// GetByClusterID returns the article published for a cluster, if any.
func (r *PublishedArticleRepo) GetByClusterID(ctx context.Context, clusterID int64) (*entity.PublishedArticle, error) {
	const query = `
SELECT id, cluster_id, title, content_standard, content_b2, bullets, image_url,
       timeline, details, graph, map_anchor, display_score, countries, topics,
       source_count, published_at, revised_at
FROM published_articles
WHERE cluster_id = $1`

	a := &entity.PublishedArticle{}
	var bullets, countries, topics pq.StringArray
	var timelineJSON, detailsJSON, graphJSON, mapJSON []byte

	err := r.db.QueryRowContext(ctx, query, clusterID).Scan(
		&a.ID, &a.ClusterID, &a.Title, &a.ContentStandard, &a.ContentB2, &bullets, &a.ImageURL,
		&timelineJSON, &detailsJSON, &graphJSON, &mapJSON, &a.DisplayScore, &countries, &topics,
		&a.SourceCountAtPublish, &a.PublishedAt, &a.LastRevisedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetByClusterID: %w", err)
	}

	a.SummaryBullets = []string(bullets)
	a.Countries = []string(countries)
	a.Topics = []string(topics)
	if err := unmarshalPublishedArticleJSON(a, timelineJSON, detailsJSON, graphJSON, mapJSON); err != nil {
		return nil, fmt.Errorf("GetByClusterID: %w", err)
	}
	return a, nil
}

// Upsert inserts a new row or updates the existing one in place, keyed on
// cluster_id, matching the "no new row on revision" invariant.
func (r *PublishedArticleRepo) Upsert(ctx context.Context, a *entity.PublishedArticle) error {
	if a == nil {
		return fmt.Errorf("Upsert: article is nil")
	}

	timelineJSON, err := json.Marshal(a.Timeline)
	if err != nil {
		return fmt.Errorf("Upsert: marshal timeline: %w", err)
	}
	detailsJSON, err := json.Marshal(a.Details)
	if err != nil {
		return fmt.Errorf("Upsert: marshal details: %w", err)
	}
	graphJSON, err := json.Marshal(a.Graph)
	if err != nil {
		return fmt.Errorf("Upsert: marshal graph: %w", err)
	}
	mapJSON, err := json.Marshal(a.Map)
	if err != nil {
		return fmt.Errorf("Upsert: marshal map_anchor: %w", err)
	}

	const query = `
INSERT INTO published_articles
    (cluster_id, title, content_standard, content_b2, bullets, image_url,
     timeline, details, graph, map_anchor, display_score, countries, topics,
     source_count, published_at, revised_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NOW(), NOW())
ON CONFLICT (cluster_id)
DO UPDATE SET
    title            = EXCLUDED.title,
    content_standard = EXCLUDED.content_standard,
    content_b2       = EXCLUDED.content_b2,
    bullets          = EXCLUDED.bullets,
    image_url        = EXCLUDED.image_url,
    timeline         = EXCLUDED.timeline,
    details          = EXCLUDED.details,
    graph            = EXCLUDED.graph,
    map_anchor       = EXCLUDED.map_anchor,
    display_score    = EXCLUDED.display_score,
    countries        = EXCLUDED.countries,
    topics           = EXCLUDED.topics,
    source_count     = EXCLUDED.source_count,
    revised_at       = NOW()
RETURNING id, published_at, revised_at`

	err = r.db.QueryRowContext(ctx, query,
		a.ClusterID, a.Title, a.ContentStandard, a.ContentB2, pq.Array(a.SummaryBullets), a.ImageURL,
		timelineJSON, detailsJSON, graphJSON, mapJSON, a.DisplayScore, pq.Array(a.Countries), pq.Array(a.Topics),
		a.SourceCountAtPublish,
	).Scan(&a.ID, &a.PublishedAt, &a.LastRevisedAt)
	if err != nil {
		return fmt.Errorf("Upsert: %w", err)
	}
	return nil
}

// ListRecent returns the most recently revised articles, newest first, for
// use as Display Scorer calibration anchors.
func (r *PublishedArticleRepo) ListRecent(ctx context.Context, limit int) ([]*entity.PublishedArticle, error) {
	if limit <= 0 {
		limit = 10
	}

	const query = `
SELECT id, cluster_id, title, content_standard, content_b2, bullets, image_url,
       timeline, details, graph, map_anchor, display_score, countries, topics,
       source_count, published_at, revised_at
FROM published_articles
ORDER BY revised_at DESC
LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("ListRecent: %w", err)
	}
	defer func() { _ = rows.Close() }()

	articles := make([]*entity.PublishedArticle, 0, limit)
	for rows.Next() {
		a := &entity.PublishedArticle{}
		var bullets, countries, topics pq.StringArray
		var timelineJSON, detailsJSON, graphJSON, mapJSON []byte

		err := rows.Scan(
			&a.ID, &a.ClusterID, &a.Title, &a.ContentStandard, &a.ContentB2, &bullets, &a.ImageURL,
			&timelineJSON, &detailsJSON, &graphJSON, &mapJSON, &a.DisplayScore, &countries, &topics,
			&a.SourceCountAtPublish, &a.PublishedAt, &a.LastRevisedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("ListRecent: Scan: %w", err)
		}
		a.SummaryBullets = []string(bullets)
		a.Countries = []string(countries)
		a.Topics = []string(topics)
		if err := unmarshalPublishedArticleJSON(a, timelineJSON, detailsJSON, graphJSON, mapJSON); err != nil {
			return nil, fmt.Errorf("ListRecent: %w", err)
		}
		articles = append(articles, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListRecent: %w", err)
	}
	return articles, nil
}

func unmarshalPublishedArticleJSON(a *entity.PublishedArticle, timelineJSON, detailsJSON, graphJSON, mapJSON []byte) error {
	if len(timelineJSON) > 0 && string(timelineJSON) != "null" {
		if err := json.Unmarshal(timelineJSON, &a.Timeline); err != nil {
			return fmt.Errorf("unmarshal timeline: %w", err)
		}
	}
	if len(detailsJSON) > 0 && string(detailsJSON) != "null" {
		if err := json.Unmarshal(detailsJSON, &a.Details); err != nil {
			return fmt.Errorf("unmarshal details: %w", err)
		}
	}
	if len(graphJSON) > 0 && string(graphJSON) != "null" {
		var g entity.Graph
		if err := json.Unmarshal(graphJSON, &g); err != nil {
			return fmt.Errorf("unmarshal graph: %w", err)
		}
		a.Graph = &g
	}
	if len(mapJSON) > 0 && string(mapJSON) != "null" {
		var m entity.MapAnchor
		if err := json.Unmarshal(mapJSON, &m); err != nil {
			return fmt.Errorf("unmarshal map_anchor: %w", err)
		}
		a.Map = &m
	}
	return nil
}
