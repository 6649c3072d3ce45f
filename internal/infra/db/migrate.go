package db

import (
	"database/sql"
)

// MigrateUp creates the pipeline's schema: source_articles, clusters,
// published_articles, pipeline_run_lock and pipeline_cycles. The source
// catalogue itself is not a table — it is the embedded YAML in
// internal/domain/catalogue — so unlike the teacher there is no seed
// statement here.
func MigrateUp(db *sql.DB) error {
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS source_articles (
    id              BIGSERIAL PRIMARY KEY,
    normalized_url  TEXT NOT NULL UNIQUE,
    original_url    TEXT NOT NULL,
    source_name     TEXT NOT NULL,
    title           TEXT NOT NULL,
    description     TEXT,
    content         TEXT,
    image_url       TEXT,
    published_at    TIMESTAMPTZ,
    fetched_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
    score           DOUBLE PRECISION,
    category        TEXT,
    cluster_id      BIGINT,
    status          VARCHAR(20) NOT NULL DEFAULT 'pending'
)`); err != nil {
		return err
	}

	// vector(1536) matches OpenAI's text-embedding-3-small output, the
	// same fixed dimension the teacher pins article_embeddings to.
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS clusters (
    id                  BIGSERIAL PRIMARY KEY,
    title               TEXT NOT NULL,
    keywords            TEXT[] NOT NULL DEFAULT '{}',
    centroid_embedding  vector(1536),
    status              VARCHAR(20) NOT NULL DEFAULT 'active',
    source_count        INT NOT NULL DEFAULT 0,
    category            TEXT,
    first_seen_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
    last_updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
)`); err != nil {
		return err
	}

	// Postgres has no ADD CONSTRAINT IF NOT EXISTS; guard with pg_constraint,
	// the same idiom the teacher uses for chk_source_type.
	if _, err := db.Exec(`
DO $$
BEGIN
    IF NOT EXISTS (
        SELECT 1 FROM pg_constraint WHERE conname = 'fk_source_articles_cluster'
    ) THEN
        ALTER TABLE source_articles
            ADD CONSTRAINT fk_source_articles_cluster
            FOREIGN KEY (cluster_id) REFERENCES clusters(id);
    END IF;
END $$;
`); err != nil {
		return err
	}

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS published_articles (
    id                 BIGSERIAL PRIMARY KEY,
    cluster_id         BIGINT NOT NULL UNIQUE REFERENCES clusters(id),
    title              TEXT NOT NULL,
    content_standard   TEXT NOT NULL,
    content_b2         TEXT NOT NULL,
    bullets            TEXT[] NOT NULL DEFAULT '{}',
    image_url          TEXT,
    timeline           JSONB,
    details            JSONB,
    graph              JSONB,
    map_anchor         JSONB,
    display_score      INT NOT NULL DEFAULT 0,
    countries          TEXT[] NOT NULL DEFAULT '{}',
    topics             TEXT[] NOT NULL DEFAULT '{}',
    source_count       INT NOT NULL DEFAULT 0,
    published_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
    revised_at         TIMESTAMPTZ NOT NULL DEFAULT now()
)`); err != nil {
		return err
	}

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS pipeline_run_lock (
    id           INT PRIMARY KEY DEFAULT 1,
    is_running   BOOLEAN NOT NULL DEFAULT FALSE,
    started_at   TIMESTAMPTZ,
    finished_at  TIMESTAMPTZ,
    CONSTRAINT chk_run_lock_singleton CHECK (id = 1)
)`); err != nil {
		return err
	}
	if _, err := db.Exec(`
INSERT INTO pipeline_run_lock (id, is_running)
VALUES (1, FALSE)
ON CONFLICT (id) DO NOTHING`); err != nil {
		return err
	}

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS pipeline_cycles (
    id            BIGSERIAL PRIMARY KEY,
    started_at    TIMESTAMPTZ NOT NULL,
    finished_at   TIMESTAMPTZ NOT NULL,
    fetched       INT NOT NULL DEFAULT 0,
    new           INT NOT NULL DEFAULT 0,
    scored        INT NOT NULL DEFAULT 0,
    rejected      INT NOT NULL DEFAULT 0,
    clustered     INT NOT NULL DEFAULT 0,
    synthesized   INT NOT NULL DEFAULT 0,
    published     INT NOT NULL DEFAULT 0,
    revised       INT NOT NULL DEFAULT 0,
    errors        INT NOT NULL DEFAULT 0,
    outcome       VARCHAR(20) NOT NULL,
    failure_note  TEXT
)`); err != nil {
		return err
	}

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_source_articles_status ON source_articles(status)`,
		`CREATE INDEX IF NOT EXISTS idx_source_articles_cluster_id ON source_articles(cluster_id)`,
		`CREATE INDEX IF NOT EXISTS idx_source_articles_published_at ON source_articles(published_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_clusters_status ON clusters(status) WHERE status = 'active'`,
		`CREATE INDEX IF NOT EXISTS idx_clusters_last_updated_at ON clusters(last_updated_at)`,
		`CREATE INDEX IF NOT EXISTS idx_published_articles_display_score ON published_articles(display_score DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_pipeline_cycles_started_at ON pipeline_cycles(started_at DESC)`,
	}
	for _, idx := range indexes {
		if _, err := db.Exec(idx); err != nil {
			return err
		}
	}

	// pg_trgm powers the title/keyword ILIKE search the display API may use
	// later; ignored if the extension is unavailable, same as the teacher.
	_, _ = db.Exec(`CREATE EXTENSION IF NOT EXISTS pg_trgm`)
	_, _ = db.Exec(`CREATE INDEX IF NOT EXISTS idx_clusters_title_gin ON clusters USING gin(title gin_trgm_ops)`)

	// pgvector powers centroid similarity search (C5).
	_, _ = db.Exec(`CREATE EXTENSION IF NOT EXISTS vector`)
	_, _ = db.Exec(`
CREATE INDEX IF NOT EXISTS idx_clusters_centroid_embedding
    ON clusters USING ivfflat (centroid_embedding vector_cosine_ops)
    WITH (lists = 100)`)

	return nil
}

// MigrateDown drops every table this package created, in dependency order.
// Use with caution: this deletes all pipeline data.
func MigrateDown(db *sql.DB) error {
	dropStatements := []string{
		`DROP INDEX IF EXISTS idx_clusters_centroid_embedding`,
		`DROP TABLE IF EXISTS pipeline_cycles CASCADE`,
		`DROP TABLE IF EXISTS pipeline_run_lock CASCADE`,
		`DROP TABLE IF EXISTS published_articles CASCADE`,
		`DROP TABLE IF EXISTS source_articles CASCADE`,
		`DROP TABLE IF EXISTS clusters CASCADE`,
	}
	for _, stmt := range dropStatements {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
