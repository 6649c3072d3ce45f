package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"newsloom/internal/repository"
)

// CycleRepo implements repository.CycleRepository for PostgreSQL.
type CycleRepo struct {
	db *sql.DB
}

// NewCycleRepo creates a new PostgreSQL-based CycleRepository.
func NewCycleRepo(db *sql.DB) repository.CycleRepository {
	return &CycleRepo{db: db}
}

// Record persists one cycle's statistics, grounded on the Python
// prototype's fetch_cycles table.
func (r *CycleRepo) Record(ctx context.Context, rec *repository.CycleRecord) error {
	if rec == nil {
		return fmt.Errorf("Record: record is nil")
	}

	const query = `
INSERT INTO pipeline_cycles
    (started_at, finished_at, fetched, new, scored, rejected, clustered,
     synthesized, published, revised, errors, outcome, failure_note)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
RETURNING id`

	err := r.db.QueryRowContext(ctx, query,
		rec.StartedAt, rec.FinishedAt, rec.Fetched, rec.New, rec.Scored, rec.Rejected, rec.Clustered,
		rec.Synthesized, rec.Published, rec.Revised, rec.Errors, rec.Outcome, rec.FailureNote,
	).Scan(&rec.ID)
	if err != nil {
		return fmt.Errorf("Record: %w", err)
	}
	return nil
}
