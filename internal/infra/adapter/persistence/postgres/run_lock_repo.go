package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"newsloom/internal/domain/entity"
	"newsloom/internal/repository"
)

// undefinedTableCode is Postgres' SQLSTATE for a missing relation.
const undefinedTableCode = "42P01"

// RunLockRepo implements repository.RunLockRepository for PostgreSQL.
type RunLockRepo struct {
	db *sql.DB
}

// NewRunLockRepo creates a new PostgreSQL-based RunLockRepository.
func NewRunLockRepo(db *sql.DB) repository.RunLockRepository {
	return &RunLockRepo{db: db}
}

// Get reads the current lock row, returning ErrLockTableMissing if the
// pipeline_run_lock table does not exist.
func (r *RunLockRepo) Get(ctx context.Context) (*entity.RunLock, error) {
	const query = `SELECT is_running, started_at, finished_at FROM pipeline_run_lock WHERE id = $1`

	lock := &entity.RunLock{}
	var startedAt sql.NullTime
	var finishedAt sql.NullTime

	err := r.db.QueryRowContext(ctx, query, entity.RunLockID).Scan(&lock.IsRunning, &startedAt, &finishedAt)
	if err != nil {
		if isUndefinedTable(err) {
			return nil, repository.ErrLockTableMissing
		}
		return nil, fmt.Errorf("Get: %w", err)
	}

	if startedAt.Valid {
		lock.StartedAt = startedAt.Time
	}
	if finishedAt.Valid {
		t := finishedAt.Time
		lock.FinishedAt = &t
	}
	return lock, nil
}

// Acquire sets is_running=true, started_at=now, finished_at=null.
func (r *RunLockRepo) Acquire(ctx context.Context) error {
	const query = `
UPDATE pipeline_run_lock
SET is_running = TRUE, started_at = NOW(), finished_at = NULL
WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, query, entity.RunLockID); err != nil {
		if isUndefinedTable(err) {
			return repository.ErrLockTableMissing
		}
		return fmt.Errorf("Acquire: %w", err)
	}
	return nil
}

// Release sets is_running=false, finished_at=now.
func (r *RunLockRepo) Release(ctx context.Context) error {
	const query = `
UPDATE pipeline_run_lock
SET is_running = FALSE, finished_at = NOW()
WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, query, entity.RunLockID); err != nil {
		if isUndefinedTable(err) {
			return repository.ErrLockTableMissing
		}
		return fmt.Errorf("Release: %w", err)
	}
	return nil
}

func isUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == undefinedTableCode
	}
	return false
}
