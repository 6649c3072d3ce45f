package repository

import (
	"context"

	"newsloom/internal/domain/entity"
)

// RunLockRepository persists the single-row RunLock (C12). A missing lock
// table is treated as "no lock needed" per spec: callers check
// ErrLockTableMissing and proceed without locking rather than failing the
// cycle.
type RunLockRepository interface {
	// Get reads the current lock row. Returns ErrLockTableMissing if the
	// table does not exist.
	Get(ctx context.Context) (*entity.RunLock, error)

	// Acquire sets is_running=true, started_at=now, finished_at=null.
	Acquire(ctx context.Context) error

	// Release sets is_running=false, finished_at=now.
	Release(ctx context.Context) error
}

// ErrLockTableMissing indicates the pipeline_run_lock table is absent; the
// orchestrator treats this as "no lock needed" rather than a fatal error.
var ErrLockTableMissing = errLockTableMissing{}

type errLockTableMissing struct{}

func (errLockTableMissing) Error() string { return "pipeline_run_lock table missing" }
