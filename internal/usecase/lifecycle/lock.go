// Package lifecycle implements the Run Lock and Cluster Lifecycle use case
// (C12): single-writer cycle locking and closing idle/expired clusters.
package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"newsloom/internal/config"
	"newsloom/internal/repository"
)

// LockOutcome reports what acquiring the run lock resulted in.
type LockOutcome string

const (
	LockAcquired LockOutcome = "acquired"
	LockSkipped  LockOutcome = "skipped" // another cycle is actively running
)

// LockManager wraps the single-row RunLock per spec.md §4.12. A missing
// lock table is treated as "no lock needed": every call reports
// LockAcquired and Release is a no-op.
type LockManager struct {
	Repo   repository.RunLockRepository
	Config config.LockConfig
	Now    func() time.Time
}

// NewLockManager builds a LockManager.
func NewLockManager(repo repository.RunLockRepository, cfg config.LockConfig) *LockManager {
	return &LockManager{Repo: repo, Config: cfg, Now: time.Now}
}

// Acquire attempts to take the run lock. It reclaims a stale lock
// (is_running=true but older than the timeout) exactly as a fresh
// acquisition.
func (m *LockManager) Acquire(ctx context.Context) (LockOutcome, error) {
	lock, err := m.Repo.Get(ctx)
	if errors.Is(err, repository.ErrLockTableMissing) {
		return LockAcquired, nil
	}
	if err != nil {
		return LockSkipped, err
	}

	now := m.Now()
	if lock != nil && lock.IsRunning && !lock.IsStale(now, m.Config.Timeout) {
		slog.InfoContext(ctx, "run lock held by an active cycle, skipping",
			slog.Time("started_at", lock.StartedAt))
		return LockSkipped, nil
	}

	if lock != nil && lock.IsRunning {
		slog.WarnContext(ctx, "reclaiming stale run lock",
			slog.Time("started_at", lock.StartedAt), slog.Duration("timeout", m.Config.Timeout))
	}

	if err := m.Repo.Acquire(ctx); err != nil {
		return LockSkipped, err
	}
	return LockAcquired, nil
}

// Release marks the lock free. Errors are logged, not propagated: a failed
// release should not turn a completed cycle into a reported failure, since
// the next cycle's stale-reclaim logic recovers regardless.
func (m *LockManager) Release(ctx context.Context) {
	if err := m.Repo.Release(ctx); err != nil && !errors.Is(err, repository.ErrLockTableMissing) {
		slog.ErrorContext(ctx, "failed to release run lock", slog.String("error", err.Error()))
	}
}

// Sweeper closes clusters past the idle/max-age window.
type Sweeper struct {
	Repo   repository.ClusterRepository
	Config config.ClusterConfig
}

// NewSweeper builds a Sweeper.
func NewSweeper(repo repository.ClusterRepository, cfg config.ClusterConfig) *Sweeper {
	return &Sweeper{Repo: repo, Config: cfg}
}

// Sweep closes every stale active cluster and returns how many it closed.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	idleHours := int(s.Config.IdleTimeout.Hours())
	maxHours := int(s.Config.MaxAge.Hours())

	stale, err := s.Repo.ListStale(ctx, idleHours, maxHours)
	if err != nil {
		return 0, err
	}
	if len(stale) == 0 {
		return 0, nil
	}

	ids := make([]int64, 0, len(stale))
	for _, c := range stale {
		ids = append(ids, c.ID)
	}

	if err := s.Repo.Close(ctx, ids); err != nil {
		return 0, err
	}

	slog.InfoContext(ctx, "closed stale clusters", slog.Int("count", len(ids)))
	return len(ids), nil
}
