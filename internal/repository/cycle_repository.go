package repository

import (
	"context"
	"time"
)

// CycleRecord is one row of per-cycle statistics, grounded on the Python
// prototype's fetch_cycles/ai_filter_cycles tables (§9.G supplemented
// feature) — kept here rather than only logged, so operators can query
// cycle history without scraping logs.
type CycleRecord struct {
	ID           int64
	StartedAt    time.Time
	FinishedAt   time.Time
	Fetched      int
	New          int
	Scored       int
	Rejected     int
	Clustered    int
	Synthesized  int
	Published    int
	Revised      int
	Errors       int
	Outcome      string // "success", "skipped", "failed"
	FailureNote  string
}

// CycleRepository persists per-cycle statistics (C13, §9.G).
type CycleRepository interface {
	Record(ctx context.Context, r *CycleRecord) error
}
