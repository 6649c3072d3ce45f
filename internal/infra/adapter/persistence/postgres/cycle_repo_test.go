package postgres_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	pg "newsloom/internal/infra/adapter/persistence/postgres"
	"newsloom/internal/repository"
)

func TestCycleRepo_Record(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	now := time.Now()
	rec := &repository.CycleRecord{
		StartedAt: now, FinishedAt: now.Add(2 * time.Minute),
		Fetched: 120, New: 40, Scored: 40, Rejected: 30, Clustered: 10,
		Synthesized: 5, Published: 4, Revised: 1, Errors: 0, Outcome: "success",
	}

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO pipeline_cycles")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))

	repo := pg.NewCycleRepo(db)
	if err := repo.Record(context.Background(), rec); err != nil {
		t.Fatalf("Record err=%v", err)
	}
	if rec.ID != 1 {
		t.Fatalf("expected ID=1, got %d", rec.ID)
	}
}

func TestCycleRepo_Record_NilRecord(t *testing.T) {
	db, _, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	repo := pg.NewCycleRepo(db)
	if err := repo.Record(context.Background(), nil); err == nil {
		t.Fatal("expected error for nil record")
	}
}

func TestCycleRepo_Record_Failure(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	now := time.Now()
	rec := &repository.CycleRecord{
		StartedAt: now, FinishedAt: now, Outcome: "failed", FailureNote: "timeout acquiring lock",
	}

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO pipeline_cycles")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(2)))

	repo := pg.NewCycleRepo(db)
	if err := repo.Record(context.Background(), rec); err != nil {
		t.Fatalf("Record err=%v", err)
	}
}
