// Package store persists classification outcomes and run records, and
// reads debates from the ingestion schema. Two drivers: Postgres (pgx)
// and SQLite (modernc, for local runs).
package store

import (
	"context"
	"time"

	"github.com/commons-lab/hansard-classify/internal/model"
)

// Filter narrows the debate set for a run. Zero times mean unbounded;
// a zero limit means no limit.
type Filter struct {
	From  time.Time
	To    time.Time
	Limit int
}

// Store is the persistence interface for the classification engine.
// Debates and their speeches are read-only ingestion data; outcomes and
// run records are owned by this engine.
type Store interface {
	// Ingestion reads. Debates are returned in stable order: date, then id.
	ListDebates(ctx context.Context, f Filter) ([]model.Debate, error)
	SampleSpeeches(ctx context.Context, debateID string, limit int) ([]string, error)

	// UpsertOutcome writes the outcome for a debate and propagates it to
	// every speech row of that debate in one transaction.
	UpsertOutcome(ctx context.Context, o model.Outcome) error

	// Run records.
	CreateRun(ctx context.Context) (string, error)
	CompleteRun(ctx context.Context, runID string, run model.Run) error
	FailRun(ctx context.Context, runID string, errMsg string) error
	ListRuns(ctx context.Context, limit int) ([]model.Run, error)

	// Lifecycle.
	Migrate(ctx context.Context) error
	Close() error
}
