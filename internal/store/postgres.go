package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/commons-lab/hansard-classify/internal/db"
	"github.com/commons-lab/hansard-classify/internal/model"
)

// PostgresStore implements Store using pgx.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgres creates a PostgresStore over an existing pool.
func NewPostgres(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
ALTER TABLE speeches ADD COLUMN IF NOT EXISTS relevance_related BOOLEAN DEFAULT FALSE;
ALTER TABLE speeches ADD COLUMN IF NOT EXISTS relevance_confidence DOUBLE PRECISION DEFAULT 0.0;
ALTER TABLE speeches ADD COLUMN IF NOT EXISTS relevance_lexical_confidence DOUBLE PRECISION DEFAULT 0.0;
ALTER TABLE speeches ADD COLUMN IF NOT EXISTS relevance_oracle_confidence DOUBLE PRECISION DEFAULT 0.0;
ALTER TABLE speeches ADD COLUMN IF NOT EXISTS relevance_matched_terms TEXT;
ALTER TABLE speeches ADD COLUMN IF NOT EXISTS relevance_reasoning TEXT;

CREATE TABLE IF NOT EXISTS debate_outcomes (
	debate_id           TEXT PRIMARY KEY,
	related             BOOLEAN NOT NULL,
	combined_confidence DOUBLE PRECISION NOT NULL,
	lexical_confidence  DOUBLE PRECISION NOT NULL,
	oracle_confidence   DOUBLE PRECISION NOT NULL,
	matched_terms       TEXT,
	reasoning           TEXT,
	classified_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS classification_runs (
	id             UUID PRIMARY KEY,
	status         TEXT NOT NULL DEFAULT 'running',
	started_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at   TIMESTAMPTZ,
	total_units    INTEGER NOT NULL DEFAULT 0,
	processed      INTEGER NOT NULL DEFAULT 0,
	skipped        INTEGER NOT NULL DEFAULT 0,
	oracle_invoked INTEGER NOT NULL DEFAULT 0,
	positive       INTEGER NOT NULL DEFAULT 0,
	input_tokens   BIGINT NOT NULL DEFAULT 0,
	output_tokens  BIGINT NOT NULL DEFAULT 0,
	cost_usd       DOUBLE PRECISION NOT NULL DEFAULT 0,
	error          TEXT
);
`

// Migrate adds the relevance columns to the ingestion speeches table and
// creates the tables this engine owns.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresMigration); err != nil {
		return eris.Wrap(err, "postgres: migrate")
	}
	return nil
}

// Close is a no-op; the pool is owned by the caller.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// ListDebates returns debates with a non-null title in date-then-id order.
func (s *PostgresStore) ListDebates(ctx context.Context, f Filter) ([]model.Debate, error) {
	query := strings.Builder{}
	query.WriteString(`SELECT DISTINCT d.debate_id, d.date, d.major_heading_text
		FROM debates d
		WHERE d.major_heading_text IS NOT NULL`)

	var args []any
	if !f.From.IsZero() {
		args = append(args, f.From)
		fmt.Fprintf(&query, " AND d.date >= $%d", len(args))
	}
	if !f.To.IsZero() {
		args = append(args, f.To)
		fmt.Fprintf(&query, " AND d.date <= $%d", len(args))
	}
	query.WriteString(" ORDER BY d.date, d.debate_id")
	if f.Limit > 0 {
		args = append(args, f.Limit)
		fmt.Fprintf(&query, " LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query.String(), args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list debates")
	}
	defer rows.Close()

	var debates []model.Debate
	for rows.Next() {
		var d model.Debate
		if err := rows.Scan(&d.ID, &d.Date, &d.Title); err != nil {
			return nil, eris.Wrap(err, "postgres: scan debate")
		}
		debates = append(debates, d)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate debates")
	}
	return debates, nil
}

// SampleSpeeches returns up to limit speech texts for a debate, ordered by
// speech id.
func (s *PostgresStore) SampleSpeeches(ctx context.Context, debateID string, limit int) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT speech_text FROM speeches
		WHERE debate_id = $1 AND speech_text IS NOT NULL
		ORDER BY speech_id LIMIT $2`,
		debateID, limit,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: sample speeches for %s", debateID)
	}
	defer rows.Close()

	var texts []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, eris.Wrap(err, "postgres: scan speech")
		}
		texts = append(texts, t)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate speeches")
	}
	return texts, nil
}

// UpsertOutcome writes the debate outcome and propagates it to the
// debate's speech rows in one transaction.
func (s *PostgresStore) UpsertOutcome(ctx context.Context, o model.Outcome) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin outcome tx")
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO debate_outcomes
			(debate_id, related, combined_confidence, lexical_confidence,
			 oracle_confidence, matched_terms, reasoning, classified_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		ON CONFLICT (debate_id) DO UPDATE SET
			related = EXCLUDED.related,
			combined_confidence = EXCLUDED.combined_confidence,
			lexical_confidence = EXCLUDED.lexical_confidence,
			oracle_confidence = EXCLUDED.oracle_confidence,
			matched_terms = EXCLUDED.matched_terms,
			reasoning = EXCLUDED.reasoning,
			classified_at = now()`,
		o.DebateID, o.Related, o.CombinedConfidence, o.LexicalConfidence,
		o.OracleConfidence, o.StoredTerms(), o.Reasoning,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: upsert outcome for %s", o.DebateID)
	}

	_, err = tx.Exec(ctx,
		`UPDATE speeches SET
			relevance_related = $2,
			relevance_confidence = $3,
			relevance_lexical_confidence = $4,
			relevance_oracle_confidence = $5,
			relevance_matched_terms = $6,
			relevance_reasoning = $7
		WHERE debate_id = $1`,
		o.DebateID, o.Related, o.CombinedConfidence, o.LexicalConfidence,
		o.OracleConfidence, o.StoredTerms(), o.Reasoning,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: propagate outcome to speeches for %s", o.DebateID)
	}

	if err := tx.Commit(ctx); err != nil {
		return eris.Wrapf(err, "postgres: commit outcome for %s", o.DebateID)
	}
	return nil
}

// CreateRun inserts a new running classification run and returns its id.
func (s *PostgresStore) CreateRun(ctx context.Context) (string, error) {
	id := uuid.New().String()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO classification_runs (id, status, started_at) VALUES ($1, $2, now())`,
		id, string(model.RunStatusRunning),
	)
	if err != nil {
		return "", eris.Wrap(err, "postgres: create run")
	}
	return id, nil
}

// CompleteRun records the final counters and terminal status of a run.
func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, run model.Run) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE classification_runs SET
			status = $2,
			completed_at = now(),
			total_units = $3,
			processed = $4,
			skipped = $5,
			oracle_invoked = $6,
			positive = $7,
			input_tokens = $8,
			output_tokens = $9,
			cost_usd = $10
		WHERE id = $1`,
		runID, string(run.Status), run.TotalUnits, run.Processed, run.Skipped,
		run.OracleInvoked, run.Positive, run.InputTokens, run.OutputTokens,
		run.CostUSD,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	return nil
}

// FailRun marks a run as failed with an error message.
func (s *PostgresStore) FailRun(ctx context.Context, runID string, errMsg string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE classification_runs SET status = 'failed', error = $2, completed_at = now() WHERE id = $1`,
		runID, errMsg,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail run %s", runID)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]model.Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, status, started_at, completed_at, total_units, processed,
			skipped, oracle_invoked, positive, input_tokens, output_tokens,
			cost_usd, COALESCE(error, '')
		FROM classification_runs
		ORDER BY started_at DESC
		LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		var status string
		var completed *time.Time
		if err := rows.Scan(&r.ID, &status, &r.StartedAt, &completed,
			&r.TotalUnits, &r.Processed, &r.Skipped, &r.OracleInvoked,
			&r.Positive, &r.InputTokens, &r.OutputTokens, &r.CostUSD,
			&r.Error); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		r.Status = model.RunStatus(status)
		r.CompletedAt = completed
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate runs")
	}
	return runs, nil
}
