package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/commons-lab/hansard-classify/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite, for local runs
// against a file-based copy of the ingestion data.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL
// mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS debates (
	debate_id          TEXT PRIMARY KEY,
	date               DATE NOT NULL,
	major_heading_text TEXT
);

CREATE TABLE IF NOT EXISTS speeches (
	speech_id   TEXT PRIMARY KEY,
	debate_id   TEXT NOT NULL REFERENCES debates(debate_id),
	speech_text TEXT,
	relevance_related            BOOLEAN DEFAULT FALSE,
	relevance_confidence         REAL DEFAULT 0.0,
	relevance_lexical_confidence REAL DEFAULT 0.0,
	relevance_oracle_confidence  REAL DEFAULT 0.0,
	relevance_matched_terms      TEXT,
	relevance_reasoning          TEXT
);

CREATE TABLE IF NOT EXISTS debate_outcomes (
	debate_id           TEXT PRIMARY KEY,
	related             BOOLEAN NOT NULL,
	combined_confidence REAL NOT NULL,
	lexical_confidence  REAL NOT NULL,
	oracle_confidence   REAL NOT NULL,
	matched_terms       TEXT,
	reasoning           TEXT,
	classified_at       DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS classification_runs (
	id             TEXT PRIMARY KEY,
	status         TEXT NOT NULL DEFAULT 'running',
	started_at     DATETIME NOT NULL DEFAULT (datetime('now')),
	completed_at   DATETIME,
	total_units    INTEGER NOT NULL DEFAULT 0,
	processed      INTEGER NOT NULL DEFAULT 0,
	skipped        INTEGER NOT NULL DEFAULT 0,
	oracle_invoked INTEGER NOT NULL DEFAULT 0,
	positive       INTEGER NOT NULL DEFAULT 0,
	input_tokens   INTEGER NOT NULL DEFAULT 0,
	output_tokens  INTEGER NOT NULL DEFAULT 0,
	cost_usd       REAL NOT NULL DEFAULT 0,
	error          TEXT
);

CREATE INDEX IF NOT EXISTS idx_speeches_debate_id ON speeches(debate_id);
CREATE INDEX IF NOT EXISTS idx_debates_date ON debates(date);
`

// Migrate creates the full local schema, ingestion tables included, so
// fixtures can be loaded into an empty file.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) ListDebates(ctx context.Context, f Filter) ([]model.Debate, error) {
	query := strings.Builder{}
	query.WriteString(`SELECT DISTINCT debate_id, date, major_heading_text
		FROM debates
		WHERE major_heading_text IS NOT NULL`)

	var args []any
	if !f.From.IsZero() {
		query.WriteString(" AND date >= ?")
		args = append(args, f.From.Format("2006-01-02"))
	}
	if !f.To.IsZero() {
		query.WriteString(" AND date <= ?")
		args = append(args, f.To.Format("2006-01-02"))
	}
	query.WriteString(" ORDER BY date, debate_id")
	if f.Limit > 0 {
		query.WriteString(" LIMIT ?")
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list debates")
	}
	defer rows.Close()

	var debates []model.Debate
	for rows.Next() {
		var d model.Debate
		var date string
		if err := rows.Scan(&d.ID, &date, &d.Title); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan debate")
		}
		if d.Date, err = parseSQLiteDate(date); err != nil {
			return nil, err
		}
		debates = append(debates, d)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate debates")
	}
	return debates, nil
}

func parseSQLiteDate(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02", time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, eris.New(fmt.Sprintf("sqlite: unparseable date %q", s))
}

func (s *SQLiteStore) SampleSpeeches(ctx context.Context, debateID string, limit int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT speech_text FROM speeches
		WHERE debate_id = ? AND speech_text IS NOT NULL
		ORDER BY speech_id LIMIT ?`,
		debateID, limit,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: sample speeches for %s", debateID)
	}
	defer rows.Close()

	var texts []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan speech")
		}
		texts = append(texts, t)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate speeches")
	}
	return texts, nil
}

func (s *SQLiteStore) UpsertOutcome(ctx context.Context, o model.Outcome) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin outcome tx")
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO debate_outcomes
			(debate_id, related, combined_confidence, lexical_confidence,
			 oracle_confidence, matched_terms, reasoning, classified_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, datetime('now'))
		ON CONFLICT (debate_id) DO UPDATE SET
			related = excluded.related,
			combined_confidence = excluded.combined_confidence,
			lexical_confidence = excluded.lexical_confidence,
			oracle_confidence = excluded.oracle_confidence,
			matched_terms = excluded.matched_terms,
			reasoning = excluded.reasoning,
			classified_at = datetime('now')`,
		o.DebateID, o.Related, o.CombinedConfidence, o.LexicalConfidence,
		o.OracleConfidence, o.StoredTerms(), o.Reasoning,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: upsert outcome for %s", o.DebateID)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE speeches SET
			relevance_related = ?,
			relevance_confidence = ?,
			relevance_lexical_confidence = ?,
			relevance_oracle_confidence = ?,
			relevance_matched_terms = ?,
			relevance_reasoning = ?
		WHERE debate_id = ?`,
		o.Related, o.CombinedConfidence, o.LexicalConfidence,
		o.OracleConfidence, o.StoredTerms(), o.Reasoning, o.DebateID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: propagate outcome to speeches for %s", o.DebateID)
	}

	if err := tx.Commit(); err != nil {
		return eris.Wrapf(err, "sqlite: commit outcome for %s", o.DebateID)
	}
	return nil
}

func (s *SQLiteStore) CreateRun(ctx context.Context) (string, error) {
	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO classification_runs (id, status, started_at) VALUES (?, ?, datetime('now'))`,
		id, string(model.RunStatusRunning),
	)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: create run")
	}
	return id, nil
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, run model.Run) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE classification_runs SET
			status = ?,
			completed_at = datetime('now'),
			total_units = ?,
			processed = ?,
			skipped = ?,
			oracle_invoked = ?,
			positive = ?,
			input_tokens = ?,
			output_tokens = ?,
			cost_usd = ?
		WHERE id = ?`,
		string(run.Status), run.TotalUnits, run.Processed, run.Skipped,
		run.OracleInvoked, run.Positive, run.InputTokens, run.OutputTokens,
		run.CostUSD, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	return nil
}

func (s *SQLiteStore) FailRun(ctx context.Context, runID string, errMsg string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE classification_runs SET status = 'failed', error = ?, completed_at = datetime('now') WHERE id = ?`,
		errMsg, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail run %s", runID)
	}
	return nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]model.Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, status, started_at, completed_at, total_units, processed,
			skipped, oracle_invoked, positive, input_tokens, output_tokens,
			cost_usd, COALESCE(error, '')
		FROM classification_runs
		ORDER BY started_at DESC
		LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		var status, started string
		var completed sql.NullString
		if err := rows.Scan(&r.ID, &status, &started, &completed,
			&r.TotalUnits, &r.Processed, &r.Skipped, &r.OracleInvoked,
			&r.Positive, &r.InputTokens, &r.OutputTokens, &r.CostUSD,
			&r.Error); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		r.Status = model.RunStatus(status)
		if r.StartedAt, err = parseSQLiteDate(started); err != nil {
			return nil, err
		}
		if completed.Valid {
			t, err := parseSQLiteDate(completed.String)
			if err != nil {
				return nil, err
			}
			r.CompletedAt = &t
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate runs")
	}
	return runs, nil
}
