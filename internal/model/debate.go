// Package model holds the data types shared across the classification pipeline.
package model

import (
	"strings"
	"time"
)

// Debate is one work unit: a grouped House of Commons debate with a sample
// of its speeches. Read-only once loaded from the ingestion store.
type Debate struct {
	ID    string
	Date  time.Time
	Title string
}

// LexicalResult is the output of keyword scoring over a debate's sample text.
type LexicalResult struct {
	Confidence   float64
	MatchedTerms []string
}

// OracleResult is the outcome of one oracle invocation, including its
// retries. Operational failures resolve to a result, never an error.
type OracleResult struct {
	HasRelation  bool
	Confidence   float64
	Reasoning    string
	InputTokens  int64
	OutputTokens int64
}

// Outcome is the final per-debate classification written to the store.
type Outcome struct {
	DebateID           string
	Related            bool
	CombinedConfidence float64
	LexicalConfidence  float64
	OracleConfidence   float64
	MatchedTerms       []string
	Reasoning          string
}

// MaxStoredTerms caps the matched-term list persisted with an outcome.
const MaxStoredTerms = 10

// StoredTerms returns the comma-joined matched-term list capped at
// MaxStoredTerms, the form the store persists.
func (o Outcome) StoredTerms() string {
	terms := o.MatchedTerms
	if len(terms) > MaxStoredTerms {
		terms = terms[:MaxStoredTerms]
	}
	return strings.Join(terms, ", ")
}

// RunStatus is the lifecycle state of a classification run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusAborted   RunStatus = "aborted"
	RunStatusFailed    RunStatus = "failed"
)

// Run is a recorded classification run with its report counters.
type Run struct {
	ID            string
	Status        RunStatus
	StartedAt     time.Time
	CompletedAt   *time.Time
	TotalUnits    int
	Processed     int
	Skipped       int
	OracleInvoked int
	Positive      int
	InputTokens   int64
	OutputTokens  int64
	CostUSD       float64
	Error         string
}
