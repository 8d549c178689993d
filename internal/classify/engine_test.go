package classify

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commons-lab/hansard-classify/internal/cost"
	"github.com/commons-lab/hansard-classify/internal/lexicon"
	"github.com/commons-lab/hansard-classify/internal/model"
	"github.com/commons-lab/hansard-classify/internal/store"
)

// fakeStore is an in-memory Store recording persisted outcomes and run
// records in order.
type fakeStore struct {
	debates  []model.Debate
	speeches map[string][]string

	outcomes     map[string]model.Outcome
	persistOrder []string
	upsertErrOn  string

	runID     string
	completed *model.Run
	failedMsg string
}

func newFakeStore(debates []model.Debate, speeches map[string][]string) *fakeStore {
	return &fakeStore{
		debates:  debates,
		speeches: speeches,
		outcomes: make(map[string]model.Outcome),
		runID:    "run-test",
	}
}

func (f *fakeStore) ListDebates(_ context.Context, _ store.Filter) ([]model.Debate, error) {
	return f.debates, nil
}

func (f *fakeStore) SampleSpeeches(_ context.Context, debateID string, _ int) ([]string, error) {
	return f.speeches[debateID], nil
}

func (f *fakeStore) UpsertOutcome(_ context.Context, o model.Outcome) error {
	if o.DebateID == f.upsertErrOn {
		return eris.New("disk full")
	}
	f.outcomes[o.DebateID] = o
	f.persistOrder = append(f.persistOrder, o.DebateID)
	return nil
}

func (f *fakeStore) CreateRun(_ context.Context) (string, error) { return f.runID, nil }

func (f *fakeStore) CompleteRun(_ context.Context, _ string, run model.Run) error {
	f.completed = &run
	return nil
}

func (f *fakeStore) FailRun(_ context.Context, _ string, errMsg string) error {
	f.failedMsg = errMsg
	return nil
}

func (f *fakeStore) ListRuns(_ context.Context, _ int) ([]model.Run, error) { return nil, nil }
func (f *fakeStore) Migrate(_ context.Context) error                        { return nil }
func (f *fakeStore) Close() error                                           { return nil }

// stubOracle returns scripted results per debate id and counts calls.
type stubOracle struct {
	results map[string]model.OracleResult
	calls   int
}

func (s *stubOracle) Classify(_ context.Context, debate model.Debate, _ string, _ []string) model.OracleResult {
	s.calls++
	return s.results[debate.ID]
}

// noWait satisfies Waiter without delay.
type noWait struct{}

func (noWait) Wait(_ context.Context) error { return nil }

func testScorer(t *testing.T) *lexicon.Scorer {
	t.Helper()
	s, err := lexicon.NewScorer(lexicon.Lexicon{
		Primary:   []string{"brexit"},
		Secondary: []string{"customs union"},
	})
	require.NoError(t, err)
	return s
}

func testDebates() ([]model.Debate, map[string][]string) {
	debates := []model.Debate{
		{ID: "d1", Title: "EU Withdrawal"},
		{ID: "d2", Title: "Fisheries"},
		{ID: "d3", Title: "Trade"},
	}
	speeches := map[string][]string{
		"d1": {"The brexit negotiations continue.", "The customs union question remains."},
		"d2": {"Quota allocation for coastal fleets."},
		"d3": {"A brexit trade deal is before the House."},
	}
	return debates, speeches
}

func TestEngine_GatingSkipsOracleAndLedger(t *testing.T) {
	st := newFakeStore(
		[]model.Debate{{ID: "d2", Title: "Fisheries"}},
		map[string][]string{"d2": {"Quota allocation for coastal fleets."}},
	)
	oracle := &stubOracle{}
	ledger := cost.NewLedger(cost.Pricing{InputPerMTok: 500, OutputPerMTok: 500}, 0)

	eng := NewEngine(st, testScorer(t), oracle, ledger, noWait{}, Options{})
	report, err := eng.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, oracle.calls)
	assert.Equal(t, float64(0), ledger.CurrentCost())
	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 0, report.OracleInvoked)

	o := st.outcomes["d2"]
	assert.False(t, o.Related)
	assert.Equal(t, 0.0, o.CombinedConfidence)
	assert.Empty(t, o.MatchedTerms)
}

func TestEngine_FullRunCounts(t *testing.T) {
	debates, speeches := testDebates()
	st := newFakeStore(debates, speeches)
	oracle := &stubOracle{results: map[string]model.OracleResult{
		"d1": {HasRelation: true, Confidence: 0.9, Reasoning: "clearly about withdrawal", InputTokens: 1000, OutputTokens: 100},
		"d3": {HasRelation: false, Confidence: 0.2, Reasoning: "tangential", InputTokens: 800, OutputTokens: 80},
	}}
	ledger := cost.NewLedger(cost.Pricing{InputPerMTok: 100, OutputPerMTok: 400}, 0)

	eng := NewEngine(st, testScorer(t), oracle, ledger, noWait{}, Options{})
	report, err := eng.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, report.TotalUnits)
	assert.Equal(t, 3, report.Processed)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 2, report.OracleInvoked)
	assert.Equal(t, 1, report.Positive)
	assert.Equal(t, int64(1800), report.InputTokens)
	assert.Equal(t, int64(180), report.OutputTokens)
	assert.False(t, report.BudgetAborted)
	assert.Equal(t, 0, report.Remaining)

	require.NotNil(t, st.completed)
	assert.Equal(t, model.RunStatusCompleted, st.completed.Status)
	assert.Equal(t, 3, st.completed.Processed)

	// d1: lex 0.35 (one primary, one secondary), oracle 0.9 -> 0.735 positive.
	o := st.outcomes["d1"]
	assert.True(t, o.Related)
	assert.InDelta(t, 0.735, o.CombinedConfidence, 1e-9)
	assert.Equal(t, []string{"brexit", "customs union"}, o.MatchedTerms)
	assert.Equal(t, "clearly about withdrawal", o.Reasoning)

	// d3: lex 0.3, oracle 0.2 -> 0.23 negative.
	o = st.outcomes["d3"]
	assert.False(t, o.Related)
	assert.InDelta(t, 0.23, o.CombinedConfidence, 1e-9)
}

func TestEngine_BudgetHaltAfterCrossingUnit(t *testing.T) {
	debates := []model.Debate{
		{ID: "d1", Title: "First"},
		{ID: "d2", Title: "Second"},
		{ID: "d3", Title: "Third"},
	}
	speeches := map[string][]string{
		"d1": {"brexit"}, "d2": {"brexit"}, "d3": {"brexit"},
	}
	st := newFakeStore(debates, speeches)
	// Each call costs $0.50; the $1 ceiling is reached on the second unit.
	oracle := &stubOracle{results: map[string]model.OracleResult{
		"d1": {Confidence: 0.9, InputTokens: 1000},
		"d2": {Confidence: 0.9, InputTokens: 1000},
		"d3": {Confidence: 0.9, InputTokens: 1000},
	}}
	ledger := cost.NewLedger(cost.Pricing{InputPerMTok: 500}, 1.0)

	eng := NewEngine(st, testScorer(t), oracle, ledger, noWait{}, Options{})
	report, err := eng.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, report.BudgetAborted)
	assert.Equal(t, 2, report.Processed)
	assert.Equal(t, 1, report.Remaining)
	assert.Equal(t, 2, oracle.calls)
	assert.Equal(t, []string{"d1", "d2"}, st.persistOrder)
	assert.InDelta(t, 1.0, report.CostUSD, 1e-9)

	require.NotNil(t, st.completed)
	assert.Equal(t, model.RunStatusAborted, st.completed.Status)
}

func TestEngine_PersistFailureIsFatal(t *testing.T) {
	debates, speeches := testDebates()
	st := newFakeStore(debates, speeches)
	st.upsertErrOn = "d1"
	oracle := &stubOracle{results: map[string]model.OracleResult{
		"d1": {Confidence: 0.9, InputTokens: 100},
	}}
	ledger := cost.NewLedger(cost.Pricing{InputPerMTok: 100}, 0)

	eng := NewEngine(st, testScorer(t), oracle, ledger, noWait{}, Options{})
	report, err := eng.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "persist outcome for d1")

	assert.Equal(t, 0, report.Processed)
	assert.Equal(t, 3, report.Remaining)
	assert.Contains(t, st.failedMsg, "disk full")
	assert.Nil(t, st.completed)
}

func TestEngine_IdempotentWithDeterministicOracle(t *testing.T) {
	run := func() map[string]model.Outcome {
		debates, speeches := testDebates()
		st := newFakeStore(debates, speeches)
		oracle := &stubOracle{results: map[string]model.OracleResult{
			"d1": {HasRelation: true, Confidence: 0.9, Reasoning: "r1", InputTokens: 100, OutputTokens: 10},
			"d3": {HasRelation: false, Confidence: 0.2, Reasoning: "r3", InputTokens: 100, OutputTokens: 10},
		}}
		ledger := cost.NewLedger(cost.Pricing{InputPerMTok: 100, OutputPerMTok: 100}, 0)

		eng := NewEngine(st, testScorer(t), oracle, ledger, noWait{}, Options{})
		_, err := eng.Run(context.Background())
		require.NoError(t, err)
		return st.outcomes
	}

	assert.Equal(t, run(), run())
}

func TestEngine_DryRunWritesNothing(t *testing.T) {
	debates, speeches := testDebates()
	st := newFakeStore(debates, speeches)
	oracle := &stubOracle{}
	ledger := cost.NewLedger(cost.Pricing{}, 0)

	eng := NewEngine(st, testScorer(t), oracle, ledger, noWait{}, Options{DryRun: true})
	report, err := eng.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, report.TotalUnits)
	assert.Equal(t, 2, report.OracleInvoked)
	assert.Equal(t, 1, report.Skipped)
	assert.Empty(t, report.RunID)
	assert.Equal(t, 0, oracle.calls)
	assert.Empty(t, st.outcomes)
	assert.Nil(t, st.completed)
}

func TestEngine_EmptyUnitSetIsFatal(t *testing.T) {
	st := newFakeStore(nil, nil)
	eng := NewEngine(st, testScorer(t), &stubOracle{}, cost.NewLedger(cost.Pricing{}, 0), noWait{}, Options{})

	_, err := eng.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no debates")
}
