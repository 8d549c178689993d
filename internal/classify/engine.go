// Package classify sequences the classification pipeline over debates:
// lexical gate, throttled oracle call, cost metering, fusion, persistence.
package classify

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/commons-lab/hansard-classify/internal/cost"
	"github.com/commons-lab/hansard-classify/internal/lexicon"
	"github.com/commons-lab/hansard-classify/internal/model"
	"github.com/commons-lab/hansard-classify/internal/store"
)

// Oracle classifies one debate from its speech sample and matched terms.
// Implementations resolve operational failures to a result, never an error.
type Oracle interface {
	Classify(ctx context.Context, debate model.Debate, sampleText string, matchedTerms []string) model.OracleResult
}

// Waiter blocks until the next oracle call is allowed.
type Waiter interface {
	Wait(ctx context.Context) error
}

// Report is the terminal summary of an engine run.
type Report struct {
	RunID         string
	TotalUnits    int
	Processed     int
	Skipped       int
	OracleInvoked int
	Positive      int
	InputTokens   int64
	OutputTokens  int64
	CostUSD       float64
	BudgetAborted bool
	Remaining     int
}

// Options tunes an Engine.
type Options struct {
	Filter         store.Filter
	SampleSpeeches int  // speeches sampled per debate (default 5)
	DryRun         bool // lexical scoring only: no oracle, no writes
}

// Engine runs the batch classification. Units are processed strictly
// sequentially so the shared limiter can guarantee oracle-call spacing.
type Engine struct {
	store  store.Store
	scorer *lexicon.Scorer
	oracle Oracle
	ledger *cost.Ledger
	wait   Waiter
	opts   Options
}

// NewEngine wires the pipeline stages into an engine.
func NewEngine(st store.Store, scorer *lexicon.Scorer, oracle Oracle, ledger *cost.Ledger, wait Waiter, opts Options) *Engine {
	if opts.SampleSpeeches <= 0 {
		opts.SampleSpeeches = 5
	}
	return &Engine{
		store:  st,
		scorer: scorer,
		oracle: oracle,
		ledger: ledger,
		wait:   wait,
		opts:   opts,
	}
}

// Run processes every debate in the filter set and returns the run report.
// Persistence failures are fatal; everything already written stays written.
// Budget exhaustion is not an error: the unit in flight is persisted, then
// the run halts with BudgetAborted set.
func (e *Engine) Run(ctx context.Context) (*Report, error) {
	debates, err := e.store.ListDebates(ctx, e.opts.Filter)
	if err != nil {
		return nil, eris.Wrap(err, "classify: list debates")
	}
	if len(debates) == 0 {
		return nil, eris.New("classify: no debates match the filter")
	}

	if e.opts.DryRun {
		return e.dryRun(ctx, debates)
	}

	runID, err := e.store.CreateRun(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "classify: create run record")
	}

	report := &Report{RunID: runID, TotalUnits: len(debates)}
	log := zap.L().With(zap.String("run_id", runID))
	log.Info("starting classification run",
		zap.Int("debates", len(debates)),
		zap.Float64("budget_usd", e.ledger.BudgetUSD()),
	)

	for i, debate := range debates {
		outcome, invoked, err := e.classifyUnit(ctx, debate)
		if err != nil {
			e.fail(ctx, runID, report, err)
			return report, err
		}

		if err := e.store.UpsertOutcome(ctx, outcome); err != nil {
			err = eris.Wrapf(err, "classify: persist outcome for %s", debate.ID)
			e.fail(ctx, runID, report, err)
			return report, err
		}

		report.Processed++
		if invoked {
			report.OracleInvoked++
		} else {
			report.Skipped++
		}
		if outcome.Related {
			report.Positive++
		}

		log.Info("debate classified",
			zap.Int("index", i+1),
			zap.Int("total", len(debates)),
			zap.String("debate_id", debate.ID),
			zap.Bool("related", outcome.Related),
			zap.Float64("confidence", outcome.CombinedConfidence),
			zap.Float64("cost_usd", e.ledger.CurrentCost()),
		)

		// Budget is checked only after the unit's outcome is durable, so
		// the crossing unit is always billed and kept.
		if e.ledger.Exhausted() {
			report.BudgetAborted = true
			log.Warn("budget exhausted, aborting run",
				zap.Float64("cost_usd", e.ledger.CurrentCost()),
				zap.Float64("budget_usd", e.ledger.BudgetUSD()),
			)
			break
		}
	}

	totals := e.ledger.Totals()
	report.InputTokens = totals.InputTokens
	report.OutputTokens = totals.OutputTokens
	report.CostUSD = totals.CostUSD
	report.Remaining = report.TotalUnits - report.Processed

	status := model.RunStatusCompleted
	if report.BudgetAborted {
		status = model.RunStatusAborted
	}
	if err := e.store.CompleteRun(ctx, runID, runRecord(report, status)); err != nil {
		return report, eris.Wrapf(err, "classify: complete run %s", runID)
	}

	log.Info("classification run finished",
		zap.String("status", string(status)),
		zap.Int("processed", report.Processed),
		zap.Int("skipped", report.Skipped),
		zap.Int("positive", report.Positive),
		zap.Float64("cost_usd", report.CostUSD),
	)
	return report, nil
}

// classifyUnit takes one debate through the pipeline and returns its
// outcome plus whether the oracle was invoked.
func (e *Engine) classifyUnit(ctx context.Context, debate model.Debate) (model.Outcome, bool, error) {
	texts, err := e.store.SampleSpeeches(ctx, debate.ID, e.opts.SampleSpeeches)
	if err != nil {
		return model.Outcome{}, false, eris.Wrapf(err, "classify: sample speeches for %s", debate.ID)
	}
	sample := strings.Join(texts, "\n\n")

	lex := e.scorer.Score(sample)
	if len(lex.MatchedTerms) == 0 {
		return negativeOutcome(debate.ID), false, nil
	}

	if err := e.wait.Wait(ctx); err != nil {
		return model.Outcome{}, false, eris.Wrap(err, "classify: rate limit wait")
	}

	res := e.oracle.Classify(ctx, debate, sample, lex.MatchedTerms)
	e.ledger.Record(res.InputTokens, res.OutputTokens)

	related, combined := Fuse(lex.Confidence, len(lex.MatchedTerms), res.HasRelation, res.Confidence)
	return model.Outcome{
		DebateID:           debate.ID,
		Related:            related,
		CombinedConfidence: combined,
		LexicalConfidence:  lex.Confidence,
		OracleConfidence:   res.Confidence,
		MatchedTerms:       lex.MatchedTerms,
		Reasoning:          res.Reasoning,
	}, true, nil
}

// dryRun scores every debate lexically and reports how many would reach
// the oracle. Nothing is written and no run record is created.
func (e *Engine) dryRun(ctx context.Context, debates []model.Debate) (*Report, error) {
	report := &Report{TotalUnits: len(debates)}
	for _, debate := range debates {
		texts, err := e.store.SampleSpeeches(ctx, debate.ID, e.opts.SampleSpeeches)
		if err != nil {
			return report, eris.Wrapf(err, "classify: sample speeches for %s", debate.ID)
		}
		lex := e.scorer.Score(strings.Join(texts, "\n\n"))
		report.Processed++
		if len(lex.MatchedTerms) == 0 {
			report.Skipped++
		} else {
			report.OracleInvoked++
		}
	}
	zap.L().Info("dry run finished",
		zap.Int("debates", report.TotalUnits),
		zap.Int("would_invoke_oracle", report.OracleInvoked),
		zap.Int("skipped", report.Skipped),
	)
	return report, nil
}

// fail records a failed run, folding ledger totals into the report so
// partial progress is surfaced.
func (e *Engine) fail(ctx context.Context, runID string, report *Report, cause error) {
	totals := e.ledger.Totals()
	report.InputTokens = totals.InputTokens
	report.OutputTokens = totals.OutputTokens
	report.CostUSD = totals.CostUSD
	report.Remaining = report.TotalUnits - report.Processed

	if err := e.store.FailRun(ctx, runID, cause.Error()); err != nil {
		zap.L().Error("failed to record run failure",
			zap.String("run_id", runID),
			zap.Error(err),
		)
	}
}

func negativeOutcome(debateID string) model.Outcome {
	return model.Outcome{
		DebateID:     debateID,
		MatchedTerms: []string{},
	}
}

func runRecord(r *Report, status model.RunStatus) model.Run {
	return model.Run{
		Status:        status,
		TotalUnits:    r.TotalUnits,
		Processed:     r.Processed,
		Skipped:       r.Skipped,
		OracleInvoked: r.OracleInvoked,
		Positive:      r.Positive,
		InputTokens:   r.InputTokens,
		OutputTokens:  r.OutputTokens,
		CostUSD:       r.CostUSD,
	}
}
