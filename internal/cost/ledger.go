// Package cost meters priced token consumption against a run budget.
package cost

import "sync"

// Pricing holds token pricing in USD per million tokens.
type Pricing struct {
	InputPerMTok  float64 `yaml:"input_per_mtok" mapstructure:"input_per_mtok"`
	OutputPerMTok float64 `yaml:"output_per_mtok" mapstructure:"output_per_mtok"`
}

// Totals is a snapshot of accumulated usage and cost.
type Totals struct {
	InputTokens  int64
	OutputTokens int64
	CostUSD      float64
}

// Ledger accumulates per-call token usage and derives the budget-exhaustion
// flag. Tokens and cost only increase; once exhausted it stays exhausted for
// the rest of the run.
type Ledger struct {
	mu        sync.Mutex
	pricing   Pricing
	budgetUSD float64 // <= 0 means no budget

	inputTokens  int64
	outputTokens int64
	costUSD      float64
	exhausted    bool
}

// NewLedger creates a ledger with the given pricing and budget ceiling.
// A ceiling of zero or less disables the budget.
func NewLedger(pricing Pricing, budgetUSD float64) *Ledger {
	return &Ledger{pricing: pricing, budgetUSD: budgetUSD}
}

// Record adds one call's token usage and returns that call's cost in USD.
func (l *Ledger) Record(inputTokens, outputTokens int64) float64 {
	callCost := float64(inputTokens)/1e6*l.pricing.InputPerMTok +
		float64(outputTokens)/1e6*l.pricing.OutputPerMTok

	l.mu.Lock()
	defer l.mu.Unlock()

	l.inputTokens += inputTokens
	l.outputTokens += outputTokens
	l.costUSD += callCost

	if l.budgetUSD > 0 && l.costUSD >= l.budgetUSD {
		l.exhausted = true
	}
	return callCost
}

// Exhausted reports whether cumulative cost has reached the budget ceiling.
func (l *Ledger) Exhausted() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.exhausted
}

// CurrentCost returns the cumulative cost in USD.
func (l *Ledger) CurrentCost() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.costUSD
}

// Totals returns a snapshot of accumulated tokens and cost.
func (l *Ledger) Totals() Totals {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Totals{
		InputTokens:  l.inputTokens,
		OutputTokens: l.outputTokens,
		CostUSD:      l.costUSD,
	}
}

// BudgetUSD returns the configured ceiling (zero or less means none).
func (l *Ledger) BudgetUSD() float64 {
	return l.budgetUSD
}
