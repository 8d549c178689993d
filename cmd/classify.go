package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/commons-lab/hansard-classify/internal/classify"
	"github.com/commons-lab/hansard-classify/internal/cost"
	"github.com/commons-lab/hansard-classify/internal/lexicon"
	"github.com/commons-lab/hansard-classify/internal/oracle"
	"github.com/commons-lab/hansard-classify/internal/store"
	"github.com/commons-lab/hansard-classify/internal/throttle"
	"github.com/commons-lab/hansard-classify/pkg/anthropic"
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Run batch classification over debates",
	Long:  "Scores each debate lexically, sends lexical hits to Claude, fuses both signals, and persists the outcome per debate. Halts when the cost budget is exhausted.",
	RunE:  runClassify,
}

func init() {
	f := classifyCmd.Flags()
	f.String("from", "", "only debates on or after this date (YYYY-MM-DD)")
	f.String("to", "", "only debates on or before this date (YYYY-MM-DD)")
	f.Int("limit", 0, "max number of debates to process (0 = all)")
	f.Float64("budget", -1, "cost ceiling in USD, overrides config (0 = unlimited)")
	f.String("lexicon", "", "path to a YAML lexicon file (default: built-in Brexit lexicon)")
	f.Bool("dry-run", false, "lexical scoring only: no API calls, no writes")

	rootCmd.AddCommand(classifyCmd)
}

func runClassify(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dryRun, _ := cmd.Flags().GetBool("dry-run")
	if err := cfg.Validate("classify"); err != nil {
		if !dryRun {
			return err
		}
		// A dry run needs no credential; the store config still has to hold.
		if verr := cfg.Validate("migrate"); verr != nil {
			return verr
		}
	}

	filter, err := classifyFilter(cmd)
	if err != nil {
		return err
	}

	budget := cfg.Classify.BudgetUSD
	if v, _ := cmd.Flags().GetFloat64("budget"); v >= 0 {
		budget = v
	}

	scorer, err := initScorer(cmd)
	if err != nil {
		return err
	}

	st, err := initStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck
	if err := st.Migrate(ctx); err != nil {
		return err
	}

	orc := oracle.NewClient(anthropic.NewClient(cfg.Anthropic.Key), oracle.Options{
		Model:        cfg.Anthropic.Model,
		ExcerptChars: cfg.Classify.ExcerptChars,
		MaxRetries:   cfg.Classify.MaxRetries,
	})
	ledger := cost.NewLedger(cfg.Pricing, budget)
	limiter := throttle.NewLimiter(time.Duration(cfg.Classify.MinIntervalSecs * float64(time.Second)))

	engine := classify.NewEngine(st, scorer, orc, ledger, limiter, classify.Options{
		Filter:         filter,
		SampleSpeeches: cfg.Classify.SampleSpeeches,
		DryRun:         dryRun,
	})

	report, err := engine.Run(ctx)
	if report != nil {
		formatReport(os.Stdout, report, dryRun)
	}
	return err
}

// classifyFilter builds the debate filter from the date/limit flags.
func classifyFilter(cmd *cobra.Command) (store.Filter, error) {
	var f store.Filter

	if s, _ := cmd.Flags().GetString("from"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			return f, eris.Wrapf(err, "parse --from %q", s)
		}
		f.From = t
	}
	if s, _ := cmd.Flags().GetString("to"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			return f, eris.Wrapf(err, "parse --to %q", s)
		}
		f.To = t
	}
	f.Limit, _ = cmd.Flags().GetInt("limit")
	return f, nil
}

// initScorer compiles the lexicon from the --lexicon flag, the configured
// path, or the built-in term lists.
func initScorer(cmd *cobra.Command) (*lexicon.Scorer, error) {
	path, _ := cmd.Flags().GetString("lexicon")
	if path == "" {
		path = cfg.Classify.LexiconPath
	}

	lex := lexicon.Default()
	if path != "" {
		var err error
		if lex, err = lexicon.LoadFile(path); err != nil {
			return nil, err
		}
	}
	return lexicon.NewScorer(lex)
}

// formatReport writes the terminal run summary to w.
func formatReport(out io.Writer, r *classify.Report, dryRun bool) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if dryRun {
		_, _ = fmt.Fprintln(w, "DRY RUN (no API calls, no writes)")
	} else if r.RunID != "" {
		_, _ = fmt.Fprintf(w, "Run:\t%s\n", r.RunID)
	}
	_, _ = fmt.Fprintf(w, "Debates:\t%d\n", r.TotalUnits)
	_, _ = fmt.Fprintf(w, "Processed:\t%d\n", r.Processed)
	_, _ = fmt.Fprintf(w, "Skipped (no keywords):\t%d\n", r.Skipped)
	if dryRun {
		_, _ = fmt.Fprintf(w, "Would invoke oracle:\t%d\n", r.OracleInvoked)
	} else {
		_, _ = fmt.Fprintf(w, "Oracle invoked:\t%d\n", r.OracleInvoked)
		_, _ = fmt.Fprintf(w, "Positive:\t%d\n", r.Positive)
		_, _ = fmt.Fprintf(w, "Tokens:\t%d in / %d out\n", r.InputTokens, r.OutputTokens)
		_, _ = fmt.Fprintf(w, "Cost:\t$%.4f\n", r.CostUSD)
	}
	if r.BudgetAborted {
		_, _ = fmt.Fprintf(w, "ABORTED:\tbudget exhausted, %d debates unprocessed\n", r.Remaining)
	}
	_ = w.Flush()
}
