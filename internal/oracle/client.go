// Package oracle invokes the external classification model for debates
// that passed the lexical gate, and resolves every operational failure to
// a defined result.
package oracle

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/commons-lab/hansard-classify/internal/model"
	"github.com/commons-lab/hansard-classify/internal/resilience"
	"github.com/commons-lab/hansard-classify/pkg/anthropic"
)

// Failure reasonings recorded on outcomes when a call cannot produce a
// usable classification.
const (
	reasonParseFailure  = "Failed to parse response"
	reasonRetryExhaust  = "Rate Limit Error after retries"
	reasonAPIErrPrefix  = "API Error: "
	defaultMaxOutTokens = 512
)

// Client classifies debates via the Anthropic transport.
type Client struct {
	ai           anthropic.Client
	model        string
	excerptChars int
	callTimeout  time.Duration
	retry        resilience.RetryConfig
}

// Options configures a Client.
type Options struct {
	Model        string
	ExcerptChars int           // cap on the speech excerpt embedded in the prompt
	CallTimeout  time.Duration // per-attempt transport timeout
	MaxRetries   int           // retries on rate-limit/quota signals
}

// NewClient creates an oracle client. Retries follow the 6*2^n backoff
// schedule on rate-limit/quota errors only.
func NewClient(ai anthropic.Client, opts Options) *Client {
	if opts.ExcerptChars <= 0 {
		opts.ExcerptChars = 8000
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 60 * time.Second
	}
	retry := resilience.OracleRetryConfig(opts.MaxRetries)
	retry.OnRetry = resilience.RetryLogger("oracle classify")
	return &Client{
		ai:           ai,
		model:        opts.Model,
		excerptChars: opts.ExcerptChars,
		callTimeout:  opts.CallTimeout,
		retry:        retry,
	}
}

// Classify asks the model whether the debate relates to the target subject.
// It never returns an error: transport failures, retry exhaustion, and
// unparseable responses all resolve to a defined OracleResult. Token usage
// is reported whenever the transport completed, even if the content was
// unusable.
func (c *Client) Classify(ctx context.Context, debate model.Debate, sampleText string, matchedTerms []string) model.OracleResult {
	prompt := buildPrompt(debate, sampleText, matchedTerms, c.excerptChars)

	resp, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
		defer cancel()
		return c.ai.CreateMessage(callCtx, anthropic.MessageRequest{
			Model:     c.model,
			MaxTokens: defaultMaxOutTokens,
			Messages:  []anthropic.Message{{Role: "user", Content: prompt}},
		})
	})
	if err != nil {
		if resilience.IsRateLimited(err) {
			zap.L().Warn("oracle retries exhausted",
				zap.String("debate_id", debate.ID),
				zap.Error(err),
			)
			return model.OracleResult{Reasoning: reasonRetryExhaust}
		}
		zap.L().Warn("oracle call failed",
			zap.String("debate_id", debate.ID),
			zap.Error(err),
		)
		return model.OracleResult{Reasoning: reasonAPIErrPrefix + err.Error()}
	}

	result := parseResponse(resp.Text())
	result.InputTokens = resp.Usage.InputTokens
	result.OutputTokens = resp.Usage.OutputTokens
	return result
}

// SetRetryConfig replaces the retry policy; tests use it to inject a fake
// sleeper.
func (c *Client) SetRetryConfig(cfg resilience.RetryConfig) {
	c.retry = cfg
}
