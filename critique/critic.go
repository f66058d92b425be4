package critique

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"agile_story_evaluator/invest"
)

// Options bound every call to the completion service.
type Options struct {
	MaxTokens         int
	Temperature       float64
	Timeout           time.Duration
	RetryBackoff      time.Duration
	MaxRetries        uint64
	RequestsPerSecond float64
}

func DefaultOptions() Options {
	return Options{
		MaxTokens:    600,
		Temperature:  0.2,
		Timeout:      20 * time.Second,
		RetryBackoff: 500 * time.Millisecond,
		MaxRetries:   1,
	}
}

// Critic 负责调用大模型并把回复解析成结构化点评。
type Critic struct {
	llm     LLMClient
	opts    Options
	limiter *rate.Limiter
	logger  *zap.Logger
}

func NewCritic(llm LLMClient, opts Options, logger *zap.Logger) (*Critic, error) {
	if llm == nil {
		return nil, errors.New("llm client is required")
	}
	if opts.Timeout <= 0 {
		return nil, errors.New("critique timeout must be positive")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}
	return &Critic{llm: llm, opts: opts, limiter: limiter, logger: logger}, nil
}

// Critique asks the model for a critique and an improved story. Any failure
// comes back as *ServiceError; the heuristic report stays usable either way.
func (c *Critic) Critique(ctx context.Context, story string, report invest.EvaluationReport) (*invest.AICritique, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	prompt := BuildCritiquePrompt(story, report, c.opts.MaxTokens, c.opts.Temperature)
	start := time.Now()

	var raw string
	attempts := 0
	operation := func() error {
		attempts++
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(classify(ctx, err))
		}
		out, err := c.llm.Complete(ctx, prompt)
		if err != nil {
			se := classify(ctx, err)
			if !se.Transient() {
				return backoff.Permanent(se)
			}
			c.logger.Warn("completion attempt failed", zap.Int("attempt", attempts), zap.String("kind", string(se.Kind)), zap.Error(se.Err))
			return se
		}
		raw = out
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.opts.RetryBackoff
	policy := backoff.WithContext(backoff.WithMaxRetries(b, c.opts.MaxRetries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, classify(ctx, err)
	}

	reply := ParseReply(raw)
	if reply.Status != Parsed {
		return nil, &ServiceError{Kind: KindUnparseable, Err: errors.New("reply has no critique section")}
	}

	c.logger.Info("critique complete", zap.Int("attempts", attempts), zap.Duration("duration", time.Since(start)))
	return &invest.AICritique{
		RawOutput:          raw,
		Feedback:           reply.Feedback,
		ImprovedStory:      reply.ImprovedStory,
		AcceptanceCriteria: reply.AcceptanceCriteria,
	}, nil
}
