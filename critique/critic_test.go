package critique

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"agile_story_evaluator/invest"
)

const validReply = "CRITIQUE:\nAdd a benefit.\nIMPROVED STORY:\nAs a user, I want to sign in so that I see my orders.\nACCEPTANCE CRITERIA:\n- Given x, then y\n"

// scriptedLLM replays one step per call and repeats the last step afterwards.
type scriptedLLM struct {
	steps []func(ctx context.Context, p Prompt) (string, error)
	calls atomic.Int32
	last  atomic.Pointer[Prompt]
}

func (s *scriptedLLM) Complete(ctx context.Context, p Prompt) (string, error) {
	n := int(s.calls.Add(1)) - 1
	s.last.Store(&p)
	if n >= len(s.steps) {
		n = len(s.steps) - 1
	}
	return s.steps[n](ctx, p)
}

func reply(text string) func(context.Context, Prompt) (string, error) {
	return func(context.Context, Prompt) (string, error) { return text, nil }
}

func fail(kind ErrorKind) func(context.Context, Prompt) (string, error) {
	return func(context.Context, Prompt) (string, error) {
		return "", &ServiceError{Kind: kind, Err: errors.New("boom")}
	}
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.Timeout = 2 * time.Second
	opts.RetryBackoff = time.Millisecond
	return opts
}

func newTestCritic(t *testing.T, llm LLMClient, opts Options) *Critic {
	t.Helper()
	c, err := NewCritic(llm, opts, zap.NewNop())
	require.NoError(t, err)
	return c
}

func sampleReport(story string) invest.EvaluationReport {
	return invest.Evaluate(story)
}

func TestNewCritic_Validation(t *testing.T) {
	_, err := NewCritic(nil, DefaultOptions(), nil)
	assert.EqualError(t, err, "llm client is required")

	opts := DefaultOptions()
	opts.Timeout = 0
	_, err = NewCritic(MockLLM{}, opts, nil)
	assert.Error(t, err)
}

func TestCritique_Success(t *testing.T) {
	llm := &scriptedLLM{steps: []func(context.Context, Prompt) (string, error){reply(validReply)}}
	c := newTestCritic(t, llm, testOptions())
	story := "As a user, I want a login feature"

	got, err := c.Critique(t.Context(), story, sampleReport(story))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Add a benefit.", got.Feedback)
	assert.Equal(t, "As a user, I want to sign in so that I see my orders.", got.ImprovedStory)
	assert.Equal(t, []string{"Given x, then y"}, got.AcceptanceCriteria)
	assert.Equal(t, validReply, got.RawOutput)

	p := llm.last.Load()
	require.NotNil(t, p)
	assert.Equal(t, 600, p.MaxTokens)
	assert.Equal(t, 0.2, p.Temperature)
	assert.Contains(t, p.User, story)
	assert.Contains(t, p.User, "- Valuable: 4/10 (fail)")
	assert.Contains(t, p.User, markerImproved)
}

func TestCritique_RetriesTransientFailureOnce(t *testing.T) {
	llm := &scriptedLLM{steps: []func(context.Context, Prompt) (string, error){fail(KindNetwork), reply(validReply)}}
	core, logs := observer.New(zapcore.WarnLevel)
	c, err := NewCritic(llm, testOptions(), zap.New(core))
	require.NoError(t, err)

	got, err := c.Critique(t.Context(), "s", sampleReport("s"))
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Equal(t, int32(2), llm.calls.Load())
	assert.Equal(t, 1, logs.FilterMessage("completion attempt failed").Len())
}

func TestCritique_GivesUpAfterOneRetry(t *testing.T) {
	llm := &scriptedLLM{steps: []func(context.Context, Prompt) (string, error){fail(KindUnavailable)}}
	c := newTestCritic(t, llm, testOptions())

	got, err := c.Critique(t.Context(), "s", sampleReport("s"))
	assert.Nil(t, got)
	assert.Equal(t, KindUnavailable, KindOf(err))
	assert.Equal(t, int32(2), llm.calls.Load())
}

func TestCritique_AuthIsNotRetried(t *testing.T) {
	llm := &scriptedLLM{steps: []func(context.Context, Prompt) (string, error){fail(KindAuth), reply(validReply)}}
	c := newTestCritic(t, llm, testOptions())

	got, err := c.Critique(t.Context(), "s", sampleReport("s"))
	assert.Nil(t, got)
	assert.Equal(t, KindAuth, KindOf(err))
	assert.Equal(t, int32(1), llm.calls.Load())
}

func TestCritique_PlainErrorCountsAsNetwork(t *testing.T) {
	llm := &scriptedLLM{steps: []func(context.Context, Prompt) (string, error){
		func(context.Context, Prompt) (string, error) { return "", errors.New("connection refused") },
	}}
	c := newTestCritic(t, llm, testOptions())

	_, err := c.Critique(t.Context(), "s", sampleReport("s"))
	assert.Equal(t, KindNetwork, KindOf(err))
	assert.Equal(t, int32(2), llm.calls.Load())
}

func TestCritique_UnparseableReply(t *testing.T) {
	llm := &scriptedLLM{steps: []func(context.Context, Prompt) (string, error){reply("no idea, sorry")}}
	c := newTestCritic(t, llm, testOptions())

	got, err := c.Critique(t.Context(), "s", sampleReport("s"))
	assert.Nil(t, got)
	assert.Equal(t, KindUnparseable, KindOf(err))
	assert.Equal(t, int32(1), llm.calls.Load())
}

func TestCritique_TimeoutIsHardCap(t *testing.T) {
	llm := &scriptedLLM{steps: []func(context.Context, Prompt) (string, error){
		func(ctx context.Context, _ Prompt) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		},
	}}
	opts := testOptions()
	opts.Timeout = 50 * time.Millisecond
	c := newTestCritic(t, llm, opts)

	start := time.Now()
	got, err := c.Critique(t.Context(), "s", sampleReport("s"))
	assert.Nil(t, got)
	assert.Equal(t, KindTimeout, KindOf(err))
	assert.Less(t, time.Since(start), time.Second)
}

func TestCritique_CallerCancellation(t *testing.T) {
	llm := &scriptedLLM{steps: []func(context.Context, Prompt) (string, error){reply(validReply)}}
	c := newTestCritic(t, llm, testOptions())
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := c.Critique(ctx, "s", sampleReport("s"))
	assert.Equal(t, KindCanceled, KindOf(err))
	assert.Equal(t, int32(0), llm.calls.Load())
}

func TestServiceError(t *testing.T) {
	inner := errors.New("dial tcp: refused")
	err := error(&ServiceError{Kind: KindNetwork, Err: inner})

	assert.ErrorIs(t, err, inner)
	assert.True(t, strings.HasPrefix(err.Error(), "completion service: network"))
	assert.Equal(t, ErrorKind(""), KindOf(inner))
	assert.Equal(t, "completion service: auth", (&ServiceError{Kind: KindAuth}).Error())
}

func TestKindForStatus(t *testing.T) {
	assert.Equal(t, KindAuth, kindForStatus(401))
	assert.Equal(t, KindAuth, kindForStatus(403))
	assert.Equal(t, KindUnavailable, kindForStatus(429))
	assert.Equal(t, KindUnavailable, kindForStatus(503))
	assert.Equal(t, KindRejected, kindForStatus(400))
}
