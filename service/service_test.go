package service

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"agile_story_evaluator/critique"
	"agile_story_evaluator/guard"
	"agile_story_evaluator/invest"
)

type fakeCritic struct {
	ai    *invest.AICritique
	err   error
	calls int
}

func (f *fakeCritic) Critique(context.Context, string, invest.EvaluationReport) (*invest.AICritique, error) {
	f.calls++
	return f.ai, f.err
}

func newGuard(t *testing.T, captcha bool, limit int) *guard.Guard {
	t.Helper()
	g, err := guard.New(guard.Config{Windows: []guard.Window{{Limit: limit, Span: time.Minute}}, Captcha: captcha})
	require.NoError(t, err)
	return g
}

var story = invest.Samples[0].Story

func TestEvaluate_HeuristicOnly(t *testing.T) {
	s := New(nil, nil, nil)

	out := s.Evaluate(t.Context(), Request{Story: story})
	require.Equal(t, StatusOK, out.Status)
	require.NotNil(t, out.Report)
	assert.Equal(t, invest.AIDisabled, out.Report.AIStatus)
	assert.Nil(t, out.Report.AI)
	assert.Len(t, out.Report.Results, len(invest.Criteria))
	assert.False(t, s.AIEnabled())
	assert.False(t, s.CaptchaEnabled())
}

func TestEvaluate_WithCritique(t *testing.T) {
	fc := &fakeCritic{ai: &invest.AICritique{Feedback: "Looks fine."}}
	s := New(nil, fc, nil)

	out := s.Evaluate(t.Context(), Request{Story: story})
	require.Equal(t, StatusOK, out.Status)
	assert.Equal(t, invest.AIOK, out.Report.AIStatus)
	assert.Equal(t, "Looks fine.", out.Report.AI.Feedback)
	assert.Equal(t, 1, fc.calls)
}

func TestEvaluate_CritiqueFailureKeepsReport(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	fc := &fakeCritic{err: &critique.ServiceError{Kind: critique.KindNetwork, Err: errors.New("dial tcp: refused")}}
	s := New(nil, fc, zap.New(core))

	out := s.Evaluate(t.Context(), Request{Story: story, RequestID: "req-1"})
	require.Equal(t, StatusOK, out.Status)
	assert.Equal(t, invest.AIUnavailable, out.Report.AIStatus)
	assert.Nil(t, out.Report.AI)
	assert.Equal(t, invest.Evaluate(story).OverallScore, out.Report.OverallScore)

	entries := logs.FilterMessage("ai analysis unavailable").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "network", fields["kind"])
	assert.Equal(t, "req-1", fields["request_id"])
}

func TestEvaluate_EmptyStorySkipsAI(t *testing.T) {
	fc := &fakeCritic{ai: &invest.AICritique{Feedback: "x"}}
	s := New(nil, fc, nil)

	out := s.Evaluate(t.Context(), Request{Story: "   "})
	require.Equal(t, StatusOK, out.Status)
	assert.Equal(t, invest.AISkipped, out.Report.AIStatus)
	assert.Equal(t, 0, fc.calls)
	for _, r := range out.Report.Results {
		assert.Equal(t, invest.WorstScore, r.Score)
	}
}

func TestEvaluate_RateLimited(t *testing.T) {
	fc := &fakeCritic{ai: &invest.AICritique{Feedback: "x"}}
	s := New(newGuard(t, false, 10), fc, nil)

	for i := range 10 {
		out := s.Evaluate(t.Context(), Request{Story: story, ClientID: "1.2.3.4"})
		require.Equal(t, StatusOK, out.Status, "call %d", i+1)
	}
	out := s.Evaluate(t.Context(), Request{Story: story, ClientID: "1.2.3.4"})
	assert.Equal(t, StatusRateLimited, out.Status)
	assert.Equal(t, guard.ReasonRateLimited, out.Reason)
	assert.Positive(t, out.RetryAfter)
	assert.Nil(t, out.Report)
	assert.Equal(t, 10, fc.calls)
}

func TestEvaluate_Captcha(t *testing.T) {
	s := New(newGuard(t, true, 1), nil, nil)
	require.True(t, s.CaptchaEnabled())

	ch, ok := s.Challenge("c")
	require.True(t, ok)
	out := s.Evaluate(t.Context(), Request{Story: story, ClientID: "c", CaptchaAnswer: strconv.Itoa(ch.Answer + 1)})
	assert.Equal(t, StatusCaptchaFailed, out.Status)
	assert.Equal(t, guard.ReasonCaptchaFailed, out.Reason)

	// 验证失败不占用限额。
	ch, _ = s.Challenge("c")
	out = s.Evaluate(t.Context(), Request{Story: story, ClientID: "c", CaptchaAnswer: strconv.Itoa(ch.Answer)})
	assert.Equal(t, StatusOK, out.Status)
}

func TestChallenge_Disabled(t *testing.T) {
	s := New(newGuard(t, false, 1), nil, nil)
	_, ok := s.Challenge("c")
	assert.False(t, ok)
}
