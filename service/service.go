// Package service is the single inbound evaluation entry point shared by the
// web handlers and the CLI.
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"agile_story_evaluator/critique"
	"agile_story_evaluator/guard"
	"agile_story_evaluator/invest"
)

// Critiquer produces an AI critique for an already scored story.
type Critiquer interface {
	Critique(ctx context.Context, story string, report invest.EvaluationReport) (*invest.AICritique, error)
}

type Status string

const (
	StatusOK            Status = "ok"
	StatusRateLimited   Status = "rate_limited"
	StatusCaptchaFailed Status = "captcha_failed"
)

type Request struct {
	Story         string
	ClientID      string
	CaptchaAnswer string
	RequestID     string
}

// Outcome carries either a report (StatusOK) or the guard's denial.
type Outcome struct {
	Status     Status
	Report     *invest.EvaluationReport
	Reason     guard.Reason
	RetryAfter time.Duration
}

type Service struct {
	guard  *guard.Guard
	critic Critiquer
	logger *zap.Logger
}

// New builds a Service. A nil guard admits everything (CLI use); a nil
// critic means heuristic-only mode.
func New(g *guard.Guard, critic Critiquer, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{guard: g, critic: critic, logger: logger}
}

// AIEnabled reports whether reports may carry an AI critique.
func (s *Service) AIEnabled() bool { return s.critic != nil }

// CaptchaEnabled reports whether Evaluate expects a challenge answer.
func (s *Service) CaptchaEnabled() bool { return s.guard != nil && s.guard.CaptchaEnabled() }

// Challenge issues a new challenge for clientID. ok is false when no
// challenge is required.
func (s *Service) Challenge(clientID string) (guard.Challenge, bool) {
	if !s.CaptchaEnabled() {
		return guard.Challenge{}, false
	}
	return s.guard.Challenge(clientID), true
}

func (s *Service) Evaluate(ctx context.Context, req Request) Outcome {
	logger := s.logger
	if req.RequestID != "" {
		logger = logger.With(zap.String("request_id", req.RequestID))
	}

	if s.guard != nil {
		d := s.guard.Gate(req.ClientID, req.CaptchaAnswer)
		if !d.Allowed {
			logger.Info("evaluation denied", zap.String("client", req.ClientID), zap.String("reason", string(d.Reason)))
			return Outcome{Status: statusFor(d.Reason), Reason: d.Reason, RetryAfter: d.RetryAfter}
		}
	}

	report := invest.Evaluate(req.Story)
	switch {
	case s.critic == nil:
		report.AIStatus = invest.AIDisabled
	case strings.TrimSpace(req.Story) == "":
		report.AIStatus = invest.AISkipped
	default:
		ai, err := s.critic.Critique(ctx, req.Story, report)
		if err != nil {
			fields := []zap.Field{zap.Error(err)}
			var se *critique.ServiceError
			if errors.As(err, &se) {
				fields = append(fields, zap.String("kind", string(se.Kind)))
			}
			logger.Warn("ai analysis unavailable", fields...)
			report.AIStatus = invest.AIUnavailable
		} else {
			report.AI = ai
			report.AIStatus = invest.AIOK
		}
	}

	logger.Info("story evaluated",
		zap.Float64("overall", report.OverallScore),
		zap.String("verdict", string(report.Verdict)),
		zap.String("ai", string(report.AIStatus)))
	return Outcome{Status: StatusOK, Report: &report}
}

func statusFor(r guard.Reason) Status {
	if r == guard.ReasonCaptchaFailed {
		return StatusCaptchaFailed
	}
	return StatusRateLimited
}
