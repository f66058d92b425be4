package server

import (
	"bytes"
	"context"
	"html/template"
	"net/http"

	"go.uber.org/zap"

	"agile_story_evaluator/invest"
)

type pageData struct {
	Story          string
	Error          string
	Samples        []invest.Sample
	CaptchaEnabled bool
	Question       string
	AIEnabled      bool
	Report         *reportView
}

type rowView struct {
	Name        string
	Score       int
	Bar         string
	Passed      bool
	Rationale   string
	Suggestions []string
}

type reportView struct {
	Overall       float64
	Verdict       invest.Verdict
	Summary       string
	Rows          []rowView
	AIUnavailable bool
	Feedback      template.HTML
	ImprovedStory string
	Acceptance    []string
}

func (s *Server) reportView(ctx context.Context, r invest.EvaluationReport) *reportView {
	v := &reportView{
		Overall:       r.OverallScore,
		Verdict:       r.Verdict,
		Summary:       r.SummaryFeedback,
		AIUnavailable: r.AIStatus == invest.AIUnavailable,
	}
	for _, res := range r.Results {
		v.Rows = append(v.Rows, rowView{
			Name:        res.Criterion.String(),
			Score:       res.Score,
			Bar:         invest.ScoreBar(res.Score),
			Passed:      res.Passed,
			Rationale:   res.Rationale,
			Suggestions: res.Suggestions,
		})
	}
	if r.AI != nil {
		v.Feedback = s.markdown(ctx, r.AI.Feedback)
		v.ImprovedStory = r.AI.ImprovedStory
		v.Acceptance = r.AI.AcceptanceCriteria
	}
	return v
}

// markdown renders model output. goldmark escapes raw HTML unless
// WithUnsafe is set, so the result is safe to embed.
func (s *Server) markdown(ctx context.Context, src string) template.HTML {
	var buf bytes.Buffer
	if err := s.md.Convert([]byte(src), &buf); err != nil {
		s.logger.Warn("render feedback failed", zap.String("request_id", requestID(ctx)), zap.Error(err))
		return template.HTML(template.HTMLEscapeString(src))
	}
	return template.HTML(buf.String())
}

// renderPage fills the ambient fields and issues a fresh challenge, since
// every submission consumes the previous one.
func (s *Server) renderPage(w http.ResponseWriter, r *http.Request, status int, data pageData) {
	data.Samples = invest.Samples
	data.AIEnabled = s.svc.AIEnabled()
	if ch, ok := s.svc.Challenge(s.clientID(r)); ok {
		data.CaptchaEnabled = true
		data.Question = ch.Question
	}

	var buf bytes.Buffer
	if err := s.page.Execute(&buf, data); err != nil {
		s.logger.Error("render page failed", zap.String("request_id", requestID(r.Context())), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
