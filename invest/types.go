package invest

import (
	"fmt"
	"strings"
)

// Criterion 是 INVEST 六个字母之一。
type Criterion int

const (
	Independent Criterion = iota
	Negotiable
	Valuable
	Estimable
	Small
	Testable
)

// Criteria lists every criterion in canonical order (Independent→Testable).
var Criteria = [...]Criterion{Independent, Negotiable, Valuable, Estimable, Small, Testable}

var criterionNames = [...]string{"Independent", "Negotiable", "Valuable", "Estimable", "Small", "Testable"}

func (c Criterion) String() string {
	if c < 0 || int(c) >= len(criterionNames) {
		return fmt.Sprintf("Criterion(%d)", int(c))
	}
	return criterionNames[c]
}

func (c Criterion) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// ParseCriterion accepts a criterion name in any case.
func ParseCriterion(name string) (Criterion, error) {
	for i, n := range criterionNames {
		if strings.EqualFold(n, strings.TrimSpace(name)) {
			return Criterion(i), nil
		}
	}
	return 0, fmt.Errorf("unknown criterion %q", name)
}

func (c *Criterion) UnmarshalText(text []byte) error {
	parsed, err := ParseCriterion(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

const (
	// WorstScore and BestScore bound every criterion score and the overall score.
	WorstScore = 0
	BestScore  = 10
	// PassScore is the lowest score that counts as satisfying a criterion.
	PassScore = 6
)

// CriterionResult is one scorer's judgement.
type CriterionResult struct {
	Criterion   Criterion `json:"criterion"`
	Passed      bool      `json:"passed"`
	Score       int       `json:"score"`
	Rationale   string    `json:"rationale"`
	Suggestions []string  `json:"suggestions,omitempty"`
}

// Verdict summarises the overall score.
type Verdict string

const (
	VerdictStrong Verdict = "Strong story"
	VerdictRevise Verdict = "Needs revision"
	VerdictRework Verdict = "Significant rework needed"
)

// AIStatus tells the presentation layer what happened to the AI analysis.
type AIStatus string

const (
	AIDisabled    AIStatus = "disabled"
	AIOK          AIStatus = "ok"
	AIUnavailable AIStatus = "unavailable"
	AISkipped     AIStatus = "skipped"
)

// AICritique is the parsed reply of the completion service.
type AICritique struct {
	RawOutput          string   `json:"raw_output"`
	Feedback           string   `json:"feedback"`
	ImprovedStory      string   `json:"improved_story,omitempty"`
	AcceptanceCriteria []string `json:"acceptance_criteria,omitempty"`
}

// EvaluationReport holds exactly one result per criterion, in canonical order.
type EvaluationReport struct {
	Story           string            `json:"story"`
	Results         []CriterionResult `json:"results"`
	OverallScore    float64           `json:"overall_score"`
	Verdict         Verdict           `json:"verdict"`
	SummaryFeedback string            `json:"summary_feedback"`
	AIStatus        AIStatus          `json:"ai_status"`
	AI              *AICritique       `json:"ai_critique,omitempty"`
}

// Result returns the result for c.
func (r EvaluationReport) Result(c Criterion) (CriterionResult, bool) {
	for _, res := range r.Results {
		if res.Criterion == c {
			return res, true
		}
	}
	return CriterionResult{}, false
}

// Failed returns the results that did not pass, in canonical order.
func (r EvaluationReport) Failed() []CriterionResult {
	var out []CriterionResult
	for _, res := range r.Results {
		if !res.Passed {
			out = append(out, res)
		}
	}
	return out
}
