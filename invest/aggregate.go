package invest

import (
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Verdict thresholds in tenths of a point. A score exactly on a threshold
// falls into the lower band.
const (
	strongAbove = 80
	reviseAbove = 50
)

const missingRationale = "Criterion was not scored."

// Evaluate normalizes story once and runs every scorer concurrently.
func Evaluate(story string) EvaluationReport {
	n := Normalize(story)
	results := make([]CriterionResult, len(Criteria))

	var g errgroup.Group
	for i, c := range Criteria {
		score := ScorerFor(c)
		g.Go(func() error {
			results[i] = score(n)
			return nil
		})
	}
	_ = g.Wait()

	return Aggregate(story, results)
}

// Aggregate combines scorer output into a report. Missing criteria are filled
// with a worst-case result and duplicates keep the lower score, so the report
// always holds exactly one result per criterion.
func Aggregate(story string, results []CriterionResult) EvaluationReport {
	ordered := canonical(results)

	sum := 0
	for _, r := range ordered {
		sum += r.Score
	}
	tenths := meanTenths(sum, len(ordered))
	verdict := verdictFor(tenths)

	report := EvaluationReport{
		Story:        story,
		Results:      ordered,
		OverallScore: float64(tenths) / 10,
		Verdict:      verdict,
		AIStatus:     AIDisabled,
	}
	report.SummaryFeedback = summarize(report)
	return report
}

func canonical(results []CriterionResult) []CriterionResult {
	byCriterion := make(map[Criterion]CriterionResult, len(Criteria))
	for _, r := range results {
		if ScorerFor(r.Criterion) == nil {
			continue
		}
		r.Score = clamp(r.Score)
		if prev, ok := byCriterion[r.Criterion]; ok && prev.Score <= r.Score {
			continue
		}
		byCriterion[r.Criterion] = r
	}

	ordered := make([]CriterionResult, 0, len(Criteria))
	for _, c := range Criteria {
		r, ok := byCriterion[c]
		if !ok {
			r = CriterionResult{Criterion: c, Score: WorstScore, Rationale: missingRationale}
		}
		// 以分数为准重新判定，避免传入结果自相矛盾。
		r.Passed = r.Score >= PassScore
		ordered = append(ordered, r)
	}
	return ordered
}

// meanTenths is the mean of n scores in tenths of a point, rounded half down.
func meanTenths(sum, n int) int {
	if n == 0 {
		return WorstScore
	}
	a := 20*sum - n
	if a <= 0 {
		return 0
	}
	return (a + 2*n - 1) / (2 * n)
}

func verdictFor(tenths int) Verdict {
	switch {
	case tenths > strongAbove:
		return VerdictStrong
	case tenths > reviseAbove:
		return VerdictRevise
	default:
		return VerdictRework
	}
}

func summarize(r EvaluationReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%.1f/%d)", r.Verdict, r.OverallScore, BestScore)
	for _, res := range r.Failed() {
		fmt.Fprintf(&b, "\n- %s: %s", res.Criterion, res.Rationale)
	}
	return b.String()
}

// ScoreBar renders a score as filled and empty blocks, e.g. "███████░░░".
func ScoreBar(score int) string {
	score = clamp(score)
	return strings.Repeat("█", score) + strings.Repeat("░", BestScore-score)
}
