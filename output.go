package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"agile_story_evaluator/invest"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	passStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	failStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	dimStyle   = lipgloss.NewStyle().Faint(true)
	aiBox      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

var verdictStyles = map[invest.Verdict]lipgloss.Style{
	invest.VerdictStrong: passStyle.Bold(true),
	invest.VerdictRevise: lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Bold(true),
	invest.VerdictRework: failStyle.Bold(true),
}

func printReport(w io.Writer, title string, r invest.EvaluationReport) {
	if title != "" {
		fmt.Fprintln(w, titleStyle.Render(title))
	}
	fmt.Fprintln(w, dimStyle.Render(r.Story))
	fmt.Fprintf(w, "%s  %.1f/%d\n", verdictStyles[r.Verdict].Render(string(r.Verdict)), r.OverallScore, invest.BestScore)

	for _, res := range r.Results {
		style := passStyle
		if !res.Passed {
			style = failStyle
		}
		fmt.Fprintf(w, "  %s %s %2d  %s\n", style.Render(fmt.Sprintf("%-11s", res.Criterion)), invest.ScoreBar(res.Score), res.Score, res.Rationale)
		for _, s := range res.Suggestions {
			fmt.Fprintf(w, "    %s %s\n", dimStyle.Render("→"), s)
		}
	}

	switch r.AIStatus {
	case invest.AIUnavailable:
		fmt.Fprintln(w, dimStyle.Render("AI analysis unavailable."))
	case invest.AIOK:
		if r.AI == nil {
			return
		}
		var sb strings.Builder
		sb.WriteString(r.AI.Feedback)
		if r.AI.ImprovedStory != "" {
			sb.WriteString("\n\nImproved story:\n" + r.AI.ImprovedStory)
		}
		for _, ac := range r.AI.AcceptanceCriteria {
			sb.WriteString("\n- " + ac)
		}
		fmt.Fprintln(w, aiBox.Render(sb.String()))
	}
}
