package critique

import (
	"fmt"
	"strings"

	"agile_story_evaluator/invest"
)

// Prompt 表示发送给 LLM 的一次请求。
type Prompt struct {
	System      string
	User        string
	MaxTokens   int
	Temperature float64
}

// Section markers the reply must use. ParseReply matches them case-insensitively.
const (
	markerCritique   = "CRITIQUE:"
	markerImproved   = "IMPROVED STORY:"
	markerAcceptance = "ACCEPTANCE CRITERIA:"
)

const storyLinePrefix = "Story: "

const systemPrompt = "You are an Agile coach and user story expert. " +
	"Give detailed, constructive feedback on user stories against the INVEST criteria " +
	"and rewrite them. Answer only with the section headings you are asked for."

// BuildCritiquePrompt embeds the story and the heuristic rationale of every criterion.
func BuildCritiquePrompt(story string, report invest.EvaluationReport, maxTokens int, temperature float64) Prompt {
	var sb strings.Builder
	sb.WriteString("Analyze this user story for Agile development.\n\n")
	sb.WriteString(storyLinePrefix)
	sb.WriteString(strings.Join(strings.Fields(story), " "))
	sb.WriteString("\n\n")

	sb.WriteString("Heuristic INVEST scores (0-10):\n")
	for _, r := range report.Results {
		status := "pass"
		if !r.Passed {
			status = "fail"
		}
		sb.WriteString(fmt.Sprintf("- %s: %d/10 (%s) %s\n", r.Criterion, r.Score, status, r.Rationale))
	}
	sb.WriteString(fmt.Sprintf("Overall: %.1f/10 (%s)\n\n", report.OverallScore, report.Verdict))

	sb.WriteString("Reply with exactly these sections:\n")
	sb.WriteString(markerCritique + "\n")
	sb.WriteString("A constructive critique covering structure and clarity, INVEST compliance, specific improvements and scope issues.\n")
	sb.WriteString(markerImproved + "\n")
	sb.WriteString("One improved story in the form \"As a <persona>, I want <action> so that <benefit>\".\n")
	sb.WriteString(markerAcceptance + "\n")
	sb.WriteString("A bullet list of Given/When/Then acceptance criteria.\n")

	return Prompt{
		System:      systemPrompt,
		User:        sb.String(),
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}
}

// storyFromPrompt recovers the story line written by BuildCritiquePrompt.
func storyFromPrompt(p Prompt) string {
	for _, line := range strings.Split(p.User, "\n") {
		if strings.HasPrefix(line, storyLinePrefix) {
			return strings.TrimPrefix(line, storyLinePrefix)
		}
	}
	return ""
}
