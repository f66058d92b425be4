package critique

import (
	"context"
	"strings"
)

// MockLLM 一个简单的占位实现，便于本地调试，不调用外部模型。
type MockLLM struct{}

func (m MockLLM) Complete(_ context.Context, prompt Prompt) (string, error) {
	story := storyFromPrompt(prompt)
	if story == "" {
		story = "the submitted story"
	}

	var sb strings.Builder
	sb.WriteString(markerCritique + "\n")
	sb.WriteString("This is an offline critique generated without a language model.\n")
	sb.WriteString("- Review the heuristic scores above for \"" + story + "\".\n")
	sb.WriteString("- Make sure the story names a persona, one action and the benefit.\n\n")
	sb.WriteString(markerImproved + "\n")
	sb.WriteString("As a user, I want to complete one clearly defined task so that I get a measurable benefit.\n\n")
	sb.WriteString(markerAcceptance + "\n")
	sb.WriteString("- Given the user is signed in, when they complete the task, then the result is shown\n")
	sb.WriteString("- Given an error occurs, when the task fails, then a clear message is displayed\n")
	return sb.String(), nil
}
