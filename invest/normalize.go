package invest

import (
	"regexp"
	"strings"
)

var (
	tokenRe = regexp.MustCompile(`[\p{L}\p{N}]+(?:['’-][\p{L}\p{N}]+)*`)
	// "so that" / "in order to" 之后是收益子句。
	benefitMarkerRe = regexp.MustCompile(`\b(?:so\s+that|in\s+order\s+to)\b`)
	roleRe          = regexp.MustCompile(`\bas\s+(?:a|an|the)\s+(.+?)\s*(?:,|\bi\s+(?:want|need|would\s+like|can|should|wish)\b)`)
	actionRe        = regexp.MustCompile(`\bi\s+(?:want|need|would\s+like|can|should|wish)\s+(?:to\s+)?(.+?)\s*(?:[.;!?]|$)`)
	sentenceEndRe   = regexp.MustCompile(`[.;!?]`)
	sentenceSplitRe = regexp.MustCompile(`[.!?]+`)
	ticketRefRes    = []*regexp.Regexp{
		regexp.MustCompile(`\b[A-Z][A-Z0-9]+-\d+\b`),
		regexp.MustCompile(`(?:^|\s)#\d+\b`),
		regexp.MustCompile(`(?i)\b(?:story|ticket|issue)\s+#?\d+\b`),
	}
)

// NormalizedStory is the lowercased, tokenized view of a story shared by all scorers.
type NormalizedStory struct {
	Raw    string
	Text   string
	Tokens []string

	Role    string
	Action  string
	Benefit string

	ActionTokens []string

	HasAcceptanceCriteria bool
	Sentences             int
	TicketRefs            int
}

// Normalize never fails: unrecognised input simply leaves the structural slots empty.
func Normalize(story string) NormalizedStory {
	text := strings.Join(strings.Fields(strings.ToLower(story)), " ")
	n := NormalizedStory{
		Raw:    story,
		Text:   text,
		Tokens: tokenize(text),
	}
	if len(n.Tokens) == 0 {
		return n
	}

	head := text
	if loc := benefitMarkerRe.FindStringIndex(text); loc != nil {
		head = text[:loc[0]]
		tail := text[loc[1]:]
		if end := sentenceEndRe.FindStringIndex(tail); end != nil {
			tail = tail[:end[0]]
		}
		n.Benefit = trimSlot(tail)
	}
	if m := roleRe.FindStringSubmatch(head); len(m) == 2 {
		n.Role = trimSlot(m[1])
	}
	if m := actionRe.FindStringSubmatch(head); len(m) == 2 {
		n.Action = trimSlot(m[1])
		n.ActionTokens = tokenize(n.Action)
	}

	n.HasAcceptanceCriteria = n.Contains("acceptance criteria") ||
		strings.Contains(text, "criteria:") ||
		(n.Contains("given") && n.Contains("then"))

	for _, s := range sentenceSplitRe.Split(text, -1) {
		if strings.TrimSpace(s) != "" {
			n.Sentences++
		}
	}
	for _, re := range ticketRefRes {
		n.TicketRefs += len(re.FindAllStringIndex(story, -1))
	}
	return n
}

// Empty reports whether the story contains no words at all.
func (n NormalizedStory) Empty() bool { return len(n.Tokens) == 0 }

func (n NormalizedStory) HasRole() bool    { return n.Role != "" }
func (n NormalizedStory) HasAction() bool  { return n.Action != "" }
func (n NormalizedStory) HasBenefit() bool { return n.Benefit != "" }

// Contains reports whether phrase occurs as whole words.
func (n NormalizedStory) Contains(phrase string) bool {
	return countPhrase(n.Tokens, tokenize(phrase)) > 0
}

// Count returns the number of whole-word occurrences of phrase.
func (n NormalizedStory) Count(phrase string) int {
	return countPhrase(n.Tokens, tokenize(phrase))
}

func tokenize(s string) []string {
	return tokenRe.FindAllString(strings.ToLower(s), -1)
}

func trimSlot(s string) string {
	return strings.TrimSpace(strings.Trim(s, " ,.;:!?\"'"))
}

func countPhrase(tokens, phrase []string) int {
	if len(phrase) == 0 || len(phrase) > len(tokens) {
		return 0
	}
	count := 0
outer:
	for i := 0; i+len(phrase) <= len(tokens); i++ {
		for j, p := range phrase {
			if tokens[i+j] != p {
				continue outer
			}
		}
		count++
	}
	return count
}

func countAny(tokens []string, phrases []string) int {
	total := 0
	for _, p := range phrases {
		total += countPhrase(tokens, tokenize(p))
	}
	return total
}
