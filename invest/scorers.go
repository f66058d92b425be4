package invest

import (
	"fmt"
	"strings"
	"unicode"
)

// Scorer judges a single criterion. Scorers are pure and share no state.
type Scorer func(NormalizedStory) CriterionResult

// Tunable heuristics. Thresholds were checked against the sample stories.
const (
	dependencyPenalty   = 3
	ticketRefPenalty    = 4
	unstructuredPenalty = 2

	negotiableBase      = 7
	prescriptivePenalty = 2
	prescriptiveCap     = 6
	rationaleBonus      = 3

	valueWithBenefit = 8
	valueRoleBonus   = 2
	valueCeilingRole = 4
	valueCeilingBare = 2

	estimableBase    = 2
	estimableRole    = 3
	estimableAction  = 3
	estimableContext = 2
	vagueVerbPenalty = 3

	smallTokenCeiling = 60
	largeTokenCeiling = 120
	overCeilingCost   = 4
	farOverCost       = 6
	conjunctionCost   = 2
	conjunctionCap    = 6
	tooShortTokens    = 5
	tooShortCost      = 3

	testableBase        = 3
	measurableVerbBonus = 4
	acceptanceBonus     = 3
	quantityBonus       = 1
	aspirationalPenalty = 3
)

const emptyRationale = "Story is empty; nothing to evaluate."

var (
	dependencyPhrases = []string{"depends on", "dependent on", "blocked by", "waiting on", "after", "before", "requires", "prerequisite"}
	prescriptiveTerms = []string{"must", "shall", "exactly", "only", "precisely", "specifically", "always", "never"}
	vagueVerbs        = []string{"improve", "enhance", "optimize", "optimise", "fix", "handle", "support", "manage", "better"}
	conjunctions      = []string{"and", "also", "as well as", "plus", "additionally"}
	aspirationalTerms = []string{"feel", "experience", "enjoy", "love", "delight", "appreciate", "intuitive", "seamless", "easy", "user-friendly"}
	quantityPhrases   = []string{"within", "at least", "at most", "less than", "more than", "seconds", "minutes", "percent"}

	measurableVerbs = []string{
		"view", "see", "display", "list", "search", "filter", "sort", "create", "add",
		"delete", "remove", "update", "edit", "export", "import", "download", "upload",
		"receive", "send", "save", "submit", "reset", "cancel", "print", "share", "track",
		"compare", "pay", "book", "select", "enter", "change", "register", "subscribe",
		"log in", "sign in", "sign up", "log out", "sign out", "notify", "filter by",
	}

	// 这些词跟在模糊动词后面不算具体对象。
	fillerObjects = map[string]bool{
		"it": true, "things": true, "stuff": true, "the": true, "a": true, "an": true,
		"this": true, "that": true, "system": true, "app": true, "application": true,
		"experience": true, "performance": true, "overall": true, "everything": true,
		"more": true, "better": true, "general": true, "usability": true,
	}

	vagueObjectStops = map[string]bool{"and": true, "or": true, "so": true, "also": true}
)

var scorers = [...]Scorer{
	Independent: ScoreIndependent,
	Negotiable:  ScoreNegotiable,
	Valuable:    ScoreValuable,
	Estimable:   ScoreEstimable,
	Small:       ScoreSmall,
	Testable:    ScoreTestable,
}

// ScorerFor returns the scorer responsible for c, or nil for an unknown criterion.
func ScorerFor(c Criterion) Scorer {
	if c < 0 || int(c) >= len(scorers) {
		return nil
	}
	return scorers[c]
}

// ScoreIndependent penalizes references to other work.
func ScoreIndependent(n NormalizedStory) CriterionResult {
	if n.Empty() {
		return emptyResult(Independent)
	}
	var notes, hints []string
	score := BestScore

	deps := matched(n.Tokens, dependencyPhrases)
	if len(deps) > 0 {
		score -= dependencyPenalty * countAny(n.Tokens, deps)
		notes = append(notes, fmt.Sprintf("Story mentions dependencies on other work (%s).", quoteList(deps)))
		hints = append(hints, "Split out or remove the dependency so the story can be delivered on its own.")
	}
	if n.TicketRefs > 0 {
		score -= ticketRefPenalty * n.TicketRefs
		notes = append(notes, "Story references other stories or tickets.")
		hints = append(hints, "Fold the referenced work into this story or deliver it separately.")
	}
	if !n.HasRole() && !n.HasAction() {
		score -= unstructuredPenalty
		notes = append(notes, "Story structure is unclear, which makes independence hard to judge.")
		hints = append(hints, "Use the standard format: 'As a [persona], I want [action] so that [value]'.")
	}
	if len(notes) == 0 {
		notes = append(notes, "Story stands alone; no dependencies on other work are mentioned.")
	}
	return newResult(Independent, score, notes, hints)
}

// ScoreNegotiable penalizes prescriptive wording and rewards a stated rationale.
func ScoreNegotiable(n NormalizedStory) CriterionResult {
	if n.Empty() {
		return emptyResult(Negotiable)
	}
	var notes, hints []string
	score := negotiableBase

	rigid := matched(n.Tokens, prescriptiveTerms)
	if len(rigid) > 0 {
		score -= min(prescriptivePenalty*countAny(n.Tokens, rigid), prescriptiveCap)
		notes = append(notes, fmt.Sprintf("Prescriptive language (%s) leaves little room for discussion.", quoteList(rigid)))
		hints = append(hints, "Describe the need and leave the solution open; prefer 'should' or 'could'.")
	} else {
		notes = append(notes, "Wording leaves room for discussion.")
	}
	if n.HasBenefit() {
		score += rationaleBonus
		notes = append(notes, "The rationale clause explains the intent behind the request.")
	} else {
		notes = append(notes, "No rationale clause explains why this is wanted.")
		hints = append(hints, "Add 'so that [benefit]' so the team can negotiate the solution.")
	}
	return newResult(Negotiable, score, notes, hints)
}

// ScoreValuable caps the score at partial credit when no benefit is stated.
func ScoreValuable(n NormalizedStory) CriterionResult {
	if n.Empty() {
		return emptyResult(Valuable)
	}
	var notes, hints []string
	var score int
	switch {
	case n.HasBenefit() && n.HasRole():
		score = valueWithBenefit + valueRoleBonus
		notes = append(notes, fmt.Sprintf("Story states the benefit to %q: %q.", n.Role, n.Benefit))
	case n.HasBenefit():
		score = valueWithBenefit
		notes = append(notes, fmt.Sprintf("Story states a benefit (%q) but not who receives it.", n.Benefit))
		hints = append(hints, "Name the persona who benefits.")
	case n.HasRole():
		score = valueCeilingRole
		notes = append(notes, "No benefit clause; the value to the user is not stated.")
		hints = append(hints, "Add 'so that [benefit]' to explain the value.")
	default:
		score = valueCeilingBare
		notes = append(notes, "Neither a persona nor a benefit is stated, so the value is unclear.")
		hints = append(hints, "Add who benefits and 'so that [benefit]' to explain the value.")
	}
	return newResult(Valuable, score, notes, hints)
}

// ScoreEstimable rewards a clear persona and action and penalizes vague verbs.
func ScoreEstimable(n NormalizedStory) CriterionResult {
	if n.Empty() {
		return emptyResult(Estimable)
	}
	var notes, hints []string
	score := estimableBase

	if n.HasRole() {
		score += estimableRole
	} else {
		notes = append(notes, "No persona is named.")
		hints = append(hints, "Say who the story is for.")
	}
	if n.HasAction() {
		score += estimableAction
	} else {
		notes = append(notes, "No concrete action is described.")
		hints = append(hints, "Describe what the user wants to do.")
	}
	if n.HasBenefit() || n.HasAcceptanceCriteria {
		score += estimableContext
	}
	if !n.HasAcceptanceCriteria {
		hints = append(hints, "Add acceptance criteria to improve estimability.")
	}
	if vague := vagueWithoutObject(scope(n)); len(vague) > 0 {
		score -= vagueVerbPenalty * len(vague)
		notes = append(notes, fmt.Sprintf("Vague verbs (%s) without a concrete object make effort hard to size.", quoteList(vague)))
		hints = append(hints, "Name what should be improved and by how much.")
	}
	if len(notes) == 0 {
		notes = append(notes, "Persona and action are clear enough to estimate.")
	}
	return newResult(Estimable, score, notes, hints)
}

// ScoreSmall penalizes long stories and stories that bundle several requests.
func ScoreSmall(n NormalizedStory) CriterionResult {
	if n.Empty() {
		return emptyResult(Small)
	}
	var notes, hints []string
	score := BestScore
	words := len(n.Tokens)

	switch {
	case words > largeTokenCeiling:
		score -= farOverCost
		notes = append(notes, fmt.Sprintf("Story is very long (%d words).", words))
		hints = append(hints, "Break the story into smaller stories.")
	case words > smallTokenCeiling:
		score -= overCeilingCost
		notes = append(notes, fmt.Sprintf("Story is long (%d words) and might be too large.", words))
		hints = append(hints, "Consider breaking into smaller stories.")
	case words < tooShortTokens:
		score -= tooShortCost
		notes = append(notes, "Story is too short to size meaningfully.")
		hints = append(hints, "Add more detail to make the story meaningful.")
	}
	if c := countAny(scope(n), conjunctions); c > 0 {
		score -= min(conjunctionCost*c, conjunctionCap)
		notes = append(notes, fmt.Sprintf("Conjunctions suggest %d bundled requests.", c+1))
		hints = append(hints, "Split each request into its own story.")
	}
	if len(notes) == 0 {
		notes = append(notes, "Story is appropriately sized.")
	}
	return newResult(Small, score, notes, hints)
}

// ScoreTestable rewards verifiable actions and acceptance criteria.
func ScoreTestable(n NormalizedStory) CriterionResult {
	if n.Empty() {
		return emptyResult(Testable)
	}
	var notes, hints []string
	score := testableBase

	if verbs := matched(scope(n), measurableVerbs); len(verbs) > 0 {
		score += measurableVerbBonus
		notes = append(notes, fmt.Sprintf("Action (%s) can be verified by a test.", quoteList(verbs)))
	} else {
		notes = append(notes, "No measurable, verifiable action is described.")
		hints = append(hints, "State an observable outcome, e.g. 'see', 'receive' or 'export'.")
	}
	if n.HasAcceptanceCriteria {
		score += acceptanceBonus
		notes = append(notes, "Acceptance criteria are present.")
	} else {
		hints = append(hints, "Add Given/When/Then acceptance criteria.")
	}
	if hasQuantity(n) {
		score += quantityBonus
	}
	if soft := matched(n.Tokens, aspirationalTerms); len(soft) > 0 {
		score -= aspirationalPenalty * countAny(n.Tokens, soft)
		notes = append(notes, fmt.Sprintf("Aspirational wording (%s) cannot be verified.", quoteList(soft)))
		hints = append(hints, "Replace feelings with observable behaviour.")
	}
	return newResult(Testable, score, notes, hints)
}

func newResult(c Criterion, score int, notes, hints []string) CriterionResult {
	score = clamp(score)
	return CriterionResult{
		Criterion:   c,
		Passed:      score >= PassScore,
		Score:       score,
		Rationale:   strings.Join(notes, " "),
		Suggestions: hints,
	}
}

func emptyResult(c Criterion) CriterionResult {
	return CriterionResult{
		Criterion:   c,
		Passed:      false,
		Score:       WorstScore,
		Rationale:   emptyRationale,
		Suggestions: []string{"Enter a user story such as 'As a [persona], I want [action] so that [value]'."},
	}
}

func clamp(score int) int {
	return max(WorstScore, min(BestScore, score))
}

// scope is the text a request-level heuristic looks at: the action clause when
// one was found, otherwise the whole story.
func scope(n NormalizedStory) []string {
	if len(n.ActionTokens) > 0 {
		return n.ActionTokens
	}
	return n.Tokens
}

func matched(tokens []string, phrases []string) []string {
	var out []string
	for _, p := range phrases {
		if countPhrase(tokens, tokenize(p)) > 0 {
			out = append(out, p)
		}
	}
	return out
}

func vagueWithoutObject(tokens []string) []string {
	var out []string
	for i, tok := range tokens {
		if !contains(vagueVerbs, tok) {
			continue
		}
		hasObject := false
		for _, next := range tokens[i+1:] {
			if vagueObjectStops[next] {
				break
			}
			if !fillerObjects[next] {
				hasObject = true
				break
			}
		}
		if !hasObject {
			out = append(out, tok)
		}
	}
	return out
}

func hasQuantity(n NormalizedStory) bool {
	for _, tok := range n.Tokens {
		if strings.IndexFunc(tok, unicode.IsDigit) >= 0 {
			return true
		}
	}
	return countAny(n.Tokens, quantityPhrases) > 0
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func quoteList(items []string) string {
	quoted := make([]string, len(items))
	for i, it := range items {
		quoted[i] = fmt.Sprintf("%q", it)
	}
	return strings.Join(quoted, ", ")
}
