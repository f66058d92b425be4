package critique

import (
	"regexp"
	"strings"
)

// ReplyStatus tags the outcome of ParseReply.
type ReplyStatus int

const (
	Unparseable ReplyStatus = iota
	Parsed
)

// Reply is the structured form of a model answer.
type Reply struct {
	Status             ReplyStatus
	Feedback           string
	ImprovedStory      string
	AcceptanceCriteria []string
}

type section int

const (
	sectionNone section = iota
	sectionCritique
	sectionImproved
	sectionAcceptance
)

var (
	// 兼容 "## Critique"、"**IMPROVED STORY:**" 等 Markdown 写法。
	headingRe = regexp.MustCompile(`(?i)^\s*#*\s*[*_]*\s*(critique|feedback|analysis|improved\s+story|rewritten\s+story|acceptance\s+criteria)\s*[*_]*\s*(:?)\s*[*_]*\s*(.*)$`)
	bulletRe  = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s+`)
)

// ParseReply locates the section markers in raw. It never fails: a reply
// without a non-empty critique section is reported as Unparseable.
func ParseReply(raw string) Reply {
	sections := map[section][]string{}
	current := sectionNone

	for _, line := range strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n") {
		if sec, rest, ok := heading(line); ok {
			current = sec
			if rest != "" {
				sections[current] = append(sections[current], rest)
			}
			continue
		}
		if current == sectionNone {
			continue
		}
		sections[current] = append(sections[current], line)
	}

	reply := Reply{
		Feedback:           strings.TrimSpace(strings.Join(sections[sectionCritique], "\n")),
		ImprovedStory:      cleanStory(sections[sectionImproved]),
		AcceptanceCriteria: bullets(sections[sectionAcceptance]),
	}
	if reply.Feedback != "" {
		reply.Status = Parsed
	}
	return reply
}

func heading(line string) (section, string, bool) {
	m := headingRe.FindStringSubmatch(line)
	if m == nil {
		return sectionNone, "", false
	}
	rest := strings.TrimSpace(strings.Trim(m[3], "*_ "))
	// 没有冒号时只接受单独成行的标题，避免误判正文。
	if m[2] == "" && rest != "" {
		return sectionNone, "", false
	}
	name := strings.Join(strings.Fields(strings.ToLower(m[1])), " ")
	switch name {
	case "critique", "feedback", "analysis":
		return sectionCritique, rest, true
	case "improved story", "rewritten story":
		return sectionImproved, rest, true
	default:
		return sectionAcceptance, rest, true
	}
}

func cleanStory(lines []string) string {
	var parts []string
	for _, l := range lines {
		l = strings.TrimSpace(bulletRe.ReplaceAllString(l, ""))
		if l != "" {
			parts = append(parts, l)
		}
	}
	story := strings.Join(parts, " ")
	return strings.TrimSpace(strings.Trim(story, `"“”`))
}

func bullets(lines []string) []string {
	var out []string
	for _, l := range lines {
		l = strings.TrimSpace(bulletRe.ReplaceAllString(l, ""))
		if l != "" {
			out = append(out, l)
		}
	}
	return out
}
