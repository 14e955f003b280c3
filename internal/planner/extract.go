package planner

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ChamsBouzaiene/assist/internal/confirm"
	"github.com/ChamsBouzaiene/assist/internal/intent"
	"github.com/ChamsBouzaiene/assist/internal/model"
)

// Payload text in this package only ever comes from turn text.

const maxTitleLength = 120

var (
	bulletLine    = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s+(.+?)\s*$`)
	itemSeparator = regexp.MustCompile(`(?i)\s*;\s*|[.,]\s+(?:and\s+)?also\s+|\s+and\s+also\s+`)
	leadingJoiner = regexp.MustCompile(`(?i)^(?:and\s+|also\s+)+`)
	firstSentence = regexp.MustCompile(`^(.+?[.!?])(?:\s|$)`)
)

// CreationSource picks the text work items should be created from: content
// after an "add this as a task:" prefix, the current message when it says
// what to build, or else the most recent earlier message that does.
func CreationSource(current string, prior []model.Turn) (string, bool) {
	if rest, ok := intent.StripMetaPrefix(current); ok {
		return rest, true
	}
	if !intent.IsMetaInstruction(current) && len(intent.SubjectWords(current)) >= 2 {
		return strings.TrimSpace(current), true
	}
	return ResolveReference(prior)
}

// ResolveReference scans prior turns newest first for the last user message
// that carries content of its own, skipping meta-instructions and yes/no replies.
func ResolveReference(prior []model.Turn) (string, bool) {
	for i := len(prior) - 1; i >= 0; i-- {
		text := strings.TrimSpace(prior[i].UserText)
		if text == "" || confirm.Classify(text) != confirm.Neutral {
			continue
		}
		if rest, ok := intent.StripMetaPrefix(text); ok {
			return rest, true
		}
		if intent.IsMetaInstruction(text) || len(intent.SubjectWords(text)) < 2 {
			continue
		}
		return text, true
	}
	return "", false
}

// SplitItems breaks a multi-item statement (bullet or numbered list, or
// "add X; also add Y") into one string per item. Separated parts split only
// when each one is itself a creation request; anything else is a single item.
func SplitItems(text string) []string {
	var bullets []string
	for _, line := range strings.Split(text, "\n") {
		if m := bulletLine.FindStringSubmatch(line); m != nil {
			bullets = append(bullets, m[1])
		}
	}
	if len(bullets) >= 2 {
		return bullets
	}

	parts := itemSeparator.Split(strings.TrimSpace(text), -1)
	if len(parts) < 2 {
		return []string{strings.TrimSpace(text)}
	}
	var items []string
	for _, p := range parts {
		p = strings.TrimSpace(leadingJoiner.ReplaceAllString(strings.TrimSpace(p), ""))
		p = strings.TrimRight(p, ".")
		if len(intent.SubjectWords(p)) < 2 || !intent.HasCreationVerb(p) {
			return []string{strings.TrimSpace(text)}
		}
		items = append(items, p)
	}
	return items
}

// TitleAndDescription keeps short items verbatim as the title. Long ones are
// titled by their first sentence and kept whole in the description.
func TitleAndDescription(item string) (string, string) {
	item = strings.TrimSpace(item)
	if len(item) <= maxTitleLength {
		return item, ""
	}
	if m := firstSentence.FindStringSubmatch(item); m != nil && len(m[1]) <= maxTitleLength {
		return strings.TrimSpace(m[1]), item
	}
	if line, _, found := strings.Cut(item, "\n"); found && len(line) <= maxTitleLength {
		return strings.TrimSpace(line), item
	}
	cut := maxTitleLength - 3
	for cut > 0 && !utf8.RuneStart(item[cut]) {
		cut--
	}
	return strings.TrimSpace(item[:cut]) + "...", item
}

// minTargetScore and minTargetGap decide when a similarity candidate is a
// clear enough referent for a status change or deletion.
const (
	minTargetScore = 0.5
	minTargetGap   = 0.05
)

// ResolveTarget finds the work item a direct action refers to. It returns the
// item, or the competing items when the reference is ambiguous.
func ResolveTarget(text string, open []*model.WorkItem, similar []scoredItem) (*model.WorkItem, []*model.WorkItem) {
	matches := intent.MatchTitles(text, open)
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
	default:
		return nil, matches
	}

	if len(similar) == 0 || similar[0].score < minTargetScore {
		return nil, nil
	}
	if len(similar) > 1 && similar[0].score-similar[1].score < minTargetGap {
		return nil, []*model.WorkItem{similar[0].item, similar[1].item}
	}
	return similar[0].item, nil
}

type scoredItem struct {
	item  *model.WorkItem
	score float64
}
