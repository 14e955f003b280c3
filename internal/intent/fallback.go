package intent

import (
	"regexp"
	"strings"

	"github.com/ChamsBouzaiene/assist/internal/embedding"
	"github.com/ChamsBouzaiene/assist/internal/model"
)

// Everything in this file is deterministic and free of I/O.

var stopwords = toSet(`a an the and or but if then so of to in on at by for with from as is are was were be been
being it its this that these those there here i me my we us our you your he she they them their what which who
whom when where why how all any both each few more most other some such no nor not only own same than too very
can will just don should now do does did doing have has had having would could also about into over after before
up down out again once please thanks thank yes ok okay yeah let lets get got want like really think one two`)

// Words that carry the request rather than its subject.
var requestWords = toSet(`task tasks ticket tickets item items work todo todos issue issues story card backlog new
add create make turn put track log save file record open capture note mark set move status`)

var (
	metaPattern = regexp.MustCompile(`\b(add|make|create|turn|put|track|log|save|file|record|open|capture)\s+(this|that|it|these|those|them)\b`)
	metaPrefix  = regexp.MustCompile(`(?is)^\s*(please\s+)?((can|could|would)\s+you\s+)?(add|make|create|track|log|file|record)\s+(this|that|it)` +
		`(\s+(as|into|to)\s+(a|an|the)?\s*(new\s+)?(task|ticket|work item|item|todo|issue|story))?\s*[:\-]\s*(.+)$`)

	exploratoryPattern = regexp.MustCompile(`\b(thinking about|think about|maybe|perhaps|what if|wondering|could we|might|considering|brainstorm\w*|not sure)\b`)
	creationPattern    = regexp.MustCompile(`\b(add|create|build|implement|introduce|track|make|let's|lets|support|allow)\b|\bwe need (a|an|to)\b`)

	deletePattern   = regexp.MustCompile(`\b(delete|remove|drop|get rid of|discard|trash|scrap)\b`)
	donePattern     = regexp.MustCompile(`\b(done|complete|completed|finish|finished|close|closed|resolve|resolved|shipped)\b`)
	progressPattern = regexp.MustCompile(`\b(in[- ]progress|start|started|starting|begin|began|working on|pick up|picked up)\b`)

	quotedPattern = regexp.MustCompile(`["'“‘]([^"'”’]{3,})["'”’]`)
)

func toSet(words string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(words) {
		set[w] = true
	}
	return set
}

func normalize(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

func stem(w string) string {
	if len(w) > 3 && strings.HasSuffix(w, "s") && !strings.HasSuffix(w, "ss") {
		return w[:len(w)-1]
	}
	return w
}

// ContentWords returns the lowercase words of text that are not stopwords,
// in order, with duplicates removed.
func ContentWords(text string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, w := range embedding.Tokenize(text) {
		if len(w) < 2 || stopwords[w] || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}

// SubjectWords is ContentWords without the request vocabulary ("add", "task"...),
// singularised. It measures what a message is about.
func SubjectWords(text string) []string {
	var out []string
	for _, w := range ContentWords(text) {
		if !requestWords[w] {
			out = append(out, stem(w))
		}
	}
	return out
}

// IsMetaInstruction reports whether text only asks to record something said
// earlier ("add this as a task", "make that a ticket") without content of its own.
func IsMetaInstruction(text string) bool {
	n := normalize(text)
	if !metaPattern.MatchString(n) {
		return false
	}
	if _, ok := StripMetaPrefix(text); ok {
		return false
	}
	return len(SubjectWords(n)) < 3
}

// StripMetaPrefix splits "add this as a task: <content>" and returns the content.
func StripMetaPrefix(text string) (string, bool) {
	m := metaPrefix.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	rest := strings.TrimSpace(m[len(m)-1])
	if rest == "" {
		return "", false
	}
	return rest, true
}

// IsExploratory reports tentative phrasing ("maybe", "what if").
func IsExploratory(text string) bool {
	return exploratoryPattern.MatchString(normalize(text))
}

// HasCreationVerb reports whether text asks for something to be built or added.
func HasCreationVerb(text string) bool {
	return creationPattern.MatchString(normalize(text))
}

// ActionKind is the kind of change requested on an existing work item.
type ActionKind int

const (
	ActionNone ActionKind = iota
	ActionStatus
	ActionDelete
)

// ActionRequest is what DetectAction recognised.
type ActionRequest struct {
	Kind   ActionKind
	Status model.Status
}

// DetectAction finds a deletion, completion or start verb in text.
func DetectAction(text string) (ActionRequest, bool) {
	n := normalize(text)
	switch {
	case deletePattern.MatchString(n):
		return ActionRequest{Kind: ActionDelete}, true
	case donePattern.MatchString(n):
		return ActionRequest{Kind: ActionStatus, Status: model.StatusDone}, true
	case progressPattern.MatchString(n):
		return ActionRequest{Kind: ActionStatus, Status: model.StatusInProgress}, true
	}
	return ActionRequest{}, false
}

var actionWords = toSet(`delete remove drop rid discard trash scrap done complete completed finish finished close
closed resolve resolved shipped progress start started starting begin began working pick picked`)

// MatchTitles returns the work items text refers to by id, quoted title or
// word overlap. Several items are returned only when they tie.
func MatchTitles(text string, items []*model.WorkItem) []*model.WorkItem {
	for _, it := range items {
		if it.ID != "" && strings.Contains(text, it.ID) {
			return []*model.WorkItem{it}
		}
	}

	lower := strings.ToLower(text)
	var quoted []*model.WorkItem
	for _, m := range quotedPattern.FindAllStringSubmatch(lower, -1) {
		q := strings.TrimSpace(m[1])
		for _, it := range items {
			if strings.Contains(strings.ToLower(it.Title), q) {
				quoted = append(quoted, it)
			}
		}
	}
	if len(quoted) > 0 {
		return quoted
	}

	words := make(map[string]bool)
	for _, w := range SubjectWords(text) {
		if !actionWords[w] {
			words[w] = true
		}
	}
	if len(words) == 0 {
		return nil
	}

	var best []*model.WorkItem
	bestScore, bestShared := 0.0, 0
	for _, it := range items {
		title := SubjectWords(it.Title)
		if len(title) == 0 {
			continue
		}
		shared := 0
		for _, w := range title {
			if words[w] {
				shared++
			}
		}
		score := float64(shared) / float64(len(title))
		if shared == 0 || (score < 0.5 && shared < 2) {
			continue
		}
		switch {
		case score > bestScore || (score == bestScore && shared > bestShared):
			best, bestScore, bestShared = []*model.WorkItem{it}, score, shared
		case score == bestScore && shared == bestShared:
			best = append(best, it)
		}
	}
	return best
}

// Fallback classifies text without the generation backend. priorUserTexts are
// earlier user messages of the session, oldest first.
func Fallback(text string, priorUserTexts []string, items []*model.WorkItem) Analysis {
	if IsMetaInstruction(text) {
		return Analysis{Category: ReadyForAction, Confidence: 0.8, Reasoning: "asks to record something said earlier", Fallback: true}
	}
	if _, ok := StripMetaPrefix(text); ok {
		return Analysis{Category: ReadyForAction, Confidence: 0.8, Reasoning: "asks to record the given content", Fallback: true}
	}
	if _, ok := DetectAction(text); ok && len(MatchTitles(text, items)) > 0 {
		return Analysis{Category: DirectAction, Confidence: 0.75, Reasoning: "change requested on an existing work item", Fallback: true}
	}
	if IsExploratory(text) {
		return Analysis{Category: FeatureExploration, Confidence: 0.65, Reasoning: "tentative phrasing", Fallback: true}
	}
	if HasCreationVerb(text) && specificity(text, priorUserTexts) >= minSpecificity {
		return Analysis{Category: ReadyForAction, Confidence: 0.65, Reasoning: "creation request with enough detail", Fallback: true}
	}
	return Analysis{Category: PureDiscussion, Confidence: 0.6, Reasoning: "no actionable request recognised", Fallback: true}
}

const minSpecificity = 4

// specificity counts distinct content words in text, or in text plus the last
// few prior user messages when text alone is too thin.
func specificity(text string, prior []string) int {
	n := len(ContentWords(text))
	if n >= minSpecificity {
		return n
	}
	words := make(map[string]bool)
	for _, w := range ContentWords(text) {
		words[w] = true
	}
	for i := len(prior) - 1; i >= 0 && i >= len(prior)-3; i-- {
		if IsMetaInstruction(prior[i]) {
			continue
		}
		for _, w := range ContentWords(prior[i]) {
			words[w] = true
		}
	}
	return len(words)
}
