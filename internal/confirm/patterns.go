package confirm

import (
	"strings"
	"unicode"
)

// Reply is how a turn answers a pending suggestion.
type Reply int

const (
	Neutral Reply = iota
	Affirmative
	Negative
)

func (r Reply) String() string {
	switch r {
	case Affirmative:
		return "affirmative"
	case Negative:
		return "negative"
	}
	return "neutral"
}

var affirmativePhrases = []string{
	"yes", "y", "yeah", "yep", "yup", "sure", "ok", "okay", "confirm", "confirmed",
	"do it", "go ahead", "please do", "sounds good", "create it", "create them",
	"approve", "approved", "absolutely", "of course", "lgtm",
}

var negativePhrases = []string{
	"no", "n", "nope", "nah", "cancel", "don't", "do not", "never mind", "nevermind",
	"not now", "stop", "skip it", "forget it",
}

// Words that may follow a phrase without changing its meaning ("yes please", "no thanks").
var filler = map[string]bool{
	"please": true, "thanks": true, "thank": true, "you": true, "go": true, "ahead": true,
	"do": true, "it": true, "that": true, "them": true, "all": true, "both": true,
	"sure": true, "ok": true, "okay": true, "sounds": true, "good": true, "great": true,
	"for": true, "now": true, "just": true, "yes": true, "no": true, "create": true,
}

// Classify decides whether text answers a suggestion. Anything with
// content beyond the yes/no phrase is Neutral.
func Classify(text string) Reply {
	words := normalize(text)
	if len(words) == 0 {
		return Neutral
	}
	if matches(words, negativePhrases) {
		return Negative
	}
	if matches(words, affirmativePhrases) {
		return Affirmative
	}
	return Neutral
}

// IsAffirmative reports whether text accepts a suggestion.
func IsAffirmative(text string) bool { return Classify(text) == Affirmative }

// IsNegative reports whether text declines a suggestion.
func IsNegative(text string) bool { return Classify(text) == Negative }

func normalize(text string) []string {
	text = strings.ToLower(strings.ReplaceAll(text, "’", "'"))
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}

func matches(words []string, phrases []string) bool {
	for _, p := range phrases {
		pw := strings.Fields(p)
		if len(pw) > len(words) || !equalWords(words[:len(pw)], pw) {
			continue
		}
		rest := words[len(pw):]
		if allFiller(rest) {
			return true
		}
	}
	return false
}

func equalWords(a, b []string) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func allFiller(words []string) bool {
	for _, w := range words {
		if !filler[w] {
			return false
		}
	}
	return true
}
