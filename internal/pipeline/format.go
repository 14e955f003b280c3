package pipeline

import (
	"fmt"
	"strings"

	"github.com/ChamsBouzaiene/assist/internal/engine"
)

// ConfirmationPrompt asks the user to approve the proposed work items.
func ConfirmationPrompt(titles []string) string {
	var sb strings.Builder
	if len(titles) == 1 {
		sb.WriteString("I can create this work item:")
	} else {
		fmt.Fprintf(&sb, "I can create these %d work items:", len(titles))
	}
	for _, t := range titles {
		fmt.Fprintf(&sb, "\n- %s", t)
	}
	sb.WriteString("\nShall I go ahead? (yes/no)")
	return sb.String()
}

// PendingReminder is appended to replies while a suggestion is waiting.
func PendingReminder(titles []string) string {
	return fmt.Sprintf("(Still waiting on your go-ahead to create: %s. Say yes or no.)", strings.Join(quoteAll(titles), ", "))
}

// DeclinedResponse acknowledges a rejected suggestion and offers revision.
func DeclinedResponse(titles []string) string {
	if len(titles) == 0 {
		return "Okay, I won't create anything. Tell me how you'd like it changed."
	}
	return fmt.Sprintf("Okay, I won't create %s. Tell me how you'd like it worded instead.", strings.Join(quoteAll(titles), ", "))
}

// FormatResults reports each executed step verbatim. planned is the number
// of steps in the plan; steps after a failure are reported as not run.
func FormatResults(results []engine.ToolResult, planned int) string {
	if len(results) == 0 {
		return "There was nothing to do."
	}
	lines := make([]string, 0, len(results)+1)
	for _, r := range results {
		if r.Success {
			lines = append(lines, r.Message)
		} else {
			lines = append(lines, fmt.Sprintf("Failed (%s): %s", r.Tool, r.Message))
		}
	}
	if rest := planned - len(results); rest > 0 {
		lines = append(lines, fmt.Sprintf("Stopped after the failure; %d remaining step(s) were not run.", rest))
	}
	return strings.Join(lines, "\n")
}

func quoteAll(ss []string) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = fmt.Sprintf("%q", s)
	}
	return out
}
