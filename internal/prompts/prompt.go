// Package prompts holds the versioned system prompts sent to the generation backend.
package prompts

// PromptVersion represents a version identifier for prompts.
type PromptVersion string

const (
	PromptV1 PromptVersion = "1.0.0"
)

// Prompt IDs registered by this package.
const (
	IntentID   = "intent"
	InsightsID = "insights"
	ConflictID = "conflict"
	RespondID  = "respond"
	TitleID    = "session_title"
)

// Prompt is one version of a system prompt.
type Prompt struct {
	ID          string
	Version     PromptVersion
	Content     string
	Description string
}
