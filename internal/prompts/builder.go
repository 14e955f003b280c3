package prompts

import (
	"fmt"
	"strings"
)

// PromptBuilder composes a registered prompt with extra fragments and
// {{key}} variables.
type PromptBuilder struct {
	basePrompt *Prompt
	fragments  []string
	variables  map[string]string
}

// NewPromptBuilder creates a builder from the latest version of a registered prompt.
func NewPromptBuilder(registry *PromptRegistry, id string) (*PromptBuilder, error) {
	basePrompt, err := registry.Latest(id)
	if err != nil {
		return nil, fmt.Errorf("failed to get base prompt: %w", err)
	}

	return &PromptBuilder{
		basePrompt: basePrompt,
		fragments:  []string{basePrompt.Content},
		variables:  make(map[string]string),
	}, nil
}

// AddFragment appends a fragment to the prompt.
func (b *PromptBuilder) AddFragment(text string) *PromptBuilder {
	b.fragments = append(b.fragments, text)
	return b
}

// AddSection appends a tagged block, skipping empty bodies.
func (b *PromptBuilder) AddSection(tag, body string) *PromptBuilder {
	if strings.TrimSpace(body) == "" {
		return b
	}
	return b.AddFragment(fmt.Sprintf("<%s>\n%s\n</%s>", tag, strings.TrimSpace(body), tag))
}

// SetVariable sets a variable for template substitution.
func (b *PromptBuilder) SetVariable(key, value string) *PromptBuilder {
	b.variables[key] = value
	return b
}

// Build constructs the final prompt string. Unset variables are an error.
func (b *PromptBuilder) Build() (string, error) {
	result := strings.Join(b.fragments, "\n\n")

	for key, value := range b.variables {
		result = strings.ReplaceAll(result, fmt.Sprintf("{{%s}}", key), value)
	}

	if i := strings.Index(result, "{{"); i >= 0 {
		end := strings.Index(result[i:], "}}")
		if end > 0 {
			return "", fmt.Errorf("prompt %s: unset variable %s", b.basePrompt.ID, result[i:i+end+2])
		}
	}
	return result, nil
}
