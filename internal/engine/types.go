package engine

import (
	"context"
	"fmt"
)

// MessageRole represents the role of a chat message.
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// ChatMessage is the provider-agnostic message we pass around.
type ChatMessage struct {
	Role    MessageRole
	Content string
}

// Validate checks if the ChatMessage is valid.
func (m ChatMessage) Validate() error {
	switch m.Role {
	case RoleSystem, RoleUser, RoleAssistant:
	default:
		return fmt.Errorf("invalid message role: %s", m.Role)
	}
	return nil
}

// Usage holds token accounting returned by providers.
type Usage struct {
	Prompt     int
	Completion int
	Total      int
}

// LLMResponse is a normalized result of one chat call.
type LLMResponse struct {
	Assistant    ChatMessage
	Usage        Usage
	FinishReason string // "stop" | "length" | "content_filter"
}

// LLMClient abstracts the generation backend (OpenAI, Anthropic, etc.).
// Output is untrusted text: callers validate structure before using it.
type LLMClient interface {
	Chat(ctx context.Context, model string, messages []ChatMessage, opts ChatOptions) (LLMResponse, error)
}

// ChatOptions keeps knobs forwarded to the SDK.
type ChatOptions struct {
	Temperature     float32
	MaxOutputTokens int
	// JSONMode asks providers that support it for a JSON object response.
	JSONMode    bool
	RetryConfig *RetryConfig // nil = use defaults
}

// LLMClientFunc adapts a plain function to LLMClient.
type LLMClientFunc func(ctx context.Context, model string, messages []ChatMessage, opts ChatOptions) (LLMResponse, error)

func (f LLMClientFunc) Chat(ctx context.Context, model string, messages []ChatMessage, opts ChatOptions) (LLMResponse, error) {
	return f(ctx, model, messages, opts)
}
