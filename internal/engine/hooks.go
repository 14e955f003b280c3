// engine/hooks.go
package engine

import (
	"context"
	"time"
)

type Hook interface {
	OnPhase(ctx context.Context, phase Phase, status string)
	OnBeforeLLM(ctx context.Context, purpose string, model string, messages []ChatMessage)
	OnAfterLLM(ctx context.Context, purpose string, resp LLMResponse, err error)
	OnToolCall(ctx context.Context, call ToolCall)
	OnToolResult(ctx context.Context, call ToolCall, result ToolResult)
	OnRetryAttempt(ctx context.Context, attempt int, maxAttempts int, delay time.Duration, err error)
	// OnFallback fires when a component abandons its model-backed path.
	OnFallback(ctx context.Context, component string, err error)
}

// NopHook lets you implement any hook you need.
type NopHook struct{}

func (NopHook) OnPhase(context.Context, Phase, string)                              {}
func (NopHook) OnBeforeLLM(context.Context, string, string, []ChatMessage)          {}
func (NopHook) OnAfterLLM(context.Context, string, LLMResponse, error)              {}
func (NopHook) OnToolCall(context.Context, ToolCall)                                {}
func (NopHook) OnToolResult(context.Context, ToolCall, ToolResult)                  {}
func (NopHook) OnRetryAttempt(context.Context, int, int, time.Duration, error)      {}
func (NopHook) OnFallback(context.Context, string, error)                           {}

// ProgressHook forwards phase transitions to a caller-supplied sink.
type ProgressHook struct {
	NopHook
	Sink func(phase Phase, status string)
}

func (h ProgressHook) OnPhase(_ context.Context, phase Phase, status string) {
	if h.Sink != nil {
		h.Sink(phase, status)
	}
}
