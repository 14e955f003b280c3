package engine

import (
	"context"
	"time"
)

type Hooks []Hook

func (hs Hooks) OnPhase(ctx context.Context, p Phase, status string) {
	for _, h := range hs {
		h.OnPhase(ctx, p, status)
	}
}
func (hs Hooks) OnBeforeLLM(ctx context.Context, purpose, model string, m []ChatMessage) {
	for _, h := range hs {
		h.OnBeforeLLM(ctx, purpose, model, m)
	}
}
func (hs Hooks) OnAfterLLM(ctx context.Context, purpose string, r LLMResponse, err error) {
	for _, h := range hs {
		h.OnAfterLLM(ctx, purpose, r, err)
	}
}
func (hs Hooks) OnToolCall(ctx context.Context, c ToolCall) {
	for _, h := range hs {
		h.OnToolCall(ctx, c)
	}
}
func (hs Hooks) OnToolResult(ctx context.Context, c ToolCall, r ToolResult) {
	for _, h := range hs {
		h.OnToolResult(ctx, c, r)
	}
}
func (hs Hooks) OnRetryAttempt(ctx context.Context, attempt int, maxAttempts int, delay time.Duration, err error) {
	for _, h := range hs {
		h.OnRetryAttempt(ctx, attempt, maxAttempts, delay, err)
	}
}
func (hs Hooks) OnFallback(ctx context.Context, component string, err error) {
	for _, h := range hs {
		h.OnFallback(ctx, component, err)
	}
}

// With returns a copy of hs with extra appended, leaving hs untouched.
func (hs Hooks) With(extra ...Hook) Hooks {
	out := make(Hooks, 0, len(hs)+len(extra))
	out = append(out, hs...)
	return append(out, extra...)
}
