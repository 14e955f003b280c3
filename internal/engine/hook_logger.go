// engine/hook_logger.go
package engine

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// LoggerHook writes pipeline events to a zap logger.
type LoggerHook struct{ L *zap.Logger }

func (h LoggerHook) OnPhase(_ context.Context, p Phase, status string) {
	h.L.Debug("phase", zap.String("phase", string(p)), zap.String("status", status))
}

func (h LoggerHook) OnBeforeLLM(_ context.Context, purpose, model string, msgs []ChatMessage) {
	tokenizer := GetTokenizerForModel(model)
	tokens, _ := CountTokensForMessages(tokenizer, msgs, model)
	h.L.Debug("llm request",
		zap.String("purpose", purpose),
		zap.String("model", model),
		zap.Int("messages", len(msgs)),
		zap.Int("prompt_tokens_est", tokens))
}

func (h LoggerHook) OnAfterLLM(_ context.Context, purpose string, r LLMResponse, err error) {
	if err != nil {
		h.L.Warn("llm call failed", zap.String("purpose", purpose), zap.Error(err))
		return
	}
	h.L.Debug("llm response",
		zap.String("purpose", purpose),
		zap.String("finish", r.FinishReason),
		zap.Int("prompt", r.Usage.Prompt),
		zap.Int("completion", r.Usage.Completion))
}

func (h LoggerHook) OnToolCall(_ context.Context, c ToolCall) {
	h.L.Info("tool call", zap.String("tool", c.Name), zap.Any("args", c.Args))
}

func (h LoggerHook) OnToolResult(_ context.Context, c ToolCall, r ToolResult) {
	if !r.Success {
		h.L.Warn("tool failed", zap.String("tool", c.Name), zap.String("version", r.Version), zap.String("message", r.Message))
		return
	}
	h.L.Info("tool ok", zap.String("tool", c.Name), zap.String("version", r.Version), zap.String("affected_id", r.AffectedID))
}

func (h LoggerHook) OnRetryAttempt(_ context.Context, attempt int, maxAttempts int, delay time.Duration, err error) {
	h.L.Info("retry", zap.Int("attempt", attempt), zap.Int("max", maxAttempts), zap.Duration("delay", delay), zap.Error(err))
}

func (h LoggerHook) OnFallback(_ context.Context, component string, err error) {
	h.L.Info("deterministic fallback",
		zap.String("component", component),
		zap.Bool("retries_exhausted", IsRetryExhausted(err)),
		zap.Error(err))
}
