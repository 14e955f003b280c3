package engine

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// ErrNoBackend is returned by StructuredCall when no LLM client is configured.
var ErrNoBackend = errors.New("no generation backend configured")

// StructuredCall makes one bounded, retried generation call whose reply must
// decode into a JSON object.
type StructuredCall struct {
	LLM       LLMClient
	Model     string
	Timeout   time.Duration
	Policy    RetryPolicy
	Hooks     Hooks
	MaxTokens int
}

// Do sends msgs and decodes the reply into out. Transport failures,
// timeouts and malformed replies all come back as errors for the caller's
// fallback path.
func (c StructuredCall) Do(ctx context.Context, purpose string, msgs []ChatMessage, out any) error {
	if c.LLM == nil {
		return ErrNoBackend
	}
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	opts := ChatOptions{Temperature: 0, JSONMode: true, MaxOutputTokens: c.MaxTokens}
	c.Hooks.OnBeforeLLM(ctx, purpose, c.Model, msgs)
	resp, err := RetryLLMCall(ctx, c.Policy, c.LLM, c.Model, msgs, opts, c.Hooks)
	c.Hooks.OnAfterLLM(ctx, purpose, resp, err)
	if err != nil {
		return err
	}
	return DecodeJSON(purpose, resp.Assistant.Content, out)
}

// DecodeJSON extracts the first JSON object in raw and unmarshals it into out.
func DecodeJSON(purpose, raw string, out any) error {
	obj, ok := ExtractJSON(raw)
	if !ok {
		return &MalformedOutputError{Purpose: purpose, Reason: "no JSON object found", Raw: raw}
	}
	if err := json.Unmarshal([]byte(obj), out); err != nil {
		return &MalformedOutputError{Purpose: purpose, Reason: err.Error(), Raw: raw}
	}
	return nil
}

// ExtractJSON returns the outermost {...} span of raw, tolerating markdown
// fences and chatter around it.
func ExtractJSON(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}
