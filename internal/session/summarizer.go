// Package session renders and titles conversation sessions.
package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ChamsBouzaiene/assist/internal/engine"
	"github.com/ChamsBouzaiene/assist/internal/model"
	"github.com/ChamsBouzaiene/assist/internal/prompts"
)

// Summarizer handles LLM-based titling for sessions.
type Summarizer struct {
	llm     engine.LLMClient
	model   string
	timeout time.Duration
	hooks   engine.Hooks
}

// NewSummarizer creates a new session summarizer. llm may be nil, in which
// case titles are always derived from the first turn.
func NewSummarizer(llm engine.LLMClient, model string, timeout time.Duration, hooks engine.Hooks) *Summarizer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Summarizer{llm: llm, model: model, timeout: timeout, hooks: hooks}
}

// GenerateTitle returns a short 3-5 word title for the session. It never fails:
// when the backend is unavailable the first user turn is used instead.
func (s *Summarizer) GenerateTitle(ctx context.Context, turns []model.Turn) string {
	if len(turns) == 0 {
		return "New Session"
	}
	if s.llm == nil {
		return FallbackTitle(turns)
	}

	systemPrompt := prompts.DefaultRegistry().MustLatest(prompts.TitleID).Content

	// The first few turns carry the intent.
	limit := min(len(turns), 10)
	msgs := []engine.ChatMessage{
		{Role: engine.RoleSystem, Content: systemPrompt},
		{Role: engine.RoleUser, Content: fmt.Sprintf("History:\n%s\n\nGenerate Title:", engine.RenderForSummary(History(turns[:limit])))},
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	s.hooks.OnBeforeLLM(ctx, "session_title", s.model, msgs)
	resp, err := s.llm.Chat(ctx, s.model, msgs, engine.ChatOptions{MaxOutputTokens: 20, Temperature: 0.3})
	s.hooks.OnAfterLLM(ctx, "session_title", resp, err)
	if err != nil {
		s.hooks.OnFallback(ctx, "session_title", err)
		return FallbackTitle(turns)
	}

	title := strings.Trim(strings.TrimSpace(resp.Assistant.Content), `"'.`)
	if title == "" || len(strings.Fields(title)) > 12 {
		return FallbackTitle(turns)
	}
	return title
}

// FallbackTitle is the first user turn cut to at most six words.
func FallbackTitle(turns []model.Turn) string {
	for _, t := range turns {
		words := strings.Fields(t.UserText)
		if len(words) == 0 {
			continue
		}
		if len(words) > 6 {
			return strings.Join(words[:6], " ") + "..."
		}
		return strings.Join(words, " ")
	}
	return "New Session"
}

// History converts turns to alternating user/assistant messages.
// Turns without a reply yet contribute only the user message.
func History(turns []model.Turn) []engine.ChatMessage {
	msgs := make([]engine.ChatMessage, 0, 2*len(turns))
	for _, t := range turns {
		msgs = append(msgs, engine.ChatMessage{Role: engine.RoleUser, Content: t.UserText})
		if t.AgentText != "" {
			msgs = append(msgs, engine.ChatMessage{Role: engine.RoleAssistant, Content: t.AgentText})
		}
	}
	return msgs
}

// Transcript renders turns as plain "user:/assistant:" lines.
func Transcript(turns []model.Turn) string {
	var b strings.Builder
	for _, t := range turns {
		b.WriteString("user: ")
		b.WriteString(t.UserText)
		b.WriteString("\n")
		if t.AgentText != "" {
			b.WriteString("assistant: ")
			b.WriteString(t.AgentText)
			b.WriteString("\n")
		}
	}
	return b.String()
}
