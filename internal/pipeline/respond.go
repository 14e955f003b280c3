package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ChamsBouzaiene/assist/internal/assembler"
	"github.com/ChamsBouzaiene/assist/internal/engine"
	"github.com/ChamsBouzaiene/assist/internal/intent"
	"github.com/ChamsBouzaiene/assist/internal/prompts"
	"github.com/ChamsBouzaiene/assist/internal/session"
)

// Responder writes the conversational reply for turns that take no action.
type Responder struct {
	llm     engine.LLMClient
	model   string
	timeout time.Duration
	policy  engine.RetryPolicy
	hooks   engine.Hooks
	logger  *zap.Logger
}

func NewResponder(llm engine.LLMClient, model string, timeout time.Duration, hooks engine.Hooks, logger *zap.Logger) *Responder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Responder{
		llm:     llm,
		model:   model,
		timeout: timeout,
		policy:  engine.DefaultRetryConfig().LLMPolicy,
		hooks:   hooks,
		logger:  logger,
	}
}

// Respond never fails; without a usable backend it answers from the bundle alone.
func (r *Responder) Respond(ctx context.Context, b *assembler.ContextBundle, category intent.Category) string {
	if r.llm == nil {
		return FallbackReply(b, category)
	}
	msgs, err := r.messages(b)
	if err != nil {
		r.logger.Warn("respond prompt unavailable", zap.Error(err))
		return FallbackReply(b, category)
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	r.hooks.OnBeforeLLM(ctx, "respond", r.model, msgs)
	resp, err := engine.RetryLLMCall(ctx, r.policy, r.llm, r.model, msgs, engine.ChatOptions{Temperature: 0.4, MaxOutputTokens: 400}, r.hooks)
	r.hooks.OnAfterLLM(ctx, "respond", resp, err)
	if err != nil {
		r.hooks.OnFallback(ctx, "respond", err)
		return FallbackReply(b, category)
	}
	text := strings.TrimSpace(resp.Assistant.Content)
	if text == "" {
		return FallbackReply(b, category)
	}
	return text
}

func (r *Responder) messages(b *assembler.ContextBundle) ([]engine.ChatMessage, error) {
	pb, err := prompts.NewPromptBuilder(prompts.DefaultRegistry(), prompts.RespondID)
	if err != nil {
		return nil, err
	}
	var items strings.Builder
	for _, s := range b.WorkItems {
		fmt.Fprintf(&items, "- %s [%s] %s\n", s.Item.ID, s.Item.Status, s.Item.Title)
	}
	var notes strings.Builder
	for _, s := range b.Notes {
		fmt.Fprintf(&notes, "- [%s] %s\n", s.Item.Category, s.Item.FullText())
	}
	system, err := pb.AddSection("related_work_items", items.String()).
		AddSection("related_notes", notes.String()).
		Build()
	if err != nil {
		return nil, err
	}

	msgs := []engine.ChatMessage{{Role: engine.RoleSystem, Content: system}}
	msgs = append(msgs, session.History(b.RecentTurns)...)
	msgs = append(msgs, engine.ChatMessage{Role: engine.RoleUser, Content: b.UserText})
	return msgs, nil
}

// FallbackReply is the deterministic reply used when no backend answers.
func FallbackReply(b *assembler.ContextBundle, category intent.Category) string {
	var sb strings.Builder
	switch category {
	case intent.FeatureExploration:
		sb.WriteString("That sounds worth exploring. Tell me more about how it should work.")
	case intent.SpecClarification:
		sb.WriteString("Got it, I'll keep that detail in mind.")
	default:
		sb.WriteString("Got it.")
	}
	if titles := b.RelatedTitles(); len(titles) > 0 {
		sb.WriteString("\nRelated work items:")
		for _, t := range titles {
			fmt.Fprintf(&sb, "\n- %s", t)
		}
	}
	if category == intent.FeatureExploration || category == intent.SpecClarification {
		sb.WriteString("\nWhen you're ready, say \"add this as a task\".")
	}
	return sb.String()
}
