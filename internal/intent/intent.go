// Package intent classifies a turn into one of five closed categories, with
// a deterministic fallback when the generation backend is unavailable.
package intent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ChamsBouzaiene/assist/internal/assembler"
	"github.com/ChamsBouzaiene/assist/internal/engine"
	"github.com/ChamsBouzaiene/assist/internal/prompts"
)

type Category string

const (
	PureDiscussion     Category = "pure_discussion"
	FeatureExploration Category = "feature_exploration"
	SpecClarification  Category = "spec_clarification"
	ReadyForAction     Category = "ready_for_action"
	DirectAction       Category = "direct_action"
)

// Categories lists every category.
func Categories() []Category {
	return []Category{PureDiscussion, FeatureExploration, SpecClarification, ReadyForAction, DirectAction}
}

func (c Category) Valid() bool {
	switch c {
	case PureDiscussion, FeatureExploration, SpecClarification, ReadyForAction, DirectAction:
		return true
	}
	return false
}

// Actionable reports whether the category leads to tool calls.
func (c Category) Actionable() bool {
	return c == ReadyForAction || c == DirectAction
}

// Analysis is the classifier's verdict for one turn.
type Analysis struct {
	Category           Category
	Confidence         float64
	Reasoning          string
	NeedsClarification bool
	Questions          []string
	// Fallback is set when the verdict came from the keyword rules.
	Fallback bool
}

type Config struct {
	ConfidenceThreshold float64       `yaml:"confidence_threshold"`
	Timeout             time.Duration `yaml:"timeout"`
}

func DefaultConfig() Config {
	return Config{ConfidenceThreshold: 0.6, Timeout: 30 * time.Second}
}

// Classifier runs the model-backed classification with keyword fallback.
type Classifier struct {
	call     engine.StructuredCall
	cfg      Config
	hooks    engine.Hooks
	logger   *zap.Logger
	registry *prompts.PromptRegistry
}

type Option func(*Classifier)

func WithConfig(cfg Config) Option {
	return func(c *Classifier) { c.cfg = cfg }
}

func WithHooks(h engine.Hooks) Option {
	return func(c *Classifier) { c.hooks = h }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Classifier) { c.logger = l }
}

func WithRetryPolicy(p engine.RetryPolicy) Option {
	return func(c *Classifier) { c.call.Policy = p }
}

// New creates a Classifier. llm may be nil, in which case every turn goes
// through the fallback rules.
func New(llm engine.LLMClient, model string, opts ...Option) *Classifier {
	c := &Classifier{
		cfg:      DefaultConfig(),
		logger:   zap.NewNop(),
		registry: prompts.DefaultRegistry(),
	}
	c.call = engine.StructuredCall{LLM: llm, Model: model, Policy: engine.DefaultRetryConfig().LLMPolicy, MaxTokens: 300}
	for _, opt := range opts {
		opt(c)
	}
	c.call.Timeout = c.cfg.Timeout
	c.call.Hooks = c.hooks
	return c
}

type reply struct {
	Category   string   `json:"category"`
	Confidence float64  `json:"confidence"`
	Reasoning  string   `json:"reasoning"`
	Ambiguous  bool     `json:"ambiguous"`
	Questions  []string `json:"questions"`
}

// Classify never fails; backend errors and malformed output fall back to the
// keyword rules.
func (c *Classifier) Classify(ctx context.Context, b *assembler.ContextBundle) Analysis {
	a, err := c.classifyWithModel(ctx, b)
	if err != nil {
		c.logger.Debug("intent fallback", zap.Error(err))
		c.hooks.OnFallback(ctx, "intent", err)
		a = Fallback(b.UserText, priorUserTexts(b), b.OpenItems)
	}
	if a.Confidence < c.cfg.ConfidenceThreshold {
		a.NeedsClarification = true
	}
	return a
}

func (c *Classifier) classifyWithModel(ctx context.Context, b *assembler.ContextBundle) (Analysis, error) {
	system, err := c.systemPrompt(b)
	if err != nil {
		return Analysis{}, err
	}
	msgs := []engine.ChatMessage{
		{Role: engine.RoleSystem, Content: system},
		{Role: engine.RoleUser, Content: b.UserText},
	}

	var r reply
	if err := c.call.Do(ctx, "intent", msgs, &r); err != nil {
		return Analysis{}, err
	}

	cat := Category(strings.TrimSpace(strings.ToLower(r.Category)))
	if !cat.Valid() {
		return Analysis{}, &engine.MalformedOutputError{Purpose: "intent", Reason: fmt.Sprintf("unknown category %q", r.Category)}
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return Analysis{}, &engine.MalformedOutputError{Purpose: "intent", Reason: fmt.Sprintf("confidence %v out of range", r.Confidence)}
	}

	return Analysis{
		Category:           cat,
		Confidence:         r.Confidence,
		Reasoning:          r.Reasoning,
		NeedsClarification: r.Ambiguous,
		Questions:          r.Questions,
	}, nil
}

func (c *Classifier) systemPrompt(b *assembler.ContextBundle) (string, error) {
	pb, err := prompts.NewPromptBuilder(c.registry, prompts.IntentID)
	if err != nil {
		return "", err
	}

	var history strings.Builder
	for _, t := range b.RecentTurns {
		fmt.Fprintf(&history, "user: %s\n", t.UserText)
		if t.AgentText != "" {
			fmt.Fprintf(&history, "assistant: %s\n", t.AgentText)
		}
	}
	var items strings.Builder
	for _, it := range b.OpenItems {
		fmt.Fprintf(&items, "- %s [%s] %s\n", it.ID, it.Status, it.Title)
	}

	return pb.AddSection("history", history.String()).
		AddSection("open_work_items", items.String()).
		Build()
}

func priorUserTexts(b *assembler.ContextBundle) []string {
	out := make([]string, 0, len(b.RecentTurns))
	for _, t := range b.RecentTurns {
		out = append(out, t.UserText)
	}
	return out
}
