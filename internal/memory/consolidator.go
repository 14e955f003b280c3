// Package memory distils an ended session into long-term project notes.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ChamsBouzaiene/assist/internal/embedding"
	"github.com/ChamsBouzaiene/assist/internal/engine"
	"github.com/ChamsBouzaiene/assist/internal/model"
	"github.com/ChamsBouzaiene/assist/internal/prompts"
	"github.com/ChamsBouzaiene/assist/internal/session"
	"github.com/ChamsBouzaiene/assist/internal/store"
)

type Config struct {
	MinTurns              int           `yaml:"min_turns"`
	RelevanceThreshold    float64       `yaml:"relevance_threshold"`
	SignificanceThreshold float64       `yaml:"significance_threshold"`
	MergeThreshold        float64       `yaml:"merge_threshold"`
	CreateThreshold       float64       `yaml:"create_threshold"`
	Timeout               time.Duration `yaml:"timeout"`
}

func DefaultConfig() Config {
	return Config{
		MinTurns:              3,
		RelevanceThreshold:    0.25,
		SignificanceThreshold: 0.6,
		MergeThreshold:        0.75,
		CreateThreshold:       0.30,
		Timeout:               30 * time.Second,
	}
}

// Insight is one significance-scored observation extracted from a transcript.
type Insight struct {
	Category     string  `json:"category"`
	Significance float64 `json:"significance"`
	Title        string  `json:"title"`
	Text         string  `json:"text"`
}

// Summary reports what one consolidation did.
type Summary struct {
	Skipped   bool     `json:"skipped"`
	Reason    string   `json:"reason,omitempty"`
	Insights  int      `json:"insights"`
	Merged    int      `json:"merged"`
	Created   int      `json:"created"`
	NewTopics int      `json:"new_topics"`
	Conflicts int      `json:"conflicts"`
	Unchanged int      `json:"unchanged"`
	NoteIDs   []string `json:"note_ids,omitempty"`
	Details   []string `json:"details,omitempty"`
}

// NotesAffected is the number of notes created or changed.
func (s *Summary) NotesAffected() int { return s.Merged + s.Created }

func (s *Summary) String() string {
	if s.Skipped {
		return "consolidation skipped: " + s.Reason
	}
	return fmt.Sprintf("%d insight(s): %d merged, %d created (%d new topic), %d conflict(s), %d already known",
		s.Insights, s.Merged, s.Created, s.NewTopics, s.Conflicts, s.Unchanged)
}

// VectorSource embeds text. *embedding.Gateway satisfies it.
type VectorSource interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Consolidator runs the end-of-session pipeline. It only ever writes notes.
type Consolidator struct {
	notes    store.NoteStore
	vectors  VectorSource
	call     engine.StructuredCall
	cfg      Config
	hooks    engine.Hooks
	logger   *zap.Logger
	registry *prompts.PromptRegistry
	now      func() time.Time
}

type Option func(*Consolidator)

func WithConfig(cfg Config) Option {
	return func(c *Consolidator) { c.cfg = cfg }
}

func WithHooks(h engine.Hooks) Option {
	return func(c *Consolidator) { c.hooks = h }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Consolidator) { c.logger = l }
}

func WithRetryPolicy(p engine.RetryPolicy) Option {
	return func(c *Consolidator) { c.call.Policy = p }
}

func WithClock(now func() time.Time) Option {
	return func(c *Consolidator) { c.now = now }
}

func New(notes store.NoteStore, vectors VectorSource, llm engine.LLMClient, model string, opts ...Option) *Consolidator {
	c := &Consolidator{
		notes:    notes,
		vectors:  vectors,
		cfg:      DefaultConfig(),
		logger:   zap.NewNop(),
		registry: prompts.DefaultRegistry(),
		now:      time.Now,
	}
	c.call = engine.StructuredCall{LLM: llm, Model: model, Policy: engine.DefaultRetryConfig().LLMPolicy, MaxTokens: 1500}
	for _, opt := range opts {
		opt(c)
	}
	c.call.Timeout = c.cfg.Timeout
	c.call.Hooks = c.hooks
	return c
}

// Consolidate processes the turns of an ended session. Backend failures skip
// the affected step; only note store errors are returned.
func (c *Consolidator) Consolidate(ctx context.Context, projectID string, turns []model.Turn) (*Summary, error) {
	if len(turns) < c.cfg.MinTurns {
		return &Summary{Skipped: true, Reason: fmt.Sprintf("too few turns (%d < %d)", len(turns), c.cfg.MinTurns)}, nil
	}

	existing, err := c.notes.ListNotes(ctx, projectID, "")
	if err != nil {
		return nil, fmt.Errorf("consolidate: %w", err)
	}

	transcript := session.Transcript(turns)
	if ok, score := c.relevant(ctx, transcript, existing); !ok {
		return &Summary{Skipped: true, Reason: fmt.Sprintf("session not relevant to project topics (%.2f < %.2f)", score, c.cfg.RelevanceThreshold)}, nil
	}

	insights, err := c.extractInsights(ctx, transcript, existing)
	if err != nil {
		c.logger.Warn("insight extraction failed", zap.String("project", projectID), zap.Error(err))
		c.hooks.OnFallback(ctx, "consolidation", err)
		return &Summary{Skipped: true, Reason: "insight extraction unavailable"}, nil
	}

	sum := &Summary{}
	for _, in := range insights {
		if in.Significance < c.cfg.SignificanceThreshold {
			continue
		}
		sum.Insights++
		if err := c.apply(ctx, projectID, in, sum); err != nil {
			return sum, err
		}
	}
	if sum.Insights == 0 {
		sum.Skipped = true
		sum.Reason = "no significant insights"
	}
	c.logger.Info("session consolidated", zap.String("project", projectID), zap.String("summary", sum.String()))
	return sum, nil
}

// relevant compares the transcript with each category's centroid. With no
// topic vectors yet, or no transcript vector, every session passes.
func (c *Consolidator) relevant(ctx context.Context, transcript string, notes []*model.Note) (bool, float64) {
	topics := TopicVectors(notes)
	if len(topics) == 0 {
		return true, 1
	}
	vec, err := c.vectors.Embed(ctx, transcript)
	if err != nil {
		c.logger.Debug("transcript embedding failed, skipping relevance gate", zap.Error(err))
		return true, 1
	}
	best := -1.0
	for _, t := range topics {
		if s := embedding.Cosine(vec, t); s > best {
			best = s
		}
	}
	return best >= c.cfg.RelevanceThreshold, best
}

// TopicVectors returns the centroid of note embeddings per category.
func TopicVectors(notes []*model.Note) map[string][]float32 {
	byCat := make(map[string][][]float32)
	for _, n := range notes {
		if len(n.Embedding) > 0 {
			byCat[n.Category] = append(byCat[n.Category], n.Embedding)
		}
	}
	out := make(map[string][]float32, len(byCat))
	for cat, vecs := range byCat {
		if c := embedding.Centroid(vecs); c != nil {
			out[cat] = c
		}
	}
	return out
}

func (c *Consolidator) extractInsights(ctx context.Context, transcript string, notes []*model.Note) ([]Insight, error) {
	pb, err := prompts.NewPromptBuilder(c.registry, prompts.InsightsID)
	if err != nil {
		return nil, err
	}
	system, err := pb.SetVariable("categories", strings.Join(knownCategories(notes), ", ")).Build()
	if err != nil {
		return nil, err
	}
	msgs := []engine.ChatMessage{
		{Role: engine.RoleSystem, Content: system},
		{Role: engine.RoleUser, Content: "<transcript>\n" + transcript + "</transcript>"},
	}

	var out struct {
		Insights []Insight `json:"insights"`
	}
	if err := c.call.Do(ctx, "insights", msgs, &out); err != nil {
		return nil, err
	}

	var valid []Insight
	for _, in := range out.Insights {
		in.Text = strings.TrimSpace(in.Text)
		if in.Text == "" || in.Significance < 0 || in.Significance > 1 {
			continue
		}
		in.Category = model.NormalizeCategory(in.Category)
		valid = append(valid, in)
	}
	return valid, nil
}

func knownCategories(notes []*model.Note) []string {
	set := make(map[string]bool)
	for _, c := range model.DefaultCategories {
		set[c] = true
	}
	for _, n := range notes {
		set[n.Category] = true
	}
	out := make([]string, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
