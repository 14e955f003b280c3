// Package assembler builds the per-turn ContextBundle: recent history plus
// the work items and notes most similar to it.
package assembler

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ChamsBouzaiene/assist/internal/model"
	"github.com/ChamsBouzaiene/assist/internal/retrieval"
	"github.com/ChamsBouzaiene/assist/internal/store"
)

// Config bounds history and candidate pools.
type Config struct {
	HistoryChars      int     `yaml:"history_chars"`
	WorkItemThreshold float64 `yaml:"work_item_threshold"`
	NoteThreshold     float64 `yaml:"note_threshold"`
	WorkItemLimit     int     `yaml:"work_item_limit"`
	NoteLimit         int     `yaml:"note_limit"`
}

func DefaultConfig() Config {
	return Config{
		HistoryChars:      4000,
		WorkItemThreshold: 0.35,
		NoteThreshold:     0.40,
		WorkItemLimit:     5,
		NoteLimit:         5,
	}
}

// VectorSource embeds query text. *embedding.Gateway satisfies it.
type VectorSource interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ContextBundle is everything the classifier and planner see for one turn.
type ContextBundle struct {
	ProjectID   string
	UserText    string
	RecentTurns []model.Turn
	WorkItems   []retrieval.Scored[*model.WorkItem]
	Notes       []retrieval.Scored[*model.Note]
	// OpenItems is every work item not yet done, for literal title matching.
	OpenItems []*model.WorkItem
	// Degraded is set when retrieval could not run; only RecentTurns (and
	// OpenItems when the store answered) are populated then.
	Degraded bool
}

// RelatedTitles lists the titles of the retrieved work items, best first.
func (b *ContextBundle) RelatedTitles() []string {
	titles := make([]string, 0, len(b.WorkItems))
	for _, s := range b.WorkItems {
		titles = append(titles, s.Item.Title)
	}
	return titles
}

// Assembler loads candidate pools and ranks them against the conversation.
type Assembler struct {
	records store.RecordStore
	vectors VectorSource
	cfg     Config
	logger  *zap.Logger
}

type Option func(*Assembler)

func WithConfig(cfg Config) Option {
	return func(a *Assembler) { a.cfg = cfg }
}

func WithLogger(l *zap.Logger) Option {
	return func(a *Assembler) { a.logger = l }
}

func New(records store.RecordStore, vectors VectorSource, opts ...Option) *Assembler {
	a := &Assembler{records: records, vectors: vectors, cfg: DefaultConfig(), logger: zap.NewNop()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Assemble never fails: embedding or store errors produce a Degraded bundle.
func (a *Assembler) Assemble(ctx context.Context, projectID, userText string, turns []model.Turn) *ContextBundle {
	b := &ContextBundle{
		ProjectID:   projectID,
		UserText:    userText,
		RecentTurns: RecentTurns(turns, a.cfg.HistoryChars),
	}

	var (
		items    []*model.WorkItem
		notes    []*model.Note
		query    []float32
		embedErr error
	)

	// Pools and the query vector are independent; load them together.
	var g errgroup.Group
	g.Go(func() error {
		var err error
		items, err = a.records.ListWorkItems(ctx, projectID, false)
		if err != nil {
			return fmt.Errorf("list work items: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		notes, err = a.records.ListNotes(ctx, projectID, "")
		if err != nil {
			return fmt.Errorf("list notes: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		query, embedErr = a.vectors.Embed(ctx, QueryText(b.RecentTurns, userText))
		return nil
	})

	if err := g.Wait(); err != nil {
		a.logger.Warn("candidate pools unavailable", zap.String("project", projectID), zap.Error(err))
		b.Degraded = true
		return b
	}
	b.OpenItems = items

	if embedErr != nil {
		a.logger.Warn("query embedding failed, continuing without retrieval",
			zap.String("project", projectID), zap.Error(embedErr))
		b.Degraded = true
		return b
	}

	b.WorkItems = retrieval.Rank(query, items, retrieval.Options{
		Threshold: a.cfg.WorkItemThreshold,
		Limit:     a.cfg.WorkItemLimit,
	})
	b.Notes = retrieval.Rank(query, notes, retrieval.Options{
		Threshold: a.cfg.NoteThreshold,
		Limit:     a.cfg.NoteLimit,
	})

	a.logger.Debug("context assembled",
		zap.String("project", projectID),
		zap.Int("turns", len(b.RecentTurns)),
		zap.Int("work_items", len(b.WorkItems)),
		zap.Int("notes", len(b.Notes)))
	return b
}

// RecentTurns keeps the newest turns whose combined text fits in budget
// characters, dropping the oldest first. The newest turn is always kept.
func RecentTurns(turns []model.Turn, budget int) []model.Turn {
	if len(turns) == 0 {
		return nil
	}
	used := 0
	start := len(turns)
	for i := len(turns) - 1; i >= 0; i-- {
		size := len(turns[i].UserText) + len(turns[i].AgentText)
		if start < len(turns) && used+size > budget {
			break
		}
		used += size
		start = i
	}
	out := make([]model.Turn, len(turns)-start)
	copy(out, turns[start:])
	return out
}

// QueryText is the text embedded for retrieval: kept history then the current message.
func QueryText(turns []model.Turn, userText string) string {
	var sb strings.Builder
	for _, t := range turns {
		sb.WriteString(t.UserText)
		sb.WriteString("\n")
		if t.AgentText != "" {
			sb.WriteString(t.AgentText)
			sb.WriteString("\n")
		}
	}
	sb.WriteString(userText)
	return sb.String()
}
