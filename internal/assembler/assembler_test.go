package assembler

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChamsBouzaiene/assist/internal/model"
	"github.com/ChamsBouzaiene/assist/internal/store"
)

type vectorFunc func(ctx context.Context, text string) ([]float32, error)

func (f vectorFunc) Embed(ctx context.Context, text string) ([]float32, error) { return f(ctx, text) }

func fixed(vec []float32) vectorFunc {
	return func(context.Context, string) ([]float32, error) { return vec, nil }
}

func newStore(t *testing.T) *store.SQLite {
	t.Helper()
	s, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "assist.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecentTurns(t *testing.T) {
	turns := []model.Turn{
		{UserText: strings.Repeat("a", 30)},
		{UserText: strings.Repeat("b", 30)},
		{UserText: strings.Repeat("c", 30), AgentText: strings.Repeat("d", 10)},
	}

	got := RecentTurns(turns, 75)
	require.Len(t, got, 2)
	assert.Equal(t, turns[1].UserText, got[0].UserText)
	assert.Len(t, RecentTurns(turns, 60), 1)

	assert.Len(t, RecentTurns(turns, 100), 3)
	assert.Nil(t, RecentTurns(nil, 100))

	// The newest turn survives even when it alone exceeds the budget.
	got = RecentTurns(turns, 5)
	require.Len(t, got, 1)
	assert.Equal(t, turns[2].UserText, got[0].UserText)
}

func TestAssemble_RanksAndCaps(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)

	near := &model.WorkItem{ProjectID: "p1", Title: "Login page", Embedding: []float32{1, 0}}
	mid := &model.WorkItem{ProjectID: "p1", Title: "Login audit", Embedding: []float32{0.8, 0.6}}
	far := &model.WorkItem{ProjectID: "p1", Title: "Billing", Embedding: []float32{0, 1}}
	done := &model.WorkItem{ProjectID: "p1", Title: "Login old", Status: model.StatusDone, Embedding: []float32{1, 0}}
	for _, w := range []*model.WorkItem{near, mid, far, done} {
		require.NoError(t, st.CreateWorkItem(ctx, w))
	}
	note := &model.Note{ProjectID: "p1", Category: "decisions", Content: "Use OAuth", Embedding: []float32{1, 0}}
	require.NoError(t, st.CreateNote(ctx, note))

	cfg := DefaultConfig()
	cfg.WorkItemLimit = 1
	a := New(st, fixed([]float32{1, 0}), WithConfig(cfg))

	b := a.Assemble(ctx, "p1", "login", nil)
	assert.False(t, b.Degraded)
	require.Len(t, b.WorkItems, 1)
	assert.Equal(t, near.ID, b.WorkItems[0].Item.ID)
	require.Len(t, b.Notes, 1)
	assert.Len(t, b.OpenItems, 3)

	cfg.WorkItemLimit = 5
	b = New(st, fixed([]float32{1, 0}), WithConfig(cfg)).Assemble(ctx, "p1", "login", nil)
	assert.Equal(t, []string{"Login page", "Login audit"}, b.RelatedTitles())
}

func TestAssemble_DegradesOnEmbeddingFailure(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	require.NoError(t, st.CreateWorkItem(ctx, &model.WorkItem{ProjectID: "p1", Title: "Login page", Embedding: []float32{1, 0}}))

	failing := vectorFunc(func(context.Context, string) ([]float32, error) {
		return nil, errors.New("backend down")
	})
	turns := []model.Turn{{UserText: "hello"}}

	b := New(st, failing).Assemble(ctx, "p1", "login", turns)
	assert.True(t, b.Degraded)
	assert.Empty(t, b.WorkItems)
	assert.Empty(t, b.Notes)
	assert.Len(t, b.RecentTurns, 1)
	assert.Len(t, b.OpenItems, 1)
}

func TestAssemble_ThresholdMonotonic(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	vecs := [][]float32{{1, 0}, {0.9, 0.1}, {0.5, 0.5}, {0.2, 0.8}, {0, 1}}
	for i, v := range vecs {
		require.NoError(t, st.CreateWorkItem(ctx, &model.WorkItem{ProjectID: "p1", Title: string(rune('a' + i)), Embedding: v}))
	}

	prev := len(vecs) + 1
	for _, th := range []float64{-1, 0, 0.3, 0.6, 0.9, 1.1} {
		cfg := DefaultConfig()
		cfg.WorkItemThreshold = th
		cfg.WorkItemLimit = 0
		n := len(New(st, fixed([]float32{1, 0}), WithConfig(cfg)).Assemble(ctx, "p1", "q", nil).WorkItems)
		assert.LessOrEqual(t, n, prev, "threshold %v", th)
		prev = n
	}
}
