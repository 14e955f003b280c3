package notes

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChamsBouzaiene/assist/internal/model"
	"github.com/ChamsBouzaiene/assist/internal/store"
)

type nilEmbedder struct{}

func (nilEmbedder) EmbedBestEffort(context.Context, string) []float32 { return nil }

func newStore(t *testing.T) *store.SQLite {
	t.Helper()
	s, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "assist.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateTool_NormalizesCategory(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	tool := NewCreateTool("p1", st, nilEmbedder{})

	tests := []struct {
		category string
		want     string
	}{
		{category: "Decisions", want: "decisions"},
		{category: "api-design", want: "api_design"},
		{category: "!!", want: model.GeneralCategory},
		{category: "", want: model.GeneralCategory},
	}
	for _, tt := range tests {
		t.Run(tt.category, func(t *testing.T) {
			res, err := tool.Fn(ctx, map[string]any{"category": tt.category, "content": "Use Postgres for persistence"})
			require.NoError(t, err)
			n, err := st.GetNote(ctx, "p1", res.AffectedID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, n.Category)
		})
	}

	_, err := tool.Fn(ctx, map[string]any{"content": ""})
	assert.Error(t, err)
}

func TestUpdateTool_ConsolidatedCategoryIsFixed(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	n := &model.Note{ProjectID: "p1", Category: "decisions", Content: "Decisions", Consolidated: true}
	require.NoError(t, st.CreateNote(ctx, n))

	tool := NewUpdateTool("p1", st, nilEmbedder{})
	_, err := tool.Fn(ctx, map[string]any{"id": n.ID, "category": "bugs"})
	assert.ErrorContains(t, err, "cannot change")

	_, err = tool.Fn(ctx, map[string]any{"id": n.ID, "content": "Decisions log"})
	require.NoError(t, err)
	got, err := st.GetNote(ctx, "p1", n.ID)
	require.NoError(t, err)
	assert.Equal(t, "Decisions log", got.Content)
}

func TestDeleteAndSearchTools(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	n := &model.Note{ProjectID: "p1", Category: "conventions", Content: "Handlers return typed errors"}
	require.NoError(t, st.CreateNote(ctx, n))

	res, err := NewSearchTool("p1", st).Fn(ctx, map[string]any{"query": "typed errors"})
	require.NoError(t, err)
	assert.Contains(t, res.Message, n.ID)

	_, err = NewDeleteTool("p1", st).Fn(ctx, map[string]any{"id": n.ID})
	require.NoError(t, err)
	_, err = st.GetNote(ctx, "p1", n.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)
}
