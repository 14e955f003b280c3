package retrieval

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChamsBouzaiene/assist/internal/embedding"
	"github.com/ChamsBouzaiene/assist/internal/model"
)

func item(id string, vec []float32, updated time.Time) *model.WorkItem {
	return &model.WorkItem{ID: id, Title: id, Embedding: vec, UpdatedAt: updated}
}

func TestRank_ThresholdCapAndOrder(t *testing.T) {
	now := time.Now()
	pool := []*model.WorkItem{
		item("low", []float32{0, 1}, now),
		item("best", []float32{1, 0}, now),
		item("mid", []float32{1, 1}, now),
		item("no-vector", nil, now),
	}

	got := Rank([]float32{1, 0}, pool, Options{Threshold: 0.5})
	require.Len(t, got, 2)
	assert.Equal(t, "best", got[0].Item.ID)
	assert.Equal(t, "mid", got[1].Item.ID)

	capped := Rank([]float32{1, 0}, pool, Options{Threshold: 0, Limit: 1})
	require.Len(t, capped, 1)
	assert.Equal(t, "best", capped[0].Item.ID)
}

func TestRank_TiesBreakByRecency(t *testing.T) {
	now := time.Now()
	pool := []*model.WorkItem{
		item("older", []float32{1, 0}, now.Add(-time.Hour)),
		item("newer", []float32{2, 0}, now),
	}
	got := Rank([]float32{1, 0}, pool, Options{})
	require.Len(t, got, 2)
	assert.Equal(t, "newer", got[0].Item.ID)
	assert.Equal(t, "older", got[1].Item.ID)
}

func TestRank_EmptyQuery(t *testing.T) {
	assert.Nil(t, Rank[*model.WorkItem](nil, []*model.WorkItem{item("a", []float32{1}, time.Now())}, Options{}))
}

func TestRank_RaisingThresholdNeverAddsCandidates(t *testing.T) {
	e := embedding.NewHashEmbedder(128)
	ctx := context.Background()
	var pool []*model.WorkItem
	for i, title := range []string{
		"Implement login", "Fix login redirect", "Delete the generate prompt button",
		"Write onboarding docs", "Add dark mode toggle", "Login rate limiting",
		"Refactor billing service", "Export tasks as CSV",
	} {
		vec, err := e.Embed(ctx, title)
		require.NoError(t, err)
		pool = append(pool, item(fmt.Sprintf("w%d", i), vec, time.Unix(int64(i), 0)))
	}
	query, err := e.Embed(ctx, "the login page is broken")
	require.NoError(t, err)

	prev := len(pool) + 1
	for th := -1.0; th <= 1.0; th += 0.05 {
		n := len(Rank(query, pool, Options{Threshold: th}))
		assert.LessOrEqual(t, n, prev, "threshold %.2f", th)
		prev = n
	}
}

func TestRank_Deterministic(t *testing.T) {
	now := time.Now()
	pool := []*model.WorkItem{
		item("b", []float32{1, 0}, now),
		item("a", []float32{1, 0}, now),
	}
	first := Items(Rank([]float32{1, 0}, pool, Options{}))
	second := Items(Rank([]float32{1, 0}, []*model.WorkItem{pool[1], pool[0]}, Options{}))
	assert.Equal(t, first, second)
	assert.Equal(t, "a", first[0].ID)
}
