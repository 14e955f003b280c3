package memory

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChamsBouzaiene/assist/internal/engine"
	"github.com/ChamsBouzaiene/assist/internal/model"
	"github.com/ChamsBouzaiene/assist/internal/store"
)

// MockLLM answers insight and conflict prompts with canned JSON.
type MockLLM struct {
	Insights string
	Conflict string
	Err      error
}

func (m *MockLLM) Chat(ctx context.Context, model string, msgs []engine.ChatMessage, opts engine.ChatOptions) (engine.LLMResponse, error) {
	if m.Err != nil {
		return engine.LLMResponse{}, m.Err
	}
	content := m.Insights
	if strings.Contains(msgs[0].Content, "contradicts") {
		content = m.Conflict
		if content == "" {
			content = `{"contradicts": false}`
		}
	}
	return engine.LLMResponse{Assistant: engine.ChatMessage{Role: engine.RoleAssistant, Content: content}}, nil
}

type vectorFunc func(ctx context.Context, text string) ([]float32, error)

func (f vectorFunc) Embed(ctx context.Context, text string) ([]float32, error) { return f(ctx, text) }

func constant(v []float32) vectorFunc {
	return func(context.Context, string) ([]float32, error) { return v, nil }
}

func newStore(t *testing.T) *store.SQLite {
	t.Helper()
	s, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "assist.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func threeTurns() []model.Turn {
	return []model.Turn{
		{UserText: "We settled on OAuth for sign-in", AgentText: "Noted."},
		{UserText: "Google is the only provider for now", AgentText: "Okay."},
		{UserText: "thanks", AgentText: "Anytime."},
	}
}

const oauthInsight = `{"insights":[{"category":"decisions","significance":0.9,"title":"Sign-in","text":"Sign-in uses OAuth with Google as the only provider."}]}`

func newConsolidator(st store.NoteStore, vec VectorSource, llm engine.LLMClient) *Consolidator {
	return New(st, vec, llm, "m", WithRetryPolicy(engine.RetryPolicy{}))
}

func TestConsolidate_TooFewTurns(t *testing.T) {
	st := newStore(t)
	sum, err := newConsolidator(st, constant([]float32{1, 0}), &MockLLM{Insights: oauthInsight}).
		Consolidate(context.Background(), "p1", threeTurns()[:2])
	require.NoError(t, err)
	assert.True(t, sum.Skipped)
	assert.Zero(t, sum.NotesAffected())

	notes, err := st.ListNotes(context.Background(), "p1", "")
	require.NoError(t, err)
	assert.Empty(t, notes)
}

func TestConsolidate_MergeIsNotDuplicated(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	existing := &model.Note{ProjectID: "p1", Category: "decisions", Content: "Architecture decisions", Consolidated: true, Embedding: []float32{1, 0}}
	require.NoError(t, st.CreateNote(ctx, existing))

	c := newConsolidator(st, constant([]float32{1, 0}), &MockLLM{Insights: oauthInsight})

	sum, err := c.Consolidate(ctx, "p1", threeTurns())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Merged)
	assert.Equal(t, []string{existing.ID}, sum.NoteIDs)

	got, err := st.GetNote(ctx, "p1", existing.ID)
	require.NoError(t, err)
	require.Len(t, got.Sections, 1)
	assert.Equal(t, "Sign-in", got.Sections[0].Name)
	assert.Equal(t, 1, got.Version())
	assert.Equal(t, "Architecture decisions", got.Content)

	sum, err = c.Consolidate(ctx, "p1", threeTurns())
	require.NoError(t, err)
	assert.Equal(t, 0, sum.Merged)
	assert.Equal(t, 1, sum.Unchanged)

	got, err = st.GetNote(ctx, "p1", existing.ID)
	require.NoError(t, err)
	assert.Len(t, got.Sections, 1)
}

func TestConsolidate_ConflictCreatesSeparateNote(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	existing := &model.Note{ProjectID: "p1", Category: "decisions", Content: "Sign-in uses email and password only.", Embedding: []float32{1, 0}}
	require.NoError(t, st.CreateNote(ctx, existing))

	llm := &MockLLM{Insights: oauthInsight, Conflict: `{"contradicts": true, "reason": "provider changed"}`}
	sum, err := newConsolidator(st, constant([]float32{1, 0}), llm).Consolidate(ctx, "p1", threeTurns())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Conflicts)
	assert.Equal(t, 1, sum.Created)
	assert.Equal(t, 0, sum.Merged)

	notes, err := st.ListNotes(ctx, "p1", "decisions")
	require.NoError(t, err)
	assert.Len(t, notes, 2)

	got, err := st.GetNote(ctx, "p1", existing.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Sections)
}

func TestConsolidate_NewTopic(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	require.NoError(t, st.CreateNote(ctx, &model.Note{ProjectID: "p1", Category: "decisions", Content: "Billing runs monthly", Embedding: []float32{1, 0}}))

	vec := vectorFunc(func(_ context.Context, text string) ([]float32, error) {
		if strings.Contains(text, "user:") {
			return []float32{1, 0}, nil
		}
		return []float32{0, 1}, nil
	})
	sum, err := newConsolidator(st, vec, &MockLLM{Insights: oauthInsight}).Consolidate(ctx, "p1", threeTurns())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Created)
	assert.Equal(t, 1, sum.NewTopics)
}

func TestConsolidate_Skips(t *testing.T) {
	ctx := context.Background()

	t.Run("backend down", func(t *testing.T) {
		sum, err := newConsolidator(newStore(t), constant([]float32{1, 0}), &MockLLM{Err: errors.New("503")}).
			Consolidate(ctx, "p1", threeTurns())
		require.NoError(t, err)
		assert.True(t, sum.Skipped)
	})

	t.Run("insignificant", func(t *testing.T) {
		llm := &MockLLM{Insights: `{"insights":[{"category":"decisions","significance":0.2,"text":"They said thanks."}]}`}
		sum, err := newConsolidator(newStore(t), constant([]float32{1, 0}), llm).Consolidate(ctx, "p1", threeTurns())
		require.NoError(t, err)
		assert.True(t, sum.Skipped)
		assert.Equal(t, "no significant insights", sum.Reason)
	})

	t.Run("irrelevant to project topics", func(t *testing.T) {
		st := newStore(t)
		require.NoError(t, st.CreateNote(ctx, &model.Note{ProjectID: "p1", Category: "decisions", Content: "Billing runs monthly", Embedding: []float32{1, 0}}))
		sum, err := newConsolidator(st, constant([]float32{0, 1}), &MockLLM{Insights: oauthInsight}).Consolidate(ctx, "p1", threeTurns())
		require.NoError(t, err)
		assert.True(t, sum.Skipped)
		assert.Contains(t, sum.Reason, "not relevant")
	})
}

func TestConsolidate_CategoryValidation(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	llm := &MockLLM{Insights: `{"insights":[
		{"category":"api_design","significance":0.8,"text":"Public endpoints are versioned under /v1."},
		{"category":"Random Stuff!!","significance":0.8,"text":"The team prefers short standups."}]}`}

	sum, err := newConsolidator(st, constant([]float32{1, 0}), llm).Consolidate(ctx, "p1", threeTurns())
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Created)

	api, err := st.ListNotes(ctx, "p1", "api_design")
	require.NoError(t, err)
	assert.Len(t, api, 1)
	general, err := st.ListNotes(ctx, "p1", model.GeneralCategory)
	require.NoError(t, err)
	assert.Len(t, general, 1)
}

func TestJaccard(t *testing.T) {
	assert.InDelta(t, 1.0, Jaccard("use oauth", "OAuth use"), 1e-9)
	assert.InDelta(t, 1.0/3.0, Jaccard("use oauth", "use saml"), 1e-9)
	assert.Zero(t, Jaccard("", "x"))
}
