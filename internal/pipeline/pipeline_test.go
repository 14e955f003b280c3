package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ChamsBouzaiene/assist/internal/engine"
	"github.com/ChamsBouzaiene/assist/internal/model"
	"github.com/ChamsBouzaiene/assist/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreAnyFunction("github.com/blevesearch/bleve_index_api.AnalysisWorker"),
		// started at init by genai's opencensus dependency
		goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"),
	)
}

type harness struct {
	t     *testing.T
	store *store.SQLite
	orch  *Orchestrator
}

func newHarness(t *testing.T, llm engine.LLMClient) *harness {
	t.Helper()
	st, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "assist.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	orch, err := New(Deps{Sessions: st, Records: st, LLM: llm, Model: "test-model"})
	require.NoError(t, err)
	return &harness{t: t, store: st, orch: orch}
}

func (h *harness) open(projectID string) string {
	h.t.Helper()
	sess, err := h.orch.OpenSession(context.Background(), projectID)
	require.NoError(h.t, err)
	return sess.ID
}

func (h *harness) say(projectID, sessionID, text string) *TurnResult {
	h.t.Helper()
	res, err := h.orch.ProcessTurn(context.Background(), projectID, text, sessionID)
	require.NoError(h.t, err)
	return res
}

func (h *harness) items(projectID string) []*model.WorkItem {
	h.t.Helper()
	items, err := h.store.ListWorkItems(context.Background(), projectID, true)
	require.NoError(h.t, err)
	return items
}

func TestScenarioA_ReferenceThenConfirm(t *testing.T) {
	h := newHarness(t, nil)
	sid := h.open("p1")
	first := "I want to delete the 'generate prompt' button"

	h.say("p1", sid, first)
	assert.Empty(t, h.items("p1"))

	res := h.say("p1", sid, "add this as a task")
	assert.True(t, res.Pending)
	assert.Contains(t, res.ResponseText, first)
	assert.Empty(t, h.items("p1"), "nothing is created before confirmation")

	res = h.say("p1", sid, "yes")
	require.Len(t, res.ToolResults, 1)
	assert.True(t, res.ToolResults[0].Success)

	items := h.items("p1")
	require.Len(t, items, 1)
	assert.Equal(t, first, items[0].Title)
	assert.Equal(t, model.StatusOpen, items[0].Status)
	assert.NotEmpty(t, items[0].Embedding)
}

func TestScenarioB_BareReferenceWithoutHistory(t *testing.T) {
	h := newHarness(t, nil)
	sid := h.open("p1")

	res := h.say("p1", sid, "add this as a task")
	assert.False(t, res.Pending)
	assert.True(t, res.Plan.IsClarification())
	assert.Contains(t, res.ResponseText, "?")
	assert.Empty(t, res.ToolResults)

	_, pending := h.orch.PendingSuggestion("p1")
	assert.False(t, pending)
	assert.Empty(t, h.items("p1"))
}

func TestScenarioC_MarkDone(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	item := &model.WorkItem{ProjectID: "p1", Title: "Implement login", Status: model.StatusOpen}
	require.NoError(t, h.store.CreateWorkItem(ctx, item))
	sid := h.open("p1")

	res := h.say("p1", sid, "mark login task as done")
	require.Len(t, res.ToolResults, 1)
	assert.True(t, res.ToolResults[0].Success)
	assert.Equal(t, fmt.Sprintf("Updated work item %s status: open -> done", item.ID), res.ResponseText)

	got, err := h.store.GetWorkItem(ctx, "p1", item.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDone, got.Status)
}

func TestScenarioD_ShortSessionIsNotConsolidated(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	sid := h.open("p1")
	h.say("p1", sid, "hello there")
	h.say("p1", sid, "how are things going")

	res, err := h.orch.EndSession(ctx, "p1", sid)
	require.NoError(t, err)
	assert.True(t, res.Summary.Skipped)
	assert.Zero(t, res.Summary.NotesAffected())
	assert.NotEqual(t, sid, res.NewSessionID)
	assert.NotEmpty(t, res.Title)

	notes, err := h.store.ListNotes(ctx, "p1", "")
	require.NoError(t, err)
	assert.Empty(t, notes)

	_, err = h.orch.ProcessTurn(ctx, "p1", "anything", sid)
	assert.ErrorIs(t, err, model.ErrSessionClosed)
	_, err = h.orch.EndSession(ctx, "p1", sid)
	assert.ErrorIs(t, err, model.ErrSessionClosed)
}

func TestConfirmation(t *testing.T) {
	const idea = "Users need to export their reports as CSV files"

	t.Run("second yes does nothing", func(t *testing.T) {
		h := newHarness(t, nil)
		sid := h.open("p1")
		h.say("p1", sid, idea)
		h.say("p1", sid, "add this as a task")
		h.say("p1", sid, "yes")
		require.Len(t, h.items("p1"), 1)

		res := h.say("p1", sid, "yes")
		assert.Empty(t, res.ToolResults)
		assert.Len(t, h.items("p1"), 1)
	})

	t.Run("decline clears the suggestion", func(t *testing.T) {
		h := newHarness(t, nil)
		sid := h.open("p1")
		h.say("p1", sid, idea)
		h.say("p1", sid, "add this as a task")

		res := h.say("p1", sid, "no")
		assert.Contains(t, res.ResponseText, "won't create")
		_, pending := h.orch.PendingSuggestion("p1")
		assert.False(t, pending)

		h.say("p1", sid, "yes")
		assert.Empty(t, h.items("p1"))
	})

	t.Run("neutral turn keeps the suggestion", func(t *testing.T) {
		h := newHarness(t, nil)
		sid := h.open("p1")
		h.say("p1", sid, idea)
		h.say("p1", sid, "add this as a task")

		res := h.say("p1", sid, "hmm, how long did the last export take")
		assert.Contains(t, res.ResponseText, "Still waiting")
		_, pending := h.orch.PendingSuggestion("p1")
		assert.True(t, pending)

		h.say("p1", sid, "sure")
		items := h.items("p1")
		require.Len(t, items, 1)
		assert.Equal(t, idea, items[0].Title)
	})

	t.Run("ending the session drops the suggestion", func(t *testing.T) {
		h := newHarness(t, nil)
		sid := h.open("p1")
		h.say("p1", sid, idea)
		h.say("p1", sid, "add this as a task")

		res, err := h.orch.EndSession(context.Background(), "p1", sid)
		require.NoError(t, err)
		h.say("p1", res.NewSessionID, "yes")
		assert.Empty(t, h.items("p1"))
	})
}

func TestMultiItemCreation(t *testing.T) {
	h := newHarness(t, nil)
	sid := h.open("p1")

	res := h.say("p1", sid, "add this as a task:\n- Add rate limiting to the public API\n- Create an audit log for admin actions")
	require.True(t, res.Pending)
	h.say("p1", sid, "yes")

	var titles []string
	for _, it := range h.items("p1") {
		titles = append(titles, it.Title)
	}
	assert.ElementsMatch(t, []string{"Add rate limiting to the public API", "Create an audit log for admin actions"}, titles)
}

func TestProgressSink(t *testing.T) {
	h := newHarness(t, nil)
	sid := h.open("p1")

	var got []engine.Phase
	sink := WithProgress(func(p engine.Phase, _ string) { got = append(got, p) })

	_, err := h.orch.ProcessTurn(context.Background(), "p1", "what do you think about dark mode", sid, sink)
	require.NoError(t, err)
	assert.Equal(t, engine.Phases(), got)

	h.say("p1", sid, "add this as a task: Support dark mode in the settings page")
	got = nil
	_, err = h.orch.ProcessTurn(context.Background(), "p1", "yes", sid, sink)
	require.NoError(t, err)
	assert.Equal(t, engine.Phases(), got)
}

func TestCallerErrors(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	sid := h.open("p1")

	_, err := h.orch.ProcessTurn(ctx, "", "hello", sid)
	assert.ErrorIs(t, err, ErrEmptyProject)

	_, err = h.orch.ProcessTurn(ctx, "p2", "hello", sid)
	assert.ErrorIs(t, err, ErrWrongProject)

	_, err = h.orch.ProcessTurn(ctx, "p1", "hello", "no-such-session")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestBackendFaultsNeverAbortTurn(t *testing.T) {
	t.Run("malformed output", func(t *testing.T) {
		llm := engine.LLMClientFunc(func(context.Context, string, []engine.ChatMessage, engine.ChatOptions) (engine.LLMResponse, error) {
			return engine.LLMResponse{Assistant: engine.ChatMessage{Role: engine.RoleAssistant, Content: "I am not JSON"}}, nil
		})
		h := newHarness(t, llm)
		item := &model.WorkItem{ProjectID: "p1", Title: "Implement login", Status: model.StatusOpen}
		require.NoError(t, h.store.CreateWorkItem(context.Background(), item))
		sid := h.open("p1")

		res := h.say("p1", sid, "mark login task as done")
		require.NotNil(t, res.Analysis)
		assert.True(t, res.Analysis.Fallback)
		require.Len(t, res.ToolResults, 1)
		assert.True(t, res.ToolResults[0].Success)
	})

	t.Run("panic", func(t *testing.T) {
		llm := engine.LLMClientFunc(func(context.Context, string, []engine.ChatMessage, engine.ChatOptions) (engine.LLMResponse, error) {
			panic("backend exploded")
		})
		h := newHarness(t, llm)
		sid := h.open("p1")

		res := h.say("p1", sid, "hello there")
		assert.Equal(t, RephraseResponse, res.ResponseText)

		sess, err := h.store.GetSession(context.Background(), sid)
		require.NoError(t, err)
		require.Len(t, sess.Turns, 1)
		assert.Equal(t, RephraseResponse, sess.Turns[0].AgentText)
	})
}

func TestConcurrentProjects(t *testing.T) {
	h := newHarness(t, nil)
	projects := []string{"alpha", "beta", "gamma"}
	sessions := make(map[string]string)
	for _, p := range projects {
		sessions[p] = h.open(p)
	}

	var wg sync.WaitGroup
	for _, p := range projects {
		wg.Add(1)
		go func(p string) {
			defer wg.Done()
			for i := range 4 {
				_, err := h.orch.ProcessTurn(context.Background(), p, fmt.Sprintf("message %d for %s", i, p), sessions[p])
				assert.NoError(t, err)
			}
		}(p)
	}
	wg.Wait()

	for _, p := range projects {
		sess, err := h.store.GetSession(context.Background(), sessions[p])
		require.NoError(t, err)
		require.Len(t, sess.Turns, 4)
		for i, turn := range sess.Turns {
			assert.Equal(t, fmt.Sprintf("message %d for %s", i, p), turn.UserText)
			assert.NotEmpty(t, turn.AgentText)
		}
	}
}

func TestFormatResults(t *testing.T) {
	results := []engine.ToolResult{
		{Tool: "create_work_item", Success: true, Message: "Created work item a: First"},
		{Tool: "create_work_item", Message: "title is required"},
	}
	assert.Equal(t,
		"Created work item a: First\nFailed (create_work_item): title is required\nStopped after the failure; 1 remaining step(s) were not run.",
		FormatResults(results, 3))
}
