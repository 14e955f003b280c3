package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChamsBouzaiene/assist/internal/model"
)

func openTestStore(t *testing.T) *SQLite {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "assist.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSessions_OneOpenPerProject(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	first, err := s.OpenSession(ctx, "p1")
	require.NoError(t, err)
	again, err := s.OpenSession(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	other, err := s.OpenSession(ctx, "p2")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)

	require.NoError(t, s.EndSession(ctx, first.ID, "Login work"))
	next, err := s.OpenSession(ctx, "p1")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, next.ID)

	err = s.EndSession(ctx, first.ID, "")
	assert.ErrorIs(t, err, model.ErrSessionClosed)
	err = s.EndSession(ctx, "missing", "")
	assert.ErrorIs(t, err, model.ErrNotFound)

	list, err := s.ListSessions(ctx, "p1")
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestSessions_AppendOnlyTurns(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	sess, err := s.OpenSession(ctx, "p1")
	require.NoError(t, err)

	t1, err := s.AppendTurn(ctx, sess.ID, "first")
	require.NoError(t, err)
	_, err = s.AppendTurn(ctx, sess.ID, "second")
	require.NoError(t, err)
	require.NoError(t, s.SetAgentText(ctx, t1.ID, "reply"))

	got, err := s.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, got.Turns, 2)
	assert.Equal(t, "first", got.Turns[0].UserText)
	assert.Equal(t, "reply", got.Turns[0].AgentText)
	assert.Equal(t, 2, got.Turns[1].Seq)

	require.NoError(t, s.EndSession(ctx, sess.ID, ""))
	_, err = s.AppendTurn(ctx, sess.ID, "late")
	assert.ErrorIs(t, err, model.ErrSessionClosed)
}

func TestWorkItems_CRUDAndSearch(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	login := &model.WorkItem{ProjectID: "p1", Title: "Implement login", Embedding: []float32{1, 0}}
	require.NoError(t, s.CreateWorkItem(ctx, login))
	require.NoError(t, s.CreateWorkItem(ctx, &model.WorkItem{ProjectID: "p1", Title: "Write onboarding docs"}))
	require.NoError(t, s.CreateWorkItem(ctx, &model.WorkItem{ProjectID: "p2", Title: "Implement login for admin"}))

	got, err := s.GetWorkItem(ctx, "p1", login.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusOpen, got.Status)
	assert.Equal(t, model.PriorityMedium, got.Priority)
	assert.Equal(t, []float32{1, 0}, got.Embedding)

	_, err = s.GetWorkItem(ctx, "p2", login.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)

	ids, err := s.SearchWorkItems(ctx, "p1", "login", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{login.ID}, ids)

	got.Status = model.StatusDone
	require.NoError(t, s.UpdateWorkItem(ctx, got))

	open, err := s.ListWorkItems(ctx, "p1", false)
	require.NoError(t, err)
	assert.Len(t, open, 1)
	all, err := s.ListWorkItems(ctx, "p1", true)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, s.DeleteWorkItem(ctx, "p1", login.ID))
	assert.ErrorIs(t, s.DeleteWorkItem(ctx, "p1", login.ID), model.ErrNotFound)
	ids, err = s.SearchWorkItems(ctx, "p1", "login", 10)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestNotes_SectionsAndConsolidatedUniqueness(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	note := &model.Note{
		ProjectID:    "p1",
		Category:     "decisions",
		Content:      "Decisions",
		Consolidated: true,
		Sections:     []model.Section{{Name: "auth", Content: "Use OAuth with PKCE", Version: 1}},
	}
	require.NoError(t, s.CreateNote(ctx, note))

	dup := &model.Note{ProjectID: "p1", Category: "decisions", Content: "other", Consolidated: true}
	assert.Error(t, s.CreateNote(ctx, dup))

	got, err := s.GetNote(ctx, "p1", note.ID)
	require.NoError(t, err)
	require.Len(t, got.Sections, 1)
	assert.Equal(t, "Use OAuth with PKCE", got.Sections[0].Content)

	ids, err := s.SearchNotes(ctx, "p1", "oauth", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{note.ID}, ids)

	list, err := s.ListNotes(ctx, "p1", "bugs")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestOpen_RebuildsMissingSearchIndex(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "assist.db")

	s, err := Open(ctx, path)
	require.NoError(t, err)
	item := &model.WorkItem{ProjectID: "p1", Title: "Implement login", Status: model.StatusOpen}
	require.NoError(t, s.CreateWorkItem(ctx, item))
	note := &model.Note{ProjectID: "p2", Category: "architecture", Content: "Sessions are stored in sqlite"}
	require.NoError(t, s.CreateNote(ctx, note))
	require.NoError(t, s.Close())

	require.NoError(t, os.RemoveAll(path+".bleve"))

	s, err = Open(ctx, path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ids, err := s.SearchWorkItems(ctx, "p1", "login", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{item.ID}, ids)

	ids, err = s.SearchNotes(ctx, "p2", "sqlite", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{note.ID}, ids)
}
