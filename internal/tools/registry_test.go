package tools

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChamsBouzaiene/assist/internal/engine"
	"github.com/ChamsBouzaiene/assist/internal/store"
)

type nilEmbedder struct{}

func (nilEmbedder) EmbedBestEffort(context.Context, string) []float32 { return nil }

func TestNewToolRegistry(t *testing.T) {
	st, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "assist.db"))
	require.NoError(t, err)
	defer st.Close()

	reg := NewToolRegistry("p1", st, nilEmbedder{}, engine.FullToolSet())
	assert.Equal(t, []string{
		"create_note", "create_work_item", "delete_note", "delete_work_item",
		"search_notes", "search_work_items", "update_note", "update_work_item", "update_work_item_status",
	}, reg.Names())

	for name, tool := range reg {
		assert.Equal(t, name, tool.Name)
		assert.NotEmpty(t, tool.RequiredParams(), name)
	}

	only := NewToolRegistry("p1", st, nilEmbedder{}, engine.ToolSet{Notes: true})
	assert.Equal(t, []string{"create_note", "delete_note", "search_notes", "update_note"}, only.Names())
	for _, tool := range only {
		assert.Equal(t, "notes", tool.Metadata.Category)
	}
}

func TestRegistry_SchemaRejectsUnknownArgs(t *testing.T) {
	st, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "assist.db"))
	require.NoError(t, err)
	defer st.Close()

	reg := NewToolRegistry("p1", st, nilEmbedder{}, engine.FullToolSet())
	res := engine.ExecuteTool(context.Background(), engine.ToolCall{
		Name: "create_work_item",
		Args: map[string]any{"title": "Add audit log export", "owner": "sam"},
	}, reg)
	assert.False(t, res.Success)

	var verr *engine.ToolValidationError
	tool, _ := reg.Lookup("create_work_item")
	assert.ErrorAs(t, tool.ValidateArgs(map[string]any{"owner": "sam"}), &verr)
}
