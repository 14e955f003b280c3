package tools

import (
	"context"

	"github.com/ChamsBouzaiene/assist/internal/engine"
	"github.com/ChamsBouzaiene/assist/internal/store"
	"github.com/ChamsBouzaiene/assist/internal/tools/notes"
	"github.com/ChamsBouzaiene/assist/internal/tools/workitems"
)

// Embedder produces vectors for records written by the tools. Failures yield nil.
type Embedder interface {
	EmbedBestEffort(ctx context.Context, text string) []float32
}

// NewToolRegistry creates the registry of side-effecting operations available
// for one project, limited to the categories enabled in set.
func NewToolRegistry(projectID string, st store.RecordStore, emb Embedder, set engine.ToolSet) engine.ToolRegistry {
	reg := make(engine.ToolRegistry)

	if set.WorkItems {
		reg["create_work_item"] = workitems.NewCreateTool(projectID, st, emb)
		reg["update_work_item"] = workitems.NewUpdateTool(projectID, st, emb)
		reg["delete_work_item"] = workitems.NewDeleteTool(projectID, st)
		reg["update_work_item_status"] = workitems.NewStatusTool(projectID, st)
		reg["search_work_items"] = workitems.NewSearchTool(projectID, st)
	}

	if set.Notes {
		reg["create_note"] = notes.NewCreateTool(projectID, st, emb)
		reg["update_note"] = notes.NewUpdateTool(projectID, st, emb)
		reg["delete_note"] = notes.NewDeleteTool(projectID, st)
		reg["search_notes"] = notes.NewSearchTool(projectID, st)
	}

	return reg
}
