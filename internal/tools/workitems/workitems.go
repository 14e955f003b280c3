// Package workitems exposes work item operations as engine tools.
package workitems

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ChamsBouzaiene/assist/internal/engine"
	"github.com/ChamsBouzaiene/assist/internal/model"
	"github.com/ChamsBouzaiene/assist/internal/store"
	"github.com/ChamsBouzaiene/assist/internal/tools/args"
)

// Embedder produces a vector for stored text, or nil when none is available.
type Embedder interface {
	EmbedBestEffort(ctx context.Context, text string) []float32
}

const category = "work_items"

func fail(format string, a ...any) (engine.ToolResult, error) {
	return engine.ToolResult{}, fmt.Errorf(format, a...)
}

func parsePriority(raw string) (model.Priority, error) {
	if raw == "" {
		return "", nil
	}
	p := model.Priority(strings.ToLower(raw))
	if !model.ValidPriority(p) {
		return "", fmt.Errorf("invalid priority %q (use low, medium, high or urgent)", raw)
	}
	return p, nil
}

// NewCreateTool creates the create_work_item tool.
func NewCreateTool(projectID string, st store.WorkItemStore, emb Embedder) engine.Tool {
	return engine.Tool{
		Name:        "create_work_item",
		Description: "Create a new work item in the project. The title must be the user's own wording.",
		SchemaJSON:  `{"type":"object","properties":{"title":{"type":"string","minLength":1},"description":{"type":"string"},"priority":{"type":"string","enum":["low","medium","high","urgent"]}},"required":["title"],"additionalProperties":false}`,
		Fn: func(ctx context.Context, a map[string]any) (engine.ToolResult, error) {
			title, err := args.RequiredString(a, "title")
			if err != nil {
				return fail("%v", err)
			}
			desc, err := args.String(a, "description")
			if err != nil {
				return fail("%v", err)
			}
			raw, err := args.String(a, "priority")
			if err != nil {
				return fail("%v", err)
			}
			priority, err := parsePriority(raw)
			if err != nil {
				return fail("%v", err)
			}

			item := &model.WorkItem{
				ProjectID:   projectID,
				Title:       title,
				Description: desc,
				Status:      model.StatusOpen,
				Priority:    priority,
			}
			item.Embedding = emb.EmbedBestEffort(ctx, item.EmbeddingText())

			if err := st.CreateWorkItem(ctx, item); err != nil {
				return fail("failed to create work item: %v", err)
			}
			return engine.ToolResult{
				Success:    true,
				Message:    fmt.Sprintf("Created work item %s: %s", item.ID, item.Title),
				AffectedID: item.ID,
			}, nil
		},
		Metadata: engine.ToolMetadata{Version: "1.0.0", Category: category, RequiresConfirmation: true},
	}
}

// NewUpdateTool creates the update_work_item tool. Status is changed through
// update_work_item_status only.
func NewUpdateTool(projectID string, st store.WorkItemStore, emb Embedder) engine.Tool {
	return engine.Tool{
		Name:        "update_work_item",
		Description: "Update the title, description or priority of an existing work item.",
		SchemaJSON:  `{"type":"object","properties":{"id":{"type":"string","minLength":1},"title":{"type":"string"},"description":{"type":"string"},"priority":{"type":"string","enum":["low","medium","high","urgent"]}},"required":["id"],"additionalProperties":false}`,
		Fn: func(ctx context.Context, a map[string]any) (engine.ToolResult, error) {
			id, err := args.RequiredString(a, "id")
			if err != nil {
				return fail("%v", err)
			}
			item, err := st.GetWorkItem(ctx, projectID, id)
			if err != nil {
				return fail("work item %s not found", id)
			}

			changed := false
			if title, err := args.String(a, "title"); err != nil {
				return fail("%v", err)
			} else if title != "" && title != item.Title {
				item.Title, changed = title, true
			}
			if _, present := a["description"]; present {
				desc, err := args.String(a, "description")
				if err != nil {
					return fail("%v", err)
				}
				if desc != item.Description {
					item.Description, changed = desc, true
				}
			}
			raw, err := args.String(a, "priority")
			if err != nil {
				return fail("%v", err)
			}
			if p, err := parsePriority(raw); err != nil {
				return fail("%v", err)
			} else if p != "" && p != item.Priority {
				item.Priority, changed = p, true
			}

			if !changed {
				return fail("nothing to update on work item %s", id)
			}

			item.Embedding = emb.EmbedBestEffort(ctx, item.EmbeddingText())
			if err := st.UpdateWorkItem(ctx, item); err != nil {
				return fail("failed to update work item %s: %v", id, err)
			}
			return engine.ToolResult{
				Success:    true,
				Message:    fmt.Sprintf("Updated work item %s: %s", item.ID, item.Title),
				AffectedID: item.ID,
			}, nil
		},
		Metadata: engine.ToolMetadata{Version: "1.0.0", Category: category},
	}
}

// NewDeleteTool creates the delete_work_item tool.
func NewDeleteTool(projectID string, st store.WorkItemStore) engine.Tool {
	return engine.Tool{
		Name:        "delete_work_item",
		Description: "Permanently delete a work item.",
		SchemaJSON:  `{"type":"object","properties":{"id":{"type":"string","minLength":1}},"required":["id"],"additionalProperties":false}`,
		Fn: func(ctx context.Context, a map[string]any) (engine.ToolResult, error) {
			id, err := args.RequiredString(a, "id")
			if err != nil {
				return fail("%v", err)
			}
			item, err := st.GetWorkItem(ctx, projectID, id)
			if err != nil {
				return fail("work item %s not found", id)
			}
			if err := st.DeleteWorkItem(ctx, projectID, id); err != nil {
				return fail("failed to delete work item %s: %v", id, err)
			}
			return engine.ToolResult{
				Success:    true,
				Message:    fmt.Sprintf("Deleted work item %s: %s", item.ID, item.Title),
				AffectedID: item.ID,
			}, nil
		},
		Metadata: engine.ToolMetadata{Version: "1.0.0", Category: category, Tags: []string{"destructive"}},
	}
}

// NewStatusTool creates the update_work_item_status tool. Status only moves forward.
func NewStatusTool(projectID string, st store.WorkItemStore) engine.Tool {
	return engine.Tool{
		Name:        "update_work_item_status",
		Description: "Move a work item to in-progress or done.",
		SchemaJSON:  `{"type":"object","properties":{"id":{"type":"string","minLength":1},"status":{"type":"string","minLength":1}},"required":["id","status"],"additionalProperties":false}`,
		Fn: func(ctx context.Context, a map[string]any) (engine.ToolResult, error) {
			id, err := args.RequiredString(a, "id")
			if err != nil {
				return fail("%v", err)
			}
			raw, err := args.RequiredString(a, "status")
			if err != nil {
				return fail("%v", err)
			}
			to, ok := model.ParseStatus(strings.ToLower(raw))
			if !ok {
				return fail("invalid status %q (use open, in-progress or done)", raw)
			}

			item, err := st.GetWorkItem(ctx, projectID, id)
			if errors.Is(err, model.ErrNotFound) {
				return fail("work item %s not found", id)
			}
			if err != nil {
				return fail("failed to load work item %s: %v", id, err)
			}

			from := item.Status
			if !model.CanTransition(from, to) {
				return fail("cannot move work item %s from %s to %s: %v", id, from, to, model.ErrInvalidTransition)
			}
			item.Status = to
			if err := st.UpdateWorkItem(ctx, item); err != nil {
				return fail("failed to update work item %s: %v", id, err)
			}
			return engine.ToolResult{
				Success:    true,
				Message:    fmt.Sprintf("Updated work item %s status: %s -> %s", item.ID, from, to),
				AffectedID: item.ID,
			}, nil
		},
		Metadata: engine.ToolMetadata{Version: "1.0.0", Category: category},
	}
}

// NewSearchTool creates the search_work_items tool.
func NewSearchTool(projectID string, st store.WorkItemStore) engine.Tool {
	return engine.Tool{
		Name:        "search_work_items",
		Description: "Keyword search over the project's work items.",
		SchemaJSON:  `{"type":"object","properties":{"query":{"type":"string","minLength":1},"limit":{"type":"integer","minimum":1,"maximum":50},"include_done":{"type":"boolean"}},"required":["query"],"additionalProperties":false}`,
		Fn: func(ctx context.Context, a map[string]any) (engine.ToolResult, error) {
			query, err := args.RequiredString(a, "query")
			if err != nil {
				return fail("%v", err)
			}
			limit, err := args.Int(a, "limit", 10)
			if err != nil {
				return fail("%v", err)
			}
			includeDone, err := args.Bool(a, "include_done", false)
			if err != nil {
				return fail("%v", err)
			}

			ids, err := st.SearchWorkItems(ctx, projectID, query, limit*2)
			if err != nil {
				return fail("search failed: %v", err)
			}

			var lines []string
			for _, id := range ids {
				item, err := st.GetWorkItem(ctx, projectID, id)
				if err != nil {
					continue
				}
				if item.Status == model.StatusDone && !includeDone {
					continue
				}
				lines = append(lines, fmt.Sprintf("- %s [%s] %s", item.ID, item.Status, item.Title))
				if len(lines) == limit {
					break
				}
			}
			if len(lines) == 0 {
				return engine.ToolResult{Success: true, Message: fmt.Sprintf("No work items match %q.", query)}, nil
			}
			return engine.ToolResult{
				Success: true,
				Message: fmt.Sprintf("Found %d work item(s):\n%s", len(lines), strings.Join(lines, "\n")),
			}, nil
		},
		Metadata: engine.ToolMetadata{Version: "1.0.0", Category: category, Tags: []string{"read-only"}},
	}
}
