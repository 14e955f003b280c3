// Package notes exposes project note operations as engine tools.
package notes

import (
	"context"
	"fmt"
	"strings"

	"github.com/ChamsBouzaiene/assist/internal/engine"
	"github.com/ChamsBouzaiene/assist/internal/model"
	"github.com/ChamsBouzaiene/assist/internal/store"
	"github.com/ChamsBouzaiene/assist/internal/tools/args"
)

type Embedder interface {
	EmbedBestEffort(ctx context.Context, text string) []float32
}

const category = "notes"

func fail(format string, a ...any) (engine.ToolResult, error) {
	return engine.ToolResult{}, fmt.Errorf(format, a...)
}

// NewCreateTool creates the create_note tool. Unknown or malformed categories
// land in "general".
func NewCreateTool(projectID string, st store.NoteStore, emb Embedder) engine.Tool {
	return engine.Tool{
		Name:        "create_note",
		Description: "Record a durable project note (decision, requirement, convention...) under a category.",
		SchemaJSON:  `{"type":"object","properties":{"category":{"type":"string"},"content":{"type":"string","minLength":1}},"required":["content"],"additionalProperties":false}`,
		Fn: func(ctx context.Context, a map[string]any) (engine.ToolResult, error) {
			content, err := args.RequiredString(a, "content")
			if err != nil {
				return fail("%v", err)
			}
			raw, err := args.String(a, "category")
			if err != nil {
				return fail("%v", err)
			}

			note := &model.Note{
				ProjectID: projectID,
				Category:  model.NormalizeCategory(raw),
				Content:   content,
			}
			note.Embedding = emb.EmbedBestEffort(ctx, note.FullText())
			if err := st.CreateNote(ctx, note); err != nil {
				return fail("failed to create note: %v", err)
			}
			return engine.ToolResult{
				Success:    true,
				Message:    fmt.Sprintf("Created note %s in %s", note.ID, note.Category),
				AffectedID: note.ID,
			}, nil
		},
		Metadata: engine.ToolMetadata{Version: "1.0.0", Category: category},
	}
}

// NewUpdateTool creates the update_note tool.
func NewUpdateTool(projectID string, st store.NoteStore, emb Embedder) engine.Tool {
	return engine.Tool{
		Name:        "update_note",
		Description: "Replace the content or category of an existing note.",
		SchemaJSON:  `{"type":"object","properties":{"id":{"type":"string","minLength":1},"category":{"type":"string"},"content":{"type":"string"}},"required":["id"],"additionalProperties":false}`,
		Fn: func(ctx context.Context, a map[string]any) (engine.ToolResult, error) {
			id, err := args.RequiredString(a, "id")
			if err != nil {
				return fail("%v", err)
			}
			note, err := st.GetNote(ctx, projectID, id)
			if err != nil {
				return fail("note %s not found", id)
			}

			changed := false
			content, err := args.String(a, "content")
			if err != nil {
				return fail("%v", err)
			}
			if content != "" && content != note.Content {
				note.Content, changed = content, true
			}
			raw, err := args.String(a, "category")
			if err != nil {
				return fail("%v", err)
			}
			if raw != "" {
				if c := model.NormalizeCategory(raw); c != note.Category {
					if note.Consolidated {
						return fail("note %s is the consolidated %s note; its category cannot change", id, note.Category)
					}
					note.Category, changed = c, true
				}
			}
			if !changed {
				return fail("nothing to update on note %s", id)
			}

			note.Embedding = emb.EmbedBestEffort(ctx, note.FullText())
			if err := st.UpdateNote(ctx, note); err != nil {
				return fail("failed to update note %s: %v", id, err)
			}
			return engine.ToolResult{
				Success:    true,
				Message:    fmt.Sprintf("Updated note %s", note.ID),
				AffectedID: note.ID,
			}, nil
		},
		Metadata: engine.ToolMetadata{Version: "1.0.0", Category: category},
	}
}

// NewDeleteTool creates the delete_note tool.
func NewDeleteTool(projectID string, st store.NoteStore) engine.Tool {
	return engine.Tool{
		Name:        "delete_note",
		Description: "Permanently delete a note.",
		SchemaJSON:  `{"type":"object","properties":{"id":{"type":"string","minLength":1}},"required":["id"],"additionalProperties":false}`,
		Fn: func(ctx context.Context, a map[string]any) (engine.ToolResult, error) {
			id, err := args.RequiredString(a, "id")
			if err != nil {
				return fail("%v", err)
			}
			if err := st.DeleteNote(ctx, projectID, id); err != nil {
				return fail("failed to delete note %s: %v", id, err)
			}
			return engine.ToolResult{
				Success:    true,
				Message:    fmt.Sprintf("Deleted note %s", id),
				AffectedID: id,
			}, nil
		},
		Metadata: engine.ToolMetadata{Version: "1.0.0", Category: category, Tags: []string{"destructive"}},
	}
}

// NewSearchTool creates the search_notes tool.
func NewSearchTool(projectID string, st store.NoteStore) engine.Tool {
	return engine.Tool{
		Name:        "search_notes",
		Description: "Keyword search over the project's notes.",
		SchemaJSON:  `{"type":"object","properties":{"query":{"type":"string","minLength":1},"limit":{"type":"integer","minimum":1,"maximum":50}},"required":["query"],"additionalProperties":false}`,
		Fn: func(ctx context.Context, a map[string]any) (engine.ToolResult, error) {
			query, err := args.RequiredString(a, "query")
			if err != nil {
				return fail("%v", err)
			}
			limit, err := args.Int(a, "limit", 10)
			if err != nil {
				return fail("%v", err)
			}
			ids, err := st.SearchNotes(ctx, projectID, query, limit)
			if err != nil {
				return fail("search failed: %v", err)
			}

			var lines []string
			for _, id := range ids {
				n, err := st.GetNote(ctx, projectID, id)
				if err != nil {
					continue
				}
				lines = append(lines, fmt.Sprintf("- %s [%s] %s", n.ID, n.Category, firstLine(n.Content)))
			}
			if len(lines) == 0 {
				return engine.ToolResult{Success: true, Message: fmt.Sprintf("No notes match %q.", query)}, nil
			}
			return engine.ToolResult{
				Success: true,
				Message: fmt.Sprintf("Found %d note(s):\n%s", len(lines), strings.Join(lines, "\n")),
			}, nil
		},
		Metadata: engine.ToolMetadata{Version: "1.0.0", Category: category, Tags: []string{"read-only"}},
	}
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	if len(line) > 80 {
		line = line[:77] + "..."
	}
	return line
}
