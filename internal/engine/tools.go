package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/xeipuuv/gojsonschema"
)

// ToolResult is the outcome of a single tool execution.
type ToolResult struct {
	Tool       string `json:"tool"`
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	AffectedID string `json:"affected_id,omitempty"`
	// Version is the version of the tool that ran; empty when it never ran.
	Version string `json:"version,omitempty"`
}

// ToolFunc runs a tool. A returned error is a failure of the operation itself;
// the executor turns it into an unsuccessful ToolResult.
type ToolFunc func(ctx context.Context, args map[string]any) (ToolResult, error)

// ToolMetadata provides versioning and categorization for tools.
type ToolMetadata struct {
	Version  string   // e.g., "1.0.0"
	Category string   // "work_items" | "notes"
	Tags     []string // e.g., ["read-only"]
	// RequiresConfirmation marks tools whose calls are held as a pending
	// suggestion until the user agrees.
	RequiresConfirmation bool
	Deprecated           bool
}

type Tool struct {
	Name        string
	Description string
	SchemaJSON  string
	Fn          ToolFunc
	Metadata    ToolMetadata
}

// ValidateArgs validates the provided arguments against the tool's JSON schema.
func (t Tool) ValidateArgs(args map[string]any) error {
	schemaLoader := gojsonschema.NewStringLoader(t.SchemaJSON)
	documentLoader := gojsonschema.NewGoLoader(args)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}

	if !result.Valid() {
		var errorMsgs []string
		for _, err := range result.Errors() {
			errorMsgs = append(errorMsgs, err.String())
		}
		return &ToolValidationError{
			ToolName: t.Name,
			Errors:   errorMsgs,
		}
	}

	return nil
}

// RequiredParams lists the "required" properties declared by the tool schema.
func (t Tool) RequiredParams() []string {
	var schema struct {
		Required []string `json:"required"`
	}
	if err := json.Unmarshal([]byte(t.SchemaJSON), &schema); err != nil {
		return nil
	}
	return schema.Required
}

// GetVersion returns the tool version, defaulting to "0.0.0" if unset.
func (t Tool) GetVersion() string {
	if t.Metadata.Version == "" {
		return "0.0.0"
	}
	return t.Metadata.Version
}

type ToolRegistry map[string]Tool

// Lookup returns the named tool.
func (r ToolRegistry) Lookup(name string) (Tool, bool) {
	t, ok := r[name]
	return t, ok
}

// Names returns the registered tool names in sorted order.
func (r ToolRegistry) Names() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

