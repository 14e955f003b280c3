package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

const titleSchema = `{"type":"object","properties":{"title":{"type":"string"}},"required":["title"]}`

func recordingTool(name string, calls *[]string, fail bool) Tool {
	return Tool{
		Name:       name,
		SchemaJSON: titleSchema,
		Fn: func(ctx context.Context, args map[string]any) (ToolResult, error) {
			*calls = append(*calls, name)
			if fail {
				return ToolResult{}, errors.New("record store rejected the write")
			}
			return ToolResult{Success: true, Message: "ok", AffectedID: name + "-id"}, nil
		},
	}
}

func TestExecuteSequential_StopsAtFirstFailure(t *testing.T) {
	var calls []string
	reg := ToolRegistry{
		"first":  recordingTool("first", &calls, false),
		"broken": recordingTool("broken", &calls, true),
		"third":  recordingTool("third", &calls, false),
	}
	args := map[string]any{"title": "Implement login page"}

	results := ExecuteSequential(context.Background(), []ToolCall{
		{Name: "first", Args: args},
		{Name: "broken", Args: args},
		{Name: "third", Args: args},
	}, reg, nil)

	require.Len(t, results, 2)
	assert.True(t, results[0].Success)
	assert.Equal(t, "first-id", results[0].AffectedID)
	assert.False(t, results[1].Success)
	assert.Equal(t, "record store rejected the write", results[1].Message)
	assert.Equal(t, []string{"first", "broken"}, calls)
}

func TestExecuteTool_SchemaRejection(t *testing.T) {
	var calls []string
	reg := ToolRegistry{"first": recordingTool("first", &calls, false)}

	res := ExecuteTool(context.Background(), ToolCall{Name: "first", Args: map[string]any{}}, reg)

	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "title")
	assert.Empty(t, calls)
}

func TestExecuteTool_UnknownTool(t *testing.T) {
	res := ExecuteTool(context.Background(), ToolCall{Name: "drop_database"}, ToolRegistry{})
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "tool not found")
}

func TestExecuteTool_ReportsVersion(t *testing.T) {
	var calls []string
	versioned := recordingTool("versioned", &calls, false)
	versioned.Metadata.Version = "1.2.0"
	reg := ToolRegistry{
		"versioned": versioned,
		"plain":     recordingTool("plain", &calls, true),
	}
	args := map[string]any{"title": "Implement login page"}

	assert.Equal(t, "1.2.0", ExecuteTool(context.Background(), ToolCall{Name: "versioned", Args: args}, reg).Version)
	assert.Equal(t, "0.0.0", ExecuteTool(context.Background(), ToolCall{Name: "plain", Args: args}, reg).Version)
	assert.Empty(t, ExecuteTool(context.Background(), ToolCall{Name: "missing"}, reg).Version)
}

func TestLoggerHook_FallbackReportsExhaustedRetries(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	hook := LoggerHook{L: zap.New(core)}

	hook.OnFallback(context.Background(), "intent", NewRetryExhaustedError(errors.New("503"), 3, 2, false))
	hook.OnFallback(context.Background(), "intent", ErrNoBackend)

	entries := logs.FilterMessage("deterministic fallback").All()
	require.Len(t, entries, 2)
	assert.Equal(t, true, entries[0].ContextMap()["retries_exhausted"])
	assert.Equal(t, false, entries[1].ContextMap()["retries_exhausted"])
}

func TestTool_RequiredParams(t *testing.T) {
	tool := Tool{SchemaJSON: titleSchema}
	assert.Equal(t, []string{"title"}, tool.RequiredParams())
}

func TestExecutionPlan_ToolCalls(t *testing.T) {
	plan := ExecutionPlan{Steps: []PlanStep{
		{Kind: StepRespond, Message: "ok"},
		{Kind: StepToolCall, Tool: "create_work_item", Params: map[string]any{"title": "a"}},
	}}
	calls := plan.ToolCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "create_work_item", calls[0].Name)
	assert.Equal(t, "step-2", calls[0].ID)
	assert.True(t, plan.HasToolCalls())
	assert.False(t, plan.IsClarification())
	assert.True(t, ClarificationPlan("which one?").IsClarification())
}
