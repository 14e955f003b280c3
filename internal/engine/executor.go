package engine

import (
	"context"
	"errors"
	"fmt"
)

// ToolCall is one requested tool invocation.
type ToolCall struct {
	ID   string
	Name string
	Args map[string]any
}

// ExecuteTool validates and runs a single call. It never returns an error:
// every failure is reported through the ToolResult.
func ExecuteTool(ctx context.Context, call ToolCall, reg ToolRegistry) ToolResult {
	t, ok := reg[call.Name]
	if !ok {
		return ToolResult{
			Tool:    call.Name,
			Message: fmt.Sprintf("tool not found: %s (available tools: %v)", call.Name, reg.Names()),
		}
	}

	if err := t.ValidateArgs(call.Args); err != nil {
		var verr *ToolValidationError
		if errors.As(err, &verr) {
			return ToolResult{Tool: call.Name, Message: verr.Error()}
		}
		return ToolResult{Tool: call.Name, Message: fmt.Sprintf("validation failed for tool %s: %v", call.Name, err)}
	}

	res, err := t.Fn(ctx, call.Args)
	if err != nil {
		return ToolResult{Tool: call.Name, Message: err.Error(), Version: t.GetVersion()}
	}
	res.Tool = call.Name
	res.Version = t.GetVersion()
	return res
}

// ExecuteSequential runs calls in order and stops at the first failure.
// Results of steps that already ran are returned as-is; nothing is rolled back.
func ExecuteSequential(ctx context.Context, calls []ToolCall, reg ToolRegistry, hooks Hooks) []ToolResult {
	results := make([]ToolResult, 0, len(calls))
	for _, c := range calls {
		if err := ctx.Err(); err != nil {
			results = append(results, ToolResult{Tool: c.Name, Message: fmt.Sprintf("not executed: %v", err)})
			break
		}

		hooks.OnToolCall(ctx, c)
		res := ExecuteTool(ctx, c, reg)
		hooks.OnToolResult(ctx, c, res)

		results = append(results, res)
		if !res.Success {
			break
		}
	}
	return results
}
