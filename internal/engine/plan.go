package engine

import (
	"fmt"
	"strings"
)

// StepKind distinguishes side-effecting steps from plain replies.
type StepKind string

const (
	StepToolCall StepKind = "tool_call"
	StepRespond  StepKind = "respond"
)

// PlanStep is one ordered unit of an ExecutionPlan.
type PlanStep struct {
	Kind      StepKind       `json:"kind"`
	Tool      string         `json:"tool,omitempty"`
	Params    map[string]any `json:"params,omitempty"`
	DependsOn []int          `json:"depends_on,omitempty"`
	// Message is the reply text for respond steps.
	Message string `json:"message,omitempty"`
	// Clarification marks a respond step that asks the user for more detail.
	Clarification bool `json:"clarification,omitempty"`
}

// ExecutionPlan is the ordered list of steps produced for one turn.
type ExecutionPlan struct {
	Steps                []PlanStep `json:"steps"`
	RequiresConfirmation bool       `json:"requires_confirmation"`
	Reason               string     `json:"reason,omitempty"`
}

// RespondPlan returns a plan holding a single reply step.
func RespondPlan(message string) ExecutionPlan {
	return ExecutionPlan{Steps: []PlanStep{{Kind: StepRespond, Message: message}}}
}

// ClarificationPlan returns a plan holding a single clarification step.
func ClarificationPlan(question string) ExecutionPlan {
	return ExecutionPlan{Steps: []PlanStep{{Kind: StepRespond, Message: question, Clarification: true}}}
}

// ToolCalls returns the tool-call steps as executable calls, in order.
func (p ExecutionPlan) ToolCalls() []ToolCall {
	var calls []ToolCall
	for i, s := range p.Steps {
		if s.Kind != StepToolCall {
			continue
		}
		calls = append(calls, ToolCall{
			ID:   fmt.Sprintf("step-%d", i+1),
			Name: s.Tool,
			Args: s.Params,
		})
	}
	return calls
}

// HasToolCalls reports whether any step has side effects.
func (p ExecutionPlan) HasToolCalls() bool {
	for _, s := range p.Steps {
		if s.Kind == StepToolCall {
			return true
		}
	}
	return false
}

// IsClarification reports whether the plan is a lone clarification step.
func (p ExecutionPlan) IsClarification() bool {
	return len(p.Steps) == 1 && p.Steps[0].Clarification
}

// FormatForLog returns a compact single-line rendering of the plan.
func (p ExecutionPlan) FormatForLog() string {
	var sb strings.Builder
	for i, s := range p.Steps {
		if i > 0 {
			sb.WriteString(" | ")
		}
		switch s.Kind {
		case StepToolCall:
			sb.WriteString(fmt.Sprintf("%d. %s(%v)", i+1, s.Tool, s.Params))
		default:
			msg := s.Message
			if len(msg) > 50 {
				msg = msg[:47] + "..."
			}
			sb.WriteString(fmt.Sprintf("%d. respond %q", i+1, msg))
		}
	}
	if p.RequiresConfirmation {
		sb.WriteString(" [confirm]")
	}
	return sb.String()
}
