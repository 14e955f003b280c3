package planner

import (
	"fmt"
	"strings"

	"github.com/ChamsBouzaiene/assist/internal/engine"
)

// ValidatorConfig holds the free-text rules applied to tool-call payloads.
type ValidatorConfig struct {
	MinTextLength int      `yaml:"min_text_length"`
	Denylist      []string `yaml:"denylist"`
}

// DefaultDenylist holds generic labels that are never acceptable as a title or note body.
var DefaultDenylist = []string{
	"untitled", "new task", "task", "todo", "to do", "new item", "item", "this", "that", "it",
	"something", "feature", "bug", "fix", "new feature", "add this", "add this as a task",
	"placeholder", "tbd", "n/a", "none", "work item", "new work item", "note", "new note",
}

func DefaultValidatorConfig() ValidatorConfig {
	return ValidatorConfig{MinTextLength: 8, Denylist: DefaultDenylist}
}

// freeTextParams are checked for length and placeholders.
var freeTextParams = []string{"title", "content"}

// RejectionError lists why a plan was replaced by a clarification.
type RejectionError struct {
	Problems []string
}

func (e *RejectionError) Error() string {
	return "plan rejected: " + strings.Join(e.Problems, "; ")
}

// Validator checks every tool-call step of a plan against the registry.
type Validator struct {
	minLen int
	deny   map[string]bool
}

func NewValidator(cfg ValidatorConfig) *Validator {
	v := &Validator{minLen: cfg.MinTextLength, deny: make(map[string]bool)}
	for _, d := range cfg.Denylist {
		v.deny[normalizeText(d)] = true
	}
	return v
}

// Validate returns plan unchanged when every tool-call step passes. If any
// step fails, the whole plan is replaced by one clarification step and the
// problems are returned as a *RejectionError.
func (v *Validator) Validate(plan engine.ExecutionPlan, reg engine.ToolRegistry) (engine.ExecutionPlan, error) {
	var problems []string
	for i, step := range plan.Steps {
		if step.Kind != engine.StepToolCall {
			continue
		}
		problems = append(problems, v.checkStep(i+1, step, reg)...)
	}
	if len(problems) == 0 {
		return plan, nil
	}

	q := fmt.Sprintf("I need a bit more detail before I can do that: %s. Could you describe it in your own words?",
		strings.Join(problems, "; "))
	out := engine.ClarificationPlan(q)
	out.Reason = "validation failed"
	return out, &RejectionError{Problems: problems}
}

func (v *Validator) checkStep(n int, step engine.PlanStep, reg engine.ToolRegistry) []string {
	tool, ok := reg.Lookup(step.Tool)
	if !ok {
		return []string{fmt.Sprintf("step %d uses unknown operation %q", n, step.Tool)}
	}

	var problems []string
	for _, p := range tool.RequiredParams() {
		val, present := step.Params[p]
		if s, isStr := val.(string); !present || val == nil || (isStr && strings.TrimSpace(s) == "") {
			problems = append(problems, fmt.Sprintf("the %s is missing", p))
		}
	}

	for _, p := range freeTextParams {
		s, ok := step.Params[p].(string)
		if !ok {
			continue
		}
		if msg := v.CheckText(p, s); msg != "" {
			problems = append(problems, msg)
		}
	}

	if len(problems) == 0 {
		if err := tool.ValidateArgs(step.Params); err != nil {
			problems = append(problems, fmt.Sprintf("step %d has invalid parameters (%v)", n, err))
		}
	}
	return problems
}

// CheckText returns a problem description when text is too short or a
// placeholder, or "" when it is acceptable.
func (v *Validator) CheckText(field, text string) string {
	norm := normalizeText(text)
	if v.deny[norm] {
		return fmt.Sprintf("the %s %q is too generic", field, strings.TrimSpace(text))
	}
	if len([]rune(strings.TrimSpace(text))) < v.minLen {
		return fmt.Sprintf("the %s %q is too short", field, strings.TrimSpace(text))
	}
	return ""
}

func normalizeText(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Trim(s, ` .,!?;:"'`)
	return strings.Join(strings.Fields(s), " ")
}
