// Package planner turns a classified turn into an ExecutionPlan and checks
// the plan before anything runs.
package planner

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ChamsBouzaiene/assist/internal/assembler"
	"github.com/ChamsBouzaiene/assist/internal/engine"
	"github.com/ChamsBouzaiene/assist/internal/intent"
	"github.com/ChamsBouzaiene/assist/internal/model"
)

const (
	noReferentQuestion = "Which idea should I turn into a task? I couldn't find an earlier message describing it. Could you say what the task should be in your own words?"
	noTargetQuestion   = "I couldn't tell which work item you mean. Could you give its title or id?"
	noActionQuestion   = "What would you like to do with it? For example: \"mark <title> as done\" or \"delete <title>\"."
	genericQuestion    = "Could you tell me a bit more about what you'd like to do?"
)

// Generator builds plans. It is deterministic and makes no external calls.
type Generator struct {
	logger *zap.Logger
}

type Option func(*Generator)

func WithLogger(l *zap.Logger) Option {
	return func(g *Generator) { g.logger = l }
}

func NewGenerator(opts ...Option) *Generator {
	g := &Generator{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate returns the plan for one analysed turn.
func (g *Generator) Generate(a intent.Analysis, b *assembler.ContextBundle) engine.ExecutionPlan {
	var plan engine.ExecutionPlan
	switch {
	case a.NeedsClarification:
		plan = clarification(a)
	case a.Category == intent.ReadyForAction:
		plan = g.creationPlan(b)
	case a.Category == intent.DirectAction:
		plan = g.directActionPlan(b)
	default:
		plan = engine.RespondPlan("")
		plan.Reason = string(a.Category)
	}
	g.logger.Debug("plan generated", zap.String("category", string(a.Category)), zap.String("plan", plan.FormatForLog()))
	return plan
}

func clarification(a intent.Analysis) engine.ExecutionPlan {
	var qs []string
	for _, q := range a.Questions {
		if q = strings.TrimSpace(q); q != "" {
			qs = append(qs, q)
		}
	}
	if len(qs) == 0 {
		return engine.ClarificationPlan(genericQuestion)
	}
	return engine.ClarificationPlan(strings.Join(qs, "\n"))
}

func (g *Generator) creationPlan(b *assembler.ContextBundle) engine.ExecutionPlan {
	source, ok := CreationSource(b.UserText, b.RecentTurns)
	if !ok {
		plan := engine.ClarificationPlan(noReferentQuestion)
		plan.Reason = "no referent"
		return plan
	}

	var steps []engine.PlanStep
	for _, item := range SplitItems(source) {
		title, desc := TitleAndDescription(item)
		params := map[string]any{"title": title}
		if desc != "" {
			params["description"] = desc
		}
		steps = append(steps, engine.PlanStep{Kind: engine.StepToolCall, Tool: "create_work_item", Params: params})
	}
	return engine.ExecutionPlan{
		Steps:                steps,
		RequiresConfirmation: true,
		Reason:               fmt.Sprintf("create %d work item(s)", len(steps)),
	}
}

func (g *Generator) directActionPlan(b *assembler.ContextBundle) engine.ExecutionPlan {
	req, ok := intent.DetectAction(b.UserText)
	if !ok {
		return engine.ClarificationPlan(noActionQuestion)
	}

	similar := make([]scoredItem, 0, len(b.WorkItems))
	for _, s := range b.WorkItems {
		similar = append(similar, scoredItem{item: s.Item, score: s.Score})
	}
	target, competing := ResolveTarget(b.UserText, b.OpenItems, similar)
	if target == nil {
		if len(competing) > 0 {
			return engine.ClarificationPlan(ambiguityQuestion(competing))
		}
		return engine.ClarificationPlan(noTargetQuestion)
	}

	step := engine.PlanStep{Kind: engine.StepToolCall}
	switch req.Kind {
	case intent.ActionDelete:
		step.Tool = "delete_work_item"
		step.Params = map[string]any{"id": target.ID}
	default:
		step.Tool = "update_work_item_status"
		step.Params = map[string]any{"id": target.ID, "status": string(req.Status)}
	}
	return engine.ExecutionPlan{
		Steps:  []engine.PlanStep{step},
		Reason: fmt.Sprintf("%s on %q", step.Tool, target.Title),
	}
}

func ambiguityQuestion(items []*model.WorkItem) string {
	var sb strings.Builder
	sb.WriteString("Which work item do you mean?")
	for _, it := range items {
		fmt.Fprintf(&sb, "\n- %s (%s)", it.Title, it.ID)
	}
	return sb.String()
}
