package engine

// Phase names one stage of turn processing. Progress sinks receive each
// phase exactly once per turn.
type Phase string

const (
	PhaseContext    Phase = "context"
	PhaseIntent     Phase = "intent"
	PhasePlanning   Phase = "planning"
	PhaseValidation Phase = "validation"
	PhaseExecution  Phase = "execution"
	PhaseMemory     Phase = "memory"
)

// Phases lists every phase in pipeline order.
func Phases() []Phase {
	return []Phase{PhaseContext, PhaseIntent, PhasePlanning, PhaseValidation, PhaseExecution, PhaseMemory}
}
