package pipeline

import (
	"context"

	"github.com/ChamsBouzaiene/assist/internal/engine"
)

// tracker emits each phase once, in pipeline order. Phases a turn never
// reaches are reported as skipped.
type tracker struct {
	ctx   context.Context
	hooks engine.Hooks
	next  int
}

func newTracker(ctx context.Context, hooks engine.Hooks) *tracker {
	return &tracker{ctx: ctx, hooks: hooks}
}

func (t *tracker) advance(phase engine.Phase, status string) {
	phases := engine.Phases()
	for t.next < len(phases) {
		p := phases[t.next]
		t.next++
		if p == phase {
			t.hooks.OnPhase(t.ctx, p, status)
			return
		}
		t.hooks.OnPhase(t.ctx, p, "skipped")
	}
}

func (t *tracker) finish() {
	phases := engine.Phases()
	for ; t.next < len(phases); t.next++ {
		t.hooks.OnPhase(t.ctx, phases[t.next], "skipped")
	}
}
