package confirm

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChamsBouzaiene/assist/internal/engine"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		text string
		want Reply
	}{
		{"yes", Affirmative},
		{"Yes!", Affirmative},
		{"yes please", Affirmative},
		{"ok, go ahead", Affirmative},
		{"Sounds good, thanks", Affirmative},
		{"create them all", Affirmative},
		{"no", Negative},
		{"No thanks.", Negative},
		{"don't", Negative},
		{"never mind", Negative},
		{"not now", Negative},
		{"yes but change the title to Export CSV", Neutral},
		{"no, the second one should be high priority", Neutral},
		{"what about dark mode?", Neutral},
		{"", Neutral},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.text), tt.want.String())
		})
	}
	assert.True(t, IsAffirmative("yep"))
	assert.True(t, IsNegative("nope"))
}

func plan(title string) engine.ExecutionPlan {
	return engine.ExecutionPlan{
		Steps:                []engine.PlanStep{{Kind: engine.StepToolCall, Tool: "create_work_item", Params: map[string]any{"title": title}}},
		RequiresConfirmation: true,
	}
}

func TestStore_TakeIsOnce(t *testing.T) {
	s := NewStore()
	s.Set("p1", "s1", plan("Export invoices as CSV"))

	sug, ok := s.Peek("p1")
	require.True(t, ok)
	assert.Equal(t, []string{"Export invoices as CSV"}, sug.Titles())

	sug, ok = s.Take("p1")
	require.True(t, ok)
	assert.Equal(t, "s1", sug.SessionID)

	_, ok = s.Take("p1")
	assert.False(t, ok)
}

func TestStore_NewSuggestionOverwrites(t *testing.T) {
	s := NewStore()
	s.Set("p1", "s1", plan("first"))
	s.Set("p1", "s1", plan("second"))
	s.Set("p2", "s9", plan("other project"))

	sug, ok := s.Take("p1")
	require.True(t, ok)
	assert.Equal(t, []string{"second"}, sug.Titles())

	s.Clear("p2")
	_, ok = s.Peek("p2")
	assert.False(t, ok)
}

func TestStore_ConcurrentTakeExecutesOnce(t *testing.T) {
	s := NewStore()
	for p := 0; p < 4; p++ {
		s.Set(fmt.Sprintf("p%d", p), "s", plan("item"))
	}

	var taken atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, ok := s.Take(fmt.Sprintf("p%d", i%4)); ok {
				taken.Add(1)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, int32(4), taken.Load())
}
