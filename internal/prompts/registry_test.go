package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistry_HasAssistantPrompts(t *testing.T) {
	reg := DefaultRegistry()
	for _, id := range []string{IntentID, InsightsID, ConflictID, RespondID, TitleID} {
		p, err := reg.Latest(id)
		require.NoError(t, err, id)
		assert.NotEmpty(t, p.Content, id)
	}
}

func TestLatest_NewestVersionWins(t *testing.T) {
	reg := NewPromptRegistry()
	reg.Register(&Prompt{ID: "x", Version: "1.10.0", Content: "ten"})
	reg.Register(&Prompt{ID: "x", Version: "1.9.0", Content: "nine"})
	reg.Register(&Prompt{ID: "x", Version: "1.10.0", Content: "ten, fixed"})

	p, err := reg.Latest("x")
	require.NoError(t, err)
	assert.Equal(t, "ten, fixed", p.Content)

	_, err = reg.Latest("missing")
	assert.Error(t, err)
	assert.Panics(t, func() { reg.MustLatest("missing") })
}

func TestPromptBuilder(t *testing.T) {
	b, err := NewPromptBuilder(DefaultRegistry(), InsightsID)
	require.NoError(t, err)

	_, err = b.Build()
	assert.ErrorContains(t, err, "{{categories}}")

	out, err := b.SetVariable("categories", "decisions, bugs").
		AddSection("transcript", "User: hello").
		AddSection("empty", "  ").
		Build()
	require.NoError(t, err)
	assert.Contains(t, out, "Known categories: decisions, bugs")
	assert.Contains(t, out, "<transcript>\nUser: hello\n</transcript>")
	assert.NotContains(t, out, "<empty>")
}
