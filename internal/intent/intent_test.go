package intent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ChamsBouzaiene/assist/internal/assembler"
	"github.com/ChamsBouzaiene/assist/internal/engine"
	"github.com/ChamsBouzaiene/assist/internal/model"
)

// MockLLM returns a canned reply or error.
type MockLLM struct {
	Response string
	Err      error
	Calls    int
}

func (m *MockLLM) Chat(ctx context.Context, model string, msgs []engine.ChatMessage, opts engine.ChatOptions) (engine.LLMResponse, error) {
	m.Calls++
	if m.Err != nil {
		return engine.LLMResponse{}, m.Err
	}
	return engine.LLMResponse{Assistant: engine.ChatMessage{Role: engine.RoleAssistant, Content: m.Response}}, nil
}

func bundle(text string) *assembler.ContextBundle {
	return &assembler.ContextBundle{
		ProjectID: "p1",
		UserText:  text,
		OpenItems: []*model.WorkItem{{ID: "w-1", Title: "Implement login", Status: model.StatusOpen}},
	}
}

func noRetry() Option { return WithRetryPolicy(engine.RetryPolicy{}) }

func TestClassify_ModelPath(t *testing.T) {
	llm := &MockLLM{Response: `{"category":"feature_exploration","confidence":0.9,"reasoning":"thinking aloud","ambiguous":false}`}
	a := New(llm, "m", noRetry()).Classify(context.Background(), bundle("what about dark mode"))

	assert.Equal(t, FeatureExploration, a.Category)
	assert.False(t, a.NeedsClarification)
	assert.False(t, a.Fallback)
	assert.Equal(t, 1, llm.Calls)
}

func TestClassify_LowConfidenceForcesClarification(t *testing.T) {
	llm := &MockLLM{Response: `{"category":"ready_for_action","confidence":0.4,"reasoning":"unsure"}`}
	a := New(llm, "m", noRetry()).Classify(context.Background(), bundle("do the thing"))
	assert.Equal(t, ReadyForAction, a.Category)
	assert.True(t, a.NeedsClarification)

	llm = &MockLLM{Response: `{"category":"direct_action","confidence":0.95,"ambiguous":true,"questions":["Which item?"]}`}
	a = New(llm, "m", noRetry()).Classify(context.Background(), bundle("close it"))
	assert.True(t, a.NeedsClarification)
	assert.Equal(t, []string{"Which item?"}, a.Questions)
}

func TestClassify_FallsBack(t *testing.T) {
	tests := []struct {
		name string
		llm  engine.LLMClient
	}{
		{"no backend", nil},
		{"backend error", &MockLLM{Err: errors.New("connection refused")}},
		{"not json", &MockLLM{Response: "It is a direct action."}},
		{"unknown category", &MockLLM{Response: `{"category":"chitchat","confidence":0.9}`}},
		{"confidence out of range", &MockLLM{Response: `{"category":"direct_action","confidence":7}`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := New(tt.llm, "m", noRetry()).Classify(context.Background(), bundle("mark login task as done"))
			assert.True(t, a.Fallback)
			assert.Equal(t, DirectAction, a.Category)
			assert.False(t, a.NeedsClarification)
		})
	}
}

func TestCategory(t *testing.T) {
	for _, c := range Categories() {
		assert.True(t, c.Valid())
	}
	assert.False(t, Category("other").Valid())
	assert.True(t, DirectAction.Actionable())
	assert.False(t, SpecClarification.Actionable())
}
