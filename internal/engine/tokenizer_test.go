package engine

import (
	"testing"
)

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{name: "empty", text: "", want: 0},
		{name: "short word", text: "hello", want: 1},
		{name: "sentence", text: "hello world this is a test", want: 6},
		{name: "title", text: "Implement login page", want: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// (len(runes) / 4) + (whitespace / 6), minimum 1 for non-empty text
			if got := EstimateTokens(tt.text); got != tt.want {
				t.Errorf("EstimateTokens() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCountTokensForMessages(t *testing.T) {
	tokenizer := DefaultTokenizer{}

	got, err := CountTokensForMessages(tokenizer, []ChatMessage{
		{Role: RoleSystem, Content: "Classify the turn."},
		{Role: RoleUser, Content: "hello"},
	}, "test-model")
	if err != nil {
		t.Fatalf("CountTokensForMessages() error = %v", err)
	}
	// Two messages carry at least 4 tokens of overhead each.
	if got < 10 {
		t.Errorf("CountTokensForMessages() = %v, want >= 10", got)
	}
}

func TestGetTokenizerForModel_NonOpenAIUsesEstimator(t *testing.T) {
	for _, model := range []string{"claude-3-5-sonnet", "llama-3", "kimi-k2"} {
		got := GetTokenizerForModel(model)
		if _, ok := got.(DefaultTokenizer); !ok {
			t.Errorf("GetTokenizerForModel(%q) = %T, want DefaultTokenizer", model, got)
		}
	}
}
