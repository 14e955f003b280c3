// Package engine provides the provider-agnostic building blocks shared by the
// turn pipeline: chat types, tool registry and executor, retries and hooks.
// This file contains token counting interfaces and implementations.

package engine

import (
	"fmt"
	"strings"
	"sync"

	tiktoken "github.com/pkoukk/tiktoken-go"
)

// Tokenizer provides token counting for text.
type Tokenizer interface {
	CountTokens(text string, model string) (int, error)
}

// EstimateTokens provides a rough token count estimation.
// Uses a simple heuristic: ~4 characters per token for English.
func EstimateTokens(text string) int {
	if len(text) == 0 {
		return 0
	}

	charCount := len([]rune(text))
	whitespaceCount := strings.Count(text, " ") + strings.Count(text, "\n") + strings.Count(text, "\t")

	estimated := (charCount / 4) + (whitespaceCount / 6)
	if estimated < 1 {
		return 1
	}
	return estimated
}

// DefaultTokenizer uses estimation when no encoding is available.
type DefaultTokenizer struct{}

// CountTokens implements Tokenizer using estimation.
func (t DefaultTokenizer) CountTokens(text string, model string) (int, error) {
	return EstimateTokens(text), nil
}

// TikTokenTokenizer counts with a BPE encoding.
type TikTokenTokenizer struct {
	enc *tiktoken.Tiktoken
	mu  sync.Mutex
}

// CountTokens implements Tokenizer.
func (t *TikTokenTokenizer) CountTokens(text string, model string) (int, error) {
	if text == "" {
		return 0, nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.enc.Encode(text, nil, nil)), nil
}

var (
	tiktokenOnce sync.Once
	tiktokenTok  *TikTokenTokenizer
)

// loadTikToken returns nil when the encoding cannot be loaded (offline, no BPE cache).
func loadTikToken() *TikTokenTokenizer {
	tiktokenOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return
		}
		tiktokenTok = &TikTokenTokenizer{enc: enc}
	})
	return tiktokenTok
}

// CountTokensForMessages counts tokens for a slice of messages,
// including about 4 tokens of formatting overhead per message.
func CountTokensForMessages(tokenizer Tokenizer, messages []ChatMessage, model string) (int, error) {
	total := 0
	for _, msg := range messages {
		roleTokens, err := tokenizer.CountTokens(string(msg.Role), model)
		if err != nil {
			return 0, fmt.Errorf("failed to count role tokens: %w", err)
		}
		contentTokens, err := tokenizer.CountTokens(msg.Content, model)
		if err != nil {
			return 0, fmt.Errorf("failed to count content tokens: %w", err)
		}
		total += roleTokens + contentTokens + 4
	}
	return total, nil
}

// GetTokenizerForModel returns tiktoken for OpenAI models when the encoding
// is available and the estimator otherwise.
func GetTokenizerForModel(model string) Tokenizer {
	if strings.HasPrefix(model, "gpt-") || strings.HasPrefix(model, "o1") || strings.HasPrefix(model, "o3") {
		if tok := loadTikToken(); tok != nil {
			return tok
		}
	}
	return DefaultTokenizer{}
}
