// Package embedding turns text into fixed-length vectors and compares them.
package embedding

import (
	"context"
	"fmt"
	"strings"
)

// Embedder maps text to a fixed-length vector. Identical input must yield an
// identical vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// Settings selects an embedding backend.
type Settings struct {
	Provider  string `yaml:"provider"` // "openai" | "gemini" | "hash"
	Model     string `yaml:"model"`
	APIKey    string `yaml:"api_key"`
	BaseURL   string `yaml:"base_url"`
	Dimension int    `yaml:"dimension"`
}

// NewEmbedder builds the Embedder named by s.Provider.
func NewEmbedder(ctx context.Context, s Settings) (Embedder, error) {
	switch strings.ToLower(s.Provider) {
	case "", "hash":
		return NewHashEmbedder(s.Dimension), nil
	case "openai":
		return NewOpenAIEmbedder(s.APIKey, s.Model, s.BaseURL, s.Dimension)
	case "gemini", "genai":
		return NewGenAIEmbedder(ctx, s.APIKey, s.Model)
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (supported: hash, openai, gemini)", s.Provider)
	}
}
