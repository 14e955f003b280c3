package providers

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/ChamsBouzaiene/assist/internal/engine"
)

// Settings selects and configures a generation backend.
type Settings struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	APIKey   string `yaml:"api_key"`
	BaseURL  string `yaml:"base_url"`
}

// preset describes an OpenAI-compatible provider.
type preset struct {
	keyEnv   string
	modelEnv string
	model    string
	baseURL  string
	// keyOptional providers run locally and accept any key.
	keyOptional bool
}

var presets = map[string]preset{
	"openai":   {keyEnv: "OPENAI_API_KEY", modelEnv: "OPENAI_MODEL", model: "gpt-4o-mini"},
	"kimi":     {keyEnv: "KIMI_API_KEY", modelEnv: "KIMI_MODEL", model: "kimi-k2-250711", baseURL: "https://ark.ap-southeast.bytepluses.com/api/v3"},
	"gemini":   {keyEnv: "GEMINI_API_KEY", modelEnv: "GEMINI_MODEL", model: "gemini-1.5-flash", baseURL: "https://generativelanguage.googleapis.com/v1beta/openai"},
	"deepseek": {keyEnv: "DEEPSEEK_API_KEY", modelEnv: "DEEPSEEK_MODEL", model: "deepseek-chat", baseURL: "https://api.deepseek.com/v1"},
	"groq":     {keyEnv: "GROQ_API_KEY", modelEnv: "GROQ_MODEL", model: "llama-3.1-70b-versatile", baseURL: "https://api.groq.com/openai/v1"},
	"ollama":   {keyEnv: "OLLAMA_API_KEY", modelEnv: "OLLAMA_MODEL", model: "llama3.1", baseURL: "http://localhost:11434/v1", keyOptional: true},
	"lmstudio": {keyEnv: "LMSTUDIO_API_KEY", modelEnv: "LMSTUDIO_MODEL", model: "local-model", baseURL: "http://localhost:1234/v1", keyOptional: true},
}

// SupportedProviders lists every provider name NewLLMClient accepts.
func SupportedProviders() []string {
	names := []string{"anthropic"}
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SettingsFromEnv reads LLM_PROVIDER and the provider-specific variables.
func SettingsFromEnv() Settings {
	provider := os.Getenv("LLM_PROVIDER")
	if provider == "" {
		provider = "openai"
	}
	return SettingsFromEnvFor(provider)
}

// SettingsFromEnvFor reads the key, model and base URL variables of provider.
func SettingsFromEnvFor(provider string) Settings {
	s := Settings{Provider: provider}
	if provider == "anthropic" {
		s.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		s.Model = os.Getenv("ANTHROPIC_MODEL")
		return s
	}
	if p, ok := presets[provider]; ok {
		s.APIKey = os.Getenv(p.keyEnv)
		s.Model = os.Getenv(p.modelEnv)
		s.BaseURL = os.Getenv(strings.ToUpper(provider) + "_BASE_URL")
	}
	return s
}

// NewLLMClient creates an engine.LLMClient and returns the model name it should be called with.
func NewLLMClient(s Settings) (engine.LLMClient, string, error) {
	if s.Provider == "anthropic" {
		model := s.Model
		if model == "" {
			model = "claude-3-5-haiku-latest"
		}
		client, err := NewAnthropicClient(s.APIKey, model)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create Anthropic client: %w", err)
		}
		return client, model, nil
	}

	p, ok := presets[s.Provider]
	if !ok {
		return nil, "", fmt.Errorf("unknown LLM provider: %s (supported: %s)", s.Provider, strings.Join(SupportedProviders(), ", "))
	}

	model := s.Model
	if model == "" {
		model = p.model
	}
	baseURL := s.BaseURL
	if baseURL == "" {
		baseURL = p.baseURL
	}
	apiKey := s.APIKey
	if apiKey == "" {
		if !p.keyOptional {
			return nil, "", fmt.Errorf("%s not set", p.keyEnv)
		}
		apiKey = s.Provider
	}

	client, err := NewOpenAIClient(apiKey, model, baseURL)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create %s client: %w", s.Provider, err)
	}
	return client, model, nil
}

// NewLLMClientFromEnv creates an engine.LLMClient based on environment variables.
func NewLLMClientFromEnv() (engine.LLMClient, string, error) {
	return NewLLMClient(SettingsFromEnv())
}
