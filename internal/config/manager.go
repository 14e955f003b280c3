// Package config loads the assistant's persistent settings from config.yaml
// in the user config directory, with .env and environment overrides.
package config

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ChamsBouzaiene/assist/internal/embedding"
	"github.com/ChamsBouzaiene/assist/internal/pipeline"
	"github.com/ChamsBouzaiene/assist/internal/providers"
)

const fileName = "config.yaml"

// Config holds everything the CLI needs to build an orchestrator.
type Config struct {
	LLM       providers.Settings `yaml:"llm"`
	Embedding embedding.Settings `yaml:"embedding"`
	// DataDir holds the sqlite database and its keyword index. Empty means
	// the config directory itself.
	DataDir  string          `yaml:"data_dir,omitempty"`
	Pipeline pipeline.Config `yaml:"pipeline"`
	Logging  LoggingConfig   `yaml:"logging"`
}

type LoggingConfig struct {
	Level       string `yaml:"level"` // debug, info, warn, error
	Development bool   `yaml:"development"`
}

// DefaultConfig returns a config that works offline: hashing embeddings and
// no generation backend key.
func DefaultConfig() *Config {
	return &Config{
		LLM:       providers.Settings{Provider: "openai"},
		Embedding: embedding.Settings{Provider: "hash", Dimension: 512},
		Pipeline:  pipeline.DefaultConfig(),
		Logging:   LoggingConfig{Level: "info"},
	}
}

// Manager handles loading and saving the configuration.
type Manager struct {
	configDir string
}

// NewManager creates a manager rooted at <user config dir>/assist.
func NewManager() (*Manager, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get user config dir: %w", err)
	}
	return &Manager{configDir: filepath.Join(configDir, "assist")}, nil
}

// NewManagerAt creates a manager rooted at dir.
func NewManagerAt(dir string) *Manager {
	return &Manager{configDir: dir}
}

func (m *Manager) Dir() string { return m.configDir }

// GetConfigPath returns the absolute path to the config.yaml file.
func (m *Manager) GetConfigPath() string {
	return filepath.Join(m.configDir, fileName)
}

// DatabasePath is where the record and session store lives.
func (m *Manager) DatabasePath(cfg *Config) string {
	dir := cfg.DataDir
	if dir == "" {
		dir = m.configDir
	}
	return filepath.Join(dir, "assist.db")
}

// Load reads config.yaml over the defaults, then applies environment
// overrides. A missing file yields the defaults.
func (m *Manager) Load() (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(m.GetConfigPath())
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config yaml: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to disk with restricted permissions (0600).
func (m *Manager) Save(cfg *Config) error {
	if err := os.MkdirAll(m.configDir, 0o755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(m.GetConfigPath(), data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Exists checks if the configuration file has been created.
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.GetConfigPath())
	return err == nil
}

// LoadDotEnv loads .env files into the process environment without
// overriding variables that are already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

// applyEnvOverrides gives ASSIST_* variables precedence over the file, then
// fills what is still missing from the provider-specific variables.
func (c *Config) applyEnvOverrides() {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&c.LLM.Provider, "ASSIST_LLM_PROVIDER")
	set(&c.LLM.Model, "ASSIST_LLM_MODEL")
	set(&c.LLM.APIKey, "ASSIST_LLM_API_KEY")
	set(&c.LLM.BaseURL, "ASSIST_LLM_BASE_URL")
	set(&c.Embedding.Provider, "ASSIST_EMBEDDING_PROVIDER")
	set(&c.Embedding.Model, "ASSIST_EMBEDDING_MODEL")
	set(&c.Embedding.APIKey, "ASSIST_EMBEDDING_API_KEY")
	set(&c.DataDir, "ASSIST_DATA_DIR")
	set(&c.Logging.Level, "ASSIST_LOG_LEVEL")

	if os.Getenv("ASSIST_LLM_PROVIDER") == "" {
		set(&c.LLM.Provider, "LLM_PROVIDER")
	}
	env := providers.SettingsFromEnvFor(c.LLM.Provider)
	if c.LLM.APIKey == "" {
		c.LLM.APIKey = env.APIKey
	}
	if c.LLM.Model == "" {
		c.LLM.Model = env.Model
	}
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = env.BaseURL
	}

	if c.Embedding.APIKey == "" {
		switch strings.ToLower(c.Embedding.Provider) {
		case "openai":
			c.Embedding.APIKey = os.Getenv("OPENAI_API_KEY")
		case "gemini", "genai":
			c.Embedding.APIKey = os.Getenv("GEMINI_API_KEY")
		}
	}
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	var problems []string
	if c.LLM.Provider != "" && !slices.Contains(providers.SupportedProviders(), c.LLM.Provider) {
		problems = append(problems, fmt.Sprintf("llm.provider %q is not supported", c.LLM.Provider))
	}
	switch strings.ToLower(c.Embedding.Provider) {
	case "", "hash", "openai", "gemini", "genai":
	default:
		problems = append(problems, fmt.Sprintf("embedding.provider %q is not supported", c.Embedding.Provider))
	}

	p := c.Pipeline
	unit := map[string]float64{
		"context.work_item_threshold":          p.Assembler.WorkItemThreshold,
		"context.note_threshold":               p.Assembler.NoteThreshold,
		"intent.confidence_threshold":          p.Intent.ConfidenceThreshold,
		"consolidation.relevance_threshold":    p.Memory.RelevanceThreshold,
		"consolidation.significance_threshold": p.Memory.SignificanceThreshold,
		"consolidation.merge_threshold":        p.Memory.MergeThreshold,
		"consolidation.create_threshold":       p.Memory.CreateThreshold,
	}
	for _, name := range slices.Sorted(maps.Keys(unit)) {
		if v := unit[name]; v < 0 || v > 1 {
			problems = append(problems, fmt.Sprintf("pipeline.%s must be within [0, 1], got %g", name, v))
		}
	}
	if p.Memory.CreateThreshold > p.Memory.MergeThreshold {
		problems = append(problems, "pipeline.consolidation.create_threshold must not exceed merge_threshold")
	}
	if p.Assembler.HistoryChars <= 0 {
		problems = append(problems, "pipeline.context.history_chars must be positive")
	}
	if p.Assembler.WorkItemLimit <= 0 || p.Assembler.NoteLimit <= 0 {
		problems = append(problems, "pipeline.context limits must be positive")
	}
	if p.Memory.MinTurns < 1 {
		problems = append(problems, "pipeline.consolidation.min_turns must be at least 1")
	}
	if p.Validator.MinTextLength < 1 {
		problems = append(problems, "pipeline.validator.min_text_length must be at least 1")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}
