// Package config loads and persists sprout configuration.
// Configuration lives in .sprout/config.yaml inside the repository; environment
// variables (and a .env file, when present) override file values.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Dir is the per-repository directory sprout keeps its state in.
const Dir = ".sprout"

// FileName is the config file name inside Dir.
const FileName = "config.yaml"

// Config holds all sprout configuration.
type Config struct {
	// LLM configuration for text generation
	LLM LLMConfig `yaml:"llm"`

	// Embedding engine configuration
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Change store configuration
	Store StoreConfig `yaml:"store"`

	// Indexing behavior
	Index IndexConfig `yaml:"index"`

	// Reviewer suggestion tuning
	Review ReviewConfig `yaml:"review"`
}

// LLMConfig configures the generation client.
type LLMConfig struct {
	Provider string `yaml:"provider"` // gemini, anthropic, openai
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
	Timeout  string `yaml:"timeout"`
}

// EmbeddingConfig configures the embedding engine.
type EmbeddingConfig struct {
	Provider string `yaml:"provider"` // ollama, genai

	OllamaEndpoint string `yaml:"ollama_endpoint"`
	OllamaModel    string `yaml:"ollama_model"`

	GenAIAPIKey string `yaml:"genai_api_key"`
	GenAIModel  string `yaml:"genai_model"`
}

// StoreConfig configures the sqlite change store.
type StoreConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// IndexConfig configures history indexing.
type IndexConfig struct {
	// MaxCommits bounds how far back `sprout index` walks by default.
	MaxCommits int `yaml:"max_commits"`

	// BatchSize is the number of documents embedded per batch.
	BatchSize int `yaml:"batch_size"`

	// Parallelism bounds concurrent embedding batches.
	Parallelism int `yaml:"parallelism"`
}

// ReviewConfig tunes reviewer scoring.
type ReviewConfig struct {
	// HistoryDepth is how many commits per file are considered.
	HistoryDepth int `yaml:"history_depth"`

	// RecencyHalfLifeDays controls how quickly old touches decay.
	RecencyHalfLifeDays int `yaml:"recency_half_life_days"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider: "gemini",
			Model:    "gemini-2.5-flash",
			BaseURL:  "https://generativelanguage.googleapis.com/v1beta",
			Timeout:  "120s",
		},
		Embedding: EmbeddingConfig{
			Provider:       "ollama",
			OllamaEndpoint: "http://localhost:11434",
			OllamaModel:    "embeddinggemma",
			GenAIModel:     "gemini-embedding-001",
		},
		Store: StoreConfig{
			DatabasePath: filepath.Join(Dir, "changes.db"),
		},
		Index: IndexConfig{
			MaxCommits:  500,
			BatchSize:   32,
			Parallelism: 4,
		},
		Review: ReviewConfig{
			HistoryDepth:        50,
			RecencyHalfLifeDays: 30,
		},
	}
}

// Load loads configuration from a YAML file, falling back to defaults when the
// file does not exist. A .env file in the working directory (the credential
// file holding the API key) is loaded first so its variables participate in
// the environment overrides.
func Load(path string) (*Config, error) {
	// Missing .env is fine; it is an optional credential file.
	_ = godotenv.Load()

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save saves configuration to a YAML file, creating parent directories.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// llmKeyEnv maps each provider to the environment variable holding its key.
var llmKeyEnv = map[string]string{
	"gemini":    "GEMINI_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
	"openai":    "OPENAI_API_KEY",
}

// applyEnvOverrides applies environment variable overrides. The provider is
// resolved first and only that provider's key is taken, so an unrelated
// exported key cannot hijack either field.
func (c *Config) applyEnvOverrides() {
	if provider := os.Getenv("SPROUT_LLM_PROVIDER"); provider != "" {
		c.LLM.Provider = provider
	}
	if c.LLM.Provider == "" {
		// Nothing configured anywhere; infer from whichever key is exported.
		for _, p := range []string{"gemini", "anthropic", "openai"} {
			if os.Getenv(llmKeyEnv[p]) != "" {
				c.LLM.Provider = p
				break
			}
		}
	}
	if env := llmKeyEnv[c.LLM.Provider]; env != "" {
		if key := os.Getenv(env); key != "" {
			c.LLM.APIKey = key
		}
	}

	// The embedding credential is independent of the LLM provider choice.
	if key := os.Getenv("GEMINI_API_KEY"); key != "" && c.Embedding.GenAIAPIKey == "" {
		c.Embedding.GenAIAPIKey = key
	}
	if model := os.Getenv("SPROUT_LLM_MODEL"); model != "" {
		c.LLM.Model = model
	}
	if provider := os.Getenv("SPROUT_EMBEDDING_PROVIDER"); provider != "" {
		c.Embedding.Provider = provider
	}
	if url := os.Getenv("SPROUT_OLLAMA_URL"); url != "" {
		c.Embedding.OllamaEndpoint = url
	}
	if path := os.Getenv("SPROUT_DB"); path != "" {
		c.Store.DatabasePath = path
	}
}

// PathIn returns the config file path for a repository root.
func PathIn(repoRoot string) string {
	return filepath.Join(repoRoot, Dir, FileName)
}
