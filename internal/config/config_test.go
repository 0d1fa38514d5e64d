package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "gemini", cfg.LLM.Provider)
	assert.Equal(t, "ollama", cfg.Embedding.Provider)
	assert.Equal(t, filepath.Join(Dir, "changes.db"), cfg.Store.DatabasePath)
	assert.Greater(t, cfg.Index.BatchSize, 0)
	assert.Greater(t, cfg.Review.HistoryDepth, 0)
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope", "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Embedding.OllamaModel, cfg.Embedding.OllamaModel)
}

func TestLoad_ParsesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := []byte("llm:\n  provider: anthropic\n  model: claude-sonnet-4-20250514\nstore:\n  database_path: /tmp/x.db\n")
	require.NoError(t, os.WriteFile(path, data, 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "anthropic", cfg.LLM.Provider)
	assert.Equal(t, "claude-sonnet-4-20250514", cfg.LLM.Model)
	assert.Equal(t, "/tmp/x.db", cfg.Store.DatabasePath)
	// Untouched sections keep defaults
	assert.Equal(t, "ollama", cfg.Embedding.Provider)
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm: [not a map"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, Dir, FileName)

	cfg := DefaultConfig()
	cfg.LLM.Model = "gemini-2.5-pro"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.5-pro", loaded.LLM.Model)
}

func TestEnvOverrides(t *testing.T) {
	t.Run("GEMINI_API_KEY sets key and fills embedding key", func(t *testing.T) {
		t.Setenv("GEMINI_API_KEY", "gem-key")

		cfg := &Config{}
		cfg.applyEnvOverrides()

		assert.Equal(t, "gem-key", cfg.LLM.APIKey)
		assert.Equal(t, "gemini", cfg.LLM.Provider)
		assert.Equal(t, "gem-key", cfg.Embedding.GenAIAPIKey)
	})

	t.Run("key infers provider when none configured", func(t *testing.T) {
		t.Setenv("GEMINI_API_KEY", "")
		t.Setenv("ANTHROPIC_API_KEY", "ant-key")

		cfg := &Config{}
		cfg.applyEnvOverrides()

		assert.Equal(t, "anthropic", cfg.LLM.Provider)
		assert.Equal(t, "ant-key", cfg.LLM.APIKey)
	})

	t.Run("configured provider keeps its own key source", func(t *testing.T) {
		t.Setenv("GEMINI_API_KEY", "")
		t.Setenv("ANTHROPIC_API_KEY", "ant-key")

		cfg := &Config{LLM: LLMConfig{Provider: "gemini", APIKey: "file-key"}}
		cfg.applyEnvOverrides()

		// An unrelated exported key must not flip the provider or
		// replace the credential.
		assert.Equal(t, "gemini", cfg.LLM.Provider)
		assert.Equal(t, "file-key", cfg.LLM.APIKey)
	})

	t.Run("SPROUT_LLM_PROVIDER takes only the matching key", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "oa-key")
		t.Setenv("GEMINI_API_KEY", "gem-key")
		t.Setenv("SPROUT_LLM_PROVIDER", "gemini")

		cfg := &Config{}
		cfg.applyEnvOverrides()

		assert.Equal(t, "gemini", cfg.LLM.Provider)
		assert.Equal(t, "gem-key", cfg.LLM.APIKey)
	})

	t.Run("no key for the chosen provider leaves credential empty", func(t *testing.T) {
		t.Setenv("GEMINI_API_KEY", "")
		t.Setenv("OPENAI_API_KEY", "oa-key")
		t.Setenv("SPROUT_LLM_PROVIDER", "gemini")

		cfg := &Config{}
		cfg.applyEnvOverrides()

		assert.Equal(t, "gemini", cfg.LLM.Provider)
		assert.Empty(t, cfg.LLM.APIKey)
	})

	t.Run("store and embedding overrides", func(t *testing.T) {
		t.Setenv("SPROUT_DB", "/tmp/custom.db")
		t.Setenv("SPROUT_OLLAMA_URL", "http://remote:11434")
		t.Setenv("SPROUT_EMBEDDING_PROVIDER", "genai")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "/tmp/custom.db", cfg.Store.DatabasePath)
		assert.Equal(t, "http://remote:11434", cfg.Embedding.OllamaEndpoint)
		assert.Equal(t, "genai", cfg.Embedding.Provider)
	})
}
