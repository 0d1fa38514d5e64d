// Package llm provides a provider-agnostic client for hosted language models.
// Supported providers: Google Gemini, Anthropic, and OpenAI-compatible APIs.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sprout/internal/config"
)

// ErrNoAPIKey indicates no credential was found in config, .env, or the
// environment.
var ErrNoAPIKey = errors.New("API key not configured")

// Client defines the interface for LLM providers.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// New creates a client for the configured provider.
func New(cfg config.LLMConfig) (Client, error) {
	timeout := 120 * time.Second
	if cfg.Timeout != "" {
		if d, err := time.ParseDuration(cfg.Timeout); err == nil {
			timeout = d
		}
	}

	switch cfg.Provider {
	case "gemini", "":
		return NewGeminiClient(GeminiConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: timeout,
		}), nil
	case "anthropic":
		return NewAnthropicClient(AnthropicConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: timeout,
		}), nil
	case "openai":
		return NewOpenAIClient(OpenAIConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: timeout,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s (use 'gemini', 'anthropic', or 'openai')", cfg.Provider)
	}
}
