package advisor

import (
	"fmt"
	"os"

	"claude-supervisor/internal/config"
)

// DefaultGeminiBaseURL is used when an AIConfig leaves BaseURL empty and
// selects the Gemini provider.
const DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// DefaultClaudeBaseURL is used when an AIConfig leaves BaseURL empty and
// selects the Claude provider.
const DefaultClaudeBaseURL = "https://api.anthropic.com"

// FromConfig builds a Client from an AIConfig, reading the API key from the
// environment variable the config names. It returns ErrMissingAPIKey if
// that variable is unset.
func FromConfig(cfg config.AIConfig) (Client, error) {
	apiKey := os.Getenv(cfg.APIKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingAPIKey, cfg.APIKeyEnv)
	}

	var provider Provider
	switch cfg.Provider {
	case "gemini":
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = DefaultGeminiBaseURL
		}
		provider = NewGeminiProvider(baseURL, apiKey, cfg.Model, cfg.MaxTokens)
	case "claude", "":
		provider = NewClaudeProvider(apiKey, cfg.Model, int64(cfg.MaxTokens))
	default:
		return nil, fmt.Errorf("unknown advisor provider: %s", cfg.Provider)
	}

	return NewClient(provider), nil
}
