package llm

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
)

// ProviderConfig holds the resolved provider, credentials and model.
type ProviderConfig struct {
	Provider Provider
	APIKey   string
	Model    string // Optional model override
	BaseURL  string // Optional base URL override
	Timeout  time.Duration
}

// DetectProvider resolves a provider from environment variables.
// Priority: ANTHROPIC_API_KEY > OPENAI_API_KEY.
func DetectProvider() (*ProviderConfig, error) {
	providers := []struct {
		envVar   string
		provider Provider
	}{
		{"ANTHROPIC_API_KEY", ProviderAnthropic},
		{"OPENAI_API_KEY", ProviderOpenAI},
	}

	for _, p := range providers {
		if key := os.Getenv(p.envVar); key != "" {
			return &ProviderConfig{
				Provider: p.provider,
				APIKey:   key,
			}, nil
		}
	}

	return nil, fmt.Errorf("no API key found; set one of: ANTHROPIC_API_KEY, OPENAI_API_KEY")
}

// NewClient creates an LLM client from a provider config.
func NewClient(config *ProviderConfig, logger *zap.Logger) (Client, error) {
	switch config.Provider {
	case ProviderAnthropic:
		cfg := DefaultAnthropicConfig(config.APIKey)
		if config.Model != "" {
			cfg.Model = config.Model
		}
		if config.BaseURL != "" {
			cfg.BaseURL = config.BaseURL
		}
		if config.Timeout > 0 {
			cfg.Timeout = config.Timeout
		}
		return NewAnthropicClientWithConfig(cfg, logger), nil

	case ProviderOpenAI:
		cfg := DefaultOpenAIConfig(config.APIKey)
		if config.Model != "" {
			cfg.Model = config.Model
		}
		if config.BaseURL != "" {
			cfg.BaseURL = config.BaseURL
		}
		if config.Timeout > 0 {
			cfg.Timeout = config.Timeout
		}
		return NewOpenAIClientWithConfig(cfg, logger), nil

	default:
		return nil, fmt.Errorf("unknown provider: %s", config.Provider)
	}
}

// NewClientFromEnv creates an LLM client based on environment variables.
func NewClientFromEnv(logger *zap.Logger) (Client, error) {
	config, err := DetectProvider()
	if err != nil {
		return nil, err
	}
	return NewClient(config, logger)
}
