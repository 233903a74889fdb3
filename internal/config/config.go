// Package config loads and validates arbiter configuration from a YAML file
// with environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all arbiter configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// LLM backend configuration
	LLM LLMConfig `yaml:"llm"`

	// HTTP server configuration
	Server ServerConfig `yaml:"server"`

	// Decision engine configuration
	Engine EngineConfig `yaml:"engine"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// LLMConfig configures the reasoning backend.
type LLMConfig struct {
	Provider string `yaml:"provider"` // anthropic, openai
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
	Timeout  string `yaml:"timeout"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr          string   `yaml:"addr"`
	CORSOrigins   []string `yaml:"cors_origins"`
	RequestBudget string   `yaml:"request_budget"`
}

// EngineConfig configures the bounded reasoning loop.
type EngineConfig struct {
	MaxRounds   int    `yaml:"max_rounds"`
	ToolTimeout string `yaml:"tool_timeout"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"` // debug, info, warn, error
	Format string `yaml:"format"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Name:    "AI Arbiter",
		Version: "1.0.0",

		LLM: LLMConfig{
			Provider: "anthropic",
			Model:    "claude-sonnet-4-20250514",
			Timeout:  "120s",
		},

		Server: ServerConfig{
			Addr:          ":8084",
			CORSOrigins:   []string{"*"},
			RequestBudget: "5m",
		},

		Engine: EngineConfig{
			MaxRounds:   8,
			ToolTimeout: "2m",
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return defaults if config file doesn't exist
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Override with environment variables
	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
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

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	// API key from environment (check in priority order)
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		c.LLM.APIKey = key
		c.LLM.Provider = "anthropic"
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" && c.LLM.APIKey == "" {
		c.LLM.APIKey = key
		c.LLM.Provider = "openai"
	}
	if key := os.Getenv("ARBITER_API_KEY"); key != "" {
		c.LLM.APIKey = key
	}

	if model := os.Getenv("ARBITER_MODEL"); model != "" {
		c.LLM.Model = model
	}
	if url := os.Getenv("ARBITER_BASE_URL"); url != "" {
		c.LLM.BaseURL = url
	}
	if addr := os.Getenv("ARBITER_ADDR"); addr != "" {
		c.Server.Addr = addr
	}
	if level := os.Getenv("ARBITER_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

// GetLLMTimeout returns the LLM timeout as a duration.
func (c *Config) GetLLMTimeout() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil {
		return 120 * time.Second
	}
	return d
}

// GetRequestBudget returns the per-arbitration wall clock budget.
func (c *Config) GetRequestBudget() time.Duration {
	d, err := time.ParseDuration(c.Server.RequestBudget)
	if err != nil {
		return 5 * time.Minute
	}
	return d
}

// GetToolTimeout returns the per-tool-call wait budget.
func (c *Config) GetToolTimeout() time.Duration {
	d, err := time.ParseDuration(c.Engine.ToolTimeout)
	if err != nil {
		return 2 * time.Minute
	}
	return d
}

// ValidProviders lists all supported LLM providers.
var ValidProviders = []string{"anthropic", "openai"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.LLM.APIKey == "" {
		return fmt.Errorf("LLM API key not configured (set ANTHROPIC_API_KEY, OPENAI_API_KEY, or ARBITER_API_KEY)")
	}

	validProvider := false
	for _, p := range ValidProviders {
		if c.LLM.Provider == p {
			validProvider = true
			break
		}
	}
	if !validProvider {
		return fmt.Errorf("invalid LLM provider: %s (valid: %v)", c.LLM.Provider, ValidProviders)
	}

	if c.Engine.MaxRounds <= 0 {
		return fmt.Errorf("engine max_rounds must be positive, got %d", c.Engine.MaxRounds)
	}

	return nil
}
