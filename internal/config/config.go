package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all toolsmith configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// LLM configuration
	LLM LLMConfig `yaml:"llm"`

	// Generation strategies and the iteration loop
	Generation ToolGenerationConfig `yaml:"generation"`

	// Execution adapter
	Execution ExecutionConfig `yaml:"execution"`

	// Iteration journal
	Journal JournalConfig `yaml:"journal"`

	// MCP server
	MCP MCPConfig `yaml:"mcp"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// JournalConfig configures the SQLite iteration journal.
// An empty DatabasePath disables journaling.
type JournalConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// MCPConfig configures the MCP stdio server.
type MCPConfig struct {
	ServerName        string `yaml:"server_name"`
	MaxConcurrentRuns int    `yaml:"max_concurrent_runs"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "toolsmith",
		Version: "0.3.0",

		LLM:        DefaultLLMConfig(),
		Generation: DefaultToolGenerationConfig(),
		Execution:  DefaultExecutionConfig(),

		MCP: MCPConfig{
			ServerName:        "toolsmith",
			MaxConcurrentRuns: 2,
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML file.
// A missing file yields the defaults; environment overrides apply either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

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
	// GEMINI_API_KEY wins over GOOGLE_API_KEY, matching the genai client.
	if key := os.Getenv("GOOGLE_API_KEY"); key != "" {
		c.LLM.APIKey = key
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.LLM.APIKey = key
	}
	if model := os.Getenv("TOOLSMITH_MODEL"); model != "" {
		c.LLM.Model = model
	}
	if image := os.Getenv("TOOLSMITH_DOCKER_IMAGE"); image != "" {
		c.Execution.Docker.Image = image
	}
	if backend := os.Getenv("TOOLSMITH_BACKEND"); backend != "" {
		c.Execution.Backend = backend
	}
	if path := os.Getenv("TOOLSMITH_JOURNAL"); path != "" {
		c.Journal.DatabasePath = path
	}
}

// GetLLMTimeout returns the per-call LLM timeout as a duration.
func (c *Config) GetLLMTimeout() time.Duration {
	return parseDuration(c.LLM.Timeout, 120*time.Second)
}

// GetLookupTimeout returns the timeout for a single auxiliary lookup.
func (c *Config) GetLookupTimeout() time.Duration {
	return parseDuration(c.Generation.LookupTimeout, 30*time.Second)
}

// GetExecutionTimeout returns the per-run execution timeout as a duration.
func (c *Config) GetExecutionTimeout() time.Duration {
	return c.Execution.GetTimeout()
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// ValidProviders lists all supported LLM providers.
var ValidProviders = []string{"gemini"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.LLM.APIKey == "" {
		return fmt.Errorf("LLM API key not configured (set GEMINI_API_KEY or GOOGLE_API_KEY, or pass --api-key)")
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

	if c.Generation.MaxIterations < 0 {
		return fmt.Errorf("generation.max_iterations must be >= 0, got %d", c.Generation.MaxIterations)
	}
	if c.Generation.MaxAgentRounds <= 0 {
		return fmt.Errorf("generation.max_agent_rounds must be > 0, got %d", c.Generation.MaxAgentRounds)
	}
	for _, name := range c.Generation.LookupCategories {
		known := false
		for _, n := range LookupCategoryNames {
			if name == n {
				known = true
			}
		}
		if !known {
			return fmt.Errorf("invalid generation.lookup_categories entry: %q (valid: %v)", name, LookupCategoryNames)
		}
	}
	switch c.Generation.InitialStrategy {
	case StrategyAugmented, StrategyDirect:
	default:
		return fmt.Errorf("invalid generation.initial_strategy: %q (valid: %s, %s)", c.Generation.InitialStrategy, StrategyAugmented, StrategyDirect)
	}

	return c.Execution.Validate()
}
