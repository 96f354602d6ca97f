package config

// LLMConfig configures the completion service.
type LLMConfig struct {
	Provider    string  `yaml:"provider"` // gemini
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	Timeout     string  `yaml:"timeout"`
	Temperature float32 `yaml:"temperature"`
}

// DefaultLLMConfig returns the default completion settings.
// Temperature 0 keeps revisions stable enough for byte-equal convergence.
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		Provider:    "gemini",
		Model:       "gemini-2.5-flash",
		Timeout:     "120s",
		Temperature: 0,
	}
}
