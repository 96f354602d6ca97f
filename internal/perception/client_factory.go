package perception

import (
	"context"
	"fmt"

	"toolsmith/internal/config"
)

// NewClientFromConfig creates the completion client selected by cfg.LLM.
func NewClientFromConfig(ctx context.Context, cfg *config.Config) (LLMClient, error) {
	if cfg.LLM.APIKey == "" {
		return nil, fmt.Errorf("LLM API key not configured")
	}
	switch Provider(cfg.LLM.Provider) {
	case ProviderGemini, "":
		gc := DefaultGeminiConfig(cfg.LLM.APIKey)
		if cfg.LLM.Model != "" {
			gc.Model = cfg.LLM.Model
		}
		gc.Timeout = cfg.GetLLMTimeout()
		gc.Temperature = cfg.LLM.Temperature
		return NewGeminiClientWithConfig(ctx, gc)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.LLM.Provider)
	}
}
