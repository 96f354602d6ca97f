package perception

import (
	"time"

	"toolsmith/internal/types"
)

// LLMClient is an alias to types.LLMClient for use within the perception package.
type LLMClient = types.LLMClient

// ToolDefinition describes a tool that the LLM can invoke.
type ToolDefinition = types.ToolDefinition

// ToolCall represents a tool invocation requested by the LLM.
type ToolCall = types.ToolCall

// LLMToolResponse contains both text response and tool calls from the LLM.
type LLMToolResponse = types.LLMToolResponse

// Provider represents an LLM provider.
type Provider string

const (
	ProviderGemini Provider = "gemini"
)

// GeminiConfig holds configuration for the Gemini client.
type GeminiConfig struct {
	APIKey string
	// BaseURL overrides the API endpoint; empty uses the SDK default.
	BaseURL         string
	Model           string
	Timeout         time.Duration
	Temperature     float32
	MaxOutputTokens int32
}
