package autopoiesis

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"toolsmith/internal/types"
)

// --- MockLLMClient ---

type MockLLMClient struct {
	CompleteFunc           func(ctx context.Context, prompt string) (string, error)
	CompleteWithSystemFunc func(ctx context.Context, sys, user string) (string, error)
	CompleteWithToolsFunc  func(ctx context.Context, sys string, history []types.Message, tools []types.ToolDefinition) (*types.LLMToolResponse, error)

	mu        sync.Mutex
	Prompts   []string
	Systems   []string
	Histories [][]types.Message
}

func (m *MockLLMClient) Complete(ctx context.Context, prompt string) (string, error) {
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, prompt)
	}
	return "", nil
}

func (m *MockLLMClient) CompleteWithSystem(ctx context.Context, sys, user string) (string, error) {
	m.mu.Lock()
	m.Systems = append(m.Systems, sys)
	m.Prompts = append(m.Prompts, user)
	m.mu.Unlock()
	if m.CompleteWithSystemFunc != nil {
		return m.CompleteWithSystemFunc(ctx, sys, user)
	}
	return "", nil
}

func (m *MockLLMClient) CompleteWithTools(ctx context.Context, sys string, history []types.Message, tools []types.ToolDefinition) (*types.LLMToolResponse, error) {
	m.mu.Lock()
	m.Systems = append(m.Systems, sys)
	m.Histories = append(m.Histories, append([]types.Message(nil), history...))
	m.mu.Unlock()
	if m.CompleteWithToolsFunc != nil {
		return m.CompleteWithToolsFunc(ctx, sys, history, tools)
	}
	return &types.LLMToolResponse{StopReason: "end_turn"}, nil
}

// --- MockStrategy ---

type MockStrategy struct {
	GenerateFunc func(ctx context.Context, in GenerationInput) (string, error)

	mu     sync.Mutex
	Inputs []GenerationInput
}

func (m *MockStrategy) Generate(ctx context.Context, in GenerationInput) (string, error) {
	m.mu.Lock()
	m.Inputs = append(m.Inputs, in)
	m.mu.Unlock()
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, in)
	}
	return "", nil
}

func (m *MockStrategy) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Inputs)
}

// --- MockRunner ---

type MockRunner struct {
	RunFunc func(ctx context.Context, code string) (string, error)

	mu    sync.Mutex
	Codes []string
}

func (m *MockRunner) Run(ctx context.Context, code string) (string, error) {
	m.mu.Lock()
	m.Codes = append(m.Codes, code)
	m.mu.Unlock()
	if m.RunFunc != nil {
		return m.RunFunc(ctx, code)
	}
	return "ok\n", nil
}

func (m *MockRunner) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Codes)
}

// --- helpers ---

func testAssets(t *testing.T) *Assets {
	t.Helper()
	assets, err := DefaultAssets(PromptVars{CredentialEnv: "GEMINI_API_KEY"})
	if err != nil {
		t.Fatalf("DefaultAssets: %v", err)
	}
	return assets
}

// recordJSON renders a model response for a tool with the given name and code.
func recordJSON(t *testing.T, name, code string) string {
	t.Helper()
	data, err := json.Marshal(map[string]any{
		"name":         name,
		"description":  "Converts temperatures between Celsius and Fahrenheit",
		"inputSchema":  map[string]any{"type": "object", "properties": map[string]any{"celsius": map[string]any{"type": "number"}}},
		"outputSchema": map[string]any{"type": "object", "properties": map[string]any{"fahrenheit": map[string]any{"type": "number"}}},
		"code":         code,
	})
	if err != nil {
		t.Fatalf("marshal record: %v", err)
	}
	return string(data)
}
