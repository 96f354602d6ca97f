package perception

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"toolsmith/internal/config"
	"toolsmith/internal/types"
)

func TestToGenAIContents(t *testing.T) {
	history := []types.Message{
		{Role: types.RoleUser, Text: "build a tool"},
		{Role: types.RoleModel, ToolCalls: []types.ToolCall{
			{ID: "c1", Name: "npm-search", Input: map[string]interface{}{"input": "temperature"}},
		}},
		{Role: types.RoleUser, ToolResults: []types.ToolResult{
			{ToolUseID: "c1", Name: "npm-search", Content: "Error: no results", IsError: true},
		}},
		{Role: types.RoleModel},
	}

	contents := toGenAIContents(history)
	require.Len(t, contents, 3, "empty turns are dropped")

	assert.Equal(t, genai.Role(genai.RoleUser), genai.Role(contents[0].Role))
	assert.Equal(t, "build a tool", contents[0].Parts[0].Text)

	assert.Equal(t, genai.Role(genai.RoleModel), genai.Role(contents[1].Role))
	require.NotNil(t, contents[1].Parts[0].FunctionCall)
	assert.Equal(t, "npm-search", contents[1].Parts[0].FunctionCall.Name)
	assert.Equal(t, "c1", contents[1].Parts[0].FunctionCall.ID)

	fr := contents[2].Parts[0].FunctionResponse
	require.NotNil(t, fr)
	assert.Equal(t, "c1", fr.ID)
	assert.Equal(t, "Error: no results", fr.Response["error"])
}

func TestToGenAITools(t *testing.T) {
	assert.Nil(t, toGenAITools(nil))

	schema := map[string]interface{}{"type": "object"}
	tools := toGenAITools([]ToolDefinition{
		{Name: "npm-info", Description: "readme", InputSchema: schema},
		{Name: "web-search", Description: "search"},
	})
	require.Len(t, tools, 1)
	require.Len(t, tools[0].FunctionDeclarations, 2)
	assert.Equal(t, "npm-info", tools[0].FunctionDeclarations[0].Name)
	assert.Equal(t, schema, tools[0].FunctionDeclarations[0].ParametersJsonSchema)
}

func TestNewGeminiClientRequiresKey(t *testing.T) {
	_, err := NewGeminiClientWithConfig(context.Background(), GeminiConfig{})
	assert.Error(t, err)
}

func TestNewClientFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	_, err := NewClientFromConfig(context.Background(), cfg)
	assert.Error(t, err, "missing key")

	cfg.LLM.APIKey = "test-key"
	cfg.LLM.Provider = "openai"
	_, err = NewClientFromConfig(context.Background(), cfg)
	assert.Error(t, err, "unsupported provider")

	cfg.LLM.Provider = "gemini"
	cfg.LLM.Model = "gemini-2.5-pro"
	client, err := NewClientFromConfig(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.5-pro", client.(*GeminiClient).Model())
}
