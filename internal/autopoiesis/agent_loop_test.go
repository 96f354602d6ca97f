package autopoiesis

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"toolsmith/internal/tools"
	"toolsmith/internal/types"
)

func lookupRegistry(t *testing.T, calls *[]string) *tools.Registry {
	t.Helper()
	reg := tools.NewRegistry()
	schema := tools.ToolSchema{
		Required:   []string{"input"},
		Properties: map[string]tools.Property{"input": {Type: "string", Description: "query"}},
	}
	require.NoError(t, reg.Register(&tools.Tool{
		Name:   "npm-search",
		Schema: schema,
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			*calls = append(*calls, "npm-search")
			return "Error: no results", nil
		},
	}))
	require.NoError(t, reg.Register(&tools.Tool{
		Name:   "go-info",
		Schema: schema,
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			*calls = append(*calls, "go-info")
			return "", errors.New("HTTP 500")
		},
	}))
	return reg
}

func TestAgentExecutor_ToolErrorsAreObservations(t *testing.T) {
	var calls []string
	reg := lookupRegistry(t, &calls)

	round := 0
	client := &MockLLMClient{
		CompleteWithToolsFunc: func(ctx context.Context, sys string, history []types.Message, defs []types.ToolDefinition) (*types.LLMToolResponse, error) {
			round++
			if round == 1 {
				return &types.LLMToolResponse{
					StopReason: "tool_use",
					ToolCalls: []types.ToolCall{
						{ID: "1", Name: "npm-search", Input: map[string]any{"input": "celsius"}},
						{ID: "2", Name: "nope", Input: map[string]any{}},
						{ID: "3", Name: "go-info", Input: map[string]any{"input": "github.com/x/y"}},
					},
				}, nil
			}
			return &types.LLMToolResponse{Text: "final answer", StopReason: "end_turn"}, nil
		},
	}

	agent := NewAgentExecutor(client, "system", reg, 0)
	out, err := agent.Call(context.Background(), map[string]string{InputKey: "build it"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{OutputKeyOutput: "final answer"}, out)
	assert.Equal(t, []string{"npm-search", "go-info"}, calls, "tools run in issue order")

	require.Len(t, client.Histories, 2)
	second := client.Histories[1]
	require.Len(t, second, 3)
	assert.Equal(t, types.RoleUser, second[0].Role)
	assert.Equal(t, "build it", second[0].Text)
	assert.Equal(t, types.RoleModel, second[1].Role)
	assert.Len(t, second[1].ToolCalls, 3)

	results := second[2].ToolResults
	require.Len(t, results, 3)
	assert.Equal(t, types.ToolResult{ToolUseID: "1", Name: "npm-search", Content: "Error: no results"}, results[0])
	assert.Equal(t, "Error: unknown tool nope", results[1].Content)
	assert.True(t, results[1].IsError)
	assert.Equal(t, "Error: HTTP 500", results[2].Content)
}

func TestAgentExecutor_RoundLimit(t *testing.T) {
	var calls []string
	reg := lookupRegistry(t, &calls)
	client := &MockLLMClient{
		CompleteWithToolsFunc: func(ctx context.Context, sys string, history []types.Message, defs []types.ToolDefinition) (*types.LLMToolResponse, error) {
			return &types.LLMToolResponse{ToolCalls: []types.ToolCall{{ID: "x", Name: "npm-search", Input: map[string]any{"input": "q"}}}}, nil
		},
	}

	agent := NewAgentExecutor(client, "system", reg, 3)
	out, err := agent.Call(context.Background(), map[string]string{InputKey: "loop forever"})
	assert.Nil(t, out)

	var limitErr *AgentRoundLimitError
	require.True(t, errors.As(err, &limitErr), "got %v", err)
	assert.Equal(t, 3, limitErr.Rounds)
	assert.Len(t, client.Histories, 3)
	assert.Len(t, calls, 3)
}

func TestAgentExecutor_ClientError(t *testing.T) {
	boom := errors.New("quota exceeded")
	client := &MockLLMClient{
		CompleteWithToolsFunc: func(ctx context.Context, sys string, history []types.Message, defs []types.ToolDefinition) (*types.LLMToolResponse, error) {
			return nil, boom
		},
	}
	_, err := NewAgentExecutor(client, "system", nil, 0).Call(context.Background(), map[string]string{InputKey: "x"})
	assert.ErrorIs(t, err, boom)
}

func TestAgentExecutor_PassesToolDefinitions(t *testing.T) {
	var calls []string
	reg := lookupRegistry(t, &calls)
	var seen []string
	client := &MockLLMClient{
		CompleteWithToolsFunc: func(ctx context.Context, sys string, history []types.Message, defs []types.ToolDefinition) (*types.LLMToolResponse, error) {
			for _, d := range defs {
				seen = append(seen, d.Name)
			}
			return &types.LLMToolResponse{Text: "{}"}, nil
		},
	}
	_, err := NewAgentExecutor(client, "system", reg, 0).Call(context.Background(), map[string]string{InputKey: "x"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"npm-search", "go-info"}, seen)
}

func TestStrategies_EmptyOutput(t *testing.T) {
	assets := testAssets(t)
	client := &MockLLMClient{} // returns "" everywhere
	req := &ToolRequest{Name: "T", Description: "d"}

	_, err := NewDirectStrategy(client, assets).Generate(context.Background(), GenerationInput{Request: req})
	var emptyErr *EmptyResponseError
	require.True(t, errors.As(err, &emptyErr), "got %v", err)
	assert.Equal(t, "text", emptyErr.OutputKey)

	_, err = NewAugmentedStrategy(client, assets, nil, 0).Generate(context.Background(), GenerationInput{Request: req})
	require.True(t, errors.As(err, &emptyErr), "got %v", err)
	assert.Equal(t, "output", emptyErr.OutputKey)

	_, err = NewRevisionStrategy(client, assets, nil, 0).Generate(context.Background(), GenerationInput{
		Revision: &RevisionInput{Tool: converterRecord(), Logs: "log"},
	})
	require.True(t, errors.As(err, &emptyErr), "got %v", err)
	assert.Equal(t, "output", emptyErr.OutputKey)
}

func TestStrategies_RequireTheirInput(t *testing.T) {
	assets := testAssets(t)
	client := &MockLLMClient{}

	_, err := NewDirectStrategy(client, assets).Generate(context.Background(), GenerationInput{})
	assert.ErrorIs(t, err, errNoRequest)
	_, err = NewRevisionStrategy(client, assets, nil, 0).Generate(context.Background(), GenerationInput{Request: &ToolRequest{}})
	assert.ErrorIs(t, err, errNoRevision)
}

func TestRevisionStrategy_PromptCarriesRecordAndLogs(t *testing.T) {
	assets := testAssets(t)
	var prompt string
	client := &MockLLMClient{
		CompleteWithToolsFunc: func(ctx context.Context, sys string, history []types.Message, defs []types.ToolDefinition) (*types.LLMToolResponse, error) {
			prompt = history[0].Text
			return &types.LLMToolResponse{Text: "revised"}, nil
		},
	}

	out, err := NewRevisionStrategy(client, assets, nil, 0).Generate(context.Background(), GenerationInput{
		Revision: &RevisionInput{Tool: converterRecord(), Logs: "panic: index out of range"},
	})
	require.NoError(t, err)
	assert.Equal(t, "revised", out)
	assert.Contains(t, prompt, `"name": "Temperature Converter"`)
	assert.Contains(t, prompt, "panic: index out of range")
}
