package autopoiesis

import (
	"context"
	"fmt"

	"toolsmith/internal/logging"
	"toolsmith/internal/tools"
	"toolsmith/internal/types"
)

// DefaultMaxAgentRounds bounds the completion calls of one agent run.
const DefaultMaxAgentRounds = 8

// AgentExecutor lets the model alternate between calling lookup tools and
// answering. The final answer is returned under OutputKeyOutput.
type AgentExecutor struct {
	Client    types.LLMClient
	System    string
	Tools     *tools.Registry
	MaxRounds int
}

// NewAgentExecutor returns an executor over the tools in registry.
func NewAgentExecutor(client types.LLMClient, system string, registry *tools.Registry, maxRounds int) *AgentExecutor {
	if registry == nil {
		registry = tools.NewRegistry()
	}
	if maxRounds <= 0 {
		maxRounds = DefaultMaxAgentRounds
	}
	return &AgentExecutor{Client: client, System: system, Tools: registry, MaxRounds: maxRounds}
}

func (a *AgentExecutor) OutputKey() string { return OutputKeyOutput }

// Call runs rounds until the model answers without requesting tools, or the
// round budget runs out (*AgentRoundLimitError). Tool calls within a round
// run one at a time in the order the model issued them.
func (a *AgentExecutor) Call(ctx context.Context, values map[string]string) (map[string]string, error) {
	timer := logging.StartTimer(logging.CategoryToolgen, "AgentExecutor.Call")
	defer timer.Stop()

	defs := a.Tools.Definitions()
	history := []types.Message{{Role: types.RoleUser, Text: values[InputKey]}}

	for round := 1; round <= a.MaxRounds; round++ {
		resp, err := a.Client.CompleteWithTools(ctx, a.System, history, defs)
		if err != nil {
			return nil, fmt.Errorf("agent round %d: %w", round, err)
		}

		if len(resp.ToolCalls) == 0 {
			logging.Toolgen("agent finished after %d round(s)", round)
			return map[string]string{OutputKeyOutput: resp.Text}, nil
		}

		history = append(history, types.Message{
			Role:      types.RoleModel,
			Text:      resp.Text,
			ToolCalls: resp.ToolCalls,
		})

		results := make([]types.ToolResult, 0, len(resp.ToolCalls))
		for _, call := range resp.ToolCalls {
			results = append(results, a.runTool(ctx, call))
		}
		history = append(history, types.Message{Role: types.RoleUser, ToolResults: results})
	}

	logging.ToolgenWarn("agent hit round limit (%d)", a.MaxRounds)
	return nil, &AgentRoundLimitError{Rounds: a.MaxRounds}
}

// runTool never fails: errors become "Error: ..." observations for the model.
func (a *AgentExecutor) runTool(ctx context.Context, call types.ToolCall) types.ToolResult {
	logging.ToolgenDebug("agent calls %s(%v)", call.Name, call.Input)

	result := types.ToolResult{ToolUseID: call.ID, Name: call.Name}
	if !a.Tools.Has(call.Name) {
		result.Content = "Error: unknown tool " + call.Name
		result.IsError = true
		return result
	}

	res, err := a.Tools.Execute(ctx, call.Name, call.Input)
	if err != nil {
		result.Content = "Error: " + err.Error()
		result.IsError = true
		return result
	}
	result.Content = res.Result
	return result
}
