package perception

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"toolsmith/internal/logging"
	"toolsmith/internal/types"
)

// GeminiClient implements LLMClient on the Google GenAI SDK.
type GeminiClient struct {
	client          *genai.Client
	model           string
	timeout         time.Duration
	temperature     float32
	maxOutputTokens int32
}

// DefaultGeminiConfig returns sensible defaults.
func DefaultGeminiConfig(apiKey string) GeminiConfig {
	return GeminiConfig{
		APIKey:          apiKey,
		Model:           "gemini-2.5-flash",
		Timeout:         120 * time.Second,
		MaxOutputTokens: 16384,
	}
}

// NewGeminiClientWithConfig creates a new Gemini client with custom config.
func NewGeminiClientWithConfig(ctx context.Context, config GeminiConfig) (*GeminiClient, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}
	model := strings.TrimSpace(config.Model)
	if model == "" {
		model = "gemini-2.5-flash"
	}

	cc := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: config.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GeminiClient{
		client:          client,
		model:           model,
		timeout:         config.Timeout,
		temperature:     config.Temperature,
		maxOutputTokens: config.MaxOutputTokens,
	}, nil
}

// Model returns the model name used for requests.
func (c *GeminiClient) Model() string { return c.model }

// Complete sends a prompt and returns the completion.
func (c *GeminiClient) Complete(ctx context.Context, prompt string) (string, error) {
	return c.CompleteWithSystem(ctx, "", prompt)
}

// CompleteWithSystem sends a prompt with a system message.
func (c *GeminiClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	logging.APIDebug("[Gemini] CompleteWithSystem: model=%s system_len=%d user_len=%d", c.model, len(systemPrompt), len(userPrompt))
	start := time.Now()

	contents := []*genai.Content{genai.NewContentFromText(userPrompt, genai.RoleUser)}
	resp, err := c.generate(ctx, systemPrompt, contents, nil)
	if err != nil {
		logging.APIError("[Gemini] CompleteWithSystem: failed after %v: %v", time.Since(start), err)
		return "", err
	}

	text := resp.Text()
	logging.API("[Gemini] CompleteWithSystem: completed in %v response_len=%d", time.Since(start), len(text))
	return text, nil
}

// CompleteWithTools sends the conversation with tool declarations and returns
// the model's text and any function calls it requested.
func (c *GeminiClient) CompleteWithTools(ctx context.Context, systemPrompt string, history []types.Message, tools []ToolDefinition) (*LLMToolResponse, error) {
	logging.APIDebug("[Gemini] CompleteWithTools: model=%s tools=%d turns=%d", c.model, len(tools), len(history))
	start := time.Now()

	resp, err := c.generate(ctx, systemPrompt, toGenAIContents(history), toGenAITools(tools))
	if err != nil {
		logging.APIError("[Gemini] CompleteWithTools: failed after %v: %v", time.Since(start), err)
		return nil, err
	}

	out := &LLMToolResponse{StopReason: "end_turn"}
	for _, fc := range resp.FunctionCalls() {
		id := fc.ID
		if id == "" {
			id = "call_" + uuid.NewString()
		}
		out.ToolCalls = append(out.ToolCalls, types.ToolCall{ID: id, Name: fc.Name, Input: fc.Args})
	}
	if len(out.ToolCalls) > 0 {
		out.StopReason = "tool_use"
	}
	out.Text = resp.Text()
	if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason == genai.FinishReasonMaxTokens {
		out.StopReason = "max_tokens"
	}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = types.UsageMetadata{
			InputTokens:  int(u.PromptTokenCount),
			OutputTokens: int(u.CandidatesTokenCount),
			TotalTokens:  int(u.TotalTokenCount),
		}
	}

	logging.API("[Gemini] CompleteWithTools: completed in %v text_len=%d tool_calls=%d stop_reason=%s",
		time.Since(start), len(out.Text), len(out.ToolCalls), out.StopReason)
	return out, nil
}

func (c *GeminiClient) generate(ctx context.Context, systemPrompt string, contents []*genai.Content, tools []*genai.Tool) (*genai.GenerateContentResponse, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(c.temperature),
		Tools:       tools,
	}
	if c.maxOutputTokens > 0 {
		cfg.MaxOutputTokens = c.maxOutputTokens
	}
	if systemPrompt != "" {
		cfg.SystemInstruction = genai.NewContentFromText(systemPrompt, genai.RoleUser)
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}
	if len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("gemini returned no candidates")
	}
	return resp, nil
}

func toGenAITools(defs []ToolDefinition) []*genai.Tool {
	if len(defs) == 0 {
		return nil
	}
	decls := make([]*genai.FunctionDeclaration, 0, len(defs))
	for _, d := range defs {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:                 d.Name,
			Description:          d.Description,
			ParametersJsonSchema: d.InputSchema,
		})
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

func toGenAIContents(history []types.Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history))
	for _, m := range history {
		var parts []*genai.Part
		if m.Text != "" {
			parts = append(parts, genai.NewPartFromText(m.Text))
		}
		for _, call := range m.ToolCalls {
			parts = append(parts, &genai.Part{FunctionCall: &genai.FunctionCall{
				ID:   call.ID,
				Name: call.Name,
				Args: call.Input,
			}})
		}
		for _, res := range m.ToolResults {
			key := "output"
			if res.IsError {
				key = "error"
			}
			part := genai.NewPartFromFunctionResponse(res.Name, map[string]any{key: res.Content})
			part.FunctionResponse.ID = res.ToolUseID
			parts = append(parts, part)
		}
		if len(parts) == 0 {
			continue
		}
		role := genai.Role(genai.RoleUser)
		if m.Role == types.RoleModel {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromParts(parts, role))
	}
	return contents
}
