package autopoiesis

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ToolRequest is the caller's description of the tool to build.
type ToolRequest struct {
	Name         string         `json:"name"`
	Description  string         `json:"description"`
	InputSchema  map[string]any `json:"inputSchema,omitempty"`
	OutputSchema map[string]any `json:"outputSchema,omitempty"`
}

// Validate requires a name and a description.
func (r ToolRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("tool request: name is required")
	}
	if strings.TrimSpace(r.Description) == "" {
		return fmt.Errorf("tool request: description is required")
	}
	return nil
}

// DecodeToolRequest reads a ToolRequest from JSON and validates it.
func DecodeToolRequest(data []byte) (ToolRequest, error) {
	var req ToolRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return ToolRequest{}, fmt.Errorf("tool request: %w", err)
	}
	if err := req.Validate(); err != nil {
		return ToolRequest{}, err
	}
	return req, nil
}

// ToolRecord is a generated tool as returned by the model, plus its slug.
type ToolRecord struct {
	Slug         string         `json:"slug"`
	Name         string         `json:"name"`
	Description  string         `json:"description"`
	InputSchema  map[string]any `json:"inputSchema"`
	OutputSchema map[string]any `json:"outputSchema"`
	Code         string         `json:"code"`
}

// Clone returns a copy that shares no maps with r.
func (r ToolRecord) Clone() ToolRecord {
	r.InputSchema = cloneMap(r.InputSchema)
	r.OutputSchema = cloneMap(r.OutputSchema)
	return r
}

// FormattedToolRecord is a ToolRecord with its code wrapped into a runnable
// tool file.
type FormattedToolRecord struct {
	ToolRecord
	WrappedCode string `json:"wrappedCode"`
}

// RevisionInput carries a record and the log of its last execution.
type RevisionInput struct {
	Tool ToolRecord
	Logs string
}

// IterationState is the working state of one Iterate call.
type IterationState struct {
	Previous     *ToolRecord
	Current      ToolRecord
	ExecutionLog string
	HasLog       bool
	Iteration    int
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}
