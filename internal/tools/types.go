// Package tools defines the auxiliary lookup tools an agent may call while
// generating or revising a tool, and the registry that serves them.
//
//	Registry.Definitions() → LLM function declarations
//	LLM tool call → Registry.Execute() → Tool.Execute()
package tools

import (
	"context"
)

// ToolCategory classifies tools.
type ToolCategory string

const (
	// CategoryPackages covers package index lookups (npm, Go modules).
	CategoryPackages ToolCategory = "/packages"

	// CategoryResearch covers general web search.
	CategoryResearch ToolCategory = "/research"

	// CategoryGeneral is the default.
	CategoryGeneral ToolCategory = "/general"
)

// Property describes a single parameter property for JSON schema.
type Property struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Default     any    `json:"default,omitempty"`
	Enum        []any  `json:"enum,omitempty"`
}

// ToolSchema defines the JSON schema for tool arguments.
type ToolSchema struct {
	// Required lists parameters that must be provided.
	Required []string `json:"required"`

	// Properties describes each parameter.
	Properties map[string]Property `json:"properties"`
}

// JSONSchema renders the schema as a JSON Schema object.
func (s ToolSchema) JSONSchema() map[string]any {
	props := make(map[string]any, len(s.Properties))
	for name, p := range s.Properties {
		prop := map[string]any{"type": p.Type}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		if p.Default != nil {
			prop["default"] = p.Default
		}
		if len(p.Enum) > 0 {
			prop["enum"] = p.Enum
		}
		props[name] = prop
	}
	out := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(s.Required) > 0 {
		out["required"] = append([]string(nil), s.Required...)
	}
	return out
}

// ExecuteFunc is the signature for tool execution.
// Returns the result string and any error.
type ExecuteFunc func(ctx context.Context, args map[string]any) (string, error)

// Tool defines a lookup tool the agent loop can offer to the model.
type Tool struct {
	// Name is the unique identifier the model calls the tool by.
	Name string

	// Description is shown to the model.
	Description string

	Category ToolCategory

	Execute ExecuteFunc

	Schema ToolSchema

	// Priority orders Definitions; higher first (default 50).
	Priority int
}

// Validate checks if the tool definition is valid.
func (t *Tool) Validate() error {
	if t.Name == "" {
		return ErrToolNameEmpty
	}
	if t.Execute == nil {
		return ErrToolExecuteNil
	}
	return nil
}

// ToolResult wraps the result of tool execution with metadata.
type ToolResult struct {
	ToolName string

	Result string

	// Error is set if the tool failed.
	Error error

	DurationMs int64
}

// IsSuccess returns true if the tool executed without error.
func (r *ToolResult) IsSuccess() bool {
	return r.Error == nil
}
