package autopoiesis

import (
	"fmt"

	"toolsmith/internal/tactile"
)

// maxRawInMessage bounds how much raw model text an error message repeats.
const maxRawInMessage = 2000

func truncateRaw(raw string) string {
	if len(raw) <= maxRawInMessage {
		return raw
	}
	return raw[:maxRawInMessage] + "...(truncated)"
}

// ParseError reports model output that is not valid JSON.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("response could not be parsed as JSON: %s", truncateRaw(e.Raw))
}

func (e *ParseError) Unwrap() error { return e.Err }

// SchemaError reports JSON that does not have the shape of a tool record.
type SchemaError struct {
	Raw    string
	Detail string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("response does not match the tool schema: %s: %s", e.Detail, truncateRaw(e.Raw))
}

// EmptyResponseError reports a chain that produced nothing under its output key.
type EmptyResponseError struct {
	OutputKey string
}

func (e *EmptyResponseError) Error() string {
	return fmt.Sprintf("empty response: no value for output key %q", e.OutputKey)
}

// TemplateError reports a prompt or wrapper template that could not be
// loaded or rendered.
type TemplateError struct {
	Name string
	Err  error
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("template %s: %v", e.Name, e.Err)
}

func (e *TemplateError) Unwrap() error { return e.Err }

// AgentRoundLimitError reports an agent that kept calling tools past its
// round budget.
type AgentRoundLimitError struct {
	Rounds int
}

func (e *AgentRoundLimitError) Error() string {
	return fmt.Sprintf("agent produced no final answer within %d rounds", e.Rounds)
}

// ExecutionLaunchError is returned when the execution environment could not
// be started.
type ExecutionLaunchError = tactile.ExecutionLaunchError

// StageError wraps a failure with the loop stage it happened in.
type StageError struct {
	Stage LoopStage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
