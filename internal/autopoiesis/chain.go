package autopoiesis

import (
	"context"
	"fmt"

	"toolsmith/internal/logging"
	"toolsmith/internal/types"
)

// Chain input and output keys.
const (
	InputKey        = "input"
	OutputKeyText   = "text"
	OutputKeyOutput = "output"
)

// Chain is one prompt/response step over the completion service.
type Chain interface {
	Call(ctx context.Context, values map[string]string) (map[string]string, error)
	OutputKey() string
}

// LLMChain sends values[InputKey] as a single completion and returns the
// reply under OutputKeyText.
type LLMChain struct {
	Client types.LLMClient
	System string
}

// NewLLMChain returns a chain that makes exactly one completion call.
func NewLLMChain(client types.LLMClient, system string) *LLMChain {
	return &LLMChain{Client: client, System: system}
}

func (c *LLMChain) OutputKey() string { return OutputKeyText }

// Call performs the completion.
func (c *LLMChain) Call(ctx context.Context, values map[string]string) (map[string]string, error) {
	timer := logging.StartTimer(logging.CategoryAPI, "LLMChain.Call")
	defer timer.Stop()

	text, err := c.Client.CompleteWithSystem(ctx, c.System, values[InputKey])
	if err != nil {
		return nil, fmt.Errorf("completion failed: %w", err)
	}
	return map[string]string{OutputKeyText: text}, nil
}

// outputOf returns the non-empty value a chain produced under its output key.
func outputOf(chain Chain, out map[string]string) (string, error) {
	key := chain.OutputKey()
	v, ok := out[key]
	if !ok || v == "" {
		return "", &EmptyResponseError{OutputKey: key}
	}
	return v, nil
}
