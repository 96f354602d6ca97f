package autopoiesis

import (
	"context"
	"errors"

	"toolsmith/internal/logging"
	"toolsmith/internal/tools"
	"toolsmith/internal/types"
)

// GenerationInput is what a Strategy works from: a new-tool request, or a
// previous record with the log of its last run.
type GenerationInput struct {
	Request  *ToolRequest
	Revision *RevisionInput
}

// Strategy produces raw model text for one generation step. Strategies are
// single-shot and never retry.
type Strategy interface {
	Generate(ctx context.Context, in GenerationInput) (string, error)
}

var (
	errNoRequest  = errors.New("generation input has no tool request")
	errNoRevision = errors.New("generation input has no revision")
)

// DirectStrategy asks for the tool in one completion, with no lookups.
type DirectStrategy struct {
	chain  Chain
	assets *Assets
}

// NewDirectStrategy builds a DirectStrategy on an LLMChain.
func NewDirectStrategy(client types.LLMClient, assets *Assets) *DirectStrategy {
	return &DirectStrategy{
		chain:  NewLLMChain(client, assets.SystemPrompt(false)),
		assets: assets,
	}
}

// Generate returns the model reply verbatim.
func (s *DirectStrategy) Generate(ctx context.Context, in GenerationInput) (string, error) {
	if in.Request == nil {
		return "", errNoRequest
	}
	prompt, err := s.assets.GeneratePrompt(*in.Request)
	if err != nil {
		return "", err
	}
	logging.Toolgen("direct generation: %s", in.Request.Name)
	return run(ctx, s.chain, prompt)
}

// AugmentedStrategy asks for the tool through an agent that can consult the
// lookup tools first.
type AugmentedStrategy struct {
	chain  Chain
	assets *Assets
}

// NewAugmentedStrategy builds an AugmentedStrategy on an AgentExecutor.
func NewAugmentedStrategy(client types.LLMClient, assets *Assets, registry *tools.Registry, maxRounds int) *AugmentedStrategy {
	return &AugmentedStrategy{
		chain:  NewAgentExecutor(client, assets.SystemPrompt(true), registry, maxRounds),
		assets: assets,
	}
}

// Generate returns the agent's final answer verbatim.
func (s *AugmentedStrategy) Generate(ctx context.Context, in GenerationInput) (string, error) {
	if in.Request == nil {
		return "", errNoRequest
	}
	prompt, err := s.assets.GeneratePrompt(*in.Request)
	if err != nil {
		return "", err
	}
	logging.Toolgen("augmented generation: %s", in.Request.Name)
	return run(ctx, s.chain, prompt)
}

// RevisionStrategy asks the agent to fix a tool given its execution log.
type RevisionStrategy struct {
	chain  Chain
	assets *Assets
}

// NewRevisionStrategy builds a RevisionStrategy on an AgentExecutor.
func NewRevisionStrategy(client types.LLMClient, assets *Assets, registry *tools.Registry, maxRounds int) *RevisionStrategy {
	return &RevisionStrategy{
		chain:  NewAgentExecutor(client, assets.SystemPrompt(true), registry, maxRounds),
		assets: assets,
	}
}

// Generate returns the agent's revised record text verbatim.
func (s *RevisionStrategy) Generate(ctx context.Context, in GenerationInput) (string, error) {
	if in.Revision == nil {
		return "", errNoRevision
	}
	prompt, err := s.assets.RevisePrompt(in.Revision.Tool, in.Revision.Logs)
	if err != nil {
		return "", err
	}
	logging.Toolgen("revising %s with %d bytes of logs", in.Revision.Tool.Slug, len(in.Revision.Logs))
	return run(ctx, s.chain, prompt)
}

func run(ctx context.Context, chain Chain, prompt string) (string, error) {
	out, err := chain.Call(ctx, map[string]string{InputKey: prompt})
	if err != nil {
		return "", err
	}
	text, err := outputOf(chain, out)
	if err != nil {
		logging.ToolgenWarn("%v", err)
		return "", err
	}
	logging.ToolgenDebug("model returned %d bytes", len(text))
	return text, nil
}
