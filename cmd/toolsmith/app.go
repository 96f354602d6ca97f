package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"toolsmith/internal/autopoiesis"
	"toolsmith/internal/config"
	"toolsmith/internal/perception"
	"toolsmith/internal/store"
	"toolsmith/internal/tactile"
	"toolsmith/internal/tools"
	"toolsmith/internal/tools/research"
	"toolsmith/internal/types"
)

// newLLMClient is replaced in tests.
var newLLMClient = func(ctx context.Context, c *config.Config) (types.LLMClient, error) {
	return perception.NewClientFromConfig(ctx, c)
}

// newRunner is replaced in tests.
var newRunner = func(c *config.Config, diagnostics io.Writer) (tactile.Runner, error) {
	return tactile.NewRunner(c.Execution, c.LLM.APIKey, diagnostics)
}

// app holds everything a command needs.
type app struct {
	loop    *autopoiesis.OuroborosLoop
	runner  tactile.Runner
	journal *store.IterationStore
}

// buildApp wires the loop from cfg. The journal is opened only when
// withJournal is set and a path is configured.
func buildApp(ctx context.Context, c *config.Config, withJournal bool) (*app, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	client, err := newLLMClient(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}

	registry, err := research.NewRegistry(research.NewClient(c.GetLookupTimeout()))
	if err != nil {
		return nil, fmt.Errorf("failed to register lookup tools: %w", err)
	}
	if len(c.Generation.LookupCategories) > 0 {
		categories := make([]tools.ToolCategory, 0, len(c.Generation.LookupCategories))
		for _, name := range c.Generation.LookupCategories {
			categories = append(categories, tools.ToolCategory("/"+name))
		}
		registry = registry.Subset(categories...)
		logger.Debug("lookup tools limited", zap.Strings("tools", registry.Names()))
	}

	vars := autopoiesis.PromptVars{CredentialEnv: c.Execution.CredentialEnv}
	assets, err := autopoiesis.LoadAssetsDir(c.Generation.TemplatesDir, vars)
	if err != nil {
		return nil, err
	}

	runner, err := newRunner(c, os.Stderr)
	if err != nil {
		return nil, err
	}
	logger.Debug("execution backend ready", zap.String("backend", runner.Name()))

	loop := autopoiesis.NewOuroborosLoop(client, assets, registry, runner, autopoiesis.OuroborosConfig{
		MaxIterations:  c.Generation.MaxIterations,
		InitialDirect:  c.Generation.InitialStrategy == config.StrategyDirect,
		MaxAgentRounds: c.Generation.MaxAgentRounds,
	})

	a := &app{loop: loop, runner: runner}
	if withJournal && c.Journal.DatabasePath != "" {
		a.journal, err = store.NewIterationStore(c.Journal.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open journal: %w", err)
		}
	}
	return a, nil
}

func (a *app) Close() {
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			logger.Warn("failed to close journal", zap.Error(err))
		}
	}
}
