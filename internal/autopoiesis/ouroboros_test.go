package autopoiesis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"toolsmith/internal/tactile"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// codeSequence returns a revision strategy that answers the i-th revision
// with codes[i], repeating the last entry once exhausted.
func codeSequence(t *testing.T, codes ...string) *MockStrategy {
	var mu sync.Mutex
	i := 0
	return &MockStrategy{GenerateFunc: func(ctx context.Context, in GenerationInput) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		code := codes[len(codes)-1]
		if i < len(codes) {
			code = codes[i]
		}
		i++
		return recordJSON(t, in.Revision.Tool.Name, code), nil
	}}
}

func initialStrategy(t *testing.T, code string) *MockStrategy {
	return &MockStrategy{GenerateFunc: func(ctx context.Context, in GenerationInput) (string, error) {
		return recordJSON(t, in.Request.Name, code), nil
	}}
}

type loopFixture struct {
	direct, augmented, revision *MockStrategy
	runner                      *MockRunner
	loop                        *OuroborosLoop
	events                      []IterationEvent
}

func newLoopFixture(t *testing.T, maxIterations int, revision *MockStrategy) *loopFixture {
	f := &loopFixture{
		direct:    initialStrategy(t, "direct-code"),
		augmented: initialStrategy(t, "v0"),
		revision:  revision,
		runner:    &MockRunner{},
	}
	cfg := DefaultOuroborosConfig()
	cfg.MaxIterations = maxIterations
	cfg.OnEvent = func(e IterationEvent) { f.events = append(f.events, e) }
	f.loop = NewOuroborosLoopWithStrategies(f.direct, f.augmented, f.revision, NewToolFormatter(testAssets(t)), f.runner, cfg)
	return f
}

func (f *loopFixture) stages() []string {
	var out []string
	for _, e := range f.events {
		out = append(out, e.Stage.String())
	}
	return out
}

var converterRequest = ToolRequest{Name: "Temperature Converter", Description: "Converts temperatures"}

func TestIterate_ConvergesWhenCodeStabilizes(t *testing.T) {
	f := newLoopFixture(t, 5, codeSequence(t, "v1", "v1"))

	result, err := f.loop.Iterate(context.Background(), converterRequest)
	require.NoError(t, err)

	assert.Equal(t, StageConverged, result.Outcome)
	assert.True(t, result.Converged())
	assert.Equal(t, 2, result.Iterations)
	assert.Equal(t, "v1", result.Tool.Code)
	assert.Equal(t, "temperature-converter", result.Tool.Slug)
	assert.Contains(t, result.Tool.WrappedCode, "type TemperatureConverter struct{}")

	assert.Equal(t, 1, f.augmented.Calls())
	assert.Equal(t, 0, f.direct.Calls())
	assert.Equal(t, 2, f.revision.Calls())
	assert.Equal(t, 2, f.runner.Calls())

	require.Len(t, result.Steps, 2)
	assert.Equal(t, "v0", result.Steps[0].Code)
	assert.Equal(t, "v1", result.Steps[1].Code)
	assert.Equal(t, "ok\n", result.Steps[1].Log)

	assert.Equal(t, []string{
		"initial", "generating",
		"executing", "revising",
		"executing", "revising",
		"converged",
	}, f.stages())
}

func TestIterate_ExhaustsAfterExactlyN(t *testing.T) {
	f := newLoopFixture(t, 3, codeSequence(t, "v1", "v2", "v3", "v4"))

	result, err := f.loop.Iterate(context.Background(), converterRequest)
	require.NoError(t, err, "exhaustion is not an error")

	assert.Equal(t, StageExhausted, result.Outcome)
	assert.False(t, result.Converged())
	assert.Equal(t, 3, result.Iterations)
	assert.Equal(t, "v3", result.Tool.Code)
	assert.Equal(t, 3, f.revision.Calls())
	assert.Equal(t, 3, f.runner.Calls())
	assert.Equal(t, "exhausted", f.stages()[len(f.events)-1])
}

func TestIterate_ZeroIterationsReturnsInitialRecord(t *testing.T) {
	f := newLoopFixture(t, 0, codeSequence(t, "never"))

	result, err := f.loop.Iterate(context.Background(), converterRequest)
	require.NoError(t, err)

	assert.Equal(t, StageExhausted, result.Outcome)
	assert.Equal(t, 0, result.Iterations)
	assert.Equal(t, "v0", result.Tool.Code)
	assert.Equal(t, 0, f.runner.Calls())
	assert.Equal(t, 0, f.revision.Calls())
	assert.Empty(t, result.Steps)
}

func TestIterate_PerRunOptions(t *testing.T) {
	f := newLoopFixture(t, 5, codeSequence(t, "v1", "v2", "v3"))

	var seen []LoopStage
	result, err := f.loop.Iterate(context.Background(), converterRequest,
		WithMaxIterations(1),
		WithObserver(func(e IterationEvent) { seen = append(seen, e.Stage) }),
	)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Iterations)
	assert.Equal(t, "v1", result.Tool.Code)
	assert.Empty(t, f.events, "per-run observer replaces the default")
	assert.Equal(t, StageExhausted, seen[len(seen)-1])
}

func TestIterate_RevisionSeesCurrentRecordAndLog(t *testing.T) {
	f := newLoopFixture(t, 5, codeSequence(t, "v1", "v1"))
	f.runner.RunFunc = func(ctx context.Context, code string) (string, error) {
		return fmt.Sprintf("ran %d bytes\n", len(code)), nil
	}

	_, err := f.loop.Iterate(context.Background(), converterRequest)
	require.NoError(t, err)

	require.Len(t, f.revision.Inputs, 2)
	first := f.revision.Inputs[0].Revision
	assert.Equal(t, "v0", first.Tool.Code)
	assert.Equal(t, fmt.Sprintf("ran %d bytes\n", len(f.runner.Codes[0])), first.Logs)
	assert.Equal(t, "v1", f.revision.Inputs[1].Revision.Tool.Code)

	assert.Contains(t, f.runner.Codes[0], "\nv0\n", "runner receives the wrapped code")
}

func TestIterate_InitialDirect(t *testing.T) {
	f := newLoopFixture(t, 1, codeSequence(t, "direct-code"))
	cfg := DefaultOuroborosConfig()
	cfg.MaxIterations = 1
	cfg.InitialDirect = true
	loop := NewOuroborosLoopWithStrategies(f.direct, f.augmented, f.revision, NewToolFormatter(testAssets(t)), f.runner, cfg)

	result, err := loop.Iterate(context.Background(), converterRequest)
	require.NoError(t, err)
	assert.Equal(t, 1, f.direct.Calls())
	assert.Equal(t, 0, f.augmented.Calls())
	assert.Equal(t, StageConverged, result.Outcome)
}

func TestIterate_StageErrors(t *testing.T) {
	t.Run("unparsable initial response", func(t *testing.T) {
		f := newLoopFixture(t, 5, codeSequence(t, "v1"))
		f.augmented.GenerateFunc = func(ctx context.Context, in GenerationInput) (string, error) {
			return "{not valid json", nil
		}

		result, err := f.loop.Iterate(context.Background(), converterRequest)
		assert.Nil(t, result)
		var stageErr *StageError
		require.True(t, errors.As(err, &stageErr), "got %v", err)
		assert.Equal(t, StageGenerating, stageErr.Stage)
		var parseErr *ParseError
		assert.True(t, errors.As(err, &parseErr))
		assert.Equal(t, 0, f.runner.Calls())
	})

	t.Run("launch failure", func(t *testing.T) {
		f := newLoopFixture(t, 5, codeSequence(t, "v1"))
		f.runner.RunFunc = func(ctx context.Context, code string) (string, error) {
			return "", &tactile.ExecutionLaunchError{Backend: "docker", Command: "docker run", Err: errors.New("not found")}
		}

		_, err := f.loop.Iterate(context.Background(), converterRequest)
		var stageErr *StageError
		require.True(t, errors.As(err, &stageErr), "got %v", err)
		assert.Equal(t, StageExecuting, stageErr.Stage)
		var launchErr *ExecutionLaunchError
		assert.True(t, errors.As(err, &launchErr))
		assert.Equal(t, 0, f.revision.Calls())
	})

	t.Run("schema failure in revision", func(t *testing.T) {
		f := newLoopFixture(t, 5, &MockStrategy{GenerateFunc: func(ctx context.Context, in GenerationInput) (string, error) {
			return `{"name":"x"}`, nil
		}})

		_, err := f.loop.Iterate(context.Background(), converterRequest)
		var stageErr *StageError
		require.True(t, errors.As(err, &stageErr), "got %v", err)
		assert.Equal(t, StageRevising, stageErr.Stage)
		var schemaErr *SchemaError
		assert.True(t, errors.As(err, &schemaErr))
		assert.True(t, strings.HasPrefix(err.Error(), "revising: "), err.Error())
	})
}

func TestIterate_CancellationBeforeExecution(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := newLoopFixture(t, 5, codeSequence(t, "v1", "v2", "v3"))
	f.revision.GenerateFunc = func(ctx context.Context, in GenerationInput) (string, error) {
		cancel()
		return recordJSON(t, in.Revision.Tool.Name, "changed"), nil
	}

	result, err := f.loop.Iterate(ctx, converterRequest)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, f.runner.Calls(), "no execution after cancellation")
}

func TestGenerateAndRevise(t *testing.T) {
	f := newLoopFixture(t, 5, codeSequence(t, "revised"))

	direct, err := f.loop.Generate(context.Background(), converterRequest, false)
	require.NoError(t, err)
	assert.Equal(t, "direct-code", direct.Code)

	agent, err := f.loop.Generate(context.Background(), converterRequest, true)
	require.NoError(t, err)
	assert.Equal(t, "v0", agent.Code)

	revised, err := f.loop.Revise(context.Background(), agent.ToolRecord, "example 2 failed")
	require.NoError(t, err)
	assert.Equal(t, "revised", revised.Code)
	assert.Equal(t, "example 2 failed", f.revision.Inputs[0].Revision.Logs)
	assert.Equal(t, 0, f.runner.Calls())
}

func TestLoopStageString(t *testing.T) {
	assert.Equal(t, "converged", StageConverged.String())
	assert.Equal(t, "unknown", LoopStage(99).String())
}

// TestTemperatureConverterEndToEnd drives a direct generation through the
// real chain, parser and formatter, then runs the wrapped tool in-process.
func TestTemperatureConverterEndToEnd(t *testing.T) {
	assets := testAssets(t)
	client := &MockLLMClient{
		CompleteWithSystemFunc: func(ctx context.Context, sys, user string) (string, error) {
			return recordJSON(t, "Temperature Converter", converterCode), nil
		},
	}
	loop := NewOuroborosLoop(client, assets, nil, &MockRunner{}, DefaultOuroborosConfig())

	tool, err := loop.Generate(context.Background(), converterRequest, false)
	require.NoError(t, err)
	assert.Equal(t, "temperature-converter", tool.Slug)
	require.Len(t, client.Prompts, 1)
	assert.Contains(t, client.Prompts[0], `"name": "Temperature Converter"`)

	want := converterRecord()
	want.Description = "Converts temperatures between Celsius and Fahrenheit"
	if diff := cmp.Diff(want, tool.ToolRecord); diff != "" {
		t.Errorf("record mismatch (-want +got):\n%s", diff)
	}

	runner := tactile.NewYaegiRunner(tactile.RunnerOptions{Timeout: 30 * time.Second})
	log, err := runner.Run(context.Background(), tool.WrappedCode)
	require.NoError(t, err)
	assert.Contains(t, log, `{\"fahrenheit\":212}`)
	assert.Contains(t, log, "temperature-converter: 3 examples, 0 failed")
}

func TestIterate_RevisionRenamesToolInCyrillic(t *testing.T) {
	f := newLoopFixture(t, 5, &MockStrategy{GenerateFunc: func(ctx context.Context, in GenerationInput) (string, error) {
		return recordJSON(t, "Конвертер температур", "v1"), nil
	}})

	result, err := f.loop.Iterate(context.Background(), converterRequest)
	require.NoError(t, err)

	assert.Equal(t, StageConverged, result.Outcome)
	assert.Equal(t, 2, result.Iterations)
	assert.Equal(t, "Конвертер температур", result.Tool.Name)
	assert.Equal(t, "konverter-temperatur", result.Tool.Slug)
	assert.Contains(t, result.Tool.WrappedCode, "type KonverterTemperatur struct{}")
}

// TestStubCompletionEndToEnd sends the minimal stub reply through the direct
// strategy, parser and formatter.
func TestStubCompletionEndToEnd(t *testing.T) {
	const reply = `{"name":"Temperature Converter","description":"Converts a temperature between units.","inputSchema":{},"outputSchema":{},"code":"function convert(){}"}`
	client := &MockLLMClient{
		CompleteWithSystemFunc: func(ctx context.Context, sys, user string) (string, error) {
			return reply, nil
		},
	}
	loop := NewOuroborosLoop(client, testAssets(t), nil, &MockRunner{}, DefaultOuroborosConfig())

	req := ToolRequest{Name: "Temperature Converter", Description: "Converts a temperature between units."}
	tool, err := loop.Generate(context.Background(), req, false)
	require.NoError(t, err)

	want := ToolRecord{
		Slug:         "temperature-converter",
		Name:         "Temperature Converter",
		Description:  "Converts a temperature between units.",
		InputSchema:  map[string]any{},
		OutputSchema: map[string]any{},
		Code:         "function convert(){}",
	}
	if diff := cmp.Diff(want, tool.ToolRecord); diff != "" {
		t.Errorf("record mismatch (-want +got):\n%s", diff)
	}
	assert.Contains(t, tool.WrappedCode, "function convert(){}")
	assert.Contains(t, tool.WrappedCode, "type TemperatureConverter struct{}")
}
