package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"toolsmith/internal/autopoiesis"
	"toolsmith/internal/config"
	"toolsmith/internal/tactile"
	"toolsmith/internal/types"
)

const converterCode = `package main

import "strconv"

func Run(input string) (string, error) {
	c, err := strconv.ParseFloat(input, 64)
	if err != nil {
		return "", err
	}
	return strconv.FormatFloat(c*9/5+32, 'f', -1, 64), nil
}

func Examples() []string { return []string{"0", "100"} }
`

const requestJSON = `{"name":"Temperature Converter","description":"Converts Celsius to Fahrenheit"}`

// scriptedClient answers every completion with the same tool record.
type scriptedClient struct {
	record     string
	toolCalls  int
	directCall int
}

func (c *scriptedClient) Complete(ctx context.Context, prompt string) (string, error) {
	return c.record, nil
}

func (c *scriptedClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	c.directCall++
	return c.record, nil
}

func (c *scriptedClient) CompleteWithTools(ctx context.Context, systemPrompt string, history []types.Message, tools []types.ToolDefinition) (*types.LLMToolResponse, error) {
	c.toolCalls++
	return &types.LLMToolResponse{Text: c.record, StopReason: "end_turn"}, nil
}

type stubRunner struct{ runs int }

func (r *stubRunner) Name() string { return "stub" }

func (r *stubRunner) Run(ctx context.Context, code string) (string, error) {
	r.runs++
	return "temperature-converter: 2 examples, 0 failed\n", nil
}

func recordJSON(t *testing.T) string {
	t.Helper()
	data, err := json.Marshal(map[string]any{
		"name":         "Temperature Converter",
		"description":  "Converts Celsius to Fahrenheit",
		"inputSchema":  map[string]any{"type": "string"},
		"outputSchema": map[string]any{"type": "string"},
		"code":         converterCode,
	})
	require.NoError(t, err)
	return string(data)
}

// setup swaps the client and runner factories and resets global flags.
func setup(t *testing.T) (*scriptedClient, *stubRunner) {
	t.Helper()
	client := &scriptedClient{record: recordJSON(t)}
	runner := &stubRunner{}

	origClient, origRunner := newLLMClient, newRunner
	newLLMClient = func(ctx context.Context, c *config.Config) (types.LLMClient, error) { return client, nil }
	newRunner = func(c *config.Config, diagnostics io.Writer) (tactile.Runner, error) { return runner, nil }
	t.Cleanup(func() { newLLMClient, newRunner = origClient, origRunner })

	t.Setenv("TOOLSMITH_JOURNAL", "")
	configPath, verbose, apiKey, modelName, workspace = "", false, "", "", ""
	inputArg, outputArg, withAgent = "", "", false
	maxIterations, backend = -1, ""
	toolArg, logsArg = "", ""
	runsLimit, pruneKeep = 20, -1
	return client, runner
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(""))
	base := []string{"--config", filepath.Join(t.TempDir(), "missing.yaml"), "--api-key", "test-key"}
	rootCmd.SetArgs(append(args, base...))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestReadArg(t *testing.T) {
	path := filepath.Join(t.TempDir(), "req.json")
	require.NoError(t, os.WriteFile(path, []byte(requestJSON), 0644))

	data, err := readArg(requestJSON, nil)
	require.NoError(t, err)
	assert.JSONEq(t, requestJSON, string(data))

	data, err = readArg(path, nil)
	require.NoError(t, err)
	assert.JSONEq(t, requestJSON, string(data))

	data, err = readArg("-", strings.NewReader(requestJSON))
	require.NoError(t, err)
	assert.JSONEq(t, requestJSON, string(data))

	_, err = readArg("  ", nil)
	assert.Error(t, err)
	_, err = readArg(filepath.Join(t.TempDir(), "nope.json"), nil)
	assert.Error(t, err)
}

func TestReadRequestRejectsIncompleteRequests(t *testing.T) {
	_, err := readRequest(`{"name":"T"}`, nil)
	assert.ErrorContains(t, err, "description is required")

	_, err = readRequest(`{"name":`, nil)
	assert.Error(t, err)
}

func TestGenerateCommand(t *testing.T) {
	client, runner := setup(t)

	out, err := execute(t, "generate", "--input", requestJSON)
	require.NoError(t, err)
	assert.Contains(t, out, "type TemperatureConverter struct{}")
	assert.Contains(t, out, "func Run(input string) (string, error)")
	assert.Equal(t, 1, client.directCall)
	assert.Equal(t, 0, client.toolCalls)
	assert.Equal(t, 0, runner.runs, "generate never executes")
}

func TestGenerateCommandWritesOutput(t *testing.T) {
	client, _ := setup(t)
	path := filepath.Join(t.TempDir(), "tools", "converter.go")

	out, err := execute(t, "generate", "--input", requestJSON, "--agent", "--output", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote Temperature Converter (temperature-converter) to "+path)
	assert.Equal(t, 1, client.toolCalls)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Code generated by toolsmith")
}

func TestGenerateCommandRequiresCredential(t *testing.T) {
	setup(t)
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{"generate", "--input", requestJSON, "--config", filepath.Join(t.TempDir(), "missing.yaml")})
	err := rootCmd.Execute()
	assert.ErrorContains(t, err, "API key not configured")
}

func TestIterateCommandJournalsRun(t *testing.T) {
	_, runner := setup(t)
	dir := t.TempDir()
	t.Setenv("TOOLSMITH_JOURNAL", filepath.Join(dir, "journal.db"))
	path := filepath.Join(dir, "converter.go")

	out, err := execute(t, "iterate", "--input", requestJSON, "--output", path, "--max-iterations", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "converged")
	assert.Contains(t, out, "temperature-converter")
	assert.Equal(t, 1, runner.runs)
	assert.FileExists(t, path)

	out, err = execute(t, "runs")
	require.NoError(t, err)
	assert.Contains(t, out, "converged")
	assert.Contains(t, out, "1 run(s)")
}

func TestIterateCommandZeroBudget(t *testing.T) {
	client, runner := setup(t)
	path := filepath.Join(t.TempDir(), "converter.go")

	out, err := execute(t, "iterate", "--input", requestJSON, "--output", path, "--max-iterations", "0")
	require.NoError(t, err)
	assert.Contains(t, out, "exhausted")
	assert.Equal(t, 0, runner.runs)
	assert.Equal(t, 1, client.toolCalls, "only the initial generation")
}

func TestIterateCommandRejectsUnknownBackend(t *testing.T) {
	setup(t)
	path := filepath.Join(t.TempDir(), "converter.go")

	_, err := execute(t, "iterate", "--input", requestJSON, "--output", path, "--backend", "podman")
	assert.Error(t, err)
	assert.NoFileExists(t, path)
}

func TestReviseCommand(t *testing.T) {
	client, _ := setup(t)
	dir := t.TempDir()
	logs := filepath.Join(dir, "run.log")
	require.NoError(t, os.WriteFile(logs, []byte("undefined: Examples"), 0644))

	out, err := execute(t, "revise", "--tool", recordJSON(t), "--logs", logs)
	require.NoError(t, err)
	assert.Contains(t, out, "type TemperatureConverter struct{}")
	assert.Equal(t, 1, client.toolCalls)

	_, err = execute(t, "revise", "--tool", `{"name":"x"}`)
	assert.ErrorContains(t, err, "invalid tool record")
}

func TestRunsCommandRequiresJournal(t *testing.T) {
	setup(t)
	_, err := execute(t, "runs")
	assert.ErrorContains(t, err, "journal not configured")
}

func TestRenderSummary(t *testing.T) {
	result := &autopoiesis.IterationResult{
		Tool: autopoiesis.FormattedToolRecord{ToolRecord: autopoiesis.ToolRecord{
			Slug: "temperature-converter",
			Name: "Temperature Converter",
		}},
		Outcome:    autopoiesis.StageExhausted,
		Iterations: 5,
		Duration:   1500 * time.Millisecond,
	}
	s := renderSummary(result, "out/converter.go", "run-1")
	for _, want := range []string{"Temperature Converter (temperature-converter)", "exhausted", "5", "1.5s", "out/converter.go", "run-1"} {
		assert.Contains(t, s, want)
	}
}
