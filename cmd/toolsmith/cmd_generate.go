package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"toolsmith/internal/autopoiesis"
)

var (
	inputArg  string
	outputArg string
	withAgent bool
)

// generateCmd makes one tool without executing it
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a tool once, without running it",
	Long: `Asks the model for one tool and writes the wrapped source.

--input is a JSON tool request ({"name", "description", "inputSchema",
"outputSchema"}), given inline, as a file path, or as "-" for stdin.

Example:
  toolsmith generate --input request.json --agent --output converter.go`,
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().StringVarP(&inputArg, "input", "i", "", "Tool request JSON, file path, or - for stdin (required)")
	generateCmd.Flags().StringVarP(&outputArg, "output", "o", "", "Write the wrapped tool here instead of stdout")
	generateCmd.Flags().BoolVar(&withAgent, "agent", false, "Let the model consult package indexes and the web")
	generateCmd.MarkFlagRequired("input")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	req, err := readRequest(inputArg, cmd.InOrStdin())
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(context.Background())
	defer cancel()

	a, err := buildApp(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer a.Close()

	logger.Info("generating tool", zap.String("name", req.Name), zap.Bool("agent", withAgent))
	tool, err := a.loop.Generate(ctx, req, withAgent)
	if err != nil {
		return err
	}
	reportWarnings(cmd.ErrOrStderr(), tool.Code)
	return emitTool(cmd.OutOrStdout(), outputArg, tool)
}

// reportWarnings prints static findings about generated code.
func reportWarnings(w io.Writer, code string) {
	for _, warning := range autopoiesis.InspectToolCode(code).Warnings {
		fmt.Fprintln(w, traceStyle.Render("warning: "+warning))
	}
}

// readRequest decodes a tool request given inline, by path, or on stdin.
func readRequest(arg string, stdin io.Reader) (autopoiesis.ToolRequest, error) {
	data, err := readArg(arg, stdin)
	if err != nil {
		return autopoiesis.ToolRequest{}, err
	}
	return autopoiesis.DecodeToolRequest(data)
}

func readArg(arg string, stdin io.Reader) ([]byte, error) {
	switch trimmed := strings.TrimSpace(arg); {
	case trimmed == "":
		return nil, fmt.Errorf("no input given")
	case trimmed == "-":
		return io.ReadAll(stdin)
	case strings.HasPrefix(trimmed, "{"):
		return []byte(trimmed), nil
	default:
		data, err := os.ReadFile(trimmed)
		if err != nil {
			return nil, fmt.Errorf("failed to read input: %w", err)
		}
		return data, nil
	}
}

// emitTool writes the wrapped code to path, or to w when path is empty.
func emitTool(w io.Writer, path string, tool *autopoiesis.FormattedToolRecord) error {
	if path == "" {
		_, err := io.WriteString(w, tool.WrappedCode)
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(tool.WrappedCode), 0644); err != nil {
		return fmt.Errorf("failed to write tool: %w", err)
	}
	fmt.Fprintf(w, "Wrote %s (%s) to %s\n", tool.Name, tool.Slug, path)
	return nil
}
