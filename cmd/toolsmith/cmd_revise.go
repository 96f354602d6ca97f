package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"toolsmith/internal/autopoiesis"
)

var (
	toolArg string
	logsArg string
)

// reviseCmd asks for one revision of an existing tool record
var reviseCmd = &cobra.Command{
	Use:   "revise",
	Short: "Revise a tool record once, given the output of its last run",
	Long: `Sends a tool record and an execution log to the model and writes the
revised, wrapped tool. Nothing is executed.

--tool is a JSON tool record ({"name", "description", "inputSchema",
"outputSchema", "code"}), inline, by path, or "-" for stdin. --logs is a file
path, or "-" for stdin.`,
	RunE: runRevise,
}

func init() {
	reviseCmd.Flags().StringVarP(&toolArg, "tool", "t", "", "Tool record JSON, file path, or - for stdin (required)")
	reviseCmd.Flags().StringVarP(&logsArg, "logs", "l", "", "Execution log file, or - for stdin")
	reviseCmd.Flags().StringVarP(&outputArg, "output", "o", "", "Write the wrapped tool here instead of stdout")
	reviseCmd.MarkFlagRequired("tool")
}

func runRevise(cmd *cobra.Command, args []string) error {
	if toolArg == "-" && logsArg == "-" {
		return fmt.Errorf("--tool and --logs cannot both read stdin")
	}
	data, err := readArg(toolArg, cmd.InOrStdin())
	if err != nil {
		return err
	}
	tool, err := autopoiesis.ParseToolRecord(string(data))
	if err != nil {
		return fmt.Errorf("invalid tool record: %w", err)
	}

	var logs string
	if logsArg != "" {
		raw, err := readArg(logsArg, cmd.InOrStdin())
		if err != nil {
			return err
		}
		logs = string(raw)
	}

	ctx, cancel := signalContext(context.Background())
	defer cancel()

	a, err := buildApp(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer a.Close()

	logger.Info("revising tool", zap.String("slug", tool.Slug), zap.Int("log_bytes", len(logs)))
	revised, err := a.loop.Revise(ctx, *tool, logs)
	if err != nil {
		return err
	}
	reportWarnings(cmd.ErrOrStderr(), revised.Code)
	return emitTool(cmd.OutOrStdout(), outputArg, revised)
}
