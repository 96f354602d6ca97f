package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"toolsmith/internal/autopoiesis"
	"toolsmith/internal/store"
)

var (
	maxIterations int
	backend       string
)

// iterateCmd runs the full Ouroboros loop
var iterateCmd = &cobra.Command{
	Use:   "iterate",
	Short: "Generate a tool, then run and revise it until it is stable",
	Long: `Runs the Ouroboros loop:
  1. Generate: the model writes a first version (with lookup tools unless
     generation.initial_strategy is direct)
  2. Execute: the wrapped tool runs on its own examples
  3. Revise: the model sees the output and returns a revision
  4. Stop when a revision leaves the code unchanged, or after
     --max-iterations revisions

Exhausting the budget is not an error; the last revision is written.`,
	RunE: runIterate,
}

func init() {
	iterateCmd.Flags().StringVarP(&inputArg, "input", "i", "", "Tool request JSON, file path, or - for stdin (required)")
	iterateCmd.Flags().StringVarP(&outputArg, "output", "o", "", "Write the wrapped tool here (required)")
	iterateCmd.Flags().IntVarP(&maxIterations, "max-iterations", "n", -1, "Revision budget (default from config)")
	iterateCmd.Flags().StringVar(&backend, "backend", "", "Execution backend: docker, local, yaegi (default from config)")
	iterateCmd.MarkFlagRequired("input")
	iterateCmd.MarkFlagRequired("output")
}

func runIterate(cmd *cobra.Command, args []string) error {
	req, err := readRequest(inputArg, cmd.InOrStdin())
	if err != nil {
		return err
	}
	if backend != "" {
		cfg.Execution.Backend = backend
	}
	if maxIterations >= 0 {
		cfg.Generation.MaxIterations = maxIterations
	}

	ctx, cancel := signalContext(context.Background())
	defer cancel()

	a, err := buildApp(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer a.Close()

	var recorder *store.Recorder
	if a.journal != nil {
		recorder, err = a.journal.Record(ctx, req)
		if err != nil {
			logger.Warn("journal disabled for this run", zap.Error(err))
		}
	}

	out := cmd.OutOrStdout()
	observe := func(e autopoiesis.IterationEvent) {
		if verbose {
			traceEvent(cmd.ErrOrStderr(), e)
		}
		if recorder != nil {
			recorder.Observe(e)
		}
	}

	logger.Info("iterating tool",
		zap.String("name", req.Name),
		zap.Int("max_iterations", cfg.Generation.MaxIterations),
		zap.String("backend", a.runner.Name()))

	result, err := a.loop.Iterate(ctx, req, autopoiesis.WithObserver(observe))
	if recorder != nil {
		if ferr := recorder.Finish(result, err); ferr != nil {
			logger.Warn("failed to finish journal run", zap.Error(ferr))
		}
	}
	if err != nil {
		return err
	}

	if err := emitTool(io.Discard, outputArg, &result.Tool); err != nil {
		return err
	}
	runID := ""
	if recorder != nil {
		runID = recorder.RunID()
	}
	fmt.Fprintln(out, renderSummary(result, outputArg, runID))
	return nil
}

// traceEvent prints one stage transition.
func traceEvent(w io.Writer, e autopoiesis.IterationEvent) {
	line := fmt.Sprintf("[%s] %-10s iteration %d", e.Time.Format("15:04:05"), e.Stage, e.Iteration)
	if e.Tool != nil {
		line += " " + e.Tool.Slug
	}
	fmt.Fprintln(w, traceStyle.Render(line))
	if e.Stage == autopoiesis.StageRevising && e.Log != "" {
		fmt.Fprintln(w, logStyle.Render(e.Log))
	}
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
