package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"toolsmith/internal/store"
)

var (
	runsLimit int
	pruneKeep int
)

// runsCmd reads the iteration journal
var runsCmd = &cobra.Command{
	Use:   "runs [run-id]",
	Short: "List journaled iterate runs, or show the steps of one run",
	Long: `Reads the SQLite journal configured by journal.database_path
(or TOOLSMITH_JOURNAL).

Examples:
  toolsmith runs                 # newest runs
  toolsmith runs <run-id>        # every stage of one run
  toolsmith runs --prune 50      # keep only the newest 50 runs`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRuns,
}

func init() {
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "Number of runs to list")
	runsCmd.Flags().IntVar(&pruneKeep, "prune", -1, "Delete all but the newest N runs")
}

func runRuns(cmd *cobra.Command, args []string) error {
	if cfg.Journal.DatabasePath == "" {
		return fmt.Errorf("journal not configured (set journal.database_path or TOOLSMITH_JOURNAL)")
	}
	journal, err := store.NewIterationStore(cfg.Journal.DatabasePath)
	if err != nil {
		return err
	}
	defer journal.Close()

	ctx := context.Background()
	out := cmd.OutOrStdout()

	if pruneKeep >= 0 {
		n, err := journal.Prune(ctx, pruneKeep)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Pruned %d run(s)\n", n)
		return nil
	}

	if len(args) == 1 {
		return showRun(ctx, cmd, journal, args[0])
	}

	runs, err := journal.Runs(ctx, runsLimit)
	if err != nil {
		return err
	}
	stats, err := journal.GetStats(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, renderRuns(runs))
	fmt.Fprintf(out, "\n%d run(s), %d step(s): %v\n", stats.TotalRuns, stats.Steps, stats.ByOutcome)
	return nil
}

func showRun(ctx context.Context, cmd *cobra.Command, journal *store.IterationStore, id string) error {
	run, err := journal.GetRun(ctx, id)
	if err != nil {
		return err
	}
	steps, err := journal.Steps(ctx, id)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, renderRuns([]store.Run{*run}))
	fmt.Fprintf(out, "request: %s\n", run.RequestJSON)
	if run.Error != "" {
		fmt.Fprintf(out, "error: %s\n", run.Error)
	}
	for _, st := range steps {
		fmt.Fprintf(out, "  %s  %-10s iteration %d %s\n", st.CreatedAt.Format("15:04:05.000"), st.Stage, st.Iteration, st.Slug)
		if verbose && st.Log != "" {
			fmt.Fprintln(out, logStyle.Render(st.Log))
		}
	}
	return nil
}
