package main

import (
	"context"

	"github.com/spf13/cobra"

	"toolsmith/internal/mcp"
)

// serveCmd exposes the loop as MCP tools over stdio
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve generate_tool, iterate_tool and revise_tool over MCP stdio",
	Long: `Starts an MCP server on stdin/stdout. Configure it in an MCP client as:

  {"command": "toolsmith", "args": ["serve"]}

Stdout carries the protocol; use --verbose or logging.dir for diagnostics.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(context.Background())
	defer cancel()

	a, err := buildApp(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer a.Close()

	return mcp.NewServer(a.loop, cfg.MCP, cfg.Version, a.journal).Run(ctx)
}
