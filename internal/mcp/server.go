// Package mcp exposes tool generation to MCP clients over stdio.
package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/sync/semaphore"

	"toolsmith/internal/autopoiesis"
	"toolsmith/internal/config"
	"toolsmith/internal/logging"
	"toolsmith/internal/store"
)

// Toolsmith is the part of the Ouroboros loop the server drives.
type Toolsmith interface {
	Generate(ctx context.Context, req autopoiesis.ToolRequest, withAgent bool) (*autopoiesis.FormattedToolRecord, error)
	Revise(ctx context.Context, tool autopoiesis.ToolRecord, logs string) (*autopoiesis.FormattedToolRecord, error)
	Iterate(ctx context.Context, req autopoiesis.ToolRequest, opts ...autopoiesis.IterateOption) (*autopoiesis.IterationResult, error)
}

// GenerateArgs are the arguments of generate_tool.
type GenerateArgs struct {
	Name         string         `json:"name" jsonschema:"human readable tool name"`
	Description  string         `json:"description" jsonschema:"what the tool does"`
	InputSchema  map[string]any `json:"inputSchema,omitempty" jsonschema:"JSON schema of the tool input"`
	OutputSchema map[string]any `json:"outputSchema,omitempty" jsonschema:"JSON schema of the tool output"`
	Agent        bool           `json:"agent,omitempty" jsonschema:"let the model consult package indexes and the web"`
}

// IterateArgs are the arguments of iterate_tool.
type IterateArgs struct {
	Name          string         `json:"name" jsonschema:"human readable tool name"`
	Description   string         `json:"description" jsonschema:"what the tool does"`
	InputSchema   map[string]any `json:"inputSchema,omitempty" jsonschema:"JSON schema of the tool input"`
	OutputSchema  map[string]any `json:"outputSchema,omitempty" jsonschema:"JSON schema of the tool output"`
	MaxIterations *int           `json:"max_iterations,omitempty" jsonschema:"revision budget for this run"`
}

// ReviseArgs are the arguments of revise_tool.
type ReviseArgs struct {
	Tool autopoiesis.ToolRecord `json:"tool" jsonschema:"the tool record to revise"`
	Logs string                 `json:"logs" jsonschema:"output of the last run of the tool"`
}

// ToolOutput is the structured result of every tool.
type ToolOutput struct {
	Slug        string   `json:"slug"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Code        string   `json:"code"`
	Outcome     string   `json:"outcome,omitempty"`
	Iterations  int      `json:"iterations,omitempty"`
	RunID       string   `json:"run_id,omitempty"`
	Warnings    []string `json:"warnings,omitempty"` // static findings about Code
}

// Server serves generate_tool, iterate_tool and revise_tool.
type Server struct {
	loop    Toolsmith
	journal *store.IterationStore
	runs    *semaphore.Weighted
	server  *mcp.Server
}

// NewServer registers the tools on a new MCP server. journal may be nil.
func NewServer(loop Toolsmith, cfg config.MCPConfig, version string, journal *store.IterationStore) *Server {
	limit := cfg.MaxConcurrentRuns
	if limit <= 0 {
		limit = 1
	}
	name := cfg.ServerName
	if name == "" {
		name = "toolsmith"
	}

	s := &Server{
		loop:    loop,
		journal: journal,
		runs:    semaphore.NewWeighted(int64(limit)),
		server:  mcp.NewServer(&mcp.Implementation{Name: name, Version: version}, nil),
	}

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "generate_tool",
		Description: "Generate a Go tool from a name, a description and optional JSON schemas. Returns the wrapped tool source.",
	}, s.generate)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "iterate_tool",
		Description: "Generate a Go tool, then run and revise it until the code stops changing or the revision budget is spent.",
	}, s.iterate)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "revise_tool",
		Description: "Revise a generated tool given the output of its last run.",
	}, s.revise)

	logging.MCP("MCP server %s ready (max %d concurrent runs)", name, limit)
	return s
}

// MCPServer returns the underlying SDK server.
func (s *Server) MCPServer() *mcp.Server { return s.server }

// Run serves over stdin/stdout until ctx is done or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	logging.MCP("serving on stdio")
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) acquire(ctx context.Context) (func(), error) {
	if err := s.runs.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return func() { s.runs.Release(1) }, nil
}

func (s *Server) generate(ctx context.Context, _ *mcp.CallToolRequest, args GenerateArgs) (*mcp.CallToolResult, ToolOutput, error) {
	req := autopoiesis.ToolRequest{
		Name:         args.Name,
		Description:  args.Description,
		InputSchema:  args.InputSchema,
		OutputSchema: args.OutputSchema,
	}
	if err := req.Validate(); err != nil {
		return nil, ToolOutput{}, err
	}
	release, err := s.acquire(ctx)
	if err != nil {
		return nil, ToolOutput{}, err
	}
	defer release()

	logging.MCPDebug("generate_tool %q (agent=%v)", req.Name, args.Agent)
	tool, err := s.loop.Generate(ctx, req, args.Agent)
	if err != nil {
		logging.MCPWarn("generate_tool %q failed: %v", req.Name, err)
		return nil, ToolOutput{}, err
	}
	return textResult(tool), outputOf(tool), nil
}

func (s *Server) revise(ctx context.Context, _ *mcp.CallToolRequest, args ReviseArgs) (*mcp.CallToolResult, ToolOutput, error) {
	if args.Tool.Code == "" {
		return nil, ToolOutput{}, fmt.Errorf("tool.code is required")
	}
	release, err := s.acquire(ctx)
	if err != nil {
		return nil, ToolOutput{}, err
	}
	defer release()

	logging.MCPDebug("revise_tool %q", args.Tool.Slug)
	tool, err := s.loop.Revise(ctx, args.Tool, args.Logs)
	if err != nil {
		logging.MCPWarn("revise_tool %q failed: %v", args.Tool.Slug, err)
		return nil, ToolOutput{}, err
	}
	return textResult(tool), outputOf(tool), nil
}

func (s *Server) iterate(ctx context.Context, _ *mcp.CallToolRequest, args IterateArgs) (*mcp.CallToolResult, ToolOutput, error) {
	req := autopoiesis.ToolRequest{
		Name:         args.Name,
		Description:  args.Description,
		InputSchema:  args.InputSchema,
		OutputSchema: args.OutputSchema,
	}
	if err := req.Validate(); err != nil {
		return nil, ToolOutput{}, err
	}
	release, err := s.acquire(ctx)
	if err != nil {
		return nil, ToolOutput{}, err
	}
	defer release()

	var opts []autopoiesis.IterateOption
	if args.MaxIterations != nil {
		opts = append(opts, autopoiesis.WithMaxIterations(*args.MaxIterations))
	}

	var recorder *store.Recorder
	if s.journal != nil {
		recorder, err = s.journal.Record(ctx, req)
		if err != nil {
			logging.MCPWarn("journal unavailable for %q: %v", req.Name, err)
		}
	}
	opts = append(opts, autopoiesis.WithObserver(func(e autopoiesis.IterationEvent) {
		logging.MCPDebug("iterate_tool %q: %s (iteration %d)", req.Name, e.Stage, e.Iteration)
		if recorder != nil {
			recorder.Observe(e)
		}
	}))

	result, err := s.loop.Iterate(ctx, req, opts...)
	if recorder != nil {
		if ferr := recorder.Finish(result, err); ferr != nil {
			logging.MCPWarn("journal finish for %q: %v", req.Name, ferr)
		}
	}
	if err != nil {
		logging.MCPWarn("iterate_tool %q failed: %v", req.Name, err)
		return nil, ToolOutput{}, err
	}

	out := outputOf(&result.Tool)
	out.Outcome = result.Outcome.String()
	out.Iterations = result.Iterations
	if recorder != nil {
		out.RunID = recorder.RunID()
	}
	logging.MCP("iterate_tool %q %s after %d iteration(s)", req.Name, out.Outcome, out.Iterations)
	return textResult(&result.Tool), out, nil
}

func textResult(tool *autopoiesis.FormattedToolRecord) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: tool.WrappedCode}},
	}
}

func outputOf(tool *autopoiesis.FormattedToolRecord) ToolOutput {
	return ToolOutput{
		Slug:        tool.Slug,
		Name:        tool.Name,
		Description: tool.Description,
		Code:        tool.Code,
		Warnings:    autopoiesis.InspectToolCode(tool.Code).Warnings,
	}
}
