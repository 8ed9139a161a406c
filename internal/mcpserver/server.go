// Package mcpserver exposes the stream normalizer and the evaluation history
// as MCP tools over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/reviewmeeting/review/internal/history"
	"github.com/reviewmeeting/review/internal/stream"
)

// Name is the server name announced to MCP clients.
const Name = "review"

// Options configures a Server.
type Options struct {
	// DBPath is the backend database. list_evaluations fails when empty.
	DBPath string

	// Stream is the base configuration for normalize_stream.
	Stream stream.Options

	Logger *slog.Logger
}

// Server wraps an MCP server with the review tools registered.
type Server struct {
	mcp    *server.MCPServer
	opts   Options
	logger *slog.Logger
}

// New creates a Server and registers its tools.
func New(version string, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		mcp:    server.NewMCPServer(Name, version, server.WithToolCapabilities(false)),
		opts:   opts,
		logger: logger.With("component", "mcp"),
	}

	s.mcp.AddTool(mcp.NewTool("normalize_stream",
		mcp.WithDescription("Run an NDJSON evaluation stream through the classifier and return the final state and line statistics as JSON."),
		mcp.WithString("ndjson", mcp.Required(), mcp.Description("The raw NDJSON evaluation stream.")),
		mcp.WithBoolean("flush_trailing", mcp.Description("Parse an unterminated last line instead of dropping it.")),
	), s.handleNormalize)

	s.mcp.AddTool(mcp.NewTool("list_evaluations",
		mcp.WithDescription("List the stored evaluations of a user, oldest first, with the five scores and the summary."),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("The presenter's user id.")),
	), s.handleListEvaluations)

	return s
}

// ServeStdio serves MCP over stdin and stdout until the client disconnects.
func (s *Server) ServeStdio() error {
	s.logger.Info("serving mcp over stdio")
	return server.ServeStdio(s.mcp)
}

// normalized is the normalize_stream result.
type normalized struct {
	State stream.State `json:"state"`
	Stats stream.Stats `json:"stats"`
}

func (s *Server) handleNormalize(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ndjson, err := req.RequireString("ndjson")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	opts := s.opts.Stream
	opts.FlushTrailing = req.GetBool("flush_trailing", opts.FlushTrailing)
	opts.OnUpdate = nil
	if opts.Logger == nil {
		opts.Logger = s.logger
	}

	p := stream.NewPipeline(opts)
	p.Feed([]byte(ndjson))
	p.Finish()

	return jsonResult(normalized{State: p.Snapshot(), Stats: p.Stats()})
}

func (s *Server) handleListEvaluations(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, err := req.RequireString("user_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if s.opts.DBPath == "" {
		return mcp.NewToolResultError("history database not configured (set db_path or REVIEW_DB_PATH)"), nil
	}

	store, err := history.Open(s.opts.DBPath)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	defer store.Close()

	evals, err := store.ResultsForUser(userID)
	if err != nil {
		s.logger.Warn("list evaluations", "user_id", userID, "error", err)
		return mcp.NewToolResultError(err.Error()), nil
	}
	if evals == nil {
		evals = []history.Evaluation{}
	}
	return jsonResult(evals)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
