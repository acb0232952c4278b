// Package mcpserver exposes the NPS proxy as MCP tools over the stdio
// transport. The protocol occupies stdin/stdout for the life of the process;
// every diagnostic goes to stderr through the observe logger.
package mcpserver

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/adamlsneed/nps-mcp-server/auth"
	"github.com/adamlsneed/nps-mcp-server/nps"
	"github.com/adamlsneed/nps-mcp-server/observe"
)

// Config carries the server's collaborators.
type Config struct {
	// Version is reported to clients during initialize.
	Version string

	// Logger receives tool call diagnostics. Default: no-op.
	Logger observe.Logger

	// Metrics records tool call durations. Optional.
	Metrics *observe.AuthMetrics
}

// Server wires the auth core and API client into an MCP tool surface.
type Server struct {
	mcp     *server.MCPServer
	tokens  *auth.TokenSource
	client  *nps.Client
	logger  observe.Logger
	metrics *observe.AuthMetrics
}

// New creates the server and registers its tools.
func New(tokens *auth.TokenSource, client *nps.Client, cfg Config) *Server {
	// Apply defaults
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	if cfg.Logger == nil {
		cfg.Logger = observe.NopLogger()
	}

	s := &Server{
		mcp: server.NewMCPServer("nps-mcp-server", cfg.Version,
			server.WithToolCapabilities(true),
		),
		tokens:  tokens,
		client:  client,
		logger:  cfg.Logger.WithComponent("mcpserver"),
		metrics: cfg.Metrics,
	}
	s.registerTools()
	return s
}

// ServeStdio blocks, serving the MCP protocol on stdin/stdout until the
// client disconnects.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// handler adapts a tool function with logging and duration metrics.
func (s *Server) handler(name string, fn func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		result, err := fn(ctx, req)
		s.metrics.RecordToolCall(ctx, name, time.Since(start), err)
		if err != nil {
			s.logger.Error(ctx, "tool call failed",
				observe.F("tool", name),
				observe.F("error", err.Error()),
			)
			// Tool-level failures go back as tool results, not protocol
			// errors, so the client can show the upstream text.
			return mcp.NewToolResultError(err.Error()), nil
		}
		s.logger.Debug(ctx, "tool call completed",
			observe.F("tool", name),
			observe.F("duration_ms", time.Since(start).Milliseconds()),
		)
		return result, nil
	}
}
