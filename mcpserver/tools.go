package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/adamlsneed/nps-mcp-server/auth"
)

func (s *Server) registerTools() {
	s.mcp.AddTool(
		mcp.NewTool("nps_auth_status",
			mcp.WithDescription("Show the active authentication strategy and the cached token's lifetime"),
		),
		s.handler("nps_auth_status", s.authStatus),
	)

	s.mcp.AddTool(
		mcp.NewTool("nps_whoami",
			mcp.WithDescription("Show the decoded claims of the active bearer token"),
		),
		s.handler("nps_whoami", s.whoami),
	)

	s.mcp.AddTool(
		mcp.NewTool("nps_version",
			mcp.WithDescription("Report the NPS server version (authenticated probe)"),
		),
		s.handler("nps_version", s.version),
	)

	s.mcp.AddTool(
		mcp.NewTool("nps_set_token",
			mcp.WithDescription("Replace the cached bearer token with a supplied one"),
			mcp.WithString("token",
				mcp.Required(),
				mcp.Description("Bearer token text; surrounding JSON quotes are stripped"),
			),
		),
		s.handler("nps_set_token", s.setToken),
	)

	s.mcp.AddTool(
		mcp.NewTool("nps_clear_token",
			mcp.WithDescription("Drop the cached bearer token so the next call reauthenticates"),
		),
		s.handler("nps_clear_token", s.clearToken),
	)
}

func (s *Server) authStatus(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status := map[string]any{
		"strategy": string(s.tokens.Strategy()),
		"cached":   false,
	}
	if state, ok := s.tokens.State(); ok {
		status["cached"] = true
		status["acquired_at"] = state.AcquiredAt.UTC().Format(time.RFC3339)
		status["user"] = auth.Username(state.Token)
		status["admin_role"] = auth.HasAdminRole(state.Token)
		if state.ExpiresAt.IsZero() {
			status["expires_at"] = "unknown (token carries no exp claim)"
		} else {
			status["expires_at"] = state.ExpiresAt.UTC().Format(time.RFC3339)
			status["remaining"] = time.Until(state.ExpiresAt).Round(time.Second).String()
		}
	}
	return jsonResult(status)
}

func (s *Server) whoami(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	token, err := s.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}
	claims := auth.DecodeClaims(token)
	if claims == nil {
		return mcp.NewToolResultText("active token is not a decodable JWT"), nil
	}
	return jsonResult(map[string]any{
		"user":       auth.Username(token),
		"admin_role": auth.HasAdminRole(token),
		"claims":     claims,
	})
}

func (s *Server) version(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	version, err := s.client.Version(ctx)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(version), nil
}

func (s *Server) setToken(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	token, err := req.RequireString("token")
	if err != nil {
		return nil, err
	}
	state := s.tokens.SetToken(token)
	if state.ExpiresAt.IsZero() {
		return mcp.NewToolResultText("token stored; no exp claim, refresh deferred to 401 handling"), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("token stored; expires %s", state.ExpiresAt.UTC().Format(time.RFC3339))), nil
}

func (s *Server) clearToken(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.tokens.Invalidate()
	return mcp.NewToolResultText("cached token cleared"), nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcpserver: encoding result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
