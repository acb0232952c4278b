package mcpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/adamlsneed/nps-mcp-server/auth"
	"github.com/adamlsneed/nps-mcp-server/nps"
)

func newTestServer(t *testing.T, handler http.Handler) *Server {
	t.Helper()
	backend := httptest.NewServer(handler)
	t.Cleanup(backend.Close)

	dispatcher, err := auth.NewDispatcher(
		auth.Config{BaseURL: backend.URL, Username: "ops", Password: "pw"},
		auth.DispatcherConfig{},
	)
	if err != nil {
		t.Fatalf("NewDispatcher() error = %v", err)
	}
	tokens := auth.NewTokenSource(dispatcher, nil, auth.TokenSourceConfig{})
	client := nps.NewClient(tokens, nps.ClientConfig{BaseURL: backend.URL})
	return New(tokens, client, Config{Version: "test"})
}

func signinBackend(sessionToken string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/signinBody":
			w.Write([]byte("tok1"))
		case "/signin2fa":
			w.Write([]byte(sessionToken))
		case "/api/v1/Version":
			w.Write([]byte("24.1"))
		default:
			http.NotFound(w, r)
		}
	})
}

func unsignedJWT(t *testing.T, claims map[string]any) string {
	t.Helper()
	header, _ := json.Marshal(map[string]string{"alg": "HS256", "typ": "JWT"})
	payload, err := json.Marshal(claims)
	if err != nil {
		t.Fatalf("encoding claims: %v", err)
	}
	enc := base64.RawURLEncoding
	return enc.EncodeToString(header) + "." + enc.EncodeToString(payload) + "."
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if result == nil || len(result.Content) == 0 {
		t.Fatal("tool result has no content")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content type = %T, want mcp.TextContent", result.Content[0])
	}
	return text.Text
}

func TestAuthStatus_EmptyStore(t *testing.T) {
	srv := newTestServer(t, signinBackend("session-token"))

	result, err := srv.authStatus(context.Background(), mcp.CallToolRequest{})
	if err != nil {
		t.Fatalf("authStatus() error = %v", err)
	}

	var status map[string]any
	if err := json.Unmarshal([]byte(resultText(t, result)), &status); err != nil {
		t.Fatalf("result is not JSON: %v", err)
	}
	if status["cached"] != false {
		t.Errorf("cached = %v, want false", status["cached"])
	}
	if status["strategy"] != "interactive" {
		t.Errorf("strategy = %v, want interactive", status["strategy"])
	}
	if _, present := status["expires_at"]; present {
		t.Error("expires_at reported for an empty store")
	}
}

func TestAuthStatus_CachedToken(t *testing.T) {
	srv := newTestServer(t, signinBackend("session-token"))

	exp := time.Now().Add(time.Hour)
	srv.tokens.SetToken(unsignedJWT(t, map[string]any{
		"exp":  exp.Unix(),
		"sub":  "ops@example.com",
		"role": "Administrator",
	}))

	result, err := srv.authStatus(context.Background(), mcp.CallToolRequest{})
	if err != nil {
		t.Fatalf("authStatus() error = %v", err)
	}

	var status map[string]any
	if err := json.Unmarshal([]byte(resultText(t, result)), &status); err != nil {
		t.Fatalf("result is not JSON: %v", err)
	}
	if status["cached"] != true {
		t.Errorf("cached = %v, want true", status["cached"])
	}
	if status["user"] != "ops@example.com" {
		t.Errorf("user = %v, want ops@example.com", status["user"])
	}
	if status["admin_role"] != true {
		t.Errorf("admin_role = %v, want true", status["admin_role"])
	}
	if status["expires_at"] != exp.UTC().Format(time.RFC3339) {
		t.Errorf("expires_at = %v, want %v", status["expires_at"], exp.UTC().Format(time.RFC3339))
	}
}

func TestWhoami_DecodesClaims(t *testing.T) {
	token := unsignedJWT(t, map[string]any{
		"exp": time.Now().Add(time.Hour).Unix(),
		"sub": "ops@example.com",
	})
	srv := newTestServer(t, signinBackend(token))

	result, err := srv.whoami(context.Background(), mcp.CallToolRequest{})
	if err != nil {
		t.Fatalf("whoami() error = %v", err)
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(resultText(t, result)), &payload); err != nil {
		t.Fatalf("result is not JSON: %v", err)
	}
	if payload["user"] != "ops@example.com" {
		t.Errorf("user = %v, want ops@example.com", payload["user"])
	}
	claims, ok := payload["claims"].(map[string]any)
	if !ok || claims["sub"] != "ops@example.com" {
		t.Errorf("claims = %v, want the decoded token claims", payload["claims"])
	}
}

func TestWhoami_OpaqueToken(t *testing.T) {
	srv := newTestServer(t, signinBackend("opaque-token"))

	result, err := srv.whoami(context.Background(), mcp.CallToolRequest{})
	if err != nil {
		t.Fatalf("whoami() error = %v", err)
	}
	if text := resultText(t, result); !strings.Contains(text, "not a decodable JWT") {
		t.Errorf("result = %q, want a note that the token is opaque", text)
	}
}

func TestVersionTool(t *testing.T) {
	srv := newTestServer(t, signinBackend("session-token"))

	result, err := srv.version(context.Background(), mcp.CallToolRequest{})
	if err != nil {
		t.Fatalf("version() error = %v", err)
	}
	if got := resultText(t, result); got != "24.1" {
		t.Errorf("version = %q, want 24.1", got)
	}
}

func TestSetToken_StoresAndReportsExpiry(t *testing.T) {
	srv := newTestServer(t, signinBackend("session-token"))

	exp := time.Now().Add(time.Hour)
	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]any{
		"token": unsignedJWT(t, map[string]any{"exp": exp.Unix()}),
	}

	result, err := srv.setToken(context.Background(), req)
	if err != nil {
		t.Fatalf("setToken() error = %v", err)
	}
	if text := resultText(t, result); !strings.Contains(text, "expires") {
		t.Errorf("result = %q, want an expiry report", text)
	}

	state, ok := srv.tokens.State()
	if !ok {
		t.Fatal("store is empty after setToken")
	}
	if state.ExpiresAt.IsZero() {
		t.Error("ExpiresAt not derived from the supplied token")
	}
}

func TestSetToken_MissingArgument(t *testing.T) {
	srv := newTestServer(t, signinBackend("session-token"))

	if _, err := srv.setToken(context.Background(), mcp.CallToolRequest{}); err == nil {
		t.Fatal("setToken() error = nil, want missing-argument error")
	}
}

func TestClearToken(t *testing.T) {
	srv := newTestServer(t, signinBackend("session-token"))
	srv.tokens.SetToken("anything")

	result, err := srv.clearToken(context.Background(), mcp.CallToolRequest{})
	if err != nil {
		t.Fatalf("clearToken() error = %v", err)
	}
	if text := resultText(t, result); !strings.Contains(text, "cleared") {
		t.Errorf("result = %q, want a cleared confirmation", text)
	}
	if _, ok := srv.tokens.State(); ok {
		t.Error("state survived clearToken")
	}
}

func TestHandler_ErrorsBecomeToolResults(t *testing.T) {
	srv := newTestServer(t, signinBackend("session-token"))

	failing := srv.handler("failing_tool", func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return nil, errors.New("upstream said no")
	})

	result, err := failing(context.Background(), mcp.CallToolRequest{})
	if err != nil {
		t.Fatalf("handler returned a protocol error: %v", err)
	}
	if result == nil || !result.IsError {
		t.Fatal("result.IsError = false, want an error tool result")
	}
	if text := resultText(t, result); !strings.Contains(text, "upstream said no") {
		t.Errorf("result = %q, want the upstream text preserved", text)
	}
}
