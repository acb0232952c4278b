// Package nps is the authenticated HTTP client for the Netwrix Privilege
// Secure REST API. It injects bearer tokens from the auth core and owns the
// 401 recovery rule: invalidate the cached token and retry exactly once with
// a freshly obtained one.
package nps

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/adamlsneed/nps-mcp-server/auth"
	"github.com/adamlsneed/nps-mcp-server/observe"
	"github.com/adamlsneed/nps-mcp-server/resilience"
)

// Client calls the API with a managed bearer token.
type Client struct {
	baseURL   string
	tokens    *auth.TokenSource
	requester *resilience.Requester
	logger    observe.Logger
}

// ClientConfig carries the client's collaborators.
type ClientConfig struct {
	// BaseURL is the API root. Default: the token source's base URL is not
	// visible here, so this field is required.
	BaseURL string

	// Requester issues the network calls. Default: a requester with default
	// retry policy.
	Requester *resilience.Requester

	// Logger receives request diagnostics. Default: no-op.
	Logger observe.Logger
}

// NewClient creates an authenticated API client.
func NewClient(tokens *auth.TokenSource, cfg ClientConfig) *Client {
	// Apply defaults
	if cfg.Requester == nil {
		cfg.Requester = resilience.NewRequester(resilience.RequesterConfig{})
	}
	if cfg.Logger == nil {
		cfg.Logger = observe.NopLogger()
	}

	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		tokens:    tokens,
		requester: cfg.Requester,
		logger:    cfg.Logger.WithComponent("nps.client"),
	}
}

// Get issues an authenticated GET and returns the response body. A 401
// invalidates the cached token and the call is retried once with a fresh one;
// any other non-2xx status is surfaced with its body verbatim.
func (c *Client) Get(ctx context.Context, path string) (string, error) {
	body, err := c.do(ctx, http.MethodGet, path, true)
	if err != nil {
		return "", err
	}
	return body, nil
}

func (c *Client) do(ctx context.Context, method, path string, retryAuth bool) (string, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return "", fmt.Errorf("nps: building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.requester.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("nps: reading response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized && retryAuth {
		// The cached token was rejected upstream. Drop it and retry exactly
		// once with a freshly obtained one.
		c.logger.Debug(ctx, "401 from api; invalidating cached token", observe.F("path", path))
		c.tokens.Invalidate()
		return c.do(ctx, method, path, false)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &auth.RequestError{Status: resp.StatusCode, Body: string(data)}
	}
	return string(data), nil
}

// Version returns the server version from the probe endpoint.
func (c *Client) Version(ctx context.Context) (string, error) {
	return c.Get(ctx, "/api/v1/Version")
}
