package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/adamlsneed/nps-mcp-server/resilience"
)

// SigninFlow executes the two-step sign-in exchange. The two operations are
// independent: the apikey strategy uses only the first, the interactive
// strategies chain both.
type SigninFlow struct {
	baseURL   string
	requester *resilience.Requester
}

// NewSigninFlow creates a sign-in flow against the given API base URL.
func NewSigninFlow(baseURL string, requester *resilience.Requester) *SigninFlow {
	return &SigninFlow{
		baseURL:   strings.TrimRight(baseURL, "/"),
		requester: requester,
	}
}

// InitialSignin posts credentials to /signinBody and returns the raw token.
// The apikey strategy carries the API key in the password slot.
func (f *SigninFlow) InitialSignin(ctx context.Context, login, secret string) (string, error) {
	payload, err := json.Marshal(map[string]string{
		"Login":    login,
		"Password": secret,
	})
	if err != nil {
		return "", fmt.Errorf("auth: encoding signin body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.baseURL+"/signinBody", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("auth: building signin request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return f.tokenResponse(req)
}

// CompleteSignin posts the one-time code to /signin2fa, presenting the token
// from InitialSignin as the bearer credential, and returns the session token.
func (f *SigninFlow) CompleteSignin(ctx context.Context, initialToken, code string) (string, error) {
	// The endpoint expects the code as a JSON-encoded string body.
	payload, err := json.Marshal(code)
	if err != nil {
		return "", fmt.Errorf("auth: encoding MFA code: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.baseURL+"/signin2fa", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("auth: building signin2fa request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+initialToken)

	return f.tokenResponse(req)
}

// tokenResponse reads a token body, unquoting one layer of JSON-string quotes
// when present. Non-2xx responses surface status and body verbatim.
func (f *SigninFlow) tokenResponse(req *http.Request) (string, error) {
	resp, err := f.requester.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("auth: reading signin response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &RequestError{Status: resp.StatusCode, Body: string(data)}
	}
	return unquote(string(data)), nil
}
