package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/adamlsneed/nps-mcp-server/observe"
	"github.com/adamlsneed/nps-mcp-server/resilience"
)

// DispatcherConfig carries the dispatcher's collaborators. Zero values get
// sensible defaults.
type DispatcherConfig struct {
	// Store receives the token on every successful authenticate.
	// If nil, a fresh store is created.
	Store *TokenStore

	// Requester issues the network calls.
	// If nil, a requester with default retry policy is used.
	Requester *resilience.Requester

	// Prompt acquires one-time codes for the interactive-prompt strategy.
	// Default: TerminalPrompt on /dev/tty.
	Prompt CodePrompt

	// Logger receives lifecycle diagnostics. Default: no-op.
	Logger observe.Logger

	// Metrics counts authenticate attempts and prompt failures. Optional.
	Metrics *observe.AuthMetrics
}

// Dispatcher selects and executes exactly one login strategy. The strategy is
// derived once, at construction, from which credential fields are populated;
// no branch ever falls back to another strategy.
type Dispatcher struct {
	config   Config
	strategy Strategy

	store     *TokenStore
	requester *resilience.Requester
	signin    *SigninFlow
	prompt    CodePrompt
	logger    observe.Logger
	metrics   *observe.AuthMetrics
}

// NewDispatcher derives the active strategy from cfg and wires the sub-flows.
// A configuration with no usable credentials is a fatal error here, not at
// first use.
func NewDispatcher(cfg Config, deps DispatcherConfig) (*Dispatcher, error) {
	strategy, err := cfg.SelectStrategy()
	if err != nil {
		return nil, err
	}

	// Apply defaults
	if cfg.MFACode == "" {
		cfg.MFACode = DefaultMFACode
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if deps.Store == nil {
		deps.Store = NewTokenStore()
	}
	if deps.Requester == nil {
		deps.Requester = resilience.NewRequester(resilience.RequesterConfig{})
	}
	if deps.Prompt == nil {
		deps.Prompt = &TerminalPrompt{}
	}
	if deps.Logger == nil {
		deps.Logger = observe.NopLogger()
	}

	return &Dispatcher{
		config:    cfg,
		strategy:  strategy,
		store:     deps.Store,
		requester: deps.Requester,
		signin:    NewSigninFlow(cfg.BaseURL, deps.Requester),
		prompt:    deps.Prompt,
		logger:    deps.Logger.WithComponent("auth.dispatcher"),
		metrics:   deps.Metrics,
	}, nil
}

// Strategy returns the active strategy selected at construction.
func (d *Dispatcher) Strategy() Strategy {
	return d.strategy
}

// Store returns the token store the dispatcher writes to.
func (d *Dispatcher) Store() *TokenStore {
	return d.store
}

// BaseURL returns the API base URL, without a trailing slash.
func (d *Dispatcher) BaseURL() string {
	return d.config.BaseURL
}

// Authenticate executes the active strategy and, on success, replaces the
// store's cached state with the new token. The first failing sub-call's error
// is surfaced verbatim.
func (d *Dispatcher) Authenticate(ctx context.Context) (string, error) {
	var token string
	var err error

	switch d.strategy {
	case StrategyToken:
		token, err = d.useSuppliedToken(ctx)
	case StrategyAPIKey:
		token, err = d.signinWithAPIKey(ctx)
	case StrategyInteractivePrompt:
		token, err = d.signinInteractive(ctx, true)
	case StrategyInteractive:
		token, err = d.signinInteractive(ctx, false)
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownStrategy, d.strategy)
	}

	d.metrics.RecordAuthenticate(ctx, string(d.strategy), err)
	if err != nil {
		return "", err
	}

	state := d.store.Set(token)
	d.logger.Info(ctx, "authenticated",
		observe.F("strategy", string(d.strategy)),
		observe.F("user", Username(state.Token)),
		observe.F("expires_at", state.ExpiresAt),
	)
	return state.Token, nil
}

// useSuppliedToken validates the pre-supplied token against the version probe
// endpoint. There is nothing to fall back on: a rejected token is fatal until
// the operator supplies a fresh one.
func (d *Dispatcher) useSuppliedToken(ctx context.Context) (string, error) {
	token := unquote(d.config.Token)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.config.BaseURL+"/api/v1/Version", nil)
	if err != nil {
		return "", fmt.Errorf("auth: building probe request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := d.requester.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("%w: probe returned status %d: %s", ErrTokenValidation, resp.StatusCode, string(body))
	}
	return token, nil
}

// signinWithAPIKey runs only the first sign-in step, with the API key in the
// password slot. No second factor applies.
func (d *Dispatcher) signinWithAPIKey(ctx context.Context) (string, error) {
	token, err := d.signin.InitialSignin(ctx, d.config.Username, d.config.APIKey)
	if err != nil {
		return "", err
	}

	// Some server releases issue API-key tokens without the administrator
	// role claim. The token still works for most calls, so this is a
	// warning, not an error.
	if !HasAdminRole(token) {
		d.logger.Warn(ctx, "api key token is missing an administrator role claim; admin endpoints may return 403",
			observe.F("user", Username(token)),
		)
	}
	return token, nil
}

// signinInteractive runs both sign-in steps. With promptCode set, the one-time
// code comes from the control channel; otherwise the configured static code is
// used.
func (d *Dispatcher) signinInteractive(ctx context.Context, promptCode bool) (string, error) {
	if promptCode {
		// Fail fast when no terminal is attached, before the first sign-in
		// call: a code prompted after a long wait would pair with a stale
		// initial token anyway.
		if err := d.prompt.Available(); err != nil {
			d.metrics.RecordPromptFailure(ctx, "unavailable")
			return "", err
		}
	}

	initial, err := d.signin.InitialSignin(ctx, d.config.Username, d.config.Password)
	if err != nil {
		return "", err
	}

	code := d.config.MFACode
	if promptCode {
		code, err = d.prompt.Prompt(ctx)
		if err != nil {
			if errors.Is(err, ErrPromptTimeout) {
				d.metrics.RecordPromptFailure(ctx, "timeout")
			} else {
				d.metrics.RecordPromptFailure(ctx, "unavailable")
			}
			return "", err
		}
	}

	return d.signin.CompleteSignin(ctx, initial, code)
}
