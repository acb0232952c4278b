package auth

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/singleflight"

	"github.com/adamlsneed/nps-mcp-server/observe"
	"github.com/adamlsneed/nps-mcp-server/resilience"
)

// RefreshBuffer is the safety margin before expiry at which the cached token
// is proactively renewed.
const RefreshBuffer = 7 * time.Minute

// TokenSourceConfig tunes the token source. Zero values get defaults.
type TokenSourceConfig struct {
	// Buffer is the expiry safety margin. Default: RefreshBuffer.
	Buffer time.Duration

	// Logger receives refresh diagnostics. Default: no-op.
	Logger observe.Logger

	// Tracer records spans around refresh and reauthentication. Default: no-op.
	Tracer trace.Tracer

	// Metrics counts refresh outcomes. Optional.
	Metrics *observe.AuthMetrics

	// Now overrides the clock for tests.
	Now func() time.Time
}

// TokenSource hands out a valid bearer token for API calls, deciding between
// reuse, refresh, and full reauthentication. Safe for concurrent use: when
// several callers observe an expiring token at once, a singleflight group
// makes the first caller run the renewal and the rest await that same
// outcome instead of racing their own network calls.
type TokenSource struct {
	store      *TokenStore
	dispatcher *Dispatcher
	requester  *resilience.Requester
	baseURL    string

	buffer  time.Duration
	logger  observe.Logger
	tracer  trace.Tracer
	metrics *observe.AuthMetrics
	now     func() time.Time
	group   singleflight.Group
}

// NewTokenSource creates a token source over the dispatcher's store.
func NewTokenSource(dispatcher *Dispatcher, requester *resilience.Requester, cfg TokenSourceConfig) *TokenSource {
	// Apply defaults
	if cfg.Buffer <= 0 {
		cfg.Buffer = RefreshBuffer
	}
	if cfg.Logger == nil {
		cfg.Logger = observe.NopLogger()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = tracenoop.NewTracerProvider().Tracer("noop")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if requester == nil {
		requester = resilience.NewRequester(resilience.RequesterConfig{})
	}

	return &TokenSource{
		store:      dispatcher.Store(),
		dispatcher: dispatcher,
		requester:  requester,
		baseURL:    dispatcher.BaseURL(),
		buffer:     cfg.Buffer,
		logger:     cfg.Logger.WithComponent("auth.tokensource"),
		tracer:     cfg.Tracer,
		metrics:    cfg.Metrics,
		now:        cfg.Now,
	}
}

// Token returns the cached token when its remaining lifetime exceeds the
// safety buffer, renewing it otherwise. A token without a parseable expiry is
// never proactively refreshed; the API layer reacts to 401s instead (see
// Invalidate).
func (s *TokenSource) Token(ctx context.Context) (string, error) {
	if state, ok := s.store.Get(); ok && s.fresh(state) {
		return state.Token, nil
	}

	v, err, _ := s.group.Do("token", func() (any, error) {
		// Re-check under the flight: a renewal that just completed on
		// another goroutine already replaced the state.
		if state, ok := s.store.Get(); ok && s.fresh(state) {
			return state.Token, nil
		}
		return s.renew(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Invalidate clears the cached state so the next Token call reauthenticates.
// The API-calling layer invokes this when an authenticated call returns 401.
func (s *TokenSource) Invalidate() {
	s.store.Clear()
}

// Strategy returns the active login strategy.
func (s *TokenSource) Strategy() Strategy {
	return s.dispatcher.Strategy()
}

// State returns the current cached token state, if any.
func (s *TokenSource) State() (TokenState, bool) {
	return s.store.Get()
}

// SetToken replaces the cached state with an externally supplied token.
func (s *TokenSource) SetToken(token string) TokenState {
	return s.store.Set(token)
}

func (s *TokenSource) fresh(state TokenState) bool {
	if state.ExpiresAt.IsZero() {
		return true
	}
	return state.ExpiresAt.Sub(s.now()) >= s.buffer
}

// renew refreshes the current token when one exists, falling back to a full
// authenticate unless the active strategy is token, which has no credentials
// to reauthenticate with.
func (s *TokenSource) renew(ctx context.Context) (string, error) {
	ctx, span := s.tracer.Start(ctx, "auth.renew")
	defer span.End()

	state, ok := s.store.Get()
	if !ok {
		return s.dispatcher.Authenticate(ctx)
	}

	token, err := s.refresh(ctx, state.Token)
	s.metrics.RecordRefresh(ctx, err)
	if err == nil {
		renewed := s.store.Set(token)
		s.logger.Info(ctx, "token refreshed", observe.F("expires_at", renewed.ExpiresAt))
		return renewed.Token, nil
	}

	if s.dispatcher.Strategy() == StrategyToken {
		return "", fmt.Errorf("%w: %v", ErrRefreshUnrecoverable, err)
	}

	s.logger.Warn(ctx, "token refresh failed; reauthenticating", observe.F("error", err.Error()))
	return s.dispatcher.Authenticate(ctx)
}

// refresh calls the refresh endpoint with the current token as the bearer
// credential and returns the replacement token.
func (s *TokenSource) refresh(ctx context.Context, current string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/api/v1/UserToken", nil)
	if err != nil {
		return "", fmt.Errorf("auth: building refresh request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+current)

	resp, err := s.requester.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("auth: reading refresh response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &RequestError{Status: resp.StatusCode, Body: string(data)}
	}
	return unquote(string(data)), nil
}
