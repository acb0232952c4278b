package resilience

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// RequesterConfig configures the retrying requester.
type RequesterConfig struct {
	// MaxAttempts is the maximum number of attempts (including initial).
	// Default: 3
	MaxAttempts int

	// BaseDelay is the wait after the first 500; it doubles per attempt.
	// Default: 1s
	BaseDelay time.Duration

	// Client is the HTTP client to use for requests.
	// If nil, a default client with 30s timeout is used.
	Client *http.Client

	// OnRetry is called after each 500 response with the upcoming delay.
	OnRetry func(attempt int, delay time.Duration)

	// Sleep overrides the backoff wait. Tests inject a fake clock.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Requester issues HTTP requests with bounded retry on transient server
// errors. Only a status of exactly 500 triggers a retry: all 4xx and the
// other 5xx statuses are returned to the caller immediately. The requester
// parses no bodies and carries no auth knowledge; it is a pure request-retry
// policy.
type Requester struct {
	config RequesterConfig
}

// NewRequester creates a new requester.
func NewRequester(config RequesterConfig) *Requester {
	// Apply defaults
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	if config.BaseDelay <= 0 {
		config.BaseDelay = time.Second
	}
	if config.Client == nil {
		config.Client = &http.Client{Timeout: 30 * time.Second}
	}
	if config.Sleep == nil {
		config.Sleep = sleepContext
	}

	return &Requester{config: config}
}

// Do issues the request, retrying while the response status is exactly 500.
// The backoff wait is applied after every 500, the final attempt included,
// and after attempts are exhausted the last 500 response is returned for the
// caller to treat as an error. Requests with a body must be rewindable
// (GetBody set, as http.NewRequest does for common body types).
func (r *Requester) Do(req *http.Request) (*http.Response, error) {
	var resp *http.Response

	for attempt := 0; ; attempt++ {
		if attempt > 0 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, fmt.Errorf("resilience: rewinding request body: %w", err)
			}
			req.Body = body
		}

		var err error
		resp, err = r.config.Client.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusInternalServerError {
			return resp, nil
		}

		delay := r.config.BaseDelay << attempt
		if r.config.OnRetry != nil {
			r.config.OnRetry(attempt, delay)
		}

		last := attempt >= r.config.MaxAttempts-1
		if !last {
			// Drain so the connection is reusable for the retry.
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
			resp.Body.Close()
		}

		if err := r.config.Sleep(req.Context(), delay); err != nil {
			if last {
				resp.Body.Close()
			}
			return nil, err
		}
		if last {
			return resp, nil
		}
	}
}

// Config returns the requester configuration.
func (r *Requester) Config() RequesterConfig {
	return r.config
}

// sleepContext waits for the delay or context cancellation.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
