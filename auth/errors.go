package auth

import (
	"errors"
	"fmt"
)

// Sentinel errors for credential selection and token lifecycle.
var (
	// ErrNoCredentials indicates no usable login strategy could be derived
	// from the configuration. Fatal; never retried.
	ErrNoCredentials = errors.New("auth: no credentials configured")

	// ErrUnknownStrategy indicates a strategy value outside the supported set.
	ErrUnknownStrategy = errors.New("auth: unknown authentication strategy")

	// ErrTokenValidation indicates a pre-supplied or API-key-derived token
	// failed the validation probe.
	ErrTokenValidation = errors.New("auth: token failed validation; obtain a fresh token and update NPS_TOKEN")

	// ErrRefreshUnrecoverable indicates a refresh failed under the token
	// strategy, which has no stored credentials to reauthenticate with.
	ErrRefreshUnrecoverable = errors.New("auth: token refresh failed and the token strategy cannot reauthenticate; supply a fresh NPS_TOKEN")

	// ErrPromptUnavailable indicates the MFA prompt's terminal channel could
	// not be opened or read.
	ErrPromptUnavailable = errors.New("auth: no interactive terminal for the MFA prompt; use NPS_MFA_CODE or NPS_TOKEN for non-interactive runs")

	// ErrPromptTimeout indicates no one-time code arrived within the prompt
	// window.
	ErrPromptTimeout = errors.New("auth: timed out waiting for an MFA code; use NPS_MFA_CODE or NPS_TOKEN for non-interactive runs")
)

// RequestError is returned when a sign-in, refresh, or validation call comes
// back non-2xx. Status and Body are preserved verbatim: the upstream response
// text is the operator's primary signal when credentials are rejected, so it
// is never replaced with a generic message.
type RequestError struct {
	// Status is the HTTP status code of the failing response.
	Status int

	// Body is the raw response body text.
	Body string
}

// Error formats the status and raw body.
func (e *RequestError) Error() string {
	return fmt.Sprintf("auth: request failed with status %d: %s", e.Status, e.Body)
}
