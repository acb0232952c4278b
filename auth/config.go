package auth

import "fmt"

// Strategy identifies how the process authenticates to the API.
type Strategy string

const (
	// StrategyToken validates and uses a pre-supplied bearer token.
	StrategyToken Strategy = "token"

	// StrategyAPIKey signs in with the API key in the password slot; no
	// second factor.
	StrategyAPIKey Strategy = "apikey"

	// StrategyInteractivePrompt signs in with username/password and prompts
	// the operator's terminal for a one-time code.
	StrategyInteractivePrompt Strategy = "interactive-prompt"

	// StrategyInteractive signs in with username/password and a statically
	// configured one-time code.
	StrategyInteractive Strategy = "interactive"
)

// DefaultMFACode is used by the interactive strategy when no code is
// configured. Instances without MFA enforcement accept it.
const DefaultMFACode = "000000"

// Config carries the credential material this subsystem reads. It is
// populated externally (environment variables in cmd/nps-mcp) and treated as
// read-only here.
type Config struct {
	// BaseURL is the root of the NPS REST API, without a trailing slash.
	BaseURL string

	// Username for the interactive and apikey strategies.
	Username string

	// Password for the interactive strategies.
	Password string

	// MFACode is the static one-time code for the interactive strategy.
	// Default: DefaultMFACode.
	MFACode string

	// APIKey substitutes for the password in the apikey strategy.
	APIKey string

	// Token is a pre-supplied bearer token.
	Token string

	// MFAPrompt selects the interactive-prompt strategy when a password is
	// also present.
	MFAPrompt bool
}

// SelectStrategy derives the single active strategy from which credential
// fields are populated. Precedence is fixed and evaluated once per process:
// pre-supplied token, then API key, then interactive with a prompted code,
// then interactive with a static code.
func (c Config) SelectStrategy() (Strategy, error) {
	switch {
	case c.Token != "":
		return StrategyToken, nil
	case c.APIKey != "":
		return StrategyAPIKey, nil
	case c.MFAPrompt && c.Password != "":
		return StrategyInteractivePrompt, nil
	case c.Password != "":
		return StrategyInteractive, nil
	}
	return "", fmt.Errorf("%w: set NPS_TOKEN (pre-supplied bearer token, e.g. eyJhbGciOi...), "+
		"NPS_API_KEY (e.g. 1a2b3c4d-...), "+
		"NPS_USER_NAME and NPS_USER_PASSWORD with NPS_MFA_PROMPT=true (prompted one-time code), "+
		"or NPS_USER_NAME and NPS_USER_PASSWORD with NPS_MFA_CODE (static code, e.g. 000000)",
		ErrNoCredentials)
}
