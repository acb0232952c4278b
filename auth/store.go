package auth

import (
	"strings"
	"sync"
	"time"
)

// TokenState is the cached bearer token and its derived timing.
type TokenState struct {
	// Token is the raw token text, with any JSON-string quoting from the
	// wire already stripped.
	Token string

	// AcquiredAt is when the state was stored.
	AcquiredAt time.Time

	// ExpiresAt is derived exclusively from the token's exp claim. Zero when
	// the token is not a parseable JWT or carries no expiry.
	ExpiresAt time.Time
}

// TokenStore owns the process's cached token state. Exactly one instance may
// exist per running process; it is passed by reference to the components that
// need it rather than hidden behind a package global. Safe for concurrent use.
type TokenStore struct {
	mu    sync.Mutex
	state *TokenState
	now   func() time.Time
}

// NewTokenStore creates an empty store.
func NewTokenStore() *TokenStore {
	return &TokenStore{now: time.Now}
}

// Set replaces the cached state wholesale. One layer of surrounding double
// quotes is stripped first: the sign-in and refresh endpoints return the token
// either bare or as a JSON-quoted string. The stored expiry is decoded from
// the token itself.
func (s *TokenStore) Set(token string) TokenState {
	token = unquote(token)
	state := TokenState{
		Token:      token,
		AcquiredAt: s.now(),
		ExpiresAt:  TokenExpiry(token),
	}
	s.mu.Lock()
	s.state = &state
	s.mu.Unlock()
	return state
}

// Get returns the cached state, if any.
func (s *TokenStore) Get() (TokenState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == nil {
		return TokenState{}, false
	}
	return *s.state, true
}

// Clear drops the cached state. The API-calling layer invokes this on a 401
// so the next token request reauthenticates.
func (s *TokenStore) Clear() {
	s.mu.Lock()
	s.state = nil
	s.mu.Unlock()
}

// unquote strips one layer of surrounding double quotes from a token body.
func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		return s[1 : len(s)-1]
	}
	return s
}
