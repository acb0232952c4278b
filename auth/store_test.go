package auth

import (
	"testing"
	"time"
)

func TestTokenStore_SetStripsQuotes(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "bare token", in: "abc.def.ghi", want: "abc.def.ghi"},
		{name: "json-quoted token", in: `"abc.def.ghi"`, want: "abc.def.ghi"},
		{name: "quoted with whitespace", in: "  \"abc.def.ghi\"\n", want: "abc.def.ghi"},
		{name: "interior quotes kept", in: `a"b`, want: `a"b`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewTokenStore()
			state := store.Set(tt.in)
			if state.Token != tt.want {
				t.Errorf("Set(%q).Token = %q, want %q", tt.in, state.Token, tt.want)
			}
		})
	}
}

func TestTokenStore_SetDerivesExpiry(t *testing.T) {
	exp := time.Now().Add(30 * time.Minute).Truncate(time.Second)
	token := makeToken(t, map[string]any{"exp": exp.Unix()})

	store := NewTokenStore()
	state := store.Set(token)

	if !state.ExpiresAt.Equal(exp) {
		t.Errorf("ExpiresAt = %v, want %v", state.ExpiresAt, exp)
	}
	if state.AcquiredAt.IsZero() {
		t.Error("AcquiredAt is zero, want wall-clock time")
	}
}

func TestTokenStore_SetOpaqueToken(t *testing.T) {
	store := NewTokenStore()
	state := store.Set("opaque-token")

	if !state.ExpiresAt.IsZero() {
		t.Errorf("ExpiresAt = %v, want zero for non-JWT token", state.ExpiresAt)
	}
}

func TestTokenStore_GetAndClear(t *testing.T) {
	store := NewTokenStore()

	if _, ok := store.Get(); ok {
		t.Fatal("Get() on empty store reported a state")
	}

	store.Set("tok")
	state, ok := store.Get()
	if !ok || state.Token != "tok" {
		t.Fatalf("Get() = (%v, %v), want (tok, true)", state.Token, ok)
	}

	store.Clear()
	if _, ok := store.Get(); ok {
		t.Error("Get() after Clear reported a state")
	}
}

func TestTokenStore_SetReplacesWholesale(t *testing.T) {
	store := NewTokenStore()
	store.Set(makeToken(t, map[string]any{"exp": time.Now().Add(time.Hour).Unix()}))
	state := store.Set("opaque")

	if state.Token != "opaque" {
		t.Errorf("Token = %q, want opaque", state.Token)
	}
	if !state.ExpiresAt.IsZero() {
		t.Error("ExpiresAt from previous state leaked into replacement")
	}
}
