// Package auth manages credentials and bearer token lifecycle for the
// Netwrix Privilege Secure API.
//
// It selects exactly one login strategy from the configured credentials
// (pre-supplied token, API key, interactive sign-in with a prompted or static
// one-time code), executes the two-step sign-in exchange, and keeps the
// process's single cached token fresh, refreshing it ahead of expiry and
// falling back to full reauthentication when a refresh fails. The package is
// transport-agnostic above HTTP: the MCP protocol loop and tool handlers
// consume it through TokenSource and TokenStore.
package auth
