// Package resilience provides the retry policy shared by every network call
// in the server.
//
// The Requester treats a 500 response as a transient infrastructure hiccup
// and retries it with exponential backoff; every other status means the
// request will not succeed by repeating it unchanged and is returned
// immediately. Backoff waits are cooperative (context-aware), so concurrent
// work proceeds while a request backs off.
package resilience
