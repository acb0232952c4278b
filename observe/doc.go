// Package observe provides observability primitives for the server.
//
// It is a pure instrumentation library: structured logging to stderr (stdout
// belongs to the MCP protocol), OpenTelemetry metrics and traces with
// pluggable exporters, and the auth-specific instrument set. Consumers wire
// the observer into the auth core and the tool server.
package observe
