// Package api is the HTTP client for the tenant-scoped auth backend.
//
// Every call is a JSON POST carrying the tenant in a configurable header
// (APP_ID by default). Response bodies are decoded once, and a second time when
// the backend double-encodes its reply as a JSON string.
//
// # What this package must NOT do
//
//   - Import cgAuth (no upward imports).
//   - Hold session state; the client is stateless apart from its configuration.
package api
