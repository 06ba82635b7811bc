// Package middleware exposes HTTP adapters around a cgAuth.Manager.
//
// # Adapters
//
//   - [Scope] — places the manager in every request context so handlers can
//     reach it through cgAuth.FromContext.
//   - [RequireSession] — rejects requests while the session is signed out.
//   - [BearerTransport] — attaches the session token to outgoing requests.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Manager calls. It does NOT
// implement authentication logic itself; every decision reads Manager state.
//
// # What this package must NOT do
//
//   - Call the auth backend (the Manager handles I/O).
//   - Log or echo tokens.
package middleware
