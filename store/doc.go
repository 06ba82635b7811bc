// Package store provides persistent key-value backends for session tokens.
//
// Every backend offers the same three operations (Get, Set, Remove) over
// string keys and values. Keys are built by the caller, typically
// "cg.<tenant>.auth", so tenants never share a record.
//
// # Backends
//
//   - [Memory]: process-local map, the default and the test double.
//   - [Redis]: shared store for server-side deployments, via go-redis.
//   - [SQLite]: single-file store for CLIs and desktop hosts, via modernc sqlite.
//
// # What this package must NOT do
//
//   - Import cgAuth (no upward imports).
//   - Interpret stored values.
package store

import "errors"

// ErrUnavailable wraps backend failures so callers can tell them from misses.
var ErrUnavailable = errors.New("token store unavailable")
