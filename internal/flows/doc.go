// Package flows contains the backend round-trip orchestrators behind every
// Manager operation.
//
// Each flow function (RunValidate, RunLogin, RunProviderLogin, ...) accepts a
// typed dependency struct and returns a result value. Flows never touch session
// state: the Manager decides whether a result is still current and applies it.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import cgAuth (to avoid import cycles).
//   - Perform I/O directly; all I/O is mediated through [Backend].
package flows
