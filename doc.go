// Package cgAuth provides a tenant-scoped authentication session for applications
// that delegate credential checks to a remote auth API and sign users in through
// a third-party OAuth provider.
//
// A [Manager] owns the in-memory session (backend token, user profile, pending
// provider token), persists the token per tenant through a [TokenStore], and
// proxies login, logout, forgot-password and change-password calls to the
// backend. Managers are built once through [Builder.Build] and are safe to call
// from multiple goroutines.
//
// # Architecture boundaries
//
// cgAuth is the public surface. It exposes [Manager], [Builder], [Config], the
// collaborator interfaces and value types ([Session], [UserProfile],
// [ServerResponse]). Wire encoding and request orchestration live under
// internal/ and are never exported.
//
// # Ordering
//
// Every state-applying operation takes a sequence number when it starts. A
// backend response is applied only when no newer operation has already applied
// its result, so a slow restore can never overwrite a later login, and nothing
// issued before a logout can resurrect the session.
//
// # What this package must NOT do
//
//   - Log passwords or tokens.
//   - Keep package-level session state; every session is an explicit [Manager].
//   - Import any sub-package that re-imports cgAuth (no import cycles).
package cgAuth
