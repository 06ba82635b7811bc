// Package provider connects a [cgAuth.Manager] to an OAuth identity provider.
//
// [Widget] drives the authorization-code flow with golang.org/x/oauth2 and
// hands the resulting provider token to the manager. [OIDCDecoder] is a
// [cgAuth.ProviderDecoder] that verifies ID tokens against the issuer's keys
// with go-oidc and caches verified claims until the token expires.
//
// # What this package must NOT do
//
//   - Talk to the auth backend; the manager owns that exchange.
//   - Persist provider tokens.
package provider
