// Package internal groups the packages private to cgAuth.
//
// # Sub-packages
//
//   - api — HTTP client for the auth backend endpoints
//   - apitest — in-process fake backend for tests and demos
//   - flows — per-operation orchestration over the api client
//
// # What this package must NOT do
//
//   - Export types that appear in the public cgAuth API.
package internal
