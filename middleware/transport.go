package middleware

import "net/http"

// TokenSource is satisfied by cgAuth.Manager.
type TokenSource interface {
	Token() string
}

// BearerTransport adds "Authorization: Bearer <token>" to every request sent
// while the session holds a token. Requests that already carry an
// Authorization header are left alone.
type BearerTransport struct {
	Source TokenSource
	Base   http.RoundTripper
}

func (t *BearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	if t.Source == nil || req.Header.Get("Authorization") != "" {
		return base.RoundTrip(req)
	}
	token := t.Source.Token()
	if token == "" {
		return base.RoundTrip(req)
	}

	clone := req.Clone(req.Context())
	clone.Header.Set("Authorization", "Bearer "+token)
	return base.RoundTrip(clone)
}
