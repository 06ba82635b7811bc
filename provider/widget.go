package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	cgAuth "github.com/cairnsgames/cgAuth"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// GoogleEndpoint is Google's OAuth 2.0 endpoint.
var GoogleEndpoint = oauth2.Endpoint{
	AuthURL:   "https://accounts.google.com/o/oauth2/v2/auth",
	TokenURL:  "https://oauth2.googleapis.com/token",
	AuthStyle: oauth2.AuthStyleInParams,
}

var (
	// ErrMissingCode is returned when a callback carries no authorization code.
	ErrMissingCode = errors.New("missing authorization code")
	// ErrStateMismatch is returned when the callback state was not issued by us.
	ErrStateMismatch = errors.New("oauth state mismatch")
	// ErrNoToken is returned when the token response has neither an ID token
	// nor an access token.
	ErrNoToken = errors.New("token response carries no usable token")
)

// TokenReceiver accepts the provider token once the exchange succeeds.
// [cgAuth.Manager] satisfies it.
type TokenReceiver interface {
	SetProviderAccessToken(ctx context.Context, token string) error
}

var _ TokenReceiver = (*cgAuth.Manager)(nil)

// Widget is the "sign in with" control: it builds the consent URL and turns
// the callback code into a provider token for the receiver.
type Widget struct {
	oauth    *oauth2.Config
	receiver TokenReceiver
}

// NewWidget builds a widget for cfg against endpoint. A zero endpoint means
// [GoogleEndpoint].
func NewWidget(cfg cgAuth.ProviderConfig, endpoint oauth2.Endpoint, receiver TokenReceiver) (*Widget, error) {
	if cfg.ClientID == "" {
		return nil, errors.New("provider client id required")
	}
	if receiver == nil {
		return nil, errors.New("token receiver required")
	}
	if endpoint.AuthURL == "" && endpoint.TokenURL == "" {
		endpoint = GoogleEndpoint
	}
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{"openid", "email", "profile"}
	}

	return &Widget{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     endpoint,
			Scopes:       append([]string(nil), scopes...),
		},
		receiver: receiver,
	}, nil
}

// NewState returns a fresh opaque state value for AuthCodeURL.
func NewState() string {
	return uuid.NewString()
}

// AuthCodeURL returns the provider consent page URL.
func (w *Widget) AuthCodeURL(state string) string {
	return w.oauth.AuthCodeURL(state)
}

// Exchange trades code for a token and passes the ID token (or, when the
// provider sent none, the access token) to the receiver.
func (w *Widget) Exchange(ctx context.Context, code string) error {
	if code == "" {
		return ErrMissingCode
	}
	tok, err := w.oauth.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("exchange code: %w", err)
	}

	raw, _ := tok.Extra("id_token").(string)
	if raw == "" {
		raw = tok.AccessToken
	}
	if raw == "" {
		return ErrNoToken
	}
	return w.receiver.SetProviderAccessToken(ctx, raw)
}

// LoginHandler redirects to the consent page. issue records the state so the
// callback can check it.
func (w *Widget) LoginHandler(issue func(r *http.Request, state string)) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		state := NewState()
		if issue != nil {
			issue(r, state)
		}
		http.Redirect(rw, r, w.AuthCodeURL(state), http.StatusFound)
	})
}

// CallbackHandler completes the flow. check reports whether the returned
// state was issued for this client; a nil check accepts any state.
func (w *Widget) CallbackHandler(check func(r *http.Request, state string) bool, next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if e := q.Get("error"); e != "" {
			http.Error(rw, "provider error: "+e, http.StatusUnauthorized)
			return
		}
		if check != nil && !check(r, q.Get("state")) {
			http.Error(rw, ErrStateMismatch.Error(), http.StatusBadRequest)
			return
		}
		if err := w.Exchange(r.Context(), q.Get("code")); err != nil {
			status := http.StatusBadGateway
			switch {
			case errors.Is(err, ErrMissingCode):
				status = http.StatusBadRequest
			case errors.Is(err, cgAuth.ErrProviderToken):
				status = http.StatusUnauthorized
			}
			http.Error(rw, err.Error(), status)
			return
		}
		if next != nil {
			next.ServeHTTP(rw, r)
			return
		}
		rw.WriteHeader(http.StatusNoContent)
	})
}
