package cgAuth

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/cairnsgames/cgAuth/internal/api"
	"github.com/cairnsgames/cgAuth/internal/flows"
	"github.com/cairnsgames/cgAuth/jwt"
)

// Session is a point-in-time copy of a Manager's state.
type Session struct {
	Token                string
	User                 *UserProfile
	PendingProviderToken string
}

// Authenticated reports whether the session holds a backend token.
func (s Session) Authenticated() bool {
	return s.Token != ""
}

// UserProfile is the signed-in user. It is replaced wholesale on every update.
type UserProfile struct {
	ID            string
	Email         string
	GivenName     string
	FamilyName    string
	DisplayName   string
	AvatarURL     string
	VerifiedEmail string
}

// ServerResponse is a decoded backend reply. Raw carries the whole body for
// callers that need fields beyond the typed ones.
type ServerResponse struct {
	Token     string
	Email     string
	FirstName string
	LastName  string
	ID        string
	Avatar    string
	Errors    json.RawMessage
	Raw       json.RawMessage
}

// HasErrors reports whether the backend flagged errors in the reply.
func (r *ServerResponse) HasErrors() bool {
	return r != nil && len(r.Errors) > 0
}

func newServerResponse(resp *api.Response) *ServerResponse {
	if resp == nil {
		return nil
	}
	return &ServerResponse{
		Token:     resp.Token,
		Email:     resp.Email,
		FirstName: resp.FirstName,
		LastName:  resp.LastName,
		ID:        resp.ID,
		Avatar:    resp.Avatar,
		Errors:    resp.Errors,
		Raw:       resp.Raw,
	}
}

func profileFromFlow(p flows.Profile) *UserProfile {
	return &UserProfile{
		ID:          p.ID,
		Email:       p.Email,
		GivenName:   p.GivenName,
		FamilyName:  p.FamilyName,
		DisplayName: p.DisplayName,
		AvatarURL:   p.AvatarURL,
	}
}

// ProviderClaims is the identity decoded from a provider access token.
type ProviderClaims struct {
	Email         string
	GivenName     string
	FamilyName    string
	Subject       string
	Name          string
	Picture       string
	VerifiedEmail string
}

// profileFromClaims builds the provisional profile shown before the backend
// confirms a provider login.
func profileFromClaims(c ProviderClaims) *UserProfile {
	name := c.Name
	if name == "" {
		name = c.GivenName + " " + c.FamilyName
	}
	return &UserProfile{
		ID:            c.Subject,
		Email:         c.Email,
		GivenName:     c.GivenName,
		FamilyName:    c.FamilyName,
		DisplayName:   name,
		AvatarURL:     c.Picture,
		VerifiedEmail: c.VerifiedEmail,
	}
}

func (c ProviderClaims) identity() api.ProviderIdentity {
	return api.ProviderIdentity{
		Email:     c.Email,
		FirstName: c.GivenName,
		LastName:  c.FamilyName,
		GoogleID:  c.Subject,
		Avatar:    c.Picture,
	}
}

// TokenStore persists session tokens by key. Implementations live in package store.
type TokenStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// TenantResolver supplies the current tenant identifier.
type TenantResolver interface {
	Tenant(ctx context.Context) (string, error)
}

// StaticTenant resolves to itself.
type StaticTenant string

func (t StaticTenant) Tenant(context.Context) (string, error) {
	return string(t), nil
}

// ProviderDecoder turns a provider access token into identity claims.
type ProviderDecoder interface {
	Decode(ctx context.Context, token string) (ProviderClaims, error)
}

// JWTDecoder adapts a [jwt.Decoder] to [ProviderDecoder].
func JWTDecoder(d *jwt.Decoder) ProviderDecoder {
	return jwtDecoder{d: d}
}

type jwtDecoder struct {
	d *jwt.Decoder
}

func (j jwtDecoder) Decode(_ context.Context, token string) (ProviderClaims, error) {
	c, err := j.d.Decode(token)
	if err != nil {
		return ProviderClaims{}, err
	}
	return ProviderClaims{
		Email:         c.Email,
		GivenName:     c.GivenName,
		FamilyName:    c.FamilyName,
		Subject:       c.Subject,
		Name:          c.Name,
		Picture:       c.Picture,
		VerifiedEmail: c.Verified(),
	}, nil
}

// Location is the host's deep-link fragment (the part after '#'). Provider
// callbacks leave an auth marker there that is reset once consumed.
type Location interface {
	Fragment() string
	ResetFragment()
}

// MemoryLocation is a Location held in memory.
type MemoryLocation struct {
	mu       sync.Mutex
	fragment string
}

func (l *MemoryLocation) Fragment() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fragment
}

func (l *MemoryLocation) SetFragment(fragment string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fragment = strings.TrimPrefix(fragment, "#")
}

func (l *MemoryLocation) ResetFragment() {
	l.SetFragment("")
}

type noopLocation struct{}

func (noopLocation) Fragment() string { return "" }
func (noopLocation) ResetFragment()   {}
