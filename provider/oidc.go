package provider

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	cgAuth "github.com/cairnsgames/cgAuth"
	"github.com/cairnsgames/cgAuth/jwt"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// maxCacheTTL bounds how long verified claims stay cached, whatever the
// token's own expiry.
const maxCacheTTL = 10 * time.Minute

type idTokenClaims struct {
	Email         string          `json:"email"`
	GivenName     string          `json:"given_name"`
	FamilyName    string          `json:"family_name"`
	Name          string          `json:"name"`
	Picture       string          `json:"picture"`
	VerifiedEmail jwt.ClaimString `json:"verified_email"`
	EmailVerified jwt.ClaimString `json:"email_verified"`
}

type cachedClaims struct {
	claims cgAuth.ProviderClaims
	expiry time.Time
}

// OIDCDecoder verifies ID tokens before trusting their claims.
type OIDCDecoder struct {
	verifier *oidc.IDTokenVerifier
	cache    *expirable.LRU[string, cachedClaims]
	now      func() time.Time
}

var _ cgAuth.ProviderDecoder = (*OIDCDecoder)(nil)

// NewOIDCDecoder discovers cfg.IssuerURL and verifies tokens issued to
// cfg.ClientID.
func NewOIDCDecoder(ctx context.Context, cfg cgAuth.ProviderConfig) (*OIDCDecoder, error) {
	if cfg.IssuerURL == "" || cfg.ClientID == "" {
		return nil, errors.New("oidc decoder requires issuer and client id")
	}
	p, err := oidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("discover oidc provider: %w", err)
	}
	return NewOIDCDecoderWithVerifier(p.Verifier(&oidc.Config{ClientID: cfg.ClientID}), cfg.ClaimsCache), nil
}

// NewOIDCDecoderWithVerifier wraps an existing verifier. cacheSize <= 0
// disables the claims cache.
func NewOIDCDecoderWithVerifier(v *oidc.IDTokenVerifier, cacheSize int) *OIDCDecoder {
	d := &OIDCDecoder{verifier: v, now: time.Now}
	if cacheSize > 0 {
		d.cache = expirable.NewLRU[string, cachedClaims](cacheSize, nil, maxCacheTTL)
	}
	return d
}

// Decode verifies token and returns its identity claims.
func (d *OIDCDecoder) Decode(ctx context.Context, token string) (cgAuth.ProviderClaims, error) {
	key := cacheKey(token)
	if d.cache != nil {
		if hit, ok := d.cache.Get(key); ok {
			if d.now().Before(hit.expiry) {
				return hit.claims, nil
			}
			d.cache.Remove(key)
		}
	}

	idToken, err := d.verifier.Verify(ctx, token)
	if err != nil {
		return cgAuth.ProviderClaims{}, fmt.Errorf("verify id token: %w", err)
	}
	var c idTokenClaims
	if err := idToken.Claims(&c); err != nil {
		return cgAuth.ProviderClaims{}, fmt.Errorf("parse id token claims: %w", err)
	}
	if idToken.Subject == "" && c.Email == "" {
		return cgAuth.ProviderClaims{}, jwt.ErrMissingIdentity
	}

	verified := string(c.VerifiedEmail)
	if verified == "" {
		verified = string(c.EmailVerified)
	}
	claims := cgAuth.ProviderClaims{
		Email:         c.Email,
		GivenName:     c.GivenName,
		FamilyName:    c.FamilyName,
		Subject:       idToken.Subject,
		Name:          c.Name,
		Picture:       c.Picture,
		VerifiedEmail: verified,
	}

	if d.cache != nil && !idToken.Expiry.IsZero() {
		d.cache.Add(key, cachedClaims{claims: claims, expiry: idToken.Expiry})
	}
	return claims, nil
}

// Cached returns the number of cached verified tokens.
func (d *OIDCDecoder) Cached() int {
	if d.cache == nil {
		return 0
	}
	return d.cache.Len()
}

func cacheKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
