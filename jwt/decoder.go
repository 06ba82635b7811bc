package jwt

import (
	"bytes"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SigningMethod selects how (and whether) token signatures are checked.
type SigningMethod string

const (
	// MethodNone decodes claims without verifying the signature.
	MethodNone SigningMethod = ""
	// MethodEd25519 verifies EdDSA signatures with an Ed25519 public key.
	MethodEd25519 SigningMethod = "ed25519"
	// MethodHS256 verifies HMAC-SHA256 signatures with a shared secret.
	MethodHS256 SigningMethod = "hs256"
)

// ErrMissingIdentity is returned when a token decodes but names no subject or email.
var ErrMissingIdentity = errors.New("provider token carries no identity")

// Config controls decoding. Issuer, Audience and Leeway only apply when a
// signing method is set.
type Config struct {
	SigningMethod SigningMethod
	Key           []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
}

// Decoder turns provider tokens into [ProviderClaims].
type Decoder struct {
	config Config
}

// ProviderClaims is the identity carried by a provider token.
type ProviderClaims struct {
	Email         string      `json:"email"`
	GivenName     string      `json:"given_name"`
	FamilyName    string      `json:"family_name"`
	Name          string      `json:"name"`
	Picture       string      `json:"picture"`
	VerifiedEmail ClaimString `json:"verified_email"`
	EmailVerified ClaimString `json:"email_verified"`
	jwt.RegisteredClaims
}

// Verified returns the verification flag as the provider sent it, preferring
// verified_email over the OIDC email_verified claim.
func (c *ProviderClaims) Verified() string {
	if c.VerifiedEmail != "" {
		return string(c.VerifiedEmail)
	}
	return string(c.EmailVerified)
}

// NewDecoder validates cfg and returns a Decoder.
func NewDecoder(cfg Config) (*Decoder, error) {
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	switch cfg.SigningMethod {
	case MethodNone:
	case MethodHS256:
		if len(cfg.Key) == 0 {
			return nil, errors.New("hs256 requires a shared secret")
		}
	case MethodEd25519:
		if _, err := parseEdPublicKey(cfg.Key); err != nil {
			return nil, err
		}
	default:
		return nil, errors.New("unsupported signing method")
	}

	return &Decoder{config: cfg}, nil
}

// Decode parses tokenStr. Without a signing method the signature and registered
// time claims are ignored.
func (d *Decoder) Decode(tokenStr string) (*ProviderClaims, error) {
	tokenStr = strings.TrimSpace(tokenStr)
	if tokenStr == "" {
		return nil, jwt.ErrTokenMalformed
	}

	claims := &ProviderClaims{}
	if d.config.SigningMethod == MethodNone {
		if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, claims); err != nil {
			return nil, err
		}
	} else if err := d.verify(tokenStr, claims); err != nil {
		return nil, err
	}

	if claims.Subject == "" && claims.Email == "" {
		return nil, ErrMissingIdentity
	}
	return claims, nil
}

func (d *Decoder) verify(tokenStr string, claims *ProviderClaims) error {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{d.getMethod().Alg()}),
	}
	if d.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(d.config.Leeway))
	}
	if d.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(d.config.Issuer))
	}
	if d.config.Audience != "" {
		options = append(options, jwt.WithAudience(d.config.Audience))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != d.getMethod().Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return d.getVerifyKey()
	})
	if err != nil {
		return err
	}
	if !token.Valid {
		return jwt.ErrTokenInvalidClaims
	}
	return nil
}

func (d *Decoder) getMethod() jwt.SigningMethod {
	switch d.config.SigningMethod {
	case MethodHS256:
		return jwt.SigningMethodHS256
	default:
		return jwt.SigningMethodEdDSA
	}
}

func (d *Decoder) getVerifyKey() (interface{}, error) {
	switch d.config.SigningMethod {
	case MethodHS256:
		return d.config.Key, nil
	default:
		return parseEdPublicKey(d.config.Key)
	}
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}

// ClaimString accepts a JSON string or boolean. Providers disagree on whether
// the email verification flag is quoted.
type ClaimString string

func (c *ClaimString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*c = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*c = ClaimString(s)
		return nil
	}
	*c = ClaimString(b)
	return nil
}
