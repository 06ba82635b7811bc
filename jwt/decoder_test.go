package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

func newEdKeys(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate ed25519 key: %v", err)
	}
	return pub, priv
}

func signHS(t *testing.T, claims gjwt.Claims, secret string) string {
	t.Helper()
	tok, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return tok
}

func TestDecodeUnverifiedGoogleClaims(t *testing.T) {
	token := signHS(t, gjwt.MapClaims{
		"email":          "g@x.com",
		"given_name":     "G",
		"family_name":    "X",
		"sub":            "999",
		"picture":        "p.png",
		"verified_email": "true",
	}, "whatever-secret")

	d, err := NewDecoder(Config{})
	if err != nil {
		t.Fatalf("new decoder: %v", err)
	}
	claims, err := d.Decode(token)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if claims.Email != "g@x.com" || claims.GivenName != "G" || claims.FamilyName != "X" {
		t.Fatalf("unexpected name claims: %+v", claims)
	}
	if claims.Subject != "999" || claims.Picture != "p.png" {
		t.Fatalf("unexpected subject/picture: %+v", claims)
	}
	if claims.Verified() != "true" {
		t.Fatalf("expected verified flag true, got %q", claims.Verified())
	}
}

func TestDecodeUnverifiedIgnoresExpiry(t *testing.T) {
	token := signHS(t, gjwt.MapClaims{
		"sub": "1",
		"exp": time.Now().Add(-time.Hour).Unix(),
	}, "s")

	d, _ := NewDecoder(Config{})
	if _, err := d.Decode(token); err != nil {
		t.Fatalf("expected expired token to decode without verification: %v", err)
	}
}

func TestDecodeBooleanEmailVerified(t *testing.T) {
	token := signHS(t, gjwt.MapClaims{"sub": "1", "email_verified": true}, "s")

	d, _ := NewDecoder(Config{})
	claims, err := d.Decode(token)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if claims.Verified() != "true" {
		t.Fatalf("expected email_verified fallback, got %q", claims.Verified())
	}
}

func TestDecodeRejectsMissingIdentity(t *testing.T) {
	token := signHS(t, gjwt.MapClaims{"name": "nobody"}, "s")

	d, _ := NewDecoder(Config{})
	if _, err := d.Decode(token); !errors.Is(err, ErrMissingIdentity) {
		t.Fatalf("expected ErrMissingIdentity, got %v", err)
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	d, _ := NewDecoder(Config{})
	for _, input := range []string{"", "   ", "not.a.jwt", "a.b"} {
		if _, err := d.Decode(input); err == nil {
			t.Fatalf("expected error for %q", input)
		}
	}
}

func TestDecodeVerifiedHS256(t *testing.T) {
	d, err := NewDecoder(Config{
		SigningMethod: MethodHS256,
		Key:           []byte("shared-secret-shared-secret"),
		Issuer:        "accounts.example.com",
	})
	if err != nil {
		t.Fatalf("new decoder: %v", err)
	}

	good := signHS(t, gjwt.MapClaims{
		"sub": "1",
		"iss": "accounts.example.com",
		"exp": time.Now().Add(time.Minute).Unix(),
	}, "shared-secret-shared-secret")
	if _, err := d.Decode(good); err != nil {
		t.Fatalf("expected valid token: %v", err)
	}

	wrongKey := signHS(t, gjwt.MapClaims{"sub": "1", "iss": "accounts.example.com"}, "other-secret")
	if _, err := d.Decode(wrongKey); err == nil {
		t.Fatal("expected wrong key to fail")
	}

	wrongIssuer := signHS(t, gjwt.MapClaims{"sub": "1", "iss": "evil"}, "shared-secret-shared-secret")
	if _, err := d.Decode(wrongIssuer); err == nil {
		t.Fatal("expected wrong issuer to fail")
	}
}

func TestDecodeVerifiedEd25519RejectsWrongAlgorithm(t *testing.T) {
	pub, priv := newEdKeys(t)
	d, err := NewDecoder(Config{SigningMethod: MethodEd25519, Key: pub})
	if err != nil {
		t.Fatalf("new decoder: %v", err)
	}

	edTok, err := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, gjwt.MapClaims{"sub": "1"}).SignedString(priv)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := d.Decode(edTok); err != nil {
		t.Fatalf("expected ed25519 token to verify: %v", err)
	}

	hsTok := signHS(t, gjwt.MapClaims{"sub": "1"}, "secret-secret-secret-secret")
	if _, err := d.Decode(hsTok); err == nil {
		t.Fatal("expected wrong algorithm to be rejected")
	}
}

func TestNewDecoderConfigErrors(t *testing.T) {
	if _, err := NewDecoder(Config{SigningMethod: MethodHS256}); err == nil {
		t.Fatal("expected hs256 without key to fail")
	}
	if _, err := NewDecoder(Config{SigningMethod: MethodEd25519, Key: []byte("short")}); err == nil {
		t.Fatal("expected bad ed25519 key to fail")
	}
	if _, err := NewDecoder(Config{SigningMethod: "rs512"}); err == nil {
		t.Fatal("expected unsupported method to fail")
	}
	if _, err := NewDecoder(Config{Leeway: time.Hour}); err == nil {
		t.Fatal("expected leeway bound to be enforced")
	}
}
