package cgAuth

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config defines the Manager's settings.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	API      APIConfig
	Storage  StorageConfig
	Provider ProviderConfig
	Restore  RestoreConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

/*
====================================
API CONFIG
====================================
*/

// APIConfig locates the auth backend.
//
// Debug appends ?debug=true to every endpoint except provider login. Timeout
// bounds each round trip; zero leaves only the caller's context in charge.
type APIConfig struct {
	BaseURL      string        `env:"AUTH_API"`
	TenantHeader string        `env:"AUTH_TENANT_HEADER"`
	Debug        bool          `env:"AUTH_API_DEBUG"`
	Timeout      time.Duration `env:"AUTH_API_TIMEOUT"`
}

/*
====================================
STORAGE CONFIG
====================================
*/

// StorageConfig shapes persisted record keys as "<KeyPrefix>.<tenant>.<KeySuffix>".
type StorageConfig struct {
	KeyPrefix string `env:"AUTH_STORAGE_PREFIX"`
	KeySuffix string `env:"AUTH_STORAGE_SUFFIX"`
}

/*
====================================
PROVIDER CONFIG
====================================
*/

// ProviderConfig describes the OAuth identity provider used for
// "sign in with" flows. Without IssuerURL provider tokens are decoded
// unverified. With it, the host must pass a verifying decoder (for example
// provider.NewOIDCDecoder) to [Builder.WithProviderDecoder]; Build refuses to
// fall back to unverified decoding.
type ProviderConfig struct {
	ClientID     string   `env:"GOOGLE_CLIENT_ID"`
	ClientSecret string   `env:"GOOGLE_CLIENT_SECRET"`
	RedirectURL  string   `env:"GOOGLE_REDIRECT_URL"`
	IssuerURL    string   `env:"AUTH_PROVIDER_ISSUER"`
	Scopes       []string `env:"AUTH_PROVIDER_SCOPES" envSeparator:","`
	ClaimsCache  int      `env:"AUTH_PROVIDER_CLAIMS_CACHE"`
}

// RestoreConfig controls how a persisted token is revalidated.
//
// By default a validation reply that carries errors is logged and its token
// (possibly empty) is still adopted. RejectOnErrors instead clears the
// optimistic session and makes Restore return [ErrValidationRejected].
type RestoreConfig struct {
	RejectOnErrors bool `env:"AUTH_RESTORE_REJECT_ON_ERRORS"`
}

// AuditConfig defines a public type used by cgAuth APIs.
//
// AuditConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditConfig struct {
	Enabled    bool `env:"AUTH_AUDIT_ENABLED"`
	BufferSize int  `env:"AUTH_AUDIT_BUFFER"`
	DropIfFull bool `env:"AUTH_AUDIT_DROP_IF_FULL"`
}

// MetricsConfig defines a public type used by cgAuth APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled                 bool `env:"AUTH_METRICS_ENABLED"`
	EnableLatencyHistograms bool `env:"AUTH_METRICS_LATENCY"`
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the configuration the Builder starts from.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		API: APIConfig{
			TenantHeader: "APP_ID",
			Debug:        true,
		},
		Storage: StorageConfig{
			KeyPrefix: "cg",
			KeySuffix: "auth",
		},
		Provider: ProviderConfig{
			Scopes:      []string{"openid", "email", "profile"},
			ClaimsCache: 256,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
	}
}

// LoadConfigFromEnv starts from the defaults and overlays every variable that
// is set in the environment.
func LoadConfigFromEnv() (Config, error) {
	cfg := defaultConfig()
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

func cloneConfig(cfg Config) Config {
	out := cfg
	if cfg.Provider.Scopes != nil {
		out.Provider.Scopes = append([]string(nil), cfg.Provider.Scopes...)
	}
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate checks cfg for a usable backend URL and internally consistent
// sections. It returns [ErrNotConfigured] when the base URL is missing.
func (c *Config) Validate() error {
	// API
	if strings.TrimSpace(c.API.BaseURL) == "" {
		return ErrNotConfigured
	}
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New("API BaseURL must be an absolute URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("API BaseURL scheme must be http or https")
	}
	if c.API.TenantHeader == "" {
		return errors.New("API TenantHeader must not be empty")
	}
	if strings.ContainsAny(c.API.TenantHeader, " \t:\r\n") {
		return errors.New("API TenantHeader is not a valid header name")
	}
	if c.API.Timeout < 0 {
		return errors.New("API Timeout must be >= 0")
	}

	// Storage
	if c.Storage.KeyPrefix == "" || c.Storage.KeySuffix == "" {
		return errors.New("Storage KeyPrefix and KeySuffix must not be empty")
	}

	// Provider
	if c.Provider.IssuerURL != "" && c.Provider.ClientID == "" {
		return errors.New("Provider IssuerURL requires ClientID")
	}
	if c.Provider.ClaimsCache < 0 {
		return errors.New("Provider ClaimsCache must be >= 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}

	return nil
}
