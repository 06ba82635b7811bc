package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Backend endpoint paths, relative to the configured base URL.
const (
	EndpointValidateToken  = "validateToken.php"
	EndpointLogin          = "login.php"
	EndpointLoginProvider  = "logingoogle.php"
	EndpointForgotPassword = "forgotpassword.php"
	EndpointChangePassword = "changepassword.php"
)

// DefaultTenantHeader is the header the backend reads the tenant from.
const DefaultTenantHeader = "APP_ID"

// maxBodyBytes caps how much of a reply is buffered.
const maxBodyBytes = 1 << 20

var (
	// ErrStatus is wrapped by StatusError.
	ErrStatus = errors.New("auth api returned non-success status")
	// ErrDecode is returned when a reply body is not JSON.
	ErrDecode = errors.New("auth api response could not be decoded")
)

// StatusError reports a non-2xx reply together with its body.
type StatusError struct {
	Endpoint   string
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %s returned %d", ErrStatus.Error(), e.Endpoint, e.StatusCode)
}

func (e *StatusError) Unwrap() error { return ErrStatus }

// Config controls where and how the client talks to the backend.
type Config struct {
	BaseURL      string
	TenantHeader string
	Debug        bool
	Timeout      time.Duration
	Transport    http.RoundTripper
}

// Client issues backend calls. It is safe for concurrent use.
type Client struct {
	base   string
	header string
	debug  bool
	http   *http.Client
}

// ProviderIdentity is the body of the provider-login call.
type ProviderIdentity struct {
	Email     string `json:"email"`
	FirstName string `json:"firstname"`
	LastName  string `json:"lastname"`
	GoogleID  string `json:"googleid"`
	Avatar    string `json:"avatar"`
}

// ChangePasswordRequest is the body of the change-password call.
type ChangePasswordRequest struct {
	UserID      string `json:"userid"`
	OldPassword string `json:"oldpassword"`
	Password    string `json:"password"`
	Password2   string `json:"password2"`
}

// New validates cfg and returns a client whose transport is traced with otelhttp.
func New(cfg Config) (*Client, error) {
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		return nil, errors.New("api base url required")
	}
	header := strings.TrimSpace(cfg.TenantHeader)
	if header == "" {
		header = DefaultTenantHeader
	}
	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	return &Client{
		base:   strings.TrimRight(base, "/"),
		header: header,
		debug:  cfg.Debug,
		http: &http.Client{
			Transport: otelhttp.NewTransport(transport),
			Timeout:   cfg.Timeout,
		},
	}, nil
}

// URL returns the absolute URL for endpoint. The debug query is appended to
// every endpoint except provider login, which never carried it.
func (c *Client) URL(endpoint string) string {
	u := c.base + "/" + strings.TrimLeft(endpoint, "/")
	if c.debug && endpoint != EndpointLoginProvider {
		u += "?debug=true"
	}
	return u
}

func (c *Client) ValidateToken(ctx context.Context, tenant, token string) (*Response, error) {
	return c.postDecoded(ctx, EndpointValidateToken, tenant, struct {
		Token string `json:"token"`
	}{Token: token})
}

func (c *Client) Login(ctx context.Context, tenant, email, password string) (*Response, error) {
	return c.postDecoded(ctx, EndpointLogin, tenant, struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}{Email: email, Password: password})
}

func (c *Client) LoginProvider(ctx context.Context, tenant string, identity ProviderIdentity) (*Response, error) {
	return c.postDecoded(ctx, EndpointLoginProvider, tenant, identity)
}

func (c *Client) ForgotPassword(ctx context.Context, tenant, email string) (*Response, error) {
	return c.postDecoded(ctx, EndpointForgotPassword, tenant, struct {
		Email string `json:"email"`
	}{Email: email})
}

// ChangePassword returns the raw reply. The caller owns resp.Body.
func (c *Client) ChangePassword(ctx context.Context, tenant string, req ChangePasswordRequest) (*http.Response, error) {
	return c.post(ctx, EndpointChangePassword, tenant, req)
}

func (c *Client) postDecoded(ctx context.Context, endpoint, tenant string, body any) (*Response, error) {
	resp, err := c.post(ctx, endpoint, tenant, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", endpoint, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Endpoint: endpoint, StatusCode: resp.StatusCode, Body: data}
	}

	return Decode(data)
}

func (c *Client) post(ctx context.Context, endpoint, tenant string, body any) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", endpoint, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL(endpoint), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", endpoint, err)
	}
	req.Header.Set("Content-Type", "application/json")
	// Set verbatim: the backend matches the header name as written.
	req.Header[c.header] = []string{tenant}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", endpoint, err)
	}
	return resp, nil
}
