package flows

import (
	"context"
	"net/http"
	"time"

	"github.com/cairnsgames/cgAuth/internal/api"
)

// Backend is the subset of the auth API the flows call.
type Backend interface {
	ValidateToken(ctx context.Context, tenant, token string) (*api.Response, error)
	Login(ctx context.Context, tenant, email, password string) (*api.Response, error)
	LoginProvider(ctx context.Context, tenant string, identity api.ProviderIdentity) (*api.Response, error)
	ForgotPassword(ctx context.Context, tenant, email string) (*api.Response, error)
	ChangePassword(ctx context.Context, tenant string, req api.ChangePasswordRequest) (*http.Response, error)
}

// Deps groups flow dependencies. The root manager builds this once.
type Deps struct {
	Backend Backend
	// Observe, when set, receives the duration of every backend round trip.
	Observe func(endpoint string, took time.Duration, err error)
}

func (d Deps) observe(endpoint string, start time.Time, err error) {
	if d.Observe != nil {
		d.Observe(endpoint, time.Since(start), err)
	}
}
