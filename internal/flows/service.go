package flows

import (
	"context"
	"net/http"

	"github.com/cairnsgames/cgAuth/internal/api"
)

// Service is the centralized flow runner built once by the root manager.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	return Service{deps: deps}
}

// Initialized reports whether the service has been wired with a backend.
func (s Service) Initialized() bool {
	return s.deps.Backend != nil
}

func (s Service) Validate(ctx context.Context, tenant, token string) ValidateResult {
	return RunValidate(ctx, tenant, token, s.deps)
}

func (s Service) Login(ctx context.Context, tenant, email, password string) LoginResult {
	return RunLogin(ctx, tenant, email, password, s.deps)
}

func (s Service) ProviderLogin(ctx context.Context, tenant string, identity api.ProviderIdentity) LoginResult {
	return RunProviderLogin(ctx, tenant, identity, s.deps)
}

func (s Service) ForgotPassword(ctx context.Context, tenant, email string) (*api.Response, error) {
	return RunForgotPassword(ctx, tenant, email, s.deps)
}

func (s Service) ChangePassword(ctx context.Context, tenant string, req api.ChangePasswordRequest) (*http.Response, error) {
	return RunChangePassword(ctx, tenant, req, s.deps)
}
