package flows

import (
	"context"
	"time"

	"github.com/cairnsgames/cgAuth/internal/api"
)

// LoginResult is the outcome of a credential or provider login.
type LoginResult struct {
	Response *api.Response
	Profile  Profile
	Err      error
}

func RunLogin(ctx context.Context, tenant, email, password string, deps Deps) LoginResult {
	start := time.Now()
	resp, err := deps.Backend.Login(ctx, tenant, email, password)
	deps.observe(api.EndpointLogin, start, err)
	if err != nil {
		return LoginResult{Err: err}
	}

	return LoginResult{
		Response: resp,
		Profile:  ProfileFromResponse(resp),
	}
}

// RunProviderLogin exchanges a decoded provider identity for a backend token.
// Only the token of the reply is meaningful; Profile is left empty because the
// provisional profile comes from the provider claims.
func RunProviderLogin(ctx context.Context, tenant string, identity api.ProviderIdentity, deps Deps) LoginResult {
	start := time.Now()
	resp, err := deps.Backend.LoginProvider(ctx, tenant, identity)
	deps.observe(api.EndpointLoginProvider, start, err)
	if err != nil {
		return LoginResult{Err: err}
	}

	return LoginResult{Response: resp}
}
