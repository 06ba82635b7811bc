package flows

import (
	"context"
	"net/http"
	"time"

	"github.com/cairnsgames/cgAuth/internal/api"
)

func RunForgotPassword(ctx context.Context, tenant, email string, deps Deps) (*api.Response, error) {
	start := time.Now()
	resp, err := deps.Backend.ForgotPassword(ctx, tenant, email)
	deps.observe(api.EndpointForgotPassword, start, err)
	return resp, err
}

// RunChangePassword hands back the undecoded reply; the caller owns its body.
func RunChangePassword(ctx context.Context, tenant string, req api.ChangePasswordRequest, deps Deps) (*http.Response, error) {
	start := time.Now()
	resp, err := deps.Backend.ChangePassword(ctx, tenant, req)
	deps.observe(api.EndpointChangePassword, start, err)
	return resp, err
}
