package flows

import (
	"context"
	"time"

	"github.com/cairnsgames/cgAuth/internal/api"
)

// ValidateResult is the outcome of validating a persisted token.
type ValidateResult struct {
	Response *api.Response
	Profile  Profile
	// ValidationErrors is set when the backend answered but flagged errors.
	// The response is still returned so the caller can decide what to adopt.
	ValidationErrors bool
	Err              error
}

func RunValidate(ctx context.Context, tenant, token string, deps Deps) ValidateResult {
	start := time.Now()
	resp, err := deps.Backend.ValidateToken(ctx, tenant, token)
	deps.observe(api.EndpointValidateToken, start, err)
	if err != nil {
		return ValidateResult{Err: err}
	}

	return ValidateResult{
		Response:         resp,
		Profile:          ProfileFromResponse(resp),
		ValidationErrors: resp.HasErrors(),
	}
}
