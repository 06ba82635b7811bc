package cgAuth

import (
	"errors"

	"github.com/cairnsgames/cgAuth/internal/api"
)

var (
	// ErrNotConfigured is returned when the backend base URL is missing.
	ErrNotConfigured = errors.New("auth api not configured")
	// ErrTenantRequired is returned when an operation runs without a tenant.
	ErrTenantRequired = errors.New("tenant required")
	// ErrOutsideScope is returned (or panicked with) when the accessor is used
	// on a context that carries no Manager.
	ErrOutsideScope = errors.New("auth session used outside of its manager scope")
	// ErrBackendStatus is wrapped by [StatusError] for non-2xx backend replies.
	ErrBackendStatus = api.ErrStatus
	// ErrDecodeResponse is returned when a backend body is not valid JSON.
	ErrDecodeResponse = api.ErrDecode
	// ErrProviderToken is returned when the provider access token cannot be decoded.
	ErrProviderToken = errors.New("provider token could not be decoded")
	// ErrProviderDecoderRequired is returned by Build when Provider.IssuerURL is
	// set but no verifying [ProviderDecoder] was supplied.
	ErrProviderDecoderRequired = errors.New("provider issuer configured without a verifying decoder")
	// ErrValidationRejected is returned by Restore when RejectOnErrors is enabled
	// and the validation response carries errors.
	ErrValidationRejected = errors.New("persisted token rejected by validation")
	// ErrManagerNotReady is returned by methods invoked on a nil or unbuilt Manager.
	ErrManagerNotReady = errors.New("manager not initialized")
)

// StatusError reports a non-2xx backend reply. It unwraps to [ErrBackendStatus].
type StatusError = api.StatusError
