package internaldefs

import (
	cgAuth "github.com/cairnsgames/cgAuth"
)

// CounterDef defines a public type used by cgAuth APIs.
//
// CounterDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CounterDef struct {
	ID   cgAuth.MetricID
	Name string
	Help string
}

// HistogramDef defines a public type used by cgAuth APIs.
//
// HistogramDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type HistogramDef struct {
	ID   cgAuth.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in a stable order.
var CounterDefs = []CounterDef{
	{ID: cgAuth.MetricLoginSuccess, Name: "cgauth_login_success_total", Help: "Credential logins whose reply was applied or returned."},
	{ID: cgAuth.MetricLoginFailure, Name: "cgauth_login_failure_total", Help: "Credential logins that failed."},
	{ID: cgAuth.MetricProviderLoginSuccess, Name: "cgauth_provider_login_success_total", Help: "Provider logins exchanged for a backend token."},
	{ID: cgAuth.MetricProviderLoginFailure, Name: "cgauth_provider_login_failure_total", Help: "Provider logins rejected by the backend or transport."},
	{ID: cgAuth.MetricProviderTokenRejected, Name: "cgauth_provider_token_rejected_total", Help: "Provider tokens whose claims could not be decoded."},
	{ID: cgAuth.MetricRestoreAttempt, Name: "cgauth_restore_attempt_total", Help: "Persisted tokens sent for validation."},
	{ID: cgAuth.MetricRestoreSuccess, Name: "cgauth_restore_success_total", Help: "Restores that adopted the validation reply."},
	{ID: cgAuth.MetricRestoreFailure, Name: "cgauth_restore_failure_total", Help: "Restores that failed or were rejected."},
	{ID: cgAuth.MetricRestoreValidationErrors, Name: "cgauth_restore_validation_errors_total", Help: "Validation replies that carried an errors field."},
	{ID: cgAuth.MetricLogout, Name: "cgauth_logout_total", Help: "Logout operations."},
	{ID: cgAuth.MetricForgotRequest, Name: "cgauth_forgot_request_total", Help: "Forgot-password requests."},
	{ID: cgAuth.MetricForgotFailure, Name: "cgauth_forgot_failure_total", Help: "Forgot-password requests that failed."},
	{ID: cgAuth.MetricPasswordChangeRequest, Name: "cgauth_password_change_request_total", Help: "Password change requests."},
	{ID: cgAuth.MetricPasswordChangeFailure, Name: "cgauth_password_change_failure_total", Help: "Password change requests that failed in transport."},
	{ID: cgAuth.MetricStaleResponseDiscarded, Name: "cgauth_stale_response_discarded_total", Help: "Backend replies discarded because a newer flow was applied."},
	{ID: cgAuth.MetricStoreFailure, Name: "cgauth_store_failure_total", Help: "Token store operations that failed."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: cgAuth.MetricBackendLatency, Name: "cgauth_backend_latency_seconds", Help: "Auth backend round-trip latency."},
}

// HistogramUpperBounds are the finite bucket bounds in seconds, matching
// HistogramBounds without the trailing +Inf.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// HistogramBounds are the le labels of the eight buckets.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// NormalizeBuckets pads or truncates raw to eight buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
