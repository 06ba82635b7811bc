package cgAuth

import (
	"context"
	"errors"
	"time"

	"github.com/cairnsgames/cgAuth/store"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	auditEventLoginSuccess            = "login_success"
	auditEventLoginFailure            = "login_failure"
	auditEventLogout                  = "logout"
	auditEventRestoreSuccess          = "restore_success"
	auditEventRestoreFailure          = "restore_failure"
	auditEventRestoreValidationErrors = "restore_validation_errors"
	auditEventProviderLoginSuccess    = "provider_login_success"
	auditEventProviderLoginFailure    = "provider_login_failure"
	auditEventPasswordResetRequest    = "password_reset_request"
	auditEventPasswordChangeRequest   = "password_change_request"
	auditEventStaleResponseDiscarded  = "stale_response_discarded"
	auditEventTenantChanged           = "tenant_changed"
)

// AuditErrorCode is the coarse error class recorded on failed audit events.
type AuditErrorCode string

const (
	auditErrBackendStatus    AuditErrorCode = "backend_status"
	auditErrDecode           AuditErrorCode = "decode_failed"
	auditErrProviderToken    AuditErrorCode = "provider_token_invalid"
	auditErrValidation       AuditErrorCode = "validation_rejected"
	auditErrTenantRequired   AuditErrorCode = "tenant_required"
	auditErrStoreUnavailable AuditErrorCode = "store_unavailable"
	auditErrCanceled         AuditErrorCode = "canceled"
	auditErrTransport        AuditErrorCode = "transport"
)

// flowLogger returns the logger for one flow run, tagged with a fresh
// request id.
func (m *Manager) flowLogger(flow string) *logrus.Entry {
	return m.log.WithFields(logrus.Fields{
		"flow":       flow,
		"request_id": uuid.NewString(),
	})
}

func (m *Manager) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	tenantID string,
	log *logrus.Entry,
	err error,
	metadataBuilder func() map[string]string,
) {
	if m == nil || m.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		UserID:    userID,
		TenantID:  tenantID,
		Flow:      fieldOf(log, "flow"),
		RequestID: fieldOf(log, "request_id"),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	m.audit.Emit(ctx, event)
}

func fieldOf(log *logrus.Entry, key string) string {
	if log == nil {
		return ""
	}
	v, _ := log.Data[key].(string)
	return v
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrBackendStatus):
		return auditErrBackendStatus
	case errors.Is(err, ErrDecodeResponse):
		return auditErrDecode
	case errors.Is(err, ErrProviderToken):
		return auditErrProviderToken
	case errors.Is(err, ErrValidationRejected):
		return auditErrValidation
	case errors.Is(err, ErrTenantRequired):
		return auditErrTenantRequired
	case errors.Is(err, store.ErrUnavailable):
		return auditErrStoreUnavailable
	case errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return auditErrCanceled
	default:
		return auditErrTransport
	}
}

func (m *Manager) metricInc(id MetricID) {
	if m == nil {
		return
	}
	m.metrics.Inc(id)
}

func (m *Manager) metricObserve(id MetricID, d time.Duration) {
	if m == nil {
		return
	}
	m.metrics.Observe(id, d)
}
