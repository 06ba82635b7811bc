package cgAuth

import (
	"context"
	"net/http"
	"strconv"

	"github.com/cairnsgames/cgAuth/internal/api"
	"github.com/sirupsen/logrus"
)

// Login exchanges credentials for a backend session token.
//
// On a decodable 2xx reply the token is set (and persisted) and the user is
// replaced with the profile from the reply. Transport failures, non-2xx
// statuses and undecodable bodies are returned with no state change. A reply
// that arrives after a newer flow has been applied is returned to the caller
// but not applied.
func (m *Manager) Login(ctx context.Context, email, password string) (*ServerResponse, error) {
	if err := m.ready(); err != nil {
		return nil, err
	}
	log := m.flowLogger("login")

	seq, tenant := m.begin()
	if tenant == "" {
		m.metricInc(MetricLoginFailure)
		return nil, ErrTenantRequired
	}
	log = log.WithField("tenant", tenant)

	res := m.flows.Login(ctx, tenant, email, password)
	if res.Err != nil {
		m.metricInc(MetricLoginFailure)
		log.WithError(res.Err).Warn("login failed")
		m.emitAudit(ctx, auditEventLoginFailure, false, "", tenant, log, res.Err, nil)
		return nil, res.Err
	}

	resp := newServerResponse(res.Response)
	if !m.acquire(seq) {
		m.discard(ctx, log, "login", tenant, seq)
		return resp, nil
	}
	m.setTokenLocked(ctx, log, res.Response.Token)
	m.setUserLocked(log, profileFromFlow(res.Profile))
	m.mu.Unlock()

	m.metricInc(MetricLoginSuccess)
	log.Info("login succeeded")
	m.emitAudit(ctx, auditEventLoginSuccess, true, res.Profile.ID, tenant, log, nil, nil)
	return resp, nil
}

// Forgot asks the backend to start a password reset for email. Session state
// is not touched.
func (m *Manager) Forgot(ctx context.Context, email string) (*ServerResponse, error) {
	if err := m.ready(); err != nil {
		return nil, err
	}
	log := m.flowLogger("forgot")

	tenant := m.Tenant()
	if tenant == "" {
		m.metricInc(MetricForgotFailure)
		return nil, ErrTenantRequired
	}

	m.metricInc(MetricForgotRequest)
	resp, err := m.flows.ForgotPassword(ctx, tenant, email)
	m.emitAudit(ctx, auditEventPasswordResetRequest, err == nil, "", tenant, log, err, nil)
	if err != nil {
		m.metricInc(MetricForgotFailure)
		log.WithField("tenant", tenant).WithError(err).Warn("forgot password failed")
		return nil, err
	}
	return newServerResponse(resp), nil
}

// ChangePassword forwards a password change for userID. The reply is returned
// undecoded and the caller must close its body. Only transport failures are
// reported as errors; any status code is handed back as is.
func (m *Manager) ChangePassword(ctx context.Context, userID, oldPassword, newPassword, confirmPassword string) (*http.Response, error) {
	if err := m.ready(); err != nil {
		return nil, err
	}
	log := m.flowLogger("change_password")

	tenant := m.Tenant()
	if tenant == "" {
		m.metricInc(MetricPasswordChangeFailure)
		return nil, ErrTenantRequired
	}

	m.metricInc(MetricPasswordChangeRequest)
	resp, err := m.flows.ChangePassword(ctx, tenant, api.ChangePasswordRequest{
		UserID:      userID,
		OldPassword: oldPassword,
		Password:    newPassword,
		Password2:   confirmPassword,
	})

	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	m.emitAudit(ctx, auditEventPasswordChangeRequest, err == nil, userID, tenant, log, err, func() map[string]string {
		return map[string]string{"status": strconv.Itoa(status)}
	})
	if err != nil {
		m.metricInc(MetricPasswordChangeFailure)
		log.WithFields(logrus.Fields{"tenant": tenant, "user_id": userID}).WithError(err).Warn("change password failed")
		return nil, err
	}
	return resp, nil
}
