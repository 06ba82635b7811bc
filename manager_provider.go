package cgAuth

import (
	"context"
	"fmt"
)

// SetProviderAccessToken records a token issued by the OAuth provider and
// runs the provider login: the token's claims become the provisional user at
// once, then the identity is exchanged for a backend token. The fragment is
// reset when it still carries an auth marker. An empty token only clears the
// pending provider token.
func (m *Manager) SetProviderAccessToken(ctx context.Context, token string) error {
	if err := m.ready(); err != nil {
		return err
	}
	log := m.flowLogger("provider_login")

	if token == "" {
		m.mu.Lock()
		m.session.PendingProviderToken = ""
		m.mu.Unlock()
		return nil
	}

	seq, tenant := m.begin()
	if tenant == "" {
		m.metricInc(MetricProviderLoginFailure)
		return ErrTenantRequired
	}
	log = log.WithField("tenant", tenant)

	m.mu.Lock()
	m.session.PendingProviderToken = token
	m.mu.Unlock()

	claims, err := m.decoder.Decode(ctx, token)
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrProviderToken, err)
		m.metricInc(MetricProviderTokenRejected)
		log.WithError(err).Warn("decode provider token")
		m.emitAudit(ctx, auditEventProviderLoginFailure, false, "", tenant, log, err, nil)
		return err
	}

	if !m.acquire(seq) {
		m.discard(ctx, log, "provider_login", tenant, seq)
		return nil
	}
	m.setUserLocked(log, profileFromClaims(claims))
	m.mu.Unlock()

	res := m.flows.ProviderLogin(ctx, tenant, claims.identity())
	if res.Err != nil {
		m.metricInc(MetricProviderLoginFailure)
		log.WithError(res.Err).Warn("provider login failed")
		m.emitAudit(ctx, auditEventProviderLoginFailure, false, claims.Subject, tenant, log, res.Err, nil)
		return res.Err
	}

	if !m.acquire(seq) {
		m.discard(ctx, log, "provider_login", tenant, seq)
		return nil
	}
	m.setTokenLocked(ctx, log, res.Response.Token)
	m.mu.Unlock()

	m.resetAuthFragment()
	m.metricInc(MetricProviderLoginSuccess)
	log.Info("provider login succeeded")
	m.emitAudit(ctx, auditEventProviderLoginSuccess, true, claims.Subject, tenant, log, nil, nil)
	return nil
}
