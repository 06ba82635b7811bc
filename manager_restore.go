package cgAuth

import (
	"context"
	"strconv"

	"github.com/sirupsen/logrus"
)

// recordUndefined is what a client that persisted an unset token left behind.
const recordUndefined = "undefined"

// Start resolves the tenant through the configured resolver, if any, and
// restores the persisted session for it.
func (m *Manager) Start(ctx context.Context) error {
	if err := m.ready(); err != nil {
		return err
	}
	if m.resolver != nil {
		tenant, err := m.resolver.Tenant(ctx)
		if err != nil {
			m.log.WithError(err).Warn("resolve tenant")
			return err
		}
		if tenant == "" {
			return ErrTenantRequired
		}
		m.switchTenant(ctx, tenant)
	}
	return m.Restore(ctx)
}

// SetTenant rescopes the session to tenant. When the tenant changes the
// in-memory session is cleared, in-flight replies are discarded and the new
// tenant's persisted session is restored. Persisted records are not touched.
func (m *Manager) SetTenant(ctx context.Context, tenant string) error {
	if err := m.ready(); err != nil {
		return err
	}
	if tenant == "" {
		return ErrTenantRequired
	}
	if !m.switchTenant(ctx, tenant) {
		return nil
	}
	return m.Restore(ctx)
}

func (m *Manager) switchTenant(ctx context.Context, tenant string) bool {
	m.mu.Lock()
	previous := m.tenant
	if previous == tenant {
		m.mu.Unlock()
		return false
	}
	m.issued++
	m.applied = m.issued
	m.tenant = tenant
	m.session = Session{}
	m.mu.Unlock()

	log := m.flowLogger("tenant")
	log.WithFields(logrus.Fields{"from": previous, "to": tenant}).Info("tenant changed")
	m.emitAudit(ctx, auditEventTenantChanged, true, "", tenant, log, nil, func() map[string]string {
		return map[string]string{"previous": previous}
	})
	return true
}

// Restore revalidates the tenant's persisted token.
//
// A record that is missing, empty or "undefined" is ignored. Otherwise the
// record is adopted optimistically and then sent to the validation endpoint.
// On a decodable reply the token and user are replaced from it. A reply that
// carries errors is logged and audited and, unless Restore.RejectOnErrors is
// set, adopted all the same. Failures are returned and leave the optimistic
// token in place.
func (m *Manager) Restore(ctx context.Context) error {
	if err := m.ready(); err != nil {
		return err
	}
	log := m.flowLogger("restore")

	seq, tenant := m.begin()
	if tenant == "" {
		return ErrTenantRequired
	}
	log = log.WithField("tenant", tenant)

	record, ok, err := m.store.Get(ctx, m.storageKey(tenant))
	if err != nil {
		m.metricInc(MetricStoreFailure)
		m.metricInc(MetricRestoreFailure)
		log.WithError(err).Warn("read persisted token")
		m.emitAudit(ctx, auditEventRestoreFailure, false, "", tenant, log, err, nil)
		return err
	}
	if !ok || record == "" || record == recordUndefined {
		log.Debug("no persisted token")
		return nil
	}

	if !m.acquire(seq) {
		m.discard(ctx, log, "restore", tenant, seq)
		return nil
	}
	m.setTokenLocked(ctx, log, record)
	m.mu.Unlock()

	m.metricInc(MetricRestoreAttempt)
	res := m.flows.Validate(ctx, tenant, record)
	if res.Err != nil {
		m.metricInc(MetricRestoreFailure)
		log.WithError(res.Err).Warn("validate persisted token")
		m.emitAudit(ctx, auditEventRestoreFailure, false, "", tenant, log, res.Err, nil)
		return res.Err
	}

	if !m.acquire(seq) {
		m.discard(ctx, log, "restore", tenant, seq)
		return nil
	}

	reject := res.ValidationErrors && m.config.Restore.RejectOnErrors
	if reject {
		m.setUserLocked(log, nil)
		m.setTokenLocked(ctx, log, "")
	} else {
		m.setTokenLocked(ctx, log, res.Response.Token)
		m.setUserLocked(log, profileFromFlow(res.Profile))
	}
	m.mu.Unlock()

	if res.ValidationErrors {
		m.metricInc(MetricRestoreValidationErrors)
		log.WithField("errors", string(res.Response.Errors)).Warn("validation reply carries errors")
		m.emitAudit(ctx, auditEventRestoreValidationErrors, false, res.Profile.ID, tenant, log, nil, func() map[string]string {
			return map[string]string{"rejected": strconv.FormatBool(reject)}
		})
	}
	if reject {
		m.metricInc(MetricRestoreFailure)
		return ErrValidationRejected
	}

	m.resetAuthFragment()
	m.metricInc(MetricRestoreSuccess)
	log.Info("session restored")
	m.emitAudit(ctx, auditEventRestoreSuccess, true, res.Profile.ID, tenant, log, nil, nil)
	return nil
}
