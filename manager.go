package cgAuth

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/cairnsgames/cgAuth/internal/flows"
	"github.com/sirupsen/logrus"
)

// Manager owns one tenant-scoped authentication session.
//
// A Manager is created by [Builder.Build] and is safe for concurrent use.
// Backend round trips run outside the state lock. Each state-applying flow
// takes a sequence number when it starts; its reply is applied only when no
// newer flow (including a logout or tenant switch) has been applied first.
type Manager struct {
	config   Config
	store    TokenStore
	decoder  ProviderDecoder
	resolver TenantResolver
	location Location
	log      *logrus.Entry
	metrics  *Metrics
	audit    *auditDispatcher
	flows    flows.Service

	mu      sync.Mutex
	tenant  string
	session Session
	issued  uint64
	applied uint64
}

// begin reserves a sequence number for a flow and captures the tenant it runs
// against.
func (m *Manager) begin() (uint64, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.issued++
	return m.issued, m.tenant
}

// acquire locks the state for a flow holding seq. It returns false, with the
// lock released, when a newer flow has already been applied.
func (m *Manager) acquire(seq uint64) bool {
	m.mu.Lock()
	if seq < m.applied {
		m.mu.Unlock()
		return false
	}
	m.applied = seq
	return true
}

func (m *Manager) storageKey(tenant string) string {
	return m.config.Storage.KeyPrefix + "." + tenant + "." + m.config.Storage.KeySuffix
}

// setTokenLocked updates the in-memory token and the persisted record in one
// step. Callers hold m.mu. An empty token leaves the record in place; only
// Logout removes it.
func (m *Manager) setTokenLocked(ctx context.Context, log *logrus.Entry, token string) {
	if token == m.session.Token {
		return
	}
	m.session.Token = token
	log.WithField("authenticated", token != "").Debug("token changed")

	if token == "" || m.tenant == "" {
		return
	}
	if err := m.store.Set(ctx, m.storageKey(m.tenant), token); err != nil {
		m.metricInc(MetricStoreFailure)
		log.WithError(err).Warn("persist token")
	}
}

func (m *Manager) setUserLocked(log *logrus.Entry, user *UserProfile) {
	m.session.User = user
	if user == nil {
		log.Debug("user cleared")
		return
	}
	log.WithField("user_id", user.ID).Debug("user changed")
}

// resetAuthFragment clears deep-link fragments left by provider callbacks.
func (m *Manager) resetAuthFragment() {
	if strings.Contains(m.location.Fragment(), "auth") {
		m.location.ResetFragment()
	}
}

func (m *Manager) discard(ctx context.Context, log *logrus.Entry, flow, tenant string, seq uint64) {
	m.metricInc(MetricStaleResponseDiscarded)
	log.WithField("seq", seq).Debug("stale response discarded")
	m.emitAudit(ctx, auditEventStaleResponseDiscarded, false, "", tenant, log, nil, func() map[string]string {
		return map[string]string{"flow": flow}
	})
}

func (m *Manager) observeBackend(endpoint string, took time.Duration, err error) {
	m.metricObserve(MetricBackendLatency, took)
	if err != nil {
		m.log.WithFields(logrus.Fields{
			"endpoint": endpoint,
			"took":     took,
		}).WithError(err).Debug("backend call failed")
	}
}

func (m *Manager) ready() error {
	if m == nil || !m.flows.Initialized() {
		return ErrManagerNotReady
	}
	return nil
}

// Token returns the current backend session token, or "".
func (m *Manager) Token() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session.Token
}

// User returns a copy of the signed-in user, or nil.
func (m *Manager) User() *UserProfile {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session.User == nil {
		return nil
	}
	u := *m.session.User
	return &u
}

// Session returns a snapshot of the whole session.
func (m *Manager) Session() Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.session
	if s.User != nil {
		u := *s.User
		s.User = &u
	}
	return s
}

// Tenant returns the tenant the session is scoped to.
func (m *Manager) Tenant() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tenant
}

// Logout clears the session and removes the tenant's persisted record. It
// makes no network call and is idempotent. Replies to flows started before the
// logout are discarded. The store error, if any, is returned after the
// in-memory state has been cleared.
func (m *Manager) Logout(ctx context.Context) error {
	if err := m.ready(); err != nil {
		return err
	}
	log := m.flowLogger("logout")

	m.mu.Lock()
	m.issued++
	m.applied = m.issued
	tenant := m.tenant
	userID := ""
	if m.session.User != nil {
		userID = m.session.User.ID
	}
	m.session.PendingProviderToken = ""
	m.setUserLocked(log, nil)
	m.setTokenLocked(ctx, log, "")

	var err error
	if tenant != "" {
		err = m.store.Remove(ctx, m.storageKey(tenant))
	}
	m.mu.Unlock()

	m.location.ResetFragment()
	m.metricInc(MetricLogout)
	if err != nil {
		m.metricInc(MetricStoreFailure)
		log.WithError(err).Warn("remove persisted token")
	}
	m.emitAudit(ctx, auditEventLogout, err == nil, userID, tenant, log, err, nil)
	return err
}

// Close releases background resources (the audit dispatcher). The session
// state and persisted record are left as they are.
func (m *Manager) Close() {
	if m == nil {
		return
	}
	m.audit.Close()
}

// MetricsSnapshot returns the manager's counters and histograms.
func (m *Manager) MetricsSnapshot() MetricsSnapshot {
	if m == nil {
		return NewMetrics(MetricsConfig{}).Snapshot()
	}
	return m.metrics.Snapshot()
}

// AuditDropped reports how many audit events were dropped on a full buffer.
func (m *Manager) AuditDropped() uint64 {
	if m == nil {
		return 0
	}
	return m.audit.Dropped()
}
