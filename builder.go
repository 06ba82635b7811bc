package cgAuth

import (
	"errors"
	"net/http"

	"github.com/cairnsgames/cgAuth/internal/api"
	"github.com/cairnsgames/cgAuth/internal/flows"
	"github.com/cairnsgames/cgAuth/jwt"
	"github.com/cairnsgames/cgAuth/store"
	"github.com/sirupsen/logrus"
)

// Builder assembles a [Manager].
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config Config

	store     TokenStore
	decoder   ProviderDecoder
	resolver  TenantResolver
	tenant    string
	location  Location
	logger    logrus.FieldLogger
	transport http.RoundTripper
	auditSink AuditSink

	built bool
}

// New returns a Builder seeded with the default configuration.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration with a copy of cfg. Errors in
// cfg surface from [Builder.Build].
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithStore sets where tokens are persisted. Defaults to an in-memory store.
func (b *Builder) WithStore(s TokenStore) *Builder {
	b.store = s
	return b
}

// WithProviderDecoder replaces the default unverified JWT decoder. Required
// when Config.Provider.IssuerURL is set; provider.NewOIDCDecoder builds one.
func (b *Builder) WithProviderDecoder(d ProviderDecoder) *Builder {
	b.decoder = d
	return b
}

// WithTenantResolver sets the collaborator consulted by [Manager.Start].
func (b *Builder) WithTenantResolver(r TenantResolver) *Builder {
	b.resolver = r
	return b
}

// WithTenant sets the initial tenant.
func (b *Builder) WithTenant(tenant string) *Builder {
	b.tenant = tenant
	return b
}

// WithLocation sets the deep-link fragment the manager resets after callbacks.
func (b *Builder) WithLocation(l Location) *Builder {
	b.location = l
	return b
}

// WithLogger sets the log sink. Entries are tagged namespace=Auth.
func (b *Builder) WithLogger(l logrus.FieldLogger) *Builder {
	b.logger = l
	return b
}

// WithTransport sets the HTTP transport under the traced backend client.
func (b *Builder) WithTransport(rt http.RoundTripper) *Builder {
	b.transport = rt
	return b
}

// WithAuditSink sets where audit events go. Events flow only when
// Config.Audit.Enabled is set.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled toggles in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the backend round-trip histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and returns a ready [Manager]. A Builder
// can be built once; Build fails on invalid configuration, on a provider
// issuer without a verifying decoder, and on reuse.
func (b *Builder) Build() (*Manager, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client, err := api.New(api.Config{
		BaseURL:      cfg.API.BaseURL,
		TenantHeader: cfg.API.TenantHeader,
		Debug:        cfg.API.Debug,
		Timeout:      cfg.API.Timeout,
		Transport:    b.transport,
	})
	if err != nil {
		return nil, err
	}

	m := &Manager{
		config:   cfg,
		store:    b.store,
		decoder:  b.decoder,
		resolver: b.resolver,
		location: b.location,
		tenant:   b.tenant,
	}

	if m.store == nil {
		m.store = store.NewMemory()
	}
	if m.decoder == nil {
		if cfg.Provider.IssuerURL != "" {
			return nil, ErrProviderDecoderRequired
		}
		d, err := jwt.NewDecoder(jwt.Config{})
		if err != nil {
			return nil, err
		}
		m.decoder = JWTDecoder(d)
	}
	if m.location == nil {
		m.location = noopLocation{}
	}

	logger := b.logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	m.log = logger.WithField("namespace", "Auth")

	m.metrics = NewMetrics(cfg.Metrics)
	m.audit = newAuditDispatcher(cfg.Audit, b.auditSink, m.log)
	m.flows = flows.New(flows.Deps{
		Backend: client,
		Observe: m.observeBackend,
	})

	b.built = true

	m.log.WithFields(logrus.Fields{
		"tenant":       m.tenant,
		"api":          cfg.API.BaseURL,
		"provider_oid": cfg.Provider.ClientID,
	}).Debug("auth manager built")

	return m, nil
}
