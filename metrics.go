package cgAuth

import (
	"sync/atomic"
	"time"
)

// MetricID defines a public type used by cgAuth APIs.
//
// MetricID instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricID uint16

const (
	// MetricLoginSuccess counts credential logins whose reply was decoded.
	MetricLoginSuccess MetricID = iota
	// MetricLoginFailure counts credential logins that failed in transport, status or decode.
	MetricLoginFailure
	// MetricProviderLoginSuccess counts provider logins exchanged for a backend token.
	MetricProviderLoginSuccess
	// MetricProviderLoginFailure counts provider logins rejected by the backend or transport.
	MetricProviderLoginFailure
	// MetricProviderTokenRejected counts provider tokens whose claims could not be decoded.
	MetricProviderTokenRejected
	// MetricRestoreAttempt counts persisted tokens sent for validation.
	MetricRestoreAttempt
	// MetricRestoreSuccess counts restores that adopted the validation reply.
	MetricRestoreSuccess
	// MetricRestoreFailure counts restores that failed or were rejected.
	MetricRestoreFailure
	// MetricRestoreValidationErrors counts validation replies that carried an errors field.
	MetricRestoreValidationErrors
	MetricLogout
	MetricForgotRequest
	MetricForgotFailure
	MetricPasswordChangeRequest
	MetricPasswordChangeFailure
	// MetricStaleResponseDiscarded counts replies dropped because a newer flow was applied first.
	MetricStaleResponseDiscarded
	// MetricStoreFailure counts token store reads, writes and removals that failed.
	MetricStoreFailure
	// MetricBackendLatency is the histogram of backend round-trip durations.
	MetricBackendLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics defines a public type used by cgAuth APIs.
//
// Metrics instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot defines a public type used by cgAuth APIs.
//
// MetricsSnapshot instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics allocates counters for cfg. A disabled config yields a Metrics
// whose Inc and Observe are no-ops.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether counters are recorded.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// LatencyEnabled reports whether the backend latency histogram is recorded.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to id. Safe for concurrent use; never blocks.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d in id's histogram when latency histograms are enabled.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricBackendLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value returns the current count for id, or 0 when disabled.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter and histogram. Disabled metrics produce
// empty maps.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricBackendLatency].buckets[i])
		}
		s.Histograms[MetricBackendLatency] = buckets
	}

	return s
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}
