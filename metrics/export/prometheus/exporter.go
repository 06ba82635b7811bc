package prometheus

import (
	"net/http"

	cgAuth "github.com/cairnsgames/cgAuth"
	"github.com/cairnsgames/cgAuth/metrics/export/internaldefs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metricsSource interface {
	MetricsSnapshot() cgAuth.MetricsSnapshot
	AuditDropped() uint64
}

// Exporter is a prometheus.Collector over a Manager's in-process metrics.
// Collect reads a fresh snapshot on every scrape; nothing is cached.
type Exporter struct {
	source     metricsSource
	counters   []*prometheus.Desc
	histograms []*prometheus.Desc
	dropped    *prometheus.Desc
	registry   *prometheus.Registry
}

var _ prometheus.Collector = (*Exporter)(nil)

// NewPrometheusExporter exports m's metrics.
func NewPrometheusExporter(m *cgAuth.Manager) *Exporter {
	return NewPrometheusExporterFromSource(m)
}

// NewPrometheusExporterFromSource exports any snapshot source.
func NewPrometheusExporterFromSource(source metricsSource) *Exporter {
	e := &Exporter{
		source:     source,
		counters:   make([]*prometheus.Desc, len(internaldefs.CounterDefs)),
		histograms: make([]*prometheus.Desc, len(internaldefs.HistogramDefs)),
		dropped: prometheus.NewDesc(
			"cgauth_audit_dropped_total",
			"Dropped audit events due to dispatcher backpressure.",
			nil, nil,
		),
	}
	for i, def := range internaldefs.CounterDefs {
		e.counters[i] = prometheus.NewDesc(def.Name, def.Help, nil, nil)
	}
	for i, def := range internaldefs.HistogramDefs {
		e.histograms[i] = prometheus.NewDesc(def.Name, def.Help, nil, nil)
	}

	e.registry = prometheus.NewRegistry()
	e.registry.MustRegister(e)
	return e
}

// Describe implements prometheus.Collector.
func (e *Exporter) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range e.counters {
		ch <- d
	}
	for _, d := range e.histograms {
		ch <- d
	}
	ch <- e.dropped
}

// Collect implements prometheus.Collector. Counters absent from the snapshot
// (metrics disabled) are skipped.
func (e *Exporter) Collect(ch chan<- prometheus.Metric) {
	if e.source == nil {
		return
	}
	snapshot := e.source.MetricsSnapshot()
	if len(snapshot.Counters) == 0 && len(snapshot.Histograms) == 0 {
		return
	}

	for i, def := range internaldefs.CounterDefs {
		v, ok := snapshot.Counters[def.ID]
		if !ok {
			continue
		}
		ch <- prometheus.MustNewConstMetric(e.counters[i], prometheus.CounterValue, float64(v))
	}

	for i, def := range internaldefs.HistogramDefs {
		raw, ok := snapshot.Histograms[def.ID]
		if !ok {
			continue
		}
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(raw))
		buckets := make(map[float64]uint64, len(internaldefs.HistogramUpperBounds))
		for j, bound := range internaldefs.HistogramUpperBounds {
			buckets[bound] = cumulative[j]
		}
		// Samples are bucketed only; the sum is not tracked.
		ch <- prometheus.MustNewConstHistogram(e.histograms[i], cumulative[len(cumulative)-1], 0, buckets)
	}

	ch <- prometheus.MustNewConstMetric(e.dropped, prometheus.CounterValue, float64(e.source.AuditDropped()))
}

// Registry returns the exporter's private registry.
func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}

// Handler serves the exporter's registry in the Prometheus exposition format.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}
