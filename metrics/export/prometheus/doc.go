// Package prometheus exposes cgAuth session metrics as a
// prometheus.Collector.
//
// Counter names are cgauth_*_total; the single histogram is
// cgauth_backend_latency_seconds. [Exporter.Handler] serves a private
// registry, so nothing is registered globally unless the caller registers the
// Exporter itself.
package prometheus
