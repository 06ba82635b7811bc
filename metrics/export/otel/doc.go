// Package otel publishes cgAuth session metrics through an OpenTelemetry Meter.
//
// [NewOTelExporter] registers an Int64ObservableCounter per counter and, for
// the backend latency histogram, a cumulative bucket gauge carrying an "le"
// attribute. One callback reads [cgAuth.Manager.MetricsSnapshot] per
// collection cycle.
//
// The caller owns the MeterProvider.
package otel
