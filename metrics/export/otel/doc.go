// Package otel provides OpenTelemetry metric exporter bindings for
// sessionauth counters and histograms.
//
// [NewOTelExporter] registers Int64ObservableCounter instruments for each
// sessionauth metric and Int64ObservableGauge per histogram bucket. A single
// callback reads [sessionauth.Issuer.MetricsSnapshot] on each collection
// cycle.
//
// # What this package must NOT do
//
//   - Own the OTel MeterProvider — callers supply the Meter.
//   - Mutate issuer state.
package otel
