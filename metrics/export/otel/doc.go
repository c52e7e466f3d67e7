// Package otel provides OpenTelemetry metric exporter bindings for the session
// manager's counters.
//
// [NewExporter] registers an Int64ObservableCounter per session lifecycle
// metric plus one for shed notifications. A single callback reads
// [authsession.Manager.MetricsSnapshot] on each collection cycle, so the
// exporter adds no overhead to the session hot path.
//
// # What this package must NOT do
//
//   - Own the OTel MeterProvider — callers supply the Meter.
//   - Mutate manager state.
package otel
