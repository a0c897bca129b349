// Package otel publishes engine counters and latency histograms through an
// OpenTelemetry meter.
//
// [NewExporter] registers observable counters only. Each latency histogram
// becomes a cumulative <name>_bucket counter carrying an "le" attribute per
// upper bound, next to <name>_count. A single callback reads
// [accountguard.Engine.MetricsSnapshot] per collection cycle. The caller
// owns the MeterProvider.
package otel
