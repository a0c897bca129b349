// Package prometheus exposes engine counters and latency histograms as a
// prometheus.Collector.
//
// The collector reads [accountguard.Engine.MetricsSnapshot] on every scrape
// and never mutates engine state. Register it with any registry, or use
// [Handler] for a dedicated one.
package prometheus
