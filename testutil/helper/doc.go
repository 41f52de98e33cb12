// Package helper provides test doubles for the unitofwork packages: a Backend spy
// recording persist calls, a slog.Handler spy, a MetricsCollector spy and a
// TracingCollector spy.
package helper
