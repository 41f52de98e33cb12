// Package oteladapters implements the unitofwork observability interfaces on top of OpenTelemetry.
//
// It is a separate module, so the core module does not depend on OpenTelemetry:
//
//	tracker, err := unitofwork.NewTracker(backend,
//		unitofwork.WithContextualLogger(oteladapters.NewSlogBridgeLogger("unitofwork")),
//		unitofwork.WithMetrics(oteladapters.NewMetricsCollector(meter)),
//		unitofwork.WithTracing(oteladapters.NewTracingCollector(tracer)),
//	)
package oteladapters
