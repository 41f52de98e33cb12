package unitofwork

// Option defines a functional option for configuring a Tracker.
type Option func(*Tracker) error

// WithStructuralDiff enables the deep-equality fallback for collection fields.
// Collection fields are then compared by content against the baseline, so in-place
// mutations are persisted without MarkDirty. It costs one encoding of every
// collection field on attach, flush and DirtyFields.
func WithStructuralDiff() Option {
	return func(t *Tracker) error {
		t.structuralDiff = true
		return nil
	}
}

// WithLogger sets the logger for the Tracker.
//
// Debug level: attach, detach and close of Units of Work
// Info level: flush results with entity counts and durations
// Warn level: attach conflicts, collections that can't be fingerprinted
// Error level: backend failures.
func WithLogger(logger Logger) Option {
	return func(t *Tracker) error {
		t.logger = logger
		return nil
	}
}

// WithContextualLogger sets the contextual logger for the Tracker.
func WithContextualLogger(logger ContextualLogger) Option {
	return func(t *Tracker) error {
		t.contextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the Tracker.
func WithMetrics(collector MetricsCollector) Option {
	return func(t *Tracker) error {
		t.metricsCollector = collector
		return nil
	}
}

// WithTracing sets the tracing collector for the Tracker. Flushes are traced as spans.
func WithTracing(collector TracingCollector) Option {
	return func(t *Tracker) error {
		t.tracingCollector = collector
		return nil
	}
}
