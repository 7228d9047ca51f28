package metrics

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

// IncBackendFallback is a no-op.
func (n *NoopRecorder) IncBackendFallback(backend, op string) {}

// IncUsageEvent is a no-op.
func (n *NoopRecorder) IncUsageEvent(status string) {}

// IncQuotaDenied is a no-op.
func (n *NoopRecorder) IncQuotaDenied() {}

// IncRateLimited is a no-op.
func (n *NoopRecorder) IncRateLimited(scope string) {}
