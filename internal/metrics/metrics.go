// Package metrics provides lightweight hooks for instrumentation.
package metrics

// Recorder captures metric events for the storage and quota engine.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// Backend selector metrics
	IncBackendFallback(backend, op string)

	// Usage log metrics
	IncUsageEvent(status string) // status: "written", "retried", "dropped"

	// Quota and rate-limit outcomes
	IncQuotaDenied()
	IncRateLimited(scope string)
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
