package metrics

import (
	"sync"
	"sync/atomic"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	BackendFallbacks   map[string]uint64 // keyed by "backend:op"
	UsageEventsWritten uint64
	UsageEventsRetried uint64
	UsageEventsDropped uint64
	QuotaDenied        uint64
	RateLimited        map[string]uint64 // keyed by scope
}

// InMemoryRecorder stores metrics in memory for tests and the /metrics endpoint.
type InMemoryRecorder struct {
	mu               sync.Mutex
	backendFallbacks map[string]uint64
	rateLimited      map[string]uint64

	usageWritten uint64
	usageRetried uint64
	usageDropped uint64
	quotaDenied  uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{
		backendFallbacks: make(map[string]uint64),
		rateLimited:      make(map[string]uint64),
	}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	fallbacks := make(map[string]uint64, len(m.backendFallbacks))
	for k, v := range m.backendFallbacks {
		fallbacks[k] = v
	}
	limited := make(map[string]uint64, len(m.rateLimited))
	for k, v := range m.rateLimited {
		limited[k] = v
	}
	m.mu.Unlock()

	return Snapshot{
		BackendFallbacks:   fallbacks,
		UsageEventsWritten: atomic.LoadUint64(&m.usageWritten),
		UsageEventsRetried: atomic.LoadUint64(&m.usageRetried),
		UsageEventsDropped: atomic.LoadUint64(&m.usageDropped),
		QuotaDenied:        atomic.LoadUint64(&m.quotaDenied),
		RateLimited:        limited,
	}
}

// IncBackendFallback counts a call that fell through past backend.
func (m *InMemoryRecorder) IncBackendFallback(backend, op string) {
	m.mu.Lock()
	m.backendFallbacks[backend+":"+op]++
	m.mu.Unlock()
}

// IncUsageEvent counts usage log outcomes.
func (m *InMemoryRecorder) IncUsageEvent(status string) {
	switch status {
	case "written":
		atomic.AddUint64(&m.usageWritten, 1)
	case "retried":
		atomic.AddUint64(&m.usageRetried, 1)
	case "dropped":
		atomic.AddUint64(&m.usageDropped, 1)
	}
}

// IncQuotaDenied counts quota denials.
func (m *InMemoryRecorder) IncQuotaDenied() {
	atomic.AddUint64(&m.quotaDenied, 1)
}

// IncRateLimited counts rate-limited requests per scope.
func (m *InMemoryRecorder) IncRateLimited(scope string) {
	m.mu.Lock()
	m.rateLimited[scope]++
	m.mu.Unlock()
}
