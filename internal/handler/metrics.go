package handler

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/tryon/tryon/internal/metrics"
)

// MetricsHandler exposes in-memory metrics.
type MetricsHandler struct {
	snapshotter metrics.Snapshotter
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(snapshotter metrics.Snapshotter) *MetricsHandler {
	return &MetricsHandler{snapshotter: snapshotter}
}

// Metrics returns metrics in Prometheus exposition format.
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.snapshotter == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	snap := h.snapshotter.Snapshot()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	for _, k := range sortedKeys(snap.BackendFallbacks) {
		writeMetric(w, "tryon_kv_backend_fallbacks_total{backend_op=%q} %d\n", k, snap.BackendFallbacks[k])
	}

	writeMetric(w, "tryon_usage_events_total{status=\"written\"} %d\n", snap.UsageEventsWritten)
	writeMetric(w, "tryon_usage_events_total{status=\"retried\"} %d\n", snap.UsageEventsRetried)
	writeMetric(w, "tryon_usage_events_total{status=\"dropped\"} %d\n", snap.UsageEventsDropped)

	writeMetric(w, "tryon_quota_denied_total %d\n", snap.QuotaDenied)
	for _, scope := range sortedKeys(snap.RateLimited) {
		writeMetric(w, "tryon_rate_limited_total{scope=%q} %d\n", scope, snap.RateLimited[scope])
	}
}

func sortedKeys(m map[string]uint64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func writeMetric(w http.ResponseWriter, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
