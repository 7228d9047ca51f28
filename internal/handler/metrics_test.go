package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tryon/tryon/internal/metrics"
)

func TestMetricsHandler(t *testing.T) {
	t.Parallel()

	rec := metrics.NewInMemory()
	rec.IncBackendFallback("redis", "set")
	rec.IncBackendFallback("redis", "set")
	rec.IncUsageEvent("written")
	rec.IncUsageEvent("dropped")
	rec.IncQuotaDenied()
	rec.IncRateLimited("edit")

	w := httptest.NewRecorder()
	NewMetricsHandler(rec).Metrics(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := w.Body.String()
	for _, line := range []string{
		`tryon_kv_backend_fallbacks_total{backend_op="redis:set"} 2`,
		`tryon_usage_events_total{status="written"} 1`,
		`tryon_usage_events_total{status="dropped"} 1`,
		`tryon_quota_denied_total 1`,
		`tryon_rate_limited_total{scope="edit"} 1`,
	} {
		if !strings.Contains(body, line) {
			t.Errorf("missing %q in:\n%s", line, body)
		}
	}
}

func TestMetricsHandler_NoSnapshotter(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	NewMetricsHandler(nil).Metrics(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}
