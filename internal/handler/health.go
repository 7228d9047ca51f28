package handler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// HealthChecker defines an interface for checking service health.
type HealthChecker interface {
	Ping(ctx context.Context) error
	Name() string
}

// ReadyTimeout bounds the concurrent backend pings of Readyz.
const ReadyTimeout = 3 * time.Second

// HealthHandler manages health check endpoints.
type HealthHandler struct {
	backends []HealthChecker
	strict   bool
}

// NewHealthHandler creates a HealthHandler over the storage backends in
// priority order. When strict is false a failing remote backend reports
// "degraded" with 200 because requests are still served from the fallback.
func NewHealthHandler(strict bool, backends ...HealthChecker) *HealthHandler {
	return &HealthHandler{backends: backends, strict: strict}
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Healthz is a liveness probe endpoint. It performs no dependency checks.
//
// GET /healthz
func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Readyz pings every backend concurrently and reports each result.
//
// GET /readyz
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), ReadyTimeout)
	defer cancel()

	var (
		mu     sync.Mutex
		checks = make(map[string]string, len(h.backends))
		failed int
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, b := range h.backends {
		b := b
		g.Go(func() error {
			result := "ok"
			if err := b.Ping(gctx); err != nil {
				result = "error: " + err.Error()
			}
			mu.Lock()
			checks[b.Name()] = result
			if result != "ok" {
				failed++
			}
			mu.Unlock()
			// Never cancel sibling pings.
			return nil
		})
	}
	_ = g.Wait()

	status, code := "ok", http.StatusOK
	if failed > 0 {
		status = "degraded"
		if h.strict {
			status, code = "unhealthy", http.StatusServiceUnavailable
		}
	}

	writeJSON(w, code, HealthResponse{Status: status, Checks: checks})
}
