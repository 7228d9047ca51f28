package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

// mockHealthChecker is a mock implementation of HealthChecker for testing.
type mockHealthChecker struct {
	name string
	err  error
}

func (m *mockHealthChecker) Ping(ctx context.Context) error {
	return m.err
}

func (m *mockHealthChecker) Name() string {
	return m.name
}

func TestHealthHandler_Healthz(t *testing.T) {
	t.Parallel()

	h := NewHealthHandler(false)
	rec := httptest.NewRecorder()
	h.Healthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
	var response HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Status != "ok" {
		t.Errorf("expected status 'ok', got %s", response.Status)
	}
}

func TestHealthHandler_Readyz(t *testing.T) {
	t.Parallel()

	down := errors.New("connection refused")

	tests := []struct {
		name       string
		strict     bool
		redisErr   error
		wantStatus int
		wantBody   string
		wantRedis  string
	}{
		{"all healthy", false, nil, http.StatusOK, "ok", "ok"},
		{"remote down is degraded", false, down, http.StatusOK, "degraded", "error: connection refused"},
		{"remote down in strict mode", true, down, http.StatusServiceUnavailable, "unhealthy", "error: connection refused"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := NewHealthHandler(tt.strict,
				&mockHealthChecker{name: "redis", err: tt.redisErr},
				&mockHealthChecker{name: "memory"},
			)
			rec := httptest.NewRecorder()
			h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			var response HealthResponse
			if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if response.Status != tt.wantBody {
				t.Errorf("status = %q, want %q", response.Status, tt.wantBody)
			}
			if response.Checks["redis"] != tt.wantRedis || response.Checks["memory"] != "ok" {
				t.Errorf("checks = %v", response.Checks)
			}
		})
	}
}
