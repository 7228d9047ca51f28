package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/tryon/tryon/internal/handler/dto"
	"github.com/tryon/tryon/internal/kv/memory"
	"github.com/tryon/tryon/internal/model"
	"github.com/tryon/tryon/internal/plan"
	"github.com/tryon/tryon/internal/quota"
	"github.com/tryon/tryon/internal/registry"
	"github.com/tryon/tryon/internal/testutil"
)

type fakeUsage struct {
	events []string
}

func (f *fakeUsage) Record(event, embedID string, meta map[string]any) string {
	f.events = append(f.events, event+":"+embedID)
	return "01TEST"
}

type brokenEmbeds struct{}

func (brokenEmbeds) GetEmbedConfig(context.Context, string) (*model.Embed, error) {
	return nil, errors.New("decode embeds:e1: unexpected end of JSON input")
}

func newEmbedRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Get("/v1/embeds/{id}", h.GetEmbedConfig)
	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.MethodNotAllowed)
	return r
}

func TestHandler_GetEmbedConfig(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := memory.New()
	reg := registry.New(store, testutil.DiscardLogger())
	engine := quota.New(store, testutil.DiscardLogger(), nil)
	usage := &fakeUsage{}

	paid := testutil.NewTestEmbed(t, "paid", "c-pro")
	paid.Theme = "midnight"
	_ = reg.SetEmbedConfig(ctx, paid)
	_ = engine.SetClientPlan(ctx, "c-pro", plan.Pro)

	free := testutil.NewTestEmbed(t, "free", "")
	free.Theme = "midnight"
	_ = reg.SetEmbedConfig(ctx, free)

	router := newEmbedRouter(New(reg, engine, usage, testutil.DiscardLogger()))

	tests := []struct {
		name          string
		path          string
		wantStatus    int
		wantWatermark bool
		wantTheme     string
	}{
		{"paid plan", "/v1/embeds/paid", http.StatusOK, false, "midnight"},
		{"unassigned embed uses free plan", "/v1/embeds/free", http.StatusOK, true, ""},
		{"missing embed", "/v1/embeds/ghost", http.StatusNotFound, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if rec.Code != http.StatusOK {
				var resp dto.ErrorResponse
				if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil || resp.Error.Code != "EMBED_NOT_FOUND" {
					t.Errorf("error body = %+v, %v", resp, err)
				}
				return
			}

			var resp dto.EmbedConfigResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if resp.Watermark != tt.wantWatermark || resp.Theme != tt.wantTheme {
				t.Errorf("watermark/theme = %v/%q, want %v/%q", resp.Watermark, resp.Theme, tt.wantWatermark, tt.wantTheme)
			}
			if resp.Vertical != model.VerticalBarber || resp.Width != 480 {
				t.Errorf("unexpected body %+v", resp)
			}
		})
	}

	want := []string{model.EventConfigView + ":paid", model.EventConfigView + ":free"}
	if len(usage.events) != len(want) || usage.events[0] != want[0] || usage.events[1] != want[1] {
		t.Errorf("usage events = %v, want %v", usage.events, want)
	}
}

func TestHandler_GetEmbedConfig_StoreError(t *testing.T) {
	t.Parallel()

	router := newEmbedRouter(New(brokenEmbeds{}, nil, nil, testutil.DiscardLogger()))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/embeds/e1", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestHandler_NotFoundAndMethodNotAllowed(t *testing.T) {
	t.Parallel()

	router := newEmbedRouter(New(brokenEmbeds{}, nil, nil, nil))

	tests := []struct {
		method, path string
		wantStatus   int
		wantCode     string
	}{
		{http.MethodGet, "/nonexistent", http.StatusNotFound, "NOT_FOUND"},
		{http.MethodDelete, "/v1/embeds/e1", http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED"},
	}

	for _, tt := range tests {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))

		if rec.Code != tt.wantStatus {
			t.Errorf("%s %s = %d, want %d", tt.method, tt.path, rec.Code, tt.wantStatus)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %s", ct)
		}
		var resp dto.ErrorResponse
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil || resp.Error.Code != tt.wantCode {
			t.Errorf("error body = %+v, %v", resp, err)
		}
	}
}
