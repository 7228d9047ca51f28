// Package handler provides HTTP request handlers.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/tryon/tryon/internal/handler/dto"
	"github.com/tryon/tryon/internal/model"
	"github.com/tryon/tryon/internal/plan"
)

// EmbedReader loads embed configs.
type EmbedReader interface {
	GetEmbedConfig(ctx context.Context, id string) (*model.Embed, error)
}

// PlanReader resolves a client's plan.
type PlanReader interface {
	ClientPlan(ctx context.Context, clientID string) (plan.Plan, error)
}

// UsageRecorder queues usage events.
type UsageRecorder interface {
	Record(event, embedID string, meta map[string]any) string
}

// Handler wraps application dependencies for HTTP handlers.
type Handler struct {
	embeds EmbedReader
	plans  PlanReader
	usage  UsageRecorder
	logger *slog.Logger
}

// New creates a new Handler instance. usage may be nil.
func New(embeds EmbedReader, plans PlanReader, usage UsageRecorder, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		embeds: embeds,
		plans:  plans,
		usage:  usage,
		logger: logger.With("component", "handler"),
	}
}

// NotFound handles 404 responses.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "NOT_FOUND", "resource not found")
}

// MethodNotAllowed handles 405 responses.
func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, dto.ErrorResponse{Error: dto.ErrorBody{Code: code, Message: message}})
}
