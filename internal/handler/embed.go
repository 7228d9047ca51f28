package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tryon/tryon/internal/handler/dto"
	"github.com/tryon/tryon/internal/middleware"
	"github.com/tryon/tryon/internal/model"
	"github.com/tryon/tryon/internal/plan"
	"github.com/tryon/tryon/internal/registry"
)

// GetEmbedConfig returns the widget view of an embed and records a
// config_view usage event.
//
// GET /v1/embeds/{id}
func (h *Handler) GetEmbedConfig(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "MISSING_ID", "Embed ID is required")
		return
	}

	embed, err := h.embeds.GetEmbedConfig(r.Context(), id)
	if errors.Is(err, registry.ErrEmbedNotFound) {
		writeError(w, http.StatusNotFound, "EMBED_NOT_FOUND", "Embed not found")
		return
	}
	if err != nil {
		h.logger.Error("load embed config failed",
			slog.String("embed_id", id),
			slog.String("error", err.Error()),
			slog.String("request_id", middleware.GetRequestID(r.Context())),
		)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load embed")
		return
	}

	p := plan.Default()
	if embed.IsAssigned() && h.plans != nil {
		if owned, err := h.plans.ClientPlan(r.Context(), embed.ClientID); err == nil {
			p = owned
		} else {
			h.logger.Warn("client plan unavailable, using default",
				slog.String("embed_id", id),
				slog.String("error", err.Error()),
			)
		}
	}

	if h.usage != nil {
		h.usage.Record(model.EventConfigView, id, nil)
	}

	writeJSON(w, http.StatusOK, dto.NewEmbedConfigResponse(embed, p))
}
