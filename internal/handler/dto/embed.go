// Package dto provides Data Transfer Objects for API requests and responses.
package dto

import (
	"github.com/tryon/tryon/internal/model"
	"github.com/tryon/tryon/internal/plan"
)

// EmbedConfigResponse is the widget-facing view of an embed. It carries the
// plan features the widget enforces and never the owning client's record.
type EmbedConfigResponse struct {
	ID                 string                  `json:"id"`
	Name               string                  `json:"name"`
	Vertical           model.Vertical          `json:"vertical"`
	Theme              string                  `json:"theme,omitempty"`
	Width              int                     `json:"width,omitempty"`
	Height             int                     `json:"height,omitempty"`
	VerticalOptions    map[string]any          `json:"verticalOptions,omitempty"`
	Watermark          bool                    `json:"watermark"`
	ThemeCustomization plan.ThemeCustomization `json:"themeCustomization"`
}

// NewEmbedConfigResponse builds the widget view of e under plan p.
func NewEmbedConfigResponse(e *model.Embed, p plan.Plan) EmbedConfigResponse {
	resp := EmbedConfigResponse{
		ID:                 e.ID,
		Name:               e.Name,
		Vertical:           e.Vertical,
		Width:              e.Width,
		Height:             e.Height,
		VerticalOptions:    e.VerticalOptions,
		Watermark:          p.WatermarkRequired,
		ThemeCustomization: p.ThemeCustomization,
	}
	if p.ThemeCustomization != plan.ThemeNone {
		resp.Theme = e.Theme
	}
	return resp
}

// ErrorBody is the error payload.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps ErrorBody.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}
