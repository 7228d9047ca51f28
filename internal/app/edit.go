package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tryon/tryon/internal/model"
	"github.com/tryon/tryon/internal/quota"
)

// ErrEmbedUnassigned is returned when an edit targets an embed with no
// owning client to bill.
var ErrEmbedUnassigned = errors.New("embed has no owning client")

// Denial reasons reported by AdmitEdit.
const (
	DenyRateLimited = model.EventRateLimited
	DenyQuota       = model.EventQuotaDenied
)

// EditDecision is the outcome of AdmitEdit.
type EditDecision struct {
	EmbedID   string                `json:"embedId"`
	ClientID  string                `json:"clientId"`
	Allowed   bool                  `json:"allowed"`
	Reason    string                `json:"reason,omitempty"`
	RateLimit quota.RateLimitResult `json:"rateLimit"`
	Quota     quota.Decision        `json:"quota"`
}

// AdmitEdit decides whether one image edit may start for embedID from ip.
// It counts the request against the per-minute edit limit, then checks the
// owner's monthly quota. Denials are recorded as usage events. Nothing is
// billed here; call CompleteEdit after the work finishes.
func (a *App) AdmitEdit(ctx context.Context, embedID, ip string) (EditDecision, error) {
	embed, err := a.Registry.GetEmbedConfig(ctx, embedID)
	if err != nil {
		return EditDecision{}, err
	}
	d := EditDecision{EmbedID: embedID, ClientID: embed.ClientID}

	d.RateLimit, err = a.Quota.CheckRateLimit(ctx, quota.ScopeEdit, embedID+":"+ip, a.Config.RateLimitEditPerMinute)
	if err != nil {
		a.Logger.Warn("edit rate limit check failed, allowing", slog.String("embed_id", embedID), slog.String("error", err.Error()))
		d.RateLimit.Allowed = true
	}
	if !d.RateLimit.Allowed {
		d.Reason = DenyRateLimited
		a.Usage.Record(model.EventRateLimited, embedID, map[string]any{"scope": quota.ScopeEdit})
		return d, nil
	}

	if !embed.IsAssigned() {
		return d, ErrEmbedUnassigned
	}

	d.Quota, err = a.Quota.Check(ctx, embed.ClientID)
	if err != nil {
		return d, fmt.Errorf("check quota: %w", err)
	}
	if !d.Quota.Allowed {
		d.Reason = DenyQuota
		a.Usage.Record(model.EventQuotaDenied, embedID, map[string]any{
			"clientId": embed.ClientID,
			"plan":     d.Quota.Plan.ID,
			"used":     d.Quota.Used,
		})
		return d, nil
	}

	d.Allowed = true
	return d, nil
}

// CompleteEdit records the outcome of an admitted edit. A successful edit
// bills exactly one generation to the owner and bumps the daily meter; a
// failed one is only logged. It returns the owner's usage for the month.
func (a *App) CompleteEdit(ctx context.Context, embedID string, succeeded bool, meta map[string]any) (int64, error) {
	embed, err := a.Registry.GetEmbedConfig(ctx, embedID)
	if err != nil {
		return 0, err
	}
	if !embed.IsAssigned() {
		return 0, ErrEmbedUnassigned
	}

	if !succeeded {
		a.Usage.Record(model.EventEditFailed, embedID, meta)
		return a.Quota.MonthlyUsage(ctx, embed.ClientID)
	}

	used, err := a.Quota.IncrMonthlyUsage(ctx, embed.ClientID, 1)
	if err != nil {
		return 0, fmt.Errorf("bill generation: %w", err)
	}
	if _, err := a.Usage.IncrDaily(ctx, embedID); err != nil {
		a.Logger.Warn("daily meter not updated", slog.String("embed_id", embedID), slog.String("error", err.Error()))
	}
	a.Usage.Record(model.EventEditSuccess, embedID, meta)
	return used, nil
}
