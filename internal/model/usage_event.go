package model

import "time"

// Well-known usage event tags.
const (
	EventEditSuccess = "edit_success"
	EventEditFailed  = "edit_failed"
	EventRateLimited = "rate_limited"
	EventQuotaDenied = "quota_exceeded"
	EventConfigView  = "config_view"
)

// UsageEvent is one append-only analytics record.
type UsageEvent struct {
	ID      string         `json:"id"`                // ULID (time-sortable)
	TS      int64          `json:"ts"`                // Unix milliseconds
	Event   string         `json:"event"`             // e.g. edit_success
	EmbedID string         `json:"embedId,omitempty"` // empty for global events
	Meta    map[string]any `json:"meta,omitempty"`
}

// Time returns the event timestamp.
func (e *UsageEvent) Time() time.Time {
	return time.UnixMilli(e.TS)
}
