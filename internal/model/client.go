// Package model defines domain entities for the application.
package model

import (
	"strings"
	"time"
)

// Client represents a tenant account that owns embeds.
type Client struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Token     string    `json:"token"` // Bearer secret; never log
	CreatedAt time.Time `json:"createdAt"`
}

// NormalizeEmail lowercases and trims an email for index lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
