package model

import "time"

// LoginToken is the stored value behind a single-use sign-in token.
type LoginToken struct {
	ClientID  string `json:"clientId"`
	ExpiresAt int64  `json:"expiresAt"` // Unix milliseconds
}

// IsExpired reports whether the token is no longer usable at now.
func (t *LoginToken) IsExpired(now time.Time) bool {
	return now.UnixMilli() >= t.ExpiresAt
}
