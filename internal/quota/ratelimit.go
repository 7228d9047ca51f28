package quota

import (
	"context"
	"time"
)

const (
	rateLimitKeyPrefix = "rl:"
	minuteLayout       = "200601021504"

	// CounterTTL is attached to a rate counter on its first bump so stale
	// minute windows expire.
	CounterTTL = 2 * time.Minute
)

// Rate-limit scopes.
const (
	ScopeEdit       = "edit"
	ScopeConfigView = "config"
)

// RateLimitKey returns the counter key for identity in scope during the
// minute containing t.
func RateLimitKey(scope, identity string, t time.Time) string {
	return rateLimitKeyPrefix + scope + ":" + identity + ":" + t.UTC().Format(minuteLayout)
}

// BumpCounter atomically adds n to key and returns the new count. The first
// bump gives the key a short TTL.
func (e *Engine) BumpCounter(ctx context.Context, key string, n int64) (int64, error) {
	count, err := e.incr(ctx, key, n)
	if err != nil {
		return 0, err
	}
	if count == n {
		if err := e.store.Expire(ctx, key, CounterTTL); err != nil {
			e.logger.Warn("rate counter expiry not set", "key", key, "error", err)
		}
	}
	return count, nil
}

// RateLimitResult describes one rate-limit check.
type RateLimitResult struct {
	Count   int64
	Limit   int64
	Allowed bool
	ResetAt time.Time
}

// CheckRateLimit counts one request for identity in scope against a
// per-minute limit. A limit <= 0 disables the check.
func (e *Engine) CheckRateLimit(ctx context.Context, scope, identity string, limit int64) (RateLimitResult, error) {
	now := e.now()
	res := RateLimitResult{
		Limit:   limit,
		Allowed: true,
		ResetAt: now.UTC().Truncate(time.Minute).Add(time.Minute),
	}
	if limit <= 0 {
		return res, nil
	}

	count, err := e.BumpCounter(ctx, RateLimitKey(scope, identity, now), 1)
	if err != nil {
		return res, err
	}
	res.Count = count
	res.Allowed = count <= limit
	if !res.Allowed {
		e.metrics.IncRateLimited(scope)
	}
	return res, nil
}
