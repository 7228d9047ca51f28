package usage

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

const (
	meterKeyPrefix = "meter:"

	// MeterRetention is how long a daily meter key lives after its first
	// increment.
	MeterRetention = 35 * 24 * time.Hour
)

// MeterKey returns the daily counter key for embedID on day t (UTC).
func MeterKey(embedID string, t time.Time) string {
	return meterKeyPrefix + t.UTC().Format("2006-01-02") + ":" + embedID
}

// IncrDaily counts one successful edit for embedID today.
func (l *Log) IncrDaily(ctx context.Context, embedID string) (int64, error) {
	key := MeterKey(embedID, l.now())
	n, err := l.store.Incr(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("incr %s: %w", key, err)
	}
	if n == 1 {
		if err := l.store.Expire(ctx, key, MeterRetention); err != nil {
			l.logger.Warn("meter expiry not set", "key", key, "error", err)
		}
	}
	return n, nil
}

// DailyCount returns the meter for embedID on day t. Missing days are 0.
func (l *Log) DailyCount(ctx context.Context, embedID string, t time.Time) (int64, error) {
	key := MeterKey(embedID, t)
	raw, ok, err := l.store.Get(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("get %s: %w", key, err)
	}
	if !ok {
		return 0, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return n, nil
}
