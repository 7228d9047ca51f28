package kv

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/tryon/tryon/internal/metrics"
)

// Chain tries an ordered list of backends behind one Store. The last backend
// is the process-local fallback and must not fail.
//
// Writes stop at the first backend that succeeds. Removals (Del, SRem,
// Expire) are applied to every reachable backend so a copy written during an
// outage cannot resurface. Reads return the first non-empty answer; errors
// and misses fall through, and a total miss is the zero value with a nil
// error. Backend errors are logged and never returned.
type Chain struct {
	backends []Store
	logger   *slog.Logger
	metrics  metrics.Recorder
}

// NewChain builds a selector over backends in priority order followed by
// fallback.
func NewChain(fallback Store, logger *slog.Logger, recorder metrics.Recorder, backends ...Store) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	all := make([]Store, 0, len(backends)+1)
	for _, b := range backends {
		if b != nil {
			all = append(all, b)
		}
	}
	all = append(all, fallback)

	return &Chain{
		backends: all,
		logger:   logger.With("component", "kv.chain"),
		metrics:  recorder,
	}
}

// Backends returns the backends in priority order, fallback last.
func (c *Chain) Backends() []Store {
	return append([]Store(nil), c.backends...)
}

// Primary returns the highest-priority backend, or nil when only the
// fallback is configured.
func (c *Chain) Primary() Store {
	if len(c.backends) < 2 {
		return nil
	}
	return c.backends[0]
}

// Fallback returns the process-local backend.
func (c *Chain) Fallback() Store {
	return c.backends[len(c.backends)-1]
}

// fail records a backend error. Context errors are not counted as
// fallbacks because every backend would see the same cancellation.
func (c *Chain) fail(b Store, op, key string, err error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		c.logger.Debug("backend call cancelled", "backend", b.Name(), "op", op, "key", key)
	} else {
		c.logger.Warn("backend call failed, falling back",
			"backend", b.Name(),
			"op", op,
			"key", key,
			"error", err,
		)
	}
	c.metrics.IncBackendFallback(b.Name(), op)
}

// write runs fn against each backend until one succeeds.
func (c *Chain) write(op, key string, fn func(Store) error) {
	for _, b := range c.backends {
		if err := fn(b); err != nil {
			c.fail(b, op, key, err)
			continue
		}
		return
	}
}

// broadcast runs fn against every backend.
func (c *Chain) broadcast(op, key string, fn func(Store) error) {
	for _, b := range c.backends {
		if err := fn(b); err != nil {
			c.fail(b, op, key, err)
		}
	}
}

// Get returns the first value found.
func (c *Chain) Get(ctx context.Context, key string) (string, bool, error) {
	for _, b := range c.backends {
		v, ok, err := b.Get(ctx, key)
		if err != nil {
			c.fail(b, "get", key, err)
			continue
		}
		if ok {
			return v, true, nil
		}
	}
	return "", false, nil
}

// Set writes to the first backend that accepts it.
func (c *Chain) Set(ctx context.Context, key, value string) error {
	c.write("set", key, func(b Store) error { return b.Set(ctx, key, value) })
	return nil
}

// Del removes key from every backend and reports whether any held it.
func (c *Chain) Del(ctx context.Context, key string) (bool, error) {
	existed := false
	c.broadcast("del", key, func(b Store) error {
		ok, err := b.Del(ctx, key)
		existed = existed || ok
		return err
	})
	return existed, nil
}

// GetDel claims key from the first backend holding it.
func (c *Chain) GetDel(ctx context.Context, key string) (string, bool, error) {
	for _, b := range c.backends {
		v, ok, err := b.GetDel(ctx, key)
		if err != nil {
			c.fail(b, "getdel", key, err)
			continue
		}
		if ok {
			return v, true, nil
		}
	}
	return "", false, nil
}

// Expire applies ttl wherever key exists.
func (c *Chain) Expire(ctx context.Context, key string, ttl time.Duration) error {
	c.broadcast("expire", key, func(b Store) error { return b.Expire(ctx, key, ttl) })
	return nil
}

// SAdd adds member on the first backend that accepts it.
func (c *Chain) SAdd(ctx context.Context, key, member string) error {
	c.write("sadd", key, func(b Store) error { return b.SAdd(ctx, key, member) })
	return nil
}

// SMembers returns the first non-empty set.
func (c *Chain) SMembers(ctx context.Context, key string) ([]string, error) {
	for _, b := range c.backends {
		members, err := b.SMembers(ctx, key)
		if err != nil {
			c.fail(b, "smembers", key, err)
			continue
		}
		if len(members) > 0 {
			return members, nil
		}
	}
	return nil, nil
}

// SRem removes member from every backend.
func (c *Chain) SRem(ctx context.Context, key, member string) error {
	c.broadcast("srem", key, func(b Store) error { return b.SRem(ctx, key, member) })
	return nil
}

// LPush prepends value on the first backend that accepts it.
func (c *Chain) LPush(ctx context.Context, key, value string) error {
	c.write("lpush", key, func(b Store) error { return b.LPush(ctx, key, value) })
	return nil
}

// LRange returns the first non-empty window.
func (c *Chain) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	for _, b := range c.backends {
		vals, err := b.LRange(ctx, key, start, stop)
		if err != nil {
			c.fail(b, "lrange", key, err)
			continue
		}
		if len(vals) > 0 {
			return vals, nil
		}
	}
	return nil, nil
}

// LTrim trims the list on every backend so fallback copies stay bounded too.
func (c *Chain) LTrim(ctx context.Context, key string, start, stop int64) error {
	c.broadcast("ltrim", key, func(b Store) error { return b.LTrim(ctx, key, start, stop) })
	return nil
}

// Incr increments on the first backend that accepts it.
func (c *Chain) Incr(ctx context.Context, key string) (int64, error) {
	return c.IncrBy(ctx, key, 1)
}

// IncrBy increments on the first backend that accepts it. If every backend
// rejects the key (for example it holds text) the result is 0.
func (c *Chain) IncrBy(ctx context.Context, key string, n int64) (int64, error) {
	var result int64
	c.write("incrby", key, func(b Store) error {
		v, err := b.IncrBy(ctx, key, n)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	return result, nil
}

// Ping reports the primary backend's health; the fallback is always up.
func (c *Chain) Ping(ctx context.Context) error {
	if p := c.Primary(); p != nil {
		return p.Ping(ctx)
	}
	return nil
}

// Name lists the backends in priority order.
func (c *Chain) Name() string {
	name := "chain("
	for i, b := range c.backends {
		if i > 0 {
			name += ","
		}
		name += b.Name()
	}
	return name + ")"
}

// Close closes every backend and returns the first error.
func (c *Chain) Close() error {
	var first error
	for _, b := range c.backends {
		if err := b.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// RepairSet copies the fallback's members of key into the primary when the
// primary's set is empty, for example after a backend was provisioned while
// the process was already running. It returns the number of members copied.
func (c *Chain) RepairSet(ctx context.Context, key string) (int, error) {
	primary := c.Primary()
	if primary == nil {
		return 0, nil
	}

	current, err := primary.SMembers(ctx, key)
	if err != nil {
		c.fail(primary, "smembers", key, err)
		return 0, nil
	}
	if len(current) > 0 {
		return 0, nil
	}

	local, err := c.Fallback().SMembers(ctx, key)
	if err != nil || len(local) == 0 {
		return 0, nil
	}

	copied := 0
	for _, m := range local {
		if err := primary.SAdd(ctx, key, m); err != nil {
			c.fail(primary, "sadd", key, err)
			return copied, nil
		}
		copied++
	}
	c.logger.Info("repaired index from local snapshot", "key", key, "members", copied)
	return copied, nil
}
