// Package kv defines the key-value contract shared by every storage backend
// and the selector that sequences them.
package kv

import (
	"context"
	"errors"
	"time"
)

// Common backend errors.
var (
	// ErrNotInteger is returned by Incr/IncrBy when the key holds a non-numeric value.
	ErrNotInteger = errors.New("value is not an integer")
	// ErrWrongType is returned when a command is applied to a key of another type.
	ErrWrongType = errors.New("operation against a key holding the wrong kind of value")
)

// Store is the command surface every backend implements.
// Lists are ordered newest first: LPush prepends and index 0 is the head.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Del(ctx context.Context, key string) (bool, error)
	GetDel(ctx context.Context, key string) (string, bool, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error

	SAdd(ctx context.Context, key, member string) error
	SMembers(ctx context.Context, key string) ([]string, error)
	SRem(ctx context.Context, key, member string) error

	LPush(ctx context.Context, key, value string) error
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	LTrim(ctx context.Context, key string, start, stop int64) error

	Incr(ctx context.Context, key string) (int64, error)
	IncrBy(ctx context.Context, key string, n int64) (int64, error)

	Ping(ctx context.Context) error
	Name() string
	Close() error
}

// SetRepairer is implemented by stores that can copy a set from their
// process-local snapshot into an empty primary backend.
type SetRepairer interface {
	RepairSet(ctx context.Context, key string) (int, error)
}

// LocalSnapshotter exposes the process-local backend behind a store.
type LocalSnapshotter interface {
	Fallback() Store
}

// ResolveRange converts Redis-style inclusive start/stop indices (negative
// values count from the tail) into a half-open [from, to) slice window over a
// list of length n. ok is false when the window is empty.
func ResolveRange(start, stop, n int64) (from, to int64, ok bool) {
	if n <= 0 {
		return 0, 0, false
	}
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if start > stop || start >= n || stop < 0 {
		return 0, 0, false
	}
	return start, stop + 1, true
}
