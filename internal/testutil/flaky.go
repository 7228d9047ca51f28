package testutil

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/tryon/tryon/internal/kv/memory"
)

// ErrBackendDown is returned by a FlakyStore while it is down.
var ErrBackendDown = errors.New("connection refused")

// FlakyStore is a named in-memory backend that fails every call while down.
// It stands in for a remote backend in selector tests.
type FlakyStore struct {
	*memory.Store
	name string
	down atomic.Bool
}

// NewFlakyStore returns a healthy FlakyStore reporting name.
func NewFlakyStore(name string) *FlakyStore {
	return &FlakyStore{Store: memory.New(), name: name}
}

// SetDown toggles failure mode.
func (f *FlakyStore) SetDown(down bool) { f.down.Store(down) }

func (f *FlakyStore) err() error {
	if f.down.Load() {
		return ErrBackendDown
	}
	return nil
}

// Name returns the configured backend name.
func (f *FlakyStore) Name() string { return f.name }

func (f *FlakyStore) Get(ctx context.Context, key string) (string, bool, error) {
	if err := f.err(); err != nil {
		return "", false, err
	}
	return f.Store.Get(ctx, key)
}

func (f *FlakyStore) Set(ctx context.Context, key, value string) error {
	if err := f.err(); err != nil {
		return err
	}
	return f.Store.Set(ctx, key, value)
}

func (f *FlakyStore) Del(ctx context.Context, key string) (bool, error) {
	if err := f.err(); err != nil {
		return false, err
	}
	return f.Store.Del(ctx, key)
}

func (f *FlakyStore) GetDel(ctx context.Context, key string) (string, bool, error) {
	if err := f.err(); err != nil {
		return "", false, err
	}
	return f.Store.GetDel(ctx, key)
}

func (f *FlakyStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if err := f.err(); err != nil {
		return err
	}
	return f.Store.Expire(ctx, key, ttl)
}

func (f *FlakyStore) SAdd(ctx context.Context, key, member string) error {
	if err := f.err(); err != nil {
		return err
	}
	return f.Store.SAdd(ctx, key, member)
}

func (f *FlakyStore) SMembers(ctx context.Context, key string) ([]string, error) {
	if err := f.err(); err != nil {
		return nil, err
	}
	return f.Store.SMembers(ctx, key)
}

func (f *FlakyStore) SRem(ctx context.Context, key, member string) error {
	if err := f.err(); err != nil {
		return err
	}
	return f.Store.SRem(ctx, key, member)
}

func (f *FlakyStore) LPush(ctx context.Context, key, value string) error {
	if err := f.err(); err != nil {
		return err
	}
	return f.Store.LPush(ctx, key, value)
}

func (f *FlakyStore) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	if err := f.err(); err != nil {
		return nil, err
	}
	return f.Store.LRange(ctx, key, start, stop)
}

func (f *FlakyStore) LTrim(ctx context.Context, key string, start, stop int64) error {
	if err := f.err(); err != nil {
		return err
	}
	return f.Store.LTrim(ctx, key, start, stop)
}

func (f *FlakyStore) Incr(ctx context.Context, key string) (int64, error) {
	return f.IncrBy(ctx, key, 1)
}

func (f *FlakyStore) IncrBy(ctx context.Context, key string, n int64) (int64, error) {
	if err := f.err(); err != nil {
		return 0, err
	}
	return f.Store.IncrBy(ctx, key, n)
}

func (f *FlakyStore) Ping(ctx context.Context) error {
	return f.err()
}
