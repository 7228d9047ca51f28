// Package registry stores clients and embeds on top of a kv.Store and keeps
// their secondary indices.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tryon/tryon/internal/kv"
)

// Key namespace.
const (
	clientKeyPrefix      = "clients:"
	clientIndexKey       = "clients:index"
	clientTokenKeyPrefix = "clientTokens:"
	clientEmailKeyPrefix = "clientEmails:"

	embedKeyPrefix       = "embeds:"
	embedIndexKey        = "embeds:index"
	clientEmbedKeyPrefix = "clientEmbeds:"
)

// Registry errors.
var (
	ErrClientNotFound = errors.New("client not found")
	ErrInvalidClient  = errors.New("client id and email are required")
	ErrEmailTaken     = errors.New("email already belongs to another client")

	ErrEmbedNotFound = errors.New("embed not found")
	ErrInvalidEmbed  = errors.New("invalid embed config")
)

// Registry provides client and embed CRUD.
type Registry struct {
	store    kv.Store
	logger   *slog.Logger
	tokenEnv string
	now      func() time.Time
}

// Option configures a Registry.
type Option func(*Registry)

// WithTokenEnv selects the environment marker for generated client tokens.
func WithTokenEnv(env string) Option {
	return func(r *Registry) {
		r.tokenEnv = env
	}
}

// WithClock overrides the time source used for CreatedAt.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

// New creates a Registry backed by store.
func New(store kv.Store, logger *slog.Logger, opts ...Option) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		store:    store,
		logger:   logger.With("component", "registry"),
		tokenEnv: "live",
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// getJSON loads key into v. found is false when the key is absent.
func (r *Registry) getJSON(ctx context.Context, key string, v any) (bool, error) {
	raw, ok, err := r.store.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("get %s: %w", key, err)
	}
	if !ok {
		return false, nil
	}
	if err := decode(raw, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func decode(raw string, v any) error {
	return json.Unmarshal([]byte(raw), v)
}

// putJSON serializes v and stores it at key.
func (r *Registry) putJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := r.store.Set(ctx, key, string(data)); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// local returns the process-local snapshot used for scans, or nil when the
// store exposes none.
func (r *Registry) local() kv.Store {
	if s, ok := r.store.(kv.LocalSnapshotter); ok {
		return s.Fallback()
	}
	if r.store.Name() == "memory" {
		return r.store
	}
	return nil
}

// repairIndex re-populates an empty primary index from the local snapshot.
func (r *Registry) repairIndex(ctx context.Context, key string) {
	repairer, ok := r.store.(kv.SetRepairer)
	if !ok {
		return
	}
	if _, err := repairer.RepairSet(ctx, key); err != nil {
		r.logger.Warn("index repair failed", "key", key, "error", err)
	}
}
