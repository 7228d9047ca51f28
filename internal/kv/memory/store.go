// Package memory provides the process-local key-value backend.
// It is safe for concurrent use within one process only.
package memory

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/tryon/tryon/internal/kv"
)

// Name is the backend identifier reported by Store.Name.
const Name = "memory"

type kind int

const (
	kindString kind = iota
	kindSet
	kindList
)

type entry struct {
	kind      kind
	str       string
	set       map[string]struct{}
	list      []string
	expiresAt time.Time
}

// Store keeps every key in maps and slices guarded by a single mutex.
type Store struct {
	mu      sync.Mutex
	items   map[string]*entry
	now     func() time.Time
	stopped chan struct{}
	once    sync.Once
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for TTL checks.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New creates an empty in-memory store.
func New(opts ...Option) *Store {
	s := &Store{
		items:   make(map[string]*entry),
		now:     time.Now,
		stopped: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// lookup returns the live entry for key, evicting it if expired.
// Caller must hold s.mu.
func (s *Store) lookup(key string) *entry {
	e, ok := s.items[key]
	if !ok {
		return nil
	}
	if !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt) {
		delete(s.items, key)
		return nil
	}
	return e
}

// Get returns the string value stored at key.
func (s *Store) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.lookup(key)
	if e == nil {
		return "", false, nil
	}
	if e.kind != kindString {
		return "", false, kv.ErrWrongType
	}
	return e.str, true, nil
}

// Set stores value at key, replacing any previous value and TTL.
func (s *Store) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items[key] = &entry{kind: kindString, str: value}
	return nil
}

// Del removes key and reports whether it existed.
func (s *Store) Del(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lookup(key) == nil {
		return false, nil
	}
	delete(s.items, key)
	return true, nil
}

// GetDel returns the string at key and removes it atomically.
func (s *Store) GetDel(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.lookup(key)
	if e == nil {
		return "", false, nil
	}
	if e.kind != kindString {
		return "", false, kv.ErrWrongType
	}
	delete(s.items, key)
	return e.str, true, nil
}

// Expire sets a TTL on an existing key.
func (s *Store) Expire(_ context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.lookup(key)
	if e == nil {
		return nil
	}
	if ttl <= 0 {
		delete(s.items, key)
		return nil
	}
	e.expiresAt = s.now().Add(ttl)
	return nil
}

// SAdd adds member to the set at key.
func (s *Store) SAdd(_ context.Context, key, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.lookup(key)
	if e == nil {
		e = &entry{kind: kindSet, set: make(map[string]struct{})}
		s.items[key] = e
	}
	if e.kind != kindSet {
		return kv.ErrWrongType
	}
	e.set[member] = struct{}{}
	return nil
}

// SMembers returns the members of the set at key in no particular order.
func (s *Store) SMembers(_ context.Context, key string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.lookup(key)
	if e == nil {
		return nil, nil
	}
	if e.kind != kindSet {
		return nil, kv.ErrWrongType
	}
	members := make([]string, 0, len(e.set))
	for m := range e.set {
		members = append(members, m)
	}
	return members, nil
}

// SRem removes member from the set at key.
func (s *Store) SRem(_ context.Context, key, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.lookup(key)
	if e == nil {
		return nil
	}
	if e.kind != kindSet {
		return kv.ErrWrongType
	}
	delete(e.set, member)
	if len(e.set) == 0 {
		delete(s.items, key)
	}
	return nil
}

// LPush prepends value to the list at key.
func (s *Store) LPush(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.lookup(key)
	if e == nil {
		e = &entry{kind: kindList}
		s.items[key] = e
	}
	if e.kind != kindList {
		return kv.ErrWrongType
	}
	e.list = append(e.list, "")
	copy(e.list[1:], e.list)
	e.list[0] = value
	return nil
}

// LRange returns the elements between start and stop inclusive.
func (s *Store) LRange(_ context.Context, key string, start, stop int64) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.lookup(key)
	if e == nil {
		return nil, nil
	}
	if e.kind != kindList {
		return nil, kv.ErrWrongType
	}
	from, to, ok := kv.ResolveRange(start, stop, int64(len(e.list)))
	if !ok {
		return nil, nil
	}
	out := make([]string, to-from)
	copy(out, e.list[from:to])
	return out, nil
}

// LTrim keeps only the elements between start and stop inclusive.
func (s *Store) LTrim(_ context.Context, key string, start, stop int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.lookup(key)
	if e == nil {
		return nil
	}
	if e.kind != kindList {
		return kv.ErrWrongType
	}
	from, to, ok := kv.ResolveRange(start, stop, int64(len(e.list)))
	if !ok {
		delete(s.items, key)
		return nil
	}
	kept := make([]string, to-from)
	copy(kept, e.list[from:to])
	e.list = kept
	return nil
}

// Incr increments the integer at key by one.
func (s *Store) Incr(ctx context.Context, key string) (int64, error) {
	return s.IncrBy(ctx, key, 1)
}

// IncrBy increments the integer at key by n. A missing key counts from zero.
func (s *Store) IncrBy(_ context.Context, key string, n int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.lookup(key)
	if e == nil {
		s.items[key] = &entry{kind: kindString, str: strconv.FormatInt(n, 10)}
		return n, nil
	}
	if e.kind != kindString {
		return 0, kv.ErrWrongType
	}
	current, err := strconv.ParseInt(e.str, 10, 64)
	if err != nil {
		return 0, kv.ErrNotInteger
	}
	current += n
	e.str = strconv.FormatInt(current, 10)
	return current, nil
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error {
	return nil
}

// Name returns "memory".
func (s *Store) Name() string {
	return Name
}

// Close stops the janitor if it is running.
func (s *Store) Close() error {
	s.once.Do(func() { close(s.stopped) })
	return nil
}

// Len returns the number of live keys.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for key := range s.items {
		if s.lookup(key) != nil {
			n++
		}
	}
	return n
}

// Sweep evicts every expired key and returns how many were removed.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for key, e := range s.items {
		if !e.expiresAt.IsZero() && !now.Before(e.expiresAt) {
			delete(s.items, key)
			removed++
		}
	}
	return removed
}

// StartJanitor sweeps expired keys every interval until ctx is done or the
// store is closed. It blocks; run it in a goroutine.
func (s *Store) StartJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Sweep()
		case <-ctx.Done():
			return
		case <-s.stopped:
			return
		}
	}
}
