// Package usage keeps the append-only, capped usage event lists and the
// daily success meter.
package usage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/tryon/tryon/internal/kv"
	"github.com/tryon/tryon/internal/metrics"
	"github.com/tryon/tryon/internal/model"
)

const (
	// GlobalKey holds every event regardless of embed.
	GlobalKey = "usage:all"

	keyPrefix = "usage:"

	// DefaultEmbedCap is the per-embed list length kept after each write.
	DefaultEmbedCap = 1000

	// DefaultGlobalCap is the global list length kept after each write.
	DefaultGlobalCap = 2000

	// DefaultQueueSize bounds the number of events waiting to be written.
	DefaultQueueSize = 1024

	// WriteTimeout bounds a single write attempt from the queue.
	WriteTimeout = 2 * time.Second
)

// ErrClosed is returned by Close when the log was already closed.
var ErrClosed = errors.New("usage log closed")

// Log appends usage events to capped lists. Record is asynchronous; Write
// and List talk to the store directly.
type Log struct {
	store       kv.Store
	logger      *slog.Logger
	metrics     metrics.Recorder
	embedCap    int64
	globalCap   int64
	maxAttempts int
	delays      []time.Duration
	now         func() time.Time

	queue  chan *model.UsageEvent
	done   chan struct{}
	mu     sync.RWMutex
	closed bool
}

// Option configures a Log.
type Option func(*Log)

// WithCaps overrides the per-embed and global list caps.
func WithCaps(embedCap, globalCap int) Option {
	return func(l *Log) {
		if embedCap > 0 {
			l.embedCap = int64(embedCap)
		}
		if globalCap > 0 {
			l.globalCap = int64(globalCap)
		}
	}
}

// WithQueueSize sets the bound on pending events.
func WithQueueSize(n int) Option {
	return func(l *Log) {
		if n > 0 {
			l.queue = make(chan *model.UsageEvent, n)
		}
	}
}

// WithRetry sets the attempt count and the delays between attempts.
func WithRetry(maxAttempts int, delays ...time.Duration) Option {
	return func(l *Log) {
		if maxAttempts > 0 {
			l.maxAttempts = maxAttempts
		}
		l.delays = delays
	}
}

// WithClock overrides the time source for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(l *Log) {
		l.now = now
	}
}

// New creates a Log and starts its writer goroutine. Call Close to drain it.
func New(store kv.Store, logger *slog.Logger, recorder metrics.Recorder, opts ...Option) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	l := &Log{
		store:       store,
		logger:      logger.With("component", "usage.log"),
		metrics:     recorder,
		embedCap:    DefaultEmbedCap,
		globalCap:   DefaultGlobalCap,
		maxAttempts: DefaultMaxAttempts,
		delays:      retryDelays,
		now:         time.Now,
		queue:       make(chan *model.UsageEvent, DefaultQueueSize),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}

	go l.run()
	return l
}

// Key returns the list key for embedID. Events without an embed go to the
// global list only.
func Key(embedID string) string {
	if embedID == "" {
		return GlobalKey
	}
	return keyPrefix + embedID
}

// NewEvent builds an event with a fresh id and the current timestamp.
func (l *Log) NewEvent(event, embedID string, meta map[string]any) *model.UsageEvent {
	now := l.now()
	return &model.UsageEvent{
		ID:      ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String(),
		TS:      now.UnixMilli(),
		Event:   event,
		EmbedID: embedID,
		Meta:    meta,
	}
}

// Record queues an event and returns its id without waiting for the write.
// When the queue is full or the log is closed the event is dropped.
func (l *Log) Record(event, embedID string, meta map[string]any) string {
	ev := l.NewEvent(event, embedID, meta)

	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		l.drop(ev, "log closed")
		return ev.ID
	}

	select {
	case l.queue <- ev:
	default:
		l.drop(ev, "queue full")
	}
	return ev.ID
}

func (l *Log) drop(ev *model.UsageEvent, reason string) {
	l.logger.Warn("usage event dropped",
		"reason", reason,
		"event", ev.Event,
		"embed_id", ev.EmbedID,
		"event_id", ev.ID,
	)
	l.metrics.IncUsageEvent("dropped")
}

// Write appends ev to its embed list and the global list and trims both to
// their caps. An event with no embed id is pushed to the global list once.
func (l *Log) Write(ctx context.Context, ev *model.UsageEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal usage event: %w", err)
	}

	if ev.EmbedID == "" {
		return l.push(ctx, GlobalKey, string(data), l.globalCap)
	}
	if err := l.push(ctx, Key(ev.EmbedID), string(data), l.embedCap); err != nil {
		return err
	}
	return l.push(ctx, GlobalKey, string(data), l.globalCap)
}

func (l *Log) push(ctx context.Context, key, value string, limit int64) error {
	if err := l.store.LPush(ctx, key, value); err != nil {
		return fmt.Errorf("push %s: %w", key, err)
	}
	if err := l.store.LTrim(ctx, key, 0, limit-1); err != nil {
		return fmt.Errorf("trim %s: %w", key, err)
	}
	return nil
}

// List returns up to limit events for embedID, newest first. An empty
// embedID reads the global list. If the embed list is empty the global list
// is filtered instead.
func (l *Log) List(ctx context.Context, embedID string, limit int) ([]*model.UsageEvent, error) {
	limitCap := l.embedCap
	if embedID == "" {
		limitCap = l.globalCap
	}
	if limit <= 0 || int64(limit) > limitCap {
		limit = int(limitCap)
	}

	raw, err := l.store.LRange(ctx, Key(embedID), 0, int64(limit)-1)
	if err != nil {
		return nil, fmt.Errorf("read usage: %w", err)
	}
	events := l.decodeAll(raw, "")
	if len(events) > 0 || embedID == "" {
		return events, nil
	}

	raw, err = l.store.LRange(ctx, GlobalKey, 0, -1)
	if err != nil {
		return nil, fmt.Errorf("read global usage: %w", err)
	}
	events = l.decodeAll(raw, embedID)
	if len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}

// decodeAll parses raw entries, keeping only those for embedID when set.
func (l *Log) decodeAll(raw []string, embedID string) []*model.UsageEvent {
	events := make([]*model.UsageEvent, 0, len(raw))
	for _, entry := range raw {
		var ev model.UsageEvent
		if err := json.Unmarshal([]byte(entry), &ev); err != nil {
			l.logger.Debug("skipping corrupt usage entry", "error", err)
			continue
		}
		if embedID != "" && ev.EmbedID != embedID {
			continue
		}
		events = append(events, &ev)
	}
	return events
}

// Pending returns the number of queued events.
func (l *Log) Pending() int {
	return len(l.queue)
}

// Close stops accepting events and waits for the queue to drain or ctx to
// end.
func (l *Log) Close(ctx context.Context) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	l.closed = true
	close(l.queue)
	l.mu.Unlock()

	select {
	case <-l.done:
		l.logger.Info("usage log drained")
		return nil
	case <-ctx.Done():
		l.logger.Warn("usage log drain interrupted", "pending", len(l.queue))
		return ctx.Err()
	}
}

func (l *Log) run() {
	defer close(l.done)
	for ev := range l.queue {
		l.deliver(ev)
	}
}

// deliver writes ev with bounded retry.
func (l *Log) deliver(ev *model.UsageEvent) {
	var err error
	for attempt := 0; attempt < l.maxAttempts; attempt++ {
		if attempt > 0 {
			l.metrics.IncUsageEvent("retried")
			time.Sleep(nextRetryDelay(l.delays, attempt-1))
		}

		ctx, cancel := context.WithTimeout(context.Background(), WriteTimeout)
		err = l.Write(ctx, ev)
		cancel()
		if err == nil {
			l.metrics.IncUsageEvent("written")
			return
		}
		l.logger.Debug("usage write failed", "attempt", attempt+1, "event_id", ev.ID, "error", err)
	}

	l.logger.Warn("usage event dropped after retries",
		"attempts", l.maxAttempts,
		"event", ev.Event,
		"embed_id", ev.EmbedID,
		"error", err,
	)
	l.metrics.IncUsageEvent("dropped")
}
