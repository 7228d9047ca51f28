// Package quota tracks monthly generation usage, bonus credits and plan
// assignment per client, and provides a per-minute rate limiter.
package quota

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/tryon/tryon/internal/kv"
	"github.com/tryon/tryon/internal/metrics"
	"github.com/tryon/tryon/internal/plan"
)

const (
	usageKeyPrefix = "quota:usage:"
	bonusKeyPrefix = "quota:bonus:"
	planKeyPrefix  = "clientPlan:"

	monthLayout = "2006-01"
)

// Engine errors.
var (
	ErrMissingClientID = errors.New("client id is required")
	ErrInvalidAmount   = errors.New("amount must be positive")
)

// Engine reads and updates quota counters. It never increments usage on its
// own; callers record a generation after the billable work succeeds.
type Engine struct {
	store   kv.Store
	logger  *slog.Logger
	metrics metrics.Recorder
	now     func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the time source used to pick month and minute keys.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// New creates an Engine backed by store.
func New(store kv.Store, logger *slog.Logger, recorder metrics.Recorder, opts ...Option) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	e := &Engine{
		store:   store,
		logger:  logger.With("component", "quota"),
		metrics: recorder,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Month formats t as the YYYY-MM period used in quota keys.
func Month(t time.Time) string {
	return t.UTC().Format(monthLayout)
}

func usageKey(clientID, month string) string {
	return usageKeyPrefix + clientID + ":" + month
}

func bonusKey(clientID, month string) string {
	return bonusKeyPrefix + clientID + ":" + month
}

// IncrMonthlyUsage adds n generations to the current month. n must be
// positive.
func (e *Engine) IncrMonthlyUsage(ctx context.Context, clientID string, n int64) (int64, error) {
	if clientID == "" {
		return 0, ErrMissingClientID
	}
	if n <= 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidAmount, n)
	}
	return e.incr(ctx, usageKey(clientID, Month(e.now())), n)
}

// MonthlyUsage returns the generations recorded this month.
func (e *Engine) MonthlyUsage(ctx context.Context, clientID string) (int64, error) {
	if clientID == "" {
		return 0, ErrMissingClientID
	}
	return e.counter(ctx, usageKey(clientID, Month(e.now())))
}

// IncrMonthlyBonus adds purchased credits to the current month. Bonus keys
// are never reset; a new month starts from zero. n must be positive.
func (e *Engine) IncrMonthlyBonus(ctx context.Context, clientID string, n int64) (int64, error) {
	if clientID == "" {
		return 0, ErrMissingClientID
	}
	if n <= 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidAmount, n)
	}
	total, err := e.incr(ctx, bonusKey(clientID, Month(e.now())), n)
	if err == nil {
		e.logger.Info("bonus credits added", "client_id", clientID, "credits", n, "total", total)
	}
	return total, err
}

// MonthlyBonus returns the bonus credits for the current month.
func (e *Engine) MonthlyBonus(ctx context.Context, clientID string) (int64, error) {
	if clientID == "" {
		return 0, ErrMissingClientID
	}
	return e.counter(ctx, bonusKey(clientID, Month(e.now())))
}

// ClientPlan returns the client's plan, or the free plan when none is set.
func (e *Engine) ClientPlan(ctx context.Context, clientID string) (plan.Plan, error) {
	if clientID == "" {
		return plan.Plan{}, ErrMissingClientID
	}
	id, ok, err := e.store.Get(ctx, planKeyPrefix+clientID)
	if err != nil {
		return plan.Plan{}, fmt.Errorf("get client plan: %w", err)
	}
	if !ok {
		return plan.Default(), nil
	}
	p, err := plan.Get(id)
	if err != nil {
		e.logger.Warn("stored plan is unknown, using default", "client_id", clientID, "plan_id", id)
		return plan.Default(), nil
	}
	return p, nil
}

// SetClientPlan assigns planID to the client.
func (e *Engine) SetClientPlan(ctx context.Context, clientID, planID string) error {
	if clientID == "" {
		return ErrMissingClientID
	}
	if !plan.IsValid(planID) {
		return fmt.Errorf("%w: %q", plan.ErrInvalidPlan, planID)
	}
	if err := e.store.Set(ctx, planKeyPrefix+clientID, planID); err != nil {
		return fmt.Errorf("set client plan: %w", err)
	}
	e.logger.Info("client plan changed", "client_id", clientID, "plan_id", planID)
	return nil
}

// Decision is the outcome of a quota check.
type Decision struct {
	Plan    plan.Plan `json:"plan"`
	Used    int64     `json:"used"`
	Bonus   int64     `json:"bonus"`
	Limit   int64     `json:"limit"`
	Allowed bool      `json:"allowed"`
}

// Remaining returns the generations left this month.
func (d Decision) Remaining() int64 {
	if d.Used >= d.Limit {
		return 0
	}
	return d.Limit - d.Used
}

// Check reports whether the client may run one more generation this month.
func (e *Engine) Check(ctx context.Context, clientID string) (Decision, error) {
	p, err := e.ClientPlan(ctx, clientID)
	if err != nil {
		return Decision{}, err
	}
	used, err := e.MonthlyUsage(ctx, clientID)
	if err != nil {
		return Decision{}, err
	}
	bonus, err := e.MonthlyBonus(ctx, clientID)
	if err != nil {
		return Decision{}, err
	}

	d := Decision{
		Plan:  p,
		Used:  used,
		Bonus: bonus,
		Limit: p.MonthlyGenerations + bonus,
	}
	d.Allowed = d.Used < d.Limit
	if !d.Allowed {
		e.metrics.IncQuotaDenied()
		e.logger.Info("monthly quota exhausted", "client_id", clientID, "plan_id", p.ID, "used", used, "limit", d.Limit)
	}
	return d, nil
}

func (e *Engine) incr(ctx context.Context, key string, n int64) (int64, error) {
	v, err := e.store.IncrBy(ctx, key, n)
	if err != nil {
		return 0, fmt.Errorf("incr %s: %w", key, err)
	}
	return v, nil
}

func (e *Engine) counter(ctx context.Context, key string) (int64, error) {
	raw, ok, err := e.store.Get(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("get %s: %w", key, err)
	}
	if !ok {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return v, nil
}
