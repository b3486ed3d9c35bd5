// Package quota enforces per-model daily generation quotas.
package quota

import (
	"context"
	"fmt"
	"time"

	"imagegen/internal/core"
)

// Store holds success counts keyed by calendar day. Count and Increment must
// each be atomic with respect to concurrent callers.
type Store interface {
	Count(ctx context.Context, day, modelID string) (int, error)
	Increment(ctx context.Context, day, modelID string) (int, error)
}

// Limiter checks and records per-model daily usage against a Store.
type Limiter struct {
	quotas map[string]int
	store  Store
	now    func() time.Time
	logger core.Logger
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock overrides the wall clock used for day boundaries.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// WithLogger sets the limiter logger.
func WithLogger(logger core.Logger) Option {
	return func(l *Limiter) { l.logger = logger }
}

// NewLimiter creates a limiter. Models missing from quotas get a quota of 0.
func NewLimiter(quotas map[string]int, store Store, opts ...Option) *Limiter {
	copied := make(map[string]int, len(quotas))
	for id, q := range quotas {
		copied[id] = q
	}
	l := &Limiter{
		quotas: copied,
		store:  store,
		now:    time.Now,
		logger: &core.NopLogger{},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Limiter) today() string {
	return l.now().Format(core.QuotaDayLayout)
}

// Quota returns the configured daily quota for modelID.
func (l *Limiter) Quota(modelID string) int {
	return l.quotas[modelID]
}

// CheckQuota reports whether modelID may be used again today.
func (l *Limiter) CheckQuota(ctx context.Context, modelID string) (bool, string, error) {
	quota := l.quotas[modelID]
	used, err := l.store.Count(ctx, l.today(), modelID)
	if err != nil {
		return false, "", fmt.Errorf("quota check for %s: %w", modelID, err)
	}

	if used >= quota {
		l.logger.Warn("Quota exhausted for %s: %d/%d", modelID, used, quota)
		return false, fmt.Sprintf(core.MsgQuotaExhausted, modelID, used, quota), nil
	}
	return true, fmt.Sprintf("%d of %d generations remaining today", quota-used, quota), nil
}

// RecordSuccess consumes one unit of quota for modelID.
func (l *Limiter) RecordSuccess(ctx context.Context, modelID string) error {
	used, err := l.store.Increment(ctx, l.today(), modelID)
	if err != nil {
		return fmt.Errorf("quota increment for %s: %w", modelID, err)
	}
	l.logger.Debug("Quota usage for %s: %d/%d", modelID, used, l.quotas[modelID])
	return nil
}

// Usage returns today's count for modelID.
func (l *Limiter) Usage(ctx context.Context, modelID string) (int, error) {
	return l.store.Count(ctx, l.today(), modelID)
}
