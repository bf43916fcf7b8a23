package quota

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/desertthunder/ytsort/internal/shared"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// RetryAfterer is implemented by errors that carry a server-requested retry delay.
type RetryAfterer interface {
	RetryAfter() time.Duration
}

// LimiterOpts configures a [Limiter]. Zero values take the defaults noted per field.
type LimiterOpts struct {
	DailyLimit    int           // reservoir size, default 10000
	MaxConcurrent int           // concurrent calls, default 5
	MinInterval   time.Duration // spacing between call starts, default 200ms
	MaxRetries    int           // retries on rate limiting, default 3; negative disables
	RetryBase     time.Duration // first backoff delay, default 1s
	RetryMax      time.Duration // backoff ceiling, default 30s
	Now           func() time.Time
}

// Limiter schedules remote calls: bounded concurrency, minimum spacing, a daily unit reservoir
// that refills at local midnight, and exponential backoff on rate-limited responses.
//
// It is safe for concurrent use and meant to be shared process-wide.
type Limiter struct {
	sem     *semaphore.Weighted
	spacing *rate.Limiter

	mu        sync.Mutex
	reservoir int
	limit     int
	resetAt   time.Time

	maxRetries int
	retryBase  time.Duration
	retryMax   time.Duration
	now        func() time.Time
}

// NewLimiter creates a Limiter with a full reservoir.
func NewLimiter(opts LimiterOpts) *Limiter {
	if opts.DailyLimit <= 0 {
		opts.DailyLimit = DefaultDailyLimit
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 5
	}
	if opts.MinInterval <= 0 {
		opts.MinInterval = 200 * time.Millisecond
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	if opts.RetryBase <= 0 {
		opts.RetryBase = time.Second
	}
	if opts.RetryMax <= 0 {
		opts.RetryMax = 30 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Limiter{
		sem:        semaphore.NewWeighted(int64(opts.MaxConcurrent)),
		spacing:    rate.NewLimiter(rate.Every(opts.MinInterval), 1),
		reservoir:  opts.DailyLimit,
		limit:      opts.DailyLimit,
		resetAt:    StartOfDay(opts.Now()).AddDate(0, 0, 1),
		maxRetries: max(opts.MaxRetries, 0),
		retryBase:  opts.RetryBase,
		retryMax:   opts.RetryMax,
		now:        opts.Now,
	}
}

// Reservoir returns the units left in today's in-memory budget.
func (l *Limiter) Reservoir() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refillLocked()
	return l.reservoir
}

// Align lowers the reservoir to remaining, typically the ledger's view after a restart.
func (l *Limiter) Align(remaining int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refillLocked()
	if remaining < l.reservoir {
		l.reservoir = max(remaining, 0)
	}
}

// Call runs fn once a concurrency slot, a spacing token and cost units are available.
//
// An empty reservoir yields [shared.ErrQuotaExhausted] without calling fn. Errors matching
// [shared.ErrRateLimited] are retried with exponential backoff, honouring [RetryAfterer].
// Other errors are returned unchanged. Only a successful attempt keeps its cost units, matching
// the ledger, which records successes only.
func (l *Limiter) Call(ctx context.Context, cost int, fn func(ctx context.Context) error) error {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer l.sem.Release(1)

	policy := &retryAfterBackOff{base: l.exponential()}
	var b backoff.BackOff = policy
	b = backoff.WithMaxRetries(b, uint64(l.maxRetries))
	b = backoff.WithContext(b, ctx)

	attempt := func() error {
		if err := l.take(cost); err != nil {
			return backoff.Permanent(err)
		}
		if err := l.spacing.Wait(ctx); err != nil {
			l.refund(cost)
			return backoff.Permanent(err)
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		l.refund(cost)
		if !errors.Is(err, shared.ErrRateLimited) {
			return backoff.Permanent(err)
		}

		policy.next = 0
		var ra RetryAfterer
		if errors.As(err, &ra) && ra.RetryAfter() > 0 {
			policy.next = ra.RetryAfter()
		}
		return err
	}

	return backoff.Retry(attempt, b)
}

func (l *Limiter) exponential() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = l.retryBase
	b.MaxInterval = l.retryMax
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	return b
}

func (l *Limiter) take(cost int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refillLocked()
	if l.reservoir < cost {
		return fmt.Errorf("%w: %d units left, %d needed", shared.ErrQuotaExhausted, l.reservoir, cost)
	}
	l.reservoir -= cost
	return nil
}

func (l *Limiter) refund(cost int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reservoir = min(l.reservoir+cost, l.limit)
}

func (l *Limiter) refillLocked() {
	now := l.now()
	if now.Before(l.resetAt) {
		return
	}
	l.reservoir = l.limit
	l.resetAt = StartOfDay(now).AddDate(0, 0, 1)
}

// retryAfterBackOff prefers a server-provided delay over the exponential schedule for one attempt.
type retryAfterBackOff struct {
	base backoff.BackOff
	next time.Duration
}

func (b *retryAfterBackOff) NextBackOff() time.Duration {
	d := b.base.NextBackOff()
	if b.next > 0 {
		d, b.next = b.next, 0
	}
	return d
}

func (b *retryAfterBackOff) Reset() {
	b.next = 0
	b.base.Reset()
}
