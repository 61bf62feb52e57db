package geocode

import (
	"context"
	"sync"
	"time"
)

// Pacer enforces a minimum wall-clock gap between consecutive provider
// calls. It tracks the timestamp of the previous call start and suspends
// the caller for the remainder of the interval, so back-to-back lookups
// never start closer together than the configured gap. One Pacer is
// shared per provider across every batch in flight; the mutex is held
// through the sleep so concurrent waiters queue up and each inherits the
// stamp left by the waiter before it.
type Pacer struct {
	interval time.Duration

	mu       sync.Mutex
	last     time.Time
	haveLast bool

	// injectable for tests
	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

func NewPacer(interval time.Duration) *Pacer {
	return &Pacer{
		interval: interval,
		now:      time.Now,
		sleep:    sleepCtx,
	}
}

// Wait blocks until at least the configured interval has elapsed since the
// previous call start, then records the new call start. The first call
// never waits. It returns early with the context error if ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.interval > 0 && p.haveLast {
		if remaining := p.interval - p.now().Sub(p.last); remaining > 0 {
			if err := p.sleep(ctx, remaining); err != nil {
				return err
			}
		}
	}
	p.last = p.now()
	p.haveLast = true
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
