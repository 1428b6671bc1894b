package fetch

import (
	"context"
	"sync"
	"time"
)

// Pacer spaces requests to one upstream source. Acquisitions wait out the
// current delay measured from the previous acquisition, throttle signals
// double the delay up to max, and successes decay it back toward base.
type Pacer struct {
	base time.Duration
	max  time.Duration

	mu      sync.Mutex
	current time.Duration
	last    time.Time
	now     func() time.Time
}

// NewPacer returns a pacer that starts at base delay and never exceeds max.
func NewPacer(base, max time.Duration) *Pacer {
	if base <= 0 {
		base = time.Millisecond
	}
	if max < base {
		max = base
	}
	return &Pacer{base: base, max: max, current: base, now: time.Now}
}

// Acquire blocks until the next request slot is due. Concurrent callers are
// serialized so the gap between upstream calls never shrinks below the
// current delay.
func (p *Pacer) Acquire(ctx context.Context) error {
	return sleepContext(ctx, p.reserve())
}

// reserve claims the next slot and returns how long the caller must wait
// before using it.
func (p *Pacer) reserve() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.now()
	due := p.last.Add(p.current)
	if due.Before(now) {
		due = now
	}
	p.last = due
	return due.Sub(now)
}

// Throttle doubles the current delay in response to an upstream 429.
func (p *Pacer) Throttle() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current *= 2
	if p.current > p.max {
		p.current = p.max
	}
}

// Reward decays the current delay after a successful request, never dropping
// below the base delay.
func (p *Pacer) Reward() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = time.Duration(float64(p.current) * 0.9)
	if p.current < p.base {
		p.current = p.base
	}
}

// Delay reports the current inter-request delay.
func (p *Pacer) Delay() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
