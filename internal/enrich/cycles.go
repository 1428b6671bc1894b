package enrich

import (
	"context"
	"fmt"
)

// Cycle classes advance independently; content and people batches run on
// their own cadence.
const (
	CycleClassContent = "content"
	CycleClassPerson  = "person"
)

// CycleStore persists the scheduler's position between runs.
type CycleStore interface {
	Cycle(ctx context.Context, class string) (int, error)
	AdvanceCycle(ctx context.Context, class string, count int) (int, error)
}

// CycleScheduler walks the queue's cycle buckets round-robin so every
// slice of the id space gets regular attention regardless of priority
// skew inside a bucket.
type CycleScheduler struct {
	store CycleStore
	count int
}

// NewCycleScheduler builds a scheduler over count buckets.
func NewCycleScheduler(store CycleStore, count int) *CycleScheduler {
	if count < 1 {
		count = 1
	}
	return &CycleScheduler{store: store, count: count}
}

// Count returns the number of buckets the scheduler rotates through.
func (c *CycleScheduler) Count() int {
	return c.count
}

// Current returns the bucket the next run should claim from. The stored
// cursor is reduced modulo the configured count so shrinking the bucket
// count between runs cannot strand the cursor out of range.
func (c *CycleScheduler) Current(ctx context.Context, class string) (int, error) {
	cursor, err := c.store.Cycle(ctx, class)
	if err != nil {
		return 0, fmt.Errorf("read %s cycle: %w", class, err)
	}
	return cursor % c.count, nil
}

// Advance moves the cursor to the next bucket and returns it.
func (c *CycleScheduler) Advance(ctx context.Context, class string) (int, error) {
	next, err := c.store.AdvanceCycle(ctx, class, c.count)
	if err != nil {
		return 0, fmt.Errorf("advance %s cycle: %w", class, err)
	}
	return next, nil
}

// RunWithCycle runs fn against the current bucket, then advances the
// cursor. The cursor moves whether or not the bucket held any work, so an
// empty bucket cannot stall its siblings; it stays put when fn fails so
// the bucket is retried next run.
func (c *CycleScheduler) RunWithCycle(ctx context.Context, class string, fn func(cycle int) error) error {
	cycle, err := c.Current(ctx, class)
	if err != nil {
		return err
	}
	if err := fn(cycle); err != nil {
		return err
	}
	_, err = c.Advance(ctx, class)
	return err
}
