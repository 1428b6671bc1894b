package fetch_test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"gleaner/internal/fetch"
)

func TestBatchKeepsSlotOrderAndIsolatesFailures(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6}
	boom := errors.New("boom")

	results := fetch.Batch(context.Background(), 2, items, func(ctx context.Context, n int) (string, error) {
		if n == 3 {
			return "", boom
		}
		return fmt.Sprintf("item-%d", n), nil
	})

	if len(results) != len(items) {
		t.Fatalf("got %d results, want %d", len(results), len(items))
	}
	for i, res := range results {
		if items[i] == 3 {
			if res.Ok() {
				t.Fatalf("slot %d should have failed", i)
			}
			if !errors.Is(res.Err, boom) {
				t.Fatalf("slot %d error = %v, want boom", i, res.Err)
			}
			continue
		}
		if !res.Ok() {
			t.Fatalf("slot %d failed: %v", i, res.Err)
		}
		if want := fmt.Sprintf("item-%d", items[i]); res.Value != want {
			t.Fatalf("slot %d = %q, want %q", i, res.Value, want)
		}
	}
	if got := fetch.FailureCount(results); got != 1 {
		t.Fatalf("FailureCount = %d, want 1", got)
	}
	if got := fetch.Values(results); len(got) != 5 {
		t.Fatalf("Values returned %d entries, want 5", len(got))
	}
}

func TestBatchHonorsWidth(t *testing.T) {
	var active, peak atomic.Int32
	items := make([]int, 20)

	fetch.Batch(context.Background(), 3, items, func(ctx context.Context, n int) (int, error) {
		current := active.Add(1)
		for {
			seen := peak.Load()
			if current <= seen || peak.CompareAndSwap(seen, current) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		active.Add(-1)
		return n, nil
	})

	if got := peak.Load(); got > 3 {
		t.Fatalf("peak concurrency %d exceeded width 3", got)
	}
}

func TestBatchEmptyInput(t *testing.T) {
	results := fetch.Batch(context.Background(), 4, nil, func(ctx context.Context, n int) (int, error) {
		t.Fatal("fn should not run for empty input")
		return 0, nil
	})
	if len(results) != 0 {
		t.Fatalf("got %d results, want 0", len(results))
	}
}

func TestBatchCanceledContextMarksRemaining(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := fetch.Batch(ctx, 2, []int{1, 2, 3}, func(ctx context.Context, n int) (int, error) {
		return n, nil
	})
	for i, res := range results {
		if res.Ok() {
			t.Fatalf("slot %d should carry the context error", i)
		}
		if !errors.Is(res.Err, context.Canceled) {
			t.Fatalf("slot %d error = %v, want context.Canceled", i, res.Err)
		}
	}
}
