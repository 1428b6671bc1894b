package main

import (
	"context"
	"testing"

	"gleaner/internal/catalog"
)

func TestQueueStatusEmpty(t *testing.T) {
	env := setupCLITestEnv(t)

	stdout, _, err := runCLI(t, []string{"queue", "status"}, env.configPath)
	if err != nil {
		t.Fatalf("queue status: %v", err)
	}
	requireContains(t, stdout, "Queue is empty")
}

func TestQueueStatusCountsByStatus(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	if _, err := env.store.EnqueueBatch(ctx, catalog.ItemTypeMovie, []int64{1, 2, 3}, 5, 9); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	items, err := env.store.Dequeue(ctx, 1, catalog.DequeueFilter{ItemType: catalog.ItemTypeMovie})
	if err != nil || len(items) != 1 {
		t.Fatalf("dequeue: %v (%d items)", err, len(items))
	}
	if err := env.store.MarkFailed(ctx, "detail fetch failed", items[0].ID); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	stdout, _, err := runCLI(t, []string{"queue", "status"}, env.configPath)
	if err != nil {
		t.Fatalf("queue status: %v", err)
	}
	requireContains(t, stdout, "pending")
	requireContains(t, stdout, "failed")
	requireContains(t, stdout, "total")
}

func TestQueueListShowsItems(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	if _, err := env.store.EnqueueBatch(ctx, catalog.ItemTypeMovie, []int64{603}, 5, 9); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := env.store.EnqueueBatch(ctx, catalog.ItemTypeSeries, []int64{1399}, 5, 9); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	stdout, _, err := runCLI(t, []string{"queue", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("queue list: %v", err)
	}
	requireContains(t, stdout, "movie:603")
	requireContains(t, stdout, "series:1399")
	requireContains(t, stdout, "pending")
}

func TestQueueListFiltersByStatus(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	if _, err := env.store.EnqueueBatch(ctx, catalog.ItemTypeMovie, []int64{603, 604}, 5, 9); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	stdout, _, err := runCLI(t, []string{"queue", "list", "--status", "failed"}, env.configPath)
	if err != nil {
		t.Fatalf("queue list: %v", err)
	}
	requireContains(t, stdout, "Queue is empty")

	if _, _, err := runCLI(t, []string{"queue", "list", "--status", "bogus"}, env.configPath); err == nil {
		t.Fatal("expected unknown status to error")
	}
}

func TestQueueRetryReopensFailed(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	if _, err := env.store.EnqueueBatch(ctx, catalog.ItemTypeMovie, []int64{603}, 5, 9); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	items, err := env.store.Dequeue(ctx, 1, catalog.DequeueFilter{ItemType: catalog.ItemTypeMovie})
	if err != nil || len(items) != 1 {
		t.Fatalf("dequeue: %v (%d items)", err, len(items))
	}
	if err := env.store.MarkFailed(ctx, "detail fetch failed", items[0].ID); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	stdout, _, err := runCLI(t, []string{"queue", "retry"}, env.configPath)
	if err != nil {
		t.Fatalf("queue retry: %v", err)
	}
	requireContains(t, stdout, "Retried 1 failed items")

	stats, err := env.store.QueueStats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats[catalog.StatusFailed] != 0 || stats[catalog.StatusPending] != 1 {
		t.Fatalf("unexpected stats after retry: %v", stats)
	}
}

func TestQueueRetryRejectsBadID(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"queue", "retry", "abc"}, env.configPath)
	if err == nil {
		t.Fatal("expected invalid id to error")
	}
	requireContains(t, err.Error(), "invalid item id")
}

func TestQueueClearFailed(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	if _, err := env.store.EnqueueBatch(ctx, catalog.ItemTypeMovie, []int64{603}, 5, 9); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	items, err := env.store.Dequeue(ctx, 1, catalog.DequeueFilter{ItemType: catalog.ItemTypeMovie})
	if err != nil || len(items) != 1 {
		t.Fatalf("dequeue: %v (%d items)", err, len(items))
	}
	if err := env.store.MarkFailed(ctx, "detail fetch failed", items[0].ID); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	stdout, _, err := runCLI(t, []string{"queue", "clear-failed"}, env.configPath)
	if err != nil {
		t.Fatalf("queue clear-failed: %v", err)
	}
	requireContains(t, stdout, "Cleared 1 failed items")
}

func TestQueueResetStuck(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	if _, err := env.store.EnqueueBatch(ctx, catalog.ItemTypeMovie, []int64{603}, 5, 9); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := env.store.Dequeue(ctx, 1, catalog.DequeueFilter{ItemType: catalog.ItemTypeMovie}); err != nil {
		t.Fatalf("dequeue: %v", err)
	}

	stdout, _, err := runCLI(t, []string{"queue", "reset-stuck"}, env.configPath)
	if err != nil {
		t.Fatalf("queue reset-stuck: %v", err)
	}
	requireContains(t, stdout, "Reset 1 items")

	stats, err := env.store.QueueStats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats[catalog.StatusProcessing] != 0 || stats[catalog.StatusPending] != 1 {
		t.Fatalf("unexpected stats after reset: %v", stats)
	}
}
