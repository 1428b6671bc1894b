package pipeline_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"gleaner/internal/config"
	"gleaner/internal/logging"
	"gleaner/internal/pipeline"
)

type fakeResetStore struct {
	resets atomic.Int32
	reset  int64
	err    error
}

func (s *fakeResetStore) ResetStuckProcessing(context.Context) (int64, error) {
	s.resets.Add(1)
	return s.reset, s.err
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Database.Path = filepath.Join(t.TempDir(), "catalog.db")
	cfg.Runner.ErrorRetryInterval = 0
	return &cfg
}

func waitFor(t *testing.T, what string, done func() bool) {
	t.Helper()
	deadline := time.After(10 * time.Second)
	for !done() {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %s", what)
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}
}

func TestRunnerRunsTasksOnInterval(t *testing.T) {
	store := &fakeResetStore{reset: 2}
	runner := pipeline.New(store, testConfig(t), logging.NewNop())

	var runs atomic.Int32
	runner.Register(pipeline.Task{
		Name:     "counter",
		Interval: 5 * time.Millisecond,
		Run: func(context.Context) error {
			runs.Add(1)
			return nil
		},
	})

	if err := runner.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(runner.Stop)

	waitFor(t, "three task runs", func() bool { return runs.Load() >= 3 })
	if got := store.resets.Load(); got != 1 {
		t.Fatalf("stuck rows reset %d times, want 1", got)
	}
}

func TestRunnerRequiresTasks(t *testing.T) {
	runner := pipeline.New(&fakeResetStore{}, testConfig(t), logging.NewNop())
	if err := runner.Start(context.Background()); err == nil {
		t.Fatal("Start succeeded with no tasks registered")
	}
}

func TestRunnerHoldsSingleInstanceLock(t *testing.T) {
	cfg := testConfig(t)
	idle := pipeline.Task{
		Name:     "idle",
		Interval: time.Hour,
		Run:      func(context.Context) error { return nil },
	}

	first := pipeline.New(&fakeResetStore{}, cfg, logging.NewNop())
	first.Register(idle)
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("first Start: %v", err)
	}

	second := pipeline.New(&fakeResetStore{}, cfg, logging.NewNop())
	second.Register(idle)
	if err := second.Start(context.Background()); err == nil {
		second.Stop()
		t.Fatal("second Start succeeded while the lock was held")
	}

	first.Stop()
	if err := second.Start(context.Background()); err != nil {
		t.Fatalf("Start after release: %v", err)
	}
	second.Stop()
}

func TestRunnerKeepsRunningAfterTaskFailure(t *testing.T) {
	runner := pipeline.New(&fakeResetStore{}, testConfig(t), logging.NewNop())

	var runs atomic.Int32
	runner.Register(pipeline.Task{
		Name:     "flaky",
		Interval: 5 * time.Millisecond,
		Run: func(context.Context) error {
			runs.Add(1)
			return errors.New("source down")
		},
	})

	if err := runner.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(runner.Stop)

	waitFor(t, "retries after failures", func() bool { return runs.Load() >= 3 })
}

func TestRunnerStopCancelsRunningTask(t *testing.T) {
	runner := pipeline.New(&fakeResetStore{}, testConfig(t), logging.NewNop())

	started := make(chan struct{})
	var cancelled atomic.Bool
	runner.Register(pipeline.Task{
		Name:     "blocker",
		Interval: time.Hour,
		Run: func(ctx context.Context) error {
			close(started)
			<-ctx.Done()
			cancelled.Store(true)
			return ctx.Err()
		},
	})

	if err := runner.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	<-started
	runner.Stop()

	if !cancelled.Load() {
		t.Fatal("task never observed cancellation")
	}
}
