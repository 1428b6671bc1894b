// Package pipeline keeps the harvest, enrichment, sync, and quality tasks
// running as a resident process. Each task loops on its own interval in
// its own goroutine; a file lock enforces one pipeline per catalog.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"gleaner/internal/config"
	"gleaner/internal/logging"
)

// Store is the catalog slice the runner needs at startup.
type Store interface {
	ResetStuckProcessing(ctx context.Context) (int64, error)
}

// Task is one resident unit of work on its own schedule.
type Task struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Runner owns the task goroutines and the pipeline lock.
type Runner struct {
	store      Store
	logger     *slog.Logger
	lock       *flock.Flock
	lockPath   string
	errorRetry time.Duration

	tasks []Task

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New constructs a runner guarding the catalog named by the configuration.
func New(store Store, cfg *config.Config, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	lockPath := cfg.LockPath()
	return &Runner{
		store:      store,
		logger:     logging.NewComponentLogger(logger, "pipeline"),
		lock:       flock.New(lockPath),
		lockPath:   lockPath,
		errorRetry: time.Duration(cfg.Runner.ErrorRetryInterval) * time.Second,
	}
}

// Register adds tasks to the run set. Register before Start.
func (r *Runner) Register(tasks ...Task) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, task := range tasks {
		if task.Name == "" || task.Run == nil {
			continue
		}
		r.tasks = append(r.tasks, task)
	}
}

// LockPath returns the flock path the runner guards itself with.
func (r *Runner) LockPath() string {
	return r.lockPath
}

// Start acquires the pipeline lock, reopens rows a dead run left in
// processing, and launches one goroutine per registered task.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return errors.New("pipeline already running")
	}
	if len(r.tasks) == 0 {
		return errors.New("no tasks registered")
	}

	ok, err := r.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire pipeline lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("another instance holds %s", r.lockPath)
	}

	if reset, err := r.store.ResetStuckProcessing(ctx); err != nil {
		r.logger.Warn("reset stuck processing failed; stale rows may remain", logging.Error(err))
	} else if reset > 0 {
		r.logger.Info("stale processing rows reopened", logging.Int64("count", reset))
	}

	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.running = true
	r.wg.Add(len(r.tasks))
	for _, task := range r.tasks {
		go r.runTask(runCtx, task)
	}
	r.logger.Info("pipeline started",
		logging.String("lock", r.lockPath),
		logging.Int("tasks", len(r.tasks)))
	return nil
}

// Stop cancels the task goroutines, waits for them, and releases the lock.
func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	cancel := r.cancel
	r.running = false
	r.cancel = nil
	r.mu.Unlock()

	cancel()
	r.wg.Wait()
	if err := r.lock.Unlock(); err != nil {
		r.logger.Warn("release pipeline lock failed", logging.Error(err))
	}
	r.logger.Info("pipeline stopped")
}

// runTask runs one task immediately and then on its interval. A failed run
// retries at the error interval instead of waiting out the full one.
func (r *Runner) runTask(ctx context.Context, task Task) {
	defer r.wg.Done()
	logger := logging.NewComponentLogger(r.logger, task.Name)

	for {
		runLogger := logging.WithRun(logger, uuid.NewString())
		started := time.Now()
		err := task.Run(ctx)
		if ctx.Err() != nil {
			return
		}
		wait := task.Interval
		if err != nil {
			runLogger.Error("task run failed", logging.Error(err))
			if r.errorRetry > 0 && r.errorRetry < wait {
				wait = r.errorRetry
			}
		} else {
			runLogger.Info("task run finished",
				logging.Duration("elapsed", time.Since(started).Round(time.Millisecond)))
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}
