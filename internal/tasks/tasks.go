// Package tasks runs fire-and-forget background work such as like
// persistence and cache requests.
package tasks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Metrics counts finished tasks.
type Metrics struct {
	Processed int64
	Failed    int64
	Elapsed   time.Duration
}

// Runner starts each task on its own goroutine. Failures are logged and
// counted, never returned to the caller, and tasks are not retried.
type Runner struct {
	ctx     context.Context
	cancel  context.CancelFunc
	timeout time.Duration
	logger  *zap.Logger

	wg      sync.WaitGroup
	mu      sync.Mutex
	metrics Metrics
	stopped bool
}

func NewRunner(timeout time.Duration, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		ctx:     ctx,
		cancel:  cancel,
		timeout: timeout,
		logger:  logger,
	}
}

// Go schedules fn. After Stop it is a no-op.
func (r *Runner) Go(name string, fn func(ctx context.Context) error) {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		r.logger.Debug("Runner stopped, dropping task", zap.String("task", name))
		return
	}
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		r.run(name, fn)
	}()
}

func (r *Runner) run(name string, fn func(ctx context.Context) error) {
	ctx := r.ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	err := safeCall(ctx, fn)
	elapsed := time.Since(start)

	r.mu.Lock()
	r.metrics.Processed++
	r.metrics.Elapsed += elapsed
	if err != nil {
		r.metrics.Failed++
	}
	r.mu.Unlock()

	if err != nil {
		r.logger.Warn("Background task failed",
			zap.String("task", name),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		return
	}
	r.logger.Debug("Background task done", zap.String("task", name), zap.Duration("elapsed", elapsed))
}

func safeCall(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return fn(ctx)
}

// Wait blocks until every scheduled task has returned.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Stop refuses new tasks, cancels running ones and waits for them.
func (r *Runner) Stop() {
	r.mu.Lock()
	r.stopped = true
	r.mu.Unlock()

	r.cancel()
	r.wg.Wait()
}

func (r *Runner) Metrics() Metrics {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.metrics
}
