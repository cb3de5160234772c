// Package background launches post-response tasks decoupled from the
// HTTP response lifecycle.
package background

import (
	"context"
	"log/slog"
	"sync"

	"github.com/cascade-http/cascade/internal/metrics"
	"github.com/cascade-http/cascade/internal/pipeline"
)

// Runner launches background tasks and isolates their failures. A
// single Runner is shared across requests; Wait drains in-flight tasks
// during shutdown.
type Runner struct {
	logger *slog.Logger
	wg     sync.WaitGroup
}

// NewRunner creates a runner logging to logger (slog.Default when nil).
func NewRunner(logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{logger: logger}
}

// Launch starts every task in its own goroutine, in list order, and
// returns without waiting. Tasks share bag without synchronization;
// ordering among them is start order only. A task failure is logged and
// counted, never escalated: it cannot prevent any other task from
// running.
//
// Callers on the request path should pass a context detached from the
// request (context.WithoutCancel) so response teardown cannot cancel
// tasks.
func (r *Runner) Launch(ctx context.Context, tasks []pipeline.Task, bag pipeline.Bag) {
	for i := range tasks {
		task := tasks[i]
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			r.runOne(ctx, task, bag)
		}()
	}
}

func (r *Runner) runOne(ctx context.Context, task pipeline.Task, bag pipeline.Bag) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("background task panicked",
				slog.String("task", task.Name),
				slog.String("source", task.Source),
				slog.Any("panic", rec),
			)
			metrics.TaskFailures.WithLabelValues(task.Name).Inc()
		}
	}()

	if task.Run == nil {
		return
	}
	if err := task.Run(ctx, bag); err != nil {
		r.logger.Error("background task failed",
			slog.String("task", task.Name),
			slog.String("source", task.Source),
			slog.String("error", err.Error()),
		)
		metrics.TaskFailures.WithLabelValues(task.Name).Inc()
	}
}

// Wait blocks until every launched task has finished, or until ctx is
// done, in which case it returns the context error.
func (r *Runner) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
