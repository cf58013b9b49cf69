package tasks

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/postecho/postecho/pkg/logging"
)

// Runner executes fire-and-forget background tasks with failure containment.
// A task's error or panic is logged and isolated; it never propagates to the
// caller that spawned it.
type Runner struct {
	logger  *zap.Logger
	wg      sync.WaitGroup
	timeout time.Duration
}

// NewRunner creates a new background task runner. timeout bounds each task's
// context; zero means no deadline.
func NewRunner(timeout time.Duration) *Runner {
	return &Runner{
		logger:  logging.GetLogger().With(zap.String("component", "task-runner")),
		timeout: timeout,
	}
}

// Go runs fn in the background. The task gets its own context detached from
// the caller's request so a closed HTTP connection never cancels it.
func (r *Runner) Go(name string, fn func(ctx context.Context) error) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				r.logger.Error("Background task panicked",
					zap.String("task", name),
					zap.Any("panic", rec))
			}
		}()

		ctx := context.Background()
		if r.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, r.timeout)
			defer cancel()
		}

		start := time.Now()
		if err := fn(ctx); err != nil {
			r.logger.Error("Background task failed",
				zap.String("task", name),
				zap.Duration("elapsed", time.Since(start)),
				zap.Error(err))
			return
		}
		r.logger.Info("Background task finished",
			zap.String("task", name),
			zap.Duration("elapsed", time.Since(start)))
	}()
}

// Wait blocks until all tasks started so far have finished. Used on shutdown
// and in tests.
func (r *Runner) Wait() {
	r.wg.Wait()
}
