package async

import (
	"context"
	"fmt"
	"sync"

	"clinical-intake-be/internal/pkg/logger"
)

// Task is a unit of background work.
type Task func(ctx context.Context) error

// Executor runs tasks in their own goroutines, detached from the caller's
// cancellation, and logs failures and panics instead of propagating them.
type Executor struct {
	logger logger.ILogger
	wg     sync.WaitGroup
}

func NewExecutor(log logger.ILogger) *Executor {
	return &Executor{logger: log}
}

// Go schedules task. Values carried by ctx (trace spans) are kept.
func (e *Executor) Go(ctx context.Context, name string, task Task) {
	bgCtx := context.WithoutCancel(ctx)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				e.logger.Error("ASYNC", "panic in async task", map[string]interface{}{
					"task":  name,
					"panic": fmt.Sprint(r),
				})
			}
		}()

		if err := task(bgCtx); err != nil {
			e.logger.Error("ASYNC", "async task failed", logger.ErrorDetails(err, map[string]interface{}{
				"task": name,
			}))
		}
	}()
}

// Wait blocks until every scheduled task has returned. Used on shutdown.
func (e *Executor) Wait() {
	e.wg.Wait()
}

// InlineExecutor runs tasks synchronously. Tests use it for deterministic ordering.
type InlineExecutor struct {
	Logger logger.ILogger
}

func (e InlineExecutor) Go(ctx context.Context, name string, task Task) {
	if err := task(context.WithoutCancel(ctx)); err != nil && e.Logger != nil {
		e.Logger.Error("ASYNC", "inline task failed", logger.ErrorDetails(err, map[string]interface{}{
			"task": name,
		}))
	}
}
