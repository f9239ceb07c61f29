package processors

import (
	"context"
	"fmt"
	"runtime"
	"time"

	container "github.com/js-lib-com/tiny-container-sub006"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

// Async hands the rest of the chain to a worker pool and returns to the caller right away.
//
// For operations without a result this is fire-and-return: the caller gets (nil, nil) and
// never learns how the call went; failures and panics are logged. For operations whose
// ReturnType is FutureType the caller gets a *Future that completes with the outcome.
//
// The worker runs with a context detached from the caller's cancellation and with a thread
// scope forked at submit time. Pooled workers capture nothing on their own; the fork here is
// the only point where thread scoped instances cross into the worker.
type Async struct {
	pool    *ants.Pool
	logger  *zap.Logger
	timeout time.Duration
}

// AsyncOption configures an Async processor.
type AsyncOption func(*Async)

// WithTimeout bounds each dispatched call with a deadline.
func WithTimeout(timeout time.Duration) AsyncOption {
	return func(a *Async) {
		a.timeout = timeout
	}
}

// NewAsync creates an asynchronous processor backed by an ants pool of the given size.
func NewAsync(workers int, logger *zap.Logger, opts ...AsyncOption) (*Async, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Async{logger: logger}
	for _, opt := range opts {
		opt(a)
	}

	pool, err := ants.NewPool(workers, ants.WithPanicHandler(func(p any) {
		logger.Error("async worker panicked", zap.Any("panic", p))
	}))
	if err != nil {
		return nil, fmt.Errorf("create async pool: %w", err)
	}
	a.pool = pool
	return a, nil
}

func (a *Async) Priority() container.Priority {
	return container.PriorityAsynchronous
}

func (a *Async) Bind(op *container.Operation) bool {
	return op.HasTag(TagAsync) && (op.IsVoid() || op.ReturnType == FutureType)
}

func (a *Async) Invoke(chain *container.Chain, inv *container.Invocation) (any, error) {
	op := inv.Operation
	args := make([]any, len(inv.Args))
	copy(args, inv.Args)
	taskCtx, releaseThread := container.ForkThread(container.Detach(inv.Context))
	task := &container.Invocation{
		Context:   taskCtx,
		Operation: op,
		Target:    inv.Target,
		Args:      args,
	}

	var future *Future
	if !op.IsVoid() {
		future = NewFuture()
	}

	rest := chain.Detach()
	err := a.pool.Submit(func() {
		value, err := a.run(rest, task, releaseThread)
		if future != nil {
			future.Complete(value, err)
			return
		}
		if err != nil {
			a.logger.Error("async operation failed",
				zap.String("operation", op.FullName()),
				zap.Error(err))
		}
	})
	if err != nil {
		a.logger.Error("async dispatch rejected",
			zap.String("operation", op.FullName()),
			zap.Error(err))
		if releaseErr := releaseThread(); releaseErr != nil {
			a.logger.Error("async thread scope release failed", zap.Error(releaseErr))
		}
		return nil, fmt.Errorf("dispatch %s: %w", op.FullName(), err)
	}

	if future != nil {
		return future, nil
	}
	return nil, nil
}

// run drives the detached chain, turning panics into errors and unwrapping a future
// returned by the method body. The task's thread scope is released when it finishes.
func (a *Async) run(rest *container.Chain, task *container.Invocation, releaseThread func() error) (value any, err error) {
	ctx := task.Context
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
		task.Context = ctx
	}
	defer func() {
		if releaseErr := releaseThread(); releaseErr != nil {
			a.logger.Error("async thread scope release failed", zap.Error(releaseErr))
		}
	}()
	defer func() {
		if p := recover(); p != nil {
			buf := make([]byte, 1<<16)
			n := runtime.Stack(buf, false)
			a.logger.Error("panic in async operation",
				zap.String("operation", task.Operation.FullName()),
				zap.Any("panic", p),
				zap.ByteString("stack", buf[:n]))
			value, err = nil, fmt.Errorf("panic in %s: %v", task.Operation.FullName(), p)
		}
	}()

	value, err = rest.Proceed(task)
	if err != nil {
		return nil, err
	}
	if inner, ok := value.(*Future); ok {
		return inner.Await(ctx)
	}
	return value, nil
}

// Running returns the number of workers currently busy.
func (a *Async) Running() int {
	return a.pool.Running()
}

// Close stops accepting work and waits up to a minute for running tasks. Binding the
// processor as a singleton lets the container close it at shutdown.
func (a *Async) Close() error {
	return a.pool.ReleaseTimeout(time.Minute)
}
