package processors

import (
	"context"
	"reflect"
	"sync"
)

// FutureType is the ReturnType an operation declares to be dispatched as fire-and-await-later.
var FutureType = reflect.TypeOf((*Future)(nil))

// Future is the handle returned to the caller of an asynchronous operation that produces
// a result.
type Future struct {
	done  chan struct{}
	once  sync.Once
	value any
	err   error
}

// NewFuture creates an incomplete future.
func NewFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// Completed returns a future that is already complete. Method bodies of asynchronous
// operations typically return one of these.
func Completed(value any, err error) *Future {
	f := NewFuture()
	f.Complete(value, err)
	return f
}

// Complete sets the outcome. Only the first call has any effect.
func (f *Future) Complete(value any, err error) {
	f.once.Do(func() {
		f.value = value
		f.err = err
		close(f.done)
	})
}

// Done is closed once the future completes.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Await blocks until the future completes or ctx ends.
func (f *Future) Await(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
