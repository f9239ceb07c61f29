package container

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// releasable is anything the container must release at shutdown: a constructed singleton
// or a scope context that is still live.
type releasable interface {
	release() error
	describe() string
}

type liveSingleton struct {
	key   Key
	value any
	hook  func(any) error
}

func (l *liveSingleton) release() error {
	return releaseInstance(l.value, l.hook)
}

func (l *liveSingleton) describe() string {
	return "singleton " + l.key.String()
}

type liveContext struct {
	sc *ScopeContext
}

func (l *liveContext) release() error {
	return l.sc.Release()
}

func (l *liveContext) describe() string {
	return l.sc.Kind().String() + " context " + l.sc.ID()
}

// lifecycle records everything that will need releasing in the order it came to life.
// Shutdown walks that list backwards. Entries sit in a linked list so a scope context that
// ends on its own drops out in constant time.
type lifecycle struct {
	mu       sync.Mutex
	live     *list.List
	contexts map[*ScopeContext]*list.Element
	closed   bool
}

func newLifecycle() *lifecycle {
	return &lifecycle{
		live:     list.New(),
		contexts: map[*ScopeContext]*list.Element{},
	}
}

// trackSingleton records a constructed singleton. It reports false once shutdown has begun;
// the caller then owns the instance and must release it.
func (l *lifecycle) trackSingleton(key Key, value any, hook func(any) error) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return false
	}
	l.live.PushBack(&liveSingleton{key: key, value: value, hook: hook})
	return true
}

// watch starts tracking a scope context the first time a scoped binding uses it. When the
// owner releases the context it drops out of the list again. Only the first call for a
// context takes the lifecycle lock; later calls stop at the context's own marker.
func (l *lifecycle) watch(sc *ScopeContext) {
	if sc.watchedBy.Load() == l {
		return
	}

	l.mu.Lock()
	if _, ok := l.contexts[sc]; ok || l.closed {
		l.mu.Unlock()
		return
	}
	l.contexts[sc] = l.live.PushBack(&liveContext{sc: sc})
	l.mu.Unlock()
	sc.watchedBy.CompareAndSwap(nil, l)

	sc.OnEnd(func() {
		l.unwatch(sc)
	})
}

func (l *lifecycle) unwatch(sc *ScopeContext) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.contexts[sc]; ok {
		delete(l.contexts, sc)
		l.live.Remove(e)
	}
}

func (l *lifecycle) liveCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.live.Len()
}

// shutdown releases everything in reverse order. A failure is logged and collected but
// never stops the remaining releases. If ctx ends first, the rest is abandoned and the
// context error is reported.
func (l *lifecycle) shutdown(ctx context.Context, logger *zap.Logger) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	live := make([]releasable, 0, l.live.Len())
	for e := l.live.Front(); e != nil; e = e.Next() {
		live = append(live, e.Value.(releasable))
	}
	l.live.Init()
	l.contexts = map[*ScopeContext]*list.Element{}
	l.mu.Unlock()

	var errs []error
	for i := len(live) - 1; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			logger.Error("shutdown abandoned", zap.Int("remaining", i+1), zap.Error(err))
			errs = append(errs, err)
			break
		}
		r := live[i]
		err := safeRelease(r)
		if err != nil {
			logger.Error("release failed", zap.String("component", r.describe()), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		logger.Debug("released", zap.String("component", r.describe()))
	}
	return errors.Join(errs...)
}

// safeRelease turns a panicking release hook into an error so shutdown can carry on.
func safeRelease(r releasable) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &ConfigurationError{
				Message:     "release panicked",
				SourceError: panicError(p),
			}
		}
	}()
	return r.release()
}

func panicError(p any) error {
	if err, ok := p.(error); ok {
		return err
	}
	return fmt.Errorf("%v", p)
}
