package container

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

type scopeContextKey int

const (
	threadContextKey scopeContextKey = iota
	requestContextKey
	sessionContextKey
)

// ScopeContext is the cache behind thread, request and session scoped bindings. The host
// that owns the context (an HTTP layer, a worker spawner) creates it, makes it ambient by
// placing it in a context.Context, and calls Release exactly when the context ends.
//
// The map of entries has its own lock; every entry additionally has a construction lock,
// so a scoped instance depending on another scoped instance of the same context never
// contends on a single lock.
type ScopeContext struct {
	id   string
	kind Scope

	mu       sync.Mutex
	entries  map[Key]*scopeEntry
	order    []*scopeEntry
	onEnd    []func()
	released bool

	// watchedBy is the lifecycle already tracking this context.
	watchedBy atomic.Pointer[lifecycle]
}

type scopeEntry struct {
	key     Key
	mu      sync.Mutex
	value   any
	ready   bool
	owned   bool
	release func(any) error
}

// NewScopeContext creates an empty scope context of the given kind. An empty id is
// replaced by a random UUID.
func NewScopeContext(kind Scope, id string) *ScopeContext {
	if id == "" {
		id = uuid.NewString()
	}
	return &ScopeContext{
		id:      id,
		kind:    kind,
		entries: map[Key]*scopeEntry{},
	}
}

// ID returns the identifier of the context.
func (s *ScopeContext) ID() string {
	return s.id
}

// Kind returns the scope this context serves.
func (s *ScopeContext) Kind() Scope {
	return s.kind
}

// Len returns the number of instances currently cached.
func (s *ScopeContext) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

// Released reports whether Release has been called.
func (s *ScopeContext) Released() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}

// OnEnd registers a callback that runs once the context is released. If the context is
// already released the callback runs immediately.
func (s *ScopeContext) OnEnd(fn func()) {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		fn()
		return
	}
	s.onEnd = append(s.onEnd, fn)
	s.mu.Unlock()
}

// Release tells every instance owned by this context that it is going out of scope, in
// reverse construction order, then drops the cache and runs the OnEnd callbacks. Only the
// first call does anything; later and concurrent calls return nil. Failing release hooks do
// not stop the others and are returned joined.
func (s *ScopeContext) Release() error {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return nil
	}
	s.released = true
	order := s.order
	callbacks := s.onEnd
	s.order = nil
	s.entries = nil
	s.onEnd = nil
	s.mu.Unlock()

	var errs []error
	for i := len(order) - 1; i >= 0; i-- {
		e := order[i]
		if !e.owned {
			continue
		}
		if err := releaseInstance(e.value, e.release); err != nil {
			errs = append(errs, &ConfigurationError{
				Message:     "release failed",
				Key:         e.key,
				SourceError: err,
			})
		}
	}
	for _, cb := range callbacks {
		cb()
	}
	return errors.Join(errs...)
}

// getOrCreate returns the cached instance for key, calling create under the entry lock if
// there is none yet. A failed create leaves the entry empty so the next call retries.
func (s *ScopeContext) getOrCreate(key Key, create func() (any, error), release func(any) error) (any, error) {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return nil, ErrScopeReleased
	}
	e, ok := s.entries[key]
	if !ok {
		e = &scopeEntry{key: key, owned: true, release: release}
		s.entries[key] = e
	}
	s.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ready {
		return e.value, nil
	}

	value, err := create()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		_ = releaseInstance(value, release)
		return nil, ErrScopeReleased
	}
	e.value = value
	e.ready = true
	s.order = append(s.order, e)
	s.mu.Unlock()
	return value, nil
}

// fork creates a child context that starts with the instances this context has already
// resolved. The child does not own them and will not release them; anything the child
// resolves afterwards is its own, and anything the parent resolves later is not seen.
func (s *ScopeContext) fork() *ScopeContext {
	child := NewScopeContext(s.kind, "")
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.order {
		inherited := &scopeEntry{key: e.key, value: e.value, ready: true}
		child.entries[e.key] = inherited
		child.order = append(child.order, inherited)
	}
	return child
}

// releaseInstance runs the binding's release hook and then io.Closer, if implemented.
func releaseInstance(instance any, release func(any) error) error {
	var errs []error
	if release != nil {
		if err := release(instance); err != nil {
			errs = append(errs, err)
		}
	}
	if closer, ok := instance.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NewThread returns a context carrying a fresh thread scope, and the function that ends it.
// Thread scoped bindings resolved with the returned context, or any context derived from it,
// share one cache. The caller must call release when the logical thread finishes; until then
// the scope stays live and is only released by Container.Close.
func NewThread(ctx context.Context) (context.Context, func() error) {
	sc := NewScopeContext(ScopeThread, "")
	return context.WithValue(ctx, threadContextKey, sc), sc.Release
}

// ForkThread returns a context for a task about to be spawned from ctx, and the function
// that ends the task's thread scope. The child thread scope captures whatever the current
// thread scope has resolved at this moment. Spawn points must call this explicitly; reusing
// a context in a pooled worker does not capture anything. If ctx has no thread scope the
// child gets a fresh one. Releasing the child never releases what it inherited.
func ForkThread(ctx context.Context) (context.Context, func() error) {
	parent := ThreadOf(ctx)
	if parent == nil {
		return NewThread(ctx)
	}
	child := parent.fork()
	return context.WithValue(ctx, threadContextKey, child), child.Release
}

// ThreadOf returns the thread scope carried by ctx, or nil.
func ThreadOf(ctx context.Context) *ScopeContext {
	sc, _ := ctx.Value(threadContextKey).(*ScopeContext)
	return sc
}

// WithRequest makes sc the ambient request scope of the returned context.
func WithRequest(ctx context.Context, sc *ScopeContext) context.Context {
	return context.WithValue(ctx, requestContextKey, sc)
}

// RequestOf returns the request scope carried by ctx, or nil.
func RequestOf(ctx context.Context) *ScopeContext {
	sc, _ := ctx.Value(requestContextKey).(*ScopeContext)
	return sc
}

// WithSession makes sc the ambient session scope of the returned context.
func WithSession(ctx context.Context, sc *ScopeContext) context.Context {
	return context.WithValue(ctx, sessionContextKey, sc)
}

// SessionOf returns the session scope carried by ctx, or nil.
func SessionOf(ctx context.Context) *ScopeContext {
	sc, _ := ctx.Value(sessionContextKey).(*ScopeContext)
	return sc
}

// ContextAccessor locates the ambient ScopeContext for request and session scopes. The
// hosting transport supplies it; the default reads the values set by WithRequest and
// WithSession.
type ContextAccessor interface {
	CurrentContext(ctx context.Context, scope Scope) (*ScopeContext, bool)
}

// ContextAccessorFunc adapts a function into a ContextAccessor.
type ContextAccessorFunc func(ctx context.Context, scope Scope) (*ScopeContext, bool)

func (f ContextAccessorFunc) CurrentContext(ctx context.Context, scope Scope) (*ScopeContext, bool) {
	return f(ctx, scope)
}

type ambientAccessor struct{}

func (ambientAccessor) CurrentContext(ctx context.Context, scope Scope) (*ScopeContext, bool) {
	var sc *ScopeContext
	switch scope {
	case ScopeThread:
		sc = ThreadOf(ctx)
	case ScopeRequest:
		sc = RequestOf(ctx)
	case ScopeSession:
		sc = SessionOf(ctx)
	}
	return sc, sc != nil
}
