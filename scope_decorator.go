package container

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// decorate wraps a binding's provider with the caching required by its scope.
func decorate(b Binding, life *lifecycle, accessor ContextAccessor) Provider {
	switch b.Scope {
	case ScopeSingleton:
		return &singletonScope{
			key:      b.Key,
			provider: b.Provider,
			release:  b.Release,
			life:     life,
		}
	case ScopeThread:
		return &contextScope{
			key:      b.Key,
			kind:     ScopeThread,
			provider: b.Provider,
			release:  b.Release,
			life:     life,
			accessor: ambientAccessor{},
		}
	case ScopeRequest, ScopeSession:
		return &contextScope{
			key:      b.Key,
			kind:     b.Scope,
			provider: b.Provider,
			release:  b.Release,
			life:     life,
			accessor: accessor,
		}
	}
	return b.Provider
}

// singletonScope builds its instance at most once. The cache belongs to the binding's Key,
// not to the provider, so the same provider bound under two keys yields two singletons.
type singletonScope struct {
	key      Key
	provider Provider
	release  func(any) error
	life     *lifecycle

	mu    sync.Mutex
	done  atomic.Bool
	value any
}

// Get uses double-checked locking. A failed construction happens under the same lock as a
// successful one and leaves the cache empty, so concurrent callers retry one at a time.
func (s *singletonScope) Get(ctx context.Context) (any, error) {
	if s.done.Load() {
		return s.value, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done.Load() {
		return s.value, nil
	}

	value, err := s.provider.Get(ctx)
	if err != nil {
		return nil, err
	}
	if !s.life.trackSingleton(s.key, value, s.release) {
		return nil, &ConfigurationError{
			Message:     "singleton built during shutdown",
			Key:         s.key,
			Reason:      ErrClosed,
			SourceError: releaseInstance(value, s.release),
		}
	}
	s.value = value
	s.done.Store(true)
	return value, nil
}

func (s *singletonScope) live() bool {
	return s.done.Load()
}

// contextScope caches instances in the ambient ScopeContext for its kind.
type contextScope struct {
	key      Key
	kind     Scope
	provider Provider
	release  func(any) error
	life     *lifecycle
	accessor ContextAccessor
}

func (s *contextScope) Get(ctx context.Context) (any, error) {
	sc, ok := s.accessor.CurrentContext(ctx, s.kind)
	if !ok || sc == nil {
		return nil, &ConfigurationError{
			Message: "no " + s.kind.String() + " context for scoped binding",
			Key:     s.key,
			Reason:  ErrNoScopeContext,
		}
	}
	s.life.watch(sc)

	value, err := sc.getOrCreate(s.key, func() (any, error) {
		return s.provider.Get(ctx)
	}, s.release)
	if errors.Is(err, ErrScopeReleased) {
		return nil, &ConfigurationError{
			Message: s.kind.String() + " context " + sc.ID() + " is released",
			Key:     s.key,
			Reason:  ErrScopeReleased,
		}
	}
	return value, err
}
