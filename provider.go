package container

import (
	"context"
)

// Provider is a stateless factory that produces an instance on demand. Scope decorators
// are Providers too, wrapping another Provider to add caching.
type Provider interface {
	Get(ctx context.Context) (any, error)
}

// ProviderFunc adapts a plain function into a Provider.
type ProviderFunc func(ctx context.Context) (any, error)

func (f ProviderFunc) Get(ctx context.Context) (any, error) {
	return f(ctx)
}

// Resolver is the read side of the Injector that providers use to obtain their own
// dependencies. Get treats a missing binding as a configuration error; Lookup reports it
// through the boolean result instead.
type Resolver interface {
	Get(ctx context.Context, key Key) (any, error)
	Lookup(ctx context.Context, key Key) (any, bool, error)
}

// Initializer is implemented by instances that need a post-construction step. The
// constructor provider calls PostConstruct right after the constructor returns and
// before the instance is handed to any scope cache.
type Initializer interface {
	PostConstruct(ctx context.Context) error
}

type instanceProvider struct {
	value any
}

// Instance returns a Provider that always hands out the given pre-built value.
func Instance(value any) Provider {
	return &instanceProvider{value: value}
}

func (p *instanceProvider) Get(_ context.Context) (any, error) {
	return p.value, nil
}
