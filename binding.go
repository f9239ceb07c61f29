package container

import (
	"fmt"
)

// Scope is the lifetime policy applied to a binding's provider.
type Scope int

const (
	// ScopeNone builds a new instance on every resolution.
	ScopeNone Scope = iota

	// ScopeSingleton builds the instance at most once for the life of the container.
	ScopeSingleton

	// ScopeThread caches one instance per thread context carried in the
	// context.Context. See NewThread and ForkThread.
	ScopeThread

	// ScopeRequest caches one instance per request ScopeContext supplied by the host.
	ScopeRequest

	// ScopeSession caches one instance per session ScopeContext supplied by the host.
	ScopeSession
)

func (s Scope) String() string {
	switch s {
	case ScopeNone:
		return "none"
	case ScopeSingleton:
		return "singleton"
	case ScopeThread:
		return "thread"
	case ScopeRequest:
		return "request"
	case ScopeSession:
		return "session"
	}
	return fmt.Sprintf("scope(%d)", int(s))
}

// Binding pairs a Key with the Provider that produces it, plus the scope that governs
// caching. Bindings are values; once registered with an Injector they are never changed.
type Binding struct {
	Key      Key
	Provider Provider
	Scope    Scope

	// Eager asks Container.Start to build the instance up front. Only valid for
	// singletons.
	Eager bool

	// Release is called when a cached instance goes out of scope, in addition to
	// io.Closer handling.
	Release func(instance any) error
}

// BindingOption configures a Binding created by NewBinding.
type BindingOption func(*Binding)

// InScope sets the scope of the binding.
func InScope(scope Scope) BindingOption {
	return func(b *Binding) {
		b.Scope = scope
	}
}

// AsEager marks the binding as an eager singleton.
func AsEager() BindingOption {
	return func(b *Binding) {
		b.Scope = ScopeSingleton
		b.Eager = true
	}
}

// Named qualifies the binding's key. This is part of building the binding and happens
// before the key is ever used for a lookup.
func Named(qualifier string) BindingOption {
	return func(b *Binding) {
		b.Key = b.Key.Named(qualifier)
	}
}

// WithRelease registers a hook that runs when a cached instance of this binding is
// released.
func WithRelease(release func(instance any) error) BindingOption {
	return func(b *Binding) {
		b.Release = release
	}
}

// NewBinding creates a Binding of key to provider. The default scope is ScopeNone.
func NewBinding(key Key, provider Provider, opts ...BindingOption) Binding {
	b := Binding{
		Key:      key,
		Provider: provider,
	}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

// BindInstance binds KeyOf[T] to a fixed value. The binding is an eager singleton so the
// value is tracked from Start on and released at Close.
func BindInstance[T any](value T, opts ...BindingOption) Binding {
	opts = append([]BindingOption{AsEager()}, opts...)
	return NewBinding(KeyOf[T](), Instance(value), opts...)
}

// BindConstructor binds KeyOf[T] to a constructor provider built from one or more
// functions. When a single function is given it is treated as the injectable constructor.
func BindConstructor[T any](r Resolver, fn any, opts ...BindingOption) Binding {
	return NewBinding(KeyOf[T](), Construct[T](r, ConstructorOf(fn, true)), opts...)
}

func (b Binding) validate() error {
	if b.Key.IsZero() {
		return fmt.Errorf("binding has no key")
	}
	if b.Provider == nil {
		return fmt.Errorf("binding for %v has no provider", b.Key)
	}
	if b.Eager && b.Scope != ScopeSingleton {
		return fmt.Errorf("binding for %v is eager but has scope %v", b.Key, b.Scope)
	}
	if b.Scope < ScopeNone || b.Scope > ScopeSession {
		return fmt.Errorf("binding for %v has unknown scope %v", b.Key, b.Scope)
	}
	return nil
}
