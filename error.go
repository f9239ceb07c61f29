package container

import (
	"errors"
	"fmt"
)

var (
	// ErrNotBound is the reason given when a mandatory dependency has no binding.
	ErrNotBound = errors.New("no binding for key")
	// ErrCircularDependency is the reason given when a key is requested while it is
	// already being resolved higher up the same resolution.
	ErrCircularDependency = errors.New("circular dependency")
	// ErrAmbiguousConstructor is the reason given when a constructor provider cannot pick
	// a single constructor.
	ErrAmbiguousConstructor = errors.New("ambiguous constructor")
	// ErrNoScopeContext is the reason given when a thread, request or session scoped
	// binding is resolved without the matching ambient context.
	ErrNoScopeContext = errors.New("no scope context available")
	// ErrScopeReleased is the reason given when a scope context is used after release.
	ErrScopeReleased = errors.New("scope context already released")
	// ErrSealed is the reason given when bindings are registered after Start.
	ErrSealed = errors.New("injector is sealed")
	// ErrClosed is the reason given when resolving from an injector whose container has
	// been closed.
	ErrClosed = errors.New("injector is closed")
	// ErrProviderFailed is the reason given when a provider returned an error.
	ErrProviderFailed = errors.New("provider failed")
	// ErrAuthorizationDenied is returned by security processors that refuse a call.
	ErrAuthorizationDenied = errors.New("authorization denied")

	// ErrChainExhausted is the panic value raised when Proceed is called past the
	// terminal link. It always indicates a processor bug.
	ErrChainExhausted = errors.New("invocation chain exhausted")
	// ErrChainTerminated is the panic value raised when Proceed is called on a chain
	// that already started unwinding or was detached.
	ErrChainTerminated = errors.New("invocation chain already terminated")
)

// ConfigurationError reports a problem with the way bindings are set up: a missing
// mandatory binding, a circular dependency, an ambiguous constructor, or a failing provider.
// These always surface to the caller; the container never recovers from them silently.
type ConfigurationError struct {
	Message     string
	Key         Key
	Reason      error
	Status      string
	SourceError error
}

func (e *ConfigurationError) Error() string {
	if e.SourceError == nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Key)
	}
	return fmt.Sprintf("%s: %v (%v)", e.Message, e.Key, e.SourceError.Error())
}

// Unwrap exposes both the reason sentinel and the source error to errors.Is and errors.As.
func (e *ConfigurationError) Unwrap() []error {
	var errs []error
	if e.Reason != nil {
		errs = append(errs, e.Reason)
	}
	if e.SourceError != nil {
		errs = append(errs, e.SourceError)
	}
	return errs
}

// InvocationError wraps a failure raised by the terminal call or by a processor while
// keeping the original cause inspectable.
type InvocationError struct {
	Operation string
	Cause     error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("invocation of %s failed: %v", e.Operation, e.Cause)
}

func (e *InvocationError) Unwrap() error {
	return e.Cause
}
