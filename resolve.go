package container

import (
	"context"
	"fmt"
)

// Resolve returns the instance bound to KeyOf[T]. A missing binding is a
// ConfigurationError whose reason is ErrNotBound.
func Resolve[T any](ctx context.Context, r Resolver) (T, error) {
	return ResolveKey[T](ctx, r, KeyOf[T]())
}

// ResolveNamed returns the instance bound to KeyOf[T] qualified by name.
func ResolveNamed[T any](ctx context.Context, r Resolver, qualifier string) (T, error) {
	return ResolveKey[T](ctx, r, KeyOf[T]().Named(qualifier))
}

// ResolveKey returns the instance bound to key as a T.
func ResolveKey[T any](ctx context.Context, r Resolver, key Key) (T, error) {
	value, err := r.Get(ctx, key)
	if err != nil {
		var zero T
		return zero, err
	}
	return cast[T](key, value)
}

// ResolveOptional returns the instance bound to KeyOf[T] along with a boolean indicating
// whether a binding exists. Unlike Resolve, absence is not an error so callers can apply a
// default; a binding that exists but fails to build still returns an error.
func ResolveOptional[T any](ctx context.Context, r Resolver) (T, bool, error) {
	key := KeyOf[T]()
	value, found, err := r.Lookup(ctx, key)
	if err != nil || !found {
		var zero T
		return zero, found, err
	}
	result, err := cast[T](key, value)
	return result, err == nil, err
}

// MustResolve behaves like Resolve except it panics if the instance cannot be produced.
// It is meant for composition code where a failure is a programming error.
func MustResolve[T any](ctx context.Context, r Resolver) T {
	result, err := Resolve[T](ctx, r)
	if err != nil {
		panic(err)
	}
	return result
}

func cast[T any](key Key, value any) (T, error) {
	if value == nil {
		var zero T
		return zero, nil
	}
	result, ok := value.(T)
	if !ok {
		var zero T
		return zero, &ConfigurationError{
			Message:     "provider returned an incompatible value",
			Key:         key,
			Reason:      ErrProviderFailed,
			SourceError: fmt.Errorf("got %T, want %v", value, KeyOf[T]().Type()),
		}
	}
	return result, nil
}
