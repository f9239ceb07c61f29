package container

import (
	"context"
	"fmt"
	"reflect"
	"sync"
)

// Constructor describes one way of building an instance: the keys of its parameters, whether
// it is explicitly marked for injection, and the function that builds the instance once the
// arguments are resolved. Descriptors are plain data produced by whatever scans the
// application; the container never inspects user types by itself.
type Constructor struct {
	Params []Key
	Inject bool
	New    func(ctx context.Context, args []any) (any, error)
}

// Qualify returns a copy of the descriptor whose i-th parameter is looked up with the
// given qualifier.
func (c Constructor) Qualify(i int, qualifier string) Constructor {
	params := make([]Key, len(c.Params))
	copy(params, c.Params)
	params[i] = params[i].Named(qualifier)
	c.Params = params
	return c
}

// ConstructorOf builds a Constructor descriptor from a Go function. Every parameter other
// than context.Context becomes an unqualified Key; a context.Context parameter receives the
// resolution context. The function must return one value, optionally followed or preceded
// by an error. An invalid function panics, the same way a malformed generator would.
//
//	func NewGreeter(ctx context.Context, cfg *Config) (*EnglishGreeter, error)
//
//	ctor := ConstructorOf(NewGreeter, true)
func ConstructorOf(fn any, inject bool) Constructor {
	fnType := reflect.TypeOf(fn)
	if fnType == nil || fnType.Kind() != reflect.Func {
		panic(fmt.Sprintf("constructor must be a function, got %v", fnType))
	}
	info := getFuncInfo(fnType)
	if info.analyzeErr != "" {
		panic(fmt.Sprintf("%s: %v", info.analyzeErr, fnType))
	}

	params := make([]Key, len(info.depIdx))
	for i, idx := range info.depIdx {
		params[i] = KeyFor(info.params[idx])
	}

	fnValue := reflect.ValueOf(fn)
	return Constructor{
		Params: params,
		Inject: inject,
		New: func(ctx context.Context, args []any) (any, error) {
			in := make([]reflect.Value, len(info.params))
			for _, idx := range info.contextIdx {
				in[idx] = reflect.ValueOf(&ctx).Elem()
			}
			for i, idx := range info.depIdx {
				arg, err := argumentValue(params[i], info.params[idx], args[i])
				if err != nil {
					return nil, err
				}
				in[idx] = arg
			}
			out := fnValue.Call(in)
			if info.errorIdx >= 0 && !out[info.errorIdx].IsNil() {
				return nil, out[info.errorIdx].Interface().(error)
			}
			return out[info.resultIdx].Interface(), nil
		},
	}
}

// argumentValue converts a resolved dependency into a call argument for a parameter of type
// t. Nil becomes the zero value; a value that cannot be assigned is a configuration error
// rather than a reflection panic.
func argumentValue(key Key, t reflect.Type, arg any) (reflect.Value, error) {
	if arg == nil {
		return reflect.Zero(t), nil
	}
	v := reflect.ValueOf(arg)
	if !v.Type().AssignableTo(t) {
		return reflect.Value{}, &ConfigurationError{
			Message:     "dependency has an incompatible type",
			Key:         key,
			Reason:      ErrProviderFailed,
			SourceError: fmt.Errorf("got %T, want %v", arg, t),
		}
	}
	return v, nil
}

// ConstructorProvider builds instances by picking a single eligible constructor and
// resolving its parameters through a Resolver. The choice is made lazily on the first Get:
//
//   - exactly one constructor marked Inject wins;
//   - otherwise the only declared constructor;
//   - otherwise the zero-argument constructor.
//
// Anything else is an ambiguous configuration and every Get returns the same
// ConfigurationError.
type ConstructorProvider struct {
	resolver Resolver
	typ      reflect.Type
	ctors    []Constructor

	once      sync.Once
	selected  *Constructor
	selectErr error
}

// NewConstructorProvider creates a provider for type t. Constructor selection is not
// validated here.
func NewConstructorProvider(r Resolver, t reflect.Type, ctors ...Constructor) *ConstructorProvider {
	return &ConstructorProvider{
		resolver: r,
		typ:      t,
		ctors:    ctors,
	}
}

// Construct is the generic shorthand for NewConstructorProvider using T as the type.
func Construct[T any](r Resolver, ctors ...Constructor) *ConstructorProvider {
	return NewConstructorProvider(r, KeyOf[T]().Type(), ctors...)
}

// Get resolves each parameter of the selected constructor and calls it. If the instance
// implements Initializer, PostConstruct runs before the instance is returned.
func (p *ConstructorProvider) Get(ctx context.Context) (any, error) {
	ctor, err := p.constructor()
	if err != nil {
		return nil, err
	}

	args := make([]any, len(ctor.Params))
	for i, paramKey := range ctor.Params {
		arg, err := p.resolver.Get(ctx, paramKey)
		if err != nil {
			return nil, err
		}
		args[i] = arg
	}

	instance, err := ctor.New(ctx, args)
	if err != nil {
		return nil, err
	}
	if init, ok := instance.(Initializer); ok {
		if err := init.PostConstruct(ctx); err != nil {
			return nil, fmt.Errorf("post construct %v: %w", p.typ, err)
		}
	}
	return instance, nil
}

// Dependencies returns the parameter keys of the selected constructor, or nil if no
// constructor can be selected.
func (p *ConstructorProvider) Dependencies() []Key {
	ctor, err := p.constructor()
	if err != nil {
		return nil
	}
	return ctor.Params
}

func (p *ConstructorProvider) constructor() (*Constructor, error) {
	p.once.Do(func() {
		p.selected, p.selectErr = selectConstructor(p.ctors)
		if p.selectErr != nil {
			p.selectErr = &ConfigurationError{
				Message:     "cannot select constructor",
				Key:         KeyFor(p.typ),
				Reason:      ErrAmbiguousConstructor,
				SourceError: p.selectErr,
			}
		}
	})
	return p.selected, p.selectErr
}

func selectConstructor(ctors []Constructor) (*Constructor, error) {
	if len(ctors) == 0 {
		return nil, fmt.Errorf("no constructor declared")
	}

	injectIdx := -1
	for i := range ctors {
		if !ctors[i].Inject {
			continue
		}
		if injectIdx >= 0 {
			return nil, fmt.Errorf("more than one constructor marked for injection")
		}
		injectIdx = i
	}
	if injectIdx >= 0 {
		return &ctors[injectIdx], nil
	}

	if len(ctors) == 1 {
		return &ctors[0], nil
	}

	for i := range ctors {
		if len(ctors[i].Params) == 0 {
			return &ctors[i], nil
		}
	}
	return nil, fmt.Errorf("%d constructors with parameters and none marked for injection", len(ctors))
}
