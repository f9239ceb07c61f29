package container

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// registration is one entry of the binding table.
type registration struct {
	binding  Binding
	provider Provider
	seq      int
}

type bindingTable map[Key]*registration

// Injector owns the merged binding table and resolves keys into instances.
//
// The table is copy-on-write: registration builds a new map and swaps it in atomically, so
// resolution never takes a lock to read it. Once sealed (Container.Start) the table is
// frozen. The only mutable shared state touched during resolution lives in the scope
// decorators, each with its own narrow lock.
//
// Registering a key that is already bound replaces the earlier binding (last write wins).
// The replaced binding keeps its original declaration position.
type Injector struct {
	table    atomic.Pointer[bindingTable]
	writeMu  sync.Mutex
	nextSeq  int
	sealed   atomic.Bool
	closed   atomic.Bool
	cycles   atomic.Pointer[staticCycles]
	life     *lifecycle
	accessor ContextAccessor
}

// InjectorOption configures an Injector.
type InjectorOption func(*Injector)

// WithAccessor sets how request and session scope contexts are located.
func WithAccessor(accessor ContextAccessor) InjectorOption {
	return func(i *Injector) {
		i.accessor = accessor
	}
}

// NewInjector creates an empty, unsealed injector.
func NewInjector(opts ...InjectorOption) *Injector {
	i := &Injector{
		life:     newLifecycle(),
		accessor: ambientAccessor{},
	}
	for _, opt := range opts {
		opt(i)
	}
	empty := bindingTable{}
	i.table.Store(&empty)
	return i
}

// Register adds a binding to the table, reporting whether it replaced an existing one.
func (i *Injector) Register(b Binding) (bool, error) {
	if err := b.validate(); err != nil {
		return false, &ConfigurationError{
			Message:     "invalid binding",
			Key:         b.Key,
			SourceError: err,
		}
	}

	i.writeMu.Lock()
	defer i.writeMu.Unlock()

	if i.sealed.Load() {
		return false, &ConfigurationError{
			Message: "cannot register binding",
			Key:     b.Key,
			Reason:  ErrSealed,
		}
	}

	current := *i.table.Load()
	next := make(bindingTable, len(current)+1)
	for k, v := range current {
		next[k] = v
	}

	reg := &registration{
		binding:  b,
		provider: decorate(b, i.life, i.accessor),
	}
	old, replaced := current[b.Key]
	if replaced {
		reg.seq = old.seq
	} else {
		reg.seq = i.nextSeq
		i.nextSeq++
	}
	next[b.Key] = reg
	i.table.Store(&next)
	return replaced, nil
}

// Get resolves key, treating a missing binding as a ConfigurationError with reason
// ErrNotBound.
func (i *Injector) Get(ctx context.Context, key Key) (any, error) {
	value, _, err := i.resolve(ctx, key, false)
	return value, err
}

// Lookup resolves key, reporting a missing binding through the boolean result rather than
// an error. Errors still surface for keys that are bound but fail to build.
func (i *Injector) Lookup(ctx context.Context, key Key) (any, bool, error) {
	return i.resolve(ctx, key, true)
}

// Has reports whether key is bound.
func (i *Injector) Has(key Key) bool {
	_, ok := (*i.table.Load())[key]
	return ok
}

// Bindings returns the registered bindings in declaration order.
func (i *Injector) Bindings() []Binding {
	regs := i.registrations()
	result := make([]Binding, len(regs))
	for idx, reg := range regs {
		result[idx] = reg.binding
	}
	return result
}

// Len returns the number of bindings.
func (i *Injector) Len() int {
	return len(*i.table.Load())
}

func (i *Injector) resolve(ctx context.Context, key Key, optional bool) (any, bool, error) {
	if i.closed.Load() {
		return nil, false, &ConfigurationError{
			Message: "injector is closed",
			Key:     key,
			Reason:  ErrClosed,
		}
	}

	reg, ok := (*i.table.Load())[key]
	if !ok {
		if optional {
			return nil, false, nil
		}
		return nil, false, &ConfigurationError{
			Message: "no binding for dependency",
			Key:     key,
			Reason:  ErrNotBound,
			Status:  i.Status(),
		}
	}

	if i.cyclicKeys()[key] {
		return nil, true, &ConfigurationError{
			Message: "cyclic dependency error resolving key",
			Key:     key,
			Reason:  ErrCircularDependency,
			Status:  i.Status(),
		}
	}
	pathCtx, err := i.enterKeyProcessing(ctx, key)
	if err != nil {
		return nil, true, err
	}

	value, err := reg.provider.Get(pathCtx)
	if err != nil {
		var cfgErr *ConfigurationError
		if errors.As(err, &cfgErr) {
			return nil, true, err
		}
		return nil, true, &ConfigurationError{
			Message:     "provider failed",
			Key:         key,
			Reason:      ErrProviderFailed,
			SourceError: err,
		}
	}
	return value, true, nil
}

func (i *Injector) registrations() []*registration {
	table := *i.table.Load()
	regs := make([]*registration, 0, len(table))
	for _, reg := range table {
		regs = append(regs, reg)
	}
	sort.Slice(regs, func(a, b int) bool {
		return regs[a].seq < regs[b].seq
	})
	return regs
}

func (i *Injector) seal() {
	i.writeMu.Lock()
	defer i.writeMu.Unlock()
	i.sealed.Store(true)
}

// Sealed reports whether the table has been frozen.
func (i *Injector) Sealed() bool {
	return i.sealed.Load()
}

func (i *Injector) shutdown(ctx context.Context, logger *zap.Logger) error {
	i.closed.Store(true)
	return i.life.shutdown(ctx, logger)
}
