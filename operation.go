package container

import (
	"context"
	"reflect"
	"sync"
	"sync/atomic"
)

// Method is the terminal call of a managed operation: the real method body applied to the
// target instance with the (possibly rewritten) arguments.
type Method func(ctx context.Context, target any, args []any) (any, error)

// Operation is the read-only descriptor of a managed operation. It is assembled once by
// whatever discovers managed operations and is passed as plain data to Processor.Bind.
// The processors that accept the operation are computed once and cached on it.
type Operation struct {
	Name          string
	DeclaringType reflect.Type
	ParamTypes    []reflect.Type

	// ReturnType is nil for operations without a result.
	ReturnType reflect.Type

	// Tags are the attached markers processors use to decide whether they apply.
	Tags map[string]string

	// Target is the key of the managed instance the method runs on. When Invoke is called
	// without an explicit target, the instance is resolved through the injector.
	Target Key

	Method Method

	bindOnce   sync.Once
	bound      atomic.Bool
	processors []Processor
}

// FullName returns "Type.Name", or just the name if there is no declaring type.
func (op *Operation) FullName() string {
	if op.DeclaringType == nil {
		return op.Name
	}
	t := op.DeclaringType
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Name() + "." + op.Name
}

// Tag returns the value of a tag and whether it is present.
func (op *Operation) Tag(name string) (string, bool) {
	v, ok := op.Tags[name]
	return v, ok
}

// HasTag reports whether a tag is present.
func (op *Operation) HasTag(name string) bool {
	_, ok := op.Tags[name]
	return ok
}

// IsVoid reports whether the operation returns nothing.
func (op *Operation) IsVoid() bool {
	return op.ReturnType == nil
}

// Processors returns a copy of the processors bound to the operation, in chain order.
func (op *Operation) Processors() []Processor {
	result := make([]Processor, len(op.processors))
	copy(result, op.processors)
	return result
}

// Bound reports whether the processors have been chosen.
func (op *Operation) Bound() bool {
	return op.bound.Load()
}

// bind asks every processor whether it applies and caches the accepted ones sorted by
// priority. Only the first call has any effect; it reports whether this call did the work.
func (op *Operation) bind(candidates []Processor) bool {
	first := false
	op.bindOnce.Do(func() {
		first = true
		var accepted []Processor
		for _, p := range candidates {
			if p.Bind(op) {
				accepted = append(accepted, p)
			}
		}
		sortProcessors(accepted)
		op.processors = accepted
		op.bound.Store(true)
	})
	return first
}
