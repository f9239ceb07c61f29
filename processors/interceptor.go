package processors

import (
	"errors"

	container "github.com/js-lib-com/tiny-container-sub006"
)

// Hook is user code run around an operation by the Interceptor.
type Hook interface {
	// Before runs ahead of the rest of the chain and may rewrite inv.Args. An error
	// aborts the call.
	Before(inv *container.Invocation) error

	// After sees the outcome of the rest of the chain and may replace either part.
	After(inv *container.Invocation, result any, err error) (any, error)
}

// HookFuncs builds a Hook from optional functions.
type HookFuncs struct {
	BeforeFunc func(inv *container.Invocation) error
	AfterFunc  func(inv *container.Invocation, result any, err error) (any, error)
}

func (h HookFuncs) Before(inv *container.Invocation) error {
	if h.BeforeFunc == nil {
		return nil
	}
	return h.BeforeFunc(inv)
}

func (h HookFuncs) After(inv *container.Invocation, result any, err error) (any, error) {
	if h.AfterFunc == nil {
		return result, err
	}
	return h.AfterFunc(inv, result, err)
}

// Interceptor runs the hook named by an operation's TagIntercept value. Failures leaving
// the interceptor are wrapped in *container.InvocationError unless they already are one, so
// callers can always unwrap down to the original cause.
type Interceptor struct {
	hooks map[string]Hook
}

// NewInterceptor creates an interceptor with the given named hooks.
func NewInterceptor(hooks map[string]Hook) *Interceptor {
	return &Interceptor{hooks: hooks}
}

func (i *Interceptor) Priority() container.Priority {
	return container.PriorityInterceptor
}

func (i *Interceptor) Bind(op *container.Operation) bool {
	name, ok := op.Tag(TagIntercept)
	if !ok {
		return false
	}
	_, ok = i.hooks[name]
	return ok
}

func (i *Interceptor) Invoke(chain *container.Chain, inv *container.Invocation) (any, error) {
	hook := i.hooks[inv.Operation.Tags[TagIntercept]]

	if err := hook.Before(inv); err != nil {
		return nil, wrapInvocation(inv.Operation, err)
	}
	result, err := chain.Proceed(inv)
	result, err = hook.After(inv, result, err)
	if err != nil {
		return nil, wrapInvocation(inv.Operation, err)
	}
	return result, nil
}

func wrapInvocation(op *container.Operation, err error) error {
	var invErr *container.InvocationError
	if errors.As(err, &invErr) {
		return err
	}
	return &container.InvocationError{Operation: op.FullName(), Cause: err}
}
