package container

import (
	"context"
	"fmt"
	"sort"
)

// Priority places a processor in the chain. Lower priorities run first, closer to the
// caller; ties keep registration order.
type Priority int

const (
	PrioritySecurity Priority = iota
	PriorityTransaction
	PriorityInterceptor
	PriorityAsynchronous
	PriorityMetrics
)

func (p Priority) String() string {
	switch p {
	case PrioritySecurity:
		return "security"
	case PriorityTransaction:
		return "transaction"
	case PriorityInterceptor:
		return "interceptor"
	case PriorityAsynchronous:
		return "asynchronous"
	case PriorityMetrics:
		return "metrics"
	}
	return fmt.Sprintf("priority(%d)", int(p))
}

// Processor is a cross-cutting behavior wrapped around managed operations.
//
// Bind is called once per operation when the operation is bound and decides whether the
// processor applies. Invoke is called for every call of an operation the processor accepted.
// It may read or rewrite the invocation, call chain.Proceed to run the rest of the chain,
// inspect or replace the result, or return without proceeding to short-circuit the call.
//
// Processors are shared by every call and must not keep per-call state in their fields.
type Processor interface {
	Priority() Priority
	Bind(op *Operation) bool
	Invoke(chain *Chain, inv *Invocation) (any, error)
}

// Invocation is one call of a managed operation as it travels down the chain. It is passed
// by reference; processors may replace the target or rewrite the arguments before
// proceeding.
type Invocation struct {
	Context   context.Context
	Operation *Operation
	Target    any
	Args      []any
}

func sortProcessors(processors []Processor) {
	sort.SliceStable(processors, func(a, b int) bool {
		return processors[a].Priority() < processors[b].Priority()
	})
}
