package container

type chainState int

const (
	chainFresh chainState = iota
	chainAdvancing
	chainTerminated
)

// Chain is the per-call sequence of bound processors followed by the terminal method call.
// It is created for one invocation and never reused.
//
// The chain only moves forward. Each Proceed runs the next link; once any link returns the
// chain is terminated and a further Proceed panics. Calling Proceed past the terminal call
// panics with ErrChainExhausted, calling it after a short-circuit or after Detach panics with
// ErrChainTerminated. Both mean a processor is broken, so they are not reported as errors.
type Chain struct {
	op     *Operation
	links  []Processor
	cursor int
	state  chainState
}

func newChain(op *Operation, links []Processor) *Chain {
	return &Chain{
		op:    op,
		links: links,
	}
}

// Proceed runs the next link of the chain and returns its result. The cursor is moved
// before the link is entered so the link's own Proceed reaches the link after it.
func (c *Chain) Proceed(inv *Invocation) (any, error) {
	if c.cursor > len(c.links) {
		panic(ErrChainExhausted)
	}
	if c.state == chainTerminated {
		panic(ErrChainTerminated)
	}

	pos := c.cursor
	c.cursor++
	c.state = chainAdvancing
	defer func() {
		c.state = chainTerminated
	}()

	if pos == len(c.links) {
		return c.op.Method(inv.Context, inv.Target, inv.Args)
	}
	return c.links[pos].Invoke(c, inv)
}

// Detach hands the remainder of the chain to a new owner, typically a worker goroutine. The
// returned chain continues with the link after the current one; this chain is terminated.
func (c *Chain) Detach() *Chain {
	if c.state == chainTerminated || c.cursor > len(c.links) {
		panic(ErrChainTerminated)
	}
	rest := &Chain{
		op:     c.op,
		links:  c.links,
		cursor: c.cursor,
	}
	c.state = chainTerminated
	return rest
}

// Operation returns the operation the chain was built for.
func (c *Chain) Operation() *Operation {
	return c.op
}

// Remaining returns the number of links not yet entered, counting the terminal call.
func (c *Chain) Remaining() int {
	if c.cursor > len(c.links) {
		return 0
	}
	return len(c.links) + 1 - c.cursor
}

// Terminated reports whether the chain has finished or been handed off.
func (c *Chain) Terminated() bool {
	return c.state == chainTerminated
}
