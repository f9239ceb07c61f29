package container

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"go.uber.org/zap"
)

// Container is the composition root. It is the single place where modules are wired into
// the Injector, where processors are bound to managed operations, and where the process
// lifecycle starts and ends.
//
// The expected flow is:
//
//	c := container.New(container.WithLogger(logger))
//	err := c.Install(appModule, remoteModule)   // registerModule
//	err = c.Use(security, tx, metrics)          // processors, in registration order
//	err = c.BindOperation(greetOp)              // once per managed operation
//	err = c.Start(ctx)                          // seals bindings, builds eager singletons
//	result, err := c.Invoke(ctx, greetOp, nil, "world")
//	err = c.Close(ctx)                          // releases everything, newest first
//
// Resolution and invocation are safe for concurrent use once Start has returned.
// Installing modules and registering processors is meant to happen from one goroutine
// before Start.
type Container struct {
	cfg      Config
	logger   *zap.Logger
	injector *Injector

	// startMu serializes Start so a second caller waits for the first to finish.
	startMu sync.Mutex

	mu         sync.Mutex
	processors []Processor
	operations []*Operation
	validators []reflect.Value
	started    bool
	closed     bool
}

// Option is a functional option for configuring a Container.
type Option func(*containerOptions)

type containerOptions struct {
	cfg      Config
	logger   *zap.Logger
	accessor ContextAccessor
}

// WithConfig sets the container configuration.
func WithConfig(cfg Config) Option {
	return func(o *containerOptions) {
		o.cfg = cfg
	}
}

// WithLogger sets the logger. Without it the container logs nothing.
func WithLogger(logger *zap.Logger) Option {
	return func(o *containerOptions) {
		o.logger = logger
	}
}

// WithContextAccessor sets how request and session scope contexts are found. The default
// reads the contexts placed with WithRequest and WithSession.
func WithContextAccessor(accessor ContextAccessor) Option {
	return func(o *containerOptions) {
		o.accessor = accessor
	}
}

// New creates an empty container.
func New(opts ...Option) *Container {
	o := containerOptions{
		cfg:      DefaultConfig(),
		logger:   zap.NewNop(),
		accessor: ambientAccessor{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Container{
		cfg:      o.cfg,
		logger:   o.logger,
		injector: NewInjector(WithAccessor(o.accessor)),
	}
}

// Injector returns the container's injector.
func (c *Container) Injector() *Injector {
	return c.injector
}

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Config returns the container's configuration.
func (c *Container) Config() Config {
	return c.cfg
}

// Install configures each module and registers its bindings in order. A binding whose key
// is already bound silently replaces the earlier one as far as the injector is concerned;
// the container logs a warning unless WarnOnOverride is off.
func (c *Container) Install(modules ...Module) error {
	for _, m := range modules {
		bindings, err := m.Configure(c.injector)
		if err != nil {
			return fmt.Errorf("configure module %T: %w", m, err)
		}
		if err := c.Register(bindings...); err != nil {
			return err
		}
	}
	return nil
}

// Register adds bindings directly, with the same override policy as Install.
func (c *Container) Register(bindings ...Binding) error {
	for _, b := range bindings {
		replaced, err := c.injector.Register(b)
		if err != nil {
			return err
		}
		if replaced && c.cfg.WarnOnOverride {
			c.logger.Warn("binding replaced by later registration",
				zap.Stringer("key", b.Key),
				zap.Stringer("scope", b.Scope))
		}
	}
	return nil
}

// Use registers processors. Operations bound afterwards consider them; operations already
// bound keep the chain they were given.
func (c *Container) Use(processors ...Processor) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("container is closed")
	}
	c.processors = append(c.processors, processors...)
	return nil
}

// BindOperation asks every registered processor whether it applies to op and stores the
// accepted ones on op, sorted by priority. This happens once per operation; binding an
// operation again is a no-op.
func (c *Container) BindOperation(op *Operation) error {
	if op == nil || op.Method == nil {
		return fmt.Errorf("operation must have a method")
	}

	c.mu.Lock()
	candidates := make([]Processor, len(c.processors))
	copy(candidates, c.processors)
	c.mu.Unlock()

	if !op.bind(candidates) {
		return nil
	}

	c.mu.Lock()
	c.operations = append(c.operations, op)
	c.mu.Unlock()

	c.logger.Debug("operation bound",
		zap.String("operation", op.FullName()),
		zap.Int("processors", len(op.processors)))
	return nil
}

// Operations returns the operations bound so far.
func (c *Container) Operations() []*Operation {
	c.mu.Lock()
	defer c.mu.Unlock()
	result := make([]*Operation, len(c.operations))
	copy(result, c.operations)
	return result
}

// Start freezes the binding table, builds every eager singleton in declaration order and
// runs the validators. The first failure is returned and the container stays unstarted.
func (c *Container) Start(ctx context.Context) error {
	c.startMu.Lock()
	defer c.startMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return fmt.Errorf("container is closed")
	}
	if c.started {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	c.injector.seal()

	if cyclic := c.injector.cyclicKeys(); len(cyclic) > 0 {
		for _, b := range c.injector.Bindings() {
			if cyclic[b.Key] {
				err := &ConfigurationError{
					Message: "binding is part of a dependency cycle",
					Key:     b.Key,
					Reason:  ErrCircularDependency,
					Status:  c.injector.Status(),
				}
				c.logger.Error("dependency cycle", zap.Stringer("key", b.Key))
				return err
			}
		}
	}

	eager := 0
	for _, b := range c.injector.Bindings() {
		if !b.Eager {
			continue
		}
		if _, err := c.injector.Get(ctx, b.Key); err != nil {
			c.logger.Error("eager singleton failed", zap.Stringer("key", b.Key), zap.Error(err))
			return err
		}
		eager++
	}

	if err := c.runValidators(ctx); err != nil {
		c.logger.Error("startup validation failed", zap.Error(err))
		return err
	}

	c.mu.Lock()
	c.started = true
	c.mu.Unlock()

	c.logger.Info("container started",
		zap.Int("bindings", c.injector.Len()),
		zap.Int("eager", eager))
	return nil
}

// Close releases every live singleton and every scope context still known to the container
// in reverse construction order. Release failures are logged and joined into the returned
// error but never stop the rest. Close is idempotent.
func (c *Container) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	if c.cfg.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.ShutdownTimeout)
		defer cancel()
	}

	err := c.injector.shutdown(ctx, c.logger)
	c.logger.Info("container closed", zap.Bool("clean", err == nil))
	return err
}

// Invoke calls a managed operation through its processor chain. If target is nil and the
// operation names a Target key, the target is resolved first. Operations that were never
// bound are bound on first use.
func (c *Container) Invoke(ctx context.Context, op *Operation, target any, args ...any) (any, error) {
	if op == nil || !op.Bound() {
		if err := c.BindOperation(op); err != nil {
			return nil, err
		}
	}
	if target == nil && !op.Target.IsZero() {
		resolved, err := c.injector.Get(ctx, op.Target)
		if err != nil {
			return nil, err
		}
		target = resolved
	}

	inv := &Invocation{
		Context:   ctx,
		Operation: op,
		Target:    target,
		Args:      args,
	}
	return newChain(op, op.processors).Proceed(inv)
}

// Go runs fn on a new goroutine with a forked thread scope: the goroutine starts with every
// thread scoped instance ctx has resolved so far and gets its own cache for the rest. The
// forked scope is released when fn returns. The returned channel is closed at that point.
func (c *Container) Go(ctx context.Context, fn func(ctx context.Context)) <-chan struct{} {
	child, release := ForkThread(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer func() {
			if err := release(); err != nil {
				c.logger.Error("thread scope release failed", zap.Error(err))
			}
		}()
		fn(child)
	}()
	return done
}

// Status describes the binding table and the bound operations.
func (c *Container) Status() string {
	status := c.injector.Status()
	for _, op := range c.Operations() {
		status += fmt.Sprintf("\n%s ->", op.FullName())
		for _, p := range op.processors {
			status += " " + p.Priority().String()
		}
		status += " terminal"
	}
	return status
}
