package container

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

type countingGreeter struct {
	id int64
}

func (g *countingGreeter) Greet(name string) string {
	return "Hello, " + name
}

func countingProvider(counter *int64) Provider {
	return ProviderFunc(func(ctx context.Context) (any, error) {
		id := atomic.AddInt64(counter, 1)
		// Widen the window for racing first accesses.
		time.Sleep(time.Millisecond)
		return &countingGreeter{id: id}, nil
	})
}

func TestSingleton_ConcurrentFirstAccess(t *testing.T) {
	var constructed int64
	inj := NewInjector()
	_, err := inj.Register(NewBinding(KeyOf[testGreeter](), countingProvider(&constructed), InScope(ScopeSingleton)))
	require.NoError(t, err)

	results := make([]testGreeter, 50)
	var g errgroup.Group
	g.SetLimit(10)
	for i := 0; i < 50; i++ {
		i := i
		g.Go(func() error {
			greeter, err := Resolve[testGreeter](context.Background(), inj)
			results[i] = greeter
			return err
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int64(1), atomic.LoadInt64(&constructed))
	for _, r := range results {
		assert.Same(t, results[0], r)
	}
}

func TestSingleton_FailureDoesNotPoison(t *testing.T) {
	var attempts int64
	inj := NewInjector()
	_, err := inj.Register(NewBinding(KeyOf[*testWidget](), ProviderFunc(func(ctx context.Context) (any, error) {
		if atomic.AddInt64(&attempts, 1) == 1 {
			return nil, errors.New("first attempt fails")
		}
		return &testWidget{Val: 42}, nil
	}), InScope(ScopeSingleton)))
	require.NoError(t, err)

	_, err = Resolve[*testWidget](context.Background(), inj)
	assert.Error(t, err)

	w1, err := Resolve[*testWidget](context.Background(), inj)
	require.NoError(t, err)
	w2, err := Resolve[*testWidget](context.Background(), inj)
	require.NoError(t, err)

	assert.Same(t, w1, w2)
	assert.Equal(t, int64(2), atomic.LoadInt64(&attempts))
}

func TestSingleton_ConcurrentFailuresRetryOneAtATime(t *testing.T) {
	var inFlight, maxInFlight int64
	inj := NewInjector()
	_, err := inj.Register(NewBinding(KeyOf[*testWidget](), ProviderFunc(func(ctx context.Context) (any, error) {
		n := atomic.AddInt64(&inFlight, 1)
		defer atomic.AddInt64(&inFlight, -1)
		for {
			m := atomic.LoadInt64(&maxInFlight)
			if n <= m || atomic.CompareAndSwapInt64(&maxInFlight, m, n) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		return nil, errors.New("always fails")
	}), InScope(ScopeSingleton)))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = Resolve[*testWidget](context.Background(), inj)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), atomic.LoadInt64(&maxInFlight))
}

func TestSingleton_SameProviderTwoKeys(t *testing.T) {
	var constructed int64
	shared := countingProvider(&constructed)
	inj := NewInjector()
	_, err := inj.Register(NewBinding(KeyOf[testGreeter](), shared, InScope(ScopeSingleton)))
	require.NoError(t, err)
	_, err = inj.Register(NewBinding(KeyOf[testGreeter]().Named("other"), shared, InScope(ScopeSingleton)))
	require.NoError(t, err)

	a, err := Resolve[testGreeter](context.Background(), inj)
	require.NoError(t, err)
	b, err := ResolveNamed[testGreeter](context.Background(), inj, "other")
	require.NoError(t, err)

	assert.NotSame(t, a, b)
	assert.Equal(t, int64(2), atomic.LoadInt64(&constructed))
}

func TestNoScope_AlwaysDelegates(t *testing.T) {
	var constructed int64
	inj := NewInjector()
	_, err := inj.Register(NewBinding(KeyOf[testGreeter](), countingProvider(&constructed)))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := Resolve[testGreeter](context.Background(), inj)
		require.NoError(t, err)
	}
	assert.Equal(t, int64(3), atomic.LoadInt64(&constructed))
}

func newScopedInjector(t *testing.T, scope Scope, counter *int64) *Injector {
	inj := NewInjector()
	_, err := inj.Register(NewBinding(KeyOf[testGreeter](), countingProvider(counter), InScope(scope)))
	require.NoError(t, err)
	return inj
}

func TestThreadScope_DistinctThreads(t *testing.T) {
	var constructed int64
	inj := newScopedInjector(t, ScopeThread, &constructed)

	t1, release1 := NewThread(context.Background())
	defer release1()
	t2, release2 := NewThread(context.Background())
	defer release2()

	a1, err := Resolve[testGreeter](t1, inj)
	require.NoError(t, err)
	a2, err := Resolve[testGreeter](t1, inj)
	require.NoError(t, err)
	b, err := Resolve[testGreeter](t2, inj)
	require.NoError(t, err)

	assert.Same(t, a1, a2)
	assert.NotSame(t, a1, b)
	assert.Equal(t, int64(2), atomic.LoadInt64(&constructed))
}

func TestThreadScope_ForkInheritsResolvedValues(t *testing.T) {
	var constructed int64
	inj := newScopedInjector(t, ScopeThread, &constructed)

	parent, releaseParent := NewThread(context.Background())
	defer releaseParent()
	resolved, err := Resolve[testGreeter](parent, inj)
	require.NoError(t, err)

	child, releaseChild := ForkThread(parent)
	defer releaseChild()
	inherited, err := Resolve[testGreeter](child, inj)
	require.NoError(t, err)

	assert.Same(t, resolved, inherited)
	assert.Equal(t, int64(1), atomic.LoadInt64(&constructed))
}

func TestThreadScope_ForkCapturesAtSpawn(t *testing.T) {
	var constructed int64
	inj := newScopedInjector(t, ScopeThread, &constructed)

	parent, releaseParent := NewThread(context.Background())
	defer releaseParent()
	child, releaseChild := ForkThread(parent)
	defer releaseChild()

	fromParent, err := Resolve[testGreeter](parent, inj)
	require.NoError(t, err)
	fromChild, err := Resolve[testGreeter](child, inj)
	require.NoError(t, err)

	assert.NotSame(t, fromParent, fromChild, "values resolved after the fork are not shared")
}

func TestThreadScope_ForkDoesNotReleaseInherited(t *testing.T) {
	closer := &TestCloser{}
	inj := NewInjector()
	_, err := inj.Register(NewBinding(KeyOf[*TestCloser](), Instance(closer), InScope(ScopeThread)))
	require.NoError(t, err)

	parent, releaseParent := NewThread(context.Background())
	_, err = Resolve[*TestCloser](parent, inj)
	require.NoError(t, err)

	child, releaseChild := ForkThread(parent)
	require.NoError(t, releaseChild())
	assert.False(t, closer.IsClosed())
	assert.True(t, ThreadOf(child).Released())

	require.NoError(t, releaseParent())
	assert.True(t, closer.IsClosed())
}

func TestThreadScope_NoThreadContext(t *testing.T) {
	var constructed int64
	inj := newScopedInjector(t, ScopeThread, &constructed)

	_, err := Resolve[testGreeter](context.Background(), inj)
	assert.ErrorIs(t, err, ErrNoScopeContext)
}

func TestRequestScope_SameAndDifferentContexts(t *testing.T) {
	var constructed int64
	inj := newScopedInjector(t, ScopeRequest, &constructed)

	r1 := WithRequest(context.Background(), NewScopeContext(ScopeRequest, "r1"))
	r2 := WithRequest(context.Background(), NewScopeContext(ScopeRequest, "r2"))

	a1, err := Resolve[testGreeter](r1, inj)
	require.NoError(t, err)
	a2, err := Resolve[testGreeter](r1, inj)
	require.NoError(t, err)
	b, err := Resolve[testGreeter](r2, inj)
	require.NoError(t, err)

	assert.Same(t, a1, a2)
	assert.NotSame(t, a1, b)
}

func TestRequestScope_ReleaseOnceUnderConcurrency(t *testing.T) {
	var released int64
	inj := NewInjector()
	_, err := inj.Register(NewBinding(KeyOf[*testWidget](), ProviderFunc(func(ctx context.Context) (any, error) {
		return &testWidget{}, nil
	}), InScope(ScopeRequest), WithRelease(func(any) error {
		atomic.AddInt64(&released, 1)
		return nil
	})))
	require.NoError(t, err)

	sc := NewScopeContext(ScopeRequest, "")
	ctx := WithRequest(context.Background(), sc)
	_, err = Resolve[*testWidget](ctx, inj)
	require.NoError(t, err)
	assert.Equal(t, 1, sc.Len())

	var ended int64
	sc.OnEnd(func() { atomic.AddInt64(&ended, 1) })

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, sc.Release())
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), atomic.LoadInt64(&released))
	assert.Equal(t, int64(1), atomic.LoadInt64(&ended))
	assert.Equal(t, 0, sc.Len())
	assert.True(t, sc.Released())

	_, err = Resolve[*testWidget](ctx, inj)
	assert.ErrorIs(t, err, ErrScopeReleased)
}

func TestSessionScope_NestedScopedDependencies(t *testing.T) {
	inj := NewInjector()
	_, err := inj.Register(BindConstructor[*testDatabase](inj, func() *testDatabase {
		return &testDatabase{Name: "session"}
	}, InScope(ScopeSession)))
	require.NoError(t, err)
	_, err = inj.Register(BindConstructor[*testRepo](inj, newTestRepo, InScope(ScopeSession)))
	require.NoError(t, err)

	sc := NewScopeContext(ScopeSession, "")
	ctx := WithSession(context.Background(), sc)

	repo, err := Resolve[*testRepo](ctx, inj)
	require.NoError(t, err)
	db, err := Resolve[*testDatabase](ctx, inj)
	require.NoError(t, err)

	assert.Same(t, db, repo.db)
	assert.Equal(t, 2, sc.Len())
}

func TestScopeContext_ReleaseReverseOrderAndErrors(t *testing.T) {
	var order []string
	release := func(name string, err error) func(any) error {
		return func(any) error {
			order = append(order, name)
			return err
		}
	}

	sc := NewScopeContext(ScopeRequest, "")
	_, err := sc.getOrCreate(KeyOf[int](), func() (any, error) { return 1, nil }, release("first", nil))
	require.NoError(t, err)
	_, err = sc.getOrCreate(KeyOf[string](), func() (any, error) { return "s", nil }, release("second", errors.New("bad")))
	require.NoError(t, err)
	_, err = sc.getOrCreate(KeyOf[bool](), func() (any, error) { return true, nil }, release("third", nil))
	require.NoError(t, err)

	err = sc.Release()
	assert.ErrorContains(t, err, "bad")
	assert.Equal(t, []string{"third", "second", "first"}, order)
}

func TestScopeContext_CustomAccessor(t *testing.T) {
	var constructed int64
	fixed := NewScopeContext(ScopeRequest, "fixed")
	inj := NewInjector(WithAccessor(ContextAccessorFunc(func(ctx context.Context, scope Scope) (*ScopeContext, bool) {
		return fixed, scope == ScopeRequest
	})))
	_, err := inj.Register(NewBinding(KeyOf[testGreeter](), countingProvider(&constructed), InScope(ScopeRequest)))
	require.NoError(t, err)

	a, err := Resolve[testGreeter](context.Background(), inj)
	require.NoError(t, err)
	b, err := Resolve[testGreeter](context.Background(), inj)
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.Equal(t, 1, fixed.Len())
}

func TestSingleton_CycleFromBothEndsFailsFast(t *testing.T) {
	inj := NewInjector()
	_, err := inj.Register(BindConstructor[*cycleA](inj, func(b *cycleB) *cycleA { return &cycleA{b: b} },
		InScope(ScopeSingleton)))
	require.NoError(t, err)
	_, err = inj.Register(BindConstructor[*cycleB](inj, func(a *cycleA) *cycleB { return &cycleB{a: a} },
		InScope(ScopeSingleton)))
	require.NoError(t, err)

	start := make(chan struct{})
	errs := make([]error, 2)
	var g errgroup.Group
	g.Go(func() error {
		<-start
		_, errs[0] = Resolve[*cycleA](context.Background(), inj)
		return nil
	})
	g.Go(func() error {
		<-start
		_, errs[1] = Resolve[*cycleB](context.Background(), inj)
		return nil
	})

	done := make(chan struct{})
	go func() {
		close(start)
		_ = g.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("resolving a singleton cycle from both ends did not return")
	}
	for _, err := range errs {
		assert.ErrorIs(t, err, ErrCircularDependency)
	}
}

func TestInjector_ConcurrentSiblingsShareDependency(t *testing.T) {
	type left struct{ db *testDatabase }
	type right struct{ db *testDatabase }
	type root struct {
		left  *left
		right *right
	}

	inj := NewInjector()
	_, err := inj.Register(NewBinding(KeyOf[*testDatabase](), ProviderFunc(func(ctx context.Context) (any, error) {
		time.Sleep(20 * time.Millisecond)
		return &testDatabase{Name: "shared"}, nil
	}), InScope(ScopeSingleton)))
	require.NoError(t, err)
	_, err = inj.Register(BindConstructor[*left](inj, func(db *testDatabase) *left { return &left{db: db} }))
	require.NoError(t, err)
	_, err = inj.Register(BindConstructor[*right](inj, func(db *testDatabase) *right { return &right{db: db} }))
	require.NoError(t, err)
	_, err = inj.Register(NewBinding(KeyOf[*root](), ProviderFunc(func(ctx context.Context) (any, error) {
		r := &root{}
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			r.left, err = Resolve[*left](gctx, inj)
			return err
		})
		g.Go(func() error {
			var err error
			r.right, err = Resolve[*right](gctx, inj)
			return err
		})
		return r, g.Wait()
	})))
	require.NoError(t, err)

	r, err := Resolve[*root](context.Background(), inj)
	require.NoError(t, err)
	assert.Same(t, r.left.db, r.right.db)
}

func TestNewThread_ReleaseHandle(t *testing.T) {
	inj := NewInjector()
	_, err := inj.Register(NewBinding(KeyOf[*TestCloser](), ProviderFunc(func(ctx context.Context) (any, error) {
		return &TestCloser{}, nil
	}), InScope(ScopeThread)))
	require.NoError(t, err)

	ctx, release := NewThread(context.Background())
	closer, err := Resolve[*TestCloser](ctx, inj)
	require.NoError(t, err)

	require.NoError(t, release())
	assert.True(t, closer.IsClosed())
	assert.True(t, ThreadOf(ctx).Released())
	assert.NoError(t, release())
}

func TestForkThread_WithoutParentStartsFreshThread(t *testing.T) {
	ctx, release := ForkThread(context.Background())
	require.NotNil(t, ThreadOf(ctx))
	require.NoError(t, release())
	assert.True(t, ThreadOf(ctx).Released())
}
