package container

import (
	"context"
	"testing"
)

func BenchmarkResolveSingleton(b *testing.B) {
	inj := NewInjector()
	_, _ = inj.Register(BindInstance(&testWidget{42}))
	ctx := context.Background()

	for i := 0; i < b.N; i++ {
		_, _ = Resolve[*testWidget](ctx, inj)
	}
}

func BenchmarkResolveConstructor(b *testing.B) {
	inj := NewInjector()
	_, _ = inj.Register(BindInstance(&testDatabase{Name: "bench"}))
	_, _ = inj.Register(BindConstructor[*testRepo](inj, newTestRepo))
	ctx := context.Background()

	for i := 0; i < b.N; i++ {
		_, _ = Resolve[*testRepo](ctx, inj)
	}
}

func BenchmarkResolveInterfaceParallel(b *testing.B) {
	inj := NewInjector()
	_, _ = inj.Register(NewBinding(KeyOf[testGreeter](), Instance(testGreeter(englishGreeter{})), InScope(ScopeSingleton)))

	b.RunParallel(func(pb *testing.PB) {
		ctx := context.Background()
		for pb.Next() {
			_, _ = Resolve[testGreeter](ctx, inj)
		}
	})
}

func BenchmarkInvokeChain(b *testing.B) {
	var trace []string
	op := (&terminalCounter{}).operation("greet")
	c := New()
	_ = c.Use(
		&recordingProcessor{priority: PrioritySecurity, accept: true, trace: &trace, invoke: passThrough},
		&recordingProcessor{priority: PriorityMetrics, accept: true, trace: &trace, invoke: passThrough},
	)
	_ = c.BindOperation(op)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = c.Invoke(ctx, op, nil, "world")
	}
}

func passThrough(chain *Chain, inv *Invocation) (any, error) {
	return chain.Proceed(inv)
}
