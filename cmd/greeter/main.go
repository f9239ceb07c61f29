// Command greeter is a small service wired with the container: a request scoped visitor
// counter, a singleton greeter, and a managed Greet operation guarded, metered and audited
// by processors. It serves HTTP behind chi with request and session scopes.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"reflect"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	container "github.com/js-lib-com/tiny-container-sub006"
	"github.com/js-lib-com/tiny-container-sub006/processors"
	"github.com/js-lib-com/tiny-container-sub006/scopehttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type Greeter interface {
	Greet(name string) string
}

type EnglishGreeter struct {
	greeting string
}

func NewEnglishGreeter(cfg *AppConfig) *EnglishGreeter {
	return &EnglishGreeter{greeting: cfg.Greeting}
}

func (g *EnglishGreeter) Greet(name string) string {
	return fmt.Sprintf("%s, %s!", g.greeting, name)
}

type AppConfig struct {
	Greeting string
	Addr     string
}

// Visits counts the greetings made within one session.
type Visits struct {
	count atomic.Int64
}

func NewVisits() *Visits {
	return &Visits{}
}

func appModule(cfg *AppConfig) container.Module {
	return container.ModuleFunc(func(inj *container.Injector) ([]container.Binding, error) {
		return []container.Binding{
			container.BindInstance(cfg),
			container.NewBinding(container.KeyOf[Greeter](),
				container.Construct[*EnglishGreeter](inj, container.ConstructorOf(NewEnglishGreeter, true)),
				container.AsEager()),
			container.BindConstructor[*Visits](inj, NewVisits, container.InScope(container.ScopeSession)),
		}, nil
	})
}

func newGreetOp() *container.Operation {
	return &container.Operation{
		Name:          "Greet",
		DeclaringType: reflect.TypeOf((*Greeter)(nil)).Elem(),
		ParamTypes:    []reflect.Type{reflect.TypeOf("")},
		ReturnType:    reflect.TypeOf(""),
		Tags: map[string]string{
			processors.TagRoles:     "visitor",
			processors.TagIntercept: "audit",
		},
		Target: container.KeyOf[Greeter](),
		Method: func(ctx context.Context, target any, args []any) (any, error) {
			name, _ := args[0].(string)
			return target.(Greeter).Greet(name), nil
		},
	}
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg := container.LoadConfig()
	logger, err := container.NewLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	app := &AppConfig{
		Greeting: os.Getenv("GREETER_GREETING"),
		Addr:     os.Getenv("GREETER_ADDR"),
	}
	if app.Greeting == "" {
		app.Greeting = "Hello"
	}
	if app.Addr == "" {
		app.Addr = ":8080"
	}

	svc, err := assemble(cfg, app, logger)
	if err != nil {
		return err
	}
	c := svc.container

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := c.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := c.Close(context.Background()); err != nil {
			logger.Error("shutdown finished with errors", zap.Error(err))
		}
	}()

	server := &http.Server{Addr: app.Addr, Handler: svc.router()}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", app.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return svc.scopes.RunSweeper(gctx, time.Minute)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// service is the assembled application: the container plus the pieces the HTTP layer
// needs direct access to.
type service struct {
	container *container.Container
	scopes    *scopehttp.Scopes
	meter     *processors.Meter
	greet     *container.Operation
}

func assemble(cfg container.Config, app *AppConfig, logger *zap.Logger) (*service, error) {
	c := container.New(container.WithConfig(cfg), container.WithLogger(logger))
	scopes := scopehttp.New(logger, scopehttp.WithSessions(30*time.Minute))
	meter := processors.NewMeter()
	async, err := processors.NewAsync(cfg.AsyncWorkers, logger)
	if err != nil {
		return nil, err
	}

	if err := c.Install(appModule(app), container.Bindings(
		container.BindInstance(scopes),
		container.BindInstance(meter),
		container.BindInstance(async),
	)); err != nil {
		return nil, err
	}
	if err := c.Use(
		processors.NewSecurity(processors.AuthorizerFunc(allowAll), logger),
		processors.NewInterceptor(map[string]processors.Hook{"audit": auditHook(logger)}),
		async,
		processors.NewMetrics(meter),
	); err != nil {
		return nil, err
	}
	greet := newGreetOp()
	if err := c.BindOperation(greet); err != nil {
		return nil, err
	}
	return &service{container: c, scopes: scopes, meter: meter, greet: greet}, nil
}

func (s *service) router() http.Handler {
	c, meter := s.container, s.meter
	r := chi.NewRouter()
	r.Use(s.scopes.Middleware)

	r.Get("/greet/{name}", func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		result, err := c.Invoke(ctx, s.greet, nil, chi.URLParam(r, "name"))
		if errors.Is(err, container.ErrAuthorizationDenied) {
			http.Error(w, err.Error(), http.StatusForbidden)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		visits, err := container.Resolve[*Visits](ctx, c.Injector())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		fmt.Fprintf(w, "%v (visit %d)\n", result, visits.count.Add(1))
	})

	r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
		for _, name := range meter.Operations() {
			s, _ := meter.Stats(name)
			fmt.Fprintf(w, "%s calls=%d failures=%d mean=%v\n", name, s.Invocations, s.Failures, s.Mean())
		}
	})

	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, c.Status())
	})
	return r
}

func allowAll(ctx context.Context, op *container.Operation, roles []string) error {
	return nil
}

func auditHook(logger *zap.Logger) processors.Hook {
	return processors.HookFuncs{
		BeforeFunc: func(inv *container.Invocation) error {
			for i, arg := range inv.Args {
				if s, ok := arg.(string); ok {
					inv.Args[i] = strings.TrimSpace(s)
				}
			}
			if inv.Args[0] == "" {
				return errors.New("name must not be empty")
			}
			logger.Info("greet requested", zap.Any("args", inv.Args))
			return nil
		},
	}
}
