package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	container "github.com/js-lib-com/tiny-container-sub006"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func newTestService(t *testing.T) (*service, http.Handler) {
	t.Helper()
	svc, err := assemble(container.DefaultConfig(), &AppConfig{Greeting: "Howdy"}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, svc.container.Start(context.Background()))
	t.Cleanup(func() {
		assert.NoError(t, svc.container.Close(context.Background()))
	})
	return svc, svc.router()
}

func get(t *testing.T, h http.Handler, path string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestGreet_CountsVisitsPerSession(t *testing.T) {
	_, h := newTestService(t)

	rec := get(t, h, "/greet/ada")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Howdy, ada! (visit 1)\n", rec.Body.String())

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)

	rec = get(t, h, "/greet/ada", cookies...)
	assert.Equal(t, "Howdy, ada! (visit 2)\n", rec.Body.String())

	rec = get(t, h, "/greet/bob")
	assert.Equal(t, "Howdy, bob! (visit 1)\n", rec.Body.String())
}

func TestGreet_ConcurrentRequestsShareSingleton(t *testing.T) {
	svc, h := newTestService(t)

	var g errgroup.Group
	for i := 0; i < 20; i++ {
		g.Go(func() error {
			rec := get(t, h, "/greet/world")
			if rec.Code != http.StatusOK {
				return assert.AnError
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	stats, ok := svc.meter.Stats("Greeter.Greet")
	require.True(t, ok)
	assert.Equal(t, int64(20), stats.Invocations)
}

func TestStatusAndStats(t *testing.T) {
	_, h := newTestService(t)
	get(t, h, "/greet/ada")

	status := get(t, h, "/status").Body.String()
	assert.Contains(t, status, "main.Greeter - singleton - constructor(*main.AppConfig) - live")
	assert.Contains(t, status, "Greeter.Greet -> security interceptor metrics terminal")

	assert.Contains(t, get(t, h, "/stats").Body.String(), "Greeter.Greet calls=1 failures=0")
}
