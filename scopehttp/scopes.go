// Package scopehttp makes HTTP requests and sessions the ambient contexts of the
// container's request and session scopes.
//
// Scopes.Middleware opens a request ScopeContext for every request and releases it when the
// handler returns. Sessions are tracked by cookie; each session owns a session ScopeContext
// that is released exactly once, on Invalidate, on idle expiry, or on Close.
package scopehttp

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	container "github.com/js-lib-com/tiny-container-sub006"
	"go.uber.org/zap"
)

const DefaultCookieName = "SESSIONID"

type session struct {
	sc       *container.ScopeContext
	lastSeen time.Time
}

// Scopes is the HTTP side of request and session scoping.
type Scopes struct {
	logger     *zap.Logger
	cookieName string
	idle       time.Duration
	sessions   bool
	now        func() time.Time

	mu    sync.Mutex
	table map[string]*session
}

// Option configures Scopes.
type Option func(*Scopes)

// WithSessions enables session tracking. Sessions idle for longer than idle are released by
// Sweep; zero keeps them until Invalidate or Close.
func WithSessions(idle time.Duration) Option {
	return func(s *Scopes) {
		s.sessions = true
		s.idle = idle
	}
}

// WithCookieName overrides DefaultCookieName.
func WithCookieName(name string) Option {
	return func(s *Scopes) {
		s.cookieName = name
	}
}

// New creates the scope handling for an HTTP server.
func New(logger *zap.Logger, opts ...Option) *Scopes {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scopes{
		logger:     logger,
		cookieName: DefaultCookieName,
		now:        time.Now,
		table:      map[string]*session{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Middleware wires the scopes into a handler chain. It has the standard
// func(http.Handler) http.Handler shape so it can be passed to chi's Use.
func (s *Scopes) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		request := container.NewScopeContext(container.ScopeRequest, "")
		ctx = container.WithRequest(ctx, request)
		defer func() {
			if err := request.Release(); err != nil {
				s.logger.Error("request scope release failed",
					zap.String("request", request.ID()),
					zap.Error(err))
			}
		}()

		if s.sessions {
			ctx = container.WithSession(ctx, s.acquire(w, r))
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Scopes) acquire(w http.ResponseWriter, r *http.Request) *container.ScopeContext {
	now := s.now()
	if cookie, err := r.Cookie(s.cookieName); err == nil {
		s.mu.Lock()
		if existing, ok := s.table[cookie.Value]; ok && !existing.sc.Released() {
			existing.lastSeen = now
			s.mu.Unlock()
			return existing.sc
		}
		s.mu.Unlock()
	}

	id := uuid.NewString()
	sc := container.NewScopeContext(container.ScopeSession, id)
	s.mu.Lock()
	s.table[id] = &session{sc: sc, lastSeen: now}
	s.mu.Unlock()

	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	s.logger.Debug("session opened", zap.String("session", id))
	return sc
}

// Session returns the session scope context with the given id.
func (s *Scopes) Session(id string) (*container.ScopeContext, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.table[id]
	if !ok {
		return nil, false
	}
	return existing.sc, true
}

// Len returns the number of open sessions.
func (s *Scopes) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.table)
}

// Invalidate ends a session and releases its scope context.
func (s *Scopes) Invalidate(id string) error {
	s.mu.Lock()
	existing, ok := s.table[id]
	delete(s.table, id)
	s.mu.Unlock()
	if !ok {
		return nil
	}
	s.logger.Debug("session invalidated", zap.String("session", id))
	return existing.sc.Release()
}

// Sweep releases every session idle for longer than the configured idle time and returns
// how many were released.
func (s *Scopes) Sweep() int {
	if s.idle <= 0 {
		return 0
	}
	cutoff := s.now().Add(-s.idle)

	s.mu.Lock()
	var expired []*session
	for id, existing := range s.table {
		if existing.lastSeen.Before(cutoff) {
			expired = append(expired, existing)
			delete(s.table, id)
		}
	}
	s.mu.Unlock()

	for _, existing := range expired {
		if err := existing.sc.Release(); err != nil {
			s.logger.Error("session scope release failed",
				zap.String("session", existing.sc.ID()),
				zap.Error(err))
		}
	}
	return len(expired)
}

// RunSweeper calls Sweep every interval until ctx ends.
func (s *Scopes) RunSweeper(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				s.logger.Info("expired sessions released", zap.Int("count", n))
			}
		}
	}
}

// Close releases every open session.
func (s *Scopes) Close() error {
	s.mu.Lock()
	table := s.table
	s.table = map[string]*session{}
	s.mu.Unlock()

	var errs []error
	for _, existing := range table {
		if err := existing.sc.Release(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
