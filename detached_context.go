package container

import (
	"context"
	"time"
)

// detachedContext returns values from valueContext but is never cancelled and has no
// deadline. Work handed to another goroutine keeps seeing the caller's ambient values
// (scope contexts, loggers, timing roots) without dying when the caller's request ends.
//
// The caller's cycle checker is hidden; resolutions made by the detached work start their
// own.
type detachedContext struct {
	valueContext context.Context
}

// Detach returns a context that carries the values of ctx but none of its cancellation.
func Detach(ctx context.Context) context.Context {
	return &detachedContext{valueContext: ctx}
}

func (h *detachedContext) Deadline() (deadline time.Time, ok bool) {
	return time.Time{}, false
}

func (h *detachedContext) Done() <-chan struct{} {
	return nil
}

func (h *detachedContext) Err() error {
	return nil
}

func (h *detachedContext) Value(key any) any {
	if key == cycleKey {
		return nil
	}
	return h.valueContext.Value(key)
}
