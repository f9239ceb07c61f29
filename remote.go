package container

import (
	"context"
	"fmt"
	"net/url"
	"reflect"
	"sync"
)

// RemoteDialer creates a client stub of type t bound to a remote endpoint. The wire
// protocol is entirely up to the dialer.
type RemoteDialer interface {
	Dial(ctx context.Context, endpoint *url.URL, t reflect.Type) (any, error)
}

// RemoteDialerFunc adapts a function into a RemoteDialer.
type RemoteDialerFunc func(ctx context.Context, endpoint *url.URL, t reflect.Type) (any, error)

func (f RemoteDialerFunc) Dial(ctx context.Context, endpoint *url.URL, t reflect.Type) (any, error) {
	return f(ctx, endpoint, t)
}

// RemoteProvider hands out stubs bound to a remote endpoint. The endpoint string is only
// parsed on the first Get so that a bad address fails where the stub is first needed.
type RemoteProvider struct {
	typ      reflect.Type
	endpoint string
	dialer   RemoteDialer

	once     sync.Once
	url      *url.URL
	parseErr error
}

// NewRemoteProvider creates a provider of remote stubs of type t.
func NewRemoteProvider(t reflect.Type, endpoint string, dialer RemoteDialer) *RemoteProvider {
	return &RemoteProvider{
		typ:      t,
		endpoint: endpoint,
		dialer:   dialer,
	}
}

func (p *RemoteProvider) Get(ctx context.Context) (any, error) {
	p.once.Do(func() {
		u, err := url.Parse(p.endpoint)
		if err == nil && (u.Scheme == "" || u.Host == "") {
			err = fmt.Errorf("endpoint %q must be an absolute URL", p.endpoint)
		}
		if err != nil {
			p.parseErr = &ConfigurationError{
				Message:     "invalid remote endpoint",
				Key:         KeyFor(p.typ),
				Reason:      ErrProviderFailed,
				SourceError: err,
			}
			return
		}
		p.url = u
	})
	if p.parseErr != nil {
		return nil, p.parseErr
	}
	return p.dialer.Dial(ctx, p.url, p.typ)
}

// Endpoint returns the unparsed endpoint the provider was created with.
func (p *RemoteProvider) Endpoint() string {
	return p.endpoint
}
