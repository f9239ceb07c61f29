package processors

import (
	"context"
	"fmt"
	"strings"

	container "github.com/js-lib-com/tiny-container-sub006"
	"go.uber.org/zap"
)

// Authorizer decides whether the caller behind ctx may run op. A nil error grants access.
type Authorizer interface {
	Authorize(ctx context.Context, op *container.Operation, roles []string) error
}

// AuthorizerFunc adapts a function into an Authorizer.
type AuthorizerFunc func(ctx context.Context, op *container.Operation, roles []string) error

func (f AuthorizerFunc) Authorize(ctx context.Context, op *container.Operation, roles []string) error {
	return f(ctx, op, roles)
}

// DeniedError is returned when the Authorizer refuses a call. It matches
// container.ErrAuthorizationDenied with errors.Is and keeps the authorizer's reason.
type DeniedError struct {
	Operation string
	Roles     []string
	Reason    error
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("%v: %s requires %v: %v", container.ErrAuthorizationDenied, e.Operation, e.Roles, e.Reason)
}

func (e *DeniedError) Unwrap() []error {
	return []error{container.ErrAuthorizationDenied, e.Reason}
}

// Security guards operations tagged with TagRoles. A denied call never proceeds down the
// chain, so neither later processors nor the method body run.
type Security struct {
	authorizer Authorizer
	logger     *zap.Logger
}

// NewSecurity creates a security processor.
func NewSecurity(authorizer Authorizer, logger *zap.Logger) *Security {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Security{authorizer: authorizer, logger: logger}
}

func (s *Security) Priority() container.Priority {
	return container.PrioritySecurity
}

func (s *Security) Bind(op *container.Operation) bool {
	return op.HasTag(TagRoles)
}

func (s *Security) Invoke(chain *container.Chain, inv *container.Invocation) (any, error) {
	roles := parseRoles(inv.Operation.Tags[TagRoles])
	if err := s.authorizer.Authorize(inv.Context, inv.Operation, roles); err != nil {
		s.logger.Warn("access denied",
			zap.String("operation", inv.Operation.FullName()),
			zap.Strings("roles", roles),
			zap.Error(err))
		return nil, &DeniedError{
			Operation: inv.Operation.FullName(),
			Roles:     roles,
			Reason:    err,
		}
	}
	return chain.Proceed(inv)
}

func parseRoles(tag string) []string {
	var roles []string
	for _, r := range strings.Split(tag, ",") {
		if r = strings.TrimSpace(r); r != "" {
			roles = append(roles, r)
		}
	}
	return roles
}
