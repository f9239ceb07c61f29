package processors

import (
	"context"
	"reflect"
	"sync/atomic"
	"testing"

	container "github.com/js-lib-com/tiny-container-sub006"
	"github.com/stretchr/testify/require"
)

type account struct {
	owner string
}

// countedOperation builds an operation on *account whose body counts its calls and echoes
// the first argument.
func countedOperation(name string, calls *int64, tags map[string]string) *container.Operation {
	return &container.Operation{
		Name:          name,
		DeclaringType: reflect.TypeOf(&account{}),
		ParamTypes:    []reflect.Type{reflect.TypeOf("")},
		ReturnType:    reflect.TypeOf(""),
		Tags:          tags,
		Method: func(ctx context.Context, target any, args []any) (any, error) {
			atomic.AddInt64(calls, 1)
			if len(args) == 0 {
				return "", nil
			}
			return args[0], nil
		},
	}
}

func newTestContainer(t *testing.T, processors ...container.Processor) *container.Container {
	t.Helper()
	c := container.New()
	require.NoError(t, c.Use(processors...))
	return c
}
