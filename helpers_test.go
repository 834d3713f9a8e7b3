package trailcache

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/trailcache/trailcache/trail"
)

func newTestCache(t *testing.T, opts ...Option) *Cache {
	t.Helper()
	c, err := Open(t.TempDir(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

// squareFunc squares its first argument. calls may be nil.
func squareFunc(version string, calls *atomic.Int64) Func {
	return Func{
		Name:    "square",
		Version: version,
		Call: func(ctx context.Context, args []trail.Value, kwargs map[string]trail.Value) (trail.Value, error) {
			if calls != nil {
				calls.Add(1)
			}
			x := int64(args[0].(trail.Int))
			return trail.Int(x * x), nil
		},
	}
}

// addOneFunc increments its first argument.
func addOneFunc(version string, calls *atomic.Int64) Func {
	return Func{
		Name:    "addOne",
		Version: version,
		Call: func(ctx context.Context, args []trail.Value, kwargs map[string]trail.Value) (trail.Value, error) {
			if calls != nil {
				calls.Add(1)
			}
			return trail.Int(int64(args[0].(trail.Int)) + 1), nil
		},
	}
}
