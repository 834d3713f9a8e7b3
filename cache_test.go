package trailcache

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trailcache/trailcache/trail"
)

func TestStepIdentityCollision(t *testing.T) {
	c := newTestCache(t)

	fn := Func{
		Name:    "fit",
		Version: "1",
		Call: func(ctx context.Context, args []trail.Value, kwargs map[string]trail.Value) (trail.Value, error) {
			return trail.Int(0), nil
		},
	}

	s1 := c.Step(fn, []trail.Value{trail.String("data")}, map[string]trail.Value{"lr": trail.Float(0.1), "epochs": trail.Int(5)})
	s2 := c.Step(fn, []trail.Value{trail.String("data")}, map[string]trail.Value{"epochs": trail.Int(5), "lr": trail.Float(0.1)})

	assert.True(t, s1.Trail().Equal(s2.Trail()))
	assert.Len(t, c.graph, 1, "identical steps must collide to one graph entry")
	assert.Len(t, c.steps, 1)
}

func TestGraphAndRegistryShareKeys(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	sq := c.Step(squareFunc("1", nil), []trail.Value{trail.Int(3)}, nil)
	sum := sq.Step(addOneFunc("1", nil), nil, nil)

	_, err := sum.Checkpoint(ctx, false)
	require.NoError(t, err)

	require.Len(t, c.graph, len(c.steps))
	for key := range c.steps {
		_, ok := c.graph[key]
		assert.True(t, ok, "registry key missing from graph")
	}
}

func TestRecordAndSummary(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	result, err := c.Record(ctx, squareFunc("1", nil), []trail.Value{trail.Int(3)}, nil)
	require.NoError(t, err)
	assert.Equal(t, trail.Int(9), result)

	// Recording a chained step threads the dependency eagerly and renders
	// the Ref argument by its function name.
	sq := c.Step(squareFunc("1", nil), []trail.Value{trail.Int(3)}, nil)
	chained := sq.Step(addOneFunc("1", nil), nil, nil)
	result, err = chained.Record(ctx)
	require.NoError(t, err)
	assert.Equal(t, trail.Int(10), result)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "summary", []byte(c.Summary()))
}

func TestRecordNeverTouchesGraph(t *testing.T) {
	c := newTestCache(t)

	_, err := c.Record(context.Background(), squareFunc("1", nil), []trail.Value{trail.Int(2)}, nil)
	require.NoError(t, err)

	assert.Empty(t, c.graph)
	assert.Empty(t, c.steps)
}

func TestStoreLoadRoundTrip(t *testing.T) {
	c := newTestCache(t)
	tr := trail.New("square", []trail.Value{trail.Int(3)}, nil)

	value := trail.Map{"score": trail.Float(0.25), "labels": trail.List{trail.String("a")}}
	require.NoError(t, c.Store(tr, ArtifactSuffix, value))

	loaded, err := c.Load(tr, ArtifactSuffix)
	require.NoError(t, err)
	assert.Equal(t, value, loaded)
}

func TestLoadHashAbsent(t *testing.T) {
	c := newTestCache(t)
	tr := trail.New("never", nil, nil)

	digest, ok, err := c.LoadHash(tr)
	require.NoError(t, err)
	assert.False(t, ok, "missing manifest means never checkpointed, not an error")
	assert.Empty(t, digest)
}

func TestStoreHashOverwrites(t *testing.T) {
	c := newTestCache(t)
	tr := trail.New("square", []trail.Value{trail.Int(3)}, nil)

	require.NoError(t, c.StoreHash(tr, "aaaa"))
	require.NoError(t, c.StoreHash(tr, "bbbb"))

	digest, ok, err := c.LoadHash(tr)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "bbbb", digest)
}

func TestReset(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	sq := c.Step(squareFunc("1", nil), []trail.Value{trail.Int(3)}, nil)
	_, err := sq.Checkpoint(ctx, false)
	require.NoError(t, err)
	_, err = c.Record(ctx, addOneFunc("1", nil), []trail.Value{trail.Int(1)}, nil)
	require.NoError(t, err)

	c.Reset()
	assert.Empty(t, c.graph)
	assert.Empty(t, c.steps)
	assert.Empty(t, c.Summary())

	// Artifacts survive eviction: re-issuing the step checkpoints without
	// recomputation.
	var calls atomic.Int64
	again := c.Step(squareFunc("1", &calls), []trail.Value{trail.Int(3)}, nil)
	_, err = again.Checkpoint(ctx, false)
	require.NoError(t, err)

	result, err := again.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, trail.Int(9), result)
	assert.Zero(t, calls.Load())
}
