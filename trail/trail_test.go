package trail

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrailIdentityCollision(t *testing.T) {
	// Two logically identical calls must produce equal trails and the same
	// cache key regardless of keyword insertion order.
	k1 := map[string]Value{"lr": Float(0.1), "epochs": Int(5)}
	k2 := map[string]Value{"epochs": Int(5), "lr": Float(0.1)}

	t1 := New("fit", []Value{String("data")}, k1)
	t2 := New("fit", []Value{String("data")}, k2)

	assert.True(t, t1.Equal(t2))
	assert.Equal(t, t1.Key(), t2.Key())

	d1, err := PathDigest(t1)
	require.NoError(t, err)
	d2, err := PathDigest(t2)
	require.NoError(t, err)
	assert.Equal(t, d1, d2, "equal trails must share a cache path")
}

func TestTrailInequality(t *testing.T) {
	base := New("fit", []Value{Int(1)}, nil)

	assert.False(t, base.Equal(New("fit2", []Value{Int(1)}, nil)))
	assert.False(t, base.Equal(New("fit", []Value{Int(2)}, nil)))
	assert.False(t, base.Equal(New("fit", []Value{Int(1)}, map[string]Value{"k": Int(1)})))
}

func TestPathDigestSuffix(t *testing.T) {
	tr := New("square", []Value{Int(3)}, nil)

	plain, err := PathDigest(tr)
	require.NoError(t, err)
	blob, err := PathDigest(tr, ".store")
	require.NoError(t, err)

	assert.NotEqual(t, plain, blob, "suffix must distinguish files of the same trail")
	assert.Equal(t, plain, KeyDigest(tr.Key()))
	assert.Equal(t, blob, KeyDigest(tr.Key(), ".store"))
}

func TestContentDigestDomainSeparation(t *testing.T) {
	data := []byte("payload")

	d1 := ContentDigest(DomainStep, data)
	d2 := ContentDigest("trailcache/other/v1", data)

	assert.NotEqual(t, d1, d2)
	assert.Len(t, d1, 64, "SHA-256 hex is 64 characters")
	assert.Equal(t, d1, ContentDigest(DomainStep, data), "digest must be deterministic")
}

func TestDepsOrdering(t *testing.T) {
	a := New("a", nil, nil)
	b := New("b", nil, nil)
	c := New("c", nil, nil)

	tr := New("combine",
		[]Value{Ref{Trail: a}, Int(7), Ref{Trail: b}},
		map[string]Value{"zeta": Ref{Trail: c}, "eta": Int(1)})

	deps := tr.Deps()
	require.Len(t, deps, 3)
	assert.Equal(t, "a", deps[0].Func)
	assert.Equal(t, "b", deps[1].Func)
	assert.Equal(t, "c", deps[2].Func)
	assert.True(t, tr.HasDeps())
}

func TestHasDepsIgnoresNestedRefs(t *testing.T) {
	// A dependency slot is a whole argument; a ref buried inside a List
	// literal is not a dependency edge.
	inner := New("a", nil, nil)
	tr := New("f", []Value{List{Ref{Trail: inner}}}, nil)

	assert.False(t, tr.HasDeps())
	assert.Empty(t, tr.Deps())
}

func TestRender(t *testing.T) {
	assert.Equal(t, "3", Render(Int(3)))
	assert.Equal(t, "2.5", Render(Float(2.5)))
	assert.Equal(t, "square", Render(Ref{Trail: New("square", []Value{Int(3)}, nil)}))
	assert.Equal(t, "[1, x]", Render(List{Int(1), String("x")}))
	assert.Equal(t, "{a: 1, b: 2}", Render(Map{"b": Int(2), "a": Int(1)}))
}
