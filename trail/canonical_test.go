package trail

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalKwargsOrderInsensitive(t *testing.T) {
	// Maps literally cannot preserve insertion order in Go, but the
	// canonical form must also be stable across iteration randomization.
	a := Map{"alpha": Int(1), "beta": Int(2), "gamma": String("x")}
	b := Map{"gamma": String("x"), "beta": Int(2), "alpha": Int(1)}

	ca, err := MarshalCanonical(a)
	require.NoError(t, err)
	cb, err := MarshalCanonical(b)
	require.NoError(t, err)

	assert.Equal(t, string(ca), string(cb))
	assert.Equal(t, `{"alpha":1,"beta":2,"gamma":"x"}`, string(ca))
}

func TestCanonicalNoHTMLEscaping(t *testing.T) {
	data, err := MarshalCanonical(String("<a>&b</a>"))
	require.NoError(t, err)
	assert.Equal(t, `"<a>&b</a>"`, string(data))
}

func TestCanonicalControlCharacterEscaping(t *testing.T) {
	data, err := MarshalCanonical(String("line1\nline2\ttab\x01"))
	require.NoError(t, err)
	assert.Equal(t, `"line1\nline2\ttab\u0001"`, string(data))
}

func TestCanonicalFloats(t *testing.T) {
	data, err := MarshalCanonical(Float(2.5))
	require.NoError(t, err)
	assert.Equal(t, "2.5", string(data))

	data, err = MarshalCanonical(Float(1e21))
	require.NoError(t, err)
	assert.Equal(t, "1e+21", string(data))
}

func TestCanonicalRejectsNonFiniteFloats(t *testing.T) {
	_, err := MarshalCanonical(Float(math.NaN()))
	assert.Error(t, err)

	_, err = MarshalCanonical(List{Float(math.Inf(1))})
	assert.Error(t, err)
}

func TestCanonicalRejectsReservedKey(t *testing.T) {
	_, err := MarshalCanonical(Map{"$trail": Int(1)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reserved")
}

func TestCanonicalRef(t *testing.T) {
	inner := New("square", []Value{Int(3)}, nil)
	data, err := MarshalCanonical(Ref{Trail: inner})
	require.NoError(t, err)
	assert.Equal(t, `{"$trail":{"args":[3],"func":"square","kwargs":{}}}`, string(data))
}

func TestRoundTrip(t *testing.T) {
	inner := New("square", []Value{Int(3)}, nil)
	original := Map{
		"list":  List{Int(1), Float(2.5), Bool(true), Null{}},
		"ref":   Ref{Trail: inner},
		"text":  String("héllo"),
		"big":   Int(1 << 60),
	}

	data, err := MarshalCanonical(original)
	require.NoError(t, err)

	decoded, err := UnmarshalCanonical(data)
	require.NoError(t, err)

	redata, err := MarshalCanonical(decoded)
	require.NoError(t, err)
	assert.Equal(t, string(data), string(redata), "canonical form must survive a round trip")

	m, ok := decoded.(Map)
	require.True(t, ok)
	assert.Equal(t, Int(1<<60), m["big"], "large integers must not widen to float")

	ref, ok := m["ref"].(Ref)
	require.True(t, ok)
	assert.True(t, ref.Trail.Equal(inner))
}

func TestParseKey(t *testing.T) {
	tr := New("fit", []Value{Ref{Trail: New("load", nil, nil)}, Int(10)},
		map[string]Value{"rate": Float(0.5)})

	parsed, err := ParseKey(tr.Key())
	require.NoError(t, err)
	assert.True(t, parsed.Equal(tr))
	assert.Equal(t, "fit", parsed.Func)
}

