package trail

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode/utf16"
)

// Value is a sealed interface over the types a pipeline step may consume or
// produce. Only Null, String, Int, Float, Bool, List, Map, and Ref
// implement it. Ref is the dependency variant: a positional or keyword slot
// holding a Ref names the output of another step rather than a literal.
type Value interface {
	value() // sealed
}

// Null represents an absent value.
type Null struct{}

func (Null) value() {}

// String is a literal string value.
type String string

func (String) value() {}

// Int is a literal integer value. Always int64.
type Int int64

func (Int) value() {}

// Float is a literal floating point value.
//
// Unlike identity-only value domains, pipeline data legitimately carries
// floats. Canonical encoding uses the shortest round-trip decimal form
// (strconv 'g', bitsize 64), which is deterministic across runs and
// platforms. NaN and infinities are rejected at canonicalization time.
type Float float64

func (Float) value() {}

// Bool is a literal boolean value.
type Bool bool

func (Bool) value() {}

// List is an ordered sequence of values.
type List []Value

func (List) value() {}

// Map is a string-keyed mapping. Canonical encoding and equality are
// insertion-order independent.
type Map map[string]Value

func (Map) value() {}

// Ref marks a dependency on the step identified by Trail. The executor
// substitutes the referenced step's result before the target runs.
type Ref struct {
	Trail Trail
}

func (Ref) value() {}

// SortedKeys returns keys in canonical order (UTF-16 code units, the RFC 8785
// object-key ordering). Note this differs from Go's native UTF-8 sort for
// strings outside the BMP.
func (m Map) SortedKeys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return compareUTF16(keys[i], keys[j]) < 0
	})
	return keys
}

func compareUTF16(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	n := len(a16)
	if len(b16) < n {
		n = len(b16)
	}
	for i := 0; i < n; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	}
	return 0
}

// Render returns the human-readable form of v, as used by audit summaries and
// pretty representations. A Ref renders as the referenced step's function
// name, mirroring how a reader thinks of the slot ("the output of square").
func Render(v Value) string {
	switch val := v.(type) {
	case nil:
		return "<nil>"
	case Null:
		return "None"
	case String:
		return string(val)
	case Int:
		return strconv.FormatInt(int64(val), 10)
	case Float:
		return strconv.FormatFloat(float64(val), 'g', -1, 64)
	case Bool:
		if val {
			return "true"
		}
		return "false"
	case List:
		parts := make([]string, len(val))
		for i, elem := range val {
			parts[i] = Render(elem)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case Map:
		parts := make([]string, 0, len(val))
		for _, k := range val.SortedKeys() {
			parts = append(parts, k+": "+Render(val[k]))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case Ref:
		return val.Trail.Func
	default:
		return fmt.Sprintf("<%T>", v)
	}
}
