package trail

import (
	"bytes"
	"fmt"
	"math"
	"strconv"

	"golang.org/x/text/unicode/norm"
)

// MarshalCanonical produces the canonical JSON encoding of a value. This is
// the only serialization used for identity and content hashing, and it is
// also the on-disk artifact encoding (see UnmarshalCanonical).
//
// Canonical form rules:
//  1. Object keys sorted by UTF-16 code units (RFC 8785 ordering).
//  2. Strings NFC-normalized; only quote, backslash and control characters
//     escaped. No HTML escaping.
//  3. Floats in shortest round-trip decimal form; NaN/Inf are errors.
//  4. A Ref encodes as {"$trail": <canonical trail object>}. "$trail" is a
//     reserved key: Map values may not use it at the top level of a map,
//     which keeps decoding unambiguous.
func MarshalCanonical(v Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeCanonical(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// refKey is the reserved object key marking an encoded dependency reference.
const refKey = "$trail"

func writeCanonical(buf *bytes.Buffer, v Value) error {
	switch val := v.(type) {
	case nil:
		return fmt.Errorf("nil Value cannot be canonicalized")
	case Null:
		buf.WriteString("null")
		return nil
	case String:
		return writeCanonicalString(buf, string(val))
	case Int:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
		return nil
	case Float:
		f := float64(val)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("non-finite float cannot be canonicalized: %v", f)
		}
		buf.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
		return nil
	case Bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
		return nil
	case List:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, elem); err != nil {
				return fmt.Errorf("list[%d]: %w", i, err)
			}
		}
		buf.WriteByte(']')
		return nil
	case Map:
		if _, clash := val[refKey]; clash {
			return fmt.Errorf("map key %q is reserved for dependency references", refKey)
		}
		buf.WriteByte('{')
		for i, k := range val.SortedKeys() {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonicalString(buf, k); err != nil {
				return fmt.Errorf("map key %q: %w", k, err)
			}
			buf.WriteByte(':')
			if err := writeCanonical(buf, val[k]); err != nil {
				return fmt.Errorf("map[%q]: %w", k, err)
			}
		}
		buf.WriteByte('}')
		return nil
	case Ref:
		buf.WriteByte('{')
		if err := writeCanonicalString(buf, refKey); err != nil {
			return err
		}
		buf.WriteByte(':')
		if err := writeCanonicalTrail(buf, val.Trail); err != nil {
			return fmt.Errorf("ref: %w", err)
		}
		buf.WriteByte('}')
		return nil
	default:
		return fmt.Errorf("unsupported Value type: %T", v)
	}
}

// writeCanonicalTrail encodes a trail as {"args":[...],"func":"...","kwargs":{...}}.
// Key order is fixed by the canonical key sort ("args" < "func" < "kwargs"),
// and kwargs is a Map, so insertion order never leaks into the encoding.
func writeCanonicalTrail(buf *bytes.Buffer, t Trail) error {
	buf.WriteString(`{"args":[`)
	for i, a := range t.Args {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeCanonical(buf, a); err != nil {
			return fmt.Errorf("args[%d]: %w", i, err)
		}
	}
	buf.WriteString(`],"func":`)
	if err := writeCanonicalString(buf, t.Func); err != nil {
		return err
	}
	buf.WriteString(`,"kwargs":`)
	if err := writeCanonical(buf, Map(t.Kwargs)); err != nil {
		return fmt.Errorf("kwargs: %w", err)
	}
	buf.WriteByte('}')
	return nil
}

// writeCanonicalString escapes s per RFC 8785: only quote, backslash and
// control characters (U+0000..U+001F) are escaped. The string is NFC
// normalized first so that visually identical inputs canonicalize alike.
func writeCanonicalString(buf *bytes.Buffer, s string) error {
	s = norm.NFC.String(s)
	buf.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\b':
			buf.WriteString(`\b`)
		case '\f':
			buf.WriteString(`\f`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		default:
			if r < 0x20 {
				fmt.Fprintf(buf, `\u%04x`, r)
			} else {
				buf.WriteRune(r)
			}
		}
	}
	buf.WriteByte('"')
	return nil
}
