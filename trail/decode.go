package trail

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// UnmarshalCanonical reconstructs a Value from its canonical JSON encoding.
// Round-trip is exact for the whole Value domain: integers stay Int (no
// float64 widening), {"$trail": ...} objects decode back to Ref.
func UnmarshalCanonical(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return fromJSON(raw)
}

// ParseKey decodes a trail key (the canonical trail encoding) back into a
// Trail. Tooling that reads keys out of the audit ledger uses this to
// recover function names and argument structure.
func ParseKey(k Key) (Trail, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(k)))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return Trail{}, fmt.Errorf("parse trail key: %w", err)
	}
	return trailFromJSON(raw)
}

func fromJSON(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case bool:
		return Bool(val), nil
	case string:
		return String(val), nil
	case json.Number:
		s := string(val)
		if strings.ContainsAny(s, ".eE") {
			f, err := val.Float64()
			if err != nil {
				return nil, fmt.Errorf("invalid float %q: %w", s, err)
			}
			return Float(f), nil
		}
		n, err := val.Int64()
		if err != nil {
			return nil, fmt.Errorf("integer out of int64 range: %s", s)
		}
		return Int(n), nil
	case []any:
		list := make(List, len(val))
		for i, elem := range val {
			decoded, err := fromJSON(elem)
			if err != nil {
				return nil, fmt.Errorf("list[%d]: %w", i, err)
			}
			list[i] = decoded
		}
		return list, nil
	case map[string]any:
		if inner, ok := val[refKey]; ok && len(val) == 1 {
			t, err := trailFromJSON(inner)
			if err != nil {
				return nil, fmt.Errorf("ref: %w", err)
			}
			return Ref{Trail: t}, nil
		}
		m := make(Map, len(val))
		for k, elem := range val {
			decoded, err := fromJSON(elem)
			if err != nil {
				return nil, fmt.Errorf("map[%q]: %w", k, err)
			}
			m[k] = decoded
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unsupported JSON type: %T", v)
	}
}

func trailFromJSON(v any) (Trail, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return Trail{}, fmt.Errorf("trail must be an object, got %T", v)
	}

	name, ok := obj["func"].(string)
	if !ok {
		return Trail{}, fmt.Errorf("trail missing func name")
	}

	rawArgs, ok := obj["args"].([]any)
	if !ok {
		return Trail{}, fmt.Errorf("trail %q missing args", name)
	}
	args := make([]Value, len(rawArgs))
	for i, elem := range rawArgs {
		decoded, err := fromJSON(elem)
		if err != nil {
			return Trail{}, fmt.Errorf("trail %q args[%d]: %w", name, i, err)
		}
		args[i] = decoded
	}

	rawKwargs, ok := obj["kwargs"].(map[string]any)
	if !ok {
		return Trail{}, fmt.Errorf("trail %q missing kwargs", name)
	}
	kwargs := make(map[string]Value, len(rawKwargs))
	for k, elem := range rawKwargs {
		decoded, err := fromJSON(elem)
		if err != nil {
			return Trail{}, fmt.Errorf("trail %q kwargs[%q]: %w", name, k, err)
		}
		kwargs[k] = decoded
	}

	return Trail{Func: name, Args: args, Kwargs: kwargs}, nil
}
