// Package trail defines the structural identity model for pipeline steps:
// the constrained Value domain steps exchange, the Trail identity of a call,
// canonical serialization, and the two digest functions built on top of it.
//
// The two digests are deliberately distinct and must stay that way:
//
//   - PathDigest derives the on-disk filename for a trail. It answers
//     "where does this step's artifact live" and never changes as long as
//     the call's name and arguments are unchanged.
//   - ContentDigest is the primitive behind content-validity hashing. It
//     answers "is the stored artifact still the product of this code and
//     these inputs" and incorporates function fingerprints and ancestry.
//
// Unifying the two silently breaks checkpointing: an implementation that
// keys files by the content hash loses the stored artifact every time the
// content hash changes, defeating staleness detection.
package trail

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// Trail is the immutable structural identity of a step: a function name, an
// ordered argument list, and an order-insensitive keyword mapping. Two
// logically identical calls produce equal Trails and therefore share one
// cache entry; that collision is the basis of memoization.
//
// Args and Kwargs values may themselves contain Ref values naming upstream
// trails. A Trail is built once per step and never mutated afterwards.
type Trail struct {
	Func   string
	Args   []Value
	Kwargs map[string]Value
}

// Key is the canonical encoding of a Trail as a string, usable as a Go map
// key. Trails themselves contain slices and maps and cannot key a map.
type Key string

// New builds a Trail. Kwargs may be nil. No validation of argument types is
// performed beyond what canonicalization enforces; any Value, including a
// nested Ref, is accepted.
func New(funcName string, args []Value, kwargs map[string]Value) Trail {
	if kwargs == nil {
		kwargs = map[string]Value{}
	}
	return Trail{Func: funcName, Args: args, Kwargs: kwargs}
}

// Canonical returns the canonical JSON encoding of the trail.
func (t Trail) Canonical() ([]byte, error) {
	var buf bytes.Buffer
	if err := writeCanonicalTrail(&buf, t); err != nil {
		return nil, fmt.Errorf("canonicalize trail %q: %w", t.Func, err)
	}
	return buf.Bytes(), nil
}

// Key returns the trail's canonical form as a map key. Panics if the trail
// cannot be canonicalized; trails built through the step API always can, so
// a failure here indicates a hand-built trail carrying an invalid value.
func (t Trail) Key() Key {
	data, err := t.Canonical()
	if err != nil {
		panic(err)
	}
	return Key(data)
}

// Equal reports structural equality: same function name, same args, same
// keyword set regardless of insertion order.
func (t Trail) Equal(other Trail) bool {
	a, err := t.Canonical()
	if err != nil {
		return false
	}
	b, err := other.Canonical()
	if err != nil {
		return false
	}
	return bytes.Equal(a, b)
}

// Deps returns the trails referenced by this trail's argument slots:
// positional refs in order, then keyword refs in canonical key order.
// Only direct dependencies are reported; refs nested inside List or Map
// literals are not walked (a dependency slot is a whole argument, not a
// fragment of one).
func (t Trail) Deps() []Trail {
	var deps []Trail
	for _, a := range t.Args {
		if ref, ok := a.(Ref); ok {
			deps = append(deps, ref.Trail)
		}
	}
	for _, k := range Map(t.Kwargs).SortedKeys() {
		if ref, ok := t.Kwargs[k].(Ref); ok {
			deps = append(deps, ref.Trail)
		}
	}
	return deps
}

// HasDeps reports whether any positional or keyword slot is a Ref.
func (t Trail) HasDeps() bool {
	for _, a := range t.Args {
		if _, ok := a.(Ref); ok {
			return true
		}
	}
	for _, v := range t.Kwargs {
		if _, ok := v.(Ref); ok {
			return true
		}
	}
	return false
}

// PathDigest computes the filename identity key for a trail, optionally
// distinguished by suffixes (an artifact blob and its hash manifest share a
// trail but not a file). The digest is xxhash64 over the canonical trail
// bytes, a NUL separator, and each suffix NUL-terminated; 16 hex characters.
//
// This digest is an identity lookup key only. It must never be derived from,
// or replaced by, the content hash.
func PathDigest(t Trail, suffix ...string) (string, error) {
	data, err := t.Canonical()
	if err != nil {
		return "", err
	}
	return KeyDigest(Key(data), suffix...), nil
}

// KeyDigest is PathDigest over an already-canonicalized trail key. Tooling
// that holds only the key (for example the audit ledger) uses this to locate
// a trail's files without reconstructing the Trail.
func KeyDigest(k Key, suffix ...string) string {
	h := xxhash.New()
	h.Write([]byte(k))
	for _, s := range suffix {
		h.Write([]byte{0x00})
		h.Write([]byte(s))
	}
	return strconv.FormatUint(h.Sum64(), 16)
}

// Digest domains for content hashing. The version suffix allows algorithm
// migration without colliding with digests written by older layouts.
const (
	DomainStep = "trailcache/step/v1"
)

// ContentDigest computes a SHA-256 hex digest over data with domain
// separation: SHA256(domain + 0x00 + data). The NUL separator prevents
// domain/data boundary ambiguity.
func ContentDigest(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}
