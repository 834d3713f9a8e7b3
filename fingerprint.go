package trailcache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sync"
)

// Fingerprinter produces a stable fingerprint of a function's behavior. The
// fingerprint feeds the content hash, so changing a function's
// implementation must change its fingerprint or stale artifacts will be
// trusted forever.
//
// Go has no portable equivalent of inspecting a function's compiled body at
// runtime, so the strategy is pluggable:
//
//   - VersionFingerprint trusts an explicit Func.Version tag. Precise and
//     cheap, but the author must bump the tag on behavior changes.
//   - BinaryFingerprint digests the running executable. Fully automatic,
//     but any rebuild invalidates every cached step.
type Fingerprinter interface {
	Fingerprint(fn Func) (string, error)
}

// VersionFingerprint fingerprints a function as name@version. An empty
// version is accepted; the author is then opting out of behavior-change
// invalidation for that function.
type VersionFingerprint struct{}

func (VersionFingerprint) Fingerprint(fn Func) (string, error) {
	return fn.Name + "@" + fn.Version, nil
}

// BinaryFingerprint fingerprints a function as the digest of the running
// executable plus the function name. The executable digest is computed once
// per process.
type BinaryFingerprint struct{}

var (
	binaryDigestOnce sync.Once
	binaryDigest     string
	binaryDigestErr  error
)

func (BinaryFingerprint) Fingerprint(fn Func) (string, error) {
	binaryDigestOnce.Do(func() {
		binaryDigest, binaryDigestErr = digestExecutable()
	})
	if binaryDigestErr != nil {
		return "", fmt.Errorf("fingerprint executable: %w", binaryDigestErr)
	}
	return binaryDigest + "/" + fn.Name, nil
}

func digestExecutable() (string, error) {
	path, err := os.Executable()
	if err != nil {
		return "", err
	}
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
