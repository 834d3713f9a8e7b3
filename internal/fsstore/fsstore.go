// Package fsstore persists pipeline artifacts and hash manifests as flat
// files under a single cache directory. File names are identity digests
// computed by the caller; this package knows nothing about trails or
// hashing, only about durable bytes.
//
// Layout: one file per artifact blob (named by its path digest) and one
// manifest per checkpointed trail, named <digest>.hash, holding the
// content-validity hash as plain text.
package fsstore

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Store is a handle on one cache directory.
type Store struct {
	dir string
}

// Open creates the directory if absent and returns a store over it.
// Creation failures propagate directly from the filesystem.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory %q: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the root directory of the store.
func (s *Store) Dir() string {
	return s.dir
}

// WriteBlob durably writes an artifact blob under name, overwriting any
// previous content.
func (s *Store) WriteBlob(name string, data []byte) error {
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write artifact %q: %w", name, err)
	}
	return nil
}

// ReadBlob reads an artifact blob. A missing blob is an error: blobs are
// only read after a manifest promised their existence.
func (s *Store) ReadBlob(name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return nil, fmt.Errorf("read artifact %q: %w", name, err)
	}
	return data, nil
}

// WriteHash writes the content-validity hash manifest for name,
// overwriting any previous value.
func (s *Store) WriteHash(name, digest string) error {
	path := filepath.Join(s.dir, name+".hash")
	if err := os.WriteFile(path, []byte(digest), 0o644); err != nil {
		return fmt.Errorf("write hash manifest %q: %w", name, err)
	}
	return nil
}

// ReadHash returns the stored content hash for name. A missing manifest is
// not an error; it reports ok=false and means "never checkpointed".
func (s *Store) ReadHash(name string) (digest string, ok bool, err error) {
	data, err := os.ReadFile(filepath.Join(s.dir, name + ".hash"))
	if os.IsNotExist(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read hash manifest %q: %w", name, err)
	}
	return string(data), true, nil
}

// Remove deletes the blob named blobName and the manifest named
// manifestName, ignoring files already absent.
func (s *Store) Remove(blobName, manifestName string) error {
	if err := os.Remove(filepath.Join(s.dir, blobName)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove artifact %q: %w", blobName, err)
	}
	if err := os.Remove(filepath.Join(s.dir, manifestName+".hash")); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove hash manifest %q: %w", manifestName, err)
	}
	return nil
}

// Entry describes one file in the cache directory.
type Entry struct {
	Name     string // file name without the .hash suffix for manifests
	Manifest bool   // true for <name>.hash files
	Size     int64
	ModTime  time.Time
}

// Entries lists the store's files in name order. Subdirectories and files
// that are neither blobs nor manifests (such as the ledger database) are
// skipped by the skip list.
func (s *Store) Entries(skip ...string) ([]Entry, error) {
	dirents, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list cache directory: %w", err)
	}

	skipped := make(map[string]bool, len(skip))
	for _, name := range skip {
		skipped[name] = true
	}

	var entries []Entry
	for _, de := range dirents {
		if de.IsDir() || skipped[de.Name()] {
			continue
		}
		info, err := de.Info()
		if err != nil {
			if _, ok := err.(*fs.PathError); ok {
				continue // raced with a concurrent delete
			}
			return nil, err
		}
		name := de.Name()
		manifest := strings.HasSuffix(name, ".hash")
		if manifest {
			name = strings.TrimSuffix(name, ".hash")
		}
		entries = append(entries, Entry{
			Name:     name,
			Manifest: manifest,
			Size:     info.Size(),
			ModTime:  info.ModTime(),
		})
	}
	return entries, nil
}
