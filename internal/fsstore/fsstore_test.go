package fsstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "dc")

	s, err := Open(dir)
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, dir, s.Dir())
}

func TestBlobRoundTrip(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.WriteBlob("abc123", []byte(`{"v":1}`)))

	data, err := s.ReadBlob("abc123")
	require.NoError(t, err)
	assert.Equal(t, `{"v":1}`, string(data))
}

func TestReadBlobMissing(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	_, err = s.ReadBlob("nope")
	assert.Error(t, err)
}

func TestHashAbsentIsNotAnError(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	digest, ok, err := s.ReadHash("never")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, digest)
}

func TestHashRoundTripAndOverwrite(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.WriteHash("k", "aaaa"))
	digest, ok, err := s.ReadHash("k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "aaaa", digest)

	require.NoError(t, s.WriteHash("k", "bbbb"))
	digest, _, err = s.ReadHash("k")
	require.NoError(t, err)
	assert.Equal(t, "bbbb", digest)
}

func TestEntriesAndRemove(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.WriteBlob("blob1", []byte("x")))
	require.NoError(t, s.WriteHash("man1", "cafe"))
	require.NoError(t, s.WriteBlob("skipme", []byte("y")))

	entries, err := s.Entries("skipme")
	require.NoError(t, err)
	require.Len(t, entries, 2)

	byName := map[string]Entry{}
	for _, e := range entries {
		byName[e.Name] = e
	}
	assert.False(t, byName["blob1"].Manifest)
	assert.True(t, byName["man1"].Manifest)

	require.NoError(t, s.Remove("blob1", "man1"))
	entries, err = s.Entries("skipme")
	require.NoError(t, err)
	assert.Empty(t, entries)

	// Removing again is a no-op, not an error.
	require.NoError(t, s.Remove("blob1", "man1"))
}
