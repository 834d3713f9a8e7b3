package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trailcache.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", false)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, "directory: /tmp/cache\nledger: false\n")

	cfg, err := Load(path, false)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/cache", cfg.Directory)
	assert.False(t, cfg.Ledger)
	// Unset keys keep their defaults.
	assert.Equal(t, "version", cfg.Fingerprint)
}

func TestLoadBinaryFingerprint(t *testing.T) {
	path := writeConfig(t, "fingerprint: binary\n")

	cfg, err := Load(path, false)
	require.NoError(t, err)
	assert.Equal(t, "binary", cfg.Fingerprint)
}

func TestLoadRejectsUnknownFingerprint(t *testing.T) {
	path := writeConfig(t, "fingerprint: bytecode\n")

	_, err := Load(path, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fingerprint strategy")
}

func TestLoadRejectsEmptyDirectory(t *testing.T) {
	path := writeConfig(t, "directory: \"\"\n")

	_, err := Load(path, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "directory")
}

func TestLoadMissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.yaml")

	cfg, err := Load(missing, true)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	_, err = Load(missing, false)
	require.Error(t, err)
}

func TestLoadMalformedYAML(t *testing.T) {
	path := writeConfig(t, "directory: [\n")

	_, err := Load(path, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}
