// Package config loads the trailcache CLI configuration file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds CLI-level settings. Flags override config values, which
// override defaults.
type Config struct {
	// Directory is the cache directory to inspect.
	Directory string `yaml:"directory"`
	// Fingerprint selects the behavior fingerprint strategy:
	// "version" (explicit tags) or "binary" (executable digest).
	Fingerprint string `yaml:"fingerprint"`
	// Ledger toggles the SQLite audit ledger.
	Ledger bool `yaml:"ledger"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Directory:   "./dc",
		Fingerprint: "version",
		Ledger:      true,
	}
}

// Load reads a YAML config file, overlaying it on the defaults. A missing
// path ("" or nonexistent file when optional) yields the defaults.
func Load(path string, optional bool) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) && optional {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config %q: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %q: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return cfg, fmt.Errorf("config %q: %w", path, err)
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Fingerprint {
	case "version", "binary":
	default:
		return fmt.Errorf("invalid fingerprint strategy %q: must be version or binary", c.Fingerprint)
	}
	if c.Directory == "" {
		return fmt.Errorf("directory must not be empty")
	}
	return nil
}
