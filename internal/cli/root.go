// Package cli implements the trailcache inspection commands. The CLI never
// runs pipelines; it reads a cache directory (artifact blobs, hash
// manifests, the audit ledger) and reports on it.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/trailcache/trailcache/internal/config"
)

// RootOptions holds global flags shared by all commands.
type RootOptions struct {
	ConfigPath string
	Directory  string // overrides the config file when set
	Verbose    bool
}

// ResolveDir loads the config file and applies the --dir override.
func (o *RootOptions) ResolveDir() (string, error) {
	cfg, err := config.Load(o.ConfigPath, o.ConfigPath == defaultConfigPath)
	if err != nil {
		return "", err
	}
	if o.Directory != "" {
		return o.Directory, nil
	}
	return cfg.Directory, nil
}

const defaultConfigPath = ".trailcache.yaml"

// NewRootCommand creates the root command for the trailcache CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "trailcache",
		Short: "Inspect a trailcache artifact directory",
		Long: `trailcache inspects the on-disk state of a pipeline cache:
artifact blobs, hash manifests and the audit ledger.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", defaultConfigPath, "config file")
	cmd.PersistentFlags().StringVar(&opts.Directory, "dir", "", "cache directory (overrides config)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(NewLsCommand(opts))
	cmd.AddCommand(NewVerifyCommand(opts))
	cmd.AddCommand(NewGCCommand(opts))
	cmd.AddCommand(NewLogCommand(opts))

	return cmd
}
