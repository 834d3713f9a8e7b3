package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/trailcache/trailcache/internal/fsstore"
)

// GCOptions holds flags for the gc command.
type GCOptions struct {
	*RootOptions
	OlderThan time.Duration
	All       bool
	DryRun    bool
}

// NewGCCommand creates the gc command. It removes blob/manifest pairs for
// checkpointed trails whose files are older than the cutoff. Removal is
// safe: the next checkpoint of an evicted trail sees a missing manifest and
// recomputes.
func NewGCCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GCOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "gc",
		Short: "Remove cached artifacts by age",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !opts.All && opts.OlderThan <= 0 {
				return &ExitError{Code: ExitCommandError,
					Message: "either --older-than or --all is required"}
			}

			dir, err := rootOpts.ResolveDir()
			if err != nil {
				return err
			}
			entries, err := collectCheckpointed(cmd.Context(), dir)
			if err != nil {
				return err
			}
			store, err := fsstore.Open(dir)
			if err != nil {
				return err
			}
			files, err := store.Entries(ledgerFiles...)
			if err != nil {
				return err
			}
			mtimes := make(map[string]time.Time, len(files))
			for _, f := range files {
				name := f.Name
				if f.Manifest {
					name += ".hash"
				}
				mtimes[name] = f.ModTime
			}

			cutoff := time.Now().Add(-opts.OlderThan)
			removed := 0
			for _, e := range entries {
				if !e.HasHash && !e.HasBlob {
					continue
				}
				if !opts.All && newestOf(mtimes, e).After(cutoff) {
					continue
				}
				if opts.DryRun {
					fmt.Fprintf(cmd.OutOrStdout(), "would remove %s (%s, %s.hash)\n", e.Func, e.Blob, e.Manifest)
				} else {
					if err := store.Remove(e.Blob, e.Manifest); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "removed %s (%s, %s.hash)\n", e.Func, e.Blob, e.Manifest)
				}
				removed++
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d trail(s) evicted\n", removed)
			return nil
		},
	}

	cmd.Flags().DurationVar(&opts.OlderThan, "older-than", 0, "evict entries older than this duration")
	cmd.Flags().BoolVar(&opts.All, "all", false, "evict every checkpointed entry")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "report without deleting")

	return cmd
}

// newestOf returns the most recent mtime among a trail's files, so a trail
// is only evicted when all its files are past the cutoff.
func newestOf(mtimes map[string]time.Time, e checkpointed) time.Time {
	newest := mtimes[e.Blob]
	if t := mtimes[e.Manifest+".hash"]; t.After(newest) {
		newest = t
	}
	return newest
}
