package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/trailcache/trailcache/internal/ledger"
	"github.com/trailcache/trailcache/trail"
)

// LogOptions holds flags for the log command.
type LogOptions struct {
	*RootOptions
	Session string
}

// NewLogCommand creates the log command, rendering the audit ledger:
// sessions, their recorded calls and their checkpoint events.
func NewLogCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LogOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show the audit ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := rootOpts.ResolveDir()
			if err != nil {
				return err
			}
			ledgerPath := filepath.Join(dir, ledger.FileName)
			if _, err := os.Stat(ledgerPath); err != nil {
				return &ExitError{Code: ExitCommandError, Message: "no audit ledger in cache directory", Err: err}
			}
			led, err := ledger.OpenReadOnly(ledgerPath)
			if err != nil {
				return err
			}
			defer led.Close()

			ctx := cmd.Context()
			sessions, err := led.Sessions(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, s := range sessions {
				if opts.Session != "" && s.ID != opts.Session {
					continue
				}
				fmt.Fprintf(out, "session %s (%s)\n", s.ID, s.StartedAt)

				records, err := led.Records(ctx, s.ID)
				if err != nil {
					return err
				}
				for _, r := range records {
					fmt.Fprintf(out, "  [%d] record %s(%s) = %s\n", r.Seq, r.Name, r.Args, r.Result)
				}

				cps, err := led.Checkpoints(ctx, s.ID)
				if err != nil {
					return err
				}
				for _, cp := range cps {
					action := "validated"
					if cp.Recomputed {
						action = "recomputed"
					}
					name := cp.TrailKey
					if t, err := trail.ParseKey(trail.Key(cp.TrailKey)); err == nil {
						name = t.Func
					}
					fmt.Fprintf(out, "  [%d] checkpoint %s %s hash=%s\n", cp.Seq, name, action, shorten(cp.ContentHash))
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Session, "session", "", "limit output to one session id")
	return cmd
}
