package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewVerifyCommand creates the verify command. It checks the manifest
// invariant: every hash manifest must have a corresponding artifact blob. A
// blob without a (ledger-known) manifest is reported as a warning only; the
// next checkpoint will rewrite it.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check manifest/blob pairing invariants",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := rootOpts.ResolveDir()
			if err != nil {
				return err
			}
			entries, err := collectCheckpointed(cmd.Context(), dir)
			if err != nil {
				return err
			}

			violations := 0
			for _, e := range entries {
				if e.HasHash && !e.HasBlob {
					violations++
					fmt.Fprintf(cmd.OutOrStdout(),
						"BROKEN  %s: manifest %s.hash present but blob %s missing\n",
						e.Func, e.Manifest, e.Blob)
					continue
				}
				if !e.HasHash && e.HasBlob && rootOpts.Verbose {
					fmt.Fprintf(cmd.OutOrStdout(),
						"warn    %s: blob %s present without manifest (stale, will be rewritten)\n",
						e.Func, e.Blob)
				}
			}

			if violations > 0 {
				return &ExitError{
					Code:    ExitFailure,
					Message: fmt.Sprintf("%d broken manifest(s)", violations),
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok: %d checkpointed trail(s)\n", len(entries))
			return nil
		},
	}
}
