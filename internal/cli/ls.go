package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/trailcache/trailcache"
	"github.com/trailcache/trailcache/internal/fsstore"
	"github.com/trailcache/trailcache/internal/ledger"
	"github.com/trailcache/trailcache/trail"
)

// ledgerFiles are cache-directory files that are not blobs or manifests.
var ledgerFiles = []string{
	ledger.FileName,
	ledger.FileName + "-wal",
	ledger.FileName + "-shm",
}

// checkpointed describes one checkpointed trail's on-disk state.
type checkpointed struct {
	Func     string
	Manifest string // manifest file digest
	Blob     string // blob file digest
	HasHash  bool
	HasBlob  bool
	Hash     string // stored content hash, when present
}

// NewLsCommand creates the ls command.
func NewLsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ls",
		Short: "List checkpointed trails and their files",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := rootOpts.ResolveDir()
			if err != nil {
				return err
			}
			entries, err := collectCheckpointed(cmd.Context(), dir)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 2, 4, 2, ' ', 0)
			fmt.Fprintln(w, "FUNC\tMANIFEST\tBLOB\tHASH")
			for _, e := range entries {
				hash := "-"
				if e.HasHash {
					hash = shorten(e.Hash)
				}
				blob := e.Blob
				if !e.HasBlob {
					blob = "missing"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.Func, e.Manifest, blob, hash)
			}
			return w.Flush()
		},
	}
}

func shorten(digest string) string {
	if len(digest) > 12 {
		return digest[:12]
	}
	return digest
}

// collectCheckpointed joins the ledger's trail keys against the files on
// disk. The pairing has to come from the ledger: a trail's blob and
// manifest digests are independent and not derivable from each other.
func collectCheckpointed(ctx context.Context, dir string) ([]checkpointed, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, &ExitError{Code: ExitCommandError, Message: "cache directory not found", Err: err}
	}

	ledgerPath := filepath.Join(dir, ledger.FileName)
	if _, err := os.Stat(ledgerPath); err != nil {
		return nil, &ExitError{Code: ExitCommandError,
			Message: "no audit ledger in cache directory (was the cache opened with WithoutLedger?)", Err: err}
	}
	led, err := ledger.OpenReadOnly(ledgerPath)
	if err != nil {
		return nil, err
	}
	defer led.Close()

	keys, err := led.TrailKeys(ctx)
	if err != nil {
		return nil, err
	}

	store, err := fsstore.Open(dir)
	if err != nil {
		return nil, err
	}
	files, err := store.Entries(ledgerFiles...)
	if err != nil {
		return nil, err
	}
	blobs := map[string]bool{}
	manifests := map[string]bool{}
	for _, f := range files {
		if f.Manifest {
			manifests[f.Name] = true
		} else {
			blobs[f.Name] = true
		}
	}

	var out []checkpointed
	for _, key := range keys {
		t, err := trail.ParseKey(trail.Key(key))
		if err != nil {
			return nil, fmt.Errorf("ledger holds invalid trail key: %w", err)
		}
		manifest := trail.KeyDigest(trail.Key(key))
		blob := trail.KeyDigest(trail.Key(key), trailcache.ArtifactSuffix)

		e := checkpointed{
			Func:     t.Func,
			Manifest: manifest,
			Blob:     blob,
			HasHash:  manifests[manifest],
			HasBlob:  blobs[blob],
		}
		if e.HasHash {
			hash, ok, err := store.ReadHash(manifest)
			if err != nil {
				return nil, err
			}
			e.HasHash = ok
			e.Hash = hash
		}
		out = append(out, e)
	}
	return out, nil
}
