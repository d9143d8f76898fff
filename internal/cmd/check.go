package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tagforge/tagfs/store"
)

// NewCheckCmd creates and returns the check subcommand for the tagfs CLI.
// It verifies content store integrity.
func NewCheckCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "check STORE_PATH",
		Short: "Verify that every stored blob matches its digest",
		Long: `Verify content store integrity.

Every blob in the store is re-hashed and compared against the digest it
is filed under. A mismatch means on-disk corruption: the blob's content
no longer produces its address.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(args[0], verbose)
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Report every blob checked")

	return cmd
}

func runCheck(storePath string, verbose bool) error {
	if _, err := os.Stat(storePath); os.IsNotExist(err) {
		return fmt.Errorf("store directory does not exist: %s", storePath)
	}

	st, err := store.Open(store.Config{Path: storePath})
	if err != nil {
		return fmt.Errorf("opening content store: %w", err)
	}
	defer st.Close()

	var checked, corrupt int
	err = st.Each(func(d store.Digest, data []byte) error {
		checked++
		if store.DigestOf(data) != d {
			corrupt++
			fmt.Printf("CORRUPT %s (%d bytes)\n", d, len(data))
			return nil
		}
		if verbose {
			fmt.Printf("ok %s (%d bytes)\n", d.Short(), len(data))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("scanning store: %w", err)
	}

	fmt.Printf("\nCheck complete:\n")
	fmt.Printf("  Blobs checked: %d\n", checked)
	fmt.Printf("  Corrupt: %d\n", corrupt)

	if corrupt > 0 {
		os.Exit(1)
	}
	return nil
}
