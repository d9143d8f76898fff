package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tagforge/tagfs/store"
)

// NewStatsCmd creates and returns the stats subcommand for the tagfs CLI.
// It reports content store statistics.
func NewStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats STORE_PATH",
		Short: "Report content store statistics",
		Long: `Report statistics about a content store.

Counts the stored blobs and their total size. Because content is
deduplicated, the blob count is the number of distinct contents, not
the number of filesystem entries that referenced them.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(args[0])
		},
	}

	return cmd
}

func runStats(storePath string) error {
	st, err := store.Open(store.Config{Path: storePath})
	if err != nil {
		return fmt.Errorf("opening content store: %w", err)
	}
	defer st.Close()

	count, bytes, err := st.Stats()
	if err != nil {
		return fmt.Errorf("scanning store: %w", err)
	}

	fmt.Printf("Distinct blobs: %d\n", count)
	fmt.Printf("Total bytes: %d\n", bytes)
	if count > 0 {
		fmt.Printf("Mean blob size: %d\n", bytes/int64(count))
	}
	return nil
}
