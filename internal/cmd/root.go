package cmd

import (
	"github.com/spf13/cobra"
	"github.com/tagforge/tagfs/version"
)

// NewRootCmd creates and returns the root cobra command for the tagfs CLI.
// It sets up all subcommands, command groups, and basic configuration.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "tagfs",
		Short: "tagfs - A FUSE filesystem organizing content-addressed files by tags",
		Long: `tagfs is a FUSE filesystem that stores file content by digest and
organizes it under tags instead of directory paths. Identical content is
stored once; filing it under several names makes hard links that observe
each other's writes. Tags appear as top-level directories.

Use subcommands to perform different operations:
  - mount: Mount a tagfs filesystem at a specified mountpoint
  - import: Ingest an existing directory tree into a content store
  - check: Verify that every stored blob matches its digest
  - stats: Report content store statistics
  - seed: Run a randomized workload against a store`,
		Version: version.GetFullVersion(),
	}

	groupUtilities := "utilities"
	groupFilesystem := "filesystem"

	rootCmd.AddGroup(&cobra.Group{
		ID:    groupFilesystem,
		Title: "Filesystem Operations",
	})
	rootCmd.AddGroup(&cobra.Group{
		ID:    groupUtilities,
		Title: "Utility Commands",
	})

	mountCmd := NewMountCmd()
	importCmd := NewImportCmd()
	checkCmd := NewCheckCmd()
	statsCmd := NewStatsCmd()
	seedCmd := NewSeedCmd()

	mountCmd.GroupID = groupFilesystem
	importCmd.GroupID = groupUtilities
	checkCmd.GroupID = groupUtilities
	statsCmd.GroupID = groupUtilities
	seedCmd.GroupID = groupUtilities

	rootCmd.AddCommand(mountCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(seedCmd)

	return rootCmd
}
