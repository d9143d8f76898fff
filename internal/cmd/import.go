package cmd

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tagforge/tagfs/engine"
	"github.com/tagforge/tagfs/store"
)

// NewImportCmd creates and returns the import subcommand for the tagfs CLI.
// It ingests an existing directory tree into a content store.
func NewImportCmd() *cobra.Command {
	var (
		tagOverride string
		verbose     bool
	)

	cmd := &cobra.Command{
		Use:   "import SRC_DIR STORE_PATH",
		Short: "Ingest a directory tree into a content store",
		Long: `Ingest an existing directory tree into a content store.

Each file is stored by digest; files under the same top-level directory
are filed under a tag of that name, files at the root under the source
directory's name. Identical content anywhere in the tree is stored once,
and the summary reports how much the deduplication saved.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(args[0], args[1], tagOverride, verbose)
		},
	}

	cmd.Flags().StringVarP(&tagOverride, "tag", "t", "", "File everything under this tag instead of per-directory tags")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Report every file imported")

	return cmd
}

func runImport(srcDir, storePath, tagOverride string, verbose bool) error {
	info, err := os.Stat(srcDir)
	if err != nil {
		return fmt.Errorf("source directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("source is not a directory: %s", srcDir)
	}

	st, err := store.Open(store.Config{Path: storePath})
	if err != nil {
		return fmt.Errorf("opening content store: %w", err)
	}
	defer st.Close()

	eng, err := engine.New(engine.Config{Store: st})
	if err != nil {
		return fmt.Errorf("starting engine: %w", err)
	}
	defer eng.Close()

	ctx := context.Background()
	defaultTag := filepath.Base(filepath.Clean(srcDir))
	var imported int
	var inputBytes int64

	err = filepath.WalkDir(srcDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}

		tag := tagOverride
		name := rel
		if tag == "" {
			if i := strings.IndexRune(rel, filepath.Separator); i >= 0 {
				tag, name = rel[:i], rel[i+1:]
			} else {
				tag = defaultTag
			}
		}
		// Path separators are reserved in labels.
		name = strings.ReplaceAll(name, string(filepath.Separator), "_")

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		if _, err := eng.CreateEntry(ctx, tag, name, data); err != nil {
			return fmt.Errorf("importing %s: %w", path, err)
		}

		imported++
		inputBytes += int64(len(data))
		if verbose {
			fmt.Printf("imported %s -> %s/%s\n", rel, tag, name)
		}
		return nil
	})
	if err != nil {
		return err
	}

	stats := eng.Stat()
	blobCount, blobBytes, err := st.Stats()
	if err != nil {
		return fmt.Errorf("reading store stats: %w", err)
	}

	fmt.Printf("\nImport complete:\n")
	fmt.Printf("  Files imported: %d (%d bytes)\n", imported, inputBytes)
	fmt.Printf("  Tags: %d\n", stats.Tags)
	fmt.Printf("  Distinct blobs: %d (%d bytes)\n", blobCount, blobBytes)
	if inputBytes > 0 {
		saved := inputBytes - blobBytes
		fmt.Printf("  Deduplication saved: %d bytes (%.1f%%)\n",
			saved, 100*float64(saved)/float64(inputBytes))
	}
	return nil
}
