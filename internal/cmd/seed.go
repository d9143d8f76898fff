package cmd

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/tagforge/tagfs/engine"
	"github.com/tagforge/tagfs/graph"
	"github.com/tagforge/tagfs/store"
)

// NewSeedCmd creates and returns the seed subcommand for the tagfs CLI.
// It runs a randomized workload against a store.
func NewSeedCmd() *cobra.Command {
	var (
		storePath string
		opCount   int
		verbose   bool
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Run a randomized workload against a store",
		Long: `Run a randomized create/link/write/untag workload against a store.

Content is drawn from a small pool of UUID lines so the workload
exercises deduplication and content merges heavily: many entries share
blobs, writes frequently converge on content another entry already has.
Prints graph and store statistics when done.`,
		Run: func(cmd *cobra.Command, args []string) {
			runSeed(storePath, opCount, verbose)
		},
	}

	cmd.Flags().StringVarP(&storePath, "store", "s", "", "Path to the content store (required)")
	cmd.Flags().IntVarP(&opCount, "count", "c", 10000, "Number of operations to run")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")

	cmd.MarkFlagRequired("store")

	return cmd
}

func randInt(n int64) int64 {
	v, _ := rand.Int(rand.Reader, big.NewInt(n))
	return v.Int64()
}

func runSeed(storePath string, opCount int, verbose bool) {
	if verbose {
		fmt.Printf("Running %d operations against %s\n", opCount, storePath)
	}

	st, err := store.Open(store.Config{Path: storePath})
	if err != nil {
		fmt.Printf("Error opening store: %v\n", err)
		return
	}
	defer st.Close()

	eng, err := engine.New(engine.Config{Store: st})
	if err != nil {
		fmt.Printf("Error starting engine: %v\n", err)
		return
	}
	defer eng.Close()

	// A pool of 50 contents keeps the digest space small enough that
	// dedup hits and write merges dominate the run.
	contentPool := make([][]byte, 50)
	for i := range contentPool {
		contentPool[i] = []byte(uuid.New().String() + "\n")
	}
	tagPool := make([]string, 10)
	for i := range tagPool {
		tagPool[i] = fmt.Sprintf("batch-%02d", i)
	}

	ctx := context.Background()
	var live []graph.NameID
	var creates, links, writes, untags, failures int

	for op := 0; op < opCount; op++ {
		tag := tagPool[randInt(int64(len(tagPool)))]
		content := contentPool[randInt(int64(len(contentPool)))]

		roll := randInt(100)
		switch {
		case roll < 50 || len(live) == 0:
			name := fmt.Sprintf("%08x.txt", randInt(0xFFFFFFFF))
			id, err := eng.CreateEntry(ctx, tag, name, content)
			if err != nil {
				failures++
				continue
			}
			live = append(live, id)
			creates++

		case roll < 70:
			src := live[randInt(int64(len(live)))]
			name := fmt.Sprintf("%08x.lnk", randInt(0xFFFFFFFF))
			id, err := eng.Link(ctx, src, tag, name)
			if err != nil {
				failures++
				continue
			}
			live = append(live, id)
			links++

		case roll < 90:
			target := live[randInt(int64(len(live)))]
			if err := eng.Write(ctx, target, content); err != nil {
				failures++
				continue
			}
			writes++

		default:
			i := randInt(int64(len(live)))
			if err := eng.Untag(ctx, live[i]); err != nil {
				failures++
				continue
			}
			live[i] = live[len(live)-1]
			live = live[:len(live)-1]
			untags++
		}

		if verbose && (op+1)%1000 == 0 {
			fmt.Printf("Completed %d/%d operations...\n", op+1, opCount)
		}
	}

	stats := eng.Stat()
	blobCount, blobBytes, err := st.Stats()
	if err != nil {
		fmt.Printf("Error reading store stats: %v\n", err)
		return
	}

	fmt.Printf("\nWorkload complete:\n")
	fmt.Printf("  Creates: %d  Links: %d  Writes: %d  Untags: %d  Failures: %d\n",
		creates, links, writes, untags, failures)
	fmt.Printf("  Live files: %d  Names: %d  Tags: %d\n", stats.Files, stats.Names, stats.Tags)
	fmt.Printf("  Stored blobs: %d (%d bytes)\n", blobCount, blobBytes)
	if stats.Names > 0 && stats.Files > 0 {
		fmt.Printf("  Names per file: %.2f\n", float64(stats.Names)/float64(stats.Files))
	}
}
