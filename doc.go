// Package main provides the tagfs command-line interface.
//
// tagfs is a FUSE filesystem that stores file content by digest and
// organizes it under tags instead of directory paths. Identical content is
// stored exactly once, and filing it under several names creates hard
// links: a write through any name is observed through all of them, while a
// write that makes two previously linked names diverge forks them apart.
//
// The main binary supports multiple subcommands:
//   - mount: Mount a tagfs filesystem at a specified mountpoint
//   - import: Ingest an existing directory tree into a content store
//   - check: Verify that every stored blob matches its digest
//   - stats: Report content store statistics
//   - seed: Run a randomized workload against a store
package main
