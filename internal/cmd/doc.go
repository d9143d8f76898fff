// Package cmd provides the command-line interface implementation for tagfs.
//
// This package contains all the subcommand implementations for the tagfs CLI
// tool. It uses the Cobra library for command structure and Fang for styling.
//
// The package is organized into the following commands:
//   - root: Main command coordinator and entry point
//   - mount: FUSE filesystem mounting functionality
//   - import: Directory tree ingestion into a content store
//   - check: Content store integrity verification
//   - stats: Content store statistics
//   - seed: Randomized workload generation for testing
//
// Each command is implemented as a separate file with its own constructor
// function that returns a *cobra.Command. Commands that start an engine read
// their configuration from an optional YAML file with flag overrides.
package cmd
