package graph

import "errors"

// Sentinel errors for package graph.
// These errors can be checked with errors.Is() for specific error handling.
var (
	// ErrNotFound reports an unknown node id or tag label. Registry
	// lookups surface it unchanged to the engine and its callers.
	ErrNotFound = errors.New("node not found")

	// ErrInvalidLabel reports a malformed tag label or entry name.
	ErrInvalidLabel = errors.New("invalid label")

	// ErrNotEmpty reports an attempt to remove a tag that still has
	// members.
	ErrNotEmpty = errors.New("tag not empty")
)
