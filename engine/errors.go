package engine

import "errors"

// Sentinel errors for package engine. Registry and store errors
// (graph.ErrNotFound, graph.ErrInvalidLabel, store.ErrOutOfSpace)
// propagate through the engine unchanged; these two kinds originate here.
var (
	// ErrBusy reports that a transaction kept losing validation races and
	// exhausted its retry budget. Transient: the caller may retry the
	// whole operation from scratch.
	ErrBusy = errors.New("engine busy")

	// ErrUnreachable reports an internal invariant violation: a file node
	// with an empty back-reference set was reached through a live name,
	// or a live digest has no stored content. Always a bug, never
	// silently repaired.
	ErrUnreachable = errors.New("graph invariant violated")
)

// errRestart aborts the current transaction attempt and re-runs it from
// the resolution step. Never surfaced to callers.
var errRestart = errors.New("transaction restart")
