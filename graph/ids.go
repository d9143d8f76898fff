package graph

// Node ids are stable for the lifetime of a node and never reused.
// They double as the tiebreaker in the engine's lock ordering, so each
// kind allocates ids from its own monotonic counter.
type (
	// FileID identifies a FileNode.
	FileID uint64

	// NameID identifies a NameNode.
	NameID uint64

	// TagID identifies a TagNode.
	TagID uint64
)
