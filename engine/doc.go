// Package engine coordinates the node graph and the content store into
// the consistent multi-step operations the filesystem boundary exposes.
//
// Every mutating operation runs as an optimistic transaction: resolve the
// nodes involved without locks, acquire all node locks in the global
// order (tags before names before files, ascending id within a kind),
// revalidate that the resolved picture still holds, then mutate. A failed
// revalidation restarts the attempt; a bounded number of restarts ends in
// ErrBusy rather than livelock.
//
// The digest index is the single point deciding content identity. Its
// mutex is the innermost lock and is never held across store I/O; the
// condemn/absolve protocol bridges the gap between unindexing a digest
// inside a transaction and deleting its blob after the locks are gone.
package engine
