// Package graph owns the node graph of the filesystem: file nodes,
// name nodes, and tag nodes, each kept in its own registry keyed by a
// stable integer id.
//
// The three kinds form a multiply-referenced graph: a file is kept alive
// by the set of names targeting it (its back-references), a name belongs
// to exactly one tag and points at exactly one file, and a tag holds the
// set of names filed under it. All cross-kind references are ids resolved
// through the owning registry, never direct pointers, which keeps the
// cyclic shape safe to reason about and to lock in a total order.
//
// Every node embeds its own read/write lock. Registries guard only their
// id maps; mutating a node's fields requires holding that node's lock,
// which the engine acquires in the global order tag, name, file,
// ascending id within a kind.
package graph
