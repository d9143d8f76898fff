package graph

import (
	"fmt"
	"slices"
	"sync"

	"github.com/tagforge/tagfs/store"
)

// FileNode represents unique content. Its digest tracks the current bytes
// and changes across the node's lifetime; the id never does. The node is
// kept alive by namedBy, the set of NameNodes targeting it: when that set
// empties the node is unreachable and must be collected.
//
// Field accessors other than ID assume the caller holds the node lock
// (read lock for getters, write lock for setters).
type FileNode struct {
	sync.RWMutex

	id      FileID
	digest  store.Digest
	size    int64
	namedBy map[NameID]struct{}
}

// ID returns the node's stable identifier. Safe without the lock.
func (f *FileNode) ID() FileID { return f.id }

// Digest returns the current content digest.
func (f *FileNode) Digest() store.Digest { return f.digest }

// Size returns the current content size in bytes.
func (f *FileNode) Size() int64 { return f.size }

// Rehash updates the digest and size in place after a content change.
// The node's identity is unaffected.
func (f *FileNode) Rehash(d store.Digest, size int64) {
	f.digest = d
	f.size = size
}

// AddBackref records that the given name now targets this file.
func (f *FileNode) AddBackref(id NameID) {
	f.namedBy[id] = struct{}{}
}

// RemoveBackref drops a name from the back-reference set and returns the
// number of names still targeting the file. A zero return means the node
// is unreachable and due for collection.
func (f *FileNode) RemoveBackref(id NameID) int {
	delete(f.namedBy, id)
	return len(f.namedBy)
}

// NameCount returns the number of names currently targeting the file.
func (f *FileNode) NameCount() int { return len(f.namedBy) }

// Names returns the back-reference set as a sorted id slice. This is the
// fan-out list for digest changes: no tag scan is ever needed to find the
// names observing a file.
func (f *FileNode) Names() []NameID {
	ids := make([]NameID, 0, len(f.namedBy))
	for id := range f.namedBy {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// FileRegistry owns all live FileNodes.
type FileRegistry struct {
	mu    sync.RWMutex
	next  FileID
	nodes map[FileID]*FileNode
}

// NewFileRegistry returns an empty registry.
func NewFileRegistry() *FileRegistry {
	return &FileRegistry{nodes: make(map[FileID]*FileNode)}
}

// Create registers a new FileNode for content with the given digest and
// size. The node starts with no back-references; the caller is expected
// to attach a name before releasing its locks.
func (r *FileRegistry) Create(d store.Digest, size int64) *FileNode {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	f := &FileNode{
		id:      r.next,
		digest:  d,
		size:    size,
		namedBy: make(map[NameID]struct{}),
	}
	r.nodes[f.id] = f
	return f
}

// Get resolves an id to its node.
func (r *FileRegistry) Get(id FileID) (*FileNode, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: file %d", ErrNotFound, id)
	}
	return f, nil
}

// Remove deletes a collected node from the registry. The id is never
// reused.
func (r *FileRegistry) Remove(id FileID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.nodes, id)
}

// Len returns the number of live file nodes.
func (r *FileRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.nodes)
}
