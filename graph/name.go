package graph

import (
	"fmt"
	"sync"
)

// NameNode is one (tag, name) binding to a file. Names are the unit that
// makes labels non-unique and links first-class: any number of NameNodes,
// in the same tag or different tags, with the same label text or not, may
// target the same file.
//
// The owning tag is fixed at creation; the label changes on rename and
// the target changes when a write merges the name onto an existing file.
// Accessors other than ID and OwnerTag assume the caller holds the node
// lock.
type NameNode struct {
	sync.RWMutex

	id     NameID
	owner  TagID
	label  string
	target FileID
}

// ID returns the node's stable identifier. Safe without the lock.
func (n *NameNode) ID() NameID { return n.id }

// OwnerTag returns the tag this name is filed under. Immutable after
// creation, safe without the lock.
func (n *NameNode) OwnerTag() TagID { return n.owner }

// Label returns the name string.
func (n *NameNode) Label() string { return n.label }

// SetLabel renames the node. O(1); the target file and its digest are
// untouched.
func (n *NameNode) SetLabel(label string) { n.label = label }

// Target returns the file this name points at.
func (n *NameNode) Target() FileID { return n.target }

// SetTarget repoints the name at another file. Used by the dedup merge
// path of write.
func (n *NameNode) SetTarget(id FileID) { n.target = id }

// NameRegistry owns all live NameNodes.
type NameRegistry struct {
	mu    sync.RWMutex
	next  NameID
	nodes map[NameID]*NameNode
}

// NewNameRegistry returns an empty registry.
func NewNameRegistry() *NameRegistry {
	return &NameRegistry{nodes: make(map[NameID]*NameNode)}
}

// Create registers a new NameNode. The caller is responsible for the
// matching tag membership and file back-reference updates.
func (r *NameRegistry) Create(label string, owner TagID, target FileID) *NameNode {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	n := &NameNode{
		id:     r.next,
		owner:  owner,
		label:  label,
		target: target,
	}
	r.nodes[n.id] = n
	return n
}

// Get resolves an id to its node.
func (r *NameRegistry) Get(id NameID) (*NameNode, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: name %d", ErrNotFound, id)
	}
	return n, nil
}

// Remove deletes a node from the registry. The id is never reused.
func (r *NameRegistry) Remove(id NameID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.nodes, id)
}

// Len returns the number of live name nodes.
func (r *NameRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.nodes)
}
