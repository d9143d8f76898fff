package graph

import (
	"fmt"
	"slices"
	"sync"
)

// TagNode is a classification bucket, the directory abstraction of the
// filesystem. Its label is unique as a lookup key; its members are the
// NameNode ids currently filed under it. A tag never references files
// directly, membership is always mediated by a name.
//
// Member accessors assume the caller holds the node lock.
type TagNode struct {
	sync.RWMutex

	id      TagID
	label   string
	members map[NameID]struct{}
}

// ID returns the node's stable identifier. Safe without the lock.
func (t *TagNode) ID() TagID { return t.id }

// Label returns the tag string. Immutable, safe without the lock.
func (t *TagNode) Label() string { return t.label }

// AddMember files a name under the tag.
func (t *TagNode) AddMember(id NameID) {
	t.members[id] = struct{}{}
}

// RemoveMember drops a name from the tag and returns the number of
// members remaining. A zero return makes the tag subject to the engine's
// empty-tag retention policy.
func (t *TagNode) RemoveMember(id NameID) int {
	delete(t.members, id)
	return len(t.members)
}

// MemberCount returns the number of names filed under the tag.
func (t *TagNode) MemberCount() int { return len(t.members) }

// Members returns a sorted snapshot of the member id set. The snapshot is
// what listing iterates, so mutations after the copy are not reflected in
// an in-flight listing.
func (t *TagNode) Members() []NameID {
	ids := make([]NameID, 0, len(t.members))
	for id := range t.members {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// TagIndex owns all live TagNodes and the label lookup over them.
type TagIndex struct {
	mu      sync.RWMutex
	next    TagID
	nodes   map[TagID]*TagNode
	byLabel map[string]*TagNode
}

// NewTagIndex returns an empty index.
func NewTagIndex() *TagIndex {
	return &TagIndex{
		nodes:   make(map[TagID]*TagNode),
		byLabel: make(map[string]*TagNode),
	}
}

// GetOrCreate resolves a label to its tag, creating the tag on first use.
func (x *TagIndex) GetOrCreate(label string) (*TagNode, error) {
	if err := ValidateLabel(label); err != nil {
		return nil, err
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	if t, ok := x.byLabel[label]; ok {
		return t, nil
	}
	x.next++
	t := &TagNode{
		id:      x.next,
		label:   label,
		members: make(map[NameID]struct{}),
	}
	x.nodes[t.id] = t
	x.byLabel[label] = t
	return t, nil
}

// Lookup resolves a label to its tag.
func (x *TagIndex) Lookup(label string) (*TagNode, error) {
	if err := ValidateLabel(label); err != nil {
		return nil, err
	}
	x.mu.RLock()
	defer x.mu.RUnlock()
	t, ok := x.byLabel[label]
	if !ok {
		return nil, fmt.Errorf("%w: tag %q", ErrNotFound, label)
	}
	return t, nil
}

// Get resolves an id to its node.
func (x *TagIndex) Get(id TagID) (*TagNode, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	t, ok := x.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: tag %d", ErrNotFound, id)
	}
	return t, nil
}

// Remove deletes a tag from the index and its label lookup. The caller
// has already emptied or cascaded the member set.
func (x *TagIndex) Remove(id TagID) {
	x.mu.Lock()
	defer x.mu.Unlock()
	t, ok := x.nodes[id]
	if !ok {
		return
	}
	delete(x.nodes, id)
	delete(x.byLabel, t.label)
}

// Labels returns all known tag labels, sorted.
func (x *TagIndex) Labels() []string {
	x.mu.RLock()
	defer x.mu.RUnlock()
	labels := make([]string, 0, len(x.byLabel))
	for l := range x.byLabel {
		labels = append(labels, l)
	}
	slices.Sort(labels)
	return labels
}

// Len returns the number of live tags.
func (x *TagIndex) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.nodes)
}
