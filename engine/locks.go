package engine

import (
	"sort"

	"github.com/tagforge/tagfs/graph"
)

// Node kinds in global lock order. Multi-node transactions acquire tag
// locks before name locks before file locks, ascending id within a kind.
// The total order rules out cyclic waits, so acquisition can block
// without risking deadlock.
const (
	kindTag = iota
	kindName
	kindFile
)

type nodeLock interface {
	Lock()
	Unlock()
	RLock()
	RUnlock()
}

type lockRef struct {
	kind   int
	id     uint64
	node   nodeLock
	shared bool
}

func tagLock(t *graph.TagNode, shared bool) lockRef {
	return lockRef{kind: kindTag, id: uint64(t.ID()), node: t, shared: shared}
}

func nameLock(n *graph.NameNode, shared bool) lockRef {
	return lockRef{kind: kindName, id: uint64(n.ID()), node: n, shared: shared}
}

func fileLock(f *graph.FileNode, shared bool) lockRef {
	return lockRef{kind: kindFile, id: uint64(f.ID()), node: f, shared: shared}
}

// lockSet is the set of node locks one transaction attempt holds.
type lockSet []lockRef

// acquire sorts the set into the global order and takes every lock.
func (ls lockSet) acquire() {
	sort.Slice(ls, func(i, j int) bool {
		if ls[i].kind != ls[j].kind {
			return ls[i].kind < ls[j].kind
		}
		return ls[i].id < ls[j].id
	})
	for _, l := range ls {
		if l.shared {
			l.node.RLock()
		} else {
			l.node.Lock()
		}
	}
}

// release drops the locks in reverse acquisition order.
func (ls lockSet) release() {
	for i := len(ls) - 1; i >= 0; i-- {
		if ls[i].shared {
			ls[i].node.RUnlock()
		} else {
			ls[i].node.Unlock()
		}
	}
}
