package engine

import (
	"sync"

	"github.com/tagforge/tagfs/graph"
	"github.com/tagforge/tagfs/store"
)

// digestIndex is the global digest-to-file mapping used for dedup. Its
// lock is the innermost in the engine's ordering: it is held only for a
// lookup, insert, or remove, never across a content store call.
//
// A digest being collected lives in the condemned set from the moment
// its index entry is dropped until its blob deletion completes. Claimers
// that hit a condemned digest restart their transaction instead of
// indexing a digest whose content is about to disappear.
type digestIndex struct {
	mu        sync.Mutex
	byDigest  map[store.Digest]graph.FileID
	condemned map[store.Digest]struct{}
}

func newDigestIndex() *digestIndex {
	return &digestIndex{
		byDigest:  make(map[store.Digest]graph.FileID),
		condemned: make(map[store.Digest]struct{}),
	}
}

func (x *digestIndex) lookup(d store.Digest) (graph.FileID, bool) {
	x.mu.Lock()
	defer x.mu.Unlock()
	id, ok := x.byDigest[d]
	return id, ok
}

// claim indexes d as belonging to id if no file holds it yet. It returns
// the owning file id, whether the caller's claim won, and whether the
// digest is mid-collection (in which case the caller must restart).
func (x *digestIndex) claim(d store.Digest, id graph.FileID) (owner graph.FileID, claimed, busy bool) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if _, ok := x.condemned[d]; ok {
		return 0, false, true
	}
	if cur, ok := x.byDigest[d]; ok {
		return cur, false, false
	}
	x.byDigest[d] = id
	return id, true, false
}

// unclaim reverses a claim that could not be committed.
func (x *digestIndex) unclaim(d store.Digest, id graph.FileID) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if cur, ok := x.byDigest[d]; ok && cur == id {
		delete(x.byDigest, d)
	}
}

// remap moves a file's index entry from old to new in one critical
// section: the rehash path of write. The old digest is condemned; the
// caller deletes its blob and then absolves it. A false return means the
// new digest is owned or condemned and the transaction must restart.
func (x *digestIndex) remap(old, new store.Digest, id graph.FileID) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	if _, ok := x.condemned[new]; ok {
		return false
	}
	if _, ok := x.byDigest[new]; ok {
		return false
	}
	delete(x.byDigest, old)
	x.condemned[old] = struct{}{}
	x.byDigest[new] = id
	return true
}

// unremap reverses a remap whose blob re-store failed.
func (x *digestIndex) unremap(old, new store.Digest, id graph.FileID) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if cur, ok := x.byDigest[new]; ok && cur == id {
		delete(x.byDigest, new)
	}
	delete(x.condemned, old)
	x.byDigest[old] = id
}

// condemn drops a collected file's index entry and guards the digest
// until its blob deletion completes.
func (x *digestIndex) condemn(d store.Digest) {
	x.mu.Lock()
	defer x.mu.Unlock()
	delete(x.byDigest, d)
	x.condemned[d] = struct{}{}
}

// absolve clears the collection guard after the blob is gone.
func (x *digestIndex) absolve(d store.Digest) {
	x.mu.Lock()
	defer x.mu.Unlock()
	delete(x.condemned, d)
}

func (x *digestIndex) len() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return len(x.byDigest)
}
