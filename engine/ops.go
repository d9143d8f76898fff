package engine

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/tagforge/tagfs/graph"
	"github.com/tagforge/tagfs/store"
)

// Entry describes one name binding as seen by lookup and listing.
type Entry struct {
	Name   graph.NameID
	Label  string
	File   graph.FileID
	Digest store.Digest
	Size   int64
	Links  int
}

// CreateEntry stores data and files it as name under the given tag,
// creating the tag on first use. Content whose digest is already known
// reuses the existing file node: the two names become hard links and no
// duplicate content is stored. Returns the new name's id.
func (e *Engine) CreateEntry(ctx context.Context, tagLabel, name string, data []byte) (graph.NameID, error) {
	if err := graph.ValidateLabel(tagLabel); err != nil {
		return 0, err
	}
	if err := graph.ValidateLabel(name); err != nil {
		return 0, err
	}

	digest := store.DigestOf(data)
	size := int64(len(data))

	var created graph.NameID
	err := e.transact(ctx, "create_entry", func() error {
		// Blob before index: an indexed digest always has stored content.
		if _, err := e.store.Put(data); err != nil {
			return err
		}
		tag, err := e.tags.GetOrCreate(tagLabel)
		if err != nil {
			return err
		}

		var f *graph.FileNode
		fresh := false
		if fid, ok := e.digests.lookup(digest); ok {
			f, err = e.files.Get(fid)
			if err != nil {
				return errRestart // index entry outlived the node, collection is in flight
			}
		} else {
			f = e.files.Create(digest, size)
			fresh = true
		}

		locks := lockSet{tagLock(tag, false), fileLock(f, false)}
		locks.acquire()
		defer locks.release()

		if cur, err := e.tags.Lookup(tagLabel); err != nil || cur != tag {
			if fresh {
				e.files.Remove(f.ID())
			}
			return errRestart
		}
		if fresh {
			_, claimed, _ := e.digests.claim(digest, f.ID())
			if !claimed {
				// Lost the race to a concurrent creator or a collector;
				// the restart resolves whatever owns the digest now.
				e.files.Remove(f.ID())
				return errRestart
			}
			// The claim shields the digest from collectors. Re-store the
			// blob in case a collection raced the put above.
			if _, err := e.store.Put(data); err != nil {
				e.digests.unclaim(digest, f.ID())
				e.files.Remove(f.ID())
				return err
			}
		} else if cur, ok := e.digests.lookup(digest); !ok || cur != f.ID() {
			return errRestart
		}

		n := e.names.Create(name, tag.ID(), f.ID())
		f.AddBackref(n.ID())
		tag.AddMember(n.ID())
		created = n.ID()
		return nil
	})
	if err != nil {
		return 0, err
	}
	return created, nil
}

// Link files an additional name for an existing entry's file under the
// given tag: the hard-link operation. Both names afterwards observe the
// same content, including future writes through either of them.
func (e *Engine) Link(ctx context.Context, nameID graph.NameID, tagLabel, newName string) (graph.NameID, error) {
	if err := graph.ValidateLabel(tagLabel); err != nil {
		return 0, err
	}
	if err := graph.ValidateLabel(newName); err != nil {
		return 0, err
	}

	var created graph.NameID
	err := e.transact(ctx, "link", func() error {
		n, err := e.names.Get(nameID)
		if err != nil {
			return err
		}
		n.RLock()
		fid := n.Target()
		n.RUnlock()
		f, err := e.files.Get(fid)
		if err != nil {
			return errRestart
		}
		tag, err := e.tags.GetOrCreate(tagLabel)
		if err != nil {
			return err
		}

		locks := lockSet{tagLock(tag, false), nameLock(n, true), fileLock(f, false)}
		locks.acquire()
		defer locks.release()

		if _, err := e.names.Get(nameID); err != nil {
			return err
		}
		if n.Target() != fid {
			return errRestart
		}
		if cur, err := e.tags.Lookup(tagLabel); err != nil || cur != tag {
			return errRestart
		}
		if f.NameCount() == 0 {
			return e.unreachable("link", fmt.Sprintf("file %d reached through name %d but has no names", fid, nameID))
		}

		n2 := e.names.Create(newName, tag.ID(), fid)
		f.AddBackref(n2.ID())
		tag.AddMember(n2.ID())
		created = n2.ID()
		return nil
	})
	if err != nil {
		return 0, err
	}
	return created, nil
}

// Write replaces the content observed through the given name.
//
// When the new digest is unseen, the target file is rehashed in place and
// every other name targeting it observes the new content: the hard-link
// write-through guarantee. When the new digest already belongs to another
// file, this name forks away from its file and merges onto the existing
// one; sibling names keep observing the old content. A file left without
// names by the fork is collected together with its content.
func (e *Engine) Write(ctx context.Context, nameID graph.NameID, data []byte) error {
	newDigest := store.DigestOf(data)
	size := int64(len(data))

	var condemned []store.Digest
	err := e.transact(ctx, "write", func() error {
		condemned = condemned[:0]

		n, err := e.names.Get(nameID)
		if err != nil {
			return err
		}
		n.RLock()
		fid := n.Target()
		n.RUnlock()
		f, err := e.files.Get(fid)
		if err != nil {
			return errRestart
		}

		gid, hasOwner := e.digests.lookup(newDigest)

		if hasOwner && gid == fid {
			// Content unchanged. Confirm under shared locks and return.
			locks := lockSet{nameLock(n, true), fileLock(f, true)}
			locks.acquire()
			defer locks.release()
			if _, err := e.names.Get(nameID); err != nil {
				return err
			}
			if n.Target() != fid || f.Digest() != newDigest {
				return errRestart
			}
			return nil
		}

		if hasOwner {
			// Merge: the write makes this name's content identical to an
			// unrelated existing file g. Only this name moves; siblings
			// keep the old content through f.
			g, err := e.files.Get(gid)
			if err != nil {
				return errRestart
			}

			locks := lockSet{nameLock(n, false), fileLock(f, false), fileLock(g, false)}
			locks.acquire()
			defer locks.release()

			if _, err := e.names.Get(nameID); err != nil {
				return err
			}
			if n.Target() != fid {
				return errRestart
			}
			if f.NameCount() == 0 {
				return e.unreachable("write", fmt.Sprintf("file %d reached through name %d but has no names", fid, nameID))
			}
			if f.Digest() == newDigest {
				return nil // a sibling already wrote the same bytes
			}
			if cur, ok := e.digests.lookup(newDigest); !ok || cur != gid {
				return errRestart
			}

			n.SetTarget(gid)
			g.AddBackref(nameID)
			if f.RemoveBackref(nameID) == 0 {
				e.digests.condemn(f.Digest())
				condemned = append(condemned, f.Digest())
				e.files.Remove(fid)
			}
			return nil
		}

		// Unseen digest: rehash f in place. Identity is stable, so every
		// name in f's back-reference set transparently observes the new
		// content without any tag index scan.
		if _, err := e.store.Put(data); err != nil {
			return err // store rejected the write, nothing mutated
		}

		locks := lockSet{nameLock(n, true), fileLock(f, false)}
		locks.acquire()
		defer locks.release()

		if _, err := e.names.Get(nameID); err != nil {
			return err
		}
		if n.Target() != fid {
			return errRestart
		}
		if f.NameCount() == 0 {
			return e.unreachable("write", fmt.Sprintf("file %d reached through name %d but has no names", fid, nameID))
		}
		old := f.Digest()
		if old == newDigest {
			return nil
		}
		if !e.digests.remap(old, newDigest, fid) {
			return errRestart // digest got claimed since planning
		}
		if _, err := e.store.Put(data); err != nil {
			e.digests.unremap(old, newDigest, fid)
			return err
		}
		f.Rehash(newDigest, size)
		condemned = append(condemned, old)
		return nil
	})
	if err != nil {
		return err
	}
	for _, d := range condemned {
		e.collectBlob(d)
	}
	return nil
}

// Read returns the content currently observed through the given name.
func (e *Engine) Read(ctx context.Context, nameID graph.NameID) ([]byte, error) {
	var data []byte
	err := e.transact(ctx, "read", func() error {
		n, err := e.names.Get(nameID)
		if err != nil {
			return err
		}
		n.RLock()
		fid := n.Target()
		n.RUnlock()
		f, err := e.files.Get(fid)
		if err != nil {
			return errRestart
		}

		locks := lockSet{nameLock(n, true), fileLock(f, true)}
		locks.acquire()
		defer locks.release()

		if _, err := e.names.Get(nameID); err != nil {
			return err
		}
		if n.Target() != fid {
			return errRestart
		}
		if f.NameCount() == 0 {
			return e.unreachable("read", fmt.Sprintf("file %d reached through name %d but has no names", fid, nameID))
		}

		// The blob must be fetched while f's lock pins its digest: once
		// the lock drops, a write through a sibling name may rehash the
		// file and collect the blob this attempt resolved. Under the
		// lock a live digest always has content, so a miss here is a
		// real invariant violation, not a lost race.
		digest := f.Digest()
		data, err = e.store.Get(digest)
		if errors.Is(err, store.ErrNotFound) {
			return e.unreachable("read", fmt.Sprintf("content %s missing for a live file", digest.Short()))
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Untag removes a name. The file it targeted is collected, content
// included, if this was its last name; the owning tag follows the
// empty-tag retention policy if this was its last member.
func (e *Engine) Untag(ctx context.Context, nameID graph.NameID) error {
	var condemned []store.Digest
	err := e.transact(ctx, "untag", func() error {
		condemned = condemned[:0]

		n, err := e.names.Get(nameID)
		if err != nil {
			return err
		}
		tag, err := e.tags.Get(n.OwnerTag())
		if err != nil {
			return errRestart
		}
		n.RLock()
		fid := n.Target()
		n.RUnlock()
		f, err := e.files.Get(fid)
		if err != nil {
			return errRestart
		}

		locks := lockSet{tagLock(tag, false), nameLock(n, false), fileLock(f, false)}
		locks.acquire()
		defer locks.release()

		if _, err := e.names.Get(nameID); err != nil {
			return err
		}
		if n.Target() != fid || n.OwnerTag() != tag.ID() {
			return errRestart
		}
		if cur, err := e.tags.Get(tag.ID()); err != nil || cur != tag {
			return errRestart
		}

		remainingMembers := tag.RemoveMember(nameID)
		remainingNames := f.RemoveBackref(nameID)
		e.names.Remove(nameID)

		if remainingNames == 0 {
			e.digests.condemn(f.Digest())
			condemned = append(condemned, f.Digest())
			e.files.Remove(fid)
		}
		if remainingMembers == 0 && !e.keepEmptyTags {
			e.tags.Remove(tag.ID())
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, d := range condemned {
		e.collectBlob(d)
	}
	return nil
}

// Rename changes a name's label in place. O(1): the target file, its
// digest, and its content are untouched.
func (e *Engine) Rename(ctx context.Context, nameID graph.NameID, newLabel string) error {
	if err := graph.ValidateLabel(newLabel); err != nil {
		return err
	}
	return e.transact(ctx, "rename", func() error {
		n, err := e.names.Get(nameID)
		if err != nil {
			return err
		}
		locks := lockSet{nameLock(n, false)}
		locks.acquire()
		defer locks.release()
		if _, err := e.names.Get(nameID); err != nil {
			return err
		}
		n.SetLabel(newLabel)
		return nil
	})
}

// Lookup resolves a (tag, name) pair to a name id. Labels are not unique,
// so when several members match the lowest id wins.
func (e *Engine) Lookup(tagLabel, name string) (graph.NameID, error) {
	tag, err := e.tags.Lookup(tagLabel)
	if err != nil {
		return 0, err
	}
	tag.RLock()
	defer tag.RUnlock()
	for _, id := range tag.Members() {
		n, err := e.names.Get(id)
		if err != nil {
			continue
		}
		n.RLock()
		match := n.Label() == name
		n.RUnlock()
		if match {
			return id, nil
		}
	}
	return 0, fmt.Errorf("%w: %q under tag %q", graph.ErrNotFound, name, tagLabel)
}

// List returns a lazy, restartable sequence over a tag's members. The
// membership is snapshotted when List is called: tag and untag operations
// during iteration are not reflected. Entries whose name disappears
// between the snapshot and the visit are skipped.
func (e *Engine) List(tagLabel string) (iter.Seq[Entry], error) {
	tag, err := e.tags.Lookup(tagLabel)
	if err != nil {
		return nil, err
	}
	tag.RLock()
	members := tag.Members()
	tag.RUnlock()

	return func(yield func(Entry) bool) {
		for _, id := range members {
			ent, err := e.Describe(id)
			if err != nil {
				continue
			}
			if !yield(ent) {
				return
			}
		}
	}, nil
}

// Describe resolves a name id to its current binding.
func (e *Engine) Describe(nameID graph.NameID) (Entry, error) {
	n, err := e.names.Get(nameID)
	if err != nil {
		return Entry{}, err
	}
	n.RLock()
	label, fid := n.Label(), n.Target()
	n.RUnlock()

	f, err := e.files.Get(fid)
	if err != nil {
		return Entry{}, fmt.Errorf("%w: name %d", graph.ErrNotFound, nameID)
	}
	f.RLock()
	digest, size, links := f.Digest(), f.Size(), f.NameCount()
	f.RUnlock()

	return Entry{
		Name:   nameID,
		Label:  label,
		File:   fid,
		Digest: digest,
		Size:   size,
		Links:  links,
	}, nil
}
