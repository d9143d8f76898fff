package graph

import (
	"errors"
	"testing"

	"github.com/tagforge/tagfs/store"
)

func TestFileRegistryLifecycle(t *testing.T) {
	r := NewFileRegistry()
	d := store.DigestOf([]byte("content"))

	f := r.Create(d, 7)
	if f.ID() == 0 {
		t.Error("Create assigned zero id")
	}
	got, err := r.Get(f.ID())
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != f {
		t.Error("Get returned a different node")
	}

	r.Remove(f.ID())
	if _, err := r.Get(f.ID()); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after Remove: err = %v, want ErrNotFound", err)
	}

	// Ids are never reused.
	f2 := r.Create(d, 7)
	if f2.ID() <= f.ID() {
		t.Errorf("id %d reused or non-monotonic after %d", f2.ID(), f.ID())
	}
}

func TestFileNodeBackrefs(t *testing.T) {
	r := NewFileRegistry()
	f := r.Create(store.DigestOf([]byte("x")), 1)

	f.Lock()
	f.AddBackref(3)
	f.AddBackref(1)
	f.AddBackref(2)
	f.AddBackref(2) // duplicate add is a no-op
	f.Unlock()

	f.RLock()
	names := f.Names()
	f.RUnlock()
	if len(names) != 3 {
		t.Fatalf("NameCount = %d, want 3", len(names))
	}
	for i, want := range []NameID{1, 2, 3} {
		if names[i] != want {
			t.Errorf("Names()[%d] = %d, want %d (sorted)", i, names[i], want)
		}
	}

	f.Lock()
	if remaining := f.RemoveBackref(2); remaining != 2 {
		t.Errorf("RemoveBackref remaining = %d, want 2", remaining)
	}
	f.RemoveBackref(1)
	if remaining := f.RemoveBackref(3); remaining != 0 {
		t.Errorf("final RemoveBackref remaining = %d, want 0", remaining)
	}
	f.Unlock()
}

func TestFileNodeRehashKeepsIdentity(t *testing.T) {
	r := NewFileRegistry()
	f := r.Create(store.DigestOf([]byte("before")), 6)
	id := f.ID()

	newDigest := store.DigestOf([]byte("after"))
	f.Lock()
	f.Rehash(newDigest, 5)
	f.Unlock()

	if f.ID() != id {
		t.Error("Rehash moved the node's identity")
	}
	f.RLock()
	defer f.RUnlock()
	if f.Digest() != newDigest {
		t.Errorf("Digest = %s, want %s", f.Digest(), newDigest)
	}
	if f.Size() != 5 {
		t.Errorf("Size = %d, want 5", f.Size())
	}
}

func TestNameRegistryLifecycle(t *testing.T) {
	r := NewNameRegistry()

	n := r.Create("cat.png", 1, 10)
	if n.OwnerTag() != 1 || n.Target() != 10 {
		t.Errorf("Create: owner %d target %d, want 1/10", n.OwnerTag(), n.Target())
	}

	// Label uniqueness is not enforced, not even within a tag.
	n2 := r.Create("cat.png", 1, 11)
	if n2.ID() == n.ID() {
		t.Error("duplicate labels must still get distinct ids")
	}

	n.Lock()
	n.SetLabel("kitten.png")
	n.SetTarget(11)
	n.Unlock()
	n.RLock()
	if n.Label() != "kitten.png" || n.Target() != 11 {
		t.Errorf("mutation lost: label %q target %d", n.Label(), n.Target())
	}
	n.RUnlock()

	r.Remove(n.ID())
	if _, err := r.Get(n.ID()); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after Remove: err = %v, want ErrNotFound", err)
	}
}

func TestTagIndexGetOrCreate(t *testing.T) {
	x := NewTagIndex()

	tag, err := x.GetOrCreate("photos")
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	again, err := x.GetOrCreate("photos")
	if err != nil {
		t.Fatalf("second GetOrCreate failed: %v", err)
	}
	if again != tag {
		t.Error("GetOrCreate created a second tag for the same label")
	}

	if _, err := x.GetOrCreate(""); !errors.Is(err, ErrInvalidLabel) {
		t.Errorf("empty label: err = %v, want ErrInvalidLabel", err)
	}
	if _, err := x.Lookup("absent"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Lookup absent: err = %v, want ErrNotFound", err)
	}
}

func TestTagMembershipSnapshot(t *testing.T) {
	x := NewTagIndex()
	tag, err := x.GetOrCreate("docs")
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}

	tag.Lock()
	tag.AddMember(5)
	tag.AddMember(2)
	tag.Unlock()

	tag.RLock()
	snap := tag.Members()
	tag.RUnlock()

	// Mutations after the copy are invisible to the snapshot.
	tag.Lock()
	tag.AddMember(9)
	tag.Unlock()

	if len(snap) != 2 || snap[0] != 2 || snap[1] != 5 {
		t.Errorf("Members snapshot = %v, want [2 5]", snap)
	}
}

func TestTagIndexRemove(t *testing.T) {
	x := NewTagIndex()
	tag, err := x.GetOrCreate("temp")
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}

	x.Remove(tag.ID())
	if _, err := x.Lookup("temp"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Lookup after Remove: err = %v, want ErrNotFound", err)
	}
	if _, err := x.Get(tag.ID()); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after Remove: err = %v, want ErrNotFound", err)
	}

	// A recreated label is a brand new tag.
	tag2, err := x.GetOrCreate("temp")
	if err != nil {
		t.Fatalf("recreate failed: %v", err)
	}
	if tag2.ID() == tag.ID() {
		t.Error("tag id reused after Remove")
	}
}

func TestTagLabelsSorted(t *testing.T) {
	x := NewTagIndex()
	for _, l := range []string{"zoo", "alpha", "middle"} {
		if _, err := x.GetOrCreate(l); err != nil {
			t.Fatalf("GetOrCreate(%q) failed: %v", l, err)
		}
	}
	labels := x.Labels()
	want := []string{"alpha", "middle", "zoo"}
	if len(labels) != len(want) {
		t.Fatalf("Labels = %v, want %v", labels, want)
	}
	for i := range want {
		if labels[i] != want[i] {
			t.Errorf("Labels[%d] = %q, want %q", i, labels[i], want[i])
		}
	}
}
