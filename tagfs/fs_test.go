package tagfs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"syscall"
	"testing"

	"bazil.org/fuse"
	"bazil.org/fuse/fs"

	"github.com/tagforge/tagfs/engine"
	"github.com/tagforge/tagfs/graph"
	"github.com/tagforge/tagfs/store"
)

func newTestFS(t *testing.T) (*FS, *Root) {
	t.Helper()
	st, err := store.Open(store.Config{InMemory: true})
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	eng, err := engine.New(engine.Config{Store: st})
	if err != nil {
		t.Fatalf("starting engine: %v", err)
	}
	t.Cleanup(func() {
		eng.Close()
		st.Close()
	})
	f := NewFS(eng)
	root, err := f.Root()
	if err != nil {
		t.Fatalf("root: %v", err)
	}
	return f, root.(*Root)
}

// createFile runs the create/write/flush sequence the kernel would issue.
func createFile(t *testing.T, d *Dir, name string, content []byte) *File {
	t.Helper()
	ctx := context.Background()
	node, _, err := d.Create(ctx, &fuse.CreateRequest{Name: name, Mode: 0o644}, &fuse.CreateResponse{})
	if err != nil {
		t.Fatalf("create %s: %v", name, err)
	}
	file := node.(*File)
	wresp := &fuse.WriteResponse{}
	if err := file.Write(ctx, &fuse.WriteRequest{Data: content}, wresp); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	if wresp.Size != len(content) {
		t.Fatalf("short write: %d != %d", wresp.Size, len(content))
	}
	if err := file.Flush(ctx, &fuse.FlushRequest{}); err != nil {
		t.Fatalf("flush %s: %v", name, err)
	}
	return file
}

func mkdir(t *testing.T, root *Root, name string) *Dir {
	t.Helper()
	node, err := root.Mkdir(context.Background(), &fuse.MkdirRequest{Name: name})
	if err != nil {
		t.Fatalf("mkdir %s: %v", name, err)
	}
	return node.(*Dir)
}

func TestMkdirAndRootListing(t *testing.T) {
	_, root := newTestFS(t)
	ctx := context.Background()

	mkdir(t, root, "docs")
	mkdir(t, root, "media")

	dirents, err := root.ReadDirAll(ctx)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(dirents) != 2 {
		t.Fatalf("expected 2 tags, got %d", len(dirents))
	}

	if _, err := root.Lookup(ctx, "docs"); err != nil {
		t.Errorf("lookup docs: %v", err)
	}
	if _, err := root.Lookup(ctx, "missing"); !errors.Is(err, syscall.ENOENT) {
		t.Errorf("lookup missing: got %v, want ENOENT", err)
	}
}

func TestCreateFlushRead(t *testing.T) {
	_, root := newTestFS(t)
	ctx := context.Background()

	docs := mkdir(t, root, "docs")
	createFile(t, docs, "note.txt", []byte("hello"))

	node, err := docs.Lookup(ctx, "note.txt")
	if err != nil {
		t.Fatalf("lookup after flush: %v", err)
	}
	got, err := node.(*File).ReadAll(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, []byte("hello")) {
		t.Errorf("read %q, want %q", got, "hello")
	}
}

func TestCreateIsPendingUntilFlush(t *testing.T) {
	_, root := newTestFS(t)
	ctx := context.Background()

	docs := mkdir(t, root, "docs")
	node, _, err := docs.Create(ctx, &fuse.CreateRequest{Name: "draft", Mode: 0o644}, &fuse.CreateResponse{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Before the flush the entry must not be resolvable.
	if _, err := docs.Lookup(ctx, "draft"); !errors.Is(err, syscall.ENOENT) {
		t.Fatalf("pending file resolvable: %v", err)
	}

	file := node.(*File)
	if err := file.Write(ctx, &fuse.WriteRequest{Data: []byte("x")}, &fuse.WriteResponse{}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := file.Flush(ctx, &fuse.FlushRequest{}); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if _, err := docs.Lookup(ctx, "draft"); err != nil {
		t.Fatalf("lookup after flush: %v", err)
	}
}

func TestTagDirectoryInodeIsStable(t *testing.T) {
	_, root := newTestFS(t)
	ctx := context.Background()

	docs := mkdir(t, root, "docs")
	mkdir(t, root, "media")

	var first fuse.Attr
	if err := docs.Attr(ctx, &first); err != nil {
		t.Fatalf("attr: %v", err)
	}

	// Repeated lookups must resolve to the same inode as the mkdir.
	for range 3 {
		node, err := root.Lookup(ctx, "docs")
		if err != nil {
			t.Fatalf("lookup: %v", err)
		}
		var a fuse.Attr
		if err := node.Attr(ctx, &a); err != nil {
			t.Fatalf("attr: %v", err)
		}
		if a.Inode != first.Inode {
			t.Fatalf("tag inode drifted across lookups: %d != %d", a.Inode, first.Inode)
		}
	}

	// Directory listings report the same inode, distinct per tag.
	dirents, err := root.ReadDirAll(ctx)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	seen := map[string]uint64{}
	for _, de := range dirents {
		seen[de.Name] = de.Inode
	}
	if seen["docs"] != first.Inode {
		t.Errorf("readdir inode %d, want %d", seen["docs"], first.Inode)
	}
	if seen["docs"] == seen["media"] {
		t.Errorf("distinct tags share inode %d", seen["docs"])
	}
}

func TestHardLinkSharesInode(t *testing.T) {
	_, root := newTestFS(t)
	ctx := context.Background()

	photos := mkdir(t, root, "photos")
	pets := mkdir(t, root, "pets")
	orig := createFile(t, photos, "cat.png", []byte("cat v1"))

	linked, err := pets.Link(ctx, &fuse.LinkRequest{NewName: "cat-copy.png"}, fs.Node(orig))
	if err != nil {
		t.Fatalf("link: %v", err)
	}

	var a1, a2 fuse.Attr
	if err := orig.Attr(ctx, &a1); err != nil {
		t.Fatalf("attr orig: %v", err)
	}
	if err := linked.Attr(ctx, &a2); err != nil {
		t.Fatalf("attr link: %v", err)
	}
	if a1.Inode != a2.Inode {
		t.Errorf("links have different inodes: %d != %d", a1.Inode, a2.Inode)
	}
	if a1.Nlink != 2 || a2.Nlink != 2 {
		t.Errorf("nlink = %d/%d, want 2/2", a1.Nlink, a2.Nlink)
	}

	// Writing through one name is visible through the other.
	if err := orig.Write(ctx, &fuse.WriteRequest{Data: []byte("cat v2")}, &fuse.WriteResponse{}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := orig.Flush(ctx, &fuse.FlushRequest{}); err != nil {
		t.Fatalf("flush: %v", err)
	}
	got, err := linked.(*File).ReadAll(ctx)
	if err != nil {
		t.Fatalf("read via link: %v", err)
	}
	if !bytes.Equal(got, []byte("cat v2")) {
		t.Errorf("read %q through link, want %q", got, "cat v2")
	}
}

func TestRenameWithinAndAcrossTags(t *testing.T) {
	_, root := newTestFS(t)
	ctx := context.Background()

	docs := mkdir(t, root, "docs")
	archive := mkdir(t, root, "archive")
	createFile(t, docs, "old.txt", []byte("body"))

	if err := docs.Rename(ctx, &fuse.RenameRequest{OldName: "old.txt", NewName: "new.txt"}, docs); err != nil {
		t.Fatalf("rename in place: %v", err)
	}
	if _, err := docs.Lookup(ctx, "old.txt"); !errors.Is(err, syscall.ENOENT) {
		t.Errorf("old name still resolves: %v", err)
	}

	if err := docs.Rename(ctx, &fuse.RenameRequest{OldName: "new.txt", NewName: "moved.txt"}, archive); err != nil {
		t.Fatalf("rename across tags: %v", err)
	}
	if _, err := docs.Lookup(ctx, "new.txt"); !errors.Is(err, syscall.ENOENT) {
		t.Errorf("source name still resolves: %v", err)
	}
	node, err := archive.Lookup(ctx, "moved.txt")
	if err != nil {
		t.Fatalf("destination lookup: %v", err)
	}
	got, err := node.(*File).ReadAll(ctx)
	if err != nil {
		t.Fatalf("read after move: %v", err)
	}
	if !bytes.Equal(got, []byte("body")) {
		t.Errorf("content changed across rename: %q", got)
	}
}

func TestRemoveFileAndTag(t *testing.T) {
	_, root := newTestFS(t)
	ctx := context.Background()

	docs := mkdir(t, root, "docs")
	createFile(t, docs, "a.txt", []byte("x"))

	// A populated tag refuses rmdir.
	err := root.Remove(ctx, &fuse.RemoveRequest{Name: "docs", Dir: true})
	if !errors.Is(err, syscall.ENOTEMPTY) {
		t.Fatalf("rmdir non-empty: got %v, want ENOTEMPTY", err)
	}

	if err := docs.Remove(ctx, &fuse.RemoveRequest{Name: "a.txt"}); err != nil {
		t.Fatalf("unlink: %v", err)
	}

	// Unlinking the tag's last member dropped it with the default
	// retention policy, so rmdir now reports ENOENT.
	err = root.Remove(ctx, &fuse.RemoveRequest{Name: "docs", Dir: true})
	if !errors.Is(err, syscall.ENOENT) {
		t.Fatalf("rmdir gone tag: got %v, want ENOENT", err)
	}
}

func TestTruncateThroughSetattr(t *testing.T) {
	_, root := newTestFS(t)
	ctx := context.Background()

	docs := mkdir(t, root, "docs")
	file := createFile(t, docs, "a.txt", []byte("longer content"))

	resp := &fuse.SetattrResponse{}
	if err := file.Setattr(ctx, &fuse.SetattrRequest{Valid: fuse.SetattrSize, Size: 6}, resp); err != nil {
		t.Fatalf("setattr: %v", err)
	}
	if resp.Attr.Size != 6 {
		t.Errorf("attr size = %d, want 6", resp.Attr.Size)
	}
	if err := file.Flush(ctx, &fuse.FlushRequest{}); err != nil {
		t.Fatalf("flush: %v", err)
	}

	got, err := file.ReadAll(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, []byte("longer")) {
		t.Errorf("truncated to %q, want %q", got, "longer")
	}
}

func TestErrnoMapping(t *testing.T) {
	cases := []struct {
		err  error
		want error
	}{
		{nil, nil},
		{graph.ErrNotFound, syscall.ENOENT},
		{store.ErrNotFound, syscall.ENOENT},
		{graph.ErrInvalidLabel, syscall.EINVAL},
		{graph.ErrNotEmpty, syscall.ENOTEMPTY},
		{store.ErrOutOfSpace, syscall.ENOSPC},
		{engine.ErrBusy, syscall.EAGAIN},
		{engine.ErrUnreachable, syscall.EIO},
		{errors.New("anything else"), syscall.EIO},
	}
	for _, tc := range cases {
		wrapped := tc.err
		if wrapped != nil {
			wrapped = fmt.Errorf("op: %w", tc.err)
		}
		if got := errno(wrapped); !errors.Is(got, tc.want) {
			t.Errorf("errno(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}
