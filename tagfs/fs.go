package tagfs

import (
	"context"
	"errors"
	"os"
	"sync"
	"syscall"
	"time"

	"bazil.org/fuse"
	"bazil.org/fuse/fs"

	"github.com/tagforge/tagfs/engine"
	"github.com/tagforge/tagfs/graph"
	"github.com/tagforge/tagfs/store"
)

// Inode layout: 1 is the root, tag directories are their stable tag id
// offset by 1, file inodes are the stable file node id offset past
// fileInodeBase. Both derivations are stable across lookups; hard links
// share an inode and their Nlink counts agree.
const fileInodeBase = 1 << 32

func tagInode(id graph.TagID) uint64 {
	return 1 + uint64(id)
}

func fileInode(id graph.FileID) uint64 {
	return fileInodeBase + uint64(id)
}

// errno maps engine and graph errors onto FUSE error numbers.
func errno(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, graph.ErrNotFound), errors.Is(err, store.ErrNotFound):
		return syscall.ENOENT
	case errors.Is(err, graph.ErrInvalidLabel):
		return syscall.EINVAL
	case errors.Is(err, graph.ErrNotEmpty):
		return syscall.ENOTEMPTY
	case errors.Is(err, store.ErrOutOfSpace):
		return syscall.ENOSPC
	case errors.Is(err, engine.ErrBusy):
		return syscall.EAGAIN
	default:
		return syscall.EIO
	}
}

// FS exposes the engine as a single-level FUSE filesystem: tags are the
// directories, names are the files under them.
type FS struct {
	eng *engine.Engine
}

// NewFS wraps an engine for mounting.
func NewFS(eng *engine.Engine) *FS {
	return &FS{eng: eng}
}

// Root returns the root directory node.
func (f *FS) Root() (fs.Node, error) {
	return &Root{fs: f}, nil
}

// Root is the mountpoint directory. Its children are the tags.
type Root struct {
	fs *FS
}

func (r *Root) Attr(ctx context.Context, a *fuse.Attr) error {
	a.Inode = 1
	a.Mode = os.ModeDir | 0o755
	a.Mtime = time.Now()
	return nil
}

func (r *Root) Lookup(ctx context.Context, name string) (fs.Node, error) {
	id, err := r.fs.eng.TagID(name)
	if err != nil {
		return nil, errno(err)
	}
	return newDir(r.fs, name, id), nil
}

func (r *Root) ReadDirAll(ctx context.Context) ([]fuse.Dirent, error) {
	var dirents []fuse.Dirent
	for _, label := range r.fs.eng.Tags() {
		id, err := r.fs.eng.TagID(label)
		if err != nil {
			continue // removed since the label snapshot
		}
		dirents = append(dirents, fuse.Dirent{
			Inode: tagInode(id),
			Name:  label,
			Type:  fuse.DT_Dir,
		})
	}
	return dirents, nil
}

// Mkdir creates a tag.
func (r *Root) Mkdir(ctx context.Context, req *fuse.MkdirRequest) (fs.Node, error) {
	id, err := r.fs.eng.EnsureTag(req.Name)
	if err != nil {
		return nil, errno(err)
	}
	return newDir(r.fs, req.Name, id), nil
}

// Remove handles rmdir of a tag directory. Files cannot live at the
// root, so plain unlink has nothing to remove here.
func (r *Root) Remove(ctx context.Context, req *fuse.RemoveRequest) error {
	if !req.Dir {
		return syscall.EPERM
	}
	return errno(r.fs.eng.RemoveTag(ctx, req.Name))
}

// Create at the root is rejected: every file needs a tag.
func (r *Root) Create(ctx context.Context, req *fuse.CreateRequest, resp *fuse.CreateResponse) (fs.Node, fs.Handle, error) {
	return nil, nil, syscall.EPERM
}

// Dir is one tag directory.
type Dir struct {
	fs    *FS
	label string
	inode uint64
}

func newDir(f *FS, label string, id graph.TagID) *Dir {
	return &Dir{fs: f, label: label, inode: tagInode(id)}
}

func (d *Dir) Attr(ctx context.Context, a *fuse.Attr) error {
	a.Inode = d.inode
	a.Mode = os.ModeDir | 0o755
	a.Mtime = time.Now()
	return nil
}

func (d *Dir) Lookup(ctx context.Context, name string) (fs.Node, error) {
	id, err := d.fs.eng.Lookup(d.label, name)
	if err != nil {
		return nil, errno(err)
	}
	return &File{fs: d.fs, id: id}, nil
}

func (d *Dir) ReadDirAll(ctx context.Context) ([]fuse.Dirent, error) {
	seq, err := d.fs.eng.List(d.label)
	if err != nil {
		return nil, errno(err)
	}
	var dirents []fuse.Dirent
	for ent := range seq {
		dirents = append(dirents, fuse.Dirent{
			Inode: fileInode(ent.File),
			Name:  ent.Label,
			Type:  fuse.DT_File,
		})
	}
	return dirents, nil
}

// Create opens a new, still-pending file under the tag. The entry is not
// committed until the first flush carries real content: committing an
// empty entry up front would content-share it with every other empty
// file, and a later write through either would reach both.
func (d *Dir) Create(ctx context.Context, req *fuse.CreateRequest, resp *fuse.CreateResponse) (fs.Node, fs.Handle, error) {
	if err := graph.ValidateLabel(req.Name); err != nil {
		return nil, nil, errno(err)
	}
	file := &File{
		fs:      d.fs,
		tag:     d.label,
		label:   req.Name,
		pending: true,
		data:    []byte{},
		dirty:   true,
	}
	resp.Attr.Inode = fileInodeBase - 1
	resp.Attr.Mode = req.Mode
	resp.Attr.Mtime = time.Now()
	return file, file, nil
}

// Remove unlinks a name from the tag.
func (d *Dir) Remove(ctx context.Context, req *fuse.RemoveRequest) error {
	if req.Dir {
		return syscall.ENOTDIR
	}
	id, err := d.fs.eng.Lookup(d.label, req.Name)
	if err != nil {
		return errno(err)
	}
	return errno(d.fs.eng.Untag(ctx, id))
}

// Link files an additional name for an existing file under this tag.
func (d *Dir) Link(ctx context.Context, req *fuse.LinkRequest, old fs.Node) (fs.Node, error) {
	file, ok := old.(*File)
	if !ok {
		return nil, syscall.EIO
	}
	file.mu.RLock()
	pending, id := file.pending, file.id
	file.mu.RUnlock()
	if pending {
		return nil, syscall.ENOENT
	}
	linked, err := d.fs.eng.Link(ctx, id, d.label, req.NewName)
	if err != nil {
		return nil, errno(err)
	}
	return &File{fs: d.fs, id: linked}, nil
}

// Rename relabels within a tag, or moves across tags as link-then-untag.
// Either way content identity and the inode are preserved.
func (d *Dir) Rename(ctx context.Context, req *fuse.RenameRequest, newDir fs.Node) error {
	id, err := d.fs.eng.Lookup(d.label, req.OldName)
	if err != nil {
		return errno(err)
	}

	dest, ok := newDir.(*Dir)
	if !ok {
		if _, isRoot := newDir.(*Root); isRoot {
			return syscall.EPERM
		}
		return syscall.EIO
	}

	// Clobber semantics: an existing entry under the destination name is
	// replaced.
	if existing, err := d.fs.eng.Lookup(dest.label, req.NewName); err == nil && existing != id {
		if err := d.fs.eng.Untag(ctx, existing); err != nil {
			return errno(err)
		}
	}

	if dest.label == d.label {
		return errno(d.fs.eng.Rename(ctx, id, req.NewName))
	}
	if _, err := d.fs.eng.Link(ctx, id, dest.label, req.NewName); err != nil {
		return errno(err)
	}
	return errno(d.fs.eng.Untag(ctx, id))
}

// File is one name binding. Writes are buffered in the node and
// committed on flush, so a stream of partial writes becomes one content
// transition.
type File struct {
	fs *FS
	id graph.NameID

	// Pending files exist only in the kernel's dcache until the first
	// flush commits them.
	pending bool
	tag     string
	label   string

	data  []byte
	dirty bool
	mu    sync.RWMutex
}

func (f *File) Attr(ctx context.Context, a *fuse.Attr) error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.pending {
		// No file node exists yet; the flush assigns the real inode.
		a.Inode = fileInodeBase - 1
		a.Mode = 0o644
		a.Size = uint64(len(f.data))
		a.Mtime = time.Now()
		return nil
	}

	ent, err := f.fs.eng.Describe(f.id)
	if err != nil {
		return errno(err)
	}
	a.Inode = fileInode(ent.File)
	a.Mode = 0o644
	a.Size = uint64(ent.Size)
	if f.dirty {
		a.Size = uint64(len(f.data))
	}
	a.Nlink = uint32(ent.Links)
	a.Mtime = time.Now()
	return nil
}

func (f *File) ReadAll(ctx context.Context) ([]byte, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.pending || f.dirty {
		return f.data, nil
	}
	data, err := f.fs.eng.Read(ctx, f.id)
	if err != nil {
		return nil, errno(err)
	}
	return data, nil
}

func (f *File) Write(ctx context.Context, req *fuse.WriteRequest, resp *fuse.WriteResponse) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.dirty && !f.pending {
		// First write to a clean node: seed the buffer with the current
		// content so partial writes patch rather than replace.
		data, err := f.fs.eng.Read(ctx, f.id)
		if err != nil {
			return errno(err)
		}
		f.data = data
	}

	end := int(req.Offset) + len(req.Data)
	if end > len(f.data) {
		grown := make([]byte, end)
		copy(grown, f.data)
		f.data = grown
	}
	copy(f.data[req.Offset:], req.Data)
	resp.Size = len(req.Data)
	f.dirty = true
	return nil
}

// Flush commits the buffered content: pending files become real entries,
// existing ones go through the content-transition write.
func (f *File) Flush(ctx context.Context, req *fuse.FlushRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.commit(ctx)
}

func (f *File) commit(ctx context.Context) error {
	if !f.dirty {
		return nil
	}
	if f.pending {
		id, err := f.fs.eng.CreateEntry(ctx, f.tag, f.label, f.data)
		if err != nil {
			return errno(err)
		}
		f.id = id
		f.pending = false
	} else if err := f.fs.eng.Write(ctx, f.id, f.data); err != nil {
		return errno(err)
	}
	f.data = nil
	f.dirty = false
	return nil
}

func (f *File) Fsync(ctx context.Context, req *fuse.FsyncRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.commit(ctx)
}

// Setattr handles truncate against the write buffer.
func (f *File) Setattr(ctx context.Context, req *fuse.SetattrRequest, resp *fuse.SetattrResponse) error {
	f.mu.Lock()
	if req.Valid.Size() {
		if !f.dirty && !f.pending {
			data, err := f.fs.eng.Read(ctx, f.id)
			if err != nil {
				f.mu.Unlock()
				return errno(err)
			}
			f.data = data
		}
		if req.Size < uint64(len(f.data)) {
			f.data = f.data[:req.Size]
		} else if req.Size > uint64(len(f.data)) {
			grown := make([]byte, req.Size)
			copy(grown, f.data)
			f.data = grown
		}
		f.dirty = true
	}
	f.mu.Unlock()
	return f.Attr(ctx, &resp.Attr)
}
