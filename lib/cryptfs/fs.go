// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cryptfs

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/bureau-foundation/vaultd/lib/secret"
)

// filesystem is the state shared by every node of one mount.
type filesystem struct {
	dataDir string
	sealer  *sealer
	options Options
	uid     uint32
	gid     uint32
	logger  *slog.Logger
}

func (f *filesystem) root() *dirNode {
	return &dirNode{fs: f}
}

// backing maps a node to its path in the data directory.
func (f *filesystem) backing(inode *gofuse.Inode) string {
	return filepath.Join(f.dataDir, inode.Path(nil))
}

// permit enforces allow_root: the kernel lets everyone in (allow_other)
// and the filesystem turns away callers that are neither the owner nor
// root.
func (f *filesystem) permit(ctx context.Context) syscall.Errno {
	if !f.options.AllowRoot || f.options.AllowOther {
		return 0
	}
	caller, ok := fuse.FromContext(ctx)
	if !ok || caller.Uid == f.uid || caller.Uid == 0 {
		return 0
	}
	return syscall.EACCES
}

// hidden reports names that belong to the engine, not the user.
func hidden(name string) bool {
	return strings.HasPrefix(name, controlPrefix)
}

// fillAttr copies a backing stat into out, presenting the mount's
// owner. Regular files report their plaintext size.
func (f *filesystem) fillAttr(stat *syscall.Stat_t, plaintextSize int64, out *fuse.Attr) {
	out.FromStat(stat)
	out.Uid = f.uid
	out.Gid = f.gid
	if stat.Mode&syscall.S_IFMT == syscall.S_IFREG {
		out.Size = uint64(plaintextSize)
		out.Blocks = (out.Size + 511) / 512
	}
}

// storedSize reads a blob's recorded plaintext size from its prefix.
func storedSize(path string) (int64, error) {
	handle, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer handle.Close()
	prefix := make([]byte, blobPrefixSize)
	if _, err := handle.ReadAt(prefix, 0); err != nil {
		return 0, errCorrupt
	}
	size, err := plaintextSize(prefix)
	return int64(size), err
}

// newChild creates the inode for a backing entry that was just stat'ed.
func (f *filesystem) newChild(ctx context.Context, parent *gofuse.Inode, path string, stat *syscall.Stat_t, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	var size int64
	var node gofuse.InodeEmbedder
	switch stat.Mode & syscall.S_IFMT {
	case syscall.S_IFDIR:
		node = &dirNode{fs: f}
	case syscall.S_IFREG:
		var err error
		if size, err = storedSize(path); err != nil {
			f.logger.Warn("unreadable sealed file", "path", path, "error", err)
			return nil, syscall.EIO
		}
		node = &fileNode{fs: f}
	default:
		// Symlinks, sockets and devices are not part of a vault.
		return nil, syscall.ENOENT
	}

	f.fillAttr(stat, size, &out.Attr)
	return parent.NewInode(ctx, node, gofuse.StableAttr{
		Mode: stat.Mode & syscall.S_IFMT,
		Ino:  stat.Ino,
	}), 0
}

// dirNode is a directory, the root included.
type dirNode struct {
	gofuse.Inode
	fs *filesystem
}

var _ gofuse.InodeEmbedder = (*dirNode)(nil)
var _ gofuse.NodeLookuper = (*dirNode)(nil)
var _ gofuse.NodeReaddirer = (*dirNode)(nil)
var _ gofuse.NodeGetattrer = (*dirNode)(nil)
var _ gofuse.NodeSetattrer = (*dirNode)(nil)
var _ gofuse.NodeMkdirer = (*dirNode)(nil)
var _ gofuse.NodeRmdirer = (*dirNode)(nil)
var _ gofuse.NodeCreater = (*dirNode)(nil)
var _ gofuse.NodeUnlinker = (*dirNode)(nil)
var _ gofuse.NodeRenamer = (*dirNode)(nil)
var _ gofuse.NodeStatfser = (*dirNode)(nil)

func (d *dirNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	if errno := d.fs.permit(ctx); errno != 0 {
		return nil, errno
	}
	if hidden(name) {
		return nil, syscall.ENOENT
	}
	path := filepath.Join(d.fs.backing(&d.Inode), name)
	var stat syscall.Stat_t
	if err := syscall.Lstat(path, &stat); err != nil {
		return nil, gofuse.ToErrno(err)
	}
	return d.fs.newChild(ctx, &d.Inode, path, &stat, out)
}

func (d *dirNode) Readdir(ctx context.Context) (gofuse.DirStream, syscall.Errno) {
	if errno := d.fs.permit(ctx); errno != 0 {
		return nil, errno
	}
	entries, err := os.ReadDir(d.fs.backing(&d.Inode))
	if err != nil {
		return nil, gofuse.ToErrno(err)
	}

	list := make([]fuse.DirEntry, 0, len(entries))
	for _, entry := range entries {
		if hidden(entry.Name()) {
			continue
		}
		var mode uint32
		switch {
		case entry.IsDir():
			mode = syscall.S_IFDIR
		case entry.Type().IsRegular():
			mode = syscall.S_IFREG
		default:
			continue
		}
		list = append(list, fuse.DirEntry{Name: entry.Name(), Mode: mode})
	}
	return gofuse.NewListDirStream(list), 0
}

func (d *dirNode) Getattr(ctx context.Context, _ gofuse.FileHandle, out *fuse.AttrOut) syscall.Errno {
	if errno := d.fs.permit(ctx); errno != 0 {
		return errno
	}
	var stat syscall.Stat_t
	if err := syscall.Lstat(d.fs.backing(&d.Inode), &stat); err != nil {
		return gofuse.ToErrno(err)
	}
	d.fs.fillAttr(&stat, 0, &out.Attr)
	return 0
}

func (d *dirNode) Setattr(ctx context.Context, _ gofuse.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	if errno := d.fs.permit(ctx); errno != 0 {
		return errno
	}
	if errno := applyModeAndTimes(d.fs.backing(&d.Inode), in); errno != 0 {
		return errno
	}
	return d.Getattr(ctx, nil, out)
}

func (d *dirNode) Mkdir(ctx context.Context, name string, mode uint32, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	if errno := d.fs.permit(ctx); errno != 0 {
		return nil, errno
	}
	if hidden(name) {
		return nil, syscall.EPERM
	}
	path := filepath.Join(d.fs.backing(&d.Inode), name)
	if err := os.Mkdir(path, os.FileMode(mode&0o7777)); err != nil {
		return nil, gofuse.ToErrno(err)
	}
	var stat syscall.Stat_t
	if err := syscall.Lstat(path, &stat); err != nil {
		return nil, gofuse.ToErrno(err)
	}
	return d.fs.newChild(ctx, &d.Inode, path, &stat, out)
}

func (d *dirNode) Rmdir(ctx context.Context, name string) syscall.Errno {
	if errno := d.fs.permit(ctx); errno != 0 {
		return errno
	}
	if hidden(name) {
		return syscall.ENOENT
	}
	return gofuse.ToErrno(syscall.Rmdir(filepath.Join(d.fs.backing(&d.Inode), name)))
}

func (d *dirNode) Create(ctx context.Context, name string, flags uint32, mode uint32, out *fuse.EntryOut) (*gofuse.Inode, gofuse.FileHandle, uint32, syscall.Errno) {
	if errno := d.fs.permit(ctx); errno != 0 {
		return nil, nil, 0, errno
	}
	if hidden(name) {
		return nil, nil, 0, syscall.EPERM
	}
	path := filepath.Join(d.fs.backing(&d.Inode), name)

	blob, err := d.fs.sealer.seal(nil)
	if err != nil {
		d.fs.logger.Error("sealing new file failed", "error", err)
		return nil, nil, 0, syscall.EIO
	}
	openFlags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if flags&syscall.O_EXCL != 0 {
		openFlags |= os.O_EXCL
	}
	handle, err := os.OpenFile(path, openFlags, os.FileMode(mode&0o7777))
	if err != nil {
		return nil, nil, 0, gofuse.ToErrno(err)
	}
	_, writeErr := handle.Write(blob)
	closeErr := handle.Close()
	if err := errors.Join(writeErr, closeErr); err != nil {
		os.Remove(path)
		return nil, nil, 0, gofuse.ToErrno(err)
	}

	var stat syscall.Stat_t
	if err := syscall.Lstat(path, &stat); err != nil {
		return nil, nil, 0, gofuse.ToErrno(err)
	}
	node := &fileNode{fs: d.fs}
	d.fs.fillAttr(&stat, 0, &out.Attr)
	inode := d.NewInode(ctx, node, gofuse.StableAttr{Mode: syscall.S_IFREG, Ino: stat.Ino})

	fileHandle, errno := node.acquire(path, false)
	if errno != 0 {
		return nil, nil, 0, errno
	}
	return inode, fileHandle, d.fs.openFlags(), 0
}

func (d *dirNode) Unlink(ctx context.Context, name string) syscall.Errno {
	if errno := d.fs.permit(ctx); errno != 0 {
		return errno
	}
	if hidden(name) {
		return syscall.ENOENT
	}
	return gofuse.ToErrno(syscall.Unlink(filepath.Join(d.fs.backing(&d.Inode), name)))
}

func (d *dirNode) Rename(ctx context.Context, name string, newParent gofuse.InodeEmbedder, newName string, flags uint32) syscall.Errno {
	if errno := d.fs.permit(ctx); errno != 0 {
		return errno
	}
	if hidden(name) || hidden(newName) {
		return syscall.EPERM
	}
	if flags&gofuse.RENAME_EXCHANGE != 0 {
		return syscall.ENOTSUP
	}
	target, ok := newParent.(*dirNode)
	if !ok {
		return syscall.EXDEV
	}
	oldPath := filepath.Join(d.fs.backing(&d.Inode), name)
	newPath := filepath.Join(d.fs.backing(&target.Inode), newName)

	// RENAME_NOREPLACE is 1 in renameat2(2).
	if flags&1 != 0 {
		if _, err := os.Lstat(newPath); err == nil {
			return syscall.EEXIST
		}
	}
	return gofuse.ToErrno(os.Rename(oldPath, newPath))
}

func (d *dirNode) Statfs(ctx context.Context, out *fuse.StatfsOut) syscall.Errno {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(d.fs.dataDir, &stat); err != nil {
		return gofuse.ToErrno(err)
	}
	out.FromStatfsT(&stat)
	return 0
}

func applyModeAndTimes(path string, in *fuse.SetAttrIn) syscall.Errno {
	if mode, ok := in.GetMode(); ok {
		if err := os.Chmod(path, os.FileMode(mode&0o7777)); err != nil {
			return gofuse.ToErrno(err)
		}
	}
	mtime, hasMtime := in.GetMTime()
	atime, hasAtime := in.GetATime()
	if hasMtime || hasAtime {
		info, err := os.Stat(path)
		if err != nil {
			return gofuse.ToErrno(err)
		}
		if !hasMtime {
			mtime = info.ModTime()
		}
		if !hasAtime {
			atime = mtime
		}
		if err := os.Chtimes(path, atime, mtime); err != nil {
			return gofuse.ToErrno(err)
		}
	}
	return 0
}

// fileNode is a regular file. While any handle is open the decrypted
// contents are held in content and shared by all handles.
type fileNode struct {
	gofuse.Inode
	fs *filesystem

	mu      sync.Mutex
	content []byte
	loaded  bool
	dirty   bool
	handles int
}

var _ gofuse.InodeEmbedder = (*fileNode)(nil)
var _ gofuse.NodeGetattrer = (*fileNode)(nil)
var _ gofuse.NodeSetattrer = (*fileNode)(nil)
var _ gofuse.NodeOpener = (*fileNode)(nil)

func (f *filesystem) openFlags() uint32 {
	if f.options.DirectIO {
		return fuse.FOPEN_DIRECT_IO
	}
	return 0
}

// loadLocked decrypts the backing blob into content. Callers hold mu.
func (n *fileNode) loadLocked(path string) syscall.Errno {
	if n.loaded {
		return 0
	}
	blob, err := os.ReadFile(path)
	if err != nil {
		return gofuse.ToErrno(err)
	}
	plaintext, err := n.fs.sealer.open(blob)
	if err != nil {
		n.fs.logger.Error("opening sealed file failed", "path", path, "error", err)
		return syscall.EIO
	}
	n.content, n.loaded, n.dirty = plaintext, true, false
	return 0
}

// persistLocked seals content back to the backing file. Callers hold mu.
func (n *fileNode) persistLocked() syscall.Errno {
	if !n.dirty {
		return 0
	}
	path := n.fs.backing(&n.Inode)
	info, err := os.Stat(path)
	if err != nil {
		return gofuse.ToErrno(err)
	}
	blob, err := n.fs.sealer.seal(n.content)
	if err != nil {
		n.fs.logger.Error("sealing file failed", "path", path, "error", err)
		return syscall.EIO
	}
	if err := writeFileAtomic(path, blob, info.Mode().Perm()); err != nil {
		n.fs.logger.Error("writing sealed file failed", "path", path, "error", err)
		return gofuse.ToErrno(err)
	}
	n.dirty = false
	return 0
}

// unloadLocked drops the plaintext once the last handle is gone.
func (n *fileNode) unloadLocked() {
	secret.Zero(n.content)
	n.content, n.loaded = nil, false
}

// acquire opens a handle, loading the contents on first open.
func (n *fileNode) acquire(path string, truncate bool) (*fileHandle, syscall.Errno) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if errno := n.loadLocked(path); errno != 0 {
		return nil, errno
	}
	if truncate && len(n.content) > 0 {
		secret.Zero(n.content)
		n.content = n.content[:0]
		n.dirty = true
	}
	n.handles++
	return &fileHandle{node: n}, 0
}

func (n *fileNode) Open(ctx context.Context, flags uint32) (gofuse.FileHandle, uint32, syscall.Errno) {
	if errno := n.fs.permit(ctx); errno != 0 {
		return nil, 0, errno
	}
	handle, errno := n.acquire(n.fs.backing(&n.Inode), flags&syscall.O_TRUNC != 0)
	if errno != 0 {
		return nil, 0, errno
	}
	return handle, n.fs.openFlags(), 0
}

func (n *fileNode) Getattr(ctx context.Context, _ gofuse.FileHandle, out *fuse.AttrOut) syscall.Errno {
	if errno := n.fs.permit(ctx); errno != 0 {
		return errno
	}
	path := n.fs.backing(&n.Inode)
	var stat syscall.Stat_t
	if err := syscall.Lstat(path, &stat); err != nil {
		return gofuse.ToErrno(err)
	}

	n.mu.Lock()
	loaded, size := n.loaded, int64(len(n.content))
	n.mu.Unlock()
	if !loaded {
		var err error
		if size, err = storedSize(path); err != nil {
			return syscall.EIO
		}
	}
	n.fs.fillAttr(&stat, size, &out.Attr)
	return 0
}

func (n *fileNode) Setattr(ctx context.Context, _ gofuse.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	if errno := n.fs.permit(ctx); errno != 0 {
		return errno
	}
	path := n.fs.backing(&n.Inode)
	if errno := applyModeAndTimes(path, in); errno != 0 {
		return errno
	}

	if size, ok := in.GetSize(); ok {
		n.mu.Lock()
		errno := n.loadLocked(path)
		if errno == 0 {
			n.resizeLocked(int64(size))
			errno = n.persistLocked()
			if n.handles == 0 {
				n.unloadLocked()
			}
		}
		n.mu.Unlock()
		if errno != 0 {
			return errno
		}
	}
	return n.Getattr(ctx, nil, out)
}

func (n *fileNode) resizeLocked(size int64) {
	current := int64(len(n.content))
	switch {
	case size < current:
		secret.Zero(n.content[size:])
		n.content = n.content[:size]
	case size > current:
		grown := make([]byte, size)
		copy(grown, n.content)
		secret.Zero(n.content)
		n.content = grown
	default:
		return
	}
	n.dirty = true
}

// fileHandle is one open file descriptor.
type fileHandle struct {
	node     *fileNode
	released bool
}

var _ gofuse.FileReader = (*fileHandle)(nil)
var _ gofuse.FileWriter = (*fileHandle)(nil)
var _ gofuse.FileFlusher = (*fileHandle)(nil)
var _ gofuse.FileFsyncer = (*fileHandle)(nil)
var _ gofuse.FileReleaser = (*fileHandle)(nil)

func (h *fileHandle) Read(_ context.Context, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	h.node.mu.Lock()
	defer h.node.mu.Unlock()

	if off >= int64(len(h.node.content)) {
		return fuse.ReadResultData(nil), 0
	}
	n := copy(dest, h.node.content[off:])
	return fuse.ReadResultData(dest[:n]), 0
}

func (h *fileHandle) Write(_ context.Context, data []byte, off int64) (uint32, syscall.Errno) {
	h.node.mu.Lock()
	defer h.node.mu.Unlock()

	end := off + int64(len(data))
	if end > int64(len(h.node.content)) {
		h.node.resizeLocked(end)
	}
	copy(h.node.content[off:], data)
	h.node.dirty = true
	return uint32(len(data)), 0
}

func (h *fileHandle) Flush(_ context.Context) syscall.Errno {
	h.node.mu.Lock()
	defer h.node.mu.Unlock()
	return h.node.persistLocked()
}

func (h *fileHandle) Fsync(_ context.Context, _ uint32) syscall.Errno {
	h.node.mu.Lock()
	defer h.node.mu.Unlock()
	return h.node.persistLocked()
}

func (h *fileHandle) Release(_ context.Context) syscall.Errno {
	h.node.mu.Lock()
	defer h.node.mu.Unlock()
	if h.released {
		return 0
	}
	h.released = true

	errno := h.node.persistLocked()
	h.node.handles--
	if h.node.handles == 0 {
		h.node.unloadLocked()
	}
	return errno
}
