// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

//go:build linux

package btrfsioctl

import (
	"context"
	"fmt"
	"os"
	"unsafe"

	"git.lukeshu.com/go/typedsync"
	"github.com/datawire/dlib/dlog"
	"golang.org/x/sys/unix"

	"git.lukeshu.com/btrfs-rootitem/lib/binstruct"
	"git.lukeshu.com/btrfs-rootitem/lib/btrfs/btrfsprim"
)

// _IOWR(BTRFS_IOCTL_MAGIC, n, 4096-byte args)
const (
	iocTreeSearch = 0xd0009411
	iocInoLookup  = 0xd0009412
)

var argsPool = typedsync.Pool[*[searchArgsSize]byte]{
	New: func() *[searchArgsSize]byte { return new([searchArgsSize]byte) },
}

// FS is an open file or directory on a mounted btrfs filesystem.
type FS struct {
	path string
	file *os.File
}

// Open opens path for issuing ioctls against the filesystem that
// holds it.
func Open(path string) (*FS, error) {
	if hostBigEndian {
		return nil, fmt.Errorf("%s: %w", path, ErrUnsupported)
	}
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return nil, &os.PathError{Op: "statfs", Path: path, Err: err}
	}
	if uint32(st.Type) != unix.BTRFS_SUPER_MAGIC {
		return nil, &NotBtrfsError{Path: path, Magic: uint32(st.Type)}
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &FS{path: path, file: file}, nil
}

func (fs *FS) Name() string { return fs.path }

func (fs *FS) Close() error {
	return fs.file.Close()
}

func (fs *FS) ioctl(name string, req uintptr, args *[searchArgsSize]byte) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, fs.file.Fd(), req, uintptr(unsafe.Pointer(args)))
	if errno != 0 {
		return fmt.Errorf("%s: %w", fs.path, os.NewSyscallError("ioctl("+name+")", errno))
	}
	return nil
}

// TreeSearch runs one BTRFS_IOC_TREE_SEARCH.  The kernel returns at
// most key.NrItems items, and fewer if they do not fit in
// SearchBufSize bytes; callers continue from the Pp() of the last
// returned key.
func (fs *FS) TreeSearch(ctx context.Context, key SearchKey) ([]SearchItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dlog.Tracef(ctx, "TREE_SEARCH %v nr_items=%d", key, key.NrItems)

	keyDat, err := binstruct.Marshal(key)
	if err != nil {
		return nil, err
	}
	args, _ := argsPool.Get()
	defer argsPool.Put(args)
	copy(args[:searchKeySize], keyDat)

	if err := fs.ioctl("BTRFS_IOC_TREE_SEARCH", iocTreeSearch, args); err != nil {
		return nil, err
	}

	if _, err := binstruct.Unmarshal(args[:searchKeySize], &key); err != nil {
		return nil, err
	}
	items, err := ParseSearchResult(args[searchKeySize:], key.NrItems)
	if err != nil {
		return nil, fmt.Errorf("%s: TREE_SEARCH: %w", fs.path, err)
	}
	return items, nil
}

// InoLookup runs BTRFS_IOC_INO_LOOKUP, returning the tree that was
// searched (useful when treeID is 0, meaning "the subvolume of this
// FS") and the path of directory objectID within that tree.
func (fs *FS) InoLookup(ctx context.Context, treeID, objectID btrfsprim.ObjID) (btrfsprim.ObjID, string, error) {
	if err := ctx.Err(); err != nil {
		return 0, "", err
	}
	dlog.Tracef(ctx, "INO_LOOKUP tree=%v objectid=%v", treeID, objectID)

	argsDat, err := binstruct.Marshal(InoLookupArgs{
		TreeID:   treeID,
		ObjectID: objectID,
	})
	if err != nil {
		return 0, "", err
	}
	args, _ := argsPool.Get()
	defer argsPool.Put(args)
	copy(args[:], argsDat)

	if err := fs.ioctl("BTRFS_IOC_INO_LOOKUP", iocInoLookup, args); err != nil {
		return 0, "", err
	}

	var out InoLookupArgs
	if _, err := binstruct.Unmarshal(args[:], &out); err != nil {
		return 0, "", err
	}
	return out.TreeID, out.Path(), nil
}
