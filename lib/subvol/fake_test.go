// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package subvol_test

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"git.lukeshu.com/btrfs-rootitem/lib/binstruct"
	"git.lukeshu.com/btrfs-rootitem/lib/btrfs/btrfsioctl"
	"git.lukeshu.com/btrfs-rootitem/lib/btrfs/btrfsitem"
	"git.lukeshu.com/btrfs-rootitem/lib/btrfs/btrfsprim"
)

// fakeFS is an in-memory btrfs that answers TREE_SEARCH and
// INO_LOOKUP the way the kernel does.
type fakeFS struct {
	self         btrfsprim.ObjID
	maxPerSearch int

	mu       sync.Mutex
	trees    map[btrfsprim.ObjID][]btrfsioctl.SearchItem
	dirs     map[[2]btrfsprim.ObjID]string
	searches int
}

func newFakeFS() *fakeFS {
	return &fakeFS{
		self:  btrfsprim.FS_TREE_OBJECTID,
		trees: make(map[btrfsprim.ObjID][]btrfsioctl.SearchItem),
		dirs:  make(map[[2]btrfsprim.ObjID]string),
	}
}

func (fs *fakeFS) addItem(tree btrfsprim.ObjID, key btrfsprim.Key, transID btrfsprim.Generation, data []byte) {
	items := append(fs.trees[tree], btrfsioctl.SearchItem{
		Header: btrfsioctl.SearchHeader{
			TransID:  transID,
			ObjectID: key.ObjectID,
			Offset:   key.Offset,
			Type:     uint32(key.ItemType),
			Len:      uint32(len(data)),
		},
		Data: data,
	})
	sort.Slice(items, func(i, j int) bool {
		return items[i].Key().Compare(items[j].Key()) < 0
	})
	fs.trees[tree] = items
}

func (fs *fakeFS) addRoot(t *testing.T, id btrfsprim.ObjID, root btrfsitem.Root) {
	t.Helper()
	dat, err := binstruct.Marshal(root)
	require.NoError(t, err)
	require.Len(t, dat, btrfsitem.RootItemSize)
	fs.addItem(btrfsprim.ROOT_TREE_OBJECTID,
		btrfsprim.Key{ObjectID: id, ItemType: btrfsprim.ROOT_ITEM_KEY, Offset: uint64(root.OTransID)},
		root.Generation, dat)
}

func (fs *fakeFS) addLink(t *testing.T, parent, child, dirID btrfsprim.ObjID, dirPath, name string) {
	t.Helper()
	dat, err := binstruct.Marshal(btrfsitem.RootRef{
		DirID:    dirID,
		Sequence: int64(child),
		Name:     []byte(name),
	})
	require.NoError(t, err)
	fs.addItem(btrfsprim.ROOT_TREE_OBJECTID,
		btrfsprim.Key{ObjectID: parent, ItemType: btrfsprim.ROOT_REF_KEY, Offset: uint64(child)},
		1, dat)
	fs.addItem(btrfsprim.ROOT_TREE_OBJECTID,
		btrfsprim.Key{ObjectID: child, ItemType: btrfsprim.ROOT_BACKREF_KEY, Offset: uint64(parent)},
		1, dat)
	fs.dirs[[2]btrfsprim.ObjID{parent, dirID}] = dirPath
}

func (fs *fakeFS) addUUID(t *testing.T, typ btrfsprim.ItemType, uuid btrfsprim.UUID, ids ...btrfsprim.ObjID) {
	t.Helper()
	dat, err := binstruct.Marshal(btrfsitem.UUIDMap{ObjIDs: ids})
	require.NoError(t, err)
	fs.addItem(btrfsprim.UUID_TREE_OBJECTID, btrfsprim.UUIDKey(typ, uuid), 1, dat)
}

func (fs *fakeFS) Searches() int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.searches
}

func (fs *fakeFS) TreeSearch(_ context.Context, key btrfsioctl.SearchKey) ([]btrfsioctl.SearchItem, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.searches++

	var ret []btrfsioctl.SearchItem
	size := 0
	for _, item := range fs.trees[key.TreeID] {
		if !key.Contains(item.Key(), item.Header.TransID) {
			continue
		}
		if uint32(len(ret)) >= key.NrItems || (fs.maxPerSearch > 0 && len(ret) >= fs.maxPerSearch) {
			break
		}
		size += binstruct.StaticSize(btrfsioctl.SearchHeader{}) + len(item.Data)
		if size > btrfsioctl.SearchBufSize {
			break
		}
		ret = append(ret, item)
	}

	// Go through the wire format, as the real ioctl does.
	buf, err := btrfsioctl.MarshalSearchResult(ret)
	if err != nil {
		return nil, err
	}
	return btrfsioctl.ParseSearchResult(buf, uint32(len(ret)))
}

func (fs *fakeFS) InoLookup(_ context.Context, treeID, objectID btrfsprim.ObjID) (btrfsprim.ObjID, string, error) {
	if treeID == 0 {
		treeID = fs.self
	}
	if objectID == btrfsprim.FIRST_FREE_OBJECTID {
		return treeID, "", nil
	}
	dir, ok := fs.dirs[[2]btrfsprim.ObjID{treeID, objectID}]
	if !ok {
		return 0, "", fmt.Errorf("ino_lookup tree=%v objectid=%v: %w", treeID, objectID, os.ErrNotExist)
	}
	return treeID, dir + "/", nil
}
