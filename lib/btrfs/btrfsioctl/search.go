// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Package btrfsioctl wraps the read-only btrfs ioctls that subvolume
// listing needs: BTRFS_IOC_TREE_SEARCH and BTRFS_IOC_INO_LOOKUP.
//
// The ioctl structures are in host byte order; they are decoded with
// binstruct (which is little-endian), so Open refuses to run on
// big-endian hosts.
package btrfsioctl

import (
	"bytes"
	"fmt"
	"math"
	"strings"

	"git.lukeshu.com/btrfs-rootitem/lib/binstruct"
	"git.lukeshu.com/btrfs-rootitem/lib/binstruct/binutil"
	"git.lukeshu.com/btrfs-rootitem/lib/btrfs/btrfsprim"
)

const (
	searchArgsSize = 4096
	searchKeySize  = 0x68

	// SearchBufSize is how many bytes of headers and item data a
	// single TREE_SEARCH can return.
	SearchBufSize = searchArgsSize - searchKeySize
)

// SearchKey is a struct btrfs_ioctl_search_key.  The kernel returns
// the items whose keys fall (lexicographically) between
// (MinObjectID, MinType, MinOffset) and (MaxObjectID, MaxType,
// MaxOffset), and that were written in a transaction between
// MinTransID and MaxTransID.
type SearchKey struct {
	TreeID        btrfsprim.ObjID      `bin:"off=0x00, siz=0x8"`
	MinObjectID   btrfsprim.ObjID      `bin:"off=0x08, siz=0x8"`
	MaxObjectID   btrfsprim.ObjID      `bin:"off=0x10, siz=0x8"`
	MinOffset     uint64               `bin:"off=0x18, siz=0x8"`
	MaxOffset     uint64               `bin:"off=0x20, siz=0x8"`
	MinTransID    btrfsprim.Generation `bin:"off=0x28, siz=0x8"`
	MaxTransID    btrfsprim.Generation `bin:"off=0x30, siz=0x8"`
	MinType       uint32               `bin:"off=0x38, siz=0x4"`
	MaxType       uint32               `bin:"off=0x3c, siz=0x4"`
	NrItems       uint32               `bin:"off=0x40, siz=0x4"` // in: max items to return; out: items returned
	Unused        [36]byte             `bin:"off=0x44, siz=0x24"`
	binstruct.End `bin:"off=0x68"`
}

// NewSearchKey returns a SearchKey over the key range [min, max] of
// a tree, for any transaction.
func NewSearchKey(treeID btrfsprim.ObjID, min, max btrfsprim.Key, nrItems uint32) SearchKey {
	key := SearchKey{
		TreeID:     treeID,
		MaxTransID: math.MaxUint64,
		NrItems:    nrItems,
	}
	key.SetMin(min)
	key.SetMax(max)
	return key
}

func (k SearchKey) Min() btrfsprim.Key {
	return btrfsprim.Key{
		ObjectID: k.MinObjectID,
		ItemType: btrfsprim.ItemType(k.MinType),
		Offset:   k.MinOffset,
	}
}

func (k SearchKey) Max() btrfsprim.Key {
	return btrfsprim.Key{
		ObjectID: k.MaxObjectID,
		ItemType: btrfsprim.ItemType(k.MaxType),
		Offset:   k.MaxOffset,
	}
}

func (k *SearchKey) SetMin(min btrfsprim.Key) {
	k.MinObjectID = min.ObjectID
	k.MinType = uint32(min.ItemType)
	k.MinOffset = min.Offset
}

func (k *SearchKey) SetMax(max btrfsprim.Key) {
	k.MaxObjectID = max.ObjectID
	k.MaxType = uint32(max.ItemType)
	k.MaxOffset = max.Offset
}

// Contains reports whether the kernel would return an item with the
// given key and transaction ID for this search.
func (k SearchKey) Contains(key btrfsprim.Key, transID btrfsprim.Generation) bool {
	return key.Compare(k.Min()) >= 0 &&
		key.Compare(k.Max()) <= 0 &&
		transID >= k.MinTransID &&
		transID <= k.MaxTransID
}

func (k SearchKey) String() string {
	return fmt.Sprintf("tree=%v %v..%v", k.TreeID, k.Min().Format(k.TreeID), k.Max().Format(k.TreeID))
}

// SearchHeader is a struct btrfs_ioctl_search_header; in the result
// buffer each one is immediately followed by Len bytes of item data.
type SearchHeader struct {
	TransID       btrfsprim.Generation `bin:"off=0x00, siz=0x8"`
	ObjectID      btrfsprim.ObjID      `bin:"off=0x08, siz=0x8"`
	Offset        uint64               `bin:"off=0x10, siz=0x8"`
	Type          uint32               `bin:"off=0x18, siz=0x4"`
	Len           uint32               `bin:"off=0x1c, siz=0x4"`
	binstruct.End `bin:"off=0x20"`
}

func (h SearchHeader) Key() btrfsprim.Key {
	return btrfsprim.Key{
		ObjectID: h.ObjectID,
		ItemType: btrfsprim.ItemType(h.Type),
		Offset:   h.Offset,
	}
}

// SearchItem is one result of a tree search.  Data is a private copy,
// not a slice of the ioctl buffer.
type SearchItem struct {
	Header SearchHeader
	Data   []byte
}

func (it SearchItem) Key() btrfsprim.Key { return it.Header.Key() }

// ParseSearchResult decodes nrItems results from the buffer of a
// struct btrfs_ioctl_search_args.  Headers in the buffer are packed
// back-to-back with item data, so they are generally not aligned.
func ParseSearchResult(buf []byte, nrItems uint32) ([]SearchItem, error) {
	ret := make([]SearchItem, 0, nrItems)
	off := 0
	for i := uint32(0); i < nrItems; i++ {
		var item SearchItem
		n, err := binstruct.Unmarshal(buf[off:], &item.Header)
		if err != nil {
			return ret, fmt.Errorf("search result %d: header at %#x: %w", i, off, err)
		}
		off += n
		if err := binutil.NeedNBytes(buf[off:], int(item.Header.Len)); err != nil {
			return ret, fmt.Errorf("search result %d: item %v at %#x: %w", i, item.Key(), off, err)
		}
		item.Data = make([]byte, item.Header.Len)
		off += copy(item.Data, buf[off:])
		ret = append(ret, item)
	}
	return ret, nil
}

// MarshalSearchResult is the inverse of ParseSearchResult.  The
// header Len fields are set from the data.
func MarshalSearchResult(items []SearchItem) ([]byte, error) {
	var ret []byte
	for _, item := range items {
		item.Header.Len = uint32(len(item.Data))
		dat, err := binstruct.Marshal(item.Header)
		if err != nil {
			return ret, err
		}
		ret = append(ret, dat...)
		ret = append(ret, item.Data...)
	}
	return ret, nil
}

// InoLookupArgs is a struct btrfs_ioctl_ino_lookup_args.
type InoLookupArgs struct {
	TreeID        btrfsprim.ObjID `bin:"off=0x000, siz=0x008"` // 0 means "the tree of the open file"
	ObjectID      btrfsprim.ObjID `bin:"off=0x008, siz=0x008"`
	Name          [4080]byte      `bin:"off=0x010, siz=0xff0"`
	binstruct.End `bin:"off=0x1000"`
}

// Path returns the NUL-terminated path that the kernel filled in,
// without its trailing slash.
func (a InoLookupArgs) Path() string {
	name := a.Name[:]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	return strings.TrimRight(string(name), "/")
}
