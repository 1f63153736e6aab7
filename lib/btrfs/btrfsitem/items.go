// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Package btrfsitem contains the definitions of the btrfs tree
// "items" that describe subvolumes, and the alignment-safe unpacker
// for root items.
//
// The layouts match the uapi <linux/btrfs_tree.h> shipped with Linux
// 4.12 and later.
package btrfsitem

import (
	"fmt"

	"git.lukeshu.com/btrfs-rootitem/lib/binstruct"
	"git.lukeshu.com/btrfs-rootitem/lib/btrfs/btrfsprim"
)

type Type = btrfsprim.ItemType

type Item interface {
	isItem()
}

// UnmarshalItem decodes the body of an item, choosing the Go type
// from the key's item type.  The returned item may alias dat (the
// Name of a RootRef does).
func UnmarshalItem(key btrfsprim.Key, dat []byte) (Item, error) {
	var item Item
	switch key.ItemType {
	case btrfsprim.INODE_ITEM_KEY:
		item = new(Inode)
	case btrfsprim.ROOT_ITEM_KEY:
		raw, err := ReadRawRootItem(dat)
		if err != nil {
			return nil, fmt.Errorf("item %v: %w", key, err)
		}
		root := new(Root)
		if _, err := binstruct.Unmarshal(raw[:], root); err != nil {
			return nil, fmt.Errorf("item %v: %w", key, err)
		}
		return root, nil
	case btrfsprim.ROOT_REF_KEY, btrfsprim.ROOT_BACKREF_KEY:
		item = new(RootRef)
	case btrfsprim.UUID_SUBVOL_KEY, btrfsprim.UUID_RECEIVED_SUBVOL_KEY:
		item = new(UUIDMap)
	default:
		return nil, fmt.Errorf("item %v: unsupported item type", key)
	}
	n, err := binstruct.Unmarshal(dat, item)
	if err != nil {
		return nil, fmt.Errorf("item %v: %w", key, err)
	}
	if n < len(dat) {
		return nil, fmt.Errorf("item %v: left over data: got %d bytes but only consumed %d",
			key, len(dat), n)
	}
	return item, nil
}
