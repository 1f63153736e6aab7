// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package btrfsitem

import (
	"fmt"

	"git.lukeshu.com/btrfs-rootitem/lib/binstruct"
	"git.lukeshu.com/btrfs-rootitem/lib/btrfs/btrfsprim"
)

// RootItemSize is the size of a struct btrfs_root_item as written by
// Linux 3.6 and later.
const RootItemSize = 0x1b7

// RawRootItem is a root item exactly as the kernel packs it.  None of
// its multi-byte fields are aligned, so it is only ever read through
// UnpackRootItem (or binstruct), never reinterpreted in place.
type RawRootItem [RootItemSize]byte

// ShortRootItemError is returned by ReadRawRootItem for a buffer that
// cannot hold a full root item: an item written by a pre-3.6 kernel,
// or a truncated read.
type ShortRootItemError struct {
	Have int
}

func (e *ShortRootItemError) Error() string {
	return fmt.Sprintf("root item is %d bytes, need %d", e.Have, RootItemSize)
}

// ReadRawRootItem copies the first RootItemSize bytes of dat into a
// new RawRootItem.  Trailing bytes beyond RootItemSize are ignored.
func ReadRawRootItem(dat []byte) (*RawRootItem, error) {
	if len(dat) < RootItemSize {
		return nil, &ShortRootItemError{Have: len(dat)}
	}
	var raw RawRootItem
	copy(raw[:], dat)
	return &raw, nil
}

// RootItemView is the subset of a root item that identifies a
// subvolume and its lineage.  It is a plain value: it is not tied to
// the RawRootItem it was unpacked from.
//
// The integers are stored little-endian on the wire (__le64) and are
// held here as ordinary numbers; the UUIDs are copied byte-for-byte.
type RootItemView struct {
	UUID         btrfsprim.UUID       `json:"uuid"`          // wire: 16 raw bytes at 0x0f7
	ParentUUID   btrfsprim.UUID       `json:"parent_uuid"`   // wire: 16 raw bytes at 0x107
	ReceivedUUID btrfsprim.UUID       `json:"received_uuid"` // wire: 16 raw bytes at 0x117
	Generation   btrfsprim.Generation `json:"generation"`    // wire: __le64 at 0x0a0
	OTransID     btrfsprim.Generation `json:"otransid"`      // wire: __le64 at 0x12f
	Flags        RootFlags            `json:"flags"`         // wire: __le64 at 0x0d0
}

// UnpackRootItem decodes the RootItemView fields of src into dst.  It
// does not validate anything, and is safe to call concurrently.
func UnpackRootItem(dst *RootItemView, src *RawRootItem) {
	var root Root
	if _, err := binstruct.Unmarshal(src[:], &root); err != nil {
		// Root is exactly RootItemSize bytes of fixed-size
		// integers, so any RawRootItem decodes.
		panic(err)
	}
	*dst = root.View()
}

// PackInto writes the view's fields into dst at their kernel offsets.
// All other bytes of dst are left as they were.
func (v RootItemView) PackInto(dst *RawRootItem) {
	var root Root
	if _, err := binstruct.Unmarshal(dst[:], &root); err != nil {
		panic(err)
	}
	root.UUID = v.UUID
	root.ParentUUID = v.ParentUUID
	root.ReceivedUUID = v.ReceivedUUID
	root.Generation = v.Generation
	root.OTransID = v.OTransID
	root.Flags = v.Flags
	dat, err := binstruct.Marshal(root)
	if err != nil {
		panic(err)
	}
	copy(dst[:], dat)
}

// View returns the RootItemView subset of an already decoded Root.
func (r Root) View() RootItemView {
	return RootItemView{
		UUID:         r.UUID,
		ParentUUID:   r.ParentUUID,
		ReceivedUUID: r.ReceivedUUID,
		Generation:   r.Generation,
		OTransID:     r.OTransID,
		Flags:        r.Flags,
	}
}

// Readonly reports whether the subvolume is marked read-only
// (ROOT_SUBVOL_RDONLY), as every snapshot used for send is.
func (v RootItemView) Readonly() bool {
	return v.Flags.Has(ROOT_SUBVOL_RDONLY)
}
