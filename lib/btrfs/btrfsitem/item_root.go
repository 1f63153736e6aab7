// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package btrfsitem

import (
	"git.lukeshu.com/btrfs-rootitem/lib/binstruct"
	"git.lukeshu.com/btrfs-rootitem/lib/btrfs/btrfsprim"
	"git.lukeshu.com/btrfs-rootitem/lib/fmtutil"
)

// A Root goes in the ROOT_TREE and defines one of the other trees in
// the filesystem; for a subvolume or snapshot it is the record that
// TREE_SEARCH hands back.
//
// Key:
//
//	key.objectid = tree ID
//	key.offset   = one of:
//	   - 0 if objectid is one of the BTRFS_*_TREE_OBJECTID defines or a non-snapshot volume; or
//	   - transaction_id of when this snapshot was created
//
// Everything from GenerationV2 on was added in Linux 3.6; items
// written by older kernels stop at 0x0ef and are rejected by
// ReadRawRootItem.
type Root struct { // ROOT_ITEM=132
	Inode         Inode                `bin:"off=0x000, siz=0xa0"`
	Generation    btrfsprim.Generation `bin:"off=0x0a0, siz=0x08"`
	RootDirID     btrfsprim.ObjID      `bin:"off=0x0a8, siz=0x08"` // inode number of the root inode
	ByteNr        uint64               `bin:"off=0x0b0, siz=0x08"` // logical address of the root node
	ByteLimit     int64                `bin:"off=0x0b8, siz=0x08"` // always 0 (unused)
	BytesUsed     int64                `bin:"off=0x0c0, siz=0x08"`
	LastSnapshot  btrfsprim.Generation `bin:"off=0x0c8, siz=0x08"`
	Flags         RootFlags            `bin:"off=0x0d0, siz=0x08"`
	Refs          int32                `bin:"off=0x0d8, siz=0x04"`
	DropProgress  btrfsprim.Key        `bin:"off=0x0dc, siz=0x11"`
	DropLevel     uint8                `bin:"off=0x0ed, siz=0x01"`
	Level         uint8                `bin:"off=0x0ee, siz=0x01"`
	GenerationV2  btrfsprim.Generation `bin:"off=0x0ef, siz=0x08"` // equal to Generation unless an old kernel wrote the item
	UUID          btrfsprim.UUID       `bin:"off=0x0f7, siz=0x10"`
	ParentUUID    btrfsprim.UUID       `bin:"off=0x107, siz=0x10"`
	ReceivedUUID  btrfsprim.UUID       `bin:"off=0x117, siz=0x10"`
	CTransID      btrfsprim.Generation `bin:"off=0x127, siz=0x08"` // last change to the tree
	OTransID      btrfsprim.Generation `bin:"off=0x12f, siz=0x08"` // creation
	STransID      btrfsprim.Generation `bin:"off=0x137, siz=0x08"` // send
	RTransID      btrfsprim.Generation `bin:"off=0x13f, siz=0x08"` // receive
	CTime         btrfsprim.Time       `bin:"off=0x147, siz=0x0c"`
	OTime         btrfsprim.Time       `bin:"off=0x153, siz=0x0c"`
	STime         btrfsprim.Time       `bin:"off=0x15f, siz=0x0c"`
	RTime         btrfsprim.Time       `bin:"off=0x16b, siz=0x0c"`
	GlobalTreeID  btrfsprim.ObjID      `bin:"off=0x177, siz=0x08"`
	Reserved      [7]int64             `bin:"off=0x17f, siz=0x38"`
	binstruct.End `bin:"off=0x1b7"`
}

func (*Root) isItem() {}

type RootFlags uint64

const (
	ROOT_SUBVOL_RDONLY RootFlags = 1 << 0
	ROOT_SUBVOL_DEAD   RootFlags = 1 << 48
)

var rootFlagNames = func() []string {
	names := make([]string, 49)
	names[0] = "SUBVOL_RDONLY"
	names[48] = "SUBVOL_DEAD"
	return names
}()

func (f RootFlags) Has(req RootFlags) bool { return f&req == req }
func (f RootFlags) String() string         { return fmtutil.BitfieldString(f, rootFlagNames) }
