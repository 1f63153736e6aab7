// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package btrfsprim

import (
	"fmt"
	"math"
)

type ObjID uint64

const maxUint64pp = 0x1_00000000_00000000

const (
	// The IDs of the various trees
	ROOT_TREE_OBJECTID        ObjID = 1 // holds pointers to all of the tree roots
	EXTENT_TREE_OBJECTID      ObjID = 2
	CHUNK_TREE_OBJECTID       ObjID = 3
	DEV_TREE_OBJECTID         ObjID = 4
	FS_TREE_OBJECTID          ObjID = 5 // the top-level subvolume
	ROOT_TREE_DIR_OBJECTID    ObjID = 6 // directory objectid inside the root tree
	CSUM_TREE_OBJECTID        ObjID = 7
	QUOTA_TREE_OBJECTID       ObjID = 8
	UUID_TREE_OBJECTID        ObjID = 9 // for storing items that use the UUID_*_KEY
	FREE_SPACE_TREE_OBJECTID  ObjID = 10
	BLOCK_GROUP_TREE_OBJECTID ObjID = 11

	TREE_RELOC_OBJECTID      ObjID = maxUint64pp - 8
	DATA_RELOC_TREE_OBJECTID ObjID = maxUint64pp - 9

	// Subvolumes and all files have objectids in this range.
	FIRST_FREE_OBJECTID ObjID = 256
	LAST_FREE_OBJECTID  ObjID = maxUint64pp - 256

	// The root directory of every subvolume.
	FIRST_SUBVOL_DIR_OBJECTID ObjID = 256
	EMPTY_SUBVOL_DIR_OBJECTID ObjID = 2

	MAX_OBJECTID ObjID = math.MaxUint64
)

var objidRootTreeNames = map[ObjID]string{
	ROOT_TREE_OBJECTID:        "ROOT_TREE",
	EXTENT_TREE_OBJECTID:      "EXTENT_TREE",
	CHUNK_TREE_OBJECTID:       "CHUNK_TREE",
	DEV_TREE_OBJECTID:         "DEV_TREE",
	FS_TREE_OBJECTID:          "FS_TREE",
	ROOT_TREE_DIR_OBJECTID:    "ROOT_TREE_DIR",
	CSUM_TREE_OBJECTID:        "CSUM_TREE",
	QUOTA_TREE_OBJECTID:       "QUOTA_TREE",
	UUID_TREE_OBJECTID:        "UUID_TREE",
	FREE_SPACE_TREE_OBJECTID:  "FREE_SPACE_TREE",
	BLOCK_GROUP_TREE_OBJECTID: "BLOCK_GROUP_TREE",
	TREE_RELOC_OBJECTID:       "TREE_RELOC",
	DATA_RELOC_TREE_OBJECTID:  "DATA_RELOC_TREE",
}

// Format renders the ID the way it is conventionally shown for keys
// in the given tree.
func (id ObjID) Format(tree ObjID) string {
	switch tree {
	case UUID_TREE_OBJECTID:
		return fmt.Sprintf("%#016x", uint64(id))
	default:
		if name, ok := objidRootTreeNames[id]; ok {
			return name
		}
		return fmt.Sprintf("%d", int64(id))
	}
}

func (id ObjID) String() string {
	return id.Format(0)
}
