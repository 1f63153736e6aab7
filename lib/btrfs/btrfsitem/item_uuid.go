// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package btrfsitem

import (
	"fmt"

	"git.lukeshu.com/btrfs-rootitem/lib/binstruct/binint"
	"git.lukeshu.com/btrfs-rootitem/lib/btrfs/btrfsprim"
)

// UUIDMap is the list of subvolume IDs that a UUID maps to.  It is
// nearly always one ID, but a received UUID can be shared by several
// subvolumes.
//
//	key.objectid = first half of UUID (see btrfsprim.UUIDKey)
//	key.offset   = second half of UUID
type UUIDMap struct { // UUID_SUBVOL=251 UUID_RECEIVED_SUBVOL=252
	ObjIDs []btrfsprim.ObjID
}

func (*UUIDMap) isItem() {}

const uuidMapEntrySize = 8

func (o *UUIDMap) UnmarshalBinary(dat []byte) (int, error) {
	if len(dat)%uuidMapEntrySize != 0 {
		return 0, fmt.Errorf("uuid map: length %d is not a multiple of %d", len(dat), uuidMapEntrySize)
	}
	o.ObjIDs = make([]btrfsprim.ObjID, 0, len(dat)/uuidMapEntrySize)
	n := 0
	for n < len(dat) {
		var id binint.U64le
		m, err := id.UnmarshalBinary(dat[n:])
		n += m
		if err != nil {
			return n, err
		}
		o.ObjIDs = append(o.ObjIDs, btrfsprim.ObjID(id))
	}
	return n, nil
}

func (o UUIDMap) MarshalBinary() ([]byte, error) {
	ret := make([]byte, 0, len(o.ObjIDs)*uuidMapEntrySize)
	for _, id := range o.ObjIDs {
		dat, err := binint.U64le(id).MarshalBinary()
		if err != nil {
			return ret, err
		}
		ret = append(ret, dat...)
	}
	return ret, nil
}
