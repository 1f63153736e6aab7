// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package btrfsitem

import (
	"git.lukeshu.com/btrfs-rootitem/lib/binstruct"
	"git.lukeshu.com/btrfs-rootitem/lib/binstruct/binutil"
	"git.lukeshu.com/btrfs-rootitem/lib/btrfs/btrfsprim"
)

// RootRef links a subvolume into the directory of its parent.
//
// Key:
//
//	ROOT_REF:     key.objectid = parent tree ID, key.offset = child tree ID
//	ROOT_BACKREF: key.objectid = child tree ID,  key.offset = parent tree ID
type RootRef struct { // ROOT_REF=156 ROOT_BACKREF=144
	DirID         btrfsprim.ObjID `bin:"off=0x00, siz=0x8"` // directory in the parent that holds the subvolume
	Sequence      int64           `bin:"off=0x08, siz=0x8"` // index of that directory entry
	NameLen       uint16          `bin:"off=0x10, siz=0x2"` // [ignored-when-writing]
	binstruct.End `bin:"off=0x12"`
	Name          []byte `bin:"-"`
}

func (*RootRef) isItem() {}

func (o *RootRef) UnmarshalBinary(dat []byte) (int, error) {
	n, err := binstruct.UnmarshalWithoutInterface(dat, o)
	if err != nil {
		return n, err
	}
	if err := binutil.NeedNBytes(dat, n+int(o.NameLen)); err != nil {
		return n, err
	}
	o.Name = dat[n : n+int(o.NameLen)]
	n += int(o.NameLen)
	return n, nil
}

func (o RootRef) MarshalBinary() ([]byte, error) {
	o.NameLen = uint16(len(o.Name))
	dat, err := binstruct.MarshalWithoutInterface(o)
	if err != nil {
		return dat, err
	}
	dat = append(dat, o.Name...)
	return dat, nil
}
