// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package btrfsprim

import (
	"fmt"
)

type ItemType uint8

const (
	INODE_ITEM_KEY           = ItemType(1)
	ROOT_ITEM_KEY            = ItemType(132)
	ROOT_BACKREF_KEY         = ItemType(144)
	ROOT_REF_KEY             = ItemType(156)
	UUID_SUBVOL_KEY          = ItemType(251)
	UUID_RECEIVED_SUBVOL_KEY = ItemType(252)

	MAX_KEY = ItemType(255)
)

var itemTypeNames = map[ItemType]string{
	INODE_ITEM_KEY:           "INODE_ITEM",
	ROOT_ITEM_KEY:            "ROOT_ITEM",
	ROOT_BACKREF_KEY:         "ROOT_BACKREF",
	ROOT_REF_KEY:             "ROOT_REF",
	UUID_SUBVOL_KEY:          "UUID_SUBVOL",
	UUID_RECEIVED_SUBVOL_KEY: "UUID_RECEIVED_SUBVOL",
	MAX_KEY:                  "MAX_KEY",
}

func (t ItemType) String() string {
	if name, ok := itemTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN.%d", t)
}
