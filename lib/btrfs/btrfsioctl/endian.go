// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package btrfsioctl

import (
	"unsafe"
)

// hostBigEndian is whether the host stores integers big-endian.  The
// ioctl argument structs are host-endian, and SearchKey and
// SearchHeader decode them as little-endian.
var hostBigEndian = func() bool {
	x := uint16(1)
	return *(*byte)(unsafe.Pointer(&x)) == 0
}()
