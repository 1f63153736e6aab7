// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package btrfsioctl

import (
	"errors"
	"fmt"
)

// ErrUnsupported is returned by Open on hosts where the btrfs ioctls
// are unavailable (non-Linux) or where their host-endian structures
// cannot be decoded (big-endian).
var ErrUnsupported = errors.New("btrfs ioctls are not supported on this host")

// NotBtrfsError is returned by Open for a path that is not on a
// btrfs filesystem.
type NotBtrfsError struct {
	Path  string
	Magic uint32 // statfs f_type
}

func (e *NotBtrfsError) Error() string {
	return fmt.Sprintf("%s: not on a btrfs filesystem (f_type=%#x)", e.Path, e.Magic)
}
