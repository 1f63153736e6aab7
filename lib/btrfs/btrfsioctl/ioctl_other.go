// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

//go:build !linux

package btrfsioctl

import (
	"context"
	"fmt"

	"git.lukeshu.com/btrfs-rootitem/lib/btrfs/btrfsprim"
)

type FS struct {
	path string
}

func Open(path string) (*FS, error) {
	return nil, fmt.Errorf("%s: %w", path, ErrUnsupported)
}

func (fs *FS) Name() string { return fs.path }

func (*FS) Close() error { return nil }

func (*FS) TreeSearch(context.Context, SearchKey) ([]SearchItem, error) {
	return nil, ErrUnsupported
}

func (*FS) InoLookup(context.Context, btrfsprim.ObjID, btrfsprim.ObjID) (btrfsprim.ObjID, string, error) {
	return 0, "", ErrUnsupported
}
