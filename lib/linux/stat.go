// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Package linux holds the subset of Linux's stat(2) vocabulary that
// btrfs stores in inode items.
package linux

type StatMode uint32

const (
	ModeFmt StatMode = 0o17_0000 // mask for the type bits

	ModeFmtNamedPipe   StatMode = 0o01_0000 // type: named pipe (FIFO)
	ModeFmtCharDevice  StatMode = 0o02_0000 // type: character device
	ModeFmtDir         StatMode = 0o04_0000 // type: directory
	ModeFmtBlockDevice StatMode = 0o06_0000 // type: block device
	ModeFmtRegular     StatMode = 0o10_0000 // type: regular file
	ModeFmtSymlink     StatMode = 0o12_0000 // type: symbolic link
	ModeFmtSocket      StatMode = 0o14_0000 // type: socket file

	ModePerm StatMode = 0o00_7777 // mask for permission bits
)

// IsDir reports whether mode describes a directory.
func (mode StatMode) IsDir() bool {
	return mode&ModeFmt == ModeFmtDir
}

// String returns the mode the way `ls -l` shows it.  Sockets are
// shown as 's' (GNU behavior).
func (mode StatMode) String() string {
	buf := [10]byte{
		// The type characters pair left-to-right with the
		// ModeFmtXXX values, in units of 0o01_0000.
		"?pc?d?b?-?l?s???"[(mode&ModeFmt)>>12],

		// owner
		"-r"[(mode>>8)&0o1],
		"-w"[(mode>>7)&0o1],
		"-xSs"[((mode>>6)&0o1)|((mode>>10)&0o2)],

		// group
		"-r"[(mode>>5)&0o1],
		"-w"[(mode>>4)&0o1],
		"-xSs"[((mode>>3)&0o1)|((mode>>9)&0o2)],

		// other
		"-r"[(mode>>2)&0o1],
		"-w"[(mode>>1)&0o1],
		"-xTt"[((mode>>0)&0o1)|((mode>>8)&0o2)],
	}

	return string(buf[:])
}
