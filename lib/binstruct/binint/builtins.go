// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Package binint provides the fixed-width little-endian integer types
// that binstruct substitutes for the native Go integer kinds.
//
// Every btrfs on-disk structure, and every ioctl structure on the
// little-endian hosts we support, stores integers little-endian, so
// there are no big-endian variants here.
package binint

import (
	"git.lukeshu.com/btrfs-rootitem/lib/binstruct/binutil"
)

func putLE(v uint64, size int) []byte {
	buf := make([]byte, size)
	for i := range buf {
		buf[i] = byte(v >> (8 * i))
	}
	return buf
}

func getLE(dat []byte, size int) (uint64, error) {
	if err := binutil.NeedNBytes(dat, size); err != nil {
		return 0, err
	}
	var v uint64
	for i := size - 1; i >= 0; i-- {
		v = v<<8 | uint64(dat[i])
	}
	return v, nil
}

// unsigned

type U8 uint8

func (U8) BinaryStaticSize() int            { return 1 }
func (x U8) MarshalBinary() ([]byte, error) { return putLE(uint64(x), 1), nil }
func (x *U8) UnmarshalBinary(dat []byte) (int, error) {
	v, err := getLE(dat, 1)
	if err != nil {
		return 0, err
	}
	*x = U8(v)
	return 1, nil
}

type U16le uint16

func (U16le) BinaryStaticSize() int            { return 2 }
func (x U16le) MarshalBinary() ([]byte, error) { return putLE(uint64(x), 2), nil }
func (x *U16le) UnmarshalBinary(dat []byte) (int, error) {
	v, err := getLE(dat, 2)
	if err != nil {
		return 0, err
	}
	*x = U16le(v)
	return 2, nil
}

type U32le uint32

func (U32le) BinaryStaticSize() int            { return 4 }
func (x U32le) MarshalBinary() ([]byte, error) { return putLE(uint64(x), 4), nil }
func (x *U32le) UnmarshalBinary(dat []byte) (int, error) {
	v, err := getLE(dat, 4)
	if err != nil {
		return 0, err
	}
	*x = U32le(v)
	return 4, nil
}

type U64le uint64

func (U64le) BinaryStaticSize() int            { return 8 }
func (x U64le) MarshalBinary() ([]byte, error) { return putLE(uint64(x), 8), nil }
func (x *U64le) UnmarshalBinary(dat []byte) (int, error) {
	v, err := getLE(dat, 8)
	if err != nil {
		return 0, err
	}
	*x = U64le(v)
	return 8, nil
}

// signed; two's complement, so the low bytes of the sign-extended
// value are the encoding.

type I8 int8

func (I8) BinaryStaticSize() int            { return 1 }
func (x I8) MarshalBinary() ([]byte, error) { return putLE(uint64(x), 1), nil }
func (x *I8) UnmarshalBinary(dat []byte) (int, error) {
	v, err := getLE(dat, 1)
	if err != nil {
		return 0, err
	}
	*x = I8(int8(uint8(v)))
	return 1, nil
}

type I16le int16

func (I16le) BinaryStaticSize() int            { return 2 }
func (x I16le) MarshalBinary() ([]byte, error) { return putLE(uint64(x), 2), nil }
func (x *I16le) UnmarshalBinary(dat []byte) (int, error) {
	v, err := getLE(dat, 2)
	if err != nil {
		return 0, err
	}
	*x = I16le(int16(uint16(v)))
	return 2, nil
}

type I32le int32

func (I32le) BinaryStaticSize() int            { return 4 }
func (x I32le) MarshalBinary() ([]byte, error) { return putLE(uint64(x), 4), nil }
func (x *I32le) UnmarshalBinary(dat []byte) (int, error) {
	v, err := getLE(dat, 4)
	if err != nil {
		return 0, err
	}
	*x = I32le(int32(uint32(v)))
	return 4, nil
}

type I64le int64

func (I64le) BinaryStaticSize() int            { return 8 }
func (x I64le) MarshalBinary() ([]byte, error) { return putLE(uint64(x), 8), nil }
func (x *I64le) UnmarshalBinary(dat []byte) (int, error) {
	v, err := getLE(dat, 8)
	if err != nil {
		return 0, err
	}
	*x = I64le(int64(v))
	return 8, nil
}
