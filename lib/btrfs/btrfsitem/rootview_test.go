// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package btrfsitem_test

import (
	"encoding/binary"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.lukeshu.com/btrfs-rootitem/lib/binstruct"
	"git.lukeshu.com/btrfs-rootitem/lib/btrfs/btrfsitem"
	"git.lukeshu.com/btrfs-rootitem/lib/btrfs/btrfsprim"
)

const (
	offGeneration   = 0x0a0
	offFlags        = 0x0d0
	offUUID         = 0x0f7
	offParentUUID   = 0x107
	offReceivedUUID = 0x117
	offOTransID     = 0x12f
)

func randomRaw(t *testing.T, seed int64) *btrfsitem.RawRootItem {
	t.Helper()
	var raw btrfsitem.RawRootItem
	_, err := rand.New(rand.NewSource(seed)).Read(raw[:]) //nolint:gosec // Not crypto.
	require.NoError(t, err)
	return &raw
}

func unpack(raw *btrfsitem.RawRootItem) btrfsitem.RootItemView {
	var view btrfsitem.RootItemView
	btrfsitem.UnpackRootItem(&view, raw)
	return view
}

func TestRootItemSize(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 439, btrfsitem.RootItemSize)
	assert.Equal(t, uintptr(439), unsafe.Sizeof(btrfsitem.RawRootItem{}))
	assert.Equal(t, btrfsitem.RootItemSize, binstruct.StaticSize(btrfsitem.Root{}))
}

func TestUnpackRootItemConcrete(t *testing.T) {
	t.Parallel()
	var raw btrfsitem.RawRootItem
	for i := 0; i < 16; i++ {
		raw[offUUID+i] = byte(i)
		raw[offParentUUID+i] = byte(0xa0 + i)
		raw[offReceivedUUID+i] = byte(0xf0 - i)
	}
	binary.LittleEndian.PutUint64(raw[offGeneration:], 42)
	binary.LittleEndian.PutUint64(raw[offOTransID:], 7)
	binary.LittleEndian.PutUint64(raw[offFlags:], 1)

	view := unpack(&raw)
	assert.Equal(t, btrfsitem.RootItemView{
		UUID:         btrfsprim.MustParseUUID("00010203-0405-0607-0809-0a0b0c0d0e0f"),
		ParentUUID:   btrfsprim.MustParseUUID("a0a1a2a3-a4a5-a6a7-a8a9-aaabacadaeaf"),
		ReceivedUUID: btrfsprim.MustParseUUID("f0efeeed-eceb-eae9-e8e7-e6e5e4e3e2e1"),
		Generation:   42,
		OTransID:     7,
		Flags:        btrfsitem.ROOT_SUBVOL_RDONLY,
	}, view)
	assert.True(t, view.Readonly())
}

func TestUnpackRootItemZero(t *testing.T) {
	t.Parallel()
	var raw btrfsitem.RawRootItem
	assert.Equal(t, btrfsitem.RootItemView{}, unpack(&raw))
}

func TestUnpackRootItemDeterministic(t *testing.T) {
	t.Parallel()
	for seed := int64(0); seed < 16; seed++ {
		raw := randomRaw(t, seed)
		cpy := *raw
		assert.Equal(t, unpack(raw), unpack(raw))
		assert.Equal(t, cpy, *raw, "unpacking must not modify the source")
	}
}

func TestUnpackRootItemFlagsIsolation(t *testing.T) {
	t.Parallel()
	raw := randomRaw(t, 1)
	before := unpack(raw)

	binary.LittleEndian.PutUint64(raw[offFlags:], uint64(before.Flags)^uint64(btrfsitem.ROOT_SUBVOL_DEAD|btrfsitem.ROOT_SUBVOL_RDONLY))
	after := unpack(raw)

	assert.NotEqual(t, before.Flags, after.Flags)
	after.Flags = before.Flags
	assert.Equal(t, before, after)
}

func TestRootItemRoundTrip(t *testing.T) {
	t.Parallel()
	for seed := int64(0); seed < 16; seed++ {
		full := randomRaw(t, seed)

		// Only the view's fields set, everything else zero.
		var in btrfsitem.RawRootItem
		copy(in[offGeneration:offGeneration+8], full[offGeneration:])
		copy(in[offFlags:offFlags+8], full[offFlags:])
		copy(in[offUUID:offReceivedUUID+16], full[offUUID:])
		copy(in[offOTransID:offOTransID+8], full[offOTransID:])

		var out btrfsitem.RawRootItem
		unpack(&in).PackInto(&out)
		assert.Equal(t, in, out)

		// Packing into a populated item only touches the view's
		// fields.
		dst := *randomRaw(t, seed+100)
		orig := dst
		view := unpack(full)
		view.PackInto(&dst)
		assert.Equal(t, view, unpack(&dst))
		for i := range dst {
			inField := (i >= offGeneration && i < offGeneration+8) ||
				(i >= offFlags && i < offFlags+8) ||
				(i >= offUUID && i < offReceivedUUID+16) ||
				(i >= offOTransID && i < offOTransID+8)
			if !inField {
				assert.Equalf(t, orig[i], dst[i], "byte %#x", i)
			}
		}
	}
}

func TestUnpackRootItemConcurrent(t *testing.T) {
	t.Parallel()
	const n = 64
	raws := make([]*btrfsitem.RawRootItem, n)
	exp := make([]btrfsitem.RootItemView, n)
	for i := range raws {
		raws[i] = randomRaw(t, int64(i))
		exp[i] = unpack(raws[i])
	}

	act := make([]btrfsitem.RootItemView, n)
	var wg sync.WaitGroup
	for i := range raws {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			btrfsitem.UnpackRootItem(&act[i], raws[i])
		}()
	}
	wg.Wait()
	assert.Equal(t, exp, act)
}

func TestReadRawRootItem(t *testing.T) {
	t.Parallel()

	// Pre-3.6 kernels wrote items that stop before GenerationV2.
	_, err := btrfsitem.ReadRawRootItem(make([]byte, 0xef))
	var short *btrfsitem.ShortRootItemError
	require.True(t, errors.As(err, &short))
	assert.Equal(t, 0xef, short.Have)
	assert.EqualError(t, err, "root item is 239 bytes, need 439")

	dat := make([]byte, btrfsitem.RootItemSize+5)
	dat[offGeneration] = 9
	raw, err := btrfsitem.ReadRawRootItem(dat)
	require.NoError(t, err)
	dat[offGeneration] = 10
	assert.Equal(t, btrfsprim.Generation(9), unpack(raw).Generation, "raw item must not alias the input")
}

func TestRootViewMatchesUnpack(t *testing.T) {
	t.Parallel()
	raw := randomRaw(t, 7)
	var root btrfsitem.Root
	n, err := binstruct.Unmarshal(raw[:], &root)
	require.NoError(t, err)
	assert.Equal(t, btrfsitem.RootItemSize, n)
	assert.Equal(t, unpack(raw), root.View())
}

func TestRootFlagsString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "0x0(none)", btrfsitem.RootFlags(0).String())
	assert.Equal(t, "0x1(SUBVOL_RDONLY)", btrfsitem.ROOT_SUBVOL_RDONLY.String())
	assert.Equal(t, "0x1000000000001(SUBVOL_RDONLY|SUBVOL_DEAD)", (btrfsitem.ROOT_SUBVOL_RDONLY | btrfsitem.ROOT_SUBVOL_DEAD).String())
	assert.Equal(t, "0x4((1<<2))", btrfsitem.RootFlags(4).String())
}
