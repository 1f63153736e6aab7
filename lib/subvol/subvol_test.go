// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package subvol_test

import (
	"errors"
	"testing"
	"time"

	"github.com/datawire/dlib/dlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.lukeshu.com/btrfs-rootitem/lib/btrfs/btrfsitem"
	"git.lukeshu.com/btrfs-rootitem/lib/btrfs/btrfsprim"
	"git.lukeshu.com/btrfs-rootitem/lib/subvol"
)

var (
	topUUID  = btrfsprim.MustParseUUID("00000000-0000-0000-0000-000000000005")
	homeUUID = btrfsprim.MustParseUUID("a0dd94ed-e60c-42e8-8632-64e8d4765a43")
	snapUUID = btrfsprim.MustParseUUID("5c1fbd0b-3b6e-4a4e-9d6e-6f1f1a9a0101")
	srcUUID  = btrfsprim.MustParseUUID("11111111-2222-3333-4444-555555555555")

	homeOTime = btrfsprim.Time{Sec: 1672531200}
	homeCTime = btrfsprim.Time{Sec: 1675209600, NSec: 500}
	snapTime  = btrfsprim.Time{Sec: 1675296000, NSec: 7}
)

// testFS lays out:
//
//	5   <top level>
//	256 home                  (dir 256 of 5)
//	257 home/snapshots/snap   (dir 300 of 256), read-only snapshot of 256
//	258 old                   (dir 256 of 5), pre-3.6 ROOT_ITEM
//	259                       ROOT_ITEM only, being deleted
func testFS(t *testing.T) *fakeFS {
	t.Helper()
	fs := newFakeFS()
	fs.maxPerSearch = 2

	fs.addRoot(t, btrfsprim.FS_TREE_OBJECTID, btrfsitem.Root{
		UUID:       topUUID,
		Generation: 100,
	})
	fs.addRoot(t, 256, btrfsitem.Root{
		UUID:       homeUUID,
		Generation: 90,
		OTransID:   10,
		CTime:      homeCTime,
		OTime:      homeOTime,
	})
	fs.addRoot(t, 257, btrfsitem.Root{
		UUID:         snapUUID,
		ParentUUID:   homeUUID,
		ReceivedUUID: srcUUID,
		Generation:   50,
		OTransID:     50,
		Flags:        btrfsitem.ROOT_SUBVOL_RDONLY,
		CTime:        snapTime,
		OTime:        snapTime,
	})
	fs.addItem(btrfsprim.ROOT_TREE_OBJECTID,
		btrfsprim.Key{ObjectID: 258, ItemType: btrfsprim.ROOT_ITEM_KEY},
		3, make([]byte, 0xef))
	fs.addRoot(t, 259, btrfsitem.Root{
		Generation: 60,
		Flags:      btrfsitem.ROOT_SUBVOL_DEAD,
	})

	fs.addLink(t, btrfsprim.FS_TREE_OBJECTID, 256, 256, "", "home")
	fs.addLink(t, 256, 257, 300, "snapshots", "snap")
	fs.addLink(t, btrfsprim.FS_TREE_OBJECTID, 258, 256, "", "old")

	fs.addUUID(t, btrfsprim.UUID_SUBVOL_KEY, homeUUID, 256)
	fs.addUUID(t, btrfsprim.UUID_SUBVOL_KEY, snapUUID, 257)
	fs.addUUID(t, btrfsprim.UUID_RECEIVED_SUBVOL_KEY, srcUUID, 257)
	return fs
}

func TestList(t *testing.T) {
	t.Parallel()
	ctx := dlog.NewTestContext(t, false)
	fs := testFS(t)

	subvols, err := subvol.List(ctx, fs)
	require.NoError(t, err)

	exp := []subvol.Subvolume{
		{
			ID:      256,
			TransID: 90,
			Root: &btrfsitem.RootItemView{
				UUID:       homeUUID,
				Generation: 90,
				OTransID:   10,
			},
			CTime:    homeCTime.ToStd(),
			OTime:    homeOTime.ToStd(),
			ParentID: 5,
			DirID:    256,
			Sequence: 256,
			Name:     "home",
			Path:     "home",
		},
		{
			ID:      257,
			TransID: 50,
			Root: &btrfsitem.RootItemView{
				UUID:         snapUUID,
				ParentUUID:   homeUUID,
				ReceivedUUID: srcUUID,
				Generation:   50,
				OTransID:     50,
				Flags:        btrfsitem.ROOT_SUBVOL_RDONLY,
			},
			CTime:    snapTime.ToStd(),
			OTime:    snapTime.ToStd(),
			ParentID: 256,
			DirID:    300,
			Sequence: 257,
			Name:     "snap",
			Path:     "home/snapshots/snap",
		},
		{
			ID:       258,
			TransID:  3,
			ParentID: 5,
			DirID:    256,
			Sequence: 258,
			Name:     "old",
			Path:     "old",
		},
		{
			ID:      259,
			TransID: 60,
			Root: &btrfsitem.RootItemView{
				Generation: 60,
				Flags:      btrfsitem.ROOT_SUBVOL_DEAD,
			},
		},
	}
	assert.Equal(t, exp, subvols)
	assert.Greater(t, fs.Searches(), 2, "listing should have needed several searches")

	assert.False(t, subvols[0].Readonly())
	assert.True(t, subvols[1].Readonly())
	assert.False(t, subvols[2].Readonly())
}

func TestListEmpty(t *testing.T) {
	t.Parallel()
	ctx := dlog.NewTestContext(t, false)
	fs := newFakeFS()
	fs.addRoot(t, btrfsprim.FS_TREE_OBJECTID, btrfsitem.Root{Generation: 1})

	subvols, err := subvol.List(ctx, fs)
	require.NoError(t, err)
	assert.Empty(t, subvols)
}

func TestGet(t *testing.T) {
	t.Parallel()
	ctx := dlog.NewTestContext(t, false)
	fs := testFS(t)

	sv, err := subvol.Get(ctx, fs, 257)
	require.NoError(t, err)
	assert.Equal(t, "home/snapshots/snap", sv.Path)
	assert.Equal(t, btrfsprim.ObjID(256), sv.ParentID)
	require.NotNil(t, sv.Root)
	assert.Equal(t, homeUUID, sv.Root.ParentUUID)
	assert.True(t, sv.OTime.Equal(time.Unix(1675296000, 7)))
	assert.True(t, sv.CTime.Equal(sv.OTime))

	top, err := subvol.Get(ctx, fs, btrfsprim.FS_TREE_OBJECTID)
	require.NoError(t, err)
	assert.Equal(t, "", top.Path)
	assert.Equal(t, btrfsprim.ObjID(0), top.ParentID)
	assert.Equal(t, btrfsprim.Generation(100), top.Root.Generation)
	assert.True(t, top.CTime.IsZero(), "unset times stay zero")
	assert.True(t, top.OTime.IsZero())

	_, err = subvol.Get(ctx, fs, 999)
	assert.True(t, errors.Is(err, subvol.ErrNotFound))
}

func TestContaining(t *testing.T) {
	t.Parallel()
	ctx := dlog.NewTestContext(t, false)
	fs := testFS(t)
	fs.self = 257

	id, err := subvol.Containing(ctx, fs)
	require.NoError(t, err)
	assert.Equal(t, btrfsprim.ObjID(257), id)
}

func TestResolver(t *testing.T) {
	t.Parallel()
	ctx := dlog.NewTestContext(t, false)
	fs := testFS(t)
	r := subvol.NewResolver(fs)

	id, err := r.LookupUUID(ctx, homeUUID)
	require.NoError(t, err)
	assert.Equal(t, btrfsprim.ObjID(256), id)

	before := fs.Searches()
	id, err = r.LookupUUID(ctx, homeUUID)
	require.NoError(t, err)
	assert.Equal(t, btrfsprim.ObjID(256), id)
	assert.Equal(t, before, fs.Searches(), "second lookup should be cached")

	ids, err := r.LookupReceivedUUID(ctx, srcUUID)
	require.NoError(t, err)
	assert.Equal(t, []btrfsprim.ObjID{257}, ids)
	ids[0] = 999
	ids, err = r.LookupReceivedUUID(ctx, srcUUID)
	require.NoError(t, err)
	assert.Equal(t, []btrfsprim.ObjID{257}, ids, "callers must not be able to modify the cache")

	_, err = r.LookupUUID(ctx, srcUUID)
	assert.True(t, errors.Is(err, subvol.ErrNotFound))

	before = fs.Searches()
	_, err = r.LookupUUID(ctx, btrfsprim.UUID{})
	assert.True(t, errors.Is(err, subvol.ErrNotFound))
	assert.Equal(t, before, fs.Searches(), "the zero UUID never needs a search")
}
