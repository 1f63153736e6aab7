// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Package subvol lists the subvolumes of a mounted btrfs filesystem
// by searching its root tree.
package subvol

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/datawire/dlib/dlog"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"git.lukeshu.com/btrfs-rootitem/lib/binstruct"
	"git.lukeshu.com/btrfs-rootitem/lib/btrfs/btrfsioctl"
	"git.lukeshu.com/btrfs-rootitem/lib/btrfs/btrfsitem"
	"git.lukeshu.com/btrfs-rootitem/lib/btrfs/btrfsprim"
)

// Searcher is the pair of ioctls that subvolume listing is built on.
// *btrfsioctl.FS implements it against a live filesystem.
type Searcher interface {
	TreeSearch(ctx context.Context, key btrfsioctl.SearchKey) ([]btrfsioctl.SearchItem, error)
	InoLookup(ctx context.Context, treeID, objectID btrfsprim.ObjID) (btrfsprim.ObjID, string, error)
}

var _ Searcher = (*btrfsioctl.FS)(nil)

var ErrNotFound = errors.New("not found")

// searchBatchSize is the item count requested per TREE_SEARCH_V2 call.
const searchBatchSize uint32 = 4096

// Subvolume is what the root tree records about one subvolume.
type Subvolume struct {
	ID      btrfsprim.ObjID      `json:"id"`
	TransID btrfsprim.Generation `json:"transid"` // transaction that last wrote the ROOT_ITEM

	// Root is nil if the ROOT_ITEM was missing or too short to
	// unpack.
	Root *btrfsitem.RootItemView `json:"root"`

	// From the ROOT_ITEM; zero if it was missing or too short, or
	// if the kernel never set them.
	CTime time.Time `json:"ctime"` // last change to the subvolume
	OTime time.Time `json:"otime"` // creation

	// From the ROOT_BACKREF; ParentID is 0 if there is none (the
	// top-level subvolume, or one that is being deleted).
	ParentID btrfsprim.ObjID `json:"parent_id"`
	DirID    btrfsprim.ObjID `json:"dir_id"`
	Sequence int64           `json:"sequence"`
	Name     string          `json:"name"`

	// Path relative to the top-level subvolume; empty if it could
	// not be resolved.
	Path string `json:"path"`
}

func (sv Subvolume) Readonly() bool {
	return sv.Root != nil && sv.Root.Readonly()
}

// searchAll runs TreeSearch repeatedly until the whole range of key
// has been returned.
func searchAll(ctx context.Context, s Searcher, key btrfsioctl.SearchKey, fn func(btrfsioctl.SearchItem) error) error {
	max := key.Max()
	for {
		items, err := s.TreeSearch(ctx, key)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return nil
		}
		for _, item := range items {
			if err := fn(item); err != nil {
				return err
			}
		}
		last := items[len(items)-1].Key()
		if last.Compare(max) >= 0 {
			return nil
		}
		key.SetMin(last.Pp())
	}
}

func rootTreeSearch(minID, maxID btrfsprim.ObjID) btrfsioctl.SearchKey {
	return btrfsioctl.NewSearchKey(btrfsprim.ROOT_TREE_OBJECTID,
		btrfsprim.Key{
			ObjectID: minID,
			ItemType: btrfsprim.ROOT_ITEM_KEY,
			Offset:   0,
		},
		btrfsprim.Key{
			ObjectID: maxID,
			ItemType: btrfsprim.ROOT_BACKREF_KEY,
			Offset:   btrfsprim.MaxOffset,
		},
		searchBatchSize)
}

// addItem merges a ROOT_ITEM or ROOT_BACKREF into sv; it reports
// whether the item was one of those.
func addItem(ctx context.Context, sv *Subvolume, item btrfsioctl.SearchItem) (bool, error) {
	switch btrfsprim.ItemType(item.Header.Type) {
	case btrfsprim.ROOT_ITEM_KEY:
		sv.TransID = item.Header.TransID
		raw, err := btrfsitem.ReadRawRootItem(item.Data)
		if err != nil {
			dlog.Warnf(ctx, "subvolume %v: %v", sv.ID, err)
			return true, nil
		}
		var view btrfsitem.RootItemView
		btrfsitem.UnpackRootItem(&view, raw)
		sv.Root = &view
		var root btrfsitem.Root
		if _, err := binstruct.Unmarshal(raw[:], &root); err != nil {
			return true, fmt.Errorf("subvolume %v: ROOT_ITEM: %w", sv.ID, err)
		}
		sv.CTime = stdTime(root.CTime)
		sv.OTime = stdTime(root.OTime)
		return true, nil
	case btrfsprim.ROOT_BACKREF_KEY:
		var ref btrfsitem.RootRef
		if _, err := binstruct.Unmarshal(item.Data, &ref); err != nil {
			return true, fmt.Errorf("subvolume %v: ROOT_BACKREF: %w", sv.ID, err)
		}
		sv.ParentID = btrfsprim.ObjID(item.Header.Offset)
		sv.DirID = ref.DirID
		sv.Sequence = ref.Sequence
		sv.Name = string(ref.Name)
		return true, nil
	default:
		return false, nil
	}
}

func stdTime(t btrfsprim.Time) time.Time {
	if t.IsZero() {
		return time.Time{}
	}
	return t.ToStd()
}

// List returns every subvolume other than the top-level one, sorted
// by ID.
func List(ctx context.Context, s Searcher) ([]Subvolume, error) {
	subvols := make(map[btrfsprim.ObjID]*Subvolume)
	err := searchAll(ctx, s, rootTreeSearch(btrfsprim.FIRST_FREE_OBJECTID, btrfsprim.LAST_FREE_OBJECTID),
		func(item btrfsioctl.SearchItem) error {
			id := item.Header.ObjectID
			sv, ok := subvols[id]
			if !ok {
				sv = &Subvolume{ID: id}
			}
			isSubvolItem, err := addItem(ctx, sv, item)
			if isSubvolItem {
				subvols[id] = sv
			}
			return err
		})
	if err != nil {
		return nil, err
	}

	paths := &pathCache{
		searcher: s,
		lookup: func(_ context.Context, id btrfsprim.ObjID) (*Subvolume, error) {
			sv, ok := subvols[id]
			if !ok {
				return nil, fmt.Errorf("subvolume %v: %w", id, ErrNotFound)
			}
			return sv, nil
		},
	}
	ret := make([]Subvolume, 0, len(subvols))
	ids := maps.Keys(subvols)
	slices.Sort(ids)
	for _, id := range ids {
		sv := subvols[id]
		sv.Path, err = paths.pathOf(ctx, id)
		if err != nil {
			dlog.Warnf(ctx, "subvolume %v: path: %v", id, err)
		}
		ret = append(ret, *sv)
	}
	dlog.Debugf(ctx, "found %d subvolumes", len(ret))
	return ret, nil
}

func getOne(ctx context.Context, s Searcher, id btrfsprim.ObjID) (*Subvolume, error) {
	sv := &Subvolume{ID: id}
	found := false
	err := searchAll(ctx, s, rootTreeSearch(id, id), func(item btrfsioctl.SearchItem) error {
		if btrfsprim.ItemType(item.Header.Type) == btrfsprim.ROOT_ITEM_KEY {
			found = true
		}
		_, err := addItem(ctx, sv, item)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("subvolume %v: %w", id, ErrNotFound)
	}
	return sv, nil
}

// Get returns a single subvolume (which may be the top-level
// FS_TREE).  ErrNotFound is returned if it has no ROOT_ITEM.
func Get(ctx context.Context, s Searcher, id btrfsprim.ObjID) (*Subvolume, error) {
	sv, err := getOne(ctx, s, id)
	if err != nil {
		return nil, err
	}
	paths := &pathCache{
		searcher: s,
		lookup: func(ctx context.Context, id btrfsprim.ObjID) (*Subvolume, error) {
			return getOne(ctx, s, id)
		},
	}
	sv.Path, err = paths.pathOf(ctx, id)
	if err != nil {
		dlog.Warnf(ctx, "subvolume %v: path: %v", id, err)
	}
	return sv, nil
}

// Containing returns the ID of the subvolume that holds the open
// file or directory that s was opened on.
func Containing(ctx context.Context, s Searcher) (btrfsprim.ObjID, error) {
	treeID, _, err := s.InoLookup(ctx, 0, btrfsprim.FIRST_FREE_OBJECTID)
	return treeID, err
}

type pathCache struct {
	searcher Searcher
	lookup   func(context.Context, btrfsprim.ObjID) (*Subvolume, error)

	paths map[btrfsprim.ObjID]string
	busy  map[btrfsprim.ObjID]bool
}

func (c *pathCache) pathOf(ctx context.Context, id btrfsprim.ObjID) (string, error) {
	if id == btrfsprim.FS_TREE_OBJECTID {
		return "", nil
	}
	if p, ok := c.paths[id]; ok {
		return p, nil
	}
	if c.busy[id] {
		return "", fmt.Errorf("subvolume %v: loop in parent chain", id)
	}
	if c.busy == nil {
		c.busy = make(map[btrfsprim.ObjID]bool)
	}
	c.busy[id] = true
	defer delete(c.busy, id)

	sv, err := c.lookup(ctx, id)
	if err != nil {
		return "", err
	}
	if sv.ParentID == 0 {
		return "", fmt.Errorf("subvolume %v: no ROOT_BACKREF: %w", id, ErrNotFound)
	}
	parent, err := c.pathOf(ctx, sv.ParentID)
	if err != nil {
		return "", err
	}
	_, dir, err := c.searcher.InoLookup(ctx, sv.ParentID, sv.DirID)
	if err != nil {
		return "", fmt.Errorf("subvolume %v: directory %v in tree %v: %w", id, sv.DirID, sv.ParentID, err)
	}

	ret := path.Join(parent, dir, sv.Name)
	if c.paths == nil {
		c.paths = make(map[btrfsprim.ObjID]string)
	}
	c.paths[id] = ret
	return ret, nil
}
