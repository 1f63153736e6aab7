// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package subvol

import (
	"context"
	"fmt"

	"git.lukeshu.com/btrfs-rootitem/lib/btrfs/btrfsioctl"
	"git.lukeshu.com/btrfs-rootitem/lib/btrfs/btrfsitem"
	"git.lukeshu.com/btrfs-rootitem/lib/btrfs/btrfsprim"
	"git.lukeshu.com/btrfs-rootitem/lib/containers"
)

type uuidCacheKey struct {
	Type btrfsprim.ItemType
	UUID btrfsprim.UUID
}

// Resolver maps subvolume UUIDs to subvolume IDs using the UUID
// tree.  Successful lookups are cached; it is safe for concurrent
// use.
type Resolver struct {
	searcher Searcher
	cache    *containers.LRUCache[uuidCacheKey, []btrfsprim.ObjID]
}

const uuidCacheSize = 1024

func NewResolver(s Searcher) *Resolver {
	return &Resolver{
		searcher: s,
		cache:    containers.NewLRUCache[uuidCacheKey, []btrfsprim.ObjID](uuidCacheSize),
	}
}

// LookupUUID returns the subvolume whose UUID is uuid.
func (r *Resolver) LookupUUID(ctx context.Context, uuid btrfsprim.UUID) (btrfsprim.ObjID, error) {
	ids, err := r.lookup(ctx, btrfsprim.UUID_SUBVOL_KEY, uuid)
	if err != nil {
		return 0, err
	}
	return ids[0], nil
}

// LookupReceivedUUID returns the subvolumes whose ReceivedUUID is
// uuid; that is, the subvolumes that were received from the
// subvolume with that UUID.
func (r *Resolver) LookupReceivedUUID(ctx context.Context, uuid btrfsprim.UUID) ([]btrfsprim.ObjID, error) {
	return r.lookup(ctx, btrfsprim.UUID_RECEIVED_SUBVOL_KEY, uuid)
}

func (r *Resolver) lookup(ctx context.Context, typ btrfsprim.ItemType, uuid btrfsprim.UUID) ([]btrfsprim.ObjID, error) {
	if uuid.IsZero() {
		return nil, fmt.Errorf("%v %v: %w", typ, uuid, ErrNotFound)
	}
	ids, err := r.cache.GetOrElse(uuidCacheKey{Type: typ, UUID: uuid}, func() ([]btrfsprim.ObjID, error) {
		key := btrfsprim.UUIDKey(typ, uuid)
		items, err := r.searcher.TreeSearch(ctx, btrfsioctl.NewSearchKey(btrfsprim.UUID_TREE_OBJECTID, key, key, 1))
		if err != nil {
			return nil, err
		}
		if len(items) == 0 {
			return nil, fmt.Errorf("%v %v: %w", typ, uuid, ErrNotFound)
		}
		item, err := btrfsitem.UnmarshalItem(items[0].Key(), items[0].Data)
		if err != nil {
			return nil, err
		}
		uuidMap, ok := item.(*btrfsitem.UUIDMap)
		if !ok || len(uuidMap.ObjIDs) == 0 {
			return nil, fmt.Errorf("%v %v: empty UUID tree entry: %w", typ, uuid, ErrNotFound)
		}
		return uuidMap.ObjIDs, nil
	})
	if err != nil {
		return nil, err
	}
	// The cache owns ids.
	return append([]btrfsprim.ObjID(nil), ids...), nil
}
