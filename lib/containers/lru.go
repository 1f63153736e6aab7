// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package containers

import (
	lru "github.com/hashicorp/golang-lru"
)

// LRUCache is a typed, goroutine-safe least-recently-used cache.  A
// zero LRUCache is not usable; it must be initialized with
// NewLRUCache.
type LRUCache[K comparable, V any] struct {
	inner *lru.Cache
}

func NewLRUCache[K comparable, V any](size int) *LRUCache[K, V] {
	inner, err := lru.New(size)
	if err != nil {
		// Only returned for size <= 0.
		panic(err)
	}
	return &LRUCache[K, V]{inner: inner}
}

func (c *LRUCache[K, V]) Add(key K, value V) {
	c.inner.Add(key, value)
}

func (c *LRUCache[K, V]) Get(key K) (value V, ok bool) {
	_value, ok := c.inner.Get(key)
	if ok {
		//nolint:forcetypeassert // Typed wrapper around untyped lib.
		value = _value.(V)
	}
	return value, ok
}

// GetOrElse returns the cached value for key, calling fn to fill it
// in if it is not cached.  Errors from fn are returned, and not
// cached.
func (c *LRUCache[K, V]) GetOrElse(key K, fn func() (V, error)) (V, error) {
	if value, ok := c.Get(key); ok {
		return value, nil
	}
	value, err := fn()
	if err != nil {
		return value, err
	}
	c.Add(key, value)
	return value, nil
}
