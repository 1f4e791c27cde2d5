// Copyright 2023 - MinIO, Inc. All rights reserved.
// Use of this source code is governed by the AGPLv3
// license that can be found in the LICENSE file.

// Package cache implements in-memory maps for read-heavy
// workloads.
package cache

import (
	"cmp"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
)

// Cow is a copy-on-write map that keeps its keys sorted.
//
// Reads never block and observe an immutable snapshot.
// Writes are serialized and publish a new snapshot. The
// zero value is empty and ready for use. A Cow must not
// be copied after first use.
type Cow[K cmp.Ordered, V any] struct {
	mu   sync.Mutex
	snap atomic.Pointer[snapshot[K, V]]
}

type snapshot[K cmp.Ordered, V any] struct {
	entries map[K]V
	keys    []K // sorted
}

// Get returns the value stored for key and whether it exists.
func (c *Cow[K, V]) Get(key K) (v V, ok bool) {
	if s := c.snap.Load(); s != nil {
		v, ok = s.entries[key]
	}
	return v, ok
}

// Len returns the number of entries.
func (c *Cow[K, V]) Len() int {
	if s := c.snap.Load(); s != nil {
		return len(s.keys)
	}
	return 0
}

// Set stores value for key, replacing any previous value.
func (c *Cow[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := &snapshot[K, V]{}
	if s := c.snap.Load(); s != nil {
		next.entries = maps.Clone(s.entries)
		next.keys = s.keys
	} else {
		next.entries = map[K]V{}
	}
	if _, ok := next.entries[key]; !ok {
		i, _ := slices.BinarySearch(next.keys, key)
		next.keys = slices.Insert(slices.Clip(next.keys), i, key)
	}
	next.entries[key] = value
	c.snap.Store(next)
}

// Keys returns all keys in ascending order. It never
// returns nil.
func (c *Cow[K, _]) Keys() []K {
	s := c.snap.Load()
	if s == nil {
		return []K{}
	}
	return slices.Clone(s.keys)
}

// Values returns all values ordered by their keys. It
// never returns nil.
func (c *Cow[K, V]) Values() []V {
	s := c.snap.Load()
	if s == nil {
		return []V{}
	}
	values := make([]V, 0, len(s.keys))
	for _, k := range s.keys {
		values = append(values, s.entries[k])
	}
	return values
}
