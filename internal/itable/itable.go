// Copyright 2023 - MinIO, Inc. All rights reserved.
// Use of this source code is governed by the AGPLv3
// license that can be found in the LICENSE file.

// Package itable implements the indirection table that maps
// logical keys to the content hash of their current value.
package itable

import (
	"errors"
	"maps"
	"slices"

	"github.com/minio/fckv/internal/hash"
	"github.com/tinylib/msgp/msgp"
)

// ErrMalformed is returned when decoding a table fails.
var ErrMalformed = errors.New("itable: malformed indirection table")

// Table maps logical keys to content hashes. The zero
// value is an empty table.
type Table struct {
	entries map[string]hash.Sum
}

// Len returns the number of keys in the table.
func (t *Table) Len() int { return len(t.entries) }

// Lookup returns the content hash of the given key and
// reports whether the key exists.
func (t *Table) Lookup(key string) (hash.Sum, bool) {
	sum, ok := t.entries[key]
	return sum, ok
}

// Set sets the content hash of key.
func (t *Table) Set(key string, sum hash.Sum) {
	if t.entries == nil {
		t.entries = map[string]hash.Sum{}
	}
	t.entries[key] = sum
}

// Keys returns all keys in sorted order.
func (t *Table) Keys() []string {
	return slices.Sorted(maps.Keys(t.entries))
}

// Clone returns a copy of t.
func (t *Table) Clone() *Table {
	return &Table{entries: maps.Clone(t.entries)}
}

// Hash returns the content hash of the table's binary
// encoding. An empty table that has never been stored
// has the hash.Zero hash.
func (t *Table) Hash() hash.Sum {
	if t.Len() == 0 {
		return hash.Zero
	}
	b, _ := t.MarshalBinary()
	return hash.Of(b)
}

// MarshalBinary returns the table's binary encoding. The
// encoding is deterministic: entries are sorted by key.
func (t *Table) MarshalBinary() ([]byte, error) {
	keys := t.Keys()

	b := msgp.AppendMapHeader(nil, uint32(len(keys)))
	for _, key := range keys {
		b = msgp.AppendString(b, key)
		b = msgp.AppendUint64(b, uint64(t.entries[key]))
	}
	return b, nil
}

// UnmarshalBinary decodes a table from its binary encoding.
// It rejects encodings with duplicate or unsorted keys, since
// such an encoding would not hash to the canonical table hash.
func (t *Table) UnmarshalBinary(b []byte) error {
	n, b, err := msgp.ReadMapHeaderBytes(b)
	if err != nil || int(n) > len(b) {
		return ErrMalformed
	}

	entries := make(map[string]hash.Sum, n)
	var prev string
	for i := uint32(0); i < n; i++ {
		var (
			key string
			sum uint64
		)
		if key, b, err = msgp.ReadStringBytes(b); err != nil {
			return ErrMalformed
		}
		if sum, b, err = msgp.ReadUint64Bytes(b); err != nil {
			return ErrMalformed
		}
		if i > 0 && key <= prev {
			return ErrMalformed
		}
		entries[key] = hash.Sum(sum)
		prev = key
	}
	if len(b) != 0 {
		return ErrMalformed
	}
	t.entries = entries
	return nil
}
