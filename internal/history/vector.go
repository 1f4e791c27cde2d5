// Copyright 2023 - MinIO, Inc. All rights reserved.
// Use of this source code is governed by the AGPLv3
// license that can be found in the LICENSE file.

package history

import (
	"slices"
	"strings"
)

// MaxParticipants is the maximum number of identities a
// version vector, and hence a ledger, may contain.
const MaxParticipants = 1024

// Entry is a single version vector entry.
type Entry struct {
	Identity string // Identity of the record owner
	Seq      uint64 // Sequence number of the owner's record
}

// Vector is a version vector. Its entries are sorted
// by identity and each identity appears at most once.
type Vector []Entry

// Order describes how two version vectors relate
// to each other.
type Order int

// Possible orders of two version vectors.
const (
	Equal      Order = iota // Both vectors contain the same sequence numbers
	Before                  // The first vector is dominated by the second
	After                   // The first vector dominates the second
	Concurrent              // Neither vector dominates the other
)

// String returns the string representation of o.
func (o Order) String() string {
	switch o {
	case Equal:
		return "equal"
	case Before:
		return "before"
	case After:
		return "after"
	default:
		return "concurrent"
	}
}

// NewVector returns the version vector of the given records,
// one entry per record. The records must have distinct owners.
func NewVector(records []Record) Vector {
	v := make(Vector, 0, len(records))
	for i := range records {
		v = append(v, Entry{Identity: records[i].Identity(), Seq: records[i].Seq})
	}
	slices.SortFunc(v, compareEntries)
	return v
}

// Sorted reports whether the entries of v are sorted by
// identity without duplicates.
func (v Vector) Sorted() bool {
	for i := 1; i < len(v); i++ {
		if v[i-1].Identity >= v[i].Identity {
			return false
		}
	}
	return true
}

// Get returns the sequence number of the given identity
// and reports whether v contains an entry for it.
func (v Vector) Get(identity string) (uint64, bool) {
	i, ok := slices.BinarySearchFunc(v, identity, func(e Entry, id string) int { return strings.Compare(e.Identity, id) })
	if !ok {
		return 0, false
	}
	return v[i].Seq, true
}

// Compare returns how v relates to w. Identities missing
// from one of the vectors are treated as sequence number 0.
// Both vectors must be sorted.
func (v Vector) Compare(w Vector) Order {
	var less, greater bool
	observe := func(a, b uint64) {
		switch {
		case a < b:
			less = true
		case a > b:
			greater = true
		}
	}

	i, j := 0, 0
	for i < len(v) && j < len(w) {
		switch c := strings.Compare(v[i].Identity, w[j].Identity); {
		case c < 0:
			observe(v[i].Seq, 0)
			i++
		case c > 0:
			observe(0, w[j].Seq)
			j++
		default:
			observe(v[i].Seq, w[j].Seq)
			i, j = i+1, j+1
		}
	}
	for ; i < len(v); i++ {
		observe(v[i].Seq, 0)
	}
	for ; j < len(w); j++ {
		observe(0, w[j].Seq)
	}

	switch {
	case less && greater:
		return Concurrent
	case less:
		return Before
	case greater:
		return After
	default:
		return Equal
	}
}

func compareEntries(a, b Entry) int { return strings.Compare(a.Identity, b.Identity) }
