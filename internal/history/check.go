// Copyright 2023 - MinIO, Inc. All rights reserved.
// Use of this source code is governed by the AGPLv3
// license that can be found in the LICENSE file.

package history

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
)

var (
	// ErrEqualSequence is returned by CheckOrder when two records
	// have the same sequence number.
	ErrEqualSequence = errors.New("history: records with equal sequence number")

	// ErrConcurrent is returned by CheckVectors when the version
	// vectors of two records are concurrent.
	ErrConcurrent = errors.New("history: records with concurrent version vectors")

	// ErrRollback is returned by CheckProgress when a record is
	// older than a previously observed state.
	ErrRollback = errors.New("history: record is older than previously observed")
)

// SortBySequence sorts the records by sequence number
// in ascending order.
func SortBySequence(records []Record) {
	slices.SortStableFunc(records, func(a, b Record) int { return cmp.Compare(a.Seq, b.Seq) })
}

// CheckOrder sorts the records by sequence number and reports
// whether they form a strict total order. It returns an error
// wrapping ErrEqualSequence if two records have the same
// sequence number.
func CheckOrder(records []Record) error {
	SortBySequence(records)
	for i := 1; i < len(records); i++ {
		if records[i-1].Seq == records[i].Seq {
			return fmt.Errorf("%w: '%s' and '%s' at %d", ErrEqualSequence, short(records[i-1].Identity()), short(records[i].Identity()), records[i].Seq)
		}
	}
	return nil
}

// CheckVectors reports whether the version vectors of all records
// are pairwise ordered. Records committed within one linear history
// always are. It returns an error wrapping ErrConcurrent otherwise.
func CheckVectors(records []Record) error {
	for i := range records {
		for j := i + 1; j < len(records); j++ {
			if records[i].Vector.Compare(records[j].Vector) == Concurrent {
				return fmt.Errorf("%w: '%s' and '%s'", ErrConcurrent, short(records[i].Identity()), short(records[j].Identity()))
			}
		}
	}
	return nil
}

// CheckProgress reports whether the records reflect at least the
// state described by the observed version vector. For every entry
// of observed, a record of the same identity must exist and its
// sequence number must not be smaller.
func CheckProgress(observed Vector, records []Record) error {
	for _, e := range observed {
		i := slices.IndexFunc(records, func(r Record) bool { return r.Identity() == e.Identity })
		if i < 0 {
			return fmt.Errorf("%w: record of '%s' is missing", ErrRollback, short(e.Identity))
		}
		if records[i].Seq < e.Seq {
			return fmt.Errorf("%w: record of '%s' at %d - observed %d", ErrRollback, short(e.Identity), records[i].Seq, e.Seq)
		}
	}
	return nil
}

func short(identity string) string {
	if len(identity) > 12 {
		return identity[:12]
	}
	return identity
}
