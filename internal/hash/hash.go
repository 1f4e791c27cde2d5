// Copyright 2023 - MinIO, Inc. All rights reserved.
// Use of this source code is governed by the AGPLv3
// license that can be found in the LICENSE file.

// Package hash implements the content hash used to
// address values, indirection tables and double-hash
// records.
package hash

import (
	"errors"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// Zero is the hash that refers to no content. It is used
// as "no indirection table committed yet".
const Zero Sum = 0

// Sum is a content hash.
type Sum uint64

// Of returns the content hash of data. It is not collision
// resistant against an adversary who chooses data.
func Of(data []byte) Sum { return Sum(xxhash.Sum64(data)) }

// Parse parses the decimal representation of a Sum.
func Parse(s string) (Sum, error) {
	if s == "" {
		return 0, errors.New("hash: empty content hash")
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, errors.New("hash: invalid content hash '" + s + "'")
	}
	return Sum(n), nil
}

// IsZero reports whether s is the Zero hash.
func (s Sum) IsZero() bool { return s == Zero }

// String returns the decimal representation of s.
func (s Sum) String() string { return strconv.FormatUint(uint64(s), 10) }

// MarshalText returns the decimal representation of s.
func (s Sum) MarshalText() ([]byte, error) { return strconv.AppendUint(nil, uint64(s), 10), nil }

// UnmarshalText parses the decimal representation of s.
func (s *Sum) UnmarshalText(text []byte) error {
	v, err := Parse(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
