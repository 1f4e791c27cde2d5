// Copyright 2023 - MinIO, Inc. All rights reserved.
// Use of this source code is governed by the AGPLv3
// license that can be found in the LICENSE file.

package kv

// Iter yields elements one at a time.
//
//	for v, ok := it.Next(); ok; v, ok = it.Next() {
//		// use v
//	}
//	if err := it.Close(); err != nil {
//		// iteration stopped early
//	}
type Iter[T any] interface {
	// Next returns the next element or false once
	// there are no more elements or an error occurred.
	Next() (T, bool)

	// Close releases the Iter. It returns the error, if
	// any, that caused Next to stop. After Close, Next
	// always returns false.
	Close() error
}

// SliceIter returns an Iter over v.
func SliceIter[T any](v ...T) Iter[T] {
	return &sliceIter[T]{rest: v}
}

// Collect drains and closes iter.
func Collect[T any](iter Iter[T]) ([]T, error) {
	var values []T
	for v, ok := iter.Next(); ok; v, ok = iter.Next() {
		values = append(values, v)
	}
	if err := iter.Close(); err != nil {
		return nil, err
	}
	return values, nil
}

type sliceIter[T any] struct {
	rest []T
}

func (i *sliceIter[T]) Next() (v T, ok bool) {
	if len(i.rest) == 0 {
		return v, false
	}
	v, i.rest = i.rest[0], i.rest[1:]
	return v, true
}

func (i *sliceIter[T]) Close() error {
	i.rest = nil
	return nil
}
