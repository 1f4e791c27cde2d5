// Copyright 2023 - MinIO, Inc. All rights reserved.
// Use of this source code is governed by the AGPLv3
// license that can be found in the LICENSE file.

// Package mem implements an in-memory key-value store.
package mem

import (
	"context"
	"slices"
	"sync"

	"github.com/minio/fckv/kv"
)

// Store is an in-memory key-value store. Its zero value is
// ready to use.
type Store struct {
	lock  sync.RWMutex
	store map[string][]byte
}

var _ kv.Store[string, []byte] = (*Store)(nil)

// Status returns the state of the in-memory store which is
// always healthy.
func (s *Store) Status(context.Context) (kv.State, error) {
	return kv.State{Latency: 0}, nil
}

// Create adds the given entry to the store if and only if
// no entry for the given key exists. If an entry already
// exists it returns kv.ErrExists.
func (s *Store) Create(_ context.Context, key string, value []byte) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.store == nil {
		s.store = map[string][]byte{}
	}
	if _, ok := s.store[key]; ok {
		return kv.ErrExists
	}
	s.store[key] = slices.Clone(value)
	return nil
}

// Set adds or replaces the entry for the given key.
func (s *Store) Set(_ context.Context, key string, value []byte) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.store == nil {
		s.store = map[string][]byte{}
	}
	s.store[key] = slices.Clone(value)
	return nil
}

// Get returns the value associated with the given key. If no
// entry for this key exists it returns kv.ErrNotExists.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	v, ok := s.store[key]
	if !ok {
		return nil, kv.ErrNotExists
	}
	return slices.Clone(v), nil
}

// Delete removes the entry for the given key. If no entry
// exists it returns kv.ErrNotExists.
func (s *Store) Delete(_ context.Context, key string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if _, ok := s.store[key]; !ok {
		return kv.ErrNotExists
	}
	delete(s.store, key)
	return nil
}

// List returns an iterator over a sorted snapshot of
// all keys.
func (s *Store) List(context.Context) (kv.Iter[string], error) {
	s.lock.RLock()
	keys := make([]string, 0, len(s.store))
	for key := range s.store {
		keys = append(keys, key)
	}
	s.lock.RUnlock()

	slices.Sort(keys)
	return kv.SliceIter(keys...), nil
}

// Close does nothing. An in-memory store has no resources
// to release.
func (s *Store) Close() error { return nil }
