// Copyright 2023 - MinIO, Inc. All rights reserved.
// Use of this source code is governed by the AGPLv3
// license that can be found in the LICENSE file.

// Package leveldb implements a key-value store on top
// of a LevelDB database.
package leveldb

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/minio/fckv/kv"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
)

// Open opens or creates the LevelDB database at the given path.
func Open(path string) (*Store, error) {
	db, err := leveldb.OpenFile(path, &opt.Options{
		NoSync: false,
	})
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// OpenMem returns a Store backed by an in-memory
// LevelDB database. It is mainly useful for testing.
func OpenMem() (*Store, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Store is a key-value store backed by LevelDB.
type Store struct {
	db *leveldb.DB

	// LevelDB has no conditional put. Create holds
	// the lock while checking for and writing an entry.
	lock sync.Mutex
}

var _ kv.Store[string, []byte] = (*Store)(nil)

var syncWrite = &opt.WriteOptions{Sync: true}

// Status reports whether the database is still open.
func (s *Store) Status(context.Context) (kv.State, error) {
	start := time.Now()
	if _, err := s.db.GetProperty("leveldb.stats"); err != nil {
		return kv.State{}, &kv.Unreachable{Err: err}
	}
	return kv.State{Latency: time.Since(start)}, nil
}

// Create stores the entry if and only if no entry for key
// exists. Otherwise, it returns kv.ErrExists.
func (s *Store) Create(_ context.Context, key string, value []byte) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	ok, err := s.db.Has([]byte(key), nil)
	if err != nil {
		return err
	}
	if ok {
		return kv.ErrExists
	}
	return s.db.Put([]byte(key), value, syncWrite)
}

// Set stores or replaces the entry for key.
func (s *Store) Set(_ context.Context, key string, value []byte) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.db.Put([]byte(key), value, syncWrite)
}

// Get returns the value for key or kv.ErrNotExists.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	value, err := s.db.Get([]byte(key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, kv.ErrNotExists
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Delete removes the entry for key or returns kv.ErrNotExists.
func (s *Store) Delete(_ context.Context, key string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	ok, err := s.db.Has([]byte(key), nil)
	if err != nil {
		return err
	}
	if !ok {
		return kv.ErrNotExists
	}
	return s.db.Delete([]byte(key), syncWrite)
}

// List returns an iterator over all keys in
// lexicographic order.
func (s *Store) List(ctx context.Context) (kv.Iter[string], error) {
	iter := s.db.NewIterator(nil, nil)
	defer iter.Release()

	var keys []string
	for iter.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		keys = append(keys, string(iter.Key()))
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	return kv.SliceIter(keys...), nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }
