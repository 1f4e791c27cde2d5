// Copyright 2023 - MinIO, Inc. All rights reserved.
// Use of this source code is governed by the AGPLv3
// license that can be found in the LICENSE file.

// Package bolt implements a key-value store on top
// of a BoltDB database file.
package bolt

import (
	"bytes"
	"context"
	"errors"
	"slices"
	"time"

	"github.com/minio/fckv/kv"
	bolt "go.etcd.io/bbolt"
)

// Bucket is the name of the BoltDB bucket that
// contains all entries.
const Bucket = "fckv"

// Open opens or creates the BoltDB database file at
// the given path.
func Open(filename string) (*Store, error) {
	db, err := bolt.Open(filename, 0o600, &bolt.Options{
		Timeout: 3 * time.Second,
	})
	if err != nil {
		return nil, err
	}
	if err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(Bucket))
		return err
	}); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Store is a key-value store backed by BoltDB.
type Store struct {
	db *bolt.DB
}

var _ kv.Store[string, []byte] = (*Store)(nil)

// Status reports whether the database file is still open.
func (s *Store) Status(context.Context) (kv.State, error) {
	start := time.Now()
	if err := s.db.View(func(*bolt.Tx) error { return nil }); err != nil {
		return kv.State{}, &kv.Unreachable{Err: err}
	}
	return kv.State{Latency: time.Since(start)}, nil
}

// Create stores the entry if and only if no entry for key
// exists. Otherwise, it returns kv.ErrExists.
func (s *Store) Create(_ context.Context, key string, value []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(Bucket))
		if _, ok := lookup(b, key); ok {
			return kv.ErrExists
		}
		return b.Put([]byte(key), value)
	})
}

// Set stores or replaces the entry for key.
func (s *Store) Set(_ context.Context, key string, value []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(Bucket)).Put([]byte(key), value)
	})
}

// Get returns the value for key or kv.ErrNotExists.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	var (
		value []byte
		found bool
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		var v []byte
		if v, found = lookup(tx.Bucket([]byte(Bucket)), key); found {
			value = slices.Clone(v) // v is only valid within the transaction
			if value == nil {
				value = []byte{}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, kv.ErrNotExists
	}
	return value, nil
}

// Delete removes the entry for key or returns kv.ErrNotExists.
func (s *Store) Delete(_ context.Context, key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(Bucket))
		if _, ok := lookup(b, key); !ok {
			return kv.ErrNotExists
		}
		return b.Delete([]byte(key))
	})
}

// List returns an iterator over all keys in
// lexicographic order.
func (s *Store) List(ctx context.Context) (kv.Iter[string], error) {
	var keys []string
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(Bucket)).ForEach(func(k, _ []byte) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			keys = append(keys, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return kv.SliceIter(keys...), nil
}

// Close closes the database file.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil && !errors.Is(err, bolt.ErrDatabaseNotOpen) {
		return err
	}
	return nil
}

// lookup finds key with a cursor since Bucket.Get cannot
// tell an empty value apart from a missing entry.
func lookup(b *bolt.Bucket, key string) ([]byte, bool) {
	k, v := b.Cursor().Seek([]byte(key))
	if k == nil || !bytes.Equal(k, []byte(key)) {
		return nil, false
	}
	return v, true
}
