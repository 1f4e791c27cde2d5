// Copyright 2023 - MinIO, Inc. All rights reserved.
// Use of this source code is governed by the AGPLv3
// license that can be found in the LICENSE file.

// Package badger implements a key-value store on top
// of a Badger database.
package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/minio/fckv/kv"
)

// Config is a structure containing the Badger
// configuration.
type Config struct {
	// Path is the directory of the database. It is
	// ignored when InMemory is true.
	Path string

	// InMemory controls whether the database is kept
	// in memory only.
	InMemory bool

	// Log receives Badger's internal log messages.
	// If nil, they are discarded.
	Log *slog.Logger
}

// Open opens or creates a Badger database.
func Open(config *Config) (*Store, error) {
	opts := badger.DefaultOptions(config.Path)
	if config.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	if config.Log != nil {
		opts = opts.WithLogger(logger{config.Log})
	} else {
		opts = opts.WithLogger(nil)
	}
	opts = opts.WithSyncWrites(!config.InMemory)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Store is a key-value store backed by Badger.
type Store struct {
	db *badger.DB
}

var _ kv.Store[string, []byte] = (*Store)(nil)

// Status reports whether the database is still open.
func (s *Store) Status(context.Context) (kv.State, error) {
	start := time.Now()
	if s.db.IsClosed() {
		return kv.State{}, &kv.Unreachable{Err: errors.New("badger: database closed")}
	}
	return kv.State{Latency: time.Since(start)}, nil
}

// Create stores the entry if and only if no entry for key
// exists. Otherwise, it returns kv.ErrExists.
func (s *Store) Create(_ context.Context, key string, value []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(key))
		if err == nil {
			return kv.ErrExists
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set([]byte(key), value)
	})
}

// Set stores or replaces the entry for key.
func (s *Store) Set(_ context.Context, key string, value []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
}

// Get returns the value for key or kv.ErrNotExists.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, kv.ErrNotExists
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Delete removes the entry for key or returns kv.ErrNotExists.
func (s *Store) Delete(_ context.Context, key string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(key)); err != nil {
			return err
		}
		return txn.Delete([]byte(key))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return kv.ErrNotExists
	}
	return err
}

// List returns an iterator over all keys in
// lexicographic order.
func (s *Store) List(ctx context.Context) (kv.Iter[string], error) {
	var keys []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false

		iter := txn.NewIterator(opts)
		defer iter.Close()
		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			keys = append(keys, string(iter.Item().Key()))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return kv.SliceIter(keys...), nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// logger adapts an slog.Logger to badger.Logger.
type logger struct {
	log *slog.Logger
}

func (l logger) Errorf(format string, v ...any) {
	l.log.Error(fmt.Sprintf(format, v...))
}

func (l logger) Warningf(format string, v ...any) {
	l.log.Warn(fmt.Sprintf(format, v...))
}

func (l logger) Infof(format string, v ...any) {
	l.log.Info(fmt.Sprintf(format, v...))
}

func (l logger) Debugf(format string, v ...any) {
	l.log.Debug(fmt.Sprintf(format, v...))
}
