// Copyright 2023 - MinIO, Inc. All rights reserved.
// Use of this source code is governed by the AGPLv3
// license that can be found in the LICENSE file.

// Package fs implements a storage engine that keeps each
// entry in its own file within one directory.
package fs

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"aead.dev/mem"
	"github.com/minio/fckv/kv"
)

// MaxSize is the max. size of a single value.
const MaxSize = 16 * mem.MiB

// Open returns a Store for the directory dir and creates
// it, including any parents, if it does not exist.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, errors.New("fs: '" + dir + "' is not a directory")
	}
	return &Store{dir: dir}, nil
}

// Store is a storage engine backed by a directory.
//
// File names are the hex-encoded keys, such that keys
// may contain any character. Values are written to a
// temporary file first and moved into place atomically.
type Store struct {
	dir string
}

var _ kv.Store[string, []byte] = (*Store)(nil)

// Status reports whether the directory is accessible.
func (s *Store) Status(context.Context) (kv.State, error) {
	start := time.Now()
	if _, err := os.Stat(s.dir); err != nil {
		return kv.State{}, &kv.Unreachable{Err: err}
	}
	return kv.State{Latency: time.Since(start)}, nil
}

// Create stores the entry unless a file for key exists.
func (s *Store) Create(_ context.Context, key string, value []byte) error {
	filename, err := s.path(key)
	if err != nil {
		return err
	}
	tmp, err := s.writeTemp(value)
	if err != nil {
		return err
	}
	defer os.Remove(tmp)

	// Link, unlike Rename, fails if filename exists.
	if err = os.Link(tmp, filename); errors.Is(err, os.ErrExist) {
		return kv.ErrExists
	}
	return err
}

// Set stores the entry and replaces any previous value.
func (s *Store) Set(_ context.Context, key string, value []byte) error {
	filename, err := s.path(key)
	if err != nil {
		return err
	}
	tmp, err := s.writeTemp(value)
	if err != nil {
		return err
	}
	if err = os.Rename(tmp, filename); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// Get returns the content of the file for key.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	filename, err := s.path(key)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(filename)
	if errors.Is(err, os.ErrNotExist) {
		return nil, kv.ErrNotExists
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return io.ReadAll(mem.LimitReader(file, MaxSize))
}

// Delete removes the file for key.
func (s *Store) Delete(_ context.Context, key string) error {
	filename, err := s.path(key)
	if err != nil {
		return err
	}
	if err = os.Remove(filename); errors.Is(err, os.ErrNotExist) {
		return kv.ErrNotExists
	}
	return err
}

// List returns the keys of all entries present when
// List is called.
func (s *Store) List(ctx context.Context) (kv.Iter[string], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, &kv.Unreachable{Err: err}
	}

	keys := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		key, err := hex.DecodeString(entry.Name())
		if err != nil {
			continue // Not created by the Store
		}
		keys = append(keys, string(key))
	}
	return kv.SliceIter(keys...), nil
}

// Close is a no-op. The Store keeps no files open.
func (s *Store) Close() error { return nil }

func (s *Store) path(key string) (string, error) {
	if key == "" {
		return "", errors.New("fs: empty key")
	}
	return filepath.Join(s.dir, hex.EncodeToString([]byte(key))), nil
}

// writeTemp writes value to a new, synced temporary file
// within the Store directory and returns its path.
func (s *Store) writeTemp(value []byte) (string, error) {
	var suffix [8]byte
	if _, err := rand.Read(suffix[:]); err != nil {
		return "", err
	}
	name := filepath.Join(s.dir, ".tmp-"+hex.EncodeToString(suffix[:]))

	file, err := os.OpenFile(name, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return "", err
	}
	if _, err = file.Write(value); err == nil {
		err = file.Sync()
	}
	if cErr := file.Close(); err == nil {
		err = cErr
	}
	if err != nil {
		os.Remove(name)
		return "", err
	}
	return name, nil
}
