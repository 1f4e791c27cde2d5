// Copyright 2023 - MinIO, Inc. All rights reserved.
// Use of this source code is governed by the AGPLv3
// license that can be found in the LICENSE file.

// Package dhash implements a double-hash verification store.
//
// For a key k and value v, the store keeps an outer record
// k → hash(k, v) and an inner record hash(k, v) → (k, v).
// A read re-hashes the inner record and compares it to the
// outer record. It detects a storage engine that returns
// substituted or corrupted values.
package dhash

import (
	"context"
	"errors"
	"log/slog"

	"github.com/minio/fckv/internal/hash"
	"github.com/minio/fckv/kv"
	"github.com/tinylib/msgp/msgp"
)

// Store is a kv.Store that verifies every value it reads.
type Store struct {
	outer kv.Store[string, []byte]
	inner kv.Store[string, []byte]
	log   *slog.Logger
}

var _ kv.Store[string, []byte] = (*Store)(nil)

// New returns a new Store keeping outer records in outer and
// inner records in inner. Verification failures are logged
// to log, if not nil.
func New(outer, inner kv.Store[string, []byte], log *slog.Logger) *Store {
	if log == nil {
		log = slog.New(discard{})
	}
	return &Store{
		outer: outer,
		inner: inner,
		log:   log,
	}
}

// Status returns the status of the outer store.
func (s *Store) Status(ctx context.Context) (kv.State, error) {
	return s.outer.Status(ctx)
}

// Create stores key and value if and only if no entry
// for key exists.
func (s *Store) Create(ctx context.Context, key string, value []byte) error {
	if _, err := s.outer.Get(ctx, key); err == nil {
		return kv.ErrExists
	} else if !errors.Is(err, kv.ErrNotExists) {
		return err
	}
	return s.Set(ctx, key, value)
}

// Set stores the inner record first and then the outer
// record pointing to it. Both writes must succeed.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	record := encode(key, value)
	sum := hash.Of(record)

	if err := s.inner.Set(ctx, sum.String(), record); err != nil {
		return err
	}
	return s.outer.Set(ctx, key, []byte(sum.String()))
}

// Get returns the value of key if and only if the inner
// record matches the outer record. Otherwise, it logs the
// discrepancy and returns kv.ErrNotExists.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	outer, err := s.outer.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	sum, err := hash.Parse(string(outer))
	if err != nil {
		s.log.ErrorContext(ctx, "dhash: invalid outer record", "key", key, "err", err)
		return nil, kv.ErrNotExists
	}

	record, err := s.inner.Get(ctx, sum.String())
	if errors.Is(err, kv.ErrNotExists) {
		s.log.ErrorContext(ctx, "dhash: inner record does not exist", "key", key, "hash", sum)
		return nil, kv.ErrNotExists
	}
	if err != nil {
		return nil, err
	}

	innerKey, value, err := decode(record)
	if err != nil {
		s.log.ErrorContext(ctx, "dhash: invalid inner record", "key", key, "hash", sum, "err", err)
		return nil, kv.ErrNotExists
	}
	if got := hash.Of(encode(key, value)); innerKey != key || got != sum {
		s.log.ErrorContext(ctx, "dhash: verification failed", "key", key, "want", sum, "got", got)
		return nil, kv.ErrNotExists
	}
	return value, nil
}

// Delete removes the outer record of key. The inner record
// is removed afterwards on a best-effort basis.
func (s *Store) Delete(ctx context.Context, key string) error {
	outer, err := s.outer.Get(ctx, key)
	if err != nil {
		return err
	}
	if err = s.outer.Delete(ctx, key); err != nil {
		return err
	}
	if _, err = hash.Parse(string(outer)); err == nil {
		s.inner.Delete(ctx, string(outer))
	}
	return nil
}

// List returns an iterator over all keys.
func (s *Store) List(ctx context.Context) (kv.Iter[string], error) {
	return s.outer.List(ctx)
}

// Corrupt replaces the value of the inner record of key with
// empty content while leaving the outer record unchanged.
// It exists to verify that corruption is detected.
func (s *Store) Corrupt(ctx context.Context, key string) error {
	outer, err := s.outer.Get(ctx, key)
	if err != nil {
		return err
	}
	return s.inner.Set(ctx, string(outer), encode(key, nil))
}

// Close closes the outer and the inner store.
func (s *Store) Close() error {
	err := s.outer.Close()
	if iErr := s.inner.Close(); err == nil {
		err = iErr
	}
	return err
}

func encode(key string, value []byte) []byte {
	b := msgp.AppendArrayHeader(nil, 2)
	b = msgp.AppendString(b, key)
	b = msgp.AppendBytes(b, value)
	return b
}

func decode(b []byte) (string, []byte, error) {
	n, b, err := msgp.ReadArrayHeaderBytes(b)
	if err != nil {
		return "", nil, err
	}
	if n != 2 {
		return "", nil, errors.New("dhash: invalid number of fields")
	}
	key, b, err := msgp.ReadStringBytes(b)
	if err != nil {
		return "", nil, err
	}
	value, b, err := msgp.ReadBytesBytes(b, nil)
	if err != nil {
		return "", nil, err
	}
	if len(b) != 0 {
		return "", nil, errors.New("dhash: trailing data")
	}
	return key, value, nil
}

type discard struct{}

func (discard) Enabled(context.Context, slog.Level) bool  { return false }
func (discard) Handle(context.Context, slog.Record) error { return nil }
func (d discard) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discard) WithGroup(string) slog.Handler           { return d }
