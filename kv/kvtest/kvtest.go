// Copyright 2023 - MinIO, Inc. All rights reserved.
// Use of this source code is governed by the AGPLv3
// license that can be found in the LICENSE file.

// Package kvtest provides a conformance test suite for
// kv.Store implementations.
package kvtest

import (
	"context"
	"slices"
	"testing"

	"github.com/minio/fckv/kv"
	"github.com/stretchr/testify/require"
)

// Run runs the conformance tests against the store returned
// by newStore. Each subtest gets its own, empty store.
func Run(t *testing.T, newStore func(t *testing.T) kv.Store[string, []byte]) {
	t.Run("Create", func(t *testing.T) { testCreate(t, newStore(t)) })
	t.Run("Set", func(t *testing.T) { testSet(t, newStore(t)) })
	t.Run("Get", func(t *testing.T) { testGet(t, newStore(t)) })
	t.Run("Delete", func(t *testing.T) { testDelete(t, newStore(t)) })
	t.Run("List", func(t *testing.T) { testList(t, newStore(t)) })
	t.Run("Prefix", func(t *testing.T) { testPrefix(t, newStore(t)) })
	t.Run("Status", func(t *testing.T) { testStatus(t, newStore(t)) })
}

func testCreate(t *testing.T, s kv.Store[string, []byte]) {
	ctx := context.Background()
	defer s.Close()

	require.NoError(t, s.Create(ctx, "key-1", []byte("value-1")))
	require.ErrorIs(t, s.Create(ctx, "key-1", []byte("value-2")), kv.ErrExists)

	value, err := s.Get(ctx, "key-1")
	require.NoError(t, err)
	require.Equal(t, []byte("value-1"), value)
}

func testSet(t *testing.T, s kv.Store[string, []byte]) {
	ctx := context.Background()
	defer s.Close()

	require.NoError(t, s.Set(ctx, "key-1", []byte("value-1")))
	require.NoError(t, s.Set(ctx, "key-1", []byte("value-2")))

	value, err := s.Get(ctx, "key-1")
	require.NoError(t, err)
	require.Equal(t, []byte("value-2"), value)

	require.NoError(t, s.Set(ctx, "key-1", []byte{}))
	value, err = s.Get(ctx, "key-1")
	require.NoError(t, err)
	require.Empty(t, value)
}

func testGet(t *testing.T, s kv.Store[string, []byte]) {
	ctx := context.Background()
	defer s.Close()

	_, err := s.Get(ctx, "missing")
	require.ErrorIs(t, err, kv.ErrNotExists)

	require.NoError(t, s.Create(ctx, "key-1", []byte("value-1")))
	value, err := s.Get(ctx, "key-1")
	require.NoError(t, err)

	value[0] = 'X' // must not modify the stored value
	value, err = s.Get(ctx, "key-1")
	require.NoError(t, err)
	require.Equal(t, []byte("value-1"), value)
}

func testDelete(t *testing.T, s kv.Store[string, []byte]) {
	ctx := context.Background()
	defer s.Close()

	require.ErrorIs(t, s.Delete(ctx, "missing"), kv.ErrNotExists)

	require.NoError(t, s.Create(ctx, "key-1", []byte("value-1")))
	require.NoError(t, s.Delete(ctx, "key-1"))

	_, err := s.Get(ctx, "key-1")
	require.ErrorIs(t, err, kv.ErrNotExists)
	require.NoError(t, s.Create(ctx, "key-1", []byte("value-1")))
}

func testList(t *testing.T, s kv.Store[string, []byte]) {
	ctx := context.Background()
	defer s.Close()

	want := []string{"a", "b", "c", "d"}
	for _, key := range want {
		require.NoError(t, s.Create(ctx, key, []byte(key)))
	}

	iter, err := s.List(ctx)
	require.NoError(t, err)
	keys, err := kv.Collect(iter)
	require.NoError(t, err)

	slices.Sort(keys)
	require.Equal(t, want, keys)
}

func testPrefix(t *testing.T, s kv.Store[string, []byte]) {
	ctx := context.Background()
	defer s.Close()

	a, b := kv.WithPrefix(s, "a_"), kv.WithPrefix(s, "b_")
	require.NoError(t, a.Create(ctx, "1", []byte("a1")))
	require.NoError(t, b.Create(ctx, "1", []byte("b1")))
	require.NoError(t, b.Create(ctx, "2", []byte("b2")))

	value, err := a.Get(ctx, "1")
	require.NoError(t, err)
	require.Equal(t, []byte("a1"), value)

	_, err = a.Get(ctx, "2")
	require.ErrorIs(t, err, kv.ErrNotExists)

	iter, err := b.List(ctx)
	require.NoError(t, err)
	keys, err := kv.Collect(iter)
	require.NoError(t, err)

	slices.Sort(keys)
	require.Equal(t, []string{"1", "2"}, keys)
}

func testStatus(t *testing.T, s kv.Store[string, []byte]) {
	defer s.Close()

	_, err := s.Status(context.Background())
	require.NoError(t, err)
}
