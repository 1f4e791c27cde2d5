// Copyright 2023 - MinIO, Inc. All rights reserved.
// Use of this source code is governed by the AGPLv3
// license that can be found in the LICENSE file.

package dhash

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/minio/fckv/internal/hash"
	"github.com/minio/fckv/kv"
	"github.com/minio/fckv/kv/kvtest"
	"github.com/minio/fckv/kv/mem"
	"github.com/stretchr/testify/require"
)

func newStore(buf *bytes.Buffer) (*Store, kv.Store[string, []byte]) {
	engine := new(mem.Store)
	log := slog.New(slog.NewTextHandler(buf, nil))
	return New(kv.WithPrefix[[]byte](engine, "outer_"), kv.WithPrefix[[]byte](engine, "inner_"), log), engine
}

func TestConformance(t *testing.T) {
	kvtest.Run(t, func(*testing.T) kv.Store[string, []byte] {
		s, _ := newStore(new(bytes.Buffer))
		return s
	})
}

func TestPutGet(t *testing.T) {
	ctx := context.Background()
	s, engine := newStore(new(bytes.Buffer))

	require.NoError(t, s.Set(ctx, "100", []byte("20")))
	value, err := s.Get(ctx, "100")
	require.NoError(t, err)
	require.Equal(t, []byte("20"), value)

	outer, err := engine.Get(ctx, "outer_100")
	require.NoError(t, err)
	require.Equal(t, hash.Of(encode("100", []byte("20"))).String(), string(outer))

	_, err = engine.Get(ctx, "inner_"+string(outer))
	require.NoError(t, err)
}

func TestCorrupt(t *testing.T) {
	ctx := context.Background()
	var log bytes.Buffer
	s, _ := newStore(&log)

	require.NoError(t, s.Set(ctx, "100", []byte("20")))
	require.NoError(t, s.Corrupt(ctx, "100"))

	_, err := s.Get(ctx, "100")
	require.ErrorIs(t, err, kv.ErrNotExists)
	require.Contains(t, log.String(), "verification failed")
}

func TestSubstitutedInnerRecord(t *testing.T) {
	ctx := context.Background()
	s, engine := newStore(new(bytes.Buffer))

	require.NoError(t, s.Set(ctx, "a", []byte("1")))
	require.NoError(t, s.Set(ctx, "b", []byte("2")))

	outerA, err := engine.Get(ctx, "outer_a")
	require.NoError(t, err)
	outerB, err := engine.Get(ctx, "outer_b")
	require.NoError(t, err)

	innerB, err := engine.Get(ctx, "inner_"+string(outerB))
	require.NoError(t, err)
	require.NoError(t, engine.Set(ctx, "inner_"+string(outerA), innerB))

	_, err = s.Get(ctx, "a")
	require.ErrorIs(t, err, kv.ErrNotExists)
}

func TestMissingInnerRecord(t *testing.T) {
	ctx := context.Background()
	s, engine := newStore(new(bytes.Buffer))

	require.NoError(t, s.Set(ctx, "a", []byte("1")))
	outer, err := engine.Get(ctx, "outer_a")
	require.NoError(t, err)
	require.NoError(t, engine.Delete(ctx, "inner_"+string(outer)))

	_, err = s.Get(ctx, "a")
	require.ErrorIs(t, err, kv.ErrNotExists)
}
