// Copyright 2023 - MinIO, Inc. All rights reserved.
// Use of this source code is governed by the AGPLv3
// license that can be found in the LICENSE file.

package fckv

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/minio/fckv/internal/dhash"
	"github.com/minio/fckv/internal/hash"
	"github.com/minio/fckv/internal/metric"
	"github.com/minio/fckv/kv"
	"github.com/minio/fckv/kv/mem"
)

func TestParseTamperMode(t *testing.T) {
	for i, test := range []struct {
		Value      string
		Mode       TamperMode
		ShouldFail bool
	}{
		{Value: "none", Mode: TamperNone},
		{Value: "0", Mode: TamperNone},
		{Value: "Hide-Update", Mode: TamperHideUpdate},
		{Value: "1", Mode: TamperHideUpdate},
		{Value: " bad-data ", Mode: TamperBadData},
		{Value: "2", Mode: TamperBadData},
		{Value: "3", ShouldFail: true},
		{Value: "", ShouldFail: true},
	} {
		mode, err := ParseTamperMode(test.Value)
		if err == nil && test.ShouldFail {
			t.Fatalf("Test %d: should fail but succeeded", i)
		}
		if err != nil && !test.ShouldFail {
			t.Fatalf("Test %d: failed to parse tamper mode: %v", i, err)
		}
		if err == nil && mode != test.Mode {
			t.Fatalf("Test %d: got '%v' - want '%v'", i, mode, test.Mode)
		}
	}
}

func TestParseVerifyMode(t *testing.T) {
	for i, test := range []struct {
		Value      string
		Mode       VerifyMode
		ShouldFail bool
	}{
		{Value: "", Mode: VerifyNone},
		{Value: "none", Mode: VerifyNone},
		{Value: "double-hash", Mode: VerifyDoubleHash},
		{Value: "DOUBLE-HASH", Mode: VerifyDoubleHash},
		{Value: "sha256", ShouldFail: true},
	} {
		mode, err := ParseVerifyMode(test.Value)
		if err == nil && test.ShouldFail {
			t.Fatalf("Test %d: should fail but succeeded", i)
		}
		if err != nil && !test.ShouldFail {
			t.Fatalf("Test %d: failed to parse verify mode: %v", i, err)
		}
		if err == nil && mode != test.Mode {
			t.Fatalf("Test %d: got '%v' - want '%v'", i, mode, test.Mode)
		}
	}
}

func TestContentStoreTamper(t *testing.T) {
	ctx := context.Background()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	for _, store := range []kv.Store[string, []byte]{
		&mem.Store{},
		dhash.New(&mem.Store{}, &mem.Store{}, log),
	} {
		c := newContentStore(store, log, metric.New())

		sum, err := c.Put(ctx, []byte("value"))
		if err != nil {
			t.Fatalf("Failed to put content: %v", err)
		}
		if sum != hash.Of([]byte("value")) {
			t.Fatalf("Invalid content hash: got '%s' - want '%s'", sum, hash.Of([]byte("value")))
		}

		if err = c.Tamper(ctx, TamperHideUpdate, hash.Zero); err != nil {
			t.Fatalf("Failed to tamper: %v", err)
		}
		if mode := c.Mode(); mode != TamperHideUpdate {
			t.Fatalf("Invalid tamper mode: got '%v' - want '%v'", mode, TamperHideUpdate)
		}
		hidden, err := c.Put(ctx, []byte("hidden"))
		if err != nil {
			t.Fatalf("Failed to put content: %v", err)
		}
		if _, err = c.Get(ctx, hidden); !errors.Is(err, ErrNotFound) {
			t.Fatalf("Hidden content exists: got '%v' - want '%v'", err, ErrNotFound)
		}

		if err = c.Tamper(ctx, TamperBadData, sum); err != nil {
			t.Fatalf("Failed to tamper: %v", err)
		}
		if mode := c.Mode(); mode != TamperHideUpdate {
			t.Fatalf("Bad data changed tamper mode: got '%v' - want '%v'", mode, TamperHideUpdate)
		}
		value, err := c.Get(ctx, sum)
		if _, ok := store.(*dhash.Store); ok {
			if !errors.Is(err, ErrNotFound) {
				t.Fatalf("Corrupted content exists: got '%v' - want '%v'", err, ErrNotFound)
			}
		} else if err != nil || len(value) != 0 {
			t.Fatalf("Content has not been replaced: got '%s' - want empty content", value)
		}

		if err = c.Tamper(ctx, TamperNone, hash.Zero); err != nil {
			t.Fatalf("Failed to tamper: %v", err)
		}
		if _, err = c.Put(ctx, []byte("value")); err != nil {
			t.Fatalf("Failed to put content: %v", err)
		}
		if _, err = c.Get(ctx, sum); err != nil {
			t.Fatalf("Failed to get content: %v", err)
		}
	}
}
