// Copyright 2023 - MinIO, Inc. All rights reserved.
// Use of this source code is governed by the AGPLv3
// license that can be found in the LICENSE file.

package fs

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/minio/fckv/kv"
	"github.com/minio/fckv/kv/kvtest"
)

func TestStore(t *testing.T) {
	kvtest.Run(t, func(t *testing.T) kv.Store[string, []byte] {
		s, err := Open(t.TempDir())
		if err != nil {
			t.Fatalf("failed to open store: %v", err)
		}
		return s
	})
}

func TestOpenFile(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(filename, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(filename); err == nil {
		t.Fatalf("Opened store on a regular file")
	}
}

func TestEmptyKey(t *testing.T) {
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	if err := s.Create(ctx, "", nil); err == nil {
		t.Fatal("created entry with empty key")
	}
	if err := s.Set(ctx, "", nil); err == nil {
		t.Fatal("set entry with empty key")
	}
}

func TestKeyEncoding(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	for _, key := range []string{"../key", "key.tmp", `dir\key`, ".hidden"} {
		if err := s.Create(ctx, key, []byte(key)); err != nil {
			t.Fatalf("failed to create '%s': %v", key, err)
		}
		value, err := s.Get(ctx, key)
		if err != nil {
			t.Fatalf("failed to get '%s': %v", key, err)
		}
		if string(value) != key {
			t.Fatalf("got '%s' - want '%s'", value, key)
		}
	}

	// Unrelated files within the directory are ignored.
	if err := os.WriteFile(filepath.Join(dir, "not-hex"), nil, 0o600); err != nil {
		t.Fatal(err)
	}
	iter, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	keys, err := kv.Collect(iter)
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 4 {
		t.Fatalf("got %d keys - want %d: %v", len(keys), 4, keys)
	}
}
