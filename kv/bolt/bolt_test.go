// Copyright 2023 - MinIO, Inc. All rights reserved.
// Use of this source code is governed by the AGPLv3
// license that can be found in the LICENSE file.

package bolt

import (
	"path/filepath"
	"testing"

	"github.com/minio/fckv/kv"
	"github.com/minio/fckv/kv/kvtest"
)

func TestStore(t *testing.T) {
	kvtest.Run(t, func(t *testing.T) kv.Store[string, []byte] {
		s, err := Open(filepath.Join(t.TempDir(), "fckv.db"))
		if err != nil {
			t.Fatalf("failed to open store: %v", err)
		}
		return s
	})
}
