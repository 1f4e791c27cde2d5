// Copyright 2023 - MinIO, Inc. All rights reserved.
// Use of this source code is governed by the AGPLv3
// license that can be found in the LICENSE file.

package kv_test

import (
	"context"
	"fmt"
	"log"
	"slices"

	"github.com/minio/fckv/kv"
	"github.com/minio/fckv/kv/mem"
)

func ExampleWithPrefix() {
	ctx := context.Background()
	store := &mem.Store{}

	ledger := kv.WithPrefix[[]byte](store, "ledger_")
	blobs := kv.WithPrefix[[]byte](store, "blob_")
	if err := ledger.Set(ctx, "alice", []byte("record")); err != nil {
		log.Fatalln(err)
	}
	if err := blobs.Set(ctx, "4711", []byte("value")); err != nil {
		log.Fatalln(err)
	}

	iter, err := ledger.List(ctx)
	if err != nil {
		log.Fatalln(err)
	}
	keys, err := kv.Collect(iter)
	if err != nil {
		log.Fatalln(err)
	}
	fmt.Println(keys)

	iter, err = store.List(ctx)
	if err != nil {
		log.Fatalln(err)
	}
	all, err := kv.Collect(iter)
	if err != nil {
		log.Fatalln(err)
	}
	slices.Sort(all)
	fmt.Println(all)
	// Output:
	// [alice]
	// [blob_4711 ledger_alice]
}
