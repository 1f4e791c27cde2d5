// Copyright 2023 - MinIO, Inc. All rights reserved.
// Use of this source code is governed by the AGPLv3
// license that can be found in the LICENSE file.

package fckv_test

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/minio/fckv"
	"github.com/minio/fckv/fckvtest"
)

func ExampleClient_Get() {
	server := fckvtest.NewServer()
	defer server.Close()

	client := server.Client()
	if err := client.Put(context.Background(), "100", []byte("20")); err != nil {
		log.Fatal(err)
	}

	value, err := client.Get(context.Background(), "100")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(string(value))

	_, err = client.Get(context.Background(), "200")
	fmt.Println(errors.Is(err, fckv.ErrKeyNotFound))

	// Output:
	// 20
	// true
}
