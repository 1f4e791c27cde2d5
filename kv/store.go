// Copyright 2023 - MinIO, Inc. All rights reserved.
// Use of this source code is governed by the AGPLv3
// license that can be found in the LICENSE file.

// Package kv defines the storage engine interface of an
// FCKV server. The server keeps its ledger, content and
// verification hashes in one Store, separated by key
// prefixes. Engines live in the sub packages.
package kv

import (
	"context"
	"errors"
	"io"
	"time"
)

// Errors returned by every Store implementation.
var (
	ErrExists    = errors.New("kv: key already exists")
	ErrNotExists = errors.New("kv: key does not exist")
)

// Store is a key-value storage engine. It must be safe
// for concurrent use.
type Store[K comparable, V any] interface {
	// Status probes the engine. It returns an *Unreachable
	// error if the engine cannot be accessed.
	Status(context.Context) (State, error)

	// Create stores the entry unless the key is already
	// present, in which case it returns ErrExists.
	Create(context.Context, K, V) error

	// Set stores the entry, overwriting any existing value.
	Set(context.Context, K, V) error

	// Get returns the value for the key or ErrNotExists.
	Get(context.Context, K) (V, error)

	// Delete removes the entry or returns ErrNotExists.
	Delete(context.Context, K) error

	// List enumerates all keys in no particular order.
	List(context.Context) (Iter[K], error)

	io.Closer
}

// State is the result of probing a Store.
type State struct {
	Latency time.Duration // Time the probe took
}

// Unreachable wraps the cause why a Store cannot be
// accessed, e.g. a closed database or a missing directory.
type Unreachable struct {
	Err error
}

func (e *Unreachable) Error() string {
	const msg = "kv: storage engine is unreachable"
	if e.Err == nil {
		return msg
	}
	return msg + ": " + e.Err.Error()
}

func (e *Unreachable) Unwrap() error { return e.Err }
