// Copyright 2023 - MinIO, Inc. All rights reserved.
// Use of this source code is governed by the AGPLv3
// license that can be found in the LICENSE file.

package kv

import (
	"context"
	"strings"
)

// WithPrefix returns a Store that shares the underlying
// storage of s but only sees keys starting with prefix.
// Keys passed to and returned by the Store do not contain
// the prefix.
//
// Closing the returned Store does not close s.
func WithPrefix[V any](s Store[string, V], prefix string) Store[string, V] {
	return &prefixStore[V]{store: s, prefix: prefix}
}

type prefixStore[V any] struct {
	store  Store[string, V]
	prefix string
}

func (p *prefixStore[V]) Status(ctx context.Context) (State, error) {
	return p.store.Status(ctx)
}

func (p *prefixStore[V]) Create(ctx context.Context, key string, value V) error {
	return p.store.Create(ctx, p.prefix+key, value)
}

func (p *prefixStore[V]) Set(ctx context.Context, key string, value V) error {
	return p.store.Set(ctx, p.prefix+key, value)
}

func (p *prefixStore[V]) Get(ctx context.Context, key string) (V, error) {
	return p.store.Get(ctx, p.prefix+key)
}

func (p *prefixStore[V]) Delete(ctx context.Context, key string) error {
	return p.store.Delete(ctx, p.prefix+key)
}

func (p *prefixStore[V]) List(ctx context.Context) (Iter[string], error) {
	iter, err := p.store.List(ctx)
	if err != nil {
		return nil, err
	}
	return &prefixIter{iter: iter, prefix: p.prefix}, nil
}

func (p *prefixStore[V]) Close() error { return nil }

type prefixIter struct {
	iter   Iter[string]
	prefix string
}

func (i *prefixIter) Next() (string, bool) {
	for {
		key, ok := i.iter.Next()
		if !ok {
			return "", false
		}
		if name, found := strings.CutPrefix(key, i.prefix); found {
			return name, true
		}
	}
}

func (i *prefixIter) Close() error { return i.iter.Close() }
