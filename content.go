// Copyright 2023 - MinIO, Inc. All rights reserved.
// Use of this source code is governed by the AGPLv3
// license that can be found in the LICENSE file.

package fckv

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/minio/fckv/internal/dhash"
	"github.com/minio/fckv/internal/hash"
	"github.com/minio/fckv/internal/metric"
	"github.com/minio/fckv/kv"
)

// contentStore is a content-addressed store. Values are stored
// under the decimal string of their hash.
type contentStore struct {
	store      kv.Store[string, []byte]
	hideUpdate atomic.Bool

	log     *slog.Logger
	metrics *metric.Metrics
}

func newContentStore(store kv.Store[string, []byte], log *slog.Logger, metrics *metric.Metrics) *contentStore {
	return &contentStore{
		store:   store,
		log:     log,
		metrics: metrics,
	}
}

// Get returns the content with the given hash. It returns
// ErrNotFound if no such content exists.
func (c *contentStore) Get(ctx context.Context, sum hash.Sum) ([]byte, error) {
	value, err := c.store.Get(ctx, sum.String())
	if errors.Is(err, kv.ErrNotExists) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	c.metrics.ContentRead(len(value))
	return value, nil
}

// Put stores the value and returns its hash. If updates are
// hidden, it returns the hash without storing the value.
func (c *contentStore) Put(ctx context.Context, value []byte) (hash.Sum, error) {
	sum := hash.Of(value)
	if c.hideUpdate.Load() {
		c.log.DebugContext(ctx, "fckv: content update hidden", "hash", sum)
		return sum, nil
	}
	if err := c.store.Set(ctx, sum.String(), value); err != nil {
		return 0, err
	}
	c.metrics.ContentWritten(len(value))
	return sum, nil
}

// Tamper applies the tamper mode. TamperBadData replaces the
// content with the given hash with empty content.
func (c *contentStore) Tamper(ctx context.Context, mode TamperMode, sum hash.Sum) error {
	switch mode {
	case TamperNone:
		c.hideUpdate.Store(false)
	case TamperHideUpdate:
		c.hideUpdate.Store(true)
	case TamperBadData:
		key := sum.String()
		if _, err := c.store.Get(ctx, key); errors.Is(err, kv.ErrNotExists) {
			return ErrNotFound
		} else if err != nil {
			return err
		}
		var err error
		if d, ok := c.store.(*dhash.Store); ok {
			err = d.Corrupt(ctx, key)
		} else {
			err = c.store.Set(ctx, key, []byte{})
		}
		if err != nil {
			return err
		}
		c.log.WarnContext(ctx, "fckv: content replaced with empty content", "hash", sum)
		return nil
	default:
		return errors.New("fckv: invalid tamper mode")
	}
	c.log.WarnContext(ctx, "fckv: tamper mode changed", "mode", mode)
	return nil
}

// Mode returns the current tamper mode of subsequent writes.
func (c *contentStore) Mode() TamperMode {
	if c.hideUpdate.Load() {
		return TamperHideUpdate
	}
	return TamperNone
}
