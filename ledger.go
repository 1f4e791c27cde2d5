// Copyright 2023 - MinIO, Inc. All rights reserved.
// Use of this source code is governed by the AGPLv3
// license that can be found in the LICENSE file.

package fckv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/minio/fckv/internal/cache"
	"github.com/minio/fckv/internal/history"
	"github.com/minio/fckv/internal/metric"
	"github.com/minio/fckv/kv"
)

// ledger holds the most recently committed version record of
// every client and the lock that serializes operations.
//
// Entries are persisted in a kv.Store keyed by the owner's
// identity. A commit writes the entry and releases the lock
// without any other operation observing a state in between.
type ledger struct {
	mu      sync.Mutex
	lock    *lease
	store   kv.Store[string, []byte]
	entries cache.Cow[string, []byte] // identity -> binary record

	log     *slog.Logger
	metrics *metric.Metrics
}

// openLedger loads all ledger entries from store.
func openLedger(ctx context.Context, store kv.Store[string, []byte], ttl time.Duration, log *slog.Logger, metrics *metric.Metrics) (*ledger, error) {
	l := &ledger{
		lock:    newLease(ttl),
		store:   store,
		log:     log,
		metrics: metrics,
	}

	iter, err := store.List(ctx)
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	for identity, ok := iter.Next(); ok; identity, ok = iter.Next() {
		b, err := store.Get(ctx, identity)
		if err != nil {
			return nil, fmt.Errorf("fckv: failed to load ledger entry '%s': %v", identity, err)
		}
		var r history.Record
		if err = r.UnmarshalBinary(b); err != nil {
			return nil, fmt.Errorf("fckv: failed to load ledger entry '%s': %v", identity, err)
		}
		if r.Identity() != identity {
			return nil, fmt.Errorf("fckv: failed to load ledger entry '%s': record belongs to '%s'", identity, r.Identity())
		}
		l.entries.Set(identity, b)
	}
	if err = iter.Close(); err != nil {
		return nil, err
	}
	return l, nil
}

// Start acquires the operation lock for identity and returns
// all ledger entries.
func (l *ledger) Start(identity string) ([][]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	reclaimed, err := l.lock.Acquire(identity)
	if err != nil {
		l.metrics.OpEvent(metric.OpUnavailable)
		return nil, err
	}
	if reclaimed != "" {
		l.metrics.OpEvent(metric.OpReclaim)
		l.log.Warn("fckv: operation lock reclaimed after lease expiry", "holder", reclaimed, "identity", identity)
	}
	l.metrics.OpEvent(metric.OpStart)
	return l.entries.Values(), nil
}

// Commit validates the record, stores it as ledger entry of
// identity and releases the lock. The lock remains held if
// the record is rejected or cannot be stored.
func (l *ledger) Commit(ctx context.Context, identity string, b []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if holder, _, ok := l.lock.Holder(); !ok || holder != identity {
		l.metrics.OpEvent(metric.OpUnavailable)
		return ErrUnavailable
	}

	var r history.Record
	if err := r.UnmarshalBinary(b); err != nil {
		return l.reject(identity, err)
	}
	if r.Identity() != identity {
		return l.reject(identity, errors.New("record owner does not match caller"))
	}
	if err := r.Verify(); err != nil {
		return l.reject(identity, err)
	}
	prev, ok := l.entries.Get(identity)
	if !ok && l.entries.Len() >= history.MaxParticipants {
		return l.reject(identity, fmt.Errorf("ledger holds %d entries", history.MaxParticipants))
	}
	if ok {
		var p history.Record
		if err := p.UnmarshalBinary(prev); err != nil {
			return err
		}
		if r.Seq <= p.Seq {
			return l.reject(identity, fmt.Errorf("sequence number %d does not exceed %d", r.Seq, p.Seq))
		}
	}

	if err := l.store.Set(ctx, identity, b); err != nil {
		return err
	}
	l.entries.Set(identity, b)
	l.lock.Release(identity)
	l.metrics.OpEvent(metric.OpCommit)
	return nil
}

// Abort releases the lock held by identity.
func (l *ledger) Abort(identity string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.lock.Release(identity); err != nil {
		l.metrics.OpEvent(metric.OpUnavailable)
		return err
	}
	l.metrics.OpEvent(metric.OpAbort)
	return nil
}

// WithLock extends the lease of the lock if held by identity
// and calls fn before any other identity can acquire the lock.
// Otherwise, it returns ErrUnavailable without calling fn.
func (l *ledger) WithLock(identity string, fn func() error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.lock.Renew(identity); err != nil {
		return err
	}
	return fn()
}

// Holder returns the current lock holder and the time until
// its lease expires. It returns false if the lock is free.
func (l *ledger) Holder() (string, time.Duration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.lock.Holder()
}

// Len returns the number of ledger entries.
func (l *ledger) Len() int { return l.entries.Len() }

func (l *ledger) reject(identity string, err error) error {
	l.metrics.OpEvent(metric.OpReject)
	l.log.Info("fckv: commit rejected", "identity", identity, "err", err)
	return ErrBadRecord
}
