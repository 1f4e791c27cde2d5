// Copyright 2023 - MinIO, Inc. All rights reserved.
// Use of this source code is governed by the AGPLv3
// license that can be found in the LICENSE file.

package fckv

import (
	"errors"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time           { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLease(ttl time.Duration) (*lease, *fakeClock) {
	clock := &fakeClock{t: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := newLease(ttl)
	l.now = clock.Now
	return l, clock
}

func TestLeaseExclusive(t *testing.T) {
	l, _ := newTestLease(time.Minute)

	if _, err := l.Acquire("a"); err != nil {
		t.Fatalf("failed to acquire free lease: %v", err)
	}
	if _, err := l.Acquire("b"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("got '%v' - want '%v'", err, ErrUnavailable)
	}
	if _, err := l.Acquire("a"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("holder acquired lease twice: got '%v' - want '%v'", err, ErrUnavailable)
	}
	if err := l.Release("b"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("non-holder released lease: got '%v' - want '%v'", err, ErrUnavailable)
	}
	if err := l.Release("a"); err != nil {
		t.Fatalf("failed to release lease: %v", err)
	}
	if err := l.Release("a"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("released free lease: got '%v' - want '%v'", err, ErrUnavailable)
	}
	if _, err := l.Acquire("b"); err != nil {
		t.Fatalf("failed to acquire released lease: %v", err)
	}
}

func TestLeaseReclaim(t *testing.T) {
	l, clock := newTestLease(time.Minute)

	if _, err := l.Acquire("a"); err != nil {
		t.Fatalf("failed to acquire free lease: %v", err)
	}
	clock.Advance(30 * time.Second)
	if err := l.Renew("a"); err != nil {
		t.Fatalf("failed to renew lease: %v", err)
	}
	clock.Advance(45 * time.Second)
	if _, err := l.Acquire("b"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("acquired renewed lease: got '%v' - want '%v'", err, ErrUnavailable)
	}

	clock.Advance(time.Minute)
	if holder, ttl, ok := l.Holder(); !ok || holder != "a" || ttl > 0 {
		t.Fatalf("invalid expired lease: holder '%s' ttl %v", holder, ttl)
	}
	reclaimed, err := l.Acquire("b")
	if err != nil {
		t.Fatalf("failed to reclaim expired lease: %v", err)
	}
	if reclaimed != "a" {
		t.Fatalf("got reclaimed holder '%s' - want '%s'", reclaimed, "a")
	}
	if err = l.Release("a"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("previous holder released reclaimed lease: got '%v' - want '%v'", err, ErrUnavailable)
	}
}

func TestLeaseExpiredRelease(t *testing.T) {
	l, clock := newTestLease(time.Second)

	if _, err := l.Acquire("a"); err != nil {
		t.Fatalf("failed to acquire free lease: %v", err)
	}
	clock.Advance(time.Hour)
	if err := l.Release("a"); err != nil {
		t.Fatalf("failed to release expired but not reclaimed lease: %v", err)
	}
	if _, _, ok := l.Holder(); ok {
		t.Fatal("lease is still held after release")
	}
}
