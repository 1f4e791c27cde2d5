// Copyright 2023 - MinIO, Inc. All rights reserved.
// Use of this source code is governed by the AGPLv3
// license that can be found in the LICENSE file.

package fckv

import "time"

// DefaultLockLease is the lock lease used when Config.LockLease
// is not set.
const DefaultLockLease = 30 * time.Second

// lease is a single-slot lock with an expiry. It is either free
// or held by one identity.
//
// A held lease that has expired remains held by its holder until
// another identity acquires it. The holder can still release it
// until then.
//
// A lease is not safe for concurrent use.
type lease struct {
	holder string
	expiry time.Time
	ttl    time.Duration
	now    func() time.Time
}

func newLease(ttl time.Duration) *lease {
	if ttl <= 0 {
		ttl = DefaultLockLease
	}
	return &lease{
		ttl: ttl,
		now: time.Now,
	}
}

// Acquire acquires the lease for identity. It returns the
// previous holder if the lease had expired and has been
// reclaimed. It returns ErrUnavailable if the lease is held
// and has not expired, even if identity is the holder.
func (l *lease) Acquire(identity string) (reclaimed string, err error) {
	now := l.now()
	if l.holder != "" {
		if now.Before(l.expiry) {
			return "", ErrUnavailable
		}
		reclaimed = l.holder
	}
	l.holder, l.expiry = identity, now.Add(l.ttl)
	return reclaimed, nil
}

// Release releases the lease if it is held by identity.
// Otherwise, it returns ErrUnavailable.
func (l *lease) Release(identity string) error {
	if l.holder == "" || l.holder != identity {
		return ErrUnavailable
	}
	l.holder, l.expiry = "", time.Time{}
	return nil
}

// Renew extends the lease if it is held by identity.
// Otherwise, it returns ErrUnavailable.
func (l *lease) Renew(identity string) error {
	if l.holder == "" || l.holder != identity {
		return ErrUnavailable
	}
	l.expiry = l.now().Add(l.ttl)
	return nil
}

// Holder returns the current holder and the time until the
// lease expires. It returns false if the lease is free.
func (l *lease) Holder() (string, time.Duration, bool) {
	if l.holder == "" {
		return "", 0, false
	}
	return l.holder, l.expiry.Sub(l.now()), true
}
