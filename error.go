// Copyright 2023 - MinIO, Inc. All rights reserved.
// Use of this source code is governed by the AGPLv3
// license that can be found in the LICENSE file.

package fckv

import (
	"errors"
	"net/http"

	"github.com/minio/fckv/internal/api"
)

// Server API errors. Clients receive them as api.Error values
// that compare equal with errors.Is.
var (
	// ErrUnavailable is returned when the operation lock is held
	// by another identity, or when the caller does not hold the
	// lock but tries to commit, abort or access content.
	ErrUnavailable error = api.NewError(http.StatusServiceUnavailable, "operation lock is held by another client")

	// ErrNotFound is returned when no content exists for a hash.
	ErrNotFound error = api.NewError(http.StatusNotFound, "content does not exist")

	// ErrBadRecord is returned when a committed version record
	// is not owned by the caller, carries an invalid signature
	// or does not advance the owner's sequence number.
	ErrBadRecord error = api.NewError(http.StatusBadRequest, "invalid version record")

	// ErrTamperDisabled is returned when a client tries to inject
	// faults into a server that has fault injection disabled.
	ErrTamperDisabled error = api.NewError(http.StatusNotImplemented, "fault injection is disabled")

	// ErrForbidden is returned when a client lacks permission to
	// perform an API operation.
	ErrForbidden error = api.NewError(http.StatusForbidden, "not authorized: insufficient permissions")
)

// Client errors signaling server misbehavior.
var (
	// ErrSignatureMismatch is returned when the server's record for
	// the client's own identity differs from the record the client
	// accepted last. It indicates a forked or rolled back history.
	ErrSignatureMismatch = errors.New("fckv: signature mismatch: server returned a record the client has not accepted")

	// ErrIncompatibleHistory is returned when the records returned
	// by the server do not form a linear history.
	ErrIncompatibleHistory = errors.New("fckv: incompatible history")

	// ErrIntegrity is returned when content returned or stored by
	// the server does not match its hash.
	ErrIntegrity = errors.New("fckv: integrity check failed")

	// ErrInvalidSignature is returned when a record returned by the
	// server carries an invalid signature.
	ErrInvalidSignature = errors.New("fckv: invalid record signature")

	// ErrKeyNotFound is returned by Client.Get when no value exists
	// for a key.
	ErrKeyNotFound = errors.New("fckv: key does not exist")
)
