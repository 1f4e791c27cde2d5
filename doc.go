// Copyright 2023 - MinIO, Inc. All rights reserved.
// Use of this source code is governed by the AGPLv3
// license that can be found in the LICENSE file.

// Package fckv implements a fork-consistent key-value store.
//
// A Server stores values and a ledger with the most recent signed
// version record of every client. It serializes client operations
// with a single leased lock. The server is not trusted: it may
// drop, roll back or substitute data.
//
// A Client executes each Get or Put as one operation:
//
//	StartOp  -> acquire lock, fetch ledger
//	validate -> verify signatures and version vectors
//	execute  -> read or write content-addressed values
//	CommitOp -> store the new signed record, release lock
//
// If the server shows two clients divergent histories, each client
// detects the fork on its first operation that observes a record of
// the other client. Such an operation fails with ErrSignatureMismatch
// or ErrIncompatibleHistory. Content that does not match its hash
// fails with ErrIntegrity.
package fckv
