// Copyright 2023 - MinIO, Inc. All rights reserved.
// Use of this source code is governed by the AGPLv3
// license that can be found in the LICENSE file.

package fckv

import (
	"context"
	"fmt"

	"github.com/minio/fckv/internal/hash"
	"github.com/minio/fckv/internal/history"
	"github.com/minio/fckv/internal/itable"
)

// operation is a client operation in progress. It holds the
// client's next version record and the indirection table the
// record refers to.
type operation struct {
	record history.Record
	table  *itable.Table
}

// validate checks the ledger entries returned by StartOp against
// the client's accepted record and returns the next operation.
//
// It verifies the signature of every entry and rejects a ledger
// that does not contain the accepted record, or whose entries
// cannot belong to one linear history. On success, the returned
// record extends the history: its sequence number exceeds all
// sequence numbers seen, it carries the version vector of all
// entries and the table hash of the most recent entry. It is
// signed with the client's key.
//
// The table of the returned operation is nil. Use refreshTable
// to fetch it.
func (c *Client) validate(entries [][]byte) (*operation, error) {
	var (
		records = make([]history.Record, 0, len(entries))
		own     *history.Record
		seen    = make(map[string]bool, len(entries))
	)
	for _, b := range entries {
		var r history.Record
		if err := r.UnmarshalBinary(b); err != nil {
			c.log.Warn("fckv: server returned malformed version record", "err", err)
			return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
		}
		if err := r.Verify(); err != nil {
			c.log.Warn("fckv: server returned version record with invalid signature", "owner", r.Identity(), "err", err)
			return nil, fmt.Errorf("%w: record of '%s': %v", ErrInvalidSignature, r.Identity(), err)
		}

		identity := r.Identity()
		if seen[identity] {
			c.log.Warn("fckv: server returned more than one version record per client", "owner", identity)
			return nil, fmt.Errorf("%w: more than one record of '%s'", ErrIncompatibleHistory, identity)
		}
		seen[identity] = true

		records = append(records, r)
		if identity == c.identity {
			own = &records[len(records)-1]
		}
	}

	switch {
	case c.accepted != nil && (own == nil || !own.Equal(c.accepted)):
		c.log.Warn("fckv: server does not return the accepted version record", "seq", c.accepted.Seq)
		return nil, ErrSignatureMismatch
	case c.accepted == nil && own != nil:
		c.log.Warn("fckv: server returned a version record this client has not accepted", "seq", own.Seq)
		return nil, ErrSignatureMismatch
	}
	if c.accepted != nil {
		if err := history.CheckProgress(c.accepted.Vector, records); err != nil {
			c.log.Warn("fckv: server rolled back the history", "err", err)
			return nil, fmt.Errorf("%w: %v", ErrIncompatibleHistory, err)
		}
	}
	if err := history.CheckVectors(records); err != nil {
		c.log.Warn("fckv: server returned forked history", "err", err)
		return nil, fmt.Errorf("%w: %v", ErrIncompatibleHistory, err)
	}

	// The most recent record refers to the current table.
	var (
		maxSeq uint64
		table  = hash.Zero
	)
	for _, r := range records {
		if r.Seq > maxSeq {
			maxSeq, table = r.Seq, r.Table
		}
	}

	var working history.Record
	if c.accepted != nil {
		working = c.accepted.Clone()
	} else {
		working = history.Record{Owner: c.owner}
	}

	set := make([]history.Record, 0, len(records)+1)
	for _, r := range records {
		if r.Identity() != c.identity {
			set = append(set, r)
		}
	}
	working.Seq = maxSeq + 1
	set = append(set, working)
	if len(set) > history.MaxParticipants {
		return nil, fmt.Errorf("fckv: history exceeds %d clients", history.MaxParticipants)
	}
	if err := history.CheckOrder(set); err != nil {
		c.log.Warn("fckv: server returned forked history", "err", err)
		return nil, fmt.Errorf("%w: %v", ErrIncompatibleHistory, err)
	}

	working.Vector = history.NewVector(set)
	working.Table = table
	if err := working.Sign(c.key); err != nil {
		return nil, err
	}
	return &operation{record: working}, nil
}

// refreshTable sets the table of op to the table referred to
// by op's record. It fetches the table from the server unless
// the client already holds it.
func (c *Client) refreshTable(ctx context.Context, op *operation) error {
	sum := op.record.Table
	switch {
	case sum.IsZero():
		op.table = new(itable.Table)
		return nil
	case c.table != nil && c.tableHash == sum:
		op.table = c.table.Clone()
		return nil
	}

	b, err := c.getContent(ctx, sum)
	if err != nil {
		return err
	}
	if got := hash.Of(b); got != sum {
		c.log.Warn("fckv: server returned indirection table with wrong hash", "hash", sum, "got", got)
		return fmt.Errorf("%w: indirection table '%s' has hash '%s'", ErrIntegrity, sum, got)
	}

	table := new(itable.Table)
	if err = table.UnmarshalBinary(b); err != nil {
		return fmt.Errorf("%w: %v", ErrIntegrity, err)
	}
	op.table = table
	return nil
}
