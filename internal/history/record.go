// Copyright 2023 - MinIO, Inc. All rights reserved.
// Use of this source code is governed by the AGPLv3
// license that can be found in the LICENSE file.

// Package history implements signed version records and
// the checks that detect whether a set of records can
// belong to one linear history.
package history

import (
	"bytes"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"errors"
	"slices"

	"github.com/minio/fckv/internal/hash"
	"github.com/tinylib/msgp/msgp"
)

// MinKeySize is the min. size of an RSA owner key in bits.
const MinKeySize = 2048

// MaxSize is the max. size of a binary-encoded record with
// MaxParticipants vector entries.
const MaxSize = 16<<10 + MaxParticipants*128

var (
	// ErrInvalidSignature is returned when a record's signature
	// does not verify against the record owner's public key.
	ErrInvalidSignature = errors.New("history: invalid record signature")

	// ErrMalformed is returned when decoding a record fails.
	ErrMalformed = errors.New("history: malformed version record")

	// ErrUnsupportedKey is returned when the owner key is not an
	// RSA key or is smaller than MinKeySize.
	ErrUnsupportedKey = errors.New("history: unsupported owner key")
)

// Identity returns the identity of the owner's public key: the hex
// encoded SHA-256 hash of the DER-encoded PKIX public key.
//
// It matches the identity of a TLS client certificate for the same
// public key.
func Identity(owner []byte) string {
	sum := sha256.Sum256(owner)
	return hex.EncodeToString(sum[:])
}

// Owner returns the DER-encoded PKIX form of the given public key.
// It returns ErrUnsupportedKey if pub is not an RSA key of at least
// MinKeySize bits.
func Owner(pub crypto.PublicKey) ([]byte, error) {
	key, ok := pub.(*rsa.PublicKey)
	if !ok || key.N.BitLen() < MinKeySize {
		return nil, ErrUnsupportedKey
	}
	return x509.MarshalPKIXPublicKey(key)
}

// Record is a signed version record. Each client advances its
// record on every operation. The most recent committed record of
// every client forms the server's ledger.
type Record struct {
	Owner     []byte   // DER-encoded PKIX RSA public key
	Seq       uint64   // Sequence number, strictly increasing per owner
	Vector    Vector   // Sequence numbers of all known owners
	Table     hash.Sum // Hash of the indirection table
	Signature []byte   // RSA PKCS #1 v1.5 SHA-256 signature
}

// Identity returns the identity of the record's owner.
func (r *Record) Identity() string { return Identity(r.Owner) }

// Clone returns a deep copy of r.
func (r *Record) Clone() Record {
	return Record{
		Owner:     slices.Clone(r.Owner),
		Seq:       r.Seq,
		Vector:    slices.Clone(r.Vector),
		Table:     r.Table,
		Signature: slices.Clone(r.Signature),
	}
}

// Equal reports whether r and o have identical fields.
func (r *Record) Equal(o *Record) bool {
	return bytes.Equal(r.Owner, o.Owner) &&
		r.Seq == o.Seq &&
		slices.Equal(r.Vector, o.Vector) &&
		r.Table == o.Table &&
		bytes.Equal(r.Signature, o.Signature)
}

// Sign signs the record with the given private key. The key's
// public key must match the record owner.
func (r *Record) Sign(key crypto.Signer) error {
	owner, err := Owner(key.Public())
	if err != nil {
		return err
	}
	if !bytes.Equal(owner, r.Owner) {
		return errors.New("history: signing key does not match record owner")
	}

	digest := sha256.Sum256(r.signedBytes())
	signature, err := key.Sign(rand.Reader, digest[:], crypto.SHA256)
	if err != nil {
		return err
	}
	r.Signature = signature
	return nil
}

// Verify verifies the record's signature against the owner's
// public key. It also checks that the record's vector is sorted
// and contains the owner's sequence number.
func (r *Record) Verify() error {
	pub, err := x509.ParsePKIXPublicKey(r.Owner)
	if err != nil {
		return ErrUnsupportedKey
	}
	key, ok := pub.(*rsa.PublicKey)
	if !ok || key.N.BitLen() < MinKeySize {
		return ErrUnsupportedKey
	}

	digest := sha256.Sum256(r.signedBytes())
	if err = rsa.VerifyPKCS1v15(key, crypto.SHA256, digest[:], r.Signature); err != nil {
		return ErrInvalidSignature
	}
	if !r.Vector.Sorted() || len(r.Vector) > MaxParticipants {
		return errors.New("history: record vector is unsorted or too large")
	}
	if seq, ok := r.Vector.Get(r.Identity()); !ok || seq != r.Seq {
		return errors.New("history: record vector does not contain the owner's sequence number")
	}
	return nil
}

// MarshalBinary returns the record's canonical binary encoding.
func (r *Record) MarshalBinary() ([]byte, error) {
	return r.appendBinary(nil, r.Signature), nil
}

// UnmarshalBinary decodes a record from its canonical binary
// encoding.
func (r *Record) UnmarshalBinary(b []byte) error {
	const Items = 5

	if len(b) > MaxSize {
		return ErrMalformed
	}
	items, b, err := msgp.ReadArrayHeaderBytes(b)
	if err != nil || items != Items {
		return ErrMalformed
	}
	owner, b, err := msgp.ReadBytesBytes(b, nil)
	if err != nil {
		return ErrMalformed
	}
	seq, b, err := msgp.ReadUint64Bytes(b)
	if err != nil {
		return ErrMalformed
	}

	n, b, err := msgp.ReadArrayHeaderBytes(b)
	if err != nil || int(n) > len(b) || n > MaxParticipants {
		return ErrMalformed
	}
	vector := make(Vector, 0, n)
	for i := uint32(0); i < n; i++ {
		var (
			fields uint32
			e      Entry
		)
		if fields, b, err = msgp.ReadArrayHeaderBytes(b); err != nil || fields != 2 {
			return ErrMalformed
		}
		if e.Identity, b, err = msgp.ReadStringBytes(b); err != nil {
			return ErrMalformed
		}
		if e.Seq, b, err = msgp.ReadUint64Bytes(b); err != nil {
			return ErrMalformed
		}
		vector = append(vector, e)
	}
	if !vector.Sorted() {
		return ErrMalformed
	}

	table, b, err := msgp.ReadUint64Bytes(b)
	if err != nil {
		return ErrMalformed
	}
	signature, b, err := msgp.ReadBytesBytes(b, nil)
	if err != nil {
		return ErrMalformed
	}
	if len(b) != 0 {
		return ErrMalformed
	}

	r.Owner = owner
	r.Seq = seq
	r.Vector = vector
	r.Table = hash.Sum(table)
	r.Signature = signature
	return nil
}

// signedBytes returns the canonical encoding of r with an
// empty signature.
func (r *Record) signedBytes() []byte { return r.appendBinary(nil, nil) }

func (r *Record) appendBinary(b, signature []byte) []byte {
	const Items = 5

	b = msgp.AppendArrayHeader(b, Items)
	b = msgp.AppendBytes(b, r.Owner)
	b = msgp.AppendUint64(b, r.Seq)
	b = msgp.AppendArrayHeader(b, uint32(len(r.Vector)))
	for _, e := range r.Vector {
		b = msgp.AppendArrayHeader(b, 2)
		b = msgp.AppendString(b, e.Identity)
		b = msgp.AppendUint64(b, e.Seq)
	}
	b = msgp.AppendUint64(b, uint64(r.Table))
	b = msgp.AppendBytes(b, signature)
	return b
}
