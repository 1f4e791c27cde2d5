// Copyright 2023 - MinIO, Inc. All rights reserved.
// Use of this source code is governed by the AGPLv3
// license that can be found in the LICENSE file.

package history

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"sync"
	"testing"

	"github.com/minio/fckv/internal/hash"
)

var (
	keysOnce sync.Once
	keys     [3]*rsa.PrivateKey
)

// testKey returns one of a few RSA keys shared by all tests
// since generating RSA keys is slow.
func testKey(t *testing.T, i int) *rsa.PrivateKey {
	t.Helper()
	keysOnce.Do(func() {
		for j := range keys {
			key, err := rsa.GenerateKey(rand.Reader, MinKeySize)
			if err != nil {
				panic(err)
			}
			keys[j] = key
		}
	})
	return keys[i]
}

func testRecord(t *testing.T, i int, seq uint64) Record {
	t.Helper()

	key := testKey(t, i)
	owner, err := Owner(key.Public())
	if err != nil {
		t.Fatalf("failed to encode owner: %v", err)
	}
	r := Record{
		Owner:  owner,
		Seq:    seq,
		Vector: Vector{{Identity: Identity(owner), Seq: seq}},
		Table:  hash.Of([]byte("table")),
	}
	if err = r.Sign(key); err != nil {
		t.Fatalf("failed to sign record: %v", err)
	}
	return r
}

func TestRecordSignVerify(t *testing.T) {
	r := testRecord(t, 0, 1)
	if err := r.Verify(); err != nil {
		t.Fatalf("failed to verify record: %v", err)
	}

	tampered := r.Clone()
	tampered.Seq++
	tampered.Vector[0].Seq++
	if err := tampered.Verify(); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("modified sequence: got %v - want %v", err, ErrInvalidSignature)
	}

	tampered = r.Clone()
	tampered.Table++
	if err := tampered.Verify(); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("modified table hash: got %v - want %v", err, ErrInvalidSignature)
	}

	other := testRecord(t, 1, 1)
	tampered = r.Clone()
	tampered.Signature = other.Signature
	if err := tampered.Verify(); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("foreign signature: got %v - want %v", err, ErrInvalidSignature)
	}
}

func TestRecordSignWrongKey(t *testing.T) {
	r := testRecord(t, 0, 1)
	if err := r.Sign(testKey(t, 1)); err == nil {
		t.Fatal("signed record with a key of another owner")
	}

	ecKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	if err = r.Sign(ecKey); !errors.Is(err, ErrUnsupportedKey) {
		t.Fatalf("ECDSA key: got %v - want %v", err, ErrUnsupportedKey)
	}
}

func TestRecordVerifyMissingVectorEntry(t *testing.T) {
	key := testKey(t, 0)
	owner, _ := Owner(key.Public())
	r := Record{Owner: owner, Seq: 2}
	if err := r.Sign(key); err != nil {
		t.Fatal(err)
	}
	if err := r.Verify(); err == nil {
		t.Fatal("verified record without own vector entry")
	}
}

func TestRecordUnsortedVector(t *testing.T) {
	r := testRecord(t, 0, 7)
	other := Entry{Identity: Identity([]byte("a")), Seq: 3}
	if other.Identity < r.Vector[0].Identity {
		r.Vector = append(r.Vector, other)
	} else {
		r.Vector = append(Vector{other}, r.Vector...)
	}
	if err := r.Sign(testKey(t, 0)); err != nil {
		t.Fatal(err)
	}
	if err := r.Verify(); err == nil {
		t.Fatal("verified record with unsorted vector")
	}

	b, err := r.MarshalBinary()
	if err != nil {
		t.Fatalf("failed to encode record: %v", err)
	}
	var got Record
	if err = got.UnmarshalBinary(b); !errors.Is(err, ErrMalformed) {
		t.Fatalf("unsorted vector: got %v - want %v", err, ErrMalformed)
	}
}

func TestRecordBinary(t *testing.T) {
	r := testRecord(t, 0, 7)
	r.Vector = NewVector([]Record{unsigned("a", 3), r})
	if err := r.Sign(testKey(t, 0)); err != nil {
		t.Fatal(err)
	}

	b, err := r.MarshalBinary()
	if err != nil {
		t.Fatalf("failed to encode record: %v", err)
	}
	var got Record
	if err = got.UnmarshalBinary(b); err != nil {
		t.Fatalf("failed to decode record: %v", err)
	}
	if !got.Equal(&r) {
		t.Fatalf("decoded record differs: got %+v - want %+v", got, r)
	}
	if err = got.Verify(); err != nil {
		t.Fatalf("failed to verify decoded record: %v", err)
	}

	b2, _ := got.MarshalBinary()
	if string(b) != string(b2) {
		t.Fatal("encoding is not canonical")
	}
}

func TestRecordUnmarshalMalformed(t *testing.T) {
	r := testRecord(t, 0, 1)
	b, _ := r.MarshalBinary()

	for i, data := range [][]byte{
		nil,
		{0x90},
		b[:len(b)-1],
		append(b[:len(b):len(b)], 0x00),
	} {
		var got Record
		if err := got.UnmarshalBinary(data); !errors.Is(err, ErrMalformed) {
			t.Fatalf("Test %d: got %v - want %v", i, err, ErrMalformed)
		}
	}
}
