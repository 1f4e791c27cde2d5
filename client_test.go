// Copyright 2023 - MinIO, Inc. All rights reserved.
// Use of this source code is governed by the AGPLv3
// license that can be found in the LICENSE file.

package fckv_test

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/minio/fckv"
	"github.com/minio/fckv/fckvtest"
	"github.com/minio/fckv/internal/hash"
	"github.com/minio/fckv/kv/bolt"
)

func TestPutGet(t *testing.T) {
	ctx := testContext(t)
	server := fckvtest.NewServer()
	defer server.Close()

	var (
		alice = server.Client()
		bob   = server.Client()
	)
	if err := alice.Put(ctx, "100", []byte("20")); err != nil {
		t.Fatalf("Failed to put value: %v", err)
	}
	for _, client := range []*fckv.Client{alice, bob} {
		value, err := client.Get(ctx, "100")
		if err != nil {
			t.Fatalf("Failed to get value: %v", err)
		}
		if !bytes.Equal(value, []byte("20")) {
			t.Fatalf("Invalid value: got '%s' - want '%s'", value, "20")
		}
	}

	if err := bob.Put(ctx, "100", []byte("30")); err != nil {
		t.Fatalf("Failed to put value: %v", err)
	}
	value, err := alice.Get(ctx, "100")
	if err != nil {
		t.Fatalf("Failed to get value: %v", err)
	}
	if !bytes.Equal(value, []byte("30")) {
		t.Fatalf("Invalid value: got '%s' - want '%s'", value, "30")
	}
}

func TestManyClients(t *testing.T) {
	const N = 10

	ctx := testContext(t)
	server := fckvtest.NewServer()
	defer server.Close()

	clients := make([]*fckv.Client, 0, N)
	for range N {
		clients = append(clients, server.Client())
	}
	for i, client := range clients {
		if err := client.Put(ctx, strconv.Itoa(i), []byte(strconv.Itoa(i*i))); err != nil {
			t.Fatalf("Client %d: failed to put value: %v", i, err)
		}
	}
	for i, client := range clients {
		for j := range N {
			value, err := client.Get(ctx, strconv.Itoa(j))
			if err != nil {
				t.Fatalf("Client %d: failed to get key '%d': %v", i, j, err)
			}
			if want := strconv.Itoa(j * j); string(value) != want {
				t.Fatalf("Client %d: invalid value of key '%d': got '%s' - want '%s'", i, j, value, want)
			}
		}
	}

	status, err := server.Admin().Status(ctx)
	if err != nil {
		t.Fatalf("Failed to fetch server status: %v", err)
	}
	if status.LedgerSize != N {
		t.Fatalf("Invalid ledger size: got %d - want %d", status.LedgerSize, N)
	}
	if status.LockHolder != "" {
		t.Fatalf("Operation lock is held by '%s'", status.LockHolder)
	}
}

func TestSequence(t *testing.T) {
	ctx := testContext(t)
	server := fckvtest.NewServer()
	defer server.Close()

	var (
		alice = server.Client()
		bob   = server.Client()
	)
	if err := alice.Put(ctx, "a", []byte("1")); err != nil {
		t.Fatalf("Failed to put value: %v", err)
	}
	if seq := alice.Seq(); seq != 1 {
		t.Fatalf("Invalid sequence number: got %d - want %d", seq, 1)
	}
	if _, err := bob.Get(ctx, "a"); err != nil {
		t.Fatalf("Failed to get value: %v", err)
	}
	if seq := bob.Seq(); seq != 2 {
		t.Fatalf("Invalid sequence number: got %d - want %d", seq, 2)
	}
	if err := alice.Put(ctx, "a", []byte("2")); err != nil {
		t.Fatalf("Failed to put value: %v", err)
	}
	if seq := alice.Seq(); seq != 3 {
		t.Fatalf("Invalid sequence number: got %d - want %d", seq, 3)
	}
}

func TestGetMissingKey(t *testing.T) {
	ctx := testContext(t)
	server := fckvtest.NewServer()
	defer server.Close()

	client := server.Client()
	if _, err := client.Get(ctx, "missing"); !errors.Is(err, fckv.ErrKeyNotFound) {
		t.Fatalf("Get succeeded: got '%v' - want '%v'", err, fckv.ErrKeyNotFound)
	}

	// The failed operation must have released the lock.
	if err := client.Put(ctx, "missing", []byte("value")); err != nil {
		t.Fatalf("Failed to put value: %v", err)
	}
	if _, err := client.Get(ctx, "missing"); err != nil {
		t.Fatalf("Failed to get value: %v", err)
	}
}

func TestKeys(t *testing.T) {
	ctx := testContext(t)
	server := fckvtest.NewServer()
	defer server.Close()

	client := server.Client()
	for _, key := range []string{"c", "a", "b"} {
		if err := client.Put(ctx, key, []byte(key)); err != nil {
			t.Fatalf("Failed to put value: %v", err)
		}
	}
	keys, err := server.Client().Keys(ctx)
	if err != nil {
		t.Fatalf("Failed to list keys: %v", err)
	}
	if len(keys) != 3 || keys[0] != "a" || keys[1] != "b" || keys[2] != "c" {
		t.Fatalf("Invalid keys: got %v - want %v", keys, []string{"a", "b", "c"})
	}
}

func TestClientState(t *testing.T) {
	ctx := testContext(t)
	server := fckvtest.NewServer()
	defer server.Close()

	cert := server.IssueClientCertificate("alice")
	alice, err := fckv.NewClient(server.ClientConfig(cert))
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	if err = alice.Put(ctx, "key", []byte("value")); err != nil {
		t.Fatalf("Failed to put value: %v", err)
	}

	// A client with the same identity but without the accepted
	// record cannot tell the server's record apart from a forged one.
	fresh, err := fckv.NewClient(server.ClientConfig(cert))
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	if _, err = fresh.Get(ctx, "key"); !errors.Is(err, fckv.ErrSignatureMismatch) {
		t.Fatalf("Get succeeded: got '%v' - want '%v'", err, fckv.ErrSignatureMismatch)
	}

	state, err := alice.State().MarshalBinary()
	if err != nil {
		t.Fatalf("Failed to encode client state: %v", err)
	}
	var restored fckv.ClientState
	if err = restored.UnmarshalBinary(state); err != nil {
		t.Fatalf("Failed to decode client state: %v", err)
	}
	config := server.ClientConfig(cert)
	config.State = &restored
	alice, err = fckv.NewClient(config)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	if _, err = alice.Get(ctx, "key"); err != nil {
		t.Fatalf("Failed to get value: %v", err)
	}

	config = server.ClientConfig(server.IssueClientCertificate("bob"))
	config.State = &restored
	if _, err = fckv.NewClient(config); err == nil {
		t.Fatal("Created client with state of a different identity")
	}
}

func TestSignatureMismatch(t *testing.T) {
	ctx := testContext(t)
	server := fckvtest.NewServer()
	defer server.Close()

	alice := server.Client()
	if err := alice.Put(ctx, "key", []byte("v1")); err != nil {
		t.Fatalf("Failed to put value: %v", err)
	}
	old := readLedger(t, server, alice)
	if err := alice.Put(ctx, "key", []byte("v2")); err != nil {
		t.Fatalf("Failed to put value: %v", err)
	}

	// Roll back alice's ledger entry.
	writeLedger(t, server, alice, old)
	server.Restart()

	before := snapshot(alice)
	if _, err := alice.Get(ctx, "key"); !errors.Is(err, fckv.ErrSignatureMismatch) {
		t.Fatalf("Get succeeded: got '%v' - want '%v'", err, fckv.ErrSignatureMismatch)
	}
	checkState(t, alice, before)

	status, err := server.Admin().Status(ctx)
	if err != nil {
		t.Fatalf("Failed to fetch server status: %v", err)
	}
	if status.LockHolder != "" {
		t.Fatalf("Operation lock is still held by '%s'", status.LockHolder)
	}
}

func TestForkDetection(t *testing.T) {
	ctx := testContext(t)
	server := fckvtest.NewServer()
	defer server.Close()

	var (
		alice = server.Client()
		bob   = server.Client()
	)
	if err := alice.Put(ctx, "key", []byte("alice")); err != nil {
		t.Fatalf("Failed to put value: %v", err)
	}
	if err := bob.Put(ctx, "key", []byte("bob")); err != nil {
		t.Fatalf("Failed to put value: %v", err)
	}

	// Hide bob's operation from alice.
	bobEntry := readLedger(t, server, bob)
	deleteLedger(t, server, bob)
	server.Restart()

	value, err := alice.Get(ctx, "key")
	if err != nil {
		t.Fatalf("Failed to get value: %v", err)
	}
	if string(value) != "alice" {
		t.Fatalf("Invalid value: got '%s' - want '%s'", value, "alice")
	}

	// Join both histories. The server cannot order them.
	writeLedger(t, server, bob, bobEntry)
	server.Restart()

	aliceState, bobState := snapshot(alice), snapshot(bob)
	if _, err = bob.Get(ctx, "key"); !errors.Is(err, fckv.ErrIncompatibleHistory) {
		t.Fatalf("Get succeeded: got '%v' - want '%v'", err, fckv.ErrIncompatibleHistory)
	}
	if _, err = alice.Get(ctx, "key"); !errors.Is(err, fckv.ErrIncompatibleHistory) {
		t.Fatalf("Get succeeded: got '%v' - want '%v'", err, fckv.ErrIncompatibleHistory)
	}
	checkState(t, alice, aliceState)
	checkState(t, bob, bobState)
}

func TestRollbackDetection(t *testing.T) {
	ctx := testContext(t)
	server := fckvtest.NewServer()
	defer server.Close()

	var (
		alice = server.Client()
		bob   = server.Client()
	)
	if err := alice.Put(ctx, "key", []byte("v1")); err != nil {
		t.Fatalf("Failed to put value: %v", err)
	}
	old := readLedger(t, server, alice)
	if err := alice.Put(ctx, "key", []byte("v2")); err != nil {
		t.Fatalf("Failed to put value: %v", err)
	}
	if _, err := bob.Get(ctx, "key"); err != nil {
		t.Fatalf("Failed to get value: %v", err)
	}

	// Roll back alice's entry that bob has already observed.
	writeLedger(t, server, alice, old)
	server.Restart()

	before := snapshot(bob)
	if _, err := bob.Get(ctx, "key"); !errors.Is(err, fckv.ErrIncompatibleHistory) {
		t.Fatalf("Get succeeded: got '%v' - want '%v'", err, fckv.ErrIncompatibleHistory)
	}
	checkState(t, bob, before)
}

func TestInvalidSignature(t *testing.T) {
	ctx := testContext(t)
	server := fckvtest.NewServer()
	defer server.Close()

	var (
		alice = server.Client()
		bob   = server.Client()
	)
	if err := bob.Put(ctx, "key", []byte("bob")); err != nil {
		t.Fatalf("Failed to put value: %v", err)
	}

	entry := readLedger(t, server, bob)
	entry[len(entry)-1] ^= 0xff // Flip bits of the signature
	writeLedger(t, server, bob, entry)
	server.Restart()

	if _, err := alice.Get(ctx, "key"); !errors.Is(err, fckv.ErrInvalidSignature) {
		t.Fatalf("Get succeeded: got '%v' - want '%v'", err, fckv.ErrInvalidSignature)
	}
}

func TestTamperHideUpdate(t *testing.T) {
	ctx := testContext(t)
	server := fckvtest.NewServer()
	defer server.Close()

	var (
		admin = server.Admin()
		alice = server.Client()
		bob   = server.Client()
	)
	if err := admin.Tamper(ctx, fckv.TamperHideUpdate, hash.Zero); err != nil {
		t.Fatalf("Failed to tamper server: %v", err)
	}
	if err := alice.Put(ctx, "key", []byte("value")); err != nil {
		t.Fatalf("Failed to put value: %v", err)
	}
	status, err := admin.Status(ctx)
	if err != nil {
		t.Fatalf("Failed to fetch server status: %v", err)
	}
	if status.TamperMode != fckv.TamperHideUpdate.String() {
		t.Fatalf("Invalid tamper mode: got '%s' - want '%s'", status.TamperMode, fckv.TamperHideUpdate)
	}
	before := snapshot(bob)
	if _, err = bob.Get(ctx, "key"); !errors.Is(err, fckv.ErrNotFound) {
		t.Fatalf("Get succeeded: got '%v' - want '%v'", err, fckv.ErrNotFound)
	}
	checkState(t, bob, before)

	if err = admin.Tamper(ctx, fckv.TamperNone, hash.Zero); err != nil {
		t.Fatalf("Failed to reset tamper mode: %v", err)
	}
	if err = alice.Put(ctx, "key", []byte("value")); err != nil {
		t.Fatalf("Failed to put value: %v", err)
	}
	if _, err = bob.Get(ctx, "key"); err != nil {
		t.Fatalf("Failed to get value: %v", err)
	}
}

func TestTamperBadData(t *testing.T) {
	for _, verify := range []fckv.VerifyMode{fckv.VerifyNone, fckv.VerifyDoubleHash} {
		t.Run(verify.String(), func(t *testing.T) {
			ctx := testContext(t)
			server := fckvtest.NewServerWithOptions(&fckvtest.Options{Verify: verify})
			defer server.Close()

			var (
				admin = server.Admin()
				alice = server.Client()
				bob   = server.Client()
			)
			if err := alice.Put(ctx, "key", []byte("value")); err != nil {
				t.Fatalf("Failed to put value: %v", err)
			}
			if err := admin.Tamper(ctx, fckv.TamperBadData, hash.Of([]byte("value"))); err != nil {
				t.Fatalf("Failed to tamper server: %v", err)
			}

			before := snapshot(bob)
			_, err := bob.Get(ctx, "key")
			checkState(t, bob, before)
			switch verify {
			case fckv.VerifyDoubleHash:
				if !errors.Is(err, fckv.ErrNotFound) {
					t.Fatalf("Get succeeded: got '%v' - want '%v'", err, fckv.ErrNotFound)
				}
			default:
				if !errors.Is(err, fckv.ErrIntegrity) {
					t.Fatalf("Get succeeded: got '%v' - want '%v'", err, fckv.ErrIntegrity)
				}
			}

			// Writing the value again repairs the content.
			if err = alice.Put(ctx, "key", []byte("value")); err != nil {
				t.Fatalf("Failed to put value: %v", err)
			}
			if _, err = bob.Get(ctx, "key"); err != nil {
				t.Fatalf("Failed to get value: %v", err)
			}
		})
	}
}

func TestTamperBadDataMissing(t *testing.T) {
	ctx := testContext(t)
	server := fckvtest.NewServer()
	defer server.Close()

	err := server.Admin().Tamper(ctx, fckv.TamperBadData, hash.Of([]byte("missing")))
	if !errors.Is(err, fckv.ErrNotFound) {
		t.Fatalf("Tamper succeeded: got '%v' - want '%v'", err, fckv.ErrNotFound)
	}
}

func TestLockUnavailable(t *testing.T) {
	ctx := testContext(t)
	server := fckvtest.NewServerWithOptions(&fckvtest.Options{LockLease: 200 * time.Millisecond})
	defer server.Close()

	cert := server.IssueClientCertificate("stalled")
	startOp(t, server, cert)

	client := server.Client()
	if err := client.Put(ctx, "key", []byte("value")); !errors.Is(err, fckv.ErrUnavailable) {
		t.Fatalf("Put succeeded: got '%v' - want '%v'", err, fckv.ErrUnavailable)
	}

	status, err := server.Admin().Status(ctx)
	if err != nil {
		t.Fatalf("Failed to fetch server status: %v", err)
	}
	if status.LockHolder == "" {
		t.Fatal("Operation lock is not held")
	}

	time.Sleep(300 * time.Millisecond) // Wait until the lease expires
	if err = client.Put(ctx, "key", []byte("value")); err != nil {
		t.Fatalf("Failed to put value after lease expiry: %v", err)
	}
}

func TestStartOpMalformedResponse(t *testing.T) {
	ctx := testContext(t)
	server := fckvtest.NewServer()
	defer server.Close()

	config := server.ClientConfig(server.IssueClientCertificate("alice"))
	config.HTTPClient = &http.Client{
		Transport: truncateStartOp{
			RoundTripper: &http.Transport{
				TLSClientConfig: &tls.Config{
					Certificates: []tls.Certificate{config.Certificate},
					RootCAs:      server.CAs(),
				},
			},
		},
	}
	alice, err := fckv.NewClient(config)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	if err = alice.Put(ctx, "key", []byte("value")); err == nil {
		t.Fatal("Put succeeded with truncated start operation response")
	}

	status, err := server.Admin().Status(ctx)
	if err != nil {
		t.Fatalf("Failed to fetch server status: %v", err)
	}
	if status.LockHolder != "" {
		t.Fatalf("Operation lock is still held by '%s'", status.LockHolder)
	}
	if err = server.Client().Put(ctx, "key", []byte("value")); err != nil {
		t.Fatalf("Failed to put value: %v", err)
	}
}

func TestDurability(t *testing.T) {
	for _, verify := range []fckv.VerifyMode{fckv.VerifyNone, fckv.VerifyDoubleHash} {
		t.Run(verify.String(), func(t *testing.T) {
			ctx := testContext(t)
			store, err := bolt.Open(filepath.Join(t.TempDir(), "fckv.db"))
			if err != nil {
				t.Fatalf("Failed to open store: %v", err)
			}
			defer store.Close()

			server := fckvtest.NewServerWithOptions(&fckvtest.Options{Store: store, Verify: verify})
			defer server.Close()

			alice := server.Client()
			if err = alice.Put(ctx, "key", []byte(verify.String())); err != nil {
				t.Fatalf("Failed to put value: %v", err)
			}
			server.Restart()

			value, err := alice.Get(ctx, "key")
			if err != nil {
				t.Fatalf("Failed to get value: %v", err)
			}
			if string(value) != verify.String() {
				t.Fatalf("Invalid value: got '%s' - want '%s'", value, verify)
			}
		})
	}
}

func TestContentCache(t *testing.T) {
	ctx := testContext(t)
	server := fckvtest.NewServer()
	defer server.Close()

	config := server.ClientConfig(server.IssueClientCertificate("alice"))
	config.CacheExpiry = time.Minute
	alice, err := fckv.NewClient(config)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	if err = alice.Put(ctx, "key", []byte("value")); err != nil {
		t.Fatalf("Failed to put value: %v", err)
	}
	for range 2 {
		value, err := alice.Get(ctx, "key")
		if err != nil {
			t.Fatalf("Failed to get value: %v", err)
		}
		if string(value) != "value" {
			t.Fatalf("Invalid value: got '%s' - want '%s'", value, "value")
		}
		value[0] = 'X' // Cached values must not be shared with callers
	}
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

const ledgerPrefix = "ledger_"

func readLedger(t *testing.T, server *fckvtest.Server, client *fckv.Client) []byte {
	t.Helper()
	b, err := server.Store().Get(context.Background(), ledgerPrefix+client.Identity())
	if err != nil {
		t.Fatalf("Failed to read ledger entry: %v", err)
	}
	return bytes.Clone(b)
}

func writeLedger(t *testing.T, server *fckvtest.Server, client *fckv.Client, entry []byte) {
	t.Helper()
	if err := server.Store().Set(context.Background(), ledgerPrefix+client.Identity(), entry); err != nil {
		t.Fatalf("Failed to write ledger entry: %v", err)
	}
}

func deleteLedger(t *testing.T, server *fckvtest.Server, client *fckv.Client) {
	t.Helper()
	if err := server.Store().Delete(context.Background(), ledgerPrefix+client.Identity()); err != nil {
		t.Fatalf("Failed to delete ledger entry: %v", err)
	}
}

type clientSnapshot struct {
	accepted []byte
	seq      uint64
}

func snapshot(client *fckv.Client) clientSnapshot {
	return clientSnapshot{accepted: client.State().Accepted, seq: client.Seq()}
}

// checkState fails the test if the client state differs
// from before.
func checkState(t *testing.T, client *fckv.Client, before clientSnapshot) {
	t.Helper()

	if after := client.State(); !bytes.Equal(after.Accepted, before.accepted) {
		t.Fatal("Failed operation modified the client's accepted version record")
	}
	if seq := client.Seq(); seq != before.seq {
		t.Fatalf("Failed operation modified the client's sequence number: got %d - want %d", seq, before.seq)
	}
}

// truncateStartOp cuts the body of start operation responses.
type truncateStartOp struct {
	http.RoundTripper
}

func (t truncateStartOp) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.RoundTripper.RoundTrip(req)
	if err != nil || req.URL.Path != "/v1/op/start" || resp.StatusCode != http.StatusOK {
		return resp, err
	}
	resp.Body.Close()
	resp.Body = io.NopCloser(strings.NewReader(`{"records":["`))
	return resp, nil
}

// startOp acquires the server's operation lock without
// releasing it.
func startOp(t *testing.T, server *fckvtest.Server, cert tls.Certificate) {
	t.Helper()

	client := http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				Certificates: []tls.Certificate{cert},
				RootCAs:      server.CAs(),
			},
		},
	}
	resp, err := client.Post(server.URL+"/v1/op/start", "", nil)
	if err != nil {
		t.Fatalf("Failed to start operation: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Failed to start operation: got status %d - want %d", resp.StatusCode, http.StatusOK)
	}
}
