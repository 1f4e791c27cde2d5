// Copyright 2023 - MinIO, Inc. All rights reserved.
// Use of this source code is governed by the AGPLv3
// license that can be found in the LICENSE file.

package fckvtest_test

import (
	"context"
	"crypto/x509"
	"errors"
	"testing"

	"github.com/minio/fckv"
	"github.com/minio/fckv/fckvtest"
	"github.com/minio/fckv/internal/https"
)

func TestIssueClientCertificate(t *testing.T) {
	server := fckvtest.NewServer()
	defer server.Close()

	cert := server.IssueClientCertificate("test")
	if cert.Leaf == nil {
		t.Fatal("certificate has no leaf")
	}
	if _, err := cert.Leaf.Verify(x509.VerifyOptions{
		Roots:     server.CAs(),
		KeyUsages: []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
	}); err != nil {
		t.Fatalf("Failed to verify client certificate: %v", err)
	}

	client, err := fckv.NewClient(server.ClientConfig(cert))
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	if id := https.Identity(cert.Leaf); client.Identity() != id {
		t.Fatalf("Identity mismatch: got '%s' - want '%s'", client.Identity(), id)
	}
}

func TestServerRestart(t *testing.T) {
	ctx := context.Background()
	server := fckvtest.NewServer()
	defer server.Close()

	client := server.Client()
	if err := client.Put(ctx, "key", []byte("value")); err != nil {
		t.Fatalf("Failed to put value: %v", err)
	}
	url := server.URL

	server.Restart()
	if server.URL != url {
		t.Fatalf("Restarted server has different URL: got '%s' - want '%s'", server.URL, url)
	}

	value, err := client.Get(ctx, "key")
	if err != nil {
		t.Fatalf("Failed to get value: %v", err)
	}
	if string(value) != "value" {
		t.Fatalf("Invalid value: got '%s' - want '%s'", value, "value")
	}
}

func TestTamperDisabled(t *testing.T) {
	server := fckvtest.NewServerWithOptions(&fckvtest.Options{DisableTamper: true})
	defer server.Close()

	err := server.Admin().Tamper(context.Background(), fckv.TamperHideUpdate, 0)
	if !errors.Is(err, fckv.ErrTamperDisabled) {
		t.Fatalf("Tamper succeeded: got '%v' - want '%v'", err, fckv.ErrTamperDisabled)
	}
}

func TestTamperForbidden(t *testing.T) {
	server := fckvtest.NewServer()
	defer server.Close()

	err := server.Client().Tamper(context.Background(), fckv.TamperHideUpdate, 0)
	if !errors.Is(err, fckv.ErrForbidden) {
		t.Fatalf("Tamper succeeded: got '%v' - want '%v'", err, fckv.ErrForbidden)
	}
}
