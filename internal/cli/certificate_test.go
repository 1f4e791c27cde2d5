// Copyright 2023 - MinIO, Inc. All rights reserved.
// Use of this source code is governed by the AGPLv3
// license that can be found in the LICENSE file.

package cli

import (
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/minio/fckv/internal/https"
)

var endpointFromEnvTests = []struct {
	Env        string
	Endpoint   string
	ShouldFail bool
}{
	{Env: "127.0.0.1:7474", Endpoint: "https://127.0.0.1:7474"},
	{Env: "https://localhost:443", Endpoint: "https://localhost:443"},
	{Env: " http://[::1]:7474 ", Endpoint: "https://[::1]:7474"},
	{Env: "localhost", ShouldFail: true},
}

func TestEndpointFromEnv(t *testing.T) {
	for i, test := range endpointFromEnvTests {
		t.Setenv(EnvServer, test.Env)

		endpoint, err := EndpointFromEnv()
		if err == nil && test.ShouldFail {
			t.Fatalf("Test %d: should have failed", i)
		}
		if err != nil && !test.ShouldFail {
			t.Fatalf("Test %d: failed to parse endpoint: %v", i, err)
		}
		if endpoint != test.Endpoint {
			t.Fatalf("Test %d: got '%s' - want '%s'", i, endpoint, test.Endpoint)
		}
	}
}

func TestCertificateFromEnv(t *testing.T) {
	dir := t.TempDir()
	key, err := https.GenerateKey()
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	cert, err := https.NewCertificate(key, &https.CertificateConfig{CommonName: "client"})
	if err != nil {
		t.Fatalf("failed to create certificate: %v", err)
	}

	keyFile, certFile := filepath.Join(dir, "client.key"), filepath.Join(dir, "client.crt")
	if err = https.WriteCertificateFiles(keyFile, certFile, cert); err != nil {
		t.Fatalf("failed to write certificate files: %v", err)
	}
	t.Setenv(EnvCertificate, certFile)
	t.Setenv(EnvPrivateKey, keyFile)

	noPassword := func() ([]byte, error) { return nil, errors.New("no password") }
	loaded, err := CertificateFromEnv(noPassword)
	if err != nil {
		t.Fatalf("failed to load certificate: %v", err)
	}
	if id, want := https.Identity(loaded.Leaf), https.Identity(cert.Leaf); id != want {
		t.Fatalf("identity mismatch: got '%s' - want '%s'", id, want)
	}

	// Encrypted private key
	keyPEM, _ := https.EncodePrivateKey(key)
	block, _ := pem.Decode(keyPEM)
	encrypted, err := x509.EncryptPEMBlock(rand.Reader, block.Type, block.Bytes, []byte("password"), x509.PEMCipherAES256)
	if err != nil {
		t.Fatalf("failed to encrypt private key: %v", err)
	}
	if err = os.WriteFile(keyFile, pem.EncodeToMemory(encrypted), 0o600); err != nil {
		t.Fatalf("failed to write private key: %v", err)
	}
	if _, err = CertificateFromEnv(noPassword); err == nil {
		t.Fatal("loading an encrypted private key without password should have failed")
	}
	if _, err = CertificateFromEnv(func() ([]byte, error) { return []byte("password"), nil }); err != nil {
		t.Fatalf("failed to load certificate with encrypted private key: %v", err)
	}
}

func TestStateFileFromEnv(t *testing.T) {
	t.Setenv(EnvState, "/tmp/fckv.state")
	if path, err := StateFileFromEnv("abc"); err != nil || path != "/tmp/fckv.state" {
		t.Fatalf("got '%s' (%v) - want '%s'", path, err, "/tmp/fckv.state")
	}

	t.Setenv(EnvState, "")
	path, err := StateFileFromEnv("abc")
	if err != nil {
		t.Fatalf("failed to determine state file: %v", err)
	}
	if filepath.Base(path) != "abc.state" || filepath.Base(filepath.Dir(path)) != ".fckv" {
		t.Fatalf("invalid state file path: %s", path)
	}
}
