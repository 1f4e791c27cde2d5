// Copyright 2023 - MinIO, Inc. All rights reserved.
// Use of this source code is governed by the AGPLv3
// license that can be found in the LICENSE file.

package https

import (
	"crypto/tls"
	"crypto/x509"
	"net"
	"testing"
)

var loadCertPoolTests = []struct {
	CAPath     string
	ShouldFail bool
}{
	{CAPath: "single.pem"},
	{CAPath: "with_whitespaces.pem"},
	{CAPath: "with_privatekey.pem", ShouldFail: true},
	{CAPath: "", ShouldFail: true}, // directory with private keys
}

func TestCertPoolFromFile(t *testing.T) {
	for i, test := range loadCertPoolTests {
		_, err := CertPoolFromFile(testFile(t, test.CAPath))
		if err != nil && !test.ShouldFail {
			t.Fatalf("Test %d: failed to load certificate pool %s: %v", i, test.CAPath, err)
		}
		if err == nil && test.ShouldFail {
			t.Fatalf("Test %d: reading certificate %s should have failed", i, test.CAPath)
		}
	}
}

func TestNewCertificateChain(t *testing.T) {
	caKey, err := GenerateKey()
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	ca, err := NewCertificate(caKey, &CertificateConfig{CommonName: "root", IsCA: true})
	if err != nil {
		t.Fatalf("failed to create CA certificate: %v", err)
	}
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	cert, err := NewCertificate(key, &CertificateConfig{
		CommonName: "localhost",
		IPs:        []net.IP{net.IPv4(127, 0, 0, 1)},
		Parent:     ca.Leaf,
		ParentKey:  caKey,
	})
	if err != nil {
		t.Fatalf("failed to create certificate: %v", err)
	}

	pool := x509.NewCertPool()
	pool.AddCert(ca.Leaf)
	if _, err = cert.Leaf.Verify(x509.VerifyOptions{Roots: pool, KeyUsages: []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth}}); err != nil {
		t.Fatalf("failed to verify certificate chain: %v", err)
	}
	var _ tls.Certificate = cert
}
