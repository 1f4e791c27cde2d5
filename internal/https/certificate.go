// Copyright 2023 - MinIO, Inc. All rights reserved.
// Use of this source code is governed by the AGPLv3
// license that can be found in the LICENSE file.

// Package https provides helpers for loading and generating
// TLS certificates, private keys and client identities.
package https

import (
	"bytes"
	"crypto"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Identity returns the identity of the X.509 certificate.
// It is the hex-encoded SHA-256 hash of the certificate's
// public key in DER-encoded PKIX form.
func Identity(cert *x509.Certificate) string {
	h := sha256.Sum256(cert.RawSubjectPublicKeyInfo)
	return hex.EncodeToString(h[:])
}

// CertificateFromFile reads the PEM-encoded X.509 certificate from
// certFile and the PEM-encoded private key from keyFile. An encrypted
// private key is decrypted with the password.
//
// PEM encryption, as specified in RFC 1423, does not authenticate
// the ciphertext. It should only be used to protect keys at rest.
func CertificateFromFile(certFile, keyFile, password string) (tls.Certificate, error) {
	return LoadCertificate(certFile, keyFile, staticPassword(password))
}

// LoadCertificate is like CertificateFromFile but calls password
// to obtain the password if and only if the private key is encrypted.
func LoadCertificate(certFile, keyFile string, password func() ([]byte, error)) (tls.Certificate, error) {
	certPEM, err := readCertificate(certFile)
	if err != nil {
		return tls.Certificate{}, err
	}
	keyPEM, err := loadPrivateKey(keyFile, password)
	if err != nil {
		return tls.Certificate{}, err
	}

	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return tls.Certificate{}, err
	}
	if _, ok := cert.PrivateKey.(crypto.Signer); !ok {
		return tls.Certificate{}, errors.New("https: private key cannot be used for signing")
	}
	if cert.Leaf == nil {
		if cert.Leaf, err = x509.ParseCertificate(cert.Certificate[0]); err != nil {
			return tls.Certificate{}, err
		}
	}
	return cert, nil
}

func staticPassword(password string) func() ([]byte, error) {
	return func() ([]byte, error) {
		if password == "" {
			return nil, errors.New("https: private key is encrypted: password required")
		}
		return []byte(password), nil
	}
}

// readPEM reads all PEM blocks from the file. It fails if the
// file contains non-PEM data or a block not accepted by accept.
func readPEM(filename string, accept func(*pem.Block) bool) ([]*pem.Block, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	var blocks []*pem.Block
	for data = bytes.TrimSpace(data); len(data) > 0; data = bytes.TrimSpace(data) {
		var block *pem.Block
		if block, data = pem.Decode(data); block == nil {
			return nil, fmt.Errorf("https: '%s' contains no valid PEM data", filename)
		}
		if !accept(block) {
			return nil, fmt.Errorf("https: '%s' contains unsupported PEM block '%s'", filename, block.Type)
		}
		blocks = append(blocks, block)
	}
	if len(blocks) == 0 {
		return nil, fmt.Errorf("https: '%s' contains no PEM data", filename)
	}
	return blocks, nil
}

func isCertificate(b *pem.Block) bool { return b.Type == "CERTIFICATE" }

func isPrivateKey(b *pem.Block) bool {
	return b.Type == "PRIVATE KEY" || strings.HasSuffix(b.Type, " PRIVATE KEY")
}

// readCertificate returns the PEM-encoded certificates
// of the file.
func readCertificate(certFile string) ([]byte, error) {
	blocks, err := readPEM(certFile, isCertificate)
	if err != nil {
		return nil, err
	}
	var certPEM []byte
	for _, block := range blocks {
		certPEM = append(certPEM, pem.EncodeToMemory(block)...)
	}
	return certPEM, nil
}

func readPrivateKey(keyFile, password string) ([]byte, error) {
	return loadPrivateKey(keyFile, staticPassword(password))
}

// loadPrivateKey returns the first PEM-encoded private key
// of the file. The file may also contain certificates.
func loadPrivateKey(keyFile string, password func() ([]byte, error)) ([]byte, error) {
	blocks, err := readPEM(keyFile, func(b *pem.Block) bool { return isCertificate(b) || isPrivateKey(b) })
	if err != nil {
		return nil, err
	}

	for _, block := range blocks {
		if !isPrivateKey(block) {
			continue
		}
		if !x509.IsEncryptedPEMBlock(block) {
			return pem.EncodeToMemory(block), nil
		}

		pw, err := password()
		if err != nil {
			return nil, err
		}
		plaintext, err := x509.DecryptPEMBlock(block, pw)
		if err != nil {
			return nil, fmt.Errorf("https: failed to decrypt private key: %v", err)
		}
		return pem.EncodeToMemory(&pem.Block{Type: block.Type, Bytes: plaintext}), nil
	}
	return nil, fmt.Errorf("https: '%s' contains no private key", keyFile)
}
