// Copyright 2023 - MinIO, Inc. All rights reserved.
// Use of this source code is governed by the AGPLv3
// license that can be found in the LICENSE file.

package https

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"math/big"
	"net"
	"os"
	"time"
)

// KeySize is the size of generated RSA private keys in bits.
const KeySize = 2048

// GenerateKey generates a new RSA private key of KeySize bits.
func GenerateKey() (*rsa.PrivateKey, error) {
	return rsa.GenerateKey(rand.Reader, KeySize)
}

// CertificateConfig describes an X.509 certificate issued
// by NewCertificate.
type CertificateConfig struct {
	// CommonName is the certificate's subject common name.
	CommonName string

	// Expiry is the duration after which the certificate
	// expires. If 0, defaults to one year.
	Expiry time.Duration

	// IsCA marks the certificate as certificate authority.
	IsCA bool

	// DNSNames and IPs are the certificate's subject
	// alternative names. A server certificate must
	// contain at least one of them.
	DNSNames []string
	IPs      []net.IP

	// Parent and ParentKey are the issuing certificate and its
	// private key. If nil, the certificate is self-signed.
	Parent    *x509.Certificate
	ParentKey crypto.Signer
}

// NewCertificate issues a new X.509 certificate for the key and
// returns it as TLS certificate with its leaf certificate set.
func NewCertificate(key crypto.Signer, config *CertificateConfig) (tls.Certificate, error) {
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return tls.Certificate{}, err
	}
	expiry := config.Expiry
	if expiry == 0 {
		expiry = 365 * 24 * time.Hour
	}

	now := time.Now()
	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			CommonName: config.CommonName,
		},
		NotBefore:             now.Add(-time.Minute),
		NotAfter:              now.Add(expiry),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth, x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		DNSNames:              config.DNSNames,
		IPAddresses:           config.IPs,
	}
	if config.IsCA {
		template.IsCA = true
		template.KeyUsage |= x509.KeyUsageCertSign
	}

	parent, parentKey := template, key
	if config.Parent != nil {
		if config.ParentKey == nil {
			return tls.Certificate{}, errors.New("https: parent certificate without private key")
		}
		parent, parentKey = config.Parent, config.ParentKey
	}
	raw, err := x509.CreateCertificate(rand.Reader, template, parent, key.Public(), parentKey)
	if err != nil {
		return tls.Certificate{}, err
	}
	leaf, err := x509.ParseCertificate(raw)
	if err != nil {
		return tls.Certificate{}, err
	}
	return tls.Certificate{
		Certificate: [][]byte{raw},
		PrivateKey:  key,
		Leaf:        leaf,
	}, nil
}

// EncodeCertificate returns the PEM encoding of the certificate's
// leaf certificate.
func EncodeCertificate(cert tls.Certificate) ([]byte, error) {
	if len(cert.Certificate) == 0 {
		return nil, errors.New("https: no certificate")
	}
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: cert.Certificate[0]}), nil
}

// EncodePrivateKey returns the PEM encoding of the private key
// in PKCS #8 form.
func EncodePrivateKey(key crypto.PrivateKey) ([]byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), nil
}

// WriteCertificateFiles writes the PEM-encoded private key and
// certificate to keyFile and certFile. It fails if any of the two
// files already exists.
func WriteCertificateFiles(keyFile, certFile string, cert tls.Certificate) error {
	keyPEM, err := EncodePrivateKey(cert.PrivateKey)
	if err != nil {
		return err
	}
	certPEM, err := EncodeCertificate(cert)
	if err != nil {
		return err
	}
	if err = writeFile(keyFile, keyPEM, 0o600); err != nil {
		return err
	}
	if err = writeFile(certFile, certPEM, 0o644); err != nil {
		os.Remove(keyFile)
		return err
	}
	return nil
}

func writeFile(filename string, data []byte, perm os.FileMode) error {
	file, err := os.OpenFile(filename, os.O_CREATE|os.O_EXCL|os.O_WRONLY, perm)
	if err != nil {
		return err
	}
	defer file.Close()

	if _, err = file.Write(data); err != nil {
		return err
	}
	if err = file.Sync(); err != nil {
		return err
	}
	return file.Close()
}
