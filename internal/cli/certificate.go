// Copyright 2023 - MinIO, Inc. All rights reserved.
// Use of this source code is governed by the AGPLv3
// license that can be found in the LICENSE file.

package cli

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/minio/fckv/internal/https"
	"github.com/mitchellh/go-homedir"
)

// DefaultEndpoint is the server endpoint used when
// EnvServer is not set.
const DefaultEndpoint = "127.0.0.1:7474"

// EndpointFromEnv returns the server endpoint from EnvServer
// as https URL.
func EndpointFromEnv() (string, error) {
	endpoint, ok := os.LookupEnv(EnvServer)
	if !ok {
		endpoint = DefaultEndpoint
	}

	endpoint = strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(endpoint), "http://"), "https://")
	host, port, err := net.SplitHostPort(endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid server endpoint '%s': %v", endpoint, err)
	}
	return "https://" + net.JoinHostPort(host, port), nil
}

// CertificateFromEnv loads the client certificate and private
// key from the files referenced by EnvCertificate and EnvPrivateKey.
// If the private key is encrypted it calls readPassword.
func CertificateFromEnv(readPassword func() ([]byte, error)) (tls.Certificate, error) {
	certPath, ok := os.LookupEnv(EnvCertificate)
	if !ok || strings.TrimSpace(certPath) == "" {
		return tls.Certificate{}, fmt.Errorf("no TLS client certificate. '%s' is not set", EnvCertificate)
	}
	keyPath, ok := os.LookupEnv(EnvPrivateKey)
	if !ok || strings.TrimSpace(keyPath) == "" {
		return tls.Certificate{}, fmt.Errorf("no TLS client private key. '%s' is not set", EnvPrivateKey)
	}
	certPath, err := homedir.Expand(certPath)
	if err != nil {
		return tls.Certificate{}, err
	}
	if keyPath, err = homedir.Expand(keyPath); err != nil {
		return tls.Certificate{}, err
	}
	cert, err := https.LoadCertificate(certPath, keyPath, readPassword)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to load TLS client certificate: %v", err)
	}
	return cert, nil
}

// RootCAsFromEnv returns the CA certificates referenced by EnvCA.
// It returns nil, and therefore the system roots, if EnvCA is not
// set.
func RootCAsFromEnv() (*x509.CertPool, error) {
	path, ok := os.LookupEnv(EnvCA)
	if !ok || strings.TrimSpace(path) == "" {
		return nil, nil
	}
	path, err := homedir.Expand(path)
	if err != nil {
		return nil, err
	}
	return https.CertPoolFromFile(path)
}

// StateFileFromEnv returns the path of the client state file. If
// EnvState is not set, it returns '~/.fckv/<identity>.state'.
func StateFileFromEnv(identity string) (string, error) {
	if path, ok := os.LookupEnv(EnvState); ok && strings.TrimSpace(path) != "" {
		return homedir.Expand(path)
	}
	home, err := homedir.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".fckv", identity+".state"), nil
}
