// Copyright 2023 - MinIO, Inc. All rights reserved.
// Use of this source code is governed by the AGPLv3
// license that can be found in the LICENSE file.

package https

import (
	"crypto/x509"
	"os"
	"path/filepath"
)

// CertPoolFromFile returns the system root certificates plus
// the PEM-encoded X.509 certificates at path. If path is a
// directory, every file within it must be a certificate file.
// Sub-directories are ignored.
func CertPoolFromFile(path string) (*x509.CertPool, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	files := []string{path}
	if stat.IsDir() {
		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, err
		}
		files = files[:0]
		for _, entry := range entries {
			if !entry.IsDir() {
				files = append(files, filepath.Join(path, entry.Name()))
			}
		}
	}

	pool, _ := x509.SystemCertPool()
	if pool == nil {
		pool = x509.NewCertPool()
	}
	for _, file := range files {
		blocks, err := readPEM(file, isCertificate)
		if err != nil {
			return nil, err
		}
		for _, block := range blocks {
			cert, err := x509.ParseCertificate(block.Bytes)
			if err != nil {
				return nil, err
			}
			pool.AddCert(cert)
		}
	}
	return pool, nil
}
