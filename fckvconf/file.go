// Copyright 2023 - MinIO, Inc. All rights reserved.
// Use of this source code is governed by the AGPLv3
// license that can be found in the LICENSE file.

// Package fckvconf reads FCKV server configuration files.
package fckvconf

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/minio/fckv"
	"github.com/minio/fckv/internal/https"
	"github.com/minio/fckv/kv"
	"github.com/minio/fckv/kv/badger"
	"github.com/minio/fckv/kv/bolt"
	"github.com/minio/fckv/kv/fs"
	"github.com/minio/fckv/kv/leveldb"
	"github.com/minio/fckv/kv/mem"
	yaml "gopkg.in/yaml.v3"
)

// ReadFile opens the given file and reads the FCKV configuration
// from it by calling ReadFrom.
func ReadFile(filename string) (*File, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	file, err := ReadFrom(f)
	if cErr := f.Close(); err == nil {
		err = cErr
	}
	return file, err
}

// ReadFrom parses and returns a new FCKV server configuration
// file from r.
func ReadFrom(r io.Reader) (*File, error) {
	var node yaml.Node
	if err := yaml.NewDecoder(r).Decode(&node); err != nil {
		return nil, err
	}

	version, err := findVersion(&node)
	if err != nil {
		return nil, err
	}
	if version != "" && version != "v1" {
		return nil, fmt.Errorf("fckvconf: invalid server config version '%s'", version)
	}

	var y ymlFile
	if err := node.Decode(&y); err != nil {
		return nil, err
	}
	return ymlToFile(&y)
}

// File is a structure that holds the content of a FCKV server
// configuration file.
type File struct {
	// Addr is the network interface address and optional
	// port the server listens on, e.g. ":7474".
	Addr string

	// Admin is the admin identity. It may be empty.
	Admin string

	// TLS contains the server TLS configuration.
	TLS *TLSConfig

	// Log contains the server logging configuration.
	Log *LogConfig

	// API contains the server API configuration.
	API *APIConfig

	// LockLease is the operation lock lease. Zero means
	// the server default.
	LockLease time.Duration

	// Verify is the content verification mode.
	Verify fckv.VerifyMode

	// Store is the storage engine configuration.
	Store Store

	// EnableTamper enables the tamper API.
	EnableTamper bool
}

// TLSConfig returns a new TLS configuration as specified by
// the File. It returns nil and no error if File.TLS is nil.
func (f *File) TLSConfig() (*tls.Config, error) {
	if f.TLS == nil {
		return nil, nil
	}

	certificate, err := https.CertificateFromFile(f.TLS.Certificate, f.TLS.PrivateKey, f.TLS.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to read TLS certificate: %v", err)
	}
	if certificate.Leaf != nil {
		// Go no longer accepts certificates with a subject CN but
		// without any SAN.
		if len(certificate.Leaf.DNSNames) == 0 && len(certificate.Leaf.IPAddresses) == 0 {
			return nil, fmt.Errorf("invalid TLS certificate: certificate does not contain any DNS or IP address as SAN")
		}
	}

	var rootCAs *x509.CertPool
	if f.TLS.CAPath != "" {
		rootCAs, err = https.CertPoolFromFile(f.TLS.CAPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read TLS CA certificates: %v", err)
		}
	}

	return &tls.Config{
		MinVersion:       tls.VersionTLS12,
		ClientAuth:       f.TLS.ClientAuth,
		Certificates:     []tls.Certificate{certificate},
		NextProtos:       []string{"h2", "http/1.1"},
		RootCAs:          rootCAs,
		ClientCAs:        rootCAs,
		CipherSuites:     https.CipherSuites(),
		CurvePreferences: https.CurveIDs(),
	}, nil
}

// Config returns a new FCKV server configuration as specified
// by the File. It opens the Store using the given context.
// The caller has to close the returned configuration's Store.
func (f *File) Config(ctx context.Context) (*fckv.Config, error) {
	conf := &fckv.Config{
		Admin:        f.Admin,
		Verify:       f.Verify,
		LockLease:    f.LockLease,
		EnableTamper: f.EnableTamper,
	}

	if f.TLS != nil {
		tlsConf, err := f.TLSConfig()
		if err != nil {
			return nil, err
		}
		conf.TLS = tlsConf
	}

	if f.API != nil && len(f.API.Paths) > 0 {
		conf.Routes = make(map[string]fckv.RouteConfig, len(f.API.Paths))
		for path, config := range f.API.Paths {
			conf.Routes[path] = fckv.RouteConfig{
				Timeout:          config.Timeout,
				InsecureSkipAuth: config.InsecureSkipAuth,
			}
		}
	}

	if f.Store != nil {
		store, err := f.Store.Open(ctx)
		if err != nil {
			return nil, err
		}
		conf.Store = store
	}
	return conf, nil
}

// TLSConfig is a structure that holds the TLS configuration
// of a FCKV server.
type TLSConfig struct {
	// PrivateKey is the path to the server's TLS private key.
	PrivateKey string

	// Certificate is the path to the server's TLS certificate.
	Certificate string

	// Password is an optional password to decrypt the server's
	// private key.
	Password string

	// ClientAuth is the client authentication type the server
	// uses to verify client certificates.
	ClientAuth tls.ClientAuthType

	// CAPath is an optional path to a X.509 certificate or
	// directory containing X.509 certificates that the server
	// uses as authorities when verifying client certificates.
	CAPath string
}

// LogConfig is a structure that holds the logging configuration
// of a FCKV server.
type LogConfig struct {
	// ErrLevel is the minimum level of error log events.
	ErrLevel slog.Level

	// AuditLevel is the minimum level of audit log events.
	AuditLevel slog.Level
}

// APIConfig is a structure that holds the API configuration
// of a FCKV server.
type APIConfig struct {
	// Paths contains a set of API paths and their
	// API configuration.
	Paths map[string]APIPathConfig
}

// APIPathConfig is a structure that holds the API configuration
// for one particular API.
type APIPathConfig struct {
	// Timeout is the duration after which the API responds
	// with a HTTP timeout error. If zero, the API default
	// is used.
	Timeout time.Duration

	// InsecureSkipAuth controls whether the API verifies
	// client identities. Operation and content APIs always
	// require an identity.
	InsecureSkipAuth bool
}

// Store is a storage engine configuration.
type Store interface {
	// Open opens the storage engine.
	Open(ctx context.Context) (kv.Store[string, []byte], error)
}

// MemStore is an in-memory storage engine. All content is
// lost when the server stops.
type MemStore struct{}

// Open returns a new in-memory store.
func (*MemStore) Open(context.Context) (kv.Store[string, []byte], error) {
	return &mem.Store{}, nil
}

// FSStore is a storage engine that stores each entry as a
// file within a directory.
type FSStore struct {
	// Path is the directory of the store.
	Path string
}

// Open opens the directory at s.Path. It creates the
// directory if it does not exist.
func (s *FSStore) Open(context.Context) (kv.Store[string, []byte], error) {
	return fs.Open(s.Path)
}

// LevelDBStore is a LevelDB storage engine.
type LevelDBStore struct {
	// Path is the directory of the database.
	Path string
}

// Open opens or creates the LevelDB database at s.Path.
func (s *LevelDBStore) Open(context.Context) (kv.Store[string, []byte], error) {
	return leveldb.Open(s.Path)
}

// BadgerStore is a Badger storage engine.
type BadgerStore struct {
	// Path is the directory of the database.
	Path string

	// InMemory keeps the database in memory only.
	InMemory bool
}

// Open opens or creates the Badger database.
func (s *BadgerStore) Open(context.Context) (kv.Store[string, []byte], error) {
	return badger.Open(&badger.Config{
		Path:     s.Path,
		InMemory: s.InMemory,
	})
}

// BoltStore is a BoltDB storage engine.
type BoltStore struct {
	// Path is the database file.
	Path string
}

// Open opens or creates the BoltDB database file at s.Path.
func (s *BoltStore) Open(context.Context) (kv.Store[string, []byte], error) {
	return bolt.Open(s.Path)
}
