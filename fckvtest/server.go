// Copyright 2023 - MinIO, Inc. All rights reserved.
// Use of this source code is governed by the AGPLv3
// license that can be found in the LICENSE file.

// Package fckvtest provides utilities for end-to-end
// FCKV testing.
package fckvtest

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/minio/fckv"
	"github.com/minio/fckv/internal/https"
	"github.com/minio/fckv/kv"
	"github.com/minio/fckv/kv/mem"
)

// Options customize a test Server.
type Options struct {
	// Store is the storage engine of the server.
	// If nil, the server uses an in-memory store.
	Store kv.Store[string, []byte]

	// Verify is the server's content verification mode.
	Verify fckv.VerifyMode

	// LockLease is the server's operation lock lease.
	// If <= 0, the server default is used.
	LockLease time.Duration

	// DisableTamper disables the server's tamper API.
	DisableTamper bool

	// ErrorLog is an optional handler for the server's error log.
	// If nil, server errors are discarded.
	ErrorLog slog.Handler
}

// NewServer starts and returns a new Server with an in-memory store
// and tampering enabled. The caller should call Close when finished,
// to shut it down.
func NewServer() *Server { return NewServerWithOptions(nil) }

// NewServerWithOptions starts and returns a new Server customized
// by opts. The caller should call Close when finished, to shut it
// down.
func NewServerWithOptions(opts *Options) *Server {
	if opts == nil {
		opts = &Options{}
	}
	s := &Server{
		opts:  *opts,
		store: opts.Store,
	}
	if s.store == nil {
		s.store = &mem.Store{}
	}
	s.caKey, s.caCert = newCA()
	s.adminCert = s.IssueClientCertificate("fckvtest: admin")
	s.serverCert = s.issueCertificate("fckvtest: server", mustGenerateECDSA())

	s.start("127.0.0.1:0")
	return s
}

// A Server is a FCKV server listening on a system-chosen
// port on the local loopback interface, for use in
// end-to-end tests.
type Server struct {
	URL string // URL is the base URL of the form https://ipaddr:port.

	opts       Options
	store      kv.Store[string, []byte]
	caKey      crypto.Signer
	caCert     *x509.Certificate
	adminCert  tls.Certificate
	serverCert tls.Certificate

	mu     sync.Mutex
	server *fckv.Server
	addr   string
	done   chan error
	cancel context.CancelFunc
}

// Server returns the underlying FCKV server.
func (s *Server) Server() *fckv.Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.server
}

// Store returns the server's storage engine.
func (s *Server) Store() kv.Store[string, []byte] { return s.store }

// AdminCertificate returns the TLS certificate of the server's
// admin identity.
func (s *Server) AdminCertificate() tls.Certificate { return s.adminCert }

// Admin returns a new client for the server's admin identity.
func (s *Server) Admin() *fckv.Client {
	return s.mustClient(s.ClientConfig(s.adminCert))
}

// Client returns a new client with a new identity, configured
// for making requests to the server.
func (s *Server) Client() *fckv.Client {
	return s.mustClient(s.ClientConfig(s.IssueClientCertificate("fckvtest: client")))
}

// ClientConfig returns a client configuration for the given
// certificate. It is configured to trust the server's TLS test
// certificate.
func (s *Server) ClientConfig(cert tls.Certificate) *fckv.ClientConfig {
	return &fckv.ClientConfig{
		Endpoint:    s.URL,
		Certificate: cert,
		RootCAs:     s.CAs(),
	}
}

// IssueClientCertificate returns a new TLS certificate with a new
// RSA key for client authentication with the given common name.
//
// The returned certificate is issued by a testing CA that is
// trusted by the Server.
func (s *Server) IssueClientCertificate(name string) tls.Certificate {
	key, err := https.GenerateKey()
	if err != nil {
		panic(fmt.Sprintf("fckvtest: failed to generate private key: %v", err))
	}
	return s.issueCertificate(name, key)
}

// CAs returns the Server's root CAs.
func (s *Server) CAs() *x509.CertPool {
	certpool := x509.NewCertPool()
	certpool.AddCert(s.caCert)
	return certpool
}

// Restart stops the server and starts a new one on the same address
// and storage engine. The new server loads its ledger from the store.
func (s *Server) Restart() {
	s.stop()
	s.start(s.addr)
}

// Close shuts down the server and blocks until all outstanding
// requests on this server have completed. It does not close
// the storage engine.
func (s *Server) Close() { s.stop() }

func (s *Server) start(addr string) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		panic(fmt.Sprintf("fckvtest: failed to listen on '%s': %v", addr, err))
	}

	errorLog := s.opts.ErrorLog
	if errorLog == nil {
		errorLog = slog.NewTextHandler(io.Discard, nil)
	}
	server := &fckv.Server{ShutdownTimeout: -1}
	config := &fckv.Config{
		Admin: https.Identity(s.adminCert.Leaf),
		TLS: &tls.Config{
			MinVersion:   tls.VersionTLS12,
			Certificates: []tls.Certificate{s.serverCert},
			ClientCAs:    s.CAs(),
			ClientAuth:   tls.RequireAndVerifyClientCert,
		},
		Store:        s.store,
		Verify:       s.opts.Verify,
		LockLease:    s.opts.LockLease,
		EnableTamper: !s.opts.DisableTamper,
		ErrorLog:     errorLog,
		AuditLog:     &fckv.AuditLogHandler{Handler: slog.NewTextHandler(io.Discard, nil)},
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Serve(ctx, listener, config) }()

	// Serve loads the ledger before accepting connections.
	for server.Addr() == "" {
		select {
		case err := <-done:
			cancel()
			panic(fmt.Sprintf("fckvtest: failed to start server: %v", err))
		case <-time.After(5 * time.Millisecond):
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.server, s.cancel, s.done = server, cancel, done
	s.addr = listener.Addr().String()
	s.URL = "https://" + s.addr
}

func (s *Server) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel == nil {
		return
	}
	s.cancel()
	if err := <-s.done; err != nil && !errors.Is(err, http.ErrServerClosed) {
		panic(fmt.Sprintf("fckvtest: failed to stop server: %v", err))
	}
	s.cancel, s.done = nil, nil
}

func (s *Server) mustClient(config *fckv.ClientConfig) *fckv.Client {
	client, err := fckv.NewClient(config)
	if err != nil {
		panic(fmt.Sprintf("fckvtest: failed to create client: %v", err))
	}
	return client
}

func (s *Server) issueCertificate(name string, key crypto.Signer) tls.Certificate {
	cert, err := https.NewCertificate(key, &https.CertificateConfig{
		CommonName: name,
		Expiry:     24 * time.Hour,
		DNSNames:   []string{"localhost"},
		IPs:        []net.IP{net.IPv4(127, 0, 0, 1), net.IPv6loopback},
		Parent:     s.caCert,
		ParentKey:  s.caKey,
	})
	if err != nil {
		panic(fmt.Sprintf("fckvtest: failed to create certificate: %v", err))
	}
	return cert
}

func newCA() (crypto.Signer, *x509.Certificate) {
	key := mustGenerateECDSA()
	cert, err := https.NewCertificate(key, &https.CertificateConfig{
		CommonName: "fckvtest Root CA",
		Expiry:     24 * time.Hour,
		IsCA:       true,
	})
	if err != nil {
		panic(fmt.Sprintf("fckvtest: failed to generate CA certificate: %v", err))
	}
	return key, cert.Leaf
}

func mustGenerateECDSA() *ecdsa.PrivateKey {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		panic(fmt.Sprintf("fckvtest: failed to generate private key: %v", err))
	}
	return key
}
