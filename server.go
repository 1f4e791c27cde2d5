// Copyright 2023 - MinIO, Inc. All rights reserved.
// Use of this source code is governed by the AGPLv3
// license that can be found in the LICENSE file.

package fckv

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/minio/fckv/internal/api"
	"github.com/minio/fckv/internal/dhash"
	"github.com/minio/fckv/internal/https"
	"github.com/minio/fckv/internal/metric"
	"github.com/minio/fckv/kv"
)

// Storage namespaces within Config.Store.
const (
	ledgerPrefix  = "ledger_"
	contentPrefix = "blob_"
	outerPrefix   = "outer_"
	innerPrefix   = "inner_"
)

// Server is a FCKV server.
//
// It holds the ledger of version records and serves content
// from its storage engine. A server only serializes operations
// and stores data. It does not need to be trusted by clients.
type Server struct {
	// ShutdownTimeout controls how long Server.Close
	// tries to shutdown the Server gracefully without
	// interrupting any active connections.
	//
	// If 0, defaults to 1 second. If negative, the
	// Server is shutdown immediately.
	ShutdownTimeout time.Duration

	// ErrLevel controls which errors are logged by the server.
	// It may be adjusted after the server has been started to
	// change its logging behavior.
	//
	// Log records are passed to the Config.ErrorLog handler
	// if and only if their log level is equal or greater than
	// ErrLevel. A custom Config.ErrorLog may handle records
	// independently from this ErrLevel.
	//
	// Defaults to slog.LevelInfo which includes TLS and HTTP
	// errors when handling requests.
	ErrLevel slog.LevelVar

	// AuditLevel controls which audit events are logged by
	// the server. It may be adjusted after the server has
	// been started to change its logging behavior.
	//
	// Log records are passed to the Config.AuditLog handler
	// if and only if their log level is equal or greater than
	// AuditLevel. A custom Config.AuditLog may handle records
	// independently from this AuditLevel.
	//
	// Defaults to slog.LevelInfo.
	AuditLevel slog.LevelVar

	tls     atomic.Pointer[tls.Config]
	state   atomic.Pointer[serverState]
	handler atomic.Pointer[http.Handler]

	mu      sync.Mutex
	started bool
	addr    net.Addr
	stop    func() error

	startTime time.Time
	metrics   *metric.Metrics
	store     kv.Store[string, []byte]
	ledger    *ledger
	content   *contentStore
}

// Addr returns the server's listener address, or the empty string
// if the server hasn't been started.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.addr == nil {
		return ""
	}
	return s.addr.String()
}

// Update changes the configuration of a running server. It returns
// an error if the server has not been started or has been closed.
//
// The storage engine and verify mode of a running server cannot be
// changed. Update ignores Config.Store and Config.Verify.
func (s *Server) Update(conf *Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return errors.New("fckv: server not started")
	}
	if err := conf.verify(); err != nil {
		return err
	}

	state := s.newState(conf)
	if !conf.EnableTamper && s.content.Mode() != TamperNone {
		if err := s.content.Tamper(context.Background(), TamperNone, 0); err != nil {
			return err
		}
	}

	s.tls.Store(conf.TLS.Clone())
	s.state.Store(state)
	s.handler.Store(s.wrap(state.Mux))
	return nil
}

// ListenAndStart listens on the TCP network address addr and
// then calls Serve to handle requests on incoming TLS connections.
// If addr is empty, it defaults to ":7474".
//
// ListenAndStart blocks until the given ctx is done or the server
// is closed. When ctx is done, it shuts the server down.
func (s *Server) ListenAndStart(ctx context.Context, addr string, conf *Config) error {
	if addr == "" {
		addr = ":7474"
	}

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listener, conf)
}

// Serve accepts incoming connections on the Listener ln and
// wraps them into TLS connections. It loads the ledger from
// Config.Store before serving the first request.
//
// Serve blocks until the given ctx is done or the server is
// closed. When ctx is done, it shuts the server down.
// Serve always closes ln.
func (s *Server) Serve(ctx context.Context, ln net.Listener, conf *Config) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		ln.Close()
		return errors.New("fckv: server already started")
	}
	if err := conf.verify(); err != nil {
		s.mu.Unlock()
		ln.Close()
		return err
	}
	if conf.Store == nil {
		s.mu.Unlock()
		ln.Close()
		return errors.New("fckv: invalid config: no storage engine")
	}

	log := slog.New(&stateLog{state: &s.state})
	s.startTime = time.Now()
	s.metrics = metric.New()
	s.store = conf.Store

	lease := conf.LockLease
	if lease <= 0 {
		lease = DefaultLockLease
	}
	ledger, err := openLedger(ctx, kv.WithPrefix(conf.Store, ledgerPrefix), lease, log, s.metrics)
	if err != nil {
		s.mu.Unlock()
		ln.Close()
		return err
	}
	s.ledger = ledger

	switch conf.Verify {
	case VerifyDoubleHash:
		store := dhash.New(kv.WithPrefix(conf.Store, outerPrefix), kv.WithPrefix(conf.Store, innerPrefix), log)
		s.content = newContentStore(store, log, s.metrics)
	default:
		s.content = newContentStore(kv.WithPrefix(conf.Store, contentPrefix), log, s.metrics)
	}

	state := s.newState(conf)
	s.tls.Store(conf.TLS.Clone())
	s.state.Store(state)
	s.handler.Store(s.wrap(state.Mux))

	ln = tls.NewListener(ln, &tls.Config{
		MinVersion:       tls.VersionTLS12,
		CipherSuites:     https.CipherSuites(),
		CurvePreferences: https.CurveIDs(),
		NextProtos:       []string{"h2", "http/1.1"}, // Prefer HTTP/2 but also support HTTP/1.1
		GetConfigForClient: func(*tls.ClientHelloInfo) (*tls.Config, error) {
			return s.tls.Load(), nil
		},
	})
	srv := &http.Server{
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			(*s.handler.Load()).ServeHTTP(w, r)
		}),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      0 * time.Second, // explicitly set no write timeout - we use http.ResponseController
		IdleTimeout:       90 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
		ErrorLog:          slog.NewLogLogger(&stateLog{state: &s.state}, slog.LevelError),
	}

	srvCh := make(chan error, 1)
	go func() { srvCh <- srv.Serve(ln) }()

	s.addr = ln.Addr()
	s.stop = func() error {
		timeout := s.ShutdownTimeout
		if timeout == 0 {
			timeout = time.Second
		}

		graceCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		err := srv.Shutdown(graceCtx)
		if errors.Is(err, context.DeadlineExceeded) {
			err = srv.Close()
		}
		return err
	}
	s.started = true
	s.mu.Unlock()

	select {
	case err := <-srvCh:
		s.mu.Lock()
		s.started, s.addr = false, nil
		s.mu.Unlock()
		return err
	case <-ctx.Done():
		if err := s.Close(); err != nil {
			return err
		}
		return http.ErrServerClosed
	}
}

// Close closes the server and underlying listener.
// It first tries to shutdown the server gracefully
// by waiting for requests to finish before closing
// the server forcefully.
//
// Close does not close the server's storage engine.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	err := s.stop()
	s.started = false
	s.addr = nil
	return err
}

func (s *Server) newState(conf *Config) *serverState {
	errHandler := conf.ErrorLog
	if errHandler == nil {
		errHandler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	auditHandler := conf.AuditLog
	if auditHandler == nil {
		auditHandler = &AuditLogHandler{
			Handler: slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		}
	}

	logHandler := newLogHandler(errHandler, &s.ErrLevel)
	auditLog := newAuditor(auditHandler, &s.AuditLevel)
	logHandler.out.Subscribe(s.metrics.ErrorEventCounter())
	auditLog.out.Subscribe(s.metrics.AuditEventCounter())

	state := &serverState{
		Mux:          http.NewServeMux(),
		Admin:        conf.Admin,
		EnableTamper: conf.EnableTamper,
		StartTime:    s.startTime,
		Log:          slog.New(logHandler),
		LogHandler:   logHandler,
		Audit:        auditLog,
		Metrics:      s.metrics,
		Store:        s.store,
		Ledger:       s.ledger,
		Content:      s.content,
	}
	state.initRoutes(&s.state, conf.Routes)
	return state
}

func (s *Server) wrap(mux *http.ServeMux) *http.Handler {
	h := s.metrics.Instrument(mux)
	return &h
}

func (c *Config) verify() error {
	if c == nil {
		return errors.New("fckv: invalid config: config is nil")
	}
	if c.TLS == nil || (len(c.TLS.Certificates) == 0 && c.TLS.GetCertificate == nil && c.TLS.GetConfigForClient == nil) {
		return errors.New("fckv: invalid config: no server certificate")
	}
	if c.Verify > VerifyDoubleHash {
		return errors.New("fckv: invalid config: invalid verify mode")
	}
	for path, route := range c.Routes {
		if route.InsecureSkipAuth && requiresIdentity(path) {
			return errors.New("fckv: invalid config: API '" + path + "' requires client authentication")
		}
	}
	return nil
}

// requiresIdentity reports whether the API path can only
// be accessed by authenticated clients.
func requiresIdentity(path string) bool {
	switch path {
	case api.PathOpStart, api.PathOpCommit, api.PathOpAbort, api.PathContentGet, api.PathContentPut, api.PathTamper, api.PathLogError, api.PathLogAudit:
		return true
	default:
		return false
	}
}

// stateLog is an slog.Handler that passes records to
// the error log of the server's current state.
type stateLog struct {
	state *atomic.Pointer[serverState]
}

func (l *stateLog) Enabled(ctx context.Context, level slog.Level) bool {
	s := l.state.Load()
	return s != nil && s.LogHandler.Enabled(ctx, level)
}

func (l *stateLog) Handle(ctx context.Context, r slog.Record) error {
	if s := l.state.Load(); s != nil {
		return s.LogHandler.Handle(ctx, r)
	}
	return nil
}

func (l *stateLog) WithAttrs(attrs []slog.Attr) slog.Handler {
	if s := l.state.Load(); s != nil {
		return s.LogHandler.WithAttrs(attrs)
	}
	return l
}

func (l *stateLog) WithGroup(name string) slog.Handler {
	if s := l.state.Load(); s != nil {
		return s.LogHandler.WithGroup(name)
	}
	return l
}
