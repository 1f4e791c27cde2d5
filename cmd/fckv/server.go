// Copyright 2023 - MinIO, Inc. All rights reserved.
// Use of this source code is governed by the AGPLv3
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/minio/fckv"
	"github.com/minio/fckv/fckvconf"
	"github.com/minio/fckv/internal/cli"
	"github.com/minio/fckv/internal/https"
	"github.com/minio/fckv/internal/log"
	"github.com/minio/fckv/internal/sys"
	"github.com/minio/fckv/kv/mem"
	flag "github.com/spf13/pflag"
)

const serverCmdUsage = `Usage:
    fckv server [options]

Options:
    --addr <[IP]:PORT>       The network interface the server listens on.
                             The default is '0.0.0.0:7474'.

    --config <PATH>          Path to the server configuration file.

    --dev                    Start a development server with an in-memory
                             store, a self-signed certificate and tampering
                             enabled. Not suitable for production.

    --admin <IDENTITY>       The admin identity of a development server.

    --log-format <FORMAT>    Format of error and audit log events.
                             Either 'text' or 'json'. (default: text)

    -h, --help               Print command line options.

Examples:
    1. Start a new FCKV server on '127.0.0.1:7474'
       $ fckv server --addr 127.0.0.1:7474 --config ./fckv.yml

    2. Start a new development server. Clients must skip
       server certificate verification.
       $ fckv server --dev
`

func serverCmd(args []string) {
	cmd := flag.NewFlagSet(args[0], flag.ContinueOnError)
	cmd.Usage = func() { fmt.Fprint(os.Stderr, serverCmdUsage) }

	var (
		addrFlag      string
		configFlag    string
		devFlag       bool
		adminFlag     string
		logFormatFlag string
	)
	cmd.StringVar(&addrFlag, "addr", "", "The network interface the server listens on")
	cmd.StringVar(&configFlag, "config", "", "Path to the server configuration file")
	cmd.BoolVar(&devFlag, "dev", false, "Start a development server")
	cmd.StringVar(&adminFlag, "admin", "", "The admin identity of a development server")
	cmd.StringVar(&logFormatFlag, "log-format", "text", "Format of error and audit log events")
	parseFlags(cmd, args)

	if cmd.NArg() > 0 {
		cli.Fatal("too many arguments. See 'fckv server --help'")
	}
	switch {
	case devFlag && configFlag != "":
		cli.Fatal("'--dev' and '--config' cannot be used together. See 'fckv server --help'")
	case !devFlag && configFlag == "":
		cli.Fatal("no configuration specified. Use '--config' or '--dev'. See 'fckv server --help'")
	case !devFlag && adminFlag != "":
		cli.Fatal("'--admin' requires '--dev'. Specify the admin identity in the config file")
	}

	format, err := log.ParseFormat(logFormatFlag)
	if err != nil {
		cli.Fatal(err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if devFlag {
		if err = startDevServer(ctx, addrFlag, adminFlag, format); err != nil && !errors.Is(err, http.ErrServerClosed) {
			cli.Fatal(err)
		}
		return
	}
	if err = startServer(ctx, addrFlag, configFlag, format); err != nil && !errors.Is(err, http.ErrServerClosed) {
		cli.Fatal(err)
	}
}

func startServer(ctx context.Context, addr, filename string, format log.Format) error {
	file, err := fckvconf.ReadFile(filename)
	if err != nil {
		return err
	}
	if addr == "" {
		addr = file.Addr
	}
	if addr == "" {
		addr = "0.0.0.0:7474"
	}

	conf, err := file.Config(ctx)
	if err != nil {
		return err
	}
	defer conf.Store.Close()

	setLogHandlers(conf, format)
	srv := &fckv.Server{}
	srv.ErrLevel.Set(file.Log.ErrLevel)
	srv.AuditLevel.Set(file.Log.AuditLevel)

	go reloadOnSignal(ctx, srv, filename, format)

	printStartupMessage(addr, conf, storeName(file.Store))
	return srv.ListenAndStart(ctx, addr, conf)
}

func startDevServer(ctx context.Context, addr, admin string, format log.Format) error {
	if addr == "" {
		addr = "0.0.0.0:7474"
	}
	key, err := https.GenerateKey()
	if err != nil {
		return err
	}
	cert, err := https.NewCertificate(key, &https.CertificateConfig{
		CommonName: "localhost",
		DNSNames:   []string{"localhost"},
		IPs:        []net.IP{net.IPv4(127, 0, 0, 1), net.IPv6loopback},
		Expiry:     30 * 24 * time.Hour,
	})
	if err != nil {
		return err
	}

	conf := &fckv.Config{
		Admin: admin,
		TLS: &tls.Config{
			MinVersion:       tls.VersionTLS12,
			Certificates:     []tls.Certificate{cert},
			ClientAuth:       tls.RequireAnyClientCert,
			NextProtos:       []string{"h2", "http/1.1"},
			CipherSuites:     https.CipherSuites(),
			CurvePreferences: https.CurveIDs(),
		},
		Store:        &mem.Store{},
		EnableTamper: true,
	}
	setLogHandlers(conf, format)
	srv := &fckv.Server{}
	srv.ErrLevel.Set(slog.LevelDebug)

	printStartupMessage(addr, conf, "mem")
	return srv.ListenAndStart(ctx, addr, conf)
}

// setLogHandlers sets the error and audit log handlers of conf.
// Error events are written to STDERR and audit events to STDOUT.
// Events are filtered by the server's log levels.
func setLogHandlers(conf *fckv.Config, format log.Format) {
	opts := &slog.HandlerOptions{Level: slog.LevelDebug}
	conf.ErrorLog = log.NewHandler(os.Stderr, format, opts)
	conf.AuditLog = &fckv.AuditLogHandler{Handler: log.NewHandler(os.Stdout, format, opts)}
}

// reloadOnSignal reloads the server configuration from the file
// whenever the process receives a SIGHUP. The storage engine and
// the verify mode are not reloaded.
func reloadOnSignal(ctx context.Context, srv *fckv.Server, filename string, format log.Format) {
	logger := slog.New(log.NewHandler(os.Stderr, format, nil))
	sighup := make(chan os.Signal, 10)
	signal.Notify(sighup, syscall.SIGHUP)
	defer signal.Stop(sighup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-sighup:
		}

		file, err := fckvconf.ReadFile(filename)
		if err != nil {
			logger.Error("fckv: failed to reload server config", "err", err)
			continue
		}
		file.Store = nil

		conf, err := file.Config(ctx)
		if err != nil {
			logger.Error("fckv: failed to reload server config", "err", err)
			continue
		}
		setLogHandlers(conf, format)
		if err = srv.Update(conf); err != nil {
			logger.Error("fckv: failed to reload server config", "err", err)
			continue
		}
		srv.ErrLevel.Set(file.Log.ErrLevel)
		srv.AuditLevel.Set(file.Log.AuditLevel)
		logger.Info("fckv: reloaded server config", "file", filename)
	}
}

func printStartupMessage(addr string, conf *fckv.Config, store string) {
	lease := conf.LockLease
	if lease <= 0 {
		lease = fckv.DefaultLockLease
	}
	host, port, err := net.SplitHostPort(addr)
	if err == nil && (host == "" || host == "0.0.0.0" || host == "::") {
		addr = net.JoinHostPort("127.0.0.1", port)
	}
	cli.PrintStartupMessage(cli.StartupInfo{
		Version: sys.BinaryInfo().Version,
		Addr:    addr,
		Admin:   conf.Admin,
		Store:   store,
		Verify:  conf.Verify.String(),
		Lease:   lease.String(),
		Tamper:  conf.EnableTamper,
	})
}

func storeName(store fckvconf.Store) string {
	switch s := store.(type) {
	case *fckvconf.MemStore:
		return "mem"
	case *fckvconf.FSStore:
		return "fs: " + s.Path
	case *fckvconf.LevelDBStore:
		return "leveldb: " + s.Path
	case *fckvconf.BadgerStore:
		if s.InMemory {
			return "badger: in-memory"
		}
		return "badger: " + s.Path
	case *fckvconf.BoltStore:
		return "bolt: " + s.Path
	default:
		return fmt.Sprintf("%T", store)
	}
}
