// Copyright 2023 - MinIO, Inc. All rights reserved.
// Use of this source code is governed by the AGPLv3
// license that can be found in the LICENSE file.

package fckv

import (
	"crypto/tls"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/minio/fckv/kv"
)

// VerifyMode controls how a server verifies content read from
// its storage engine.
type VerifyMode uint

const (
	// VerifyNone stores content as is.
	VerifyNone VerifyMode = iota

	// VerifyDoubleHash stores content through a double-hash
	// verification store that detects a storage engine which
	// returns substituted or corrupted content.
	VerifyDoubleHash
)

// ParseVerifyMode parses s as VerifyMode. The empty string
// is VerifyNone.
func ParseVerifyMode(s string) (VerifyMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return VerifyNone, nil
	case "double-hash":
		return VerifyDoubleHash, nil
	default:
		return 0, fmt.Errorf("fckv: invalid verify mode '%s'", s)
	}
}

// String returns the string representation of m.
func (m VerifyMode) String() string {
	switch m {
	case VerifyNone:
		return "none"
	case VerifyDoubleHash:
		return "double-hash"
	default:
		return fmt.Sprintf("VerifyMode(%d)", uint(m))
	}
}

// Config is a structure containing the FCKV server configuration.
type Config struct {
	// Admin is the identity with access to admin APIs, like the
	// log and tamper APIs. If empty, admin access is disabled.
	Admin string

	// TLS contains the server's TLS configuration. A server only
	// accepts TLS connections and identifies clients by their
	// certificate. The configuration must contain at least one
	// server certificate and request client certificates.
	TLS *tls.Config

	// Store is the storage engine for the ledger and all content.
	// The server does not close the Store.
	//
	// Store is only used when the server starts. Updating a
	// running server keeps its Store.
	Store kv.Store[string, []byte]

	// Verify controls how content read from the Store is verified.
	// Like Store, it cannot be changed on a running server.
	Verify VerifyMode

	// LockLease is the duration after which another client may
	// reclaim the operation lock from its holder. If <= 0,
	// defaults to DefaultLockLease.
	LockLease time.Duration

	// EnableTamper enables the tamper API for the admin identity.
	// It must not be enabled in production.
	EnableTamper bool

	// Routes allows customization of the server's API routes.
	// It maps API paths to RouteConfig. Unknown paths are ignored.
	Routes map[string]RouteConfig

	// ErrorLog is an optional handler for handling the server's
	// error log events. If nil, defaults to a slog.TextHandler
	// writing to os.Stderr. The server's error log level is
	// controlled by Server.ErrLevel.
	ErrorLog slog.Handler

	// AuditLog is an optional handler for handling the server's
	// audit log events. If nil, defaults to a slog.TextHandler
	// writing to os.Stdout. The server's audit log level is
	// controlled by Server.AuditLevel.
	AuditLog AuditHandler
}

// RouteConfig is a structure holding API route configuration.
type RouteConfig struct {
	// Timeout specifies when the API handler times out.
	//
	// A handler times out when it fails to send the
	// *entire* response body to the client within
	// the given time period.
	//
	// If Timeout <= 0 the API default is used.
	Timeout time.Duration

	// InsecureSkipAuth, if set, disables authentication for the
	// API. Anyone who can reach the server can access the API.
	// Operation and content APIs require an identity and cannot
	// skip authentication.
	InsecureSkipAuth bool
}
