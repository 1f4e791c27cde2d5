// Copyright 2023 - MinIO, Inc. All rights reserved.
// Use of this source code is governed by the AGPLv3
// license that can be found in the LICENSE file.

package fckv

import (
	"crypto/tls"
	"crypto/x509"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/minio/fckv/internal/api"
	"github.com/minio/fckv/internal/https"
)

// mtls authenticates requests by the client certificate sent
// during the TLS handshake. The request identity is the hash
// of the certificate public key.
//
// Any client trusted by the TLS configuration is accepted
// unless admin is set. Then only the server admin is accepted
// and no one if the server has no admin.
type mtls struct {
	state *atomic.Pointer[serverState]
	admin bool
}

func (m mtls) Authenticate(req *http.Request) (*api.Request, api.Error) {
	received := time.Now()

	s := m.state.Load()
	identity, err := identifyRequest(req.TLS)
	if err != nil {
		s.Log.DebugContext(req.Context(), err.Error(), "path", req.URL.Path, "remote", req.RemoteAddr)
		return nil, err
	}
	if m.admin && (s.Admin == "" || identity != s.Admin) {
		s.Log.DebugContext(req.Context(), "access denied: not the admin identity", "path", req.URL.Path, "identity", identity)
		return nil, ErrForbidden.(api.Error)
	}
	return &api.Request{Request: req, Identity: identity, Received: received}, nil
}

// identifyOnly accepts any request. It sets the request
// identity if the client sent a valid certificate.
type identifyOnly struct{}

func (identifyOnly) Authenticate(req *http.Request) (*api.Request, api.Error) {
	identity, _ := identifyRequest(req.TLS)
	return &api.Request{Request: req, Identity: identity, Received: time.Now()}, nil
}

func identifyRequest(state *tls.ConnectionState) (string, api.Error) {
	if state == nil {
		return "", api.NewError(http.StatusBadRequest, "insecure connection: TLS is required")
	}

	var cert *x509.Certificate
	for _, c := range state.PeerCertificates {
		if c.IsCA {
			continue
		}
		if cert != nil {
			return "", api.NewError(http.StatusBadRequest, "tls: received more than one client certificate")
		}
		cert = c
	}
	if cert == nil {
		return "", api.NewError(http.StatusBadRequest, "tls: client certificate is required")
	}
	return https.Identity(cert), nil
}
