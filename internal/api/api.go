// Copyright 2023 - MinIO, Inc. All rights reserved.
// Use of this source code is governed by the AGPLv3
// license that can be found in the LICENSE file.

// Package api implements the HTTP API of an FCKV server:
// routes, request and response types and error encoding.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/minio/fckv/internal/headers"
)

// API paths exposed by FCKV servers.
const (
	PathVersion  = "/version"
	PathStatus   = "/v1/status"
	PathMetrics  = "/v1/metrics"
	PathListAPIs = "/v1/api"

	PathOpStart  = "/v1/op/start"
	PathOpCommit = "/v1/op/commit"
	PathOpAbort  = "/v1/op/abort"

	PathContentGet = "/v1/content/get/"
	PathContentPut = "/v1/content/put"

	PathTamper = "/v1/tamper"

	PathLogError = "/v1/log/error"
	PathLogAudit = "/v1/log/audit"
)

// Route describes a single API route.
type Route struct {
	Method  string        // The HTTP method
	Path    string        // The URI API path
	MaxBody int64         // The max. body size the API accepts
	Timeout time.Duration // The duration after which an API request times out. 0 means no timeout
	Auth    Authenticator // Authenticates requests before invoking the Handler

	// Handler implements the API.
	//
	// When invoked by the API's ServeHTTP method, the handler
	// can rely upon:
	//  - the request method matching the API's HTTP method.
	//  - the API path being a prefix of the request URL.
	//  - the request body being limited to the API's MaxBody size.
	//  - the request timing out after the duration specified for the API.
	//  - the request identity having been authenticated.
	Handler Handler
}

// Request is an authenticated API request.
type Request struct {
	*http.Request

	// Identity is the identity of the client that sent
	// the request. It is empty if the route does not
	// authenticate requests.
	Identity string

	// Received is the point in time at which the server
	// received the request.
	Received time.Time
}

// Response is an http.ResponseWriter that records the
// status code sent to the client.
type Response struct {
	http.ResponseWriter

	code int
}

// StatusCode returns the HTTP status code sent to the client.
// It returns 0 if no header has been written yet.
func (r *Response) StatusCode() int { return r.code }

// WriteHeader sends an HTTP response header with the given
// status code.
func (r *Response) WriteHeader(code int) {
	if r.code == 0 {
		r.code = code
	}
	r.ResponseWriter.WriteHeader(code)
}

// Write writes p as part of the response body. It sends an
// HTTP 200 OK header if no header has been sent before.
func (r *Response) Write(p []byte) (int, error) {
	if r.code == 0 {
		r.code = http.StatusOK
	}
	return r.ResponseWriter.Write(p)
}

// Flush sends any buffered data to the client.
func (r *Response) Flush() {
	if r.code == 0 {
		r.code = http.StatusOK
	}
	http.NewResponseController(r.ResponseWriter).Flush()
}

// Unwrap returns the underlying http.ResponseWriter.
func (r *Response) Unwrap() http.ResponseWriter { return r.ResponseWriter }

// Reply sends an empty response with the given status code.
func (r *Response) Reply(code int) {
	r.Header().Set(headers.ContentLength, "0")
	r.WriteHeader(code)
}

// ReplyWith sends a JSON-encoded response with the given
// status code.
func (r *Response) ReplyWith(code int, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	r.Header().Set(headers.ContentType, headers.ContentTypeJSON)
	r.Header().Set(headers.ContentLength, strconv.Itoa(len(b)))
	r.WriteHeader(code)
	_, err = r.Write(b)
	return err
}

// ReplyBinary sends b as octet-stream response with
// status code 200 OK.
func (r *Response) ReplyBinary(b []byte) error {
	r.Header().Set(headers.ContentType, headers.ContentTypeBinary)
	r.Header().Set(headers.ContentLength, strconv.Itoa(len(b)))
	r.WriteHeader(http.StatusOK)
	_, err := r.Write(b)
	return err
}

// Authenticator authenticates HTTP requests.
type Authenticator interface {
	// Authenticate returns the authenticated request or
	// an Error explaining why authentication failed.
	Authenticate(*http.Request) (*Request, Error)
}

// AuthFunc is an adapter that allows the use of ordinary
// functions as Authenticator.
type AuthFunc func(*http.Request) (*Request, Error)

// Authenticate calls f(r).
func (f AuthFunc) Authenticate(r *http.Request) (*Request, Error) { return f(r) }

// InsecureSkipAuth is an Authenticator that accepts any request
// without checking the client identity.
var InsecureSkipAuth Authenticator = AuthFunc(func(r *http.Request) (*Request, Error) {
	return &Request{Request: r, Received: time.Now()}, nil
})

// Handler handles API requests.
type Handler interface {
	ServeAPI(*Response, *Request)
}

// HandlerFunc is an adapter that allows the use of
// ordinary functions as Handler.
type HandlerFunc func(*Response, *Request)

// ServeAPI calls f(resp, req).
func (f HandlerFunc) ServeAPI(resp *Response, req *Request) { f(resp, req) }

// ServeHTTP takes an HTTP Request and ResponseWriter and executes the
// route's Handler.
func (ro Route) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := &Response{ResponseWriter: w}

	if ro.Method == http.MethodPut && r.Method == http.MethodPost {
		r.Method = http.MethodPut
	}
	if r.Method != ro.Method {
		w.Header().Set(headers.Allow, ro.Method)
		Failr(resp, NewError(http.StatusMethodNotAllowed, http.StatusText(http.StatusMethodNotAllowed)))
		return
	}
	if !strings.HasPrefix(r.URL.Path, ro.Path) {
		Failf(resp, http.StatusBadRequest, "api: path mismatch: received '%s' - expected '%s'", r.URL.Path, ro.Path)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, ro.MaxBody)

	if ro.Timeout > 0 {
		switch err := http.NewResponseController(w).SetWriteDeadline(time.Now().Add(ro.Timeout)); {
		case errors.Is(err, http.ErrNotSupported):
			Failf(resp, http.StatusInternalServerError, "internal error: HTTP connection does not accept a timeout")
			return
		case err != nil:
			Failf(resp, http.StatusInternalServerError, "internal error: %v", err)
			return
		}
	}

	auth := ro.Auth
	if auth == nil {
		auth = InsecureSkipAuth
	}
	req, err := auth.Authenticate(r)
	if err != nil {
		Failr(resp, err)
		return
	}
	ro.Handler.ServeAPI(resp, req)
}

// Cut returns the remaining part of the request URL path
// after the route path. It returns an error if the path
// is not a prefix of the request URL path.
func Cut(r *Request, path string) (string, error) {
	s, ok := strings.CutPrefix(r.URL.Path, path)
	if !ok {
		return "", NewError(http.StatusBadRequest, "api: invalid path: '"+path+"' is not a prefix of '"+r.URL.Path+"'")
	}
	return s, nil
}
