// Copyright 2023 - MinIO, Inc. All rights reserved.
// Use of this source code is governed by the AGPLv3
// license that can be found in the LICENSE file.

package fckv

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"aead.dev/mem"
	"github.com/minio/fckv/internal/api"
	"github.com/minio/fckv/internal/hash"
	"github.com/minio/fckv/internal/headers"
	"github.com/minio/fckv/internal/metric"
	"github.com/minio/fckv/internal/sys"
	"github.com/minio/fckv/kv"
	"github.com/prometheus/common/expfmt"
)

// Request body limits.
const (
	maxRecordSize  = 1 * mem.MiB
	maxContentSize = 32 * mem.MiB
)

type serverState struct {
	Mux *http.ServeMux

	Admin        string
	EnableTamper bool
	StartTime    time.Time

	Routes map[string]api.Route

	Log        *slog.Logger
	LogHandler *logHandler
	Audit      *auditor
	Metrics    *metric.Metrics

	Store   kv.Store[string, []byte]
	Ledger  *ledger
	Content *contentStore
}

func (s *serverState) initRoutes(state *atomic.Pointer[serverState], config map[string]RouteConfig) {
	identity := mtls{state: state}
	admin := mtls{state: state, admin: true}

	s.Routes = map[string]api.Route{
		api.PathVersion: {
			Method:  http.MethodGet,
			Path:    api.PathVersion,
			MaxBody: 0,
			Timeout: 10 * time.Second,
			Auth:    identifyOnly{},
			Handler: api.HandlerFunc(s.handleVersion),
		},
		api.PathStatus: {
			Method:  http.MethodGet,
			Path:    api.PathStatus,
			MaxBody: 0,
			Timeout: 15 * time.Second,
			Auth:    identity,
			Handler: api.HandlerFunc(s.handleStatus),
		},
		api.PathMetrics: {
			Method:  http.MethodGet,
			Path:    api.PathMetrics,
			MaxBody: 0,
			Timeout: 15 * time.Second,
			Auth:    identity,
			Handler: api.HandlerFunc(s.handleMetrics),
		},
		api.PathListAPIs: {
			Method:  http.MethodGet,
			Path:    api.PathListAPIs,
			MaxBody: 0,
			Timeout: 10 * time.Second,
			Auth:    identity,
			Handler: api.HandlerFunc(s.handleListAPIs),
		},

		api.PathOpStart: {
			Method:  http.MethodPost,
			Path:    api.PathOpStart,
			MaxBody: 0,
			Timeout: 15 * time.Second,
			Auth:    identity,
			Handler: api.HandlerFunc(s.handleStartOp),
		},
		api.PathOpCommit: {
			Method:  http.MethodPost,
			Path:    api.PathOpCommit,
			MaxBody: int64(maxRecordSize),
			Timeout: 15 * time.Second,
			Auth:    identity,
			Handler: api.HandlerFunc(s.handleCommitOp),
		},
		api.PathOpAbort: {
			Method:  http.MethodPost,
			Path:    api.PathOpAbort,
			MaxBody: 0,
			Timeout: 15 * time.Second,
			Auth:    identity,
			Handler: api.HandlerFunc(s.handleAbortOp),
		},

		api.PathContentGet: {
			Method:  http.MethodGet,
			Path:    api.PathContentGet,
			MaxBody: 0,
			Timeout: 30 * time.Second,
			Auth:    identity,
			Handler: api.HandlerFunc(s.handleGetContent),
		},
		api.PathContentPut: {
			Method:  http.MethodPut,
			Path:    api.PathContentPut,
			MaxBody: int64(maxContentSize),
			Timeout: 30 * time.Second,
			Auth:    identity,
			Handler: api.HandlerFunc(s.handlePutContent),
		},

		api.PathTamper: {
			Method:  http.MethodPut,
			Path:    api.PathTamper,
			MaxBody: int64(1 * mem.KiB),
			Timeout: 15 * time.Second,
			Auth:    admin,
			Handler: api.HandlerFunc(s.handleTamper),
		},

		api.PathLogError: {
			Method:  http.MethodGet,
			Path:    api.PathLogError,
			MaxBody: 0,
			Timeout: 0 * time.Second,
			Auth:    admin,
			Handler: api.HandlerFunc(s.handleLogError),
		},
		api.PathLogAudit: {
			Method:  http.MethodGet,
			Path:    api.PathLogAudit,
			MaxBody: 0,
			Timeout: 0 * time.Second,
			Auth:    admin,
			Handler: api.HandlerFunc(s.handleLogAudit),
		},
	}

	for path, route := range s.Routes {
		if conf, ok := config[path]; ok {
			if conf.Timeout > 0 {
				route.Timeout = conf.Timeout
			}
			if conf.InsecureSkipAuth && !requiresIdentity(path) {
				route.Auth = identifyOnly{}
			}
		}
		route.Handler = s.audit(route.Handler)
		s.Routes[path] = route
		s.Mux.Handle(path, route)
	}
}

// audit emits an audit event once h has handled a request.
func (s *serverState) audit(h api.Handler) api.Handler {
	return api.HandlerFunc(func(resp *api.Response, req *api.Request) {
		h.ServeAPI(resp, req)

		code := resp.StatusCode()
		if code == 0 {
			code = http.StatusOK
		}
		s.Audit.Record(req, code)
	})
}

// fail sends err to the client. Errors that are not api.Error
// values are logged and sent as internal server errors.
func (s *serverState) fail(resp *api.Response, req *api.Request, err error) {
	if e, ok := api.IsError(err); ok {
		api.Failr(resp, e)
		return
	}
	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) {
		api.Fail(resp, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}

	var unreachable *kv.Unreachable
	if errors.As(err, &unreachable) {
		s.Log.ErrorContext(req.Context(), "fckv: storage engine unreachable", "path", req.URL.Path, "err", err)
		api.Fail(resp, http.StatusBadGateway, "storage engine is unreachable")
		return
	}
	s.Log.ErrorContext(req.Context(), "fckv: internal error", "path", req.URL.Path, "identity", req.Identity, "err", err)
	api.Fail(resp, http.StatusInternalServerError, "internal server error")
}

func (s *serverState) handleVersion(resp *api.Response, req *api.Request) {
	info := sys.BinaryInfo()
	resp.ReplyWith(http.StatusOK, api.VersionResponse{
		Version: info.Version,
		Commit:  info.CommitID,
	})
}

func (s *serverState) handleStatus(resp *api.Response, req *api.Request) {
	info := sys.ReadRuntimeInfo()
	response := api.StatusResponse{
		Version:    sys.BinaryInfo().Version,
		OS:         info.OS,
		Arch:       info.Arch,
		UpTime:     uint64(time.Since(s.StartTime).Round(time.Second).Seconds()),
		CPUs:       info.CPUs,
		UsableCPUs: info.UsableCPUs,
		HeapAlloc:  info.HeapAlloc,
		StackAlloc: info.StackAlloc,
		LedgerSize: s.Ledger.Len(),
		TamperMode: s.Content.Mode().String(),
	}
	if holder, ttl, ok := s.Ledger.Holder(); ok {
		response.LockHolder = holder
		response.LockExpiry = int64(ttl.Round(time.Second).Seconds())
	}

	state, err := s.Store.Status(req.Context())
	if err != nil {
		var unreachable *kv.Unreachable
		response.StoreUnreachable = errors.As(err, &unreachable)
	} else {
		latency := state.Latency.Round(time.Microsecond)
		if latency == 0 { // Make sure we actually send a latency even if the store responds in < 1µs.
			latency = time.Microsecond
		}
		response.StoreLatency = latency.Microseconds()
	}
	resp.ReplyWith(http.StatusOK, response)
}

func (s *serverState) handleMetrics(resp *api.Response, req *api.Request) {
	contentType := expfmt.Negotiate(req.Header)
	resp.Header().Set(headers.ContentType, string(contentType))
	resp.WriteHeader(http.StatusOK)

	s.Metrics.EncodeTo(expfmt.NewEncoder(resp, contentType))
}

func (s *serverState) handleListAPIs(resp *api.Response, req *api.Request) {
	paths := make([]string, 0, len(s.Routes))
	for path := range s.Routes {
		paths = append(paths, path)
	}
	slices.Sort(paths)

	responses := make(api.ListAPIsResponse, 0, len(paths))
	for _, path := range paths {
		route := s.Routes[path]
		responses = append(responses, api.DescribeRouteResponse{
			Method:  route.Method,
			Path:    route.Path,
			MaxBody: route.MaxBody,
			Timeout: int64(route.Timeout.Truncate(time.Second).Seconds()),
		})
	}
	resp.ReplyWith(http.StatusOK, responses)
}

func (s *serverState) handleStartOp(resp *api.Response, req *api.Request) {
	records, err := s.Ledger.Start(req.Identity)
	if err != nil {
		s.fail(resp, req, err)
		return
	}
	resp.ReplyWith(http.StatusOK, api.StartOpResponse{
		Records: records,
	})
}

func (s *serverState) handleCommitOp(resp *api.Response, req *api.Request) {
	record, err := io.ReadAll(req.Body)
	if err != nil {
		s.fail(resp, req, err)
		return
	}
	if err = s.Ledger.Commit(req.Context(), req.Identity, record); err != nil {
		s.fail(resp, req, err)
		return
	}
	resp.Reply(http.StatusOK)
}

func (s *serverState) handleAbortOp(resp *api.Response, req *api.Request) {
	if err := s.Ledger.Abort(req.Identity); err != nil {
		s.fail(resp, req, err)
		return
	}
	resp.Reply(http.StatusOK)
}

func (s *serverState) handleGetContent(resp *api.Response, req *api.Request) {
	name, err := api.Cut(req, api.PathContentGet)
	if err != nil {
		s.fail(resp, req, err)
		return
	}
	sum, err := hash.Parse(name)
	if err != nil {
		api.Failf(resp, http.StatusBadRequest, "invalid content hash '%s'", name)
		return
	}

	var value []byte
	err = s.Ledger.WithLock(req.Identity, func() (err error) {
		value, err = s.Content.Get(req.Context(), sum)
		return err
	})
	if err != nil {
		s.fail(resp, req, err)
		return
	}
	resp.ReplyBinary(value)
}

func (s *serverState) handlePutContent(resp *api.Response, req *api.Request) {
	value, err := io.ReadAll(req.Body)
	if err != nil {
		s.fail(resp, req, err)
		return
	}

	var sum hash.Sum
	err = s.Ledger.WithLock(req.Identity, func() (err error) {
		sum, err = s.Content.Put(req.Context(), value)
		return err
	})
	if err != nil {
		s.fail(resp, req, err)
		return
	}
	resp.ReplyWith(http.StatusOK, api.PutContentResponse{
		Hash: sum,
	})
}

func (s *serverState) handleTamper(resp *api.Response, req *api.Request) {
	if !s.EnableTamper {
		s.fail(resp, req, ErrTamperDisabled)
		return
	}

	var body api.TamperRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		api.Fail(resp, http.StatusBadRequest, "invalid tamper request")
		return
	}
	mode, err := ParseTamperMode(body.Mode)
	if err != nil {
		api.Fail(resp, http.StatusBadRequest, strings.TrimPrefix(err.Error(), "fckv: "))
		return
	}
	if err = s.Content.Tamper(req.Context(), mode, body.Hash); err != nil {
		s.fail(resp, req, err)
		return
	}
	resp.Reply(http.StatusOK)
}

func (s *serverState) handleLogError(resp *api.Response, req *api.Request) {
	resp.Header().Set(headers.ContentType, headers.ContentTypeJSONLines)
	resp.WriteHeader(http.StatusOK)
	resp.Flush()

	defer s.LogHandler.out.Subscribe(api.StreamErrorLog(resp))()

	<-req.Context().Done() // Wait for the client to close the connection
}

func (s *serverState) handleLogAudit(resp *api.Response, req *api.Request) {
	resp.Header().Set(headers.ContentType, headers.ContentTypeJSONLines)
	resp.WriteHeader(http.StatusOK)
	resp.Flush()

	defer s.Audit.out.Subscribe(api.StreamAuditLog(resp))()

	<-req.Context().Done() // Wait for the client to close the connection
}
