// Copyright 2023 - MinIO, Inc. All rights reserved.
// Use of this source code is governed by the AGPLv3
// license that can be found in the LICENSE file.

package fckv

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/netip"
	"time"

	"github.com/minio/fckv/internal/api"
)

// AuditRecord describes one request served by a Server.
type AuditRecord struct {
	Time    time.Time
	Level   slog.Level // LevelWarn for server errors, LevelInfo otherwise
	Message string     // "<METHOD> <PATH>"

	Identity string // Empty if the route does not authenticate clients
	RemoteIP netip.Addr
	Method   string
	Path     string
	Status   int
	Latency  time.Duration // Time between receiving and answering the request
}

// AuditHandler handles the AuditRecords of a Server.
// It must be safe for concurrent use.
type AuditHandler interface {
	// Enabled reports whether records of the given level
	// are handled. Handle is called only if it returns true.
	Enabled(context.Context, slog.Level) bool

	Handle(context.Context, AuditRecord) error
}

// AuditLogHandler adapts an slog.Handler to an AuditHandler.
type AuditLogHandler struct {
	Handler slog.Handler
}

// Enabled calls Enabled of the underlying slog.Handler.
func (a *AuditLogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return a.Handler.Enabled(ctx, level)
}

// Handle turns r into an slog.Record with one attribute
// per request property.
func (a *AuditLogHandler) Handle(ctx context.Context, r AuditRecord) error {
	rec := slog.NewRecord(r.Time, r.Level, r.Message, 0)
	rec.AddAttrs(
		slog.String("identity", r.Identity),
		slog.String("ip", r.RemoteIP.String()),
		slog.Int("status", r.Status),
		slog.Duration("latency", r.Latency),
	)
	return a.Handler.Handle(ctx, rec)
}

// auditor turns served requests into AuditRecords. It passes
// them to its AuditHandler and streams them, as JSON, to all
// clients subscribed to the audit log.
type auditor struct {
	handler AuditHandler
	level   slog.Leveler
	out     *api.Broadcast
}

func newAuditor(h AuditHandler, level slog.Leveler) *auditor {
	return &auditor{handler: h, level: level, out: &api.Broadcast{}}
}

// Record audits req that has been answered with status.
func (a *auditor) Record(req *api.Request, status int) {
	level := slog.LevelInfo
	if status >= http.StatusInternalServerError {
		level = slog.LevelWarn
	}

	ctx := req.Context()
	toHandler := level >= a.level.Level() && a.handler.Enabled(ctx, level)
	toClients := a.out.Len() > 0
	if !toHandler && !toClients {
		return
	}

	addr, _ := netip.ParseAddrPort(req.RemoteAddr)
	now := time.Now()
	r := AuditRecord{
		Time:     now,
		Level:    level,
		Message:  req.Method + " " + req.URL.Path,
		Identity: req.Identity,
		RemoteIP: addr.Addr(),
		Method:   req.Method,
		Path:     req.URL.Path,
		Status:   status,
		Latency:  now.Sub(req.Received),
	}
	if toHandler {
		a.handler.Handle(ctx, r)
	}
	if toClients {
		json.NewEncoder(a.out).Encode(api.AuditLogEvent{
			Time:     r.Time,
			Method:   r.Method,
			Path:     r.Path,
			Identity: r.Identity,
			IP:       r.RemoteIP.String(),
			Status:   r.Status,
			Latency:  r.Latency.Microseconds(),
		})
	}
}
