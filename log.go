// Copyright 2023 - MinIO, Inc. All rights reserved.
// Use of this source code is governed by the AGPLv3
// license that can be found in the LICENSE file.

package fckv

import (
	"context"
	"log/slog"

	"github.com/minio/fckv/internal/api"
)

// logHandler is the slog.Handler of a Server. It forwards
// records of at least level to Config.ErrorLog and, as text,
// records of at least slog.LevelInfo to subscribers of the
// ErrorLog API.
type logHandler struct {
	primary slog.Handler
	level   slog.Leveler

	stream slog.Handler
	out    *api.Broadcast // shared by all derived handlers
}

func newLogHandler(h slog.Handler, level slog.Leveler) *logHandler {
	out := &api.Broadcast{}
	return &logHandler{
		primary: h,
		level:   level,
		stream:  slog.NewTextHandler(out, &slog.HandlerOptions{Level: slog.LevelInfo}),
		out:     out,
	}
}

func (h *logHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.toPrimary(ctx, level) || h.toStream(ctx, level)
}

func (h *logHandler) Handle(ctx context.Context, r slog.Record) error {
	var err error
	if h.toPrimary(ctx, r.Level) {
		err = h.primary.Handle(ctx, r)
	}
	if h.toStream(ctx, r.Level) {
		if sErr := h.stream.Handle(ctx, r); err == nil {
			err = sErr
		}
	}
	return err
}

func (h *logHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h.derive(h.primary.WithAttrs(attrs), h.stream.WithAttrs(attrs))
}

func (h *logHandler) WithGroup(name string) slog.Handler {
	return h.derive(h.primary.WithGroup(name), h.stream.WithGroup(name))
}

func (h *logHandler) toPrimary(ctx context.Context, level slog.Level) bool {
	return level >= h.level.Level() && h.primary.Enabled(ctx, level)
}

func (h *logHandler) toStream(ctx context.Context, level slog.Level) bool {
	return h.out.Len() > 0 && h.stream.Enabled(ctx, level)
}

func (h *logHandler) derive(primary, stream slog.Handler) *logHandler {
	return &logHandler{primary: primary, level: h.level, stream: stream, out: h.out}
}
