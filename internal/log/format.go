// Copyright 2025 - MinIO, Inc. All rights reserved.
// Use of this source code is governed by the AGPLv3
// license that can be found in the LICENSE file.

// Package log selects the output format of server error and
// audit logs.
package log

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Format defines a type of different log output formats,
// used by audit and error events if no custom log handler specified.
type Format string

const (
	// TextFormat creates plain text formatted log message
	TextFormat Format = "Text"

	// JSONFormat creates JSON formatted log messages
	JSONFormat Format = "JSON"
)

// ParseFormat parses s as log format. It accepts "text"
// and "json" ignoring case. The empty string is TextFormat.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text":
		return TextFormat, nil
	case "json":
		return JSONFormat, nil
	default:
		return "", fmt.Errorf("log: invalid format '%s'", s)
	}
}

// NewHandler returns a new text or JSON formatted log handler
// writing to w.
func NewHandler(w io.Writer, f Format, opts *slog.HandlerOptions) slog.Handler {
	switch f {
	case JSONFormat:
		return slog.NewJSONHandler(w, opts)
	default:
		return slog.NewTextHandler(w, opts)
	}
}
