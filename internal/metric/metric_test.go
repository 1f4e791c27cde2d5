// Copyright 2023 - MinIO, Inc. All rights reserved.
// Use of this source code is governed by the AGPLv3
// license that can be found in the LICENSE file.

package metric

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/common/expfmt"
)

func TestInstrument(t *testing.T) {
	m := New()
	handler := m.Instrument(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/fail":
			w.WriteHeader(http.StatusServiceUnavailable)
		case "/empty":
		default:
			w.Write([]byte("ok"))
		}
	}))

	for _, path := range []string{"/", "/empty", "/fail"} {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}
	m.OpEvent(OpStart)
	m.OpEvent(OpReclaim)
	m.ContentWritten(2)
	m.ErrorEventCounter().Write([]byte("error"))

	var buf bytes.Buffer
	if err := m.EncodeTo(expfmt.NewEncoder(&buf, expfmt.FmtText)); err != nil {
		t.Fatalf("Failed to encode metrics: %v", err)
	}
	for _, want := range []string{
		`fckv_http_requests{status="2xx"} 2`,
		`fckv_http_requests{status="5xx"} 1`,
		"fckv_http_requests_active 0",
		"fckv_http_response_time_count 3",
		`fckv_op_events{event="reclaim"} 1`,
		`fckv_content_bytes{direction="write"} 2`,
		`fckv_log_events{log="error"} 1`,
		"fckv_system_up_time",
	} {
		if !strings.Contains(buf.String(), want) {
			t.Fatalf("Metrics do not contain '%s':\n%s", want, buf.String())
		}
	}
}
