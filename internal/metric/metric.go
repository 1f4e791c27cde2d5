// Copyright 2023 - MinIO, Inc. All rights reserved.
// Use of this source code is governed by the AGPLv3
// license that can be found in the LICENSE file.

// Package metric gathers and exposes server metrics.
package metric

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// Operation lifecycle events.
const (
	OpStart       = "start"
	OpCommit      = "commit"
	OpAbort       = "abort"
	OpReject      = "reject"
	OpUnavailable = "unavailable"
	OpReclaim     = "reclaim"
)

// Metrics gathers server metrics in its own prometheus registry.
type Metrics struct {
	registry *prometheus.Registry

	requests       *prometheus.CounterVec // partitioned by status class: 2xx, 4xx, 5xx
	requestActive  prometheus.Gauge
	requestLatency prometheus.Histogram

	ops          *prometheus.CounterVec
	contentBytes *prometheus.CounterVec
	logEvents    *prometheus.CounterVec
}

// New returns a new Metrics.
func New() *Metrics {
	const Namespace = "fckv"

	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "requests",
			Help:      "Number of served requests partitioned by response status class.",
		}, []string{"status"}),
		requestActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "requests_active",
			Help:      "Number of requests that are being served.",
		}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "response_time",
			Help:      "Time until the response headers have been sent in seconds.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "op",
			Name:      "events",
			Help:      "Number of operation lock events partitioned by event.",
		}, []string{"event"}),
		contentBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "content",
			Name:      "bytes",
			Help:      "Number of content bytes partitioned by direction.",
		}, []string{"direction"}),
		logEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "log",
			Name:      "events",
			Help:      "Number of log events partitioned by log.",
		}, []string{"log"}),
	}

	start := time.Now()
	m.registry.MustRegister(
		m.requests,
		m.requestActive,
		m.requestLatency,
		m.ops,
		m.contentBytes,
		m.logEvents,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "system",
			Name:      "up_time",
			Help:      "Time the server has been running in seconds.",
		}, func() float64 { return time.Since(start).Truncate(time.Millisecond).Seconds() }),
	)
	return m
}

// OpEvent counts one operation lock event.
func (m *Metrics) OpEvent(event string) { m.ops.WithLabelValues(event).Inc() }

// ContentRead adds n to the number of content bytes read.
func (m *Metrics) ContentRead(n int) { m.contentBytes.WithLabelValues("read").Add(float64(n)) }

// ContentWritten adds n to the number of content bytes written.
func (m *Metrics) ContentWritten(n int) { m.contentBytes.WithLabelValues("write").Add(float64(n)) }

// ErrorEventCounter returns an io.Writer that counts one error
// log event per Write. It never fails.
func (m *Metrics) ErrorEventCounter() io.Writer {
	return eventCounter{m.logEvents.WithLabelValues("error")}
}

// AuditEventCounter returns an io.Writer that counts one audit
// log event per Write. It never fails.
func (m *Metrics) AuditEventCounter() io.Writer {
	return eventCounter{m.logEvents.WithLabelValues("audit")}
}

// EncodeTo gathers all metrics and writes them to encoder.
func (m *Metrics) EncodeTo(encoder expfmt.Encoder) error {
	families, err := m.registry.Gather()
	if err != nil {
		return err
	}
	for _, family := range families {
		if err = encoder.Encode(family); err != nil {
			return err
		}
	}
	return nil
}

// Instrument returns a handler that wraps h. It counts
// active and served requests by response status class
// and measures the response time.
func (m *Metrics) Instrument(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.requestActive.Inc()
		defer m.requestActive.Dec()

		rw := &responseWriter{ResponseWriter: w, metrics: m, start: time.Now()}
		h.ServeHTTP(rw, r)
		if !rw.written {
			rw.WriteHeader(http.StatusOK)
		}
	})
}

type eventCounter struct{ prometheus.Counter }

func (w eventCounter) Write(p []byte) (int, error) {
	w.Inc()
	return len(p), nil
}

// responseWriter records the status class and the response
// time when the response headers are written.
type responseWriter struct {
	http.ResponseWriter

	metrics *Metrics
	start   time.Time
	written bool
}

func (w *responseWriter) WriteHeader(status int) {
	if !w.written {
		w.written = true
		w.metrics.requestLatency.Observe(time.Since(w.start).Seconds())
		w.metrics.requests.WithLabelValues(strconv.Itoa(status/100) + "xx").Inc()
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *responseWriter) Write(p []byte) (int, error) {
	if !w.written {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(p)
}

func (w *responseWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }
