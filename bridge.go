// Copyright 2025 The Rivaas Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package rpcbridge

import (
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"

	"rivaas.dev/rpcbridge/descriptor"
	"rivaas.dev/rpcbridge/jsoncodec"
)

// noopLogger is a singleton no-op logger used when no logger is configured.
var noopLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// unmatchedProcedure is the metrics label used when no procedure was resolved.
const unmatchedProcedure = "_unmatched"

// Bridge adapts a remote-procedure service to HTTP with JSON payloads.
// It implements http.Handler.
//
// A Bridge is built once with New and is immutable afterwards: the compiled
// rule table, the origin matchers, and the service descriptor require no
// synchronization for concurrent reads. Each ServeHTTP call keeps all of its
// state on its own stack; the Bridge holds no per-request caches.
type Bridge struct {
	service *descriptor.Service
	codec   descriptor.Codec
	rules   []rule
	logger  *slog.Logger

	// CORS configuration, compiled once at construction.
	originsInput   []string
	allowedOrigins map[string]struct{}
	originPatterns []*regexp.Regexp
	headersInput   []string
	allowedHeaders string // sorted, comma-joined; "" when unconfigured

	// Observability, all optional.
	metricsRegistry prometheus.Registerer
	metrics         *metricsRecorder
	tracerProvider  trace.TracerProvider
	tracer          trace.Tracer
	requestID       bool
	requestIDHeader string
	newRequestID    func() string
}

// New builds a Bridge for the given service descriptor.
//
// Construction compiles every procedure's URL mapping into the rule table
// and fails fast on any template fault: a duplicate template variable, a
// mapping bound to the root path, or a template that does not cover all of
// the procedure's required parameters. A Bridge is never half-built; if New
// returns an error the service must not start.
//
// The default codec is jsoncodec.New(); override it with WithCodec.
//
// Example:
//
//	bridge, err := rpcbridge.New(svc,
//	    rpcbridge.WithAllowedOrigins("app.example.com", "*.internal.example.com"),
//	    rpcbridge.WithAllowedHeaders("Content-Type", "X-Request-ID"),
//	    rpcbridge.WithLogger(slog.Default()),
//	)
func New(service *descriptor.Service, opts ...Option) (*Bridge, error) {
	if service == nil {
		return nil, ErrNilService
	}
	b := &Bridge{
		service:         service,
		logger:          noopLogger,
		requestIDHeader: "X-Request-ID",
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.codec == nil {
		b.codec = jsoncodec.New()
	}
	b.compileOrigins()
	b.compileAllowedHeaders()
	if err := b.buildRules(); err != nil {
		return nil, err
	}
	if b.metricsRegistry != nil {
		b.metrics = newMetricsRecorder(b.metricsRegistry)
	}
	if b.tracerProvider != nil {
		b.tracer = b.tracerProvider.Tracer("rivaas.dev/rpcbridge")
	}
	return b, nil
}

// MustNew is like New but panics on error. Use it for static service tables
// where a construction failure is a programming error.
func MustNew(service *descriptor.Service, opts ...Option) *Bridge {
	b, err := New(service, opts...)
	if err != nil {
		panic(err)
	}
	return b
}

// Service returns the service descriptor the Bridge was built from.
func (b *Bridge) Service() *descriptor.Service {
	return b.service
}

// ServeHTTP routes an HTTP request to a procedure, or responds with an error
// envelope when it finds nothing to invoke.
func (b *Bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()

	var span trace.Span
	if b.tracer != nil {
		ctx, span = b.tracer.Start(ctx, "rpcbridge.dispatch",
			trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()
	}

	rw := &responseWriter{ResponseWriter: w}
	if b.requestID {
		id := r.Header.Get(b.requestIDHeader)
		if id == "" {
			id = b.newRequestID()
		}
		rw.Header().Set(b.requestIDHeader, id)
	}

	procedure := unmatchedProcedure
	routed := false

	dc, derr := b.dispatchMethod(r)
	switch {
	case derr != nil:
		resp := b.errorResponse(derr.status, r, derr.message)
		resp.cors = derr.cors
		b.writeResponse(rw, resp)
	case r.Method == http.MethodOptions:
		// Preflight and probe requests are answered from the accumulated
		// CORS headers alone; no procedure runs.
		applyCORS(rw.Header(), dc.cors)
		rw.WriteHeader(http.StatusOK)
		procedure, routed = dc.method, dc.routed
	case dc.method == "":
		b.writeResponse(rw, b.errorResponse(http.StatusBadRequest, r, "`method` is missing."))
	default:
		procedure, routed = dc.method, dc.routed
		b.writeResponse(rw, b.rpc(ctx, r, dc))
	}

	if span != nil {
		recordSpan(span, procedure, routed, rw.StatusCode())
	}
	if b.metrics != nil {
		label := procedure
		if label == "" {
			label = unmatchedProcedure
		}
		b.metrics.observe(label, rw.StatusCode(), time.Since(start))
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code and
// response size, and to suppress duplicate WriteHeader calls.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	size       int64
	written    bool
}

// WriteHeader captures the status code and prevents duplicate calls.
func (rw *responseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.ResponseWriter.WriteHeader(code)
		rw.written = true
	}
}

// Write captures the response size and marks the response as written.
func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.written = true
	}
	if rw.statusCode == 0 {
		rw.statusCode = http.StatusOK
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.size += int64(n)
	return n, err
}

// StatusCode returns the HTTP status code written so far.
func (rw *responseWriter) StatusCode() int {
	if rw.statusCode == 0 {
		return http.StatusOK
	}
	return rw.statusCode
}

// Size returns the number of body bytes written so far.
func (rw *responseWriter) Size() int64 {
	return rw.size
}

// Flush implements http.Flusher when the underlying writer supports it.
func (rw *responseWriter) Flush() {
	if flusher, ok := rw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
