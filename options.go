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
	"log/slog"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"rivaas.dev/rpcbridge/descriptor"
)

// Option defines functional options for Bridge configuration.
type Option func(*Bridge)

// WithCodec sets the codec used to decode arguments and encode results.
// The default is jsoncodec.New().
func WithCodec(codec descriptor.Codec) Option {
	return func(b *Bridge) {
		b.codec = codec
	}
}

// WithAllowedOrigins configures the set of cross-origin domains allowed to
// access the service. A domain may contain "*" as a wildcard standing for
// exactly one non-dot label:
//
//	rpcbridge.WithAllowedOrigins("example.com", "*.example.com")
//
// allows https://example.com and https://api.example.com, but not
// https://a.b.example.com. Matching is case-insensitive and only http and
// https origins are ever allowed. All matchers are compiled once during New.
func WithAllowedOrigins(origins ...string) Option {
	return func(b *Bridge) {
		b.originsInput = append(b.originsInput, origins...)
	}
}

// WithAllowedHeaders configures the request headers advertised in the
// Access-Control-Allow-Headers response header. Names are lower-cased,
// deduplicated, and sorted once during New.
func WithAllowedHeaders(headers ...string) Option {
	return func(b *Bridge) {
		b.headersInput = append(b.headersInput, headers...)
	}
}

// WithLogger sets the structured logger used for server-fault reporting
// (invalid return values, undeclared handler errors). The default logger
// discards everything.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bridge) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithMetrics registers request metrics with the given Prometheus registerer:
//
//	rpcbridge_requests_total{procedure, code}
//	rpcbridge_request_duration_seconds{procedure}
//
// Passing nil uses prometheus.DefaultRegisterer.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(b *Bridge) {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		b.metricsRegistry = reg
	}
}

// WithTracing enables one OpenTelemetry span per dispatch, carrying the
// resolved procedure name, the dispatch protocol, and the response status.
// Passing nil uses the globally registered tracer provider.
func WithTracing(tp trace.TracerProvider) Option {
	return func(b *Bridge) {
		if tp == nil {
			tp = otel.GetTracerProvider()
		}
		b.tracerProvider = tp
	}
}

// WithRequestID echoes the client's X-Request-ID header on the response, or
// generates a fresh UUID when the client sent none. Useful for correlating
// bridge logs with upstream proxies.
func WithRequestID() Option {
	return func(b *Bridge) {
		b.requestID = true
		b.newRequestID = uuid.NewString
	}
}
