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
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// metricsRecorder holds the Prometheus collectors for dispatch outcomes.
// Labels are the resolved procedure wire name (or "_unmatched") and the
// response status code; raw request paths are never used as labels to keep
// cardinality bounded.
type metricsRecorder struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// newMetricsRecorder registers the bridge metrics with the given registerer.
func newMetricsRecorder(reg prometheus.Registerer) *metricsRecorder {
	factory := promauto.With(reg)
	return &metricsRecorder{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rpcbridge",
			Name:      "requests_total",
			Help:      "Total number of dispatched requests by procedure and status code.",
		}, []string{"procedure", "code"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "rpcbridge",
			Name:      "request_duration_seconds",
			Help:      "Request handling duration in seconds by procedure.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"procedure"}),
	}
}

// observe records the outcome of one request.
func (m *metricsRecorder) observe(procedure string, status int, elapsed time.Duration) {
	m.requests.WithLabelValues(procedure, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(procedure).Observe(elapsed.Seconds())
}

// recordSpan annotates the dispatch span with the resolved procedure, the
// protocol that reached it, and the response status.
func recordSpan(span trace.Span, procedure string, routed bool, status int) {
	span.SetAttributes(
		attribute.String("rpc.method", procedure),
		attribute.Bool("rpc.routed", routed),
		attribute.Int("http.response.status_code", status),
	)
}
