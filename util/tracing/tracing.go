// Copyright 2019 eBay Inc.
// Primary authors: Simon Fell, Diego Ongaro,
//                  Raymond Kroeker, and Sathish Kandasamy.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
// https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package tracing assists with reporting OpenTracing spans and the matching
// Prometheus duration metrics.
package tracing

import (
	"context"
	"strings"

	"github.com/ebay/akgraph/util/clocks"
	opentracing "github.com/opentracing/opentracing-go"
	"github.com/prometheus/client_golang/prometheus"
)

// Metric is satisfied by prometheus.Summary and prometheus.Histogram.
type Metric interface {
	prometheus.Metric
	Observe(float64)
}

// A Span wraps an opentracing span. When finished, the span's duration (in
// seconds) is also observed into the metric given to StartSpan.
type Span struct {
	opentracing.Span
	clock   clocks.Source
	started clocks.Time
	metric  Metric
}

// StartSpan starts a child span of any span found in ctx, and returns the span
// along with a context containing it. Metric may be nil. Callers must call
// Finish on the returned span.
func StartSpan(ctx context.Context, clock clocks.Source, operationName string, metric Metric) (*Span, context.Context) {
	if clock == nil {
		clock = clocks.Wall
	}
	span, ctx := opentracing.StartSpanFromContext(ctx, operationName)
	if metric != nil {
		span.SetTag("metric", stringableMetric{metric})
	}
	return &Span{
		Span:    span,
		clock:   clock,
		started: clock.Now(),
		metric:  metric,
	}, ctx
}

// Finish ends the span and updates the metric.
func (s *Span) Finish() {
	if s.metric != nil {
		s.metric.Observe(s.clock.Now().Sub(s.started).Seconds())
	}
	s.Span.Finish()
}

// stringableMetric gives the Prometheus metrics a better stringer.
type stringableMetric struct {
	Metric
}

// String returns the fully-qualified name of the metric. This ends up being
// reported in the OpenTracing tag named "metric".
func (metric stringableMetric) String() string {
	// Desc doesn't seem to have a way to extract the name.
	// Its Stringer outputs like this:
	//   Desc{fqName: %q, help: %q, constLabels: {%s}, variableLabels: %v}
	s := metric.Desc().String()
	s = strings.TrimPrefix(s, `Desc{fqName: "`)
	i := strings.IndexByte(s, '"')
	if i < 0 {
		return ""
	}
	return s[:i]
}
