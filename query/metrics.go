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

package query

import (
	metricsutil "github.com/ebay/akgraph/util/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// DefaultNamespace prefixes the metric names when the registry doesn't set a
// namespace.
const DefaultNamespace = "akgraph"

type queryMetrics struct {
	planQueryDurationSeconds     prometheus.Summary
	optimizeQueryDurationSeconds prometheus.Summary
	lowerQueryDurationSeconds    prometheus.Summary
	executeQueryDurationSeconds  prometheus.Summary
	processorsCreatedTotal       prometheus.Counter
	resultRowsTotal              prometheus.Counter
}

func newQueryMetrics(mr metricsutil.Registry) *queryMetrics {
	if mr.R == nil {
		mr.R = prometheus.NewRegistry()
	}
	if mr.Namespace == "" {
		mr.Namespace = DefaultNamespace
	}
	return &queryMetrics{
		planQueryDurationSeconds: mr.NewSummary(prometheus.SummaryOpts{
			Subsystem: "query",
			Name:      "planning_duration_seconds",
			Help:      `The time it takes to build a plan graph from a query.`,
		}),
		optimizeQueryDurationSeconds: mr.NewSummary(prometheus.SummaryOpts{
			Subsystem: "query",
			Name:      "optimize_duration_seconds",
			Help: `The time it takes to apply the rewrite rules to a plan graph.

The rules run until none of them changes the plan, so this grows with the size
of the plan rather than with the data.
`,
		}),
		lowerQueryDurationSeconds: mr.NewSummary(prometheus.SummaryOpts{
			Subsystem: "query",
			Name:      "lowering_duration_seconds",
			Help:      `The time it takes to generate the pipeline of processors for a plan.`,
		}),
		executeQueryDurationSeconds: mr.NewSummary(prometheus.SummaryOpts{
			Subsystem: "query",
			Name:      "execute_duration_seconds",
			Help: `The time it takes to run a query's pipeline.

This happens after lowering, and it involves reading the graph and delivering
every batch of results to the caller.
`,
		}),
		processorsCreatedTotal: mr.NewCounter(prometheus.CounterOpts{
			Subsystem: "query",
			Name:      "processors_created_total",
			Help:      `The number of pipeline processors generated across all queries.`,
		}),
		resultRowsTotal: mr.NewCounter(prometheus.CounterOpts{
			Subsystem: "query",
			Name:      "result_rows_total",
			Help:      `The number of result rows delivered to callers across all queries.`,
		}),
	}
}
