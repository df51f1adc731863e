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

// Package metrics aids in defining Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// DefaultObjectives are the quantiles tracked by summaries that don't specify
// their own.
var DefaultObjectives = map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.95: 0.005, 0.99: 0.001}

// Registry encapsulates metrics creation and registration. All metrics created
// through a Registry share its Namespace.
type Registry struct {
	R         prometheus.Registerer
	Namespace string
}

// NewCounter returns a new created and registered Prometheus Counter.
func (mr Registry) NewCounter(c prometheus.CounterOpts) prometheus.Counter {
	if c.Namespace == "" {
		c.Namespace = mr.Namespace
	}
	pm := prometheus.NewCounter(c)
	mr.R.MustRegister(pm)
	return pm
}

// NewSummary returns a new and registered Prometheus Summary. If no objectives
// are given, DefaultObjectives is used.
func (mr Registry) NewSummary(s prometheus.SummaryOpts) prometheus.Summary {
	if s.Namespace == "" {
		s.Namespace = mr.Namespace
	}
	if s.Objectives == nil {
		s.Objectives = DefaultObjectives
	}
	pm := prometheus.NewSummary(s)
	mr.R.MustRegister(pm)
	return pm
}
