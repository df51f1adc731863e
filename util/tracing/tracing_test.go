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

package tracing

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/ebay/akgraph/util/clocks"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
)

// Used in Test_StartSpan.
type recordingMetric struct {
	// A hack to make recordingMetric satisfy the Metric interface.
	prometheus.Metric
	// A log of Observe calls.
	values []float64
}

func (metric *recordingMetric) Observe(value float64) {
	metric.values = append(metric.values, value)
}

func Test_StartSpan(t *testing.T) {
	assert := assert.New(t)
	clock := clocks.NewMock()
	metric := new(recordingMetric)
	for i := 1; i <= 3; i++ {
		span, ctx := StartSpan(context.Background(), clock, t.Name(), metric)
		assert.NotNil(ctx)
		clock.Advance(time.Duration(i) * time.Second)
		span.Finish()
	}
	assert.Equal([]float64{1, 2, 3}, metric.values)
}

func Test_StartSpan_nilMetric(t *testing.T) {
	span, _ := StartSpan(context.Background(), nil, t.Name(), nil)
	assert.NotPanics(t, span.Finish)
}

func Test_stringableMetric(t *testing.T) {
	metric := prometheus.NewSummary(prometheus.SummaryOpts{
		Namespace:  "akgraph",
		Subsystem:  "query",
		Name:       "plan_duration_seconds",
		Help:       "The time it takes to plan a query.",
		Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01},
	})
	stringable := stringableMetric{metric}
	assert.Equal(t, "akgraph_query_plan_duration_seconds", fmt.Sprint(stringable))
}
