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

package debug

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ebay/akgraph/graph/memgraph"
	"github.com/ebay/akgraph/query/ast/astyaml"
	"github.com/ebay/akgraph/query/pipegen"
	"github.com/ebay/akgraph/query/pipeline"
	"github.com/ebay/akgraph/query/planner"
	"github.com/ebay/akgraph/util/clocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Tracker_noop(t *testing.T) {
	tracker := New(false, nil, "", nil, "q")
	assert.Equal(t, noopTracker{}, tracker)
	tracker.Planned(nil, errors.New("boom"))
	tracker.Close()
}

func Test_Tracker_plannerError(t *testing.T) {
	clock := clocks.NewMock()
	clock.AutoAdvance(time.Millisecond)
	var out strings.Builder
	tracker := New(true, &out, "", clock, "q")
	tracker.Planned(nil, errors.New("boom"))
	tracker.Close()
	assert.Equal(t, `
Started at: 1970-01-01 00:00:00.000000 UTC
Planning   1ms
Query Ended at: 1970-01-01 00:00:00.002000 UTC
Total: 2ms

Query:
q

Plan:
Error: boom

`, "\n"+out.String())
}

func Test_Tracker_report(t *testing.T) {
	g, err := memgraph.LoadYAMLFile("../../../graph/memgraph/testdata/people.yaml")
	require.NoError(t, err)
	const query = `
- match:
    patterns: [[{node: {var: a, labels: [Person]}}]]
- return:
    items: [{expr: {func: count}}]
`
	clock := clocks.NewMock()
	clock.AutoAdvance(time.Millisecond)
	var out strings.Builder
	tracker := New(true, &out, "", clock, query)

	q, err := astyaml.Parse(strings.NewReader(query), g)
	require.NoError(t, err)
	plan, err := planner.Generate(q)
	require.NoError(t, err)
	tracker.Planned(plan, nil)
	planner.Optimize(plan)
	tracker.Optimized(plan)
	lowered, err := pipegen.Generate(plan, g, nil)
	tracker.Lowered(lowered.Pipeline, err)
	require.NoError(t, err)
	e := pipeline.NewExecutor(lowered.Pipeline, &pipeline.ExecContext{View: g},
		pipeline.ExecOptions{Clock: clocks.NewMock()})
	err = e.Run()
	tracker.Executed(lowered.Pipeline, e.Cycles(), err)
	require.NoError(t, err)
	tracker.Close()

	report := out.String()
	assert.True(t, strings.HasPrefix(report, `Started at: 1970-01-01 00:00:00.000000 UTC
Planning   1ms
Optimizing 1ms
Lowering   1ms
Executing  1ms
Query Ended at: 1970-01-01 00:00:00.004000 UTC
Total: 4ms

Query:
- match:
`), report)
	assert.Contains(t, report, "\nPlan:\nFingerprint: ")
	assert.Contains(t, report, "\nOptimized Plan:\nFingerprint: ")
	assert.Contains(t, report, "\nPipeline:\n#0 ")
	assert.Contains(t, report, "\nQuery Execution Summary:\n")
	assert.Contains(t, report, "| Execs | Rows In | Batches | Rows Out |")
	assert.Contains(t, report, " Count ")
	assert.NotContains(t, report, "[not executed]")
	assert.NotContains(t, report, "Error:")
}
