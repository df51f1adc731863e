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
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ebay/akgraph/config"
	"github.com/ebay/akgraph/graph/memgraph"
	"github.com/ebay/akgraph/query/ast"
	"github.com/ebay/akgraph/query/ast/astyaml"
	"github.com/ebay/akgraph/query/dataframe"
	"github.com/ebay/akgraph/query/pipeline"
	"github.com/ebay/akgraph/query/planner"
	"github.com/ebay/akgraph/util/clocks"
	metricsutil "github.com/ebay/akgraph/util/metrics"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEngine struct {
	*Engine
	graph    *memgraph.Graph
	registry *prometheus.Registry
}

func newTestEngine(t *testing.T, cfg config.Query) *testEngine {
	t.Helper()
	g, err := memgraph.LoadYAMLFile("../graph/memgraph/testdata/people.yaml")
	require.NoError(t, err)
	reg := prometheus.NewRegistry()
	db := Database{View: g, Writer: g, Catalog: memgraph.NewCatalog(t.TempDir())}
	return &testEngine{
		Engine:   New(cfg, db, metricsutil.Registry{R: reg}),
		graph:    g,
		registry: reg,
	}
}

func (e *testEngine) parse(t *testing.T, query string) *ast.Query {
	t.Helper()
	q, err := astyaml.Parse(strings.NewReader(query), e.graph)
	require.NoError(t, err)
	return q
}

// counter returns the value of a counter, named without the namespace prefix.
func (e *testEngine) counter(t *testing.T, name string) float64 {
	t.Helper()
	families, err := e.registry.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() == "akgraph_query_"+name {
			return f.GetMetric()[0].GetCounter().GetValue()
		}
	}
	require.Fail(t, "metric not found", name)
	return 0
}

// observations returns the number of samples a summary has seen.
func (e *testEngine) observations(t *testing.T, name string) uint64 {
	t.Helper()
	families, err := e.registry.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() == "akgraph_query_"+name {
			return f.GetMetric()[0].GetSummary().GetSampleCount()
		}
	}
	require.Fail(t, "metric not found", name)
	return 0
}

// collectRows renders every result row as strings.
func collectRows(rows *[][]string) ResultFunc {
	return func(df *dataframe.Dataframe) error {
		for i := 0; i < df.RowCount(); i++ {
			var row []string
			for _, col := range df.Cols() {
				row = append(row, dataframe.FormatValue(col.Col.ValueAt(i)))
			}
			*rows = append(*rows, row)
		}
		return nil
	}
}

const knowsQuery = `
- match:
    patterns:
      - - node: {var: a, labels: [Person]}
        - edge: {types: [KNOWS]}
        - node: {var: b}
- return:
    items:
      - {expr: {prop: a.name}, as: from}
      - {expr: {prop: b.name}, as: to}
`

func Test_Engine_Query(t *testing.T) {
	e := newTestEngine(t, config.Query{BatchSize: 1})
	var rows [][]string
	res, err := e.Query(context.Background(), e.parse(t, knowsQuery), Options{}, collectRows(&rows))
	require.NoError(t, err)
	assert.Equal(t, []string{"from", "to"}, res.Columns)
	assert.Equal(t, [][]string{{`"Alice"`, `"Bob"`}}, rows)
	assert.Equal(t, 1, res.Rows)
	assert.Zero(t, res.Writes)
	assert.True(t, res.Cycles > 0)

	assert.Equal(t, 1.0, e.counter(t, "result_rows_total"))
	assert.True(t, e.counter(t, "processors_created_total") > 0)
	for _, name := range []string{"planning", "optimize", "lowering", "execute"} {
		assert.Equal(t, uint64(1), e.observations(t, name+"_duration_seconds"), name)
	}

	// Results are still counted without a callback.
	res, err = e.Query(context.Background(), e.parse(t, knowsQuery), Options{}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Rows)
	assert.Equal(t, 2.0, e.counter(t, "result_rows_total"))
}

func Test_Engine_Query_write(t *testing.T) {
	e := newTestEngine(t, config.Query{})
	res, err := e.Query(context.Background(), e.parse(t, `
- create:
    patterns: [[{node: {var: d, labels: [Person], props: {name: {lit: Dave}}}}]]
`), Options{}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Writes.NodesCreated)
	assert.Equal(t, 4, e.graph.NumNodes())
}

func Test_Engine_Query_readOnly(t *testing.T) {
	e := newTestEngine(t, config.Query{})
	e.db.Writer = nil
	_, err := e.Query(context.Background(), e.parse(t, `
- create:
    patterns: [[{node: {var: d, labels: [Person]}}]]
`), Options{}, nil)
	assert.IsType(t, &pipeline.Error{}, err)
	assert.Contains(t, err.Error(), "read-only")
	assert.Equal(t, 3, e.graph.NumNodes())
}

func Test_Engine_Query_admin(t *testing.T) {
	e := newTestEngine(t, config.Query{})
	var rows [][]string
	_, err := e.Query(context.Background(), e.parse(t, "- createGraph: social\n"), Options{}, nil)
	require.NoError(t, err)
	res, err := e.Query(context.Background(), e.parse(t, "- listGraphs: true\n"), Options{}, collectRows(&rows))
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "id", "nodes", "edges"}, res.Columns)
	require.Len(t, rows, 1)
	assert.Equal(t, `"social"`, rows[0][0])
	assert.Equal(t, []string{"0", "0"}, rows[0][2:])
}

func Test_Engine_Query_callbackError(t *testing.T) {
	e := newTestEngine(t, config.Query{})
	_, err := e.Query(context.Background(), e.parse(t, knowsQuery), Options{},
		func(*dataframe.Dataframe) error { return errors.New("client went away") })
	assert.EqualError(t, err, "client went away")
}

func Test_Engine_Query_timeout(t *testing.T) {
	e := newTestEngine(t, config.Query{Timeout: config.Duration{Duration: time.Nanosecond}})
	clock := clocks.NewMock()
	clock.AutoAdvance(time.Second)
	_, err := e.Query(context.Background(), e.parse(t, knowsQuery), Options{Clock: clock}, nil)
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "%v", err)
}

func Test_Engine_Query_canceled(t *testing.T) {
	e := newTestEngine(t, config.Query{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Query(ctx, e.parse(t, knowsQuery), Options{}, nil)
	assert.True(t, errors.Is(err, context.Canceled), "%v", err)
}

func Test_Engine_Query_plannerError(t *testing.T) {
	e := newTestEngine(t, config.Query{})
	_, err := e.Query(context.Background(), &ast.Query{Decls: new(ast.DeclContext)}, Options{}, nil)
	assert.IsType(t, &planner.Error{}, err)
	assert.Equal(t, uint64(1), e.observations(t, "planning_duration_seconds"))
	assert.Equal(t, uint64(0), e.observations(t, "execute_duration_seconds"))
}

func Test_Engine_Query_failedPlanDump(t *testing.T) {
	dir := t.TempDir()
	e := newTestEngine(t, config.Query{DebugDir: dir})
	q := e.parse(t, "- s3Connect: {region: us-east-1}\n")
	var report bytes.Buffer
	_, err := e.Query(context.Background(), q, Options{Debug: true, DebugOut: &report}, nil)
	assert.IsType(t, &pipeline.Error{}, err)
	dot, err := os.ReadFile(filepath.Join(dir, FailedPlanFilename))
	require.NoError(t, err)
	assert.Contains(t, string(dot), "S3Connect")
	assert.Contains(t, report.String(), "\nPipeline:\nError: ")

	// Without debugging, nothing is written.
	require.NoError(t, os.Remove(filepath.Join(dir, FailedPlanFilename)))
	_, err = e.Query(context.Background(), q, Options{}, nil)
	assert.Error(t, err)
	assert.NoFileExists(t, filepath.Join(dir, FailedPlanFilename))
}

func Test_Engine_Query_debugReport(t *testing.T) {
	e := newTestEngine(t, config.Query{})
	var report bytes.Buffer
	_, err := e.Query(context.Background(), e.parse(t, knowsQuery),
		Options{Debug: true, DebugOut: &report, Text: knowsQuery}, nil)
	require.NoError(t, err)
	assert.Contains(t, report.String(), "Query:\n- match:\n")
	assert.Contains(t, report.String(), "\nOptimized Plan:\nFingerprint: ")
	assert.Contains(t, report.String(), "\nQuery Execution Summary:\n")

	// The configuration can turn reports on for every query; they go to
	// files in the debug directory.
	dir := t.TempDir()
	e = newTestEngine(t, config.Query{DebugReports: true, DebugDir: dir})
	_, err = e.Query(context.Background(), e.parse(t, knowsQuery), Options{}, nil)
	require.NoError(t, err)
	files, err := filepath.Glob(filepath.Join(dir, "query_debug_*"))
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func Test_Engine_Explain(t *testing.T) {
	e := newTestEngine(t, config.Query{})
	x, err := e.Explain(e.parse(t, knowsQuery))
	require.NoError(t, err)
	assert.Equal(t, []string{"from", "to"}, x.Columns)
	plan, err := e.Plan(e.parse(t, knowsQuery))
	require.NoError(t, err)
	assert.Equal(t, plan.Fingerprint(), x.Fingerprint)
	assert.Equal(t, plan.String(), x.Plan)
	assert.Contains(t, x.String(), "\nPipeline:\n#0 ")
	assert.Equal(t, 0.0, e.counter(t, "result_rows_total"))

	_, err = e.Explain(e.parse(t, "- s3Connect: {region: us-east-1}\n"))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unable to lower plan")
}
