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

// Package query provides a high level entry point for executing graph
// queries. It runs the entire query processor on a resolved statement tree:
// the planner, the rewrite rules, the pipeline generator, and the executor.
package query

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ebay/akgraph/config"
	"github.com/ebay/akgraph/graph"
	"github.com/ebay/akgraph/query/ast"
	"github.com/ebay/akgraph/query/dataframe"
	"github.com/ebay/akgraph/query/exec"
	"github.com/ebay/akgraph/query/internal/debug"
	"github.com/ebay/akgraph/query/pipegen"
	"github.com/ebay/akgraph/query/pipeline"
	"github.com/ebay/akgraph/query/plangraph"
	"github.com/ebay/akgraph/query/planner"
	"github.com/ebay/akgraph/util/clocks"
	"github.com/ebay/akgraph/util/graphviz"
	metricsutil "github.com/ebay/akgraph/util/metrics"
	"github.com/ebay/akgraph/util/tracing"
	opentracing "github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// ResultFunc receives each batch of a query's results. The dataframe is only
// valid during the call. Returning an error aborts the query.
type ResultFunc = pipegen.ResultFunc

// FailedPlanFilename is the name of the graphviz file the engine writes
// the plan to when a plan can't be lowered and debugging is enabled.
const FailedPlanFilename = "lastfailedplan.dot"

// Options contains various settings that affect the query processing.
type Options struct {
	// If set diagnostic information about the query processing will be
	// collected into a report. Reports are also collected when the engine's
	// configuration enables them for every query.
	Debug bool
	// By default the report is written to a file in the configured debug
	// directory. If DebugOut is set, the report will be written to that
	// instead.
	DebugOut io.Writer
	// If set, this clock is used for the timing information in the report and
	// for processor stats and the execution timeout. Defaults to clocks.Wall.
	Clock clocks.Source
	// Text is how the query was written. It's only used in the debug report.
	Text string
}

// Database is the graph an Engine runs queries against.
type Database struct {
	View graph.View
	// Writer applies changes from write queries. If nil, write queries fail.
	Writer graph.Writer
	// Catalog backs the graph administration commands. If nil, they fail.
	Catalog graph.Catalog
}

// Result describes a completed query.
type Result struct {
	// Columns names the columns of the result batches.
	Columns []string
	// Rows is the total number of rows delivered.
	Rows int
	// Writes counts the changes the query applied to the graph.
	Writes exec.WriteStats
	// Cycles is the number of scheduling cycles the executor ran.
	Cycles int
}

// Engine provides a high level interface for running queries.
type Engine struct {
	cfg     config.Query
	db      Database
	metrics *queryMetrics
}

// New creates a new Engine. Its metrics are registered with mr; if mr.R is
// nil, they are kept in a private registry.
func New(cfg config.Query, db Database, mr metricsutil.Registry) *Engine {
	return &Engine{
		cfg:     cfg,
		db:      db,
		metrics: newQueryMetrics(mr),
	}
}

// Query executes a query. Results are passed to the 'results' callback as
// they're produced, which may be nil if the caller doesn't need them.
//
// This function blocks until the query has completed and all results have
// been delivered, or an error occurs.
func (e *Engine) Query(ctx context.Context, q *ast.Query, opts Options, results ResultFunc) (*Result, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Query")
	defer span.Finish()
	clock := opts.Clock
	if clock == nil {
		clock = clocks.Wall
	}
	debugging := opts.Debug || e.cfg.DebugReports
	tracker := debug.New(debugging, opts.DebugOut, e.cfg.DebugDir, clock, opts.Text)
	defer tracker.Close()

	stage, _ := tracing.StartSpan(ctx, clock, "plan query", e.metrics.planQueryDurationSeconds)
	plan, err := planner.Generate(q)
	tracker.Planned(plan, err)
	stage.Finish()
	if err != nil {
		log.WithFields(log.Fields{
			"error": err,
		}).Warn("Planner failed")
		return nil, err
	}

	stage, _ = tracing.StartSpan(ctx, clock, "optimize query", e.metrics.optimizeQueryDurationSeconds)
	planner.Optimize(plan)
	tracker.Optimized(plan)
	stage.Finish()

	res := new(Result)
	collect := func(df *dataframe.Dataframe) error {
		n := df.RowCount()
		res.Rows += n
		e.metrics.resultRowsTotal.Add(float64(n))
		if results == nil {
			return nil
		}
		return results(df)
	}
	stage, _ = tracing.StartSpan(ctx, clock, "lower query", e.metrics.lowerQueryDurationSeconds)
	lowered, err := pipegen.Generate(plan, e.db.View.Metadata(), collect)
	stage.Finish()
	if err != nil {
		tracker.Lowered(nil, err)
		e.planFailed(plan, err, debugging)
		return nil, err
	}
	tracker.Lowered(lowered.Pipeline, nil)
	e.metrics.processorsCreatedTotal.Add(float64(lowered.Pipeline.Len()))
	res.Columns = lowered.Columns

	stage, ectx := tracing.StartSpan(ctx, clock, "execute query", e.metrics.executeQueryDurationSeconds)
	execOpts := pipeline.ExecOptions{Clock: clock}
	if e.cfg.Timeout.Duration > 0 {
		execOpts.Deadline = clock.Now().Add(e.cfg.Timeout.Duration)
	}
	executor := pipeline.NewExecutor(lowered.Pipeline, &pipeline.ExecContext{
		Context:   ectx,
		View:      e.db.View,
		Writer:    e.db.Writer,
		Catalog:   e.db.Catalog,
		BatchSize: e.cfg.EffectiveBatchSize(),
	}, execOpts)
	err = executor.Run()
	tracker.Executed(lowered.Pipeline, executor.Cycles(), err)
	stage.Finish()
	res.Cycles = executor.Cycles()
	res.Writes = lowered.WriteStats()
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{
		"fingerprint": fmt.Sprintf("%016x", plan.Fingerprint()),
		"processors":  lowered.Pipeline.Len(),
		"cycles":      res.Cycles,
		"rows":        res.Rows,
	}).Debug("Query completed")
	return res, nil
}

// planFailed logs a plan that couldn't be lowered. When debugging, the plan
// graph is written out too.
func (e *Engine) planFailed(plan *plangraph.Graph, err error, debugging bool) {
	if !debugging {
		log.WithFields(log.Fields{
			"error": err,
		}).Warn("Planner failed")
		return
	}
	dir := e.cfg.DebugDir
	if dir == "" {
		dir = os.TempDir()
	}
	filename := filepath.Join(dir, FailedPlanFilename)
	if dumpErr := graphviz.Create(filename, plan.Graphviz, graphviz.Options{}); dumpErr != nil {
		log.WithFields(log.Fields{
			"error":      err,
			"dump_error": dumpErr,
		}).Warn("Planner failed")
		return
	}
	log.WithFields(log.Fields{
		"error":           err,
		"plan_written_to": filename,
	}).Warn("Planner failed")
}

// Plan returns the optimized plan graph for a query.
func (e *Engine) Plan(q *ast.Query) (*plangraph.Graph, error) {
	plan, err := planner.Generate(q)
	if err != nil {
		return nil, err
	}
	planner.Optimize(plan)
	return plan, nil
}

// Explanation describes how a query would run.
type Explanation struct {
	Fingerprint uint64
	// Plan is the rendering of the optimized plan graph.
	Plan string
	// Pipeline lists the processors the plan lowers to.
	Pipeline string
	Columns  []string
}

func (x *Explanation) String() string {
	return fmt.Sprintf("Plan (fingerprint %016x):\n%v\nPipeline:\n%v", x.Fingerprint, x.Plan, x.Pipeline)
}

// Explain plans and lowers a query without executing it.
func (e *Engine) Explain(q *ast.Query) (*Explanation, error) {
	plan, err := e.Plan(q)
	if err != nil {
		return nil, err
	}
	x := &Explanation{
		Fingerprint: plan.Fingerprint(),
		Plan:        plan.String(),
	}
	lowered, err := pipegen.Generate(plan, e.db.View.Metadata(), nil)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to lower plan:\n%v", x.Plan)
	}
	x.Pipeline = lowered.Pipeline.String()
	x.Columns = lowered.Columns
	return x, nil
}
