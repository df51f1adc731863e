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

// Package debug generates a human readable report about the processing of a
// single query: how long each stage took, the plan before and after the
// rewrite rules ran, the pipeline it was lowered to, and what each processor
// did while executing.
package debug

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ebay/akgraph/query/pipeline"
	"github.com/ebay/akgraph/query/plangraph"
	"github.com/ebay/akgraph/util/clocks"
	"github.com/ebay/akgraph/util/table"
	log "github.com/sirupsen/logrus"
)

// timestampFormat is used to format the timestamps written to the report.
const timestampFormat = "2006-01-02 15:04:05.000000 MST"

// Tracker defines points in the query processing sequence. The query Engine
// calls these at the appropriate places in the processing.
type Tracker interface {
	Planned(*plangraph.Graph, error)
	Optimized(*plangraph.Graph)
	Lowered(*pipeline.Pipeline, error)
	Executed(p *pipeline.Pipeline, cycles int, err error)
	Close()
}

// trackerID is used by New() to assign an ID to the query.
var trackerID uint64

// New returns a new Tracker. If 'debug' is false, a no-op Tracker is returned.
// Otherwise the tracker accumulates a query report and writes it to debugOut
// on Close. If debugOut is nil, the report is written to a new file in dir,
// or in $TMPDIR if dir is empty. 'query' is a description of the query for
// the top of the report.
func New(debug bool, debugOut io.Writer, dir string, clock clocks.Source, query string) Tracker {
	if !debug {
		return noopTracker{}
	}
	if clock == nil {
		clock = clocks.Wall
	}
	t := &debugTracker{
		id:    atomic.AddUint64(&trackerID, 1),
		clock: clock,
	}
	if debugOut == nil {
		if dir == "" {
			dir = os.TempDir()
		}
		f, err := os.Create(filepath.Join(dir, fmt.Sprintf("query_debug_%d", t.id)))
		if err != nil {
			log.Warnf("Unable to create query debug file: %v", err)
			return noopTracker{}
		}
		log.Infof("Query Debug Info %d being written to %s", t.id, f.Name())
		t.close = f
		debugOut = f
	}
	t.out = bufio.NewWriter(debugOut)
	t.started = t.clock.Now()
	fmt.Fprintf(&t.report.header, "Started at: %s\n", t.started.UTC().Format(timestampFormat))
	t.report.inputQuery = "Query:\n" + strings.Trim(query, "\n") + "\n"
	return t
}

// debugTracker implements Tracker by building up a report.
type debugTracker struct {
	id        uint64
	clock     clocks.Source
	started   time.Time
	planned   time.Time
	optimized time.Time
	lowered   time.Time
	// out is where the report will be written to.
	out *bufio.Writer
	// close if set will be closed once the report is written.
	close io.Closer
	// The report contains the below sections, in the order you see.
	report struct {
		header     strings.Builder
		inputQuery string
		planned    string
		optimized  string
		pipeline   string
		execution  [][]string
		execErr    string
	}
}

// describePlan renders the plan with its fingerprint. The plan is rendered
// right away since the rewrite rules modify it in place.
func describePlan(plan *plangraph.Graph) string {
	return fmt.Sprintf("Fingerprint: %016x\n%v", plan.Fingerprint(), plan)
}

func (t *debugTracker) Planned(plan *plangraph.Graph, err error) {
	t.planned = t.clock.Now()
	fmt.Fprintf(&t.report.header, "Planning   %v\n", t.planned.Sub(t.started))
	if err != nil {
		t.report.planned = fmt.Sprintf("Error: %v\n", err)
		return
	}
	t.report.planned = describePlan(plan)
}

func (t *debugTracker) Optimized(plan *plangraph.Graph) {
	t.optimized = t.clock.Now()
	fmt.Fprintf(&t.report.header, "Optimizing %v\n", t.optimized.Sub(t.planned))
	t.report.optimized = describePlan(plan)
}

func (t *debugTracker) Lowered(p *pipeline.Pipeline, err error) {
	t.lowered = t.clock.Now()
	fmt.Fprintf(&t.report.header, "Lowering   %v\n", t.lowered.Sub(t.optimized))
	if err != nil {
		t.report.pipeline = fmt.Sprintf("Error: %v\n", err)
		return
	}
	t.report.pipeline = p.String()
}

func (t *debugTracker) Executed(p *pipeline.Pipeline, cycles int, err error) {
	t.report.execution = execSummary(p, cycles)
	if err != nil {
		t.report.execErr = fmt.Sprintf("Error: %v\n", err)
	}
}

func (t *debugTracker) Close() {
	end := t.clock.Now()
	t.out.WriteString(t.report.header.String())
	if !t.lowered.IsZero() {
		fmt.Fprintf(t.out, "Executing  %v\n", end.Sub(t.lowered))
	}
	fmt.Fprintf(t.out, "Query Ended at: %s\n", end.UTC().Format(timestampFormat))
	fmt.Fprintf(t.out, "Total: %v\n\n", end.Sub(t.started))
	t.out.WriteString(t.report.inputQuery)
	if t.report.planned != "" {
		t.out.WriteString("\nPlan:\n")
		t.out.WriteString(t.report.planned)
	}
	if t.report.optimized != "" {
		t.out.WriteString("\nOptimized Plan:\n")
		t.out.WriteString(t.report.optimized)
	}
	if t.report.pipeline != "" {
		t.out.WriteString("\nPipeline:\n")
		t.out.WriteString(t.report.pipeline)
	}
	if t.report.execution != nil {
		t.out.WriteString("\nQuery Execution Summary:\n")
		table.PrettyPrint(t.out, t.report.execution, table.HeaderRow|table.FooterRow)
		t.out.WriteString(t.report.execErr)
	}
	t.out.WriteByte('\n')

	flushErr := t.out.Flush()
	if flushErr != nil {
		log.WithFields(log.Fields{
			"query_id": t.id,
			"error":    flushErr,
		}).Warn("Error writing report for query")
	}
	// even if the flush failed, still try and close the output.
	if t.close != nil {
		closeErr := t.close.Close()
		if closeErr != nil {
			log.WithFields(log.Fields{
				"query_id": t.id,
				"error":    closeErr,
			}).Warn("Error closing report for query")
			return
		}
	}
	if flushErr != nil {
		return
	}
	log.WithField("query_id", t.id).Info("Completed query debug report")
}

// noopTracker implements the Tracker interface, everything is effectively a
// no-op.
type noopTracker struct{}

func (noopTracker) Planned(*plangraph.Graph, error)         {}
func (noopTracker) Optimized(*plangraph.Graph)              {}
func (noopTracker) Lowered(*pipeline.Pipeline, error)       {}
func (noopTracker) Executed(*pipeline.Pipeline, int, error) {}
func (noopTracker) Close()                                  {}
