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
	"fmt"
	"time"

	"github.com/ebay/akgraph/query/pipeline"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var fmtr = message.NewPrinter(language.English)

// execSummary returns a table with a row for each processor in the pipeline,
// summarizing what it did, and a footer with the totals.
func execSummary(p *pipeline.Pipeline, cycles int) [][]string {
	rows := [][]string{{"Processor", "Execs", "Rows In", "Batches", "Rows Out", "Took"}}
	var total pipeline.OpStats
	for _, proc := range p.Processors() {
		b := pipeline.BaseOf(proc)
		stats := b.Stats()
		row := append([]string{fmt.Sprintf("#%d %s", b.ID(), proc.Describe())}, opTotals(stats)...)
		rows = append(rows, row)
		total.Executions += stats.Executions
		total.RowsIn += stats.RowsIn
		total.Batches += stats.Batches
		total.RowsOut += stats.RowsOut
		total.Elapsed += stats.Elapsed
	}
	footer := append([]string{fmtr.Sprintf("%d cycles", cycles)}, opTotals(total)...)
	return append(rows, footer)
}

// opTotals returns the cells summarizing a processor's stats.
func opTotals(stats pipeline.OpStats) []string {
	if stats.Executions == 0 {
		return []string{"[not executed]"}
	}
	took := stats.Elapsed.Round(time.Microsecond).String()
	if stats.Executions > 1 {
		avg := (stats.Elapsed / time.Duration(stats.Executions)).Round(time.Microsecond)
		took = fmt.Sprintf("%s (avg %v)", took, avg)
	}
	return []string{
		fmtr.Sprintf("%d", stats.Executions),
		fmtr.Sprintf("%d", stats.RowsIn),
		fmtr.Sprintf("%d", stats.Batches),
		fmtr.Sprintf("%d", stats.RowsOut),
		took,
	}
}
