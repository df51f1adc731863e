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

package exec

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ebay/akgraph/graph"
	"github.com/ebay/akgraph/query/dataframe"
	"github.com/ebay/akgraph/query/pipeline"
)

// ProcedureField maps a column of a procedure's result to an output column.
type ProcedureField struct {
	// Index is the position of the column in the procedure's result.
	Index int
	Tag   dataframe.ColumnTag
	Name  string
}

// procedureRows returns the rows of a built-in procedure, as values of the
// column kinds listed in procedureKinds.
var procedureRows = map[string]func(md graph.Metadata) [][]interface{}{
	"db.labels": func(md graph.Metadata) [][]interface{} {
		var rows [][]interface{}
		for name, id := range md.Labels() {
			rows = append(rows, []interface{}{int64(id), name})
		}
		return rows
	},
	"db.labelsets": func(md graph.Metadata) [][]interface{} {
		names := make(map[graph.LabelID]string)
		for name, id := range md.Labels() {
			names[id] = name
		}
		var rows [][]interface{}
		for _, set := range md.LabelSets() {
			for _, l := range set.Labels {
				rows = append(rows, []interface{}{int64(set.ID), names[l]})
			}
		}
		return rows
	},
	"db.propertytypes": func(md graph.Metadata) [][]interface{} {
		var rows [][]interface{}
		for _, pt := range md.PropTypes() {
			rows = append(rows, []interface{}{int64(pt.ID), pt.Name, pt.Kind.String()})
		}
		return rows
	},
	"db.edgetypes": func(md graph.Metadata) [][]interface{} {
		var rows [][]interface{}
		for name, id := range md.EdgeTypes() {
			rows = append(rows, []interface{}{int64(id), name})
		}
		return rows
	},
}

// DatabaseProcedure emits the rows of a procedure that describes the graph's
// metadata. Rows are sorted by their first column, then their second.
type DatabaseProcedure struct {
	pipeline.Base
	out    *pipeline.OutputInterface
	name   string
	kinds  []dataframe.Kind
	fields []ProcedureField
	rows   func(graph.Metadata) [][]interface{}
	md     graph.Metadata
}

// NewDatabaseProcedure creates a DatabaseProcedure source. kinds lists the
// kinds of every column of the procedure's result.
func NewDatabaseProcedure(p *pipeline.Pipeline, name string, kinds []dataframe.Kind, fields []ProcedureField) (*DatabaseProcedure, error) {
	rows, ok := procedureRows[strings.ToLower(name)]
	if !ok {
		return nil, pipeline.Errorf("unknown procedure %s", name)
	}
	d := &DatabaseProcedure{name: name, kinds: kinds, fields: fields, rows: rows}
	p.Add(d)
	d.out = &pipeline.OutputInterface{Kind: pipeline.BlockInterface, Port: p.NewOutput(d)}
	for _, f := range fields {
		if f.Index < 0 || f.Index >= len(kinds) {
			return nil, pipeline.Errorf("procedure %s has no column %d", name, f.Index)
		}
		d.out.Dataframe().AddNew(f.Tag, f.Name)
	}
	return d, nil
}

// Output returns the procedure's output interface.
func (d *DatabaseProcedure) Output() *pipeline.OutputInterface {
	return d.out
}

// Describe implements pipeline.Processor.
func (d *DatabaseProcedure) Describe() string {
	names := make([]string, len(d.fields))
	for i, f := range d.fields {
		names[i] = f.Name
	}
	return fmt.Sprintf("DatabaseProcedure %s yield %s", d.name, strings.Join(names, ", "))
}

// Prepare implements pipeline.Processor.
func (d *DatabaseProcedure) Prepare(ctx *pipeline.ExecContext) error {
	if ctx.View == nil {
		return pipeline.Errorf("no graph to describe")
	}
	d.md = ctx.View.Metadata()
	return nil
}

// Execute implements pipeline.Processor.
func (d *DatabaseProcedure) Execute() error {
	rows := d.rows(d.md)
	sort.SliceStable(rows, func(i, j int) bool {
		for k := 0; k < 2 && k < len(rows[i]); k++ {
			if c := compareValues(rows[i][k], rows[j][k]); c != 0 {
				return c < 0
			}
		}
		return false
	})
	if len(rows) > 0 {
		out := d.out.Dataframe()
		for _, f := range d.fields {
			values := make([]interface{}, len(rows))
			for i, row := range rows {
				values[i] = row[f.Index]
			}
			col, err := buildColumn(d.kinds[f.Index], values)
			if err != nil {
				return err
			}
			out.Get(f.Tag).Col = col
		}
		if len(d.fields) > 0 {
			d.out.Port.WriteData()
		}
	}
	d.Finish()
	return nil
}
