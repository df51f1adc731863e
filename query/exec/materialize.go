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
	"strings"

	"github.com/ebay/akgraph/query/dataframe"
	"github.com/ebay/akgraph/query/pipeline"
)

// MaterializeStep is one expansion level of a dataframe. The columns of a
// step all have the same number of rows.
type MaterializeStep struct {
	// Indices maps each row of this step to its row in the previous step.
	// It's invalid for the first step.
	Indices dataframe.ColumnTag
	Cols    []dataframe.ColumnTag
}

// MaterializeData describes the layout of a dataframe that flows out of a
// chain of expansions: the columns of the original rows, then for each
// expansion, a column of indices into the previous step and the columns the
// expansion added. The Materialize processor flattens such a dataframe.
type MaterializeData struct {
	Steps []MaterializeStep
	// Pinned is set when the dataframe was produced by a processor that
	// emits flat, self-contained batches, such as Materialize itself or a
	// join. A dataframe that comes straight out of a scan isn't pinned.
	Pinned bool
}

// NewMaterializeData returns the layout of a dataframe with a single step
// holding the given columns.
func NewMaterializeData(pinned bool, cols ...dataframe.ColumnTag) *MaterializeData {
	return &MaterializeData{
		Steps:  []MaterializeStep{{Cols: append([]dataframe.ColumnTag(nil), cols...)}},
		Pinned: pinned,
	}
}

// Clone returns a deep copy, so that the branches of a fork can grow their
// layouts independently.
func (m *MaterializeData) Clone() *MaterializeData {
	res := &MaterializeData{Steps: make([]MaterializeStep, len(m.Steps)), Pinned: m.Pinned}
	for i, s := range m.Steps {
		res.Steps[i] = MaterializeStep{
			Indices: s.Indices,
			Cols:    append([]dataframe.ColumnTag(nil), s.Cols...),
		}
	}
	return res
}

// AddStep records an expansion.
func (m *MaterializeData) AddStep(indices dataframe.ColumnTag, cols ...dataframe.ColumnTag) {
	m.Steps = append(m.Steps, MaterializeStep{
		Indices: indices,
		Cols:    append([]dataframe.ColumnTag(nil), cols...),
	})
}

// AddColumn records a column added to the last step.
func (m *MaterializeData) AddColumn(tag dataframe.ColumnTag) {
	last := &m.Steps[len(m.Steps)-1]
	last.Cols = append(last.Cols, tag)
}

// IsSingleStep returns true if the dataframe is already flat and pinned, in
// which case materializing it again would only copy it.
func (m *MaterializeData) IsSingleStep() bool {
	return m.Pinned && len(m.Steps) == 1
}

// Last returns the last step.
func (m *MaterializeData) Last() *MaterializeStep {
	return &m.Steps[len(m.Steps)-1]
}

// Columns returns the value columns of every step, in step order. Indices
// columns aren't included.
func (m *MaterializeData) Columns() []dataframe.ColumnTag {
	var res []dataframe.ColumnTag
	for _, s := range m.Steps {
		res = append(res, s.Cols...)
	}
	return res
}

// Has returns true if any step holds the column.
func (m *MaterializeData) Has(tag dataframe.ColumnTag) bool {
	return m.stepOf(tag) >= 0
}

// InLastStep returns true if the column belongs to the last step.
func (m *MaterializeData) InLastStep(tag dataframe.ColumnTag) bool {
	return m.stepOf(tag) == len(m.Steps)-1
}

func (m *MaterializeData) stepOf(tag dataframe.ColumnTag) int {
	for i, s := range m.Steps {
		for _, c := range s.Cols {
			if c == tag {
				return i
			}
		}
	}
	return -1
}

func (m *MaterializeData) String() string {
	var b strings.Builder
	for i, s := range m.Steps {
		if i > 0 {
			fmt.Fprintf(&b, " -%v-> ", s.Indices)
		}
		fmt.Fprintf(&b, "%v", s.Cols)
	}
	if m.Pinned {
		b.WriteString(" pinned")
	}
	return b.String()
}

// Materialize flattens a multi-step dataframe into one where every column
// has a row per row of the last step.
type Materialize struct {
	unary
	data *MaterializeData
}

// NewMaterialize creates a Materialize processor for a dataframe with the
// given layout. The processor keeps its own copy of the layout.
func NewMaterialize(p *pipeline.Pipeline, upstream *pipeline.OutputInterface, data *MaterializeData) (*Materialize, error) {
	m := &Materialize{data: data.Clone()}
	if err := m.init(p, m, pipeline.BlockInterface, pipeline.BlockInterface, upstream); err != nil {
		return nil, err
	}
	for _, tag := range m.data.Columns() {
		nc := m.in.Dataframe().Get(tag)
		if nc == nil {
			return nil, pipeline.Errorf("materialize: input has no column %v", tag)
		}
		m.out.Dataframe().AddNew(tag, nc.Name)
	}
	m.out.Stream.Expanded = false
	return m, nil
}

// Data returns the layout the processor flattens.
func (m *Materialize) Data() *MaterializeData {
	return m.data
}

// Describe implements pipeline.Processor.
func (m *Materialize) Describe() string {
	return fmt.Sprintf("Materialize %d steps", len(m.data.Steps))
}

// Execute implements pipeline.Processor.
func (m *Materialize) Execute() error {
	if m.in.Port.HasData() {
		if err := m.flatten(); err != nil {
			return err
		}
		m.in.Port.Consume()
	}
	m.finishIfDone()
	return nil
}

func (m *Materialize) flatten() error {
	in := m.in.Dataframe()
	out := m.out.Dataframe()
	last := len(m.data.Steps) - 1
	// rows[k] maps each output row to its row in step k; nil means the
	// identity, for the last step.
	rows := make([][]int, last+1)
	for k := last; k > 0; k-- {
		indices, err := ids(in, m.data.Steps[k].Indices)
		if err != nil {
			return err
		}
		next := make([]int, 0, indices.Len())
		if rows[k] == nil {
			for _, idx := range indices.Values {
				next = append(next, int(idx))
			}
		} else {
			for _, r := range rows[k] {
				next = append(next, int(indices.Values[r]))
			}
		}
		rows[k-1] = next
	}
	n := -1
	for k, step := range m.data.Steps {
		for _, tag := range step.Cols {
			col, err := column(in, tag)
			if err != nil {
				return err
			}
			if rows[k] != nil {
				col = col.Gather(rows[k])
			}
			out.Get(tag).Col = col
			if k == last && n < 0 {
				n = col.Len()
			}
		}
	}
	if n != 0 {
		m.out.Port.WriteData()
	}
	return nil
}
