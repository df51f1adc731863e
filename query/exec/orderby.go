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

	"github.com/ebay/akgraph/query/dataframe"
	"github.com/ebay/akgraph/query/pipeline"
)

// SortKey is a column to sort by.
type SortKey struct {
	Tag        dataframe.ColumnTag
	Descending bool
}

func (k SortKey) String() string {
	if k.Descending {
		return k.Tag.String() + " DESC"
	}
	return k.Tag.String()
}

// OrderBy sorts its whole input. It emits a single batch once its input is
// exhausted. The sort is stable, and nulls sort after every other value in
// ascending order.
type OrderBy struct {
	unary
	keys []SortKey
	rows *dataframe.Dataframe
}

// NewOrderBy creates an OrderBy processor.
func NewOrderBy(p *pipeline.Pipeline, upstream *pipeline.OutputInterface, keys []SortKey) (*OrderBy, error) {
	o := &OrderBy{keys: keys}
	if err := o.init(p, o, pipeline.BlockInterface, pipeline.BlockInterface, upstream); err != nil {
		return nil, err
	}
	for _, k := range keys {
		if o.in.Dataframe().Get(k.Tag) == nil {
			return nil, pipeline.Errorf("order by: input has no column %v", k.Tag)
		}
	}
	o.forwardShape()
	o.rows = o.in.Dataframe().CloneShape()
	return o, nil
}

// Describe implements pipeline.Processor.
func (o *OrderBy) Describe() string {
	return fmt.Sprintf("OrderBy %v", o.keys)
}

// Reset implements pipeline.Processor.
func (o *OrderBy) Reset() error {
	o.rows.Clear()
	return nil
}

// Execute implements pipeline.Processor.
func (o *OrderBy) Execute() error {
	if o.in.Port.HasData() {
		if err := appendRows(o.rows, o.in.Dataframe()); err != nil {
			return err
		}
		o.in.Port.Consume()
	}
	if o.InputsDone() {
		if err := o.sort(); err != nil {
			return err
		}
		o.Finish()
	}
	return nil
}

func (o *OrderBy) sort() error {
	n := o.rows.RowCount()
	if n == 0 {
		return nil
	}
	keys := make([]dataframe.Column, len(o.keys))
	for i, k := range o.keys {
		col, err := column(o.rows, k.Tag)
		if err != nil {
			return err
		}
		keys[i] = col
	}
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	sort.SliceStable(perm, func(a, b int) bool {
		for i, k := range o.keys {
			c := compareValues(keys[i].ValueAt(perm[a]), keys[i].ValueAt(perm[b]))
			if c == 0 {
				continue
			}
			if k.Descending {
				return c > 0
			}
			return c < 0
		}
		return false
	})
	out := o.out.Dataframe()
	for _, c := range o.rows.Cols() {
		out.Get(c.Tag).Col = c.Col.Gather(perm)
	}
	o.rows.Clear()
	o.out.Port.WriteData()
	return nil
}
