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

	"github.com/cespare/xxhash/v2"
	"github.com/ebay/akgraph/query/dataframe"
	"github.com/ebay/akgraph/query/pipeline"
)

// AggFunc is an aggregate function.
type AggFunc uint8

// Aggregate functions.
const (
	AggCount AggFunc = iota + 1
	AggSum
	AggMin
	AggMax
	AggAvg
)

var aggNames = map[AggFunc]string{
	AggCount: "count",
	AggSum:   "sum",
	AggMin:   "min",
	AggMax:   "max",
	AggAvg:   "avg",
}

func (f AggFunc) String() string {
	if n, ok := aggNames[f]; ok {
		return n
	}
	return fmt.Sprintf("AggFunc(%d)", uint8(f))
}

// ParseAggFunc returns the aggregate function with the given
// case-insensitive name.
func ParseAggFunc(name string) (AggFunc, error) {
	lower := strings.ToLower(name)
	for f, n := range aggNames {
		if n == lower {
			return f, nil
		}
	}
	return 0, pipeline.Errorf("%s is not an aggregate function", name)
}

// AggregateItem is one aggregate computed by an Aggregate processor.
type AggregateItem struct {
	Func AggFunc
	// Arg is the column to aggregate. It's invalid for count(*).
	Arg dataframe.ColumnTag
	// Result is the output column, of the given Kind.
	Result dataframe.ColumnTag
	Kind   dataframe.Kind
	Name   string
}

func (item AggregateItem) String() string {
	if !item.Arg.Valid() {
		return fmt.Sprintf("%v=%v(*)", item.Result, item.Func)
	}
	return fmt.Sprintf("%v=%v(%v)", item.Result, item.Func, item.Arg)
}

// accumulator folds the values of one aggregate in one group.
type accumulator struct {
	count int64
	sumI  int64
	sumF  float64
	float bool
	best  interface{}
}

func (a *accumulator) add(f AggFunc, v interface{}) {
	if v == nil {
		return
	}
	switch f {
	case AggCount:
		a.count++
	case AggSum, AggAvg:
		a.count++
		switch x := v.(type) {
		case int64:
			a.sumI += x
		case uint64:
			a.sumI += int64(x)
		case float64:
			a.sumF += x
			a.float = true
		}
	case AggMin:
		if a.best == nil || compareValues(v, a.best) < 0 {
			a.best = v
		}
	case AggMax:
		if a.best == nil || compareValues(v, a.best) > 0 {
			a.best = v
		}
	}
}

func (a *accumulator) result(item AggregateItem) interface{} {
	switch item.Func {
	case AggCount:
		return a.count
	case AggSum:
		if item.Kind == dataframe.KindFloat64 {
			return a.sumF + float64(a.sumI)
		}
		return a.sumI
	case AggAvg:
		if a.count == 0 {
			return nil
		}
		return (a.sumF + float64(a.sumI)) / float64(a.count)
	}
	return a.best
}

type group struct {
	key  []interface{}
	accs []accumulator
}

// Aggregate groups its input by some columns and computes aggregates over
// each group. It emits a single batch once its input is exhausted: the group
// columns followed by the aggregate columns. Without group columns, it emits
// exactly one row, even for an empty input. Rows whose group key holds a
// null form their own group, like any other value.
type Aggregate struct {
	unary
	groupBy  []dataframe.ColumnTag
	items    []AggregateItem
	groups   []*group
	index    map[uint64][]int
	keyKinds []dataframe.Kind
	digest   *xxhash.Digest
}

// NewAggregate creates an Aggregate processor.
func NewAggregate(p *pipeline.Pipeline, upstream *pipeline.OutputInterface,
	groupBy []dataframe.ColumnTag, items []AggregateItem) (*Aggregate, error) {
	a := &Aggregate{groupBy: groupBy, items: items, digest: xxhash.New()}
	if err := a.init(p, a, pipeline.BlockInterface, pipeline.BlockInterface, upstream); err != nil {
		return nil, err
	}
	a.out.Stream = pipeline.EntityStream{}
	in, out := a.in.Dataframe(), a.out.Dataframe()
	for _, tag := range groupBy {
		nc := in.Get(tag)
		if nc == nil {
			return nil, pipeline.Errorf("aggregate: input has no group column %v", tag)
		}
		out.AddNew(tag, nc.Name)
	}
	for _, item := range items {
		if item.Arg.Valid() && in.Get(item.Arg) == nil {
			return nil, pipeline.Errorf("aggregate: input has no column %v for %v", item.Arg, item)
		}
		out.AddNew(item.Result, item.Name)
	}
	a.clear()
	return a, nil
}

func (a *Aggregate) clear() {
	a.groups = nil
	a.index = make(map[uint64][]int)
	a.keyKinds = make([]dataframe.Kind, len(a.groupBy))
	if len(a.groupBy) == 0 {
		a.groups = []*group{{accs: make([]accumulator, len(a.items))}}
	}
}

// Describe implements pipeline.Processor.
func (a *Aggregate) Describe() string {
	return fmt.Sprintf("Aggregate %v group by %v", a.items, a.groupBy)
}

// Reset implements pipeline.Processor.
func (a *Aggregate) Reset() error {
	a.clear()
	return nil
}

// Execute implements pipeline.Processor.
func (a *Aggregate) Execute() error {
	if a.in.Port.HasData() {
		if err := a.accumulate(a.in.Dataframe()); err != nil {
			return err
		}
		a.in.Port.Consume()
	}
	if a.InputsDone() {
		if err := a.emit(); err != nil {
			return err
		}
		a.Finish()
	}
	return nil
}

func (a *Aggregate) accumulate(in *dataframe.Dataframe) error {
	keys := make([]dataframe.Column, len(a.groupBy))
	for i, tag := range a.groupBy {
		col, err := column(in, tag)
		if err != nil {
			return err
		}
		keys[i] = col
		a.keyKinds[i] = col.Kind()
	}
	args := make([]dataframe.Column, len(a.items))
	for i, item := range a.items {
		if item.Arg.Valid() {
			col, err := column(in, item.Arg)
			if err != nil {
				return err
			}
			args[i] = col
		}
	}
	rows := in.RowCount()
	for row := 0; row < rows; row++ {
		g := a.groupOf(keys, row)
		for i, item := range a.items {
			if args[i] == nil {
				g.accs[i].count++
				continue
			}
			g.accs[i].add(item.Func, args[i].ValueAt(row))
		}
	}
	return nil
}

func (a *Aggregate) groupOf(keys []dataframe.Column, row int) *group {
	if len(keys) == 0 {
		return a.groups[0]
	}
	key := make([]interface{}, len(keys))
	a.digest.Reset()
	for i, col := range keys {
		key[i] = col.ValueAt(row)
		if key[i] == nil {
			a.digest.WriteString("\x00null")
			continue
		}
		hashValue(a.digest, key[i])
	}
	h := a.digest.Sum64()
	for _, idx := range a.index[h] {
		if sameKey(a.groups[idx].key, key) {
			return a.groups[idx]
		}
	}
	g := &group{key: key, accs: make([]accumulator, len(a.items))}
	a.index[h] = append(a.index[h], len(a.groups))
	a.groups = append(a.groups, g)
	return g
}

func sameKey(a, b []interface{}) bool {
	for i := range a {
		if compareValues(a[i], b[i]) != 0 {
			return false
		}
	}
	return true
}

func (a *Aggregate) emit() error {
	if len(a.groups) == 0 {
		return nil
	}
	out := a.out.Dataframe()
	for i, tag := range a.groupBy {
		values := make([]interface{}, len(a.groups))
		for j, g := range a.groups {
			values[j] = g.key[i]
		}
		col, err := buildColumn(a.keyKinds[i], values)
		if err != nil {
			return err
		}
		out.Get(tag).Col = col
	}
	for i, item := range a.items {
		values := make([]interface{}, len(a.groups))
		for j, g := range a.groups {
			values[j] = g.accs[i].result(item)
		}
		col, err := buildColumn(item.Kind, values)
		if err != nil {
			return err
		}
		out.Get(item.Result).Col = col
	}
	a.out.Port.WriteData()
	return nil
}

// Count counts the rows of its input. It emits a single value once its input
// is exhausted.
type Count struct {
	unary
	count int64
}

// NewCount creates a Count processor.
func NewCount(p *pipeline.Pipeline, upstream *pipeline.OutputInterface, name string) (*Count, error) {
	c := &Count{}
	if err := c.init(p, c, pipeline.BlockInterface, pipeline.ValueInterface, upstream); err != nil {
		return nil, err
	}
	c.out.Stream = pipeline.EntityStream{}
	c.out.Values = p.NewTag()
	c.out.Dataframe().AddNew(c.out.Values, name)
	return c, nil
}

// Result returns the tag of the count column.
func (c *Count) Result() dataframe.ColumnTag {
	return c.out.Values
}

// Describe implements pipeline.Processor.
func (c *Count) Describe() string {
	return "Count"
}

// Reset implements pipeline.Processor.
func (c *Count) Reset() error {
	c.count = 0
	return nil
}

// Execute implements pipeline.Processor.
func (c *Count) Execute() error {
	if c.in.Port.HasData() {
		c.count += int64(c.in.Dataframe().RowCount())
		c.in.Port.Consume()
	}
	if c.InputsDone() {
		c.out.Dataframe().Get(c.out.Values).Col = dataframe.NewVector(c.count)
		c.out.Port.WriteData()
		c.Finish()
	}
	return nil
}
