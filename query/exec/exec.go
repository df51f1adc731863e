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

// Package exec holds the physical operators of a query pipeline. Each
// constructor creates one processor, adds it to a pipeline, and connects it
// to the output interface of its upstream processor. Constructors return a
// *pipeline.Error if the upstream interface can't feed the new processor.
package exec

import (
	"fmt"

	"github.com/ebay/akgraph/query/dataframe"
	"github.com/ebay/akgraph/query/pipeline"
)

// unary is embedded by processors with a single input and a single output.
type unary struct {
	pipeline.Base
	in  *pipeline.InputInterface
	out *pipeline.OutputInterface
}

// init adds the processor to the pipeline, creates its ports, and connects
// upstream to its input. The output initially carries the input's stream and
// no columns.
func (u *unary) init(p *pipeline.Pipeline, self pipeline.Processor,
	inKind, outKind pipeline.InterfaceKind, upstream *pipeline.OutputInterface) error {
	p.Add(self)
	u.in = &pipeline.InputInterface{Kind: inKind, Port: p.NewInput(self)}
	if err := pipeline.Connect(upstream, u.in); err != nil {
		return err
	}
	u.out = &pipeline.OutputInterface{Kind: outKind, Port: p.NewOutput(self), Stream: u.in.Stream}
	return nil
}

// Output returns the processor's output interface.
func (u *unary) Output() *pipeline.OutputInterface {
	return u.out
}

// Input returns the processor's input interface.
func (u *unary) Input() *pipeline.InputInterface {
	return u.in
}

// forwardShape adds every column of the input to the output.
func (u *unary) forwardShape() {
	for _, c := range u.in.Dataframe().Cols() {
		u.out.Dataframe().AddNew(c.Tag, c.Name)
	}
}

// finishIfDone finishes the processor once its input is exhausted.
func (u *unary) finishIfDone() {
	if u.InputsDone() {
		u.Finish()
	}
}

// column returns the values of a column of df. It returns a *pipeline.Error
// if the column is missing or was never written.
func column(df *dataframe.Dataframe, tag dataframe.ColumnTag) (dataframe.Column, error) {
	nc := df.Get(tag)
	if nc == nil {
		return nil, pipeline.Errorf("dataframe %v has no column %v", df.Tags(), tag)
	}
	if nc.Col == nil {
		return nil, pipeline.Errorf("column %v (%s) has no values", tag, nc.Name)
	}
	return nc.Col, nil
}

// ids returns a column of entity IDs.
func ids(df *dataframe.Dataframe, tag dataframe.ColumnTag) (*dataframe.UInt64s, error) {
	col, err := column(df, tag)
	if err != nil {
		return nil, err
	}
	res, ok := col.(*dataframe.UInt64s)
	if !ok {
		return nil, pipeline.Errorf("column %v holds %v values, not IDs", tag, col.Kind())
	}
	return res, nil
}

// broadcast expands a constant column to n rows.
func broadcast(col dataframe.Column, n int) dataframe.Column {
	if col.IsConst() {
		return col.Tile(n)
	}
	return col
}

// appendRows appends the rows of src to dst, matching columns by tag. A
// column of dst without values yet takes src's values.
func appendRows(dst, src *dataframe.Dataframe) error {
	for _, c := range dst.Cols() {
		from, err := column(src, c.Tag)
		if err != nil {
			return err
		}
		if c.Col == nil {
			c.Col = from
			continue
		}
		joined, err := dataframe.Concat(c.Col, from)
		if err != nil {
			return pipeline.Errorf("column %v: %v", c.Tag, err)
		}
		c.Col = joined
	}
	return nil
}

// buildColumn returns a column of the given kind holding the values, which
// are nil for null or of the kind's Go type.
func buildColumn(kind dataframe.Kind, values []interface{}) (dataframe.Column, error) {
	switch kind {
	case dataframe.KindUInt64:
		return buildVector[uint64](values)
	case dataframe.KindInt64:
		return buildVector[int64](values)
	case dataframe.KindFloat64:
		return buildVector[float64](values)
	case dataframe.KindString:
		return buildVector[string](values)
	case dataframe.KindBool:
		return buildVector[bool](values)
	}
	return nil, pipeline.Fatalf("can't build a column of kind %v", kind)
}

func buildVector[T dataframe.Element](values []interface{}) (dataframe.Column, error) {
	res := make([]T, len(values))
	valid := make([]bool, len(values))
	for i, v := range values {
		if v == nil {
			continue
		}
		x, ok := v.(T)
		if !ok {
			var zero T
			return nil, pipeline.Errorf("value %v (%T) doesn't fit a %T column", v, v, zero)
		}
		res[i] = x
		valid[i] = true
	}
	return dataframe.NewNullable(res, valid), nil
}

// compareValues orders two column values of the same kind. Null sorts after
// every other value.
func compareValues(a, b interface{}) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	switch x := a.(type) {
	case uint64:
		return cmpOrdered(x, b.(uint64))
	case int64:
		return cmpOrdered(x, b.(int64))
	case float64:
		return cmpOrdered(x, b.(float64))
	case string:
		return cmpOrdered(x, b.(string))
	case bool:
		y := b.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		}
		return 1
	}
	panic(fmt.Sprintf("compareValues: unexpected type %T", a))
}

func cmpOrdered[T uint64 | int64 | float64 | string](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
