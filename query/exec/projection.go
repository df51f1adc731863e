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

	"github.com/ebay/akgraph/query/dataframe"
	"github.com/ebay/akgraph/query/pipeline"
)

// Projection renames and reorders columns. Each output column refers to the
// values of an input column; nothing is copied.
type Projection struct {
	unary
	items []ProjectionItem
}

// ProjectionItem maps the input column From to the output column To.
type ProjectionItem struct {
	From dataframe.ColumnTag
	To   dataframe.ColumnTag
	Name string
}

// NewProjection creates a Projection processor. An item's To tag may equal
// its From tag. The output stream is kept only if its columns survive.
func NewProjection(p *pipeline.Pipeline, upstream *pipeline.OutputInterface, items []ProjectionItem) (*Projection, error) {
	pr := &Projection{items: items}
	if err := pr.init(p, pr, pipeline.BlockInterface, pipeline.BlockInterface, upstream); err != nil {
		return nil, err
	}
	out := pr.out.Dataframe()
	renamed := make(map[dataframe.ColumnTag]dataframe.ColumnTag, len(items))
	for _, item := range items {
		if pr.in.Dataframe().Get(item.From) == nil {
			return nil, pipeline.Errorf("projection: input has no column %v", item.From)
		}
		if out.Get(item.To) != nil {
			return nil, pipeline.Errorf("projection: column %v produced twice", item.To)
		}
		out.AddNew(item.To, item.Name)
		if _, ok := renamed[item.From]; !ok {
			renamed[item.From] = item.To
		}
	}
	s := pr.in.Stream
	switch s.Kind {
	case pipeline.NodeStream:
		if to, ok := renamed[s.NodeIDs]; ok {
			pr.out.Stream = pipeline.NodeStreamOf(to)
		} else {
			pr.out.Stream = pipeline.EntityStream{}
		}
	case pipeline.EdgeStream:
		e, et, o := renamed[s.EdgeIDs], renamed[s.EdgeTypes], renamed[s.OtherIDs]
		if e.Valid() && et.Valid() && o.Valid() {
			pr.out.Stream = pipeline.EdgeStreamOf(e, et, o)
		} else {
			pr.out.Stream = pipeline.EntityStream{}
		}
	}
	return pr, nil
}

// Items returns the projected columns.
func (pr *Projection) Items() []ProjectionItem {
	return pr.items
}

// Describe implements pipeline.Processor.
func (pr *Projection) Describe() string {
	names := make([]string, len(pr.items))
	for i, item := range pr.items {
		names[i] = fmt.Sprintf("%v->%v %s", item.From, item.To, item.Name)
	}
	return fmt.Sprintf("Projection %v", names)
}

// Execute implements pipeline.Processor.
func (pr *Projection) Execute() error {
	if pr.in.Port.HasData() {
		in := pr.in.Dataframe()
		out := pr.out.Dataframe()
		for _, item := range pr.items {
			col, err := column(in, item.From)
			if err != nil {
				return err
			}
			out.Get(item.To).Col = col
		}
		pr.out.Port.WriteData()
		pr.in.Port.Consume()
	}
	pr.finishIfDone()
	return nil
}

// Lambda calls a function with every batch of its input. It's the sink of a
// query pipeline, handing results to the caller.
type Lambda struct {
	pipeline.Base
	in   *pipeline.InputInterface
	name string
	fn   func(df *dataframe.Dataframe) error
}

// NewLambda creates a Lambda sink. The dataframe passed to fn is only valid
// during the call.
func NewLambda(p *pipeline.Pipeline, upstream *pipeline.OutputInterface, name string, fn func(df *dataframe.Dataframe) error) (*Lambda, error) {
	l := &Lambda{name: name, fn: fn}
	p.Add(l)
	l.in = &pipeline.InputInterface{Kind: pipeline.BlockInterface, Port: p.NewInput(l)}
	if err := pipeline.Connect(upstream, l.in); err != nil {
		return nil, err
	}
	return l, nil
}

// Describe implements pipeline.Processor.
func (l *Lambda) Describe() string {
	return "Lambda " + l.name
}

// Execute implements pipeline.Processor.
func (l *Lambda) Execute() error {
	if l.in.Port.HasData() {
		if err := l.fn(l.in.Dataframe()); err != nil {
			return err
		}
		l.in.Port.Consume()
	}
	if l.InputsDone() {
		l.Finish()
	}
	return nil
}
