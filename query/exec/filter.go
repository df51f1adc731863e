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
	"github.com/ebay/akgraph/query/exprprog"
	"github.com/ebay/akgraph/query/pipeline"
)

// Filter keeps the rows for which every predicate of a program is true.
type Filter struct {
	unary
	prog *exprprog.PredicateProgram
}

// NewFilter creates a Filter processor. The program may read any column of
// the input.
func NewFilter(p *pipeline.Pipeline, upstream *pipeline.OutputInterface, prog *exprprog.PredicateProgram) (*Filter, error) {
	f := &Filter{prog: prog}
	if err := f.init(p, f, pipeline.BlockInterface, pipeline.BlockInterface, upstream); err != nil {
		return nil, err
	}
	f.forwardShape()
	return f, nil
}

// Program returns the filter's predicate program.
func (f *Filter) Program() *exprprog.PredicateProgram {
	return f.prog
}

// Describe implements pipeline.Processor.
func (f *Filter) Describe() string {
	return fmt.Sprintf("Filter %d instrs where %v", f.prog.Len(), f.prog.Predicates)
}

// Execute implements pipeline.Processor.
func (f *Filter) Execute() error {
	if f.in.Port.HasData() {
		in := f.in.Dataframe()
		mask, err := f.prog.Mask(in)
		if err != nil {
			return err
		}
		kept := 0
		for _, k := range mask {
			if k {
				kept++
			}
		}
		if kept > 0 {
			out := f.out.Dataframe()
			for _, c := range out.Cols() {
				col, err := column(in, c.Tag)
				if err != nil {
					return err
				}
				if kept < len(mask) {
					col = col.Filter(mask)
				}
				c.Col = col
			}
			f.out.Port.WriteData()
		}
		f.in.Port.Consume()
	}
	f.finishIfDone()
	return nil
}

// Fork copies each input batch to several outputs. Columns are shared, not
// copied, since they're never modified once written.
type Fork struct {
	pipeline.Base
	in   *pipeline.InputInterface
	outs []*pipeline.OutputInterface
}

// NewFork creates a Fork processor with n outputs. Each output has the
// upstream interface's kind and stream.
func NewFork(p *pipeline.Pipeline, upstream *pipeline.OutputInterface, n int) (*Fork, error) {
	f := &Fork{}
	p.Add(f)
	f.in = &pipeline.InputInterface{Kind: pipeline.BlockInterface, Port: p.NewInput(f)}
	if err := pipeline.Connect(upstream, f.in); err != nil {
		return nil, err
	}
	for i := 0; i < n; i++ {
		out := &pipeline.OutputInterface{
			Kind:   upstream.Kind,
			Port:   p.NewOutput(f),
			Stream: upstream.Stream,
			Values: upstream.Values,
		}
		for _, c := range f.in.Dataframe().Cols() {
			out.Dataframe().AddNew(c.Tag, c.Name)
		}
		f.outs = append(f.outs, out)
	}
	return f, nil
}

// Outputs returns one output interface per branch.
func (f *Fork) Outputs() []*pipeline.OutputInterface {
	return f.outs
}

// Describe implements pipeline.Processor.
func (f *Fork) Describe() string {
	return fmt.Sprintf("Fork %d", len(f.outs))
}

// Execute implements pipeline.Processor.
func (f *Fork) Execute() error {
	if f.in.Port.HasData() {
		for _, out := range f.outs {
			dataframe.Forward(out.Dataframe(), f.in.Dataframe())
			out.Port.WriteData()
		}
		f.in.Port.Consume()
	}
	if f.InputsDone() {
		f.Finish()
	}
	return nil
}
