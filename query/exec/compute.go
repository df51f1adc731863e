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

// Computed names a result of a program that a Compute processor outputs.
type Computed struct {
	Tag  dataframe.ColumnTag
	Name string
}

// Compute evaluates a program over each batch and adds some of its results
// as new columns. Constant results are expanded to the batch's length.
type Compute struct {
	unary
	prog    *exprprog.Program
	results []Computed
}

// NewCompute creates a Compute processor. The result tags must be produced
// by the program and not already be in the input.
func NewCompute(p *pipeline.Pipeline, upstream *pipeline.OutputInterface, prog *exprprog.Program, results []Computed) (*Compute, error) {
	c := &Compute{prog: prog, results: results}
	if err := c.init(p, c, pipeline.BlockInterface, pipeline.BlockInterface, upstream); err != nil {
		return nil, err
	}
	c.forwardShape()
	produced := make(map[dataframe.ColumnTag]bool, prog.Len())
	for _, in := range prog.Instrs {
		produced[in.Result] = true
	}
	for _, r := range results {
		if !produced[r.Tag] {
			return nil, pipeline.Errorf("compute: program doesn't produce %v", r.Tag)
		}
		if c.out.Dataframe().Get(r.Tag) != nil {
			return nil, pipeline.Errorf("compute: column %v is already in the input", r.Tag)
		}
		c.out.Dataframe().AddNew(r.Tag, r.Name)
	}
	return c, nil
}

// Describe implements pipeline.Processor.
func (c *Compute) Describe() string {
	tags := make([]dataframe.ColumnTag, len(c.results))
	for i, r := range c.results {
		tags[i] = r.Tag
	}
	return fmt.Sprintf("Compute %v with %d instrs", tags, c.prog.Len())
}

// Execute implements pipeline.Processor.
func (c *Compute) Execute() error {
	if c.in.Port.HasData() {
		in := c.in.Dataframe()
		res, err := c.prog.Evaluate(in)
		if err != nil {
			return pipeline.Errorf("%v", err)
		}
		out := c.out.Dataframe()
		dataframe.Forward(out, in)
		n := in.RowCount()
		for _, r := range c.results {
			out.Get(r.Tag).Col = broadcast(res[r.Tag], n)
		}
		if n > 0 {
			c.out.Port.WriteData()
		}
		c.in.Port.Consume()
	}
	c.finishIfDone()
	return nil
}
