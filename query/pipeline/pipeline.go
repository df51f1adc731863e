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

// Package pipeline is the runtime of a query: a graph of processors connected
// by ports, each pair of connected ports sharing a single buffer, and the
// cooperative scheduler that drives the processors until they're done.
//
// A pipeline runs on a single goroutine. Processors never block; a processor
// that can't make progress is simply not scheduled until its inputs have data
// and its outputs have room.
package pipeline

import (
	"fmt"
	"strings"

	"github.com/ebay/akgraph/query/dataframe"
)

// Pipeline owns the processors of a query and hands out column tags.
type Pipeline struct {
	procs []Processor
	tags  dataframe.TagAllocator
}

// New returns an empty pipeline.
func New() *Pipeline {
	return &Pipeline{}
}

// Add registers a processor with the pipeline. It must be called before the
// processor's ports are created.
func (p *Pipeline) Add(proc Processor) {
	b := proc.base()
	b.id = len(p.procs)
	p.procs = append(p.procs, proc)
}

// NewInput creates an input port for the processor. The port requires data
// until told otherwise.
func (p *Pipeline) NewInput(proc Processor) *InputPort {
	b := proc.base()
	in := &InputPort{proc: proc, needsData: true}
	b.inputs = append(b.inputs, in)
	return in
}

// NewOutput creates an output port for the processor, with a buffer holding
// an empty dataframe.
func (p *Pipeline) NewOutput(proc Processor) *OutputPort {
	b := proc.base()
	out := &OutputPort{proc: proc, buf: &Buffer{df: dataframe.New()}}
	b.outputs = append(b.outputs, out)
	return out
}

// NewTag allocates a column tag that's unique within the pipeline.
func (p *Pipeline) NewTag() dataframe.ColumnTag {
	return p.tags.Next()
}

// Tags returns the pipeline's tag allocator.
func (p *Pipeline) Tags() *dataframe.TagAllocator {
	return &p.tags
}

// Processors returns the processors in creation order.
func (p *Pipeline) Processors() []Processor {
	return p.procs
}

// Len returns the number of processors.
func (p *Pipeline) Len() int {
	return len(p.procs)
}

// Sources returns the processors without inputs, in creation order.
func (p *Pipeline) Sources() []Processor {
	var res []Processor
	for _, proc := range p.procs {
		if proc.base().IsSource() {
			res = append(res, proc)
		}
	}
	return res
}

// BaseOf returns the scheduling state of a processor.
func BaseOf(proc Processor) *Base {
	return proc.base()
}

// String lists the processors, one per line, with the processors their
// outputs feed.
func (p *Pipeline) String() string {
	var b strings.Builder
	for _, proc := range p.procs {
		fmt.Fprintf(&b, "#%d %s", proc.base().id, proc.Describe())
		var next []string
		for _, out := range proc.base().outputs {
			if out.peer == nil {
				next = append(next, "_")
				continue
			}
			next = append(next, fmt.Sprintf("#%d", out.peer.proc.base().id))
		}
		if len(next) > 0 {
			fmt.Fprintf(&b, " -> %s", strings.Join(next, ", "))
		}
		b.WriteByte('\n')
	}
	return b.String()
}
