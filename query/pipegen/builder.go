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

package pipegen

import (
	"github.com/ebay/akgraph/query/dataframe"
	"github.com/ebay/akgraph/query/exec"
	"github.com/ebay/akgraph/query/pipeline"
)

// Builder tracks one branch of the pipeline under construction: the pending
// output interface that the next processor connects to, and the layout of
// the dataframe flowing out of it.
//
// The pending interface is always a Block view of the last processor's
// output, so that any processor may follow any other. The entity stream of
// the view tells expansions which column holds the current nodes.
type Builder struct {
	p    *pipeline.Pipeline
	out  *pipeline.OutputInterface
	data *exec.MaterializeData
}

func newBuilder(p *pipeline.Pipeline) *Builder {
	return &Builder{p: p}
}

// Output returns the pending output interface.
func (b *Builder) Output() *pipeline.OutputInterface {
	return b.out
}

// Data returns the layout of the pending dataframe.
func (b *Builder) Data() *exec.MaterializeData {
	return b.data
}

// Frame returns the shape of the pending dataframe.
func (b *Builder) Frame() *dataframe.Dataframe {
	if b.out == nil {
		return dataframe.New()
	}
	return b.out.Dataframe()
}

func blockView(out *pipeline.OutputInterface) *pipeline.OutputInterface {
	if out == nil {
		return nil
	}
	view := *out
	view.Kind = pipeline.BlockInterface
	return &view
}

// Reset starts a new layout at the output of a processor that emits flat
// batches. A pinned layout doesn't need materializing until something
// expands it.
func (b *Builder) Reset(out *pipeline.OutputInterface, pinned bool) {
	b.out = blockView(out)
	if out == nil {
		b.data = nil
		return
	}
	b.data = exec.NewMaterializeData(pinned, out.Dataframe().Tags()...)
}

// Then moves to the output of a processor that keeps the layout.
func (b *Builder) Then(out *pipeline.OutputInterface) {
	b.out = blockView(out)
}

// Add moves to the output of a processor that adds columns to the rows of
// the last step.
func (b *Builder) Add(out *pipeline.OutputInterface, tags ...dataframe.ColumnTag) {
	b.out = blockView(out)
	for _, tag := range tags {
		b.data.AddColumn(tag)
	}
}

// Expand moves to the output of an expansion, which adds a step.
func (b *Builder) Expand(out *pipeline.OutputInterface, indices dataframe.ColumnTag) {
	b.out = blockView(out)
	s := out.Stream
	b.data.AddStep(indices, s.EdgeIDs, s.EdgeTypes, s.OtherIDs)
}

// Retarget turns the pending edge stream into a stream of the nodes at the
// other end of each edge. No processor is needed.
func (b *Builder) Retarget() error {
	if b.out == nil {
		return pipeline.Fatalf("edge target of an unconnected branch")
	}
	s := b.out.Stream
	if s.Kind != pipeline.EdgeStream || !s.OtherIDs.Valid() {
		return pipeline.Fatalf("edge target of a branch without edges (stream is %v)", s)
	}
	view := *b.out
	view.Stream = pipeline.NodeStreamOf(s.OtherIDs)
	view.Stream.Expanded = s.Expanded
	b.out = &view
	return nil
}

// Pin adds a Materialize processor that flattens the pending dataframe,
// unless it's already flat. Processors that read every row of a batch, such
// as filters and lookups, need a pinned input.
func (b *Builder) Pin() error {
	if b.out == nil || b.data == nil {
		return pipeline.Fatalf("materialize on an unconnected branch")
	}
	if b.data.IsSingleStep() {
		return nil
	}
	m, err := exec.NewMaterialize(b.p, b.out, b.data)
	if err != nil {
		return err
	}
	b.out = blockView(m.Output())
	b.data = exec.NewMaterializeData(true, b.data.Columns()...)
	return nil
}

// Fork splits the branch into n branches with a Fork processor. The first
// branch keeps the receiver's layout; the others get copies.
func (b *Builder) Fork(n int) ([]*Builder, error) {
	fork, err := exec.NewFork(b.p, b.out, n)
	if err != nil {
		return nil, err
	}
	res := make([]*Builder, n)
	for i, out := range fork.Outputs() {
		data := b.data
		if i > 0 {
			data = data.Clone()
		}
		res[i] = &Builder{p: b.p, out: blockView(out), data: data}
	}
	return res, nil
}
