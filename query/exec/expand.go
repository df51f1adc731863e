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

	"github.com/ebay/akgraph/graph"
	"github.com/ebay/akgraph/query/dataframe"
	"github.com/ebay/akgraph/query/pipeline"
)

// Direction selects the edges an expansion follows.
type Direction uint8

// Directions of expansions.
const (
	Outgoing Direction = iota + 1
	Incoming
	Both
)

func (d Direction) String() string {
	switch d {
	case Outgoing:
		return "GetOutEdges"
	case Incoming:
		return "GetInEdges"
	case Both:
		return "GetEdges"
	}
	return fmt.Sprintf("Direction(%d)", uint8(d))
}

// GetEdges expands a stream of nodes into the stream of their edges. The
// output carries every input column unchanged, followed by a new step: the
// index of the input row each edge came from, then the edge ID, edge type,
// and other-node ID columns.
type GetEdges struct {
	unary
	dir     Direction
	view    graph.View
	indices dataframe.ColumnTag
}

// NewGetEdges creates an expansion following edges in the given direction.
func NewGetEdges(p *pipeline.Pipeline, upstream *pipeline.OutputInterface, dir Direction) (*GetEdges, error) {
	e := &GetEdges{dir: dir}
	if err := e.init(p, e, pipeline.NodeInterface, pipeline.EdgeInterface, upstream); err != nil {
		return nil, err
	}
	e.forwardShape()
	e.indices = p.NewTag()
	edgeIDs, edgeTypes, other := p.NewTag(), p.NewTag(), p.NewTag()
	df := e.out.Dataframe()
	df.AddNew(e.indices, "indices")
	df.AddNew(edgeIDs, "edges")
	df.AddNew(edgeTypes, "edgeTypes")
	df.AddNew(other, "otherNodes")
	e.out.Stream = pipeline.EdgeStreamOf(edgeIDs, edgeTypes, other)
	e.out.Stream.Expanded = true
	return e, nil
}

// Indices returns the column that maps each edge to its input row.
func (e *GetEdges) Indices() dataframe.ColumnTag {
	return e.indices
}

// Describe implements pipeline.Processor.
func (e *GetEdges) Describe() string {
	return e.dir.String()
}

// Prepare implements pipeline.Processor.
func (e *GetEdges) Prepare(ctx *pipeline.ExecContext) error {
	if ctx.View == nil {
		return pipeline.Errorf("no graph to expand")
	}
	e.view = ctx.View
	return nil
}

// Execute implements pipeline.Processor.
func (e *GetEdges) Execute() error {
	if e.in.Port.HasData() {
		if err := e.expand(); err != nil {
			return err
		}
		e.in.Port.Consume()
	}
	e.finishIfDone()
	return nil
}

func (e *GetEdges) expand() error {
	nodes, err := ids(e.in.Dataframe(), e.in.Stream.NodeIDs)
	if err != nil {
		return err
	}
	var indices, edgeIDs, edgeTypes, other []uint64
	add := func(row int, edge graph.Edge, from graph.NodeID) {
		indices = append(indices, uint64(row))
		edgeIDs = append(edgeIDs, uint64(edge.ID))
		edgeTypes = append(edgeTypes, uint64(edge.Type))
		other = append(other, uint64(edge.Other(from)))
	}
	for row := 0; row < nodes.Len(); row++ {
		node := graph.NodeID(nodes.At(row))
		if e.dir != Incoming {
			for _, edge := range e.view.OutEdges(node) {
				add(row, edge, node)
			}
		}
		if e.dir != Outgoing {
			for _, edge := range e.view.InEdges(node) {
				// A self-loop was already returned as an outgoing edge.
				if e.dir == Both && edge.Src == edge.Tgt {
					continue
				}
				add(row, edge, node)
			}
		}
	}
	if len(edgeIDs) == 0 {
		return nil
	}
	out := e.out.Dataframe()
	dataframe.Forward(out, e.in.Dataframe())
	out.Get(e.indices).Col = dataframe.NewVector(indices...)
	out.Get(e.out.Stream.EdgeIDs).Col = dataframe.NewVector(edgeIDs...)
	out.Get(e.out.Stream.EdgeTypes).Col = dataframe.NewVector(edgeTypes...)
	out.Get(e.out.Stream.OtherIDs).Col = dataframe.NewVector(other...)
	e.out.Port.WriteData()
	return nil
}
