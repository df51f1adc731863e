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

// Entity identifies the column of node or edge IDs that a processor reads.
type Entity struct {
	Tag    dataframe.ColumnTag
	IsEdge bool
}

func (e Entity) String() string {
	if e.IsEdge {
		return fmt.Sprintf("edge %v", e.Tag)
	}
	return fmt.Sprintf("node %v", e.Tag)
}

// lookup is embedded by the processors that add one column computed from an
// entity column. Its output is a Values interface over all the input
// columns plus the new one.
type lookup struct {
	unary
	entity Entity
	view   graph.View
}

func (l *lookup) init(p *pipeline.Pipeline, self pipeline.Processor, upstream *pipeline.OutputInterface,
	entity Entity, name string) error {
	l.entity = entity
	if err := l.unary.init(p, self, pipeline.BlockInterface, pipeline.ValuesInterface, upstream); err != nil {
		return err
	}
	if l.in.Dataframe().Get(entity.Tag) == nil {
		return pipeline.Errorf("input has no %v column", entity)
	}
	if l.in.Stream.Expanded {
		return pipeline.Errorf("input for %s spans several expansion steps; materialize it first", name)
	}
	l.forwardShape()
	l.out.Values = p.NewTag()
	l.out.Dataframe().AddNew(l.out.Values, name)
	return nil
}

// Result returns the tag of the added column.
func (l *lookup) Result() dataframe.ColumnTag {
	return l.out.Values
}

// Prepare implements pipeline.Processor.
func (l *lookup) Prepare(ctx *pipeline.ExecContext) error {
	if ctx.View == nil {
		return pipeline.Errorf("no graph to read from")
	}
	l.view = ctx.View
	return nil
}

// run calls fn with each input batch and the entity IDs in it. fn returns
// the new column and, optionally, a mask of the rows to keep.
func (l *lookup) run(fn func(entities *dataframe.UInt64s) (dataframe.Column, []bool, error)) error {
	if l.in.Port.HasData() {
		in := l.in.Dataframe()
		entities, err := ids(in, l.entity.Tag)
		if err != nil {
			return err
		}
		col, keep, err := fn(entities)
		if err != nil {
			return err
		}
		out := l.out.Dataframe()
		dataframe.Forward(out, in)
		out.Get(l.out.Values).Col = col
		if keep != nil {
			n := 0
			for _, c := range out.Cols() {
				c.Col = c.Col.Filter(keep)
				n = c.Col.Len()
			}
			if n > 0 {
				l.out.Port.WriteData()
			}
		} else if col.Len() > 0 {
			l.out.Port.WriteData()
		}
		l.in.Port.Consume()
	}
	l.finishIfDone()
	return nil
}

// GetLabelSetID adds the label set ID of each node.
type GetLabelSetID struct {
	lookup
}

// NewGetLabelSetID creates a GetLabelSetID processor reading the node IDs in
// column 'nodes'.
func NewGetLabelSetID(p *pipeline.Pipeline, upstream *pipeline.OutputInterface, nodes dataframe.ColumnTag, name string) (*GetLabelSetID, error) {
	g := &GetLabelSetID{}
	if err := g.init(p, g, upstream, Entity{Tag: nodes}, name); err != nil {
		return nil, err
	}
	return g, nil
}

// Describe implements pipeline.Processor.
func (g *GetLabelSetID) Describe() string {
	return fmt.Sprintf("GetLabelSetID %v", g.entity.Tag)
}

// Execute implements pipeline.Processor.
func (g *GetLabelSetID) Execute() error {
	return g.run(func(nodes *dataframe.UInt64s) (dataframe.Column, []bool, error) {
		res := make([]uint64, nodes.Len())
		for i := range res {
			id, ok := g.view.NodeLabelSet(graph.NodeID(nodes.At(i)))
			if !ok {
				return nil, nil, pipeline.Errorf("node %d not found", nodes.At(i))
			}
			res[i] = uint64(id)
		}
		return dataframe.NewVector(res...), nil, nil
	})
}

// GetEdgeTypeID adds the type of each edge.
type GetEdgeTypeID struct {
	lookup
}

// NewGetEdgeTypeID creates a GetEdgeTypeID processor reading the edge IDs in
// column 'edges'.
func NewGetEdgeTypeID(p *pipeline.Pipeline, upstream *pipeline.OutputInterface, edges dataframe.ColumnTag, name string) (*GetEdgeTypeID, error) {
	g := &GetEdgeTypeID{}
	if err := g.init(p, g, upstream, Entity{Tag: edges, IsEdge: true}, name); err != nil {
		return nil, err
	}
	return g, nil
}

// Describe implements pipeline.Processor.
func (g *GetEdgeTypeID) Describe() string {
	return fmt.Sprintf("GetEdgeTypeID %v", g.entity.Tag)
}

// Execute implements pipeline.Processor.
func (g *GetEdgeTypeID) Execute() error {
	return g.run(func(edges *dataframe.UInt64s) (dataframe.Column, []bool, error) {
		res := make([]uint64, edges.Len())
		for i := range res {
			t, ok := g.view.EdgeType(graph.EdgeID(edges.At(i)))
			if !ok {
				return nil, nil, pipeline.Errorf("edge %d not found", edges.At(i))
			}
			res[i] = uint64(t)
		}
		return dataframe.NewVector(res...), nil, nil
	})
}

// PropertyKind returns the column kind that holds values of a property
// type. Unsigned properties are read as integers, which is how the query
// language sees them.
func PropertyKind(k graph.ValueKind) dataframe.Kind {
	switch k {
	case graph.ValueInt64, graph.ValueUInt64:
		return dataframe.KindInt64
	case graph.ValueFloat64:
		return dataframe.KindFloat64
	case graph.ValueString:
		return dataframe.KindString
	case graph.ValueBool:
		return dataframe.KindBool
	}
	return dataframe.KindUnknown
}

// readProperty reads one property of each entity. Missing properties are
// null in the returned values.
func readProperty(view graph.View, entity Entity, prop graph.PropertyType, entities *dataframe.UInt64s) []interface{} {
	res := make([]interface{}, entities.Len())
	for i := range res {
		var v interface{}
		var ok bool
		if entity.IsEdge {
			v, ok = view.EdgeProperty(graph.EdgeID(entities.At(i)), prop.ID)
		} else {
			v, ok = view.NodeProperty(graph.NodeID(entities.At(i)), prop.ID)
		}
		if !ok {
			continue
		}
		if u, isUnsigned := v.(uint64); isUnsigned {
			v = int64(u)
		}
		res[i] = v
	}
	return res
}

// GetPropertyWithNull adds the value of a property of each entity, or null
// for the entities that don't have it.
type GetPropertyWithNull struct {
	lookup
	prop graph.PropertyType
}

// NewGetPropertyWithNull creates a GetPropertyWithNull processor.
func NewGetPropertyWithNull(p *pipeline.Pipeline, upstream *pipeline.OutputInterface, entity Entity,
	prop graph.PropertyType, name string) (*GetPropertyWithNull, error) {
	g := &GetPropertyWithNull{prop: prop}
	if err := g.init(p, g, upstream, entity, name); err != nil {
		return nil, err
	}
	return g, nil
}

// Describe implements pipeline.Processor.
func (g *GetPropertyWithNull) Describe() string {
	return fmt.Sprintf("GetPropertyWithNull %v.%s", g.entity.Tag, g.prop.Name)
}

// Execute implements pipeline.Processor.
func (g *GetPropertyWithNull) Execute() error {
	return g.run(func(entities *dataframe.UInt64s) (dataframe.Column, []bool, error) {
		values := readProperty(g.view, g.entity, g.prop, entities)
		col, err := buildColumn(PropertyKind(g.prop.Kind), values)
		return col, nil, err
	})
}

// GetProperty adds the value of a property of each entity, dropping the rows
// of the entities that don't have it.
type GetProperty struct {
	lookup
	prop graph.PropertyType
}

// NewGetProperty creates a GetProperty processor.
func NewGetProperty(p *pipeline.Pipeline, upstream *pipeline.OutputInterface, entity Entity,
	prop graph.PropertyType, name string) (*GetProperty, error) {
	g := &GetProperty{prop: prop}
	if err := g.init(p, g, upstream, entity, name); err != nil {
		return nil, err
	}
	return g, nil
}

// Describe implements pipeline.Processor.
func (g *GetProperty) Describe() string {
	return fmt.Sprintf("GetProperty %v.%s", g.entity.Tag, g.prop.Name)
}

// Execute implements pipeline.Processor.
func (g *GetProperty) Execute() error {
	return g.run(func(entities *dataframe.UInt64s) (dataframe.Column, []bool, error) {
		values := readProperty(g.view, g.entity, g.prop, entities)
		keep := make([]bool, len(values))
		for i, v := range values {
			keep[i] = v != nil
		}
		col, err := buildColumn(PropertyKind(g.prop.Kind), values)
		return col, keep, err
	})
}
