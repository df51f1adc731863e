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

	"github.com/ebay/akgraph/graph"
	"github.com/ebay/akgraph/query/dataframe"
	"github.com/ebay/akgraph/query/exprprog"
	"github.com/ebay/akgraph/query/pipeline"
	"github.com/pkg/errors"
)

// PropValue assigns the value in column Value to the property Name. Value
// is either a column of the input or a result of the Write's program.
type PropValue struct {
	Name  string
	Value dataframe.ColumnTag
}

// NodeCreate creates one node per input row.
type NodeCreate struct {
	// Result receives the IDs of the created nodes. It's only set if the
	// Write has an output.
	Result dataframe.ColumnTag
	Name   string
	Labels []string
	Props  []PropValue
}

// Endpoint is one end of a created edge: either a column of existing node
// IDs, or the index of a node created by the same Write.
type Endpoint struct {
	Nodes   dataframe.ColumnTag
	Created int
}

// ExistingNode returns an endpoint reading node IDs from a column.
func ExistingNode(tag dataframe.ColumnTag) Endpoint {
	return Endpoint{Nodes: tag, Created: -1}
}

// CreatedNode returns an endpoint referring to the i-th NodeCreate.
func CreatedNode(i int) Endpoint {
	return Endpoint{Created: i}
}

// EdgeCreate creates one edge per input row.
type EdgeCreate struct {
	Result dataframe.ColumnTag
	Name   string
	Src    Endpoint
	Tgt    Endpoint
	Type   string
	Props  []PropValue
}

// PropSet sets a property of an existing entity. A null value leaves the
// property unchanged.
type PropSet struct {
	Entity Entity
	PropValue
}

// WriteStats counts the changes a Write applied.
type WriteStats struct {
	NodesCreated  int
	EdgesCreated  int
	PropertiesSet int
	NodesDeleted  int
	EdgesDeleted  int
}

// Add accumulates other into s.
func (s *WriteStats) Add(other WriteStats) {
	s.NodesCreated += other.NodesCreated
	s.EdgesCreated += other.EdgesCreated
	s.PropertiesSet += other.PropertiesSet
	s.NodesDeleted += other.NodesDeleted
	s.EdgesDeleted += other.EdgesDeleted
}

func (s WriteStats) String() string {
	return fmt.Sprintf("nodes created: %d, edges created: %d, properties set: %d, nodes deleted: %d, edges deleted: %d",
		s.NodesCreated, s.EdgesCreated, s.PropertiesSet, s.NodesDeleted, s.EdgesDeleted)
}

// WriteSpec lists the changes a Write applies for each input row. Deletes
// name columns of entity IDs.
type WriteSpec struct {
	Prog        *exprprog.Program
	Nodes       []NodeCreate
	Edges       []EdgeCreate
	Sets        []PropSet
	DeleteNodes []dataframe.ColumnTag
	DeleteEdges []dataframe.ColumnTag
}

// Write applies changes to the graph. With an input, it collects every
// input row and applies the changes once the input is exhausted, so that the
// reads upstream never see the query's own writes. Without an input, it
// applies the changes once.
//
// For each row, nodes are created first, then edges, then properties are
// set. Deletes happen after every row was processed, edges before nodes.
type Write struct {
	pipeline.Base
	in    *pipeline.InputInterface
	out   *pipeline.OutputInterface
	spec  WriteSpec
	rows  *dataframe.Dataframe
	w     graph.Writer
	stats WriteStats
}

// NewWrite creates a Write processor. upstream may be nil. If withOutput is
// set, the processor outputs its input columns plus the IDs of the created
// entities.
func NewWrite(p *pipeline.Pipeline, upstream *pipeline.OutputInterface, spec WriteSpec, withOutput bool) (*Write, error) {
	w := &Write{spec: spec}
	if w.spec.Prog == nil {
		w.spec.Prog = new(exprprog.Program)
	}
	p.Add(w)
	if upstream != nil {
		w.in = &pipeline.InputInterface{Kind: pipeline.BlockInterface, Port: p.NewInput(w)}
		if err := pipeline.Connect(upstream, w.in); err != nil {
			return nil, err
		}
		w.rows = w.in.Dataframe().CloneShape()
	}
	for i, e := range spec.Edges {
		for _, end := range []Endpoint{e.Src, e.Tgt} {
			if end.Created >= len(spec.Nodes) {
				return nil, pipeline.Errorf("write: edge %d refers to node %d of %d", i, end.Created, len(spec.Nodes))
			}
		}
	}
	if !withOutput {
		return w, nil
	}
	w.out = &pipeline.OutputInterface{Kind: pipeline.BlockInterface, Port: p.NewOutput(w)}
	out := w.out.Dataframe()
	if w.in != nil {
		w.out.Stream = w.in.Stream
		for _, c := range w.in.Dataframe().Cols() {
			out.AddNew(c.Tag, c.Name)
		}
	}
	for _, n := range spec.Nodes {
		if n.Result.Valid() {
			out.AddNew(n.Result, n.Name)
		}
	}
	for _, e := range spec.Edges {
		if e.Result.Valid() {
			out.AddNew(e.Result, e.Name)
		}
	}
	return w, nil
}

// Output returns the processor's output interface, or nil.
func (w *Write) Output() *pipeline.OutputInterface {
	return w.out
}

// WriteStats returns the changes applied so far.
func (w *Write) WriteStats() WriteStats {
	return w.stats
}

// Describe implements pipeline.Processor.
func (w *Write) Describe() string {
	var parts []string
	if n := len(w.spec.Nodes); n > 0 {
		parts = append(parts, fmt.Sprintf("create %d nodes", n))
	}
	if n := len(w.spec.Edges); n > 0 {
		parts = append(parts, fmt.Sprintf("create %d edges", n))
	}
	if n := len(w.spec.Sets); n > 0 {
		parts = append(parts, fmt.Sprintf("set %d props", n))
	}
	if n := len(w.spec.DeleteNodes) + len(w.spec.DeleteEdges); n > 0 {
		parts = append(parts, fmt.Sprintf("delete %d", n))
	}
	return "Write " + strings.Join(parts, ", ")
}

// Prepare implements pipeline.Processor.
func (w *Write) Prepare(ctx *pipeline.ExecContext) error {
	if ctx.Writer == nil {
		return pipeline.Errorf("query writes to a read-only graph")
	}
	w.w = ctx.Writer
	return nil
}

// Reset implements pipeline.Processor.
func (w *Write) Reset() error {
	if w.rows != nil {
		w.rows.Clear()
	}
	return nil
}

// Execute implements pipeline.Processor.
func (w *Write) Execute() error {
	if w.in == nil {
		if err := w.apply(w.unitRow()); err != nil {
			return err
		}
		w.Finish()
		return nil
	}
	if w.in.Port.HasData() {
		if err := appendRows(w.rows, w.in.Dataframe()); err != nil {
			return err
		}
		w.in.Port.Consume()
	}
	if w.InputsDone() {
		if w.rows.RowCount() > 0 {
			if err := w.apply(w.rows); err != nil {
				return err
			}
		}
		w.rows.Clear()
		w.Finish()
	}
	return nil
}

// unitRow returns a single-row dataframe for a Write without input.
func (w *Write) unitRow() *dataframe.Dataframe {
	df := dataframe.New()
	df.AddNew(dataframe.ColumnTag(^uint32(0)), "unit").Col = dataframe.NewVector(true)
	return df
}

// values resolves the columns the changes read.
type values struct {
	df  *dataframe.Dataframe
	res exprprog.Results
}

func (v values) at(tag dataframe.ColumnTag, row int) (interface{}, error) {
	if col, ok := v.res[tag]; ok {
		return col.ValueAt(row), nil
	}
	col, err := column(v.df, tag)
	if err != nil {
		return nil, err
	}
	return col.ValueAt(row), nil
}

func (v values) props(props []PropValue, row int) (map[string]interface{}, error) {
	res := make(map[string]interface{}, len(props))
	for _, p := range props {
		x, err := v.at(p.Value, row)
		if err != nil {
			return nil, err
		}
		if x != nil {
			res[p.Name] = x
		}
	}
	return res, nil
}

func (w *Write) apply(df *dataframe.Dataframe) error {
	res, err := w.spec.Prog.Evaluate(df)
	if err != nil {
		return pipeline.Errorf("%v", err)
	}
	vals := values{df: df, res: res}
	rows := df.RowCount()
	nodeIDs := make([][]uint64, len(w.spec.Nodes))
	edgeIDs := make([][]uint64, len(w.spec.Edges))
	for row := 0; row < rows; row++ {
		if err := w.applyRow(vals, row, nodeIDs, edgeIDs); err != nil {
			return err
		}
	}
	if err := w.deleteAll(df); err != nil {
		return err
	}
	if w.out == nil {
		return nil
	}
	out := w.out.Dataframe()
	dataframe.Forward(out, df)
	for i, n := range w.spec.Nodes {
		if n.Result.Valid() {
			out.Get(n.Result).Col = dataframe.NewVector(nodeIDs[i]...)
		}
	}
	for i, e := range w.spec.Edges {
		if e.Result.Valid() {
			out.Get(e.Result).Col = dataframe.NewVector(edgeIDs[i]...)
		}
	}
	if rows > 0 {
		w.out.Port.WriteData()
	}
	return nil
}

func (w *Write) applyRow(vals values, row int, nodeIDs, edgeIDs [][]uint64) error {
	for i, n := range w.spec.Nodes {
		props, err := vals.props(n.Props, row)
		if err != nil {
			return err
		}
		id, err := w.w.CreateNode(n.Labels, props)
		if err != nil {
			return errors.Wrapf(err, "creating node %s", n.Name)
		}
		w.stats.NodesCreated++
		nodeIDs[i] = append(nodeIDs[i], uint64(id))
	}
	endpoint := func(end Endpoint) (graph.NodeID, error) {
		if end.Created >= 0 {
			return graph.NodeID(nodeIDs[end.Created][row]), nil
		}
		v, err := vals.at(end.Nodes, row)
		if err != nil {
			return 0, err
		}
		id, ok := v.(uint64)
		if !ok {
			return 0, pipeline.Errorf("edge endpoint %v is %v, not a node", end.Nodes, v)
		}
		return graph.NodeID(id), nil
	}
	for i, e := range w.spec.Edges {
		src, err := endpoint(e.Src)
		if err != nil {
			return err
		}
		tgt, err := endpoint(e.Tgt)
		if err != nil {
			return err
		}
		props, err := vals.props(e.Props, row)
		if err != nil {
			return err
		}
		id, err := w.w.CreateEdge(src, tgt, e.Type, props)
		if err != nil {
			return errors.Wrapf(err, "creating edge %s", e.Name)
		}
		w.stats.EdgesCreated++
		edgeIDs[i] = append(edgeIDs[i], uint64(id))
	}
	for _, s := range w.spec.Sets {
		v, err := vals.at(s.Value, row)
		if err != nil {
			return err
		}
		if v == nil {
			continue
		}
		x, err := vals.at(s.Entity.Tag, row)
		if err != nil {
			return err
		}
		id, ok := x.(uint64)
		if !ok {
			// The entity is null, as in an unmatched optional variable.
			continue
		}
		if s.Entity.IsEdge {
			err = w.w.SetEdgeProperty(graph.EdgeID(id), s.Name, v)
		} else {
			err = w.w.SetNodeProperty(graph.NodeID(id), s.Name, v)
		}
		if err != nil {
			return errors.Wrapf(err, "setting %v.%s", s.Entity, s.Name)
		}
		w.stats.PropertiesSet++
	}
	return nil
}

// deleteAll deletes the entities listed in the delete columns. Each entity
// is deleted once, even if it appears in several rows.
func (w *Write) deleteAll(df *dataframe.Dataframe) error {
	collect := func(tags []dataframe.ColumnTag) ([]uint64, error) {
		seen := make(map[uint64]bool)
		var res []uint64
		for _, tag := range tags {
			col, err := ids(df, tag)
			if err != nil {
				return nil, err
			}
			for i := 0; i < col.Len(); i++ {
				if col.IsNull(i) || seen[col.At(i)] {
					continue
				}
				seen[col.At(i)] = true
				res = append(res, col.At(i))
			}
		}
		return res, nil
	}
	edges, err := collect(w.spec.DeleteEdges)
	if err != nil {
		return err
	}
	nodes, err := collect(w.spec.DeleteNodes)
	if err != nil {
		return err
	}
	for _, id := range edges {
		if err := w.w.DeleteEdge(graph.EdgeID(id)); err != nil {
			return errors.Wrapf(err, "deleting edge %d", id)
		}
		w.stats.EdgesDeleted++
	}
	for _, id := range nodes {
		if err := w.w.DeleteNode(graph.NodeID(id)); err != nil {
			return errors.Wrapf(err, "deleting node %d", id)
		}
		w.stats.NodesDeleted++
	}
	return nil
}
