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
	"testing"

	"github.com/ebay/akgraph/graph"
	"github.com/ebay/akgraph/graph/memgraph"
	"github.com/ebay/akgraph/query/dataframe"
	"github.com/ebay/akgraph/query/exprprog"
	"github.com/ebay/akgraph/query/pipeline"
	"github.com/ebay/akgraph/util/clocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// loadPeople returns a fresh copy of the test graph: alice (1) knows bob (2)
// who works at acme (3).
func loadPeople(t *testing.T) *memgraph.Graph {
	t.Helper()
	g, err := memgraph.LoadYAMLFile("../../graph/memgraph/testdata/people.yaml")
	require.NoError(t, err)
	return g
}

func readContext(g *memgraph.Graph, batch int) *pipeline.ExecContext {
	return &pipeline.ExecContext{View: g, BatchSize: batch}
}

func execute(t *testing.T, p *pipeline.Pipeline, ctx *pipeline.ExecContext) {
	t.Helper()
	e := pipeline.NewExecutor(p, ctx, pipeline.ExecOptions{Clock: clocks.NewMock()})
	require.NoError(t, e.Run())
	for _, proc := range p.Processors() {
		assert.True(t, pipeline.BaseOf(proc).IsFinished(), "%s didn't finish", proc.Describe())
	}
}

// sink collects the rows that reach the end of a pipeline.
type sink struct {
	tags    []dataframe.ColumnTag
	rows    [][]interface{}
	batches int
}

// collect adds a Lambda that records the given columns of each row, or every
// column if no tags are given.
func collect(t *testing.T, p *pipeline.Pipeline, upstream *pipeline.OutputInterface, tags ...dataframe.ColumnTag) *sink {
	t.Helper()
	s := &sink{tags: tags}
	if len(tags) == 0 {
		s.tags = upstream.Dataframe().Tags()
	}
	_, err := NewLambda(p, upstream, "test", func(df *dataframe.Dataframe) error {
		s.batches++
		n := df.RowCount()
		for i := 0; i < n; i++ {
			row := make([]interface{}, len(s.tags))
			for j, tag := range s.tags {
				col, err := column(df, tag)
				if err != nil {
					return err
				}
				if col.Len() != n && !col.IsConst() {
					return fmt.Errorf("column %v has %d rows, expected %d", tag, col.Len(), n)
				}
				row[j] = col.ValueAt(i)
			}
			s.rows = append(s.rows, row)
		}
		return nil
	})
	require.NoError(t, err)
	return s
}

// column0 returns the first value of each row.
func (s *sink) column0() []interface{} {
	res := make([]interface{}, len(s.rows))
	for i, row := range s.rows {
		res[i] = row[0]
	}
	return res
}

// source emits fixed batches. Each batch holds one column per tag.
type source struct {
	pipeline.Base
	out     *pipeline.OutputInterface
	batches [][]dataframe.Column
	next    int
}

func newSource(p *pipeline.Pipeline, tags []dataframe.ColumnTag, batches ...[]dataframe.Column) *source {
	s := &source{batches: batches}
	p.Add(s)
	s.out = &pipeline.OutputInterface{Kind: pipeline.BlockInterface, Port: p.NewOutput(s)}
	for _, tag := range tags {
		s.out.Dataframe().AddNew(tag, fmt.Sprintf("col%v", tag))
	}
	return s
}

func (s *source) Describe() string {
	return "source"
}

func (s *source) Execute() error {
	if s.next < len(s.batches) {
		for i, c := range s.out.Dataframe().Cols() {
			c.Col = s.batches[s.next][i]
		}
		s.out.Port.WriteData()
		s.next++
	}
	if s.next >= len(s.batches) {
		s.Finish()
	}
	return nil
}

func ints(values ...int64) dataframe.Column {
	return dataframe.NewVector(values...)
}

func uints(values ...uint64) dataframe.Column {
	return dataframe.NewVector(values...)
}

// nullableInts builds an int64 column from ints and nils.
func nullableInts(values ...interface{}) dataframe.Column {
	for i, v := range values {
		if x, ok := v.(int); ok {
			values[i] = int64(x)
		}
	}
	col, err := buildColumn(dataframe.KindInt64, values)
	if err != nil {
		panic(err)
	}
	return col
}

func Test_ScanNodes(t *testing.T) {
	tests := []struct {
		batch   int
		batches int
	}{
		{batch: 1, batches: 3},
		{batch: 2, batches: 2},
		{batch: 3, batches: 1},
		{batch: 100, batches: 1},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("batch=%d", test.batch), func(t *testing.T) {
			p := pipeline.New()
			scan := NewScanNodes(p)
			s := collect(t, p, scan.Output())
			execute(t, p, readContext(loadPeople(t), test.batch))
			assert.Equal(t, []interface{}{uint64(1), uint64(2), uint64(3)}, s.column0())
			assert.Equal(t, test.batches, s.batches)
		})
	}
}

func Test_ScanNodesByLabel(t *testing.T) {
	g := loadPeople(t)
	md := g.Metadata()
	p := pipeline.New()
	scan := NewScanNodesByLabel(p, graph.NewLabelSet(md.Labels()["Person"]), []string{"Person"})
	s := collect(t, p, scan.Output())
	execute(t, p, readContext(g, 1))
	assert.Equal(t, []interface{}{uint64(1), uint64(2)}, s.column0())
	assert.Equal(t, "ScanNodesByLabel Person", scan.Describe())
	assert.Equal(t, "nodes:Person", scan.Output().Dataframe().Cols()[0].Name)
}

func Test_ScanNodes_needsGraph(t *testing.T) {
	p := pipeline.New()
	NewScanNodes(p)
	e := pipeline.NewExecutor(p, &pipeline.ExecContext{}, pipeline.ExecOptions{Clock: clocks.NewMock()})
	assert.EqualError(t, e.Run(), "executing #0 ScanNodes: no graph to scan")
}

func Test_GetEdges(t *testing.T) {
	tests := []struct {
		dir  Direction
		rows [][]interface{}
	}{
		{Outgoing, [][]interface{}{
			{uint64(1), uint64(1), uint64(2)},
			{uint64(2), uint64(2), uint64(3)},
		}},
		{Incoming, [][]interface{}{
			{uint64(2), uint64(1), uint64(1)},
			{uint64(3), uint64(2), uint64(2)},
		}},
		{Both, [][]interface{}{
			{uint64(1), uint64(1), uint64(2)},
			{uint64(2), uint64(2), uint64(3)},
			{uint64(2), uint64(1), uint64(1)},
			{uint64(3), uint64(2), uint64(2)},
		}},
	}
	for _, test := range tests {
		t.Run(test.dir.String(), func(t *testing.T) {
			p := pipeline.New()
			scan := NewScanNodes(p)
			expand, err := NewGetEdges(p, scan.Output(), test.dir)
			require.NoError(t, err)
			data := NewMaterializeData(false, scan.Output().Stream.NodeIDs)
			stream := expand.Output().Stream
			data.AddStep(expand.Indices(), stream.EdgeIDs, stream.EdgeTypes, stream.OtherIDs)
			mat, err := NewMaterialize(p, expand.Output(), data)
			require.NoError(t, err)
			s := collect(t, p, mat.Output(), scan.Output().Stream.NodeIDs, stream.EdgeIDs, stream.OtherIDs)
			execute(t, p, readContext(loadPeople(t), 2))
			assert.Equal(t, test.rows, s.rows)
			assert.Equal(t, test.dir.String(), expand.Describe())
		})
	}
}

func Test_Materialize_twoSteps(t *testing.T) {
	// (a)-[e1]->(b)-[e2]->(c)
	p := pipeline.New()
	scan := NewScanNodes(p)
	hop1, err := NewGetEdges(p, scan.Output(), Outgoing)
	require.NoError(t, err)
	hop2, err := NewGetEdges(p, hop1.Output(), Outgoing)
	require.NoError(t, err)
	s1, s2 := hop1.Output().Stream, hop2.Output().Stream
	data := NewMaterializeData(false, scan.Output().Stream.NodeIDs)
	data.AddStep(hop1.Indices(), s1.EdgeIDs, s1.EdgeTypes, s1.OtherIDs)
	data.AddStep(hop2.Indices(), s2.EdgeIDs, s2.EdgeTypes, s2.OtherIDs)
	assert.True(t, data.InLastStep(s2.OtherIDs))
	assert.False(t, data.InLastStep(s1.OtherIDs))
	assert.False(t, data.IsSingleStep())
	mat, err := NewMaterialize(p, hop2.Output(), data)
	require.NoError(t, err)
	s := collect(t, p, mat.Output(), scan.Output().Stream.NodeIDs, s1.EdgeIDs, s2.EdgeIDs, s2.OtherIDs)
	execute(t, p, readContext(loadPeople(t), 10))
	assert.Equal(t, [][]interface{}{{uint64(1), uint64(1), uint64(2), uint64(3)}}, s.rows)
	assert.Equal(t, "Materialize 3 steps", mat.Describe())
}

func Test_MaterializeData(t *testing.T) {
	data := NewMaterializeData(true, 1, 2)
	assert.True(t, data.IsSingleStep())
	assert.True(t, data.Has(2))
	clone := data.Clone()
	clone.AddStep(3, 4)
	clone.AddColumn(5)
	assert.True(t, data.IsSingleStep())
	assert.False(t, data.Has(4))
	assert.Equal(t, []dataframe.ColumnTag{1, 2, 4, 5}, clone.Columns())
	assert.Equal(t, "[$1 $2] -$3-> [$4 $5] pinned", clone.String())
}

func Test_GetProperty(t *testing.T) {
	g := loadPeople(t)
	age := g.Metadata().PropTypes()["age"]
	tests := []struct {
		name    string
		newProc func(p *pipeline.Pipeline, up *pipeline.OutputInterface) (*pipeline.OutputInterface, error)
		exp     [][]interface{}
	}{
		{
			name: "GetProperty",
			newProc: func(p *pipeline.Pipeline, up *pipeline.OutputInterface) (*pipeline.OutputInterface, error) {
				proc, err := NewGetProperty(p, up, Entity{Tag: up.Stream.NodeIDs}, age, "n.age")
				if err != nil {
					return nil, err
				}
				return proc.Output(), nil
			},
			exp: [][]interface{}{{uint64(1), int64(31)}, {uint64(2), int64(25)}},
		},
		{
			name: "GetPropertyWithNull",
			newProc: func(p *pipeline.Pipeline, up *pipeline.OutputInterface) (*pipeline.OutputInterface, error) {
				proc, err := NewGetPropertyWithNull(p, up, Entity{Tag: up.Stream.NodeIDs}, age, "n.age")
				if err != nil {
					return nil, err
				}
				return proc.Output(), nil
			},
			exp: [][]interface{}{{uint64(1), int64(31)}, {uint64(2), int64(25)}, {uint64(3), nil}},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			p := pipeline.New()
			scan := NewScanNodes(p)
			out, err := test.newProc(p, scan.Output())
			require.NoError(t, err)
			assert.Equal(t, pipeline.ValuesInterface, out.Kind)
			s := collect(t, p, out, scan.Output().Stream.NodeIDs, out.Values)
			execute(t, p, readContext(g, 2))
			assert.Equal(t, test.exp, s.rows)
		})
	}
}

func Test_GetProperty_edge(t *testing.T) {
	g := loadPeople(t)
	since := g.Metadata().PropTypes()["since"]
	p := pipeline.New()
	scan := NewScanNodes(p)
	expand, err := NewGetEdges(p, scan.Output(), Outgoing)
	require.NoError(t, err)
	data := NewMaterializeData(false, scan.Output().Stream.NodeIDs)
	stream := expand.Output().Stream
	data.AddStep(expand.Indices(), stream.EdgeIDs, stream.EdgeTypes, stream.OtherIDs)
	mat, err := NewMaterialize(p, expand.Output(), data)
	require.NoError(t, err)
	prop, err := NewGetProperty(p, mat.Output(), Entity{Tag: stream.EdgeIDs, IsEdge: true}, since, "e.since")
	require.NoError(t, err)
	s := collect(t, p, prop.Output(), stream.EdgeIDs, prop.Result())
	execute(t, p, readContext(g, 10))
	assert.Equal(t, [][]interface{}{{uint64(1), int64(2010)}}, s.rows)
}

func Test_GetLabelSetID_GetEdgeTypeID(t *testing.T) {
	g := loadPeople(t)
	p := pipeline.New()
	scan := NewScanNodes(p)
	labels, err := NewGetLabelSetID(p, scan.Output(), scan.Output().Stream.NodeIDs, "labels(n)")
	require.NoError(t, err)
	s := collect(t, p, labels.Output(), labels.Result())
	edgeScan := NewScanNodes(p)
	expand, err := NewGetEdges(p, edgeScan.Output(), Outgoing)
	require.NoError(t, err)
	data := NewMaterializeData(false, edgeScan.Output().Stream.NodeIDs)
	stream := expand.Output().Stream
	data.AddStep(expand.Indices(), stream.EdgeIDs, stream.EdgeTypes, stream.OtherIDs)
	mat, err := NewMaterialize(p, expand.Output(), data)
	require.NoError(t, err)
	types, err := NewGetEdgeTypeID(p, mat.Output(), stream.EdgeIDs, "type(e)")
	require.NoError(t, err)
	st := collect(t, p, types.Output(), types.Result())
	execute(t, p, readContext(g, 10))

	ids := make(map[string]graph.LabelSetID)
	for _, e := range g.LabelSets() {
		ids[graph.LabelSet(e.Labels).Key()] = e.ID
	}
	md := g.Metadata()
	person := graph.NewLabelSet(md.Labels()["Person"])
	require.Len(t, s.rows, 3)
	assert.Equal(t, uint64(ids[person.Key()]), s.rows[0][0])
	assert.NotEqual(t, s.rows[0][0], s.rows[1][0])
	assert.Equal(t, [][]interface{}{
		{uint64(md.EdgeTypes()["KNOWS"])},
		{uint64(md.EdgeTypes()["WORKS_AT"])},
	}, st.rows)
}

func Test_lookup_rejectsExpandedInput(t *testing.T) {
	p := pipeline.New()
	expand, err := NewGetEdges(p, NewScanNodes(p).Output(), Outgoing)
	require.NoError(t, err)
	assert.True(t, expand.Output().Stream.Expanded)
	_, err = NewGetEdgeTypeID(p, expand.Output(), expand.Output().Stream.EdgeIDs, "type(e)")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "type(e) spans several expansion steps")
	_, err = NewGetProperty(p, expand.Output(), Entity{Tag: expand.Output().Stream.EdgeIDs, IsEdge: true}, loadPeople(t).Metadata().PropTypes()["since"], "e.since")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "materialize it first")
}

func Test_Materialize_clearsExpanded(t *testing.T) {
	p := pipeline.New()
	scan := NewScanNodes(p)
	expand, err := NewGetEdges(p, scan.Output(), Outgoing)
	require.NoError(t, err)
	data := NewMaterializeData(false, scan.Output().Stream.NodeIDs)
	stream := expand.Output().Stream
	data.AddStep(expand.Indices(), stream.EdgeIDs, stream.EdgeTypes, stream.OtherIDs)
	mat, err := NewMaterialize(p, expand.Output(), data)
	require.NoError(t, err)
	assert.False(t, mat.Output().Stream.Expanded)
	assert.Equal(t, stream.EdgeIDs, mat.Output().Stream.EdgeIDs)
}

func Test_Filter(t *testing.T) {
	g := loadPeople(t)
	age := g.Metadata().PropTypes()["age"]
	p := pipeline.New()
	scan := NewScanNodes(p)
	prop, err := NewGetPropertyWithNull(p, scan.Output(), Entity{Tag: scan.Output().Stream.NodeIDs}, age, "n.age")
	require.NoError(t, err)
	block := *prop.Output()
	block.Kind = pipeline.BlockInterface
	prog := new(exprprog.PredicateProgram)
	pred := p.NewTag()
	prog.Add(exprprog.OpGreater, pred, exprprog.Ref(prop.Result()), exprprog.Const(dataframe.NewConst[int64](30)))
	prog.AddPredicate(pred)
	filter, err := NewFilter(p, &block, prog)
	require.NoError(t, err)
	s := collect(t, p, filter.Output(), scan.Output().Stream.NodeIDs, prop.Result())
	execute(t, p, readContext(g, 1))
	assert.Equal(t, [][]interface{}{{uint64(1), int64(31)}}, s.rows)
	assert.Equal(t, 1, s.batches)
	assert.Equal(t, scan.Output().Stream, filter.Output().Stream)
}

func Test_Fork(t *testing.T) {
	p := pipeline.New()
	scan := NewScanNodes(p)
	fork, err := NewFork(p, scan.Output(), 2)
	require.NoError(t, err)
	a := collect(t, p, fork.Outputs()[0])
	b := collect(t, p, fork.Outputs()[1])
	execute(t, p, readContext(loadPeople(t), 1))
	exp := []interface{}{uint64(1), uint64(2), uint64(3)}
	assert.Equal(t, exp, a.column0())
	assert.Equal(t, exp, b.column0())
	assert.Equal(t, pipeline.NodeInterface, fork.Outputs()[1].Kind)
}

func Test_SkipLimit(t *testing.T) {
	tag := dataframe.ColumnTag(1)
	batches := [][]dataframe.Column{
		{ints(0, 1, 2)}, {ints(3, 4, 5)}, {ints(6, 7, 8)}, {ints(9)},
	}
	tests := []struct {
		skip, limit uint64
		exp         []interface{}
	}{
		{skip: 2, limit: 5, exp: []interface{}{int64(2), int64(3), int64(4), int64(5), int64(6)}},
		{skip: 0, limit: 1, exp: []interface{}{int64(0)}},
		{skip: 9, limit: 100, exp: []interface{}{int64(9)}},
		{skip: 20, limit: 100, exp: []interface{}{}},
		{skip: 3, limit: 3, exp: []interface{}{int64(3), int64(4), int64(5)}},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("skip=%d,limit=%d", test.skip, test.limit), func(t *testing.T) {
			p := pipeline.New()
			p.Tags().Next()
			src := newSource(p, []dataframe.ColumnTag{tag}, batches...)
			skip, err := NewSkip(p, src.out, test.skip)
			require.NoError(t, err)
			limit, err := NewLimit(p, skip.Output(), test.limit)
			require.NoError(t, err)
			s := collect(t, p, limit.Output())
			execute(t, p, &pipeline.ExecContext{})
			assert.Equal(t, test.exp, s.column0())
		})
	}
}

func Test_Projection(t *testing.T) {
	p := pipeline.New()
	scan := NewScanNodes(p)
	nodes := scan.Output().Stream.NodeIDs
	again := p.NewTag()
	proj, err := NewProjection(p, scan.Output(), []ProjectionItem{
		{From: nodes, To: nodes, Name: "n"},
		{From: nodes, To: again, Name: "m"},
	})
	require.NoError(t, err)
	assert.Equal(t, pipeline.NodeStreamOf(nodes), proj.Output().Stream)
	s := collect(t, p, proj.Output())
	execute(t, p, readContext(loadPeople(t), 10))
	assert.Equal(t, [][]interface{}{
		{uint64(1), uint64(1)}, {uint64(2), uint64(2)}, {uint64(3), uint64(3)},
	}, s.rows)
	names := []string{}
	for _, c := range proj.Output().Dataframe().Cols() {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"n", "m"}, names)

	_, err = NewProjection(pipeline.New(), scan.Output(), []ProjectionItem{{From: 99, To: 99}})
	assert.Error(t, err)
}

func Test_Compute(t *testing.T) {
	g := loadPeople(t)
	age := g.Metadata().PropTypes()["age"]
	p := pipeline.New()
	scan := NewScanNodes(p)
	prop, err := NewGetProperty(p, scan.Output(), Entity{Tag: scan.Output().Stream.NodeIDs}, age, "n.age")
	require.NoError(t, err)
	prog := new(exprprog.Program)
	plus, one := p.NewTag(), p.NewTag()
	prog.Add(exprprog.OpAdd, plus, exprprog.Ref(prop.Result()), exprprog.Const(dataframe.NewConst[int64](1)))
	prog.Add(exprprog.OpAdd, one, exprprog.Const(dataframe.NewConst[int64](0)), exprprog.Const(dataframe.NewConst[int64](1)))
	block := *prop.Output()
	block.Kind = pipeline.BlockInterface
	comp, err := NewCompute(p, &block, prog, []Computed{{plus, "n.age + 1"}, {one, "0 + 1"}})
	require.NoError(t, err)
	s := collect(t, p, comp.Output(), plus, one)
	execute(t, p, readContext(g, 10))
	assert.Equal(t, [][]interface{}{{int64(32), int64(1)}, {int64(26), int64(1)}}, s.rows)

	_, err = NewCompute(pipeline.New(), &block, prog, []Computed{{99, "x"}})
	assert.Error(t, err)
}
