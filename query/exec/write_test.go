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
	"testing"

	"github.com/ebay/akgraph/graph"
	"github.com/ebay/akgraph/graph/memgraph"
	"github.com/ebay/akgraph/query/dataframe"
	"github.com/ebay/akgraph/query/exprprog"
	"github.com/ebay/akgraph/query/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeContext(g *memgraph.Graph) *pipeline.ExecContext {
	return &pipeline.ExecContext{View: g, Writer: g, BatchSize: 2}
}

func Test_Write_createWithoutInput(t *testing.T) {
	g := loadPeople(t)
	p := pipeline.New()
	prog := new(exprprog.Program)
	name, nodeID, edgeID := p.NewTag(), p.NewTag(), p.NewTag()
	prog.Add(exprprog.OpToUpper, name, exprprog.Const(dataframe.NewConst("dave")), exprprog.Operand{})
	write, err := NewWrite(p, nil, WriteSpec{
		Prog: prog,
		Nodes: []NodeCreate{
			{Result: nodeID, Name: "d", Labels: []string{"Person"}, Props: []PropValue{{"name", name}}},
		},
		Edges: []EdgeCreate{
			{Result: edgeID, Name: "e", Src: CreatedNode(0), Tgt: CreatedNode(0), Type: "SELF"},
		},
	}, true)
	require.NoError(t, err)
	s := collect(t, p, write.Output(), nodeID, edgeID)
	execute(t, p, writeContext(g))
	assert.Equal(t, [][]interface{}{{uint64(4), uint64(3)}}, s.rows)
	assert.Equal(t, WriteStats{NodesCreated: 1, EdgesCreated: 1}, write.WriteStats())
	v, ok := g.NodeProperty(4, g.PropTypes()["name"].ID)
	assert.True(t, ok)
	assert.Equal(t, "DAVE", v)
	assert.Equal(t, 4, g.NumNodes())
}

func Test_Write_setAndCreateFromRows(t *testing.T) {
	g := loadPeople(t)
	md := g.Metadata()
	p := pipeline.New()
	scan := NewScanNodesByLabel(p, graph.NewLabelSet(md.Labels()["Person"]), []string{"Person"})
	nodes := scan.Output().Stream.NodeIDs
	prog := new(exprprog.Program)
	flag := p.NewTag()
	prog.Add(exprprog.OpEqual, flag, exprprog.Ref(nodes), exprprog.Const(dataframe.NewConst[uint64](1)))
	write, err := NewWrite(p, scan.Output(), WriteSpec{
		Prog: prog,
		Nodes: []NodeCreate{
			{Name: "pet", Labels: []string{"Pet"}},
		},
		Edges: []EdgeCreate{
			{Name: "owns", Src: ExistingNode(nodes), Tgt: CreatedNode(0), Type: "OWNS"},
		},
		Sets: []PropSet{
			{Entity: Entity{Tag: nodes}, PropValue: PropValue{Name: "first", Value: flag}},
		},
	}, false)
	require.NoError(t, err)
	assert.Nil(t, write.Output())
	execute(t, p, writeContext(g))
	assert.Equal(t, WriteStats{NodesCreated: 2, EdgesCreated: 2, PropertiesSet: 2}, write.WriteStats())
	first := g.PropTypes()["first"].ID
	v, _ := g.NodeProperty(1, first)
	assert.Equal(t, true, v)
	v, _ = g.NodeProperty(2, first)
	assert.Equal(t, false, v)
	assert.Len(t, g.OutEdges(1), 2)
	assert.Equal(t, 5, g.NumNodes())
}

func Test_Write_delete(t *testing.T) {
	g := loadPeople(t)
	p := pipeline.New()
	scan := NewScanNodes(p)
	expand, err := NewGetEdges(p, scan.Output(), Both)
	require.NoError(t, err)
	data := NewMaterializeData(false, scan.Output().Stream.NodeIDs)
	stream := expand.Output().Stream
	data.AddStep(expand.Indices(), stream.EdgeIDs, stream.EdgeTypes, stream.OtherIDs)
	mat, err := NewMaterialize(p, expand.Output(), data)
	require.NoError(t, err)
	// Every edge appears twice, once from each end; bob appears twice too.
	write, err := NewWrite(p, mat.Output(), WriteSpec{
		DeleteEdges: []dataframe.ColumnTag{stream.EdgeIDs},
		DeleteNodes: []dataframe.ColumnTag{scan.Output().Stream.NodeIDs},
	}, false)
	require.NoError(t, err)
	execute(t, p, writeContext(g))
	assert.Equal(t, WriteStats{EdgesDeleted: 2, NodesDeleted: 3}, write.WriteStats())
	assert.Equal(t, 0, g.NumNodes())
	assert.Equal(t, 0, g.NumEdges())
}

func Test_Write_readOnly(t *testing.T) {
	p := pipeline.New()
	_, err := NewWrite(p, nil, WriteSpec{Nodes: []NodeCreate{{Name: "n"}}}, false)
	require.NoError(t, err)
	e := pipeline.NewExecutor(p, &pipeline.ExecContext{View: loadPeople(t)}, pipeline.ExecOptions{})
	assert.EqualError(t, e.Run(), "executing #0 Write create 1 nodes: query writes to a read-only graph")
}

func Test_Write_badEndpoint(t *testing.T) {
	_, err := NewWrite(pipeline.New(), nil, WriteSpec{
		Edges: []EdgeCreate{{Src: CreatedNode(1), Tgt: CreatedNode(0)}},
	}, false)
	assert.Error(t, err)
}

func Test_WriteStats(t *testing.T) {
	var s WriteStats
	s.Add(WriteStats{NodesCreated: 1, PropertiesSet: 2})
	s.Add(WriteStats{NodesCreated: 1, EdgesDeleted: 3})
	assert.Equal(t, WriteStats{NodesCreated: 2, PropertiesSet: 2, EdgesDeleted: 3}, s)
	assert.Equal(t, "nodes created: 2, edges created: 0, properties set: 2, nodes deleted: 0, edges deleted: 3", s.String())
}

func Test_DatabaseProcedure(t *testing.T) {
	g := loadPeople(t)
	kinds := []dataframe.Kind{dataframe.KindInt64, dataframe.KindString, dataframe.KindString}
	tests := []struct {
		name   string
		fields []int
		check  func(t *testing.T, rows [][]interface{})
	}{
		{
			name:   "db.labels",
			fields: []int{1},
			check: func(t *testing.T, rows [][]interface{}) {
				assert.ElementsMatch(t, [][]interface{}{{"Person"}, {"Employee"}, {"Company"}}, rows)
			},
		},
		{
			name:   "db.edgeTypes",
			fields: []int{0, 1},
			check: func(t *testing.T, rows [][]interface{}) {
				assert.Equal(t, [][]interface{}{
					{int64(g.EdgeTypes()["KNOWS"]), "KNOWS"},
					{int64(g.EdgeTypes()["WORKS_AT"]), "WORKS_AT"},
				}, rows)
			},
		},
		{
			name:   "db.propertyTypes",
			fields: []int{1, 2},
			check: func(t *testing.T, rows [][]interface{}) {
				assert.ElementsMatch(t, [][]interface{}{
					{"name", graph.ValueString.String()},
					{"age", graph.ValueInt64.String()},
					{"since", graph.ValueInt64.String()},
				}, rows)
			},
		},
		{
			name:   "db.labelSets",
			fields: []int{0, 1},
			check: func(t *testing.T, rows [][]interface{}) {
				// {Person}, {Person, Employee}, and {Company}.
				assert.Len(t, rows, 4)
			},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			p := pipeline.New()
			var fields []ProcedureField
			var tags []dataframe.ColumnTag
			for _, idx := range test.fields {
				tag := p.NewTag()
				fields = append(fields, ProcedureField{Index: idx, Tag: tag, Name: "f"})
				tags = append(tags, tag)
			}
			proc, err := NewDatabaseProcedure(p, test.name, kinds, fields)
			require.NoError(t, err)
			s := collect(t, p, proc.Output(), tags...)
			execute(t, p, readContext(g, 10))
			test.check(t, s.rows)
		})
	}
	_, err := NewDatabaseProcedure(pipeline.New(), "db.nope", kinds, nil)
	assert.EqualError(t, err, "unknown procedure db.nope")
}

func Test_GraphAdmin(t *testing.T) {
	catalog := memgraph.NewCatalog("../../graph/memgraph/testdata")
	ctx := &pipeline.ExecContext{Catalog: catalog}

	p := pipeline.New()
	create := NewCreateGraph(p, "empty")
	s := collect(t, p, create.Output())
	execute(t, p, ctx)
	require.Len(t, s.rows, 1)
	assert.Equal(t, "empty", s.rows[0][0])
	assert.Equal(t, []interface{}{int64(0), int64(0)}, s.rows[0][2:])

	p = pipeline.New()
	load := NewLoadGraph(p, "people", "people.yaml")
	s = collect(t, p, load.Output())
	execute(t, p, ctx)
	require.Len(t, s.rows, 1)
	assert.Equal(t, []interface{}{int64(3), int64(2)}, s.rows[0][2:])

	p = pipeline.New()
	list := NewListGraph(p)
	s = collect(t, p, list.Output())
	execute(t, p, ctx)
	names := []interface{}{}
	for _, row := range s.rows {
		names = append(names, row[0])
	}
	assert.Equal(t, []interface{}{"empty", "people"}, names)

	p = pipeline.New()
	NewCreateGraph(p, "empty")
	e := pipeline.NewExecutor(p, ctx, pipeline.ExecOptions{})
	assert.Error(t, e.Run())

	p = pipeline.New()
	NewListGraph(p)
	e = pipeline.NewExecutor(p, &pipeline.ExecContext{}, pipeline.ExecOptions{})
	assert.EqualError(t, e.Run(), "executing #0 ListGraph: graph administration is not enabled")
}
