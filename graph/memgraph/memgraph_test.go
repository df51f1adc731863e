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

package memgraph

import (
	"strings"
	"testing"

	"github.com/ebay/akgraph/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(scan func(func(graph.NodeID) bool)) []graph.NodeID {
	var res []graph.NodeID
	scan(func(id graph.NodeID) bool {
		res = append(res, id)
		return true
	})
	return res
}

func Test_LoadYAML(t *testing.T) {
	assert := assert.New(t)
	g, err := LoadYAMLFile("testdata/people.yaml")
	require.NoError(t, err)
	assert.Equal(3, g.NumNodes())
	assert.Equal(2, g.NumEdges())

	labels := g.Labels()
	assert.Equal(map[string]graph.LabelID{"Person": 0, "Employee": 1, "Company": 2}, labels)
	assert.Equal(map[string]graph.EdgeTypeID{"KNOWS": 0, "WORKS_AT": 1}, g.EdgeTypes())
	props := g.PropTypes()
	assert.Equal(graph.ValueInt64, props["age"].Kind)
	assert.Equal(graph.ValueString, props["name"].Kind)

	sets := g.LabelSets()
	require.Len(t, sets, 4)
	assert.Equal(graph.LabelSet{}, sets[0].Labels)
	assert.Equal(graph.LabelSet{0}, sets[1].Labels)
	assert.Equal(graph.LabelSet{0, 1}, sets[2].Labels)
	assert.Equal(graph.LabelSet{2}, sets[3].Labels)

	assert.Equal([]graph.NodeID{1, 2, 3}, collect(func(fn func(graph.NodeID) bool) { g.ScanNodes(0, fn) }))
	assert.Equal([]graph.NodeID{2, 3}, collect(func(fn func(graph.NodeID) bool) { g.ScanNodes(1, fn) }))
	person := graph.NewLabelSet(labels["Person"])
	assert.Equal([]graph.NodeID{1, 2}, collect(func(fn func(graph.NodeID) bool) { g.ScanNodesByLabel(person, 0, fn) }))
	both := graph.NewLabelSet(labels["Person"], labels["Employee"])
	assert.Equal([]graph.NodeID{2}, collect(func(fn func(graph.NodeID) bool) { g.ScanNodesByLabel(both, 0, fn) }))
	assert.Equal([]graph.NodeID{2}, collect(func(fn func(graph.NodeID) bool) { g.ScanNodesByLabel(person, 1, fn) }))

	assert.Equal([]graph.Edge{{ID: 1, Src: 1, Tgt: 2, Type: 0}}, g.OutEdges(1))
	assert.Equal([]graph.Edge{{ID: 1, Src: 1, Tgt: 2, Type: 0}}, g.InEdges(2))
	assert.Empty(g.InEdges(1))

	ls, ok := g.NodeLabelSet(2)
	assert.True(ok)
	assert.Equal(graph.LabelSetID(2), ls)
	assert.Equal([]string{"Employee", "Person"}, g.LabelNames(ls))
	et, ok := g.EdgeType(2)
	assert.True(ok)
	assert.Equal(graph.EdgeTypeID(1), et)

	v, ok := g.NodeProperty(1, props["age"].ID)
	assert.True(ok)
	assert.Equal(int64(31), v)
	_, ok = g.NodeProperty(3, props["age"].ID)
	assert.False(ok)
	v, ok = g.EdgeProperty(1, props["since"].ID)
	assert.True(ok)
	assert.Equal(int64(2010), v)
}

func Test_LoadYAML_errors(t *testing.T) {
	_, err := LoadYAML(strings.NewReader(`
nodes:
  - key: a
    props: {x: 1}
  - key: a
  - key: b
    props: {x: "str"}
edges:
  - src: a
    tgt: zz
    type: T
  - src: a
    tgt: a
`))
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, `node 1: duplicate key "a"`)
	assert.Contains(t, msg, `node 2: property "x" has type Int64, can't store a String`)
	assert.Contains(t, msg, `edge 0: unknown endpoint (src "a", tgt "zz")`)
	assert.Contains(t, msg, `edge 1: missing type`)

	_, err = LoadYAML(strings.NewReader("nodes: [{key: a, bogus: 1}]"))
	assert.Error(t, err)
}

func Test_Writer(t *testing.T) {
	assert := assert.New(t)
	g := New()
	a, err := g.CreateNode([]string{"X"}, nil)
	require.NoError(t, err)
	b, err := g.CreateNode(nil, map[string]interface{}{"w": 1.5})
	require.NoError(t, err)
	e, err := g.CreateEdge(a, b, "R", nil)
	require.NoError(t, err)
	loop, err := g.CreateEdge(a, a, "R", nil)
	require.NoError(t, err)

	_, err = g.CreateEdge(a, 99, "R", nil)
	assert.EqualError(err, "can't create edge: node 99 doesn't exist")
	_, err = g.CreateNode(nil, map[string]interface{}{"bad": []int{1}})
	assert.Error(err)

	require.NoError(t, g.SetNodeProperty(a, "name", "a"))
	assert.EqualError(g.SetNodeProperty(a, "w", "nope"), `property "w" has type Double, can't store a String`)
	require.NoError(t, g.SetEdgeProperty(e, "since", int64(3)))
	assert.Error(g.SetEdgeProperty(77, "since", 1))

	require.NoError(t, g.DeleteEdge(e))
	assert.EqualError(g.DeleteEdge(e), "edge 1 doesn't exist")
	assert.Equal([]graph.Edge{{ID: loop, Src: a, Tgt: a, Type: 0}}, g.OutEdges(a))

	require.NoError(t, g.DeleteNode(a))
	assert.Equal(0, g.NumEdges())
	assert.Equal(1, g.NumNodes())
	assert.EqualError(g.DeleteNode(a), "node 1 doesn't exist")
	x := graph.NewLabelSet(g.Labels()["X"])
	assert.Empty(collect(func(fn func(graph.NodeID) bool) { g.ScanNodesByLabel(x, 0, fn) }))
}

func Test_Catalog(t *testing.T) {
	assert := assert.New(t)
	c := NewCatalog("testdata")
	e, err := c.CreateGraph("empty")
	require.NoError(t, err)
	assert.Equal("empty", e.Name)
	assert.NotEmpty(e.ID)
	assert.Equal(0, e.Nodes)
	_, err = c.CreateGraph("empty")
	assert.EqualError(err, `graph "empty" already exists`)
	_, err = c.CreateGraph("")
	assert.Error(err)

	loaded, err := c.LoadGraph("people", "people.yaml")
	require.NoError(t, err)
	assert.Equal(3, loaded.Nodes)
	_, err = c.LoadGraph("missing", "nope.yaml")
	assert.Error(err)

	names := []string{}
	for _, entry := range c.ListGraphs() {
		names = append(names, entry.Name)
	}
	assert.Equal([]string{"empty", "people"}, names)
	assert.Equal(loaded.ID, c.Get("people").ID.String())
	assert.Equal(3, c.Get("people").Graph.NumNodes())
	assert.Nil(c.Get("nope"))
}
