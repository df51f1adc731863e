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

// Package memgraph is an in-memory graph store. It implements graph.View,
// graph.Metadata, and graph.Writer, and keeps its indexes in B-trees so that
// scans and traversals return entities in ascending ID order.
package memgraph

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ebay/akgraph/graph"
	"github.com/google/btree"
)

// btreeDegree is the degree of every B-tree index.
const btreeDegree = 16

// Graph is an in-memory property graph. It's safe for concurrent use.
type Graph struct {
	lock sync.RWMutex

	labels    map[string]graph.LabelID
	edgeTypes map[string]graph.EdgeTypeID
	propTypes map[string]graph.PropertyType
	// labelSets interns label sets: key is LabelSet.Key().
	labelSets     map[string]graph.LabelSetID
	labelSetsByID []graph.LabelSet

	nextNode graph.NodeID
	nextEdge graph.EdgeID

	// nodes contains nodeItem, ordered by ID.
	nodes *btree.BTree
	// byLabel contains labelItem, ordered by (label, node).
	byLabel *btree.BTree
	// out and in contain adjItem, ordered by (node, edge).
	out   *btree.BTree
	in    *btree.BTree
	edges map[graph.EdgeID]*edgeRecord
}

type nodeItem struct {
	id       graph.NodeID
	labelSet graph.LabelSetID
	props    map[graph.PropertyTypeID]interface{}
}

func (a *nodeItem) Less(than btree.Item) bool {
	return a.id < than.(*nodeItem).id
}

type labelItem struct {
	label graph.LabelID
	node  graph.NodeID
}

func (a labelItem) Less(than btree.Item) bool {
	b := than.(labelItem)
	if a.label != b.label {
		return a.label < b.label
	}
	return a.node < b.node
}

type adjItem struct {
	node graph.NodeID
	edge graph.EdgeID
}

func (a adjItem) Less(than btree.Item) bool {
	b := than.(adjItem)
	if a.node != b.node {
		return a.node < b.node
	}
	return a.edge < b.edge
}

type edgeRecord struct {
	graph.Edge
	props map[graph.PropertyTypeID]interface{}
}

// New returns an empty graph. The empty label set is always interned as label
// set 0.
func New() *Graph {
	g := &Graph{
		labels:    make(map[string]graph.LabelID),
		edgeTypes: make(map[string]graph.EdgeTypeID),
		propTypes: make(map[string]graph.PropertyType),
		labelSets: make(map[string]graph.LabelSetID),
		nextNode:  1,
		nextEdge:  1,
		nodes:     btree.New(btreeDegree),
		byLabel:   btree.New(btreeDegree),
		out:       btree.New(btreeDegree),
		in:        btree.New(btreeDegree),
		edges:     make(map[graph.EdgeID]*edgeRecord),
	}
	g.internLabelSet(graph.LabelSet{})
	return g
}

// Metadata implements graph.View.
func (g *Graph) Metadata() graph.Metadata {
	return g
}

// Labels implements graph.Metadata.
func (g *Graph) Labels() map[string]graph.LabelID {
	g.lock.RLock()
	defer g.lock.RUnlock()
	res := make(map[string]graph.LabelID, len(g.labels))
	for k, v := range g.labels {
		res[k] = v
	}
	return res
}

// EdgeTypes implements graph.Metadata.
func (g *Graph) EdgeTypes() map[string]graph.EdgeTypeID {
	g.lock.RLock()
	defer g.lock.RUnlock()
	res := make(map[string]graph.EdgeTypeID, len(g.edgeTypes))
	for k, v := range g.edgeTypes {
		res[k] = v
	}
	return res
}

// PropTypes implements graph.Metadata.
func (g *Graph) PropTypes() map[string]graph.PropertyType {
	g.lock.RLock()
	defer g.lock.RUnlock()
	res := make(map[string]graph.PropertyType, len(g.propTypes))
	for k, v := range g.propTypes {
		res[k] = v
	}
	return res
}

// LabelSets implements graph.Metadata.
func (g *Graph) LabelSets() []graph.LabelSetEntry {
	g.lock.RLock()
	defer g.lock.RUnlock()
	res := make([]graph.LabelSetEntry, len(g.labelSetsByID))
	for i, s := range g.labelSetsByID {
		res[i] = graph.LabelSetEntry{ID: graph.LabelSetID(i), Labels: s}
	}
	return res
}

// NumNodes returns the number of nodes in the graph.
func (g *Graph) NumNodes() int {
	g.lock.RLock()
	defer g.lock.RUnlock()
	return g.nodes.Len()
}

// NumEdges returns the number of edges in the graph.
func (g *Graph) NumEdges() int {
	g.lock.RLock()
	defer g.lock.RUnlock()
	return len(g.edges)
}

// ScanNodes implements graph.View.
func (g *Graph) ScanNodes(after graph.NodeID, fn func(graph.NodeID) bool) {
	g.lock.RLock()
	defer g.lock.RUnlock()
	g.nodes.AscendGreaterOrEqual(&nodeItem{id: after + 1}, func(item btree.Item) bool {
		return fn(item.(*nodeItem).id)
	})
}

// ScanNodesByLabel implements graph.View. It walks the index of the first
// required label and checks the remaining labels against each node's label
// set.
func (g *Graph) ScanNodesByLabel(labels graph.LabelSet, after graph.NodeID, fn func(graph.NodeID) bool) {
	if len(labels) == 0 {
		g.ScanNodes(after, fn)
		return
	}
	g.lock.RLock()
	defer g.lock.RUnlock()
	first := labels[0]
	g.byLabel.AscendRange(labelItem{first, after + 1}, labelItem{first + 1, 0}, func(item btree.Item) bool {
		id := item.(labelItem).node
		n := g.nodes.Get(&nodeItem{id: id}).(*nodeItem)
		if !g.labelSetsByID[n.labelSet].HasAll(labels) {
			return true
		}
		return fn(id)
	})
}

func (g *Graph) adjacent(index *btree.BTree, node graph.NodeID) []graph.Edge {
	var res []graph.Edge
	index.AscendRange(adjItem{node, 0}, adjItem{node + 1, 0}, func(item btree.Item) bool {
		res = append(res, g.edges[item.(adjItem).edge].Edge)
		return true
	})
	return res
}

// OutEdges implements graph.View.
func (g *Graph) OutEdges(node graph.NodeID) []graph.Edge {
	g.lock.RLock()
	defer g.lock.RUnlock()
	return g.adjacent(g.out, node)
}

// InEdges implements graph.View.
func (g *Graph) InEdges(node graph.NodeID) []graph.Edge {
	g.lock.RLock()
	defer g.lock.RUnlock()
	return g.adjacent(g.in, node)
}

// NodeLabelSet implements graph.View.
func (g *Graph) NodeLabelSet(node graph.NodeID) (graph.LabelSetID, bool) {
	g.lock.RLock()
	defer g.lock.RUnlock()
	item := g.nodes.Get(&nodeItem{id: node})
	if item == nil {
		return 0, false
	}
	return item.(*nodeItem).labelSet, true
}

// EdgeType implements graph.View.
func (g *Graph) EdgeType(edge graph.EdgeID) (graph.EdgeTypeID, bool) {
	g.lock.RLock()
	defer g.lock.RUnlock()
	e, ok := g.edges[edge]
	if !ok {
		return 0, false
	}
	return e.Type, true
}

// NodeProperty implements graph.View.
func (g *Graph) NodeProperty(node graph.NodeID, prop graph.PropertyTypeID) (interface{}, bool) {
	g.lock.RLock()
	defer g.lock.RUnlock()
	item := g.nodes.Get(&nodeItem{id: node})
	if item == nil {
		return nil, false
	}
	v, ok := item.(*nodeItem).props[prop]
	return v, ok
}

// EdgeProperty implements graph.View.
func (g *Graph) EdgeProperty(edge graph.EdgeID, prop graph.PropertyTypeID) (interface{}, bool) {
	g.lock.RLock()
	defer g.lock.RUnlock()
	e, ok := g.edges[edge]
	if !ok {
		return nil, false
	}
	v, ok := e.props[prop]
	return v, ok
}

// LabelNames returns the names of the labels in a label set, sorted.
func (g *Graph) LabelNames(id graph.LabelSetID) []string {
	g.lock.RLock()
	defer g.lock.RUnlock()
	if int(id) >= len(g.labelSetsByID) {
		return nil
	}
	var res []string
	for name, l := range g.labels {
		for _, member := range g.labelSetsByID[id] {
			if member == l {
				res = append(res, name)
			}
		}
	}
	sort.Strings(res)
	return res
}

// internLabelSet returns the ID of the label set, creating it if needed. The
// caller must hold the write lock (or be constructing the graph).
func (g *Graph) internLabelSet(s graph.LabelSet) graph.LabelSetID {
	key := s.Key()
	if id, ok := g.labelSets[key]; ok {
		return id
	}
	id := graph.LabelSetID(len(g.labelSetsByID))
	g.labelSets[key] = id
	g.labelSetsByID = append(g.labelSetsByID, s)
	return id
}

func (g *Graph) label(name string) graph.LabelID {
	if id, ok := g.labels[name]; ok {
		return id
	}
	id := graph.LabelID(len(g.labels))
	g.labels[name] = id
	return id
}

func (g *Graph) edgeType(name string) graph.EdgeTypeID {
	if id, ok := g.edgeTypes[name]; ok {
		return id
	}
	id := graph.EdgeTypeID(len(g.edgeTypes))
	g.edgeTypes[name] = id
	return id
}

// propType returns the property type for the name, creating it with the kind
// of 'value' if needed. It returns an error if the property already exists
// with a different kind.
func (g *Graph) propType(name string, value interface{}) (graph.PropertyType, interface{}, error) {
	value, kind := normalizeValue(value)
	if kind == graph.ValueInvalid {
		return graph.PropertyType{}, nil, fmt.Errorf("unsupported value %v (%T) for property %q", value, value, name)
	}
	pt, ok := g.propTypes[name]
	if !ok {
		pt = graph.PropertyType{ID: graph.PropertyTypeID(len(g.propTypes)), Name: name, Kind: kind}
		g.propTypes[name] = pt
		return pt, value, nil
	}
	if pt.Kind != kind {
		return graph.PropertyType{}, nil, fmt.Errorf("property %q has type %v, can't store a %v", name, pt.Kind, kind)
	}
	return pt, value, nil
}

// normalizeValue converts Go values to the representation used for each
// ValueKind.
func normalizeValue(v interface{}) (interface{}, graph.ValueKind) {
	switch x := v.(type) {
	case int:
		return int64(x), graph.ValueInt64
	case int32:
		return int64(x), graph.ValueInt64
	case int64:
		return x, graph.ValueInt64
	case uint64:
		return x, graph.ValueUInt64
	case float32:
		return float64(x), graph.ValueFloat64
	case float64:
		return x, graph.ValueFloat64
	case string:
		return x, graph.ValueString
	case bool:
		return x, graph.ValueBool
	}
	return v, graph.ValueInvalid
}

func (g *Graph) props(props map[string]interface{}) (map[graph.PropertyTypeID]interface{}, error) {
	res := make(map[graph.PropertyTypeID]interface{}, len(props))
	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		pt, v, err := g.propType(name, props[name])
		if err != nil {
			return nil, err
		}
		res[pt.ID] = v
	}
	return res, nil
}

// CreateNode implements graph.Writer. Labels and property types that don't
// exist yet are added to the catalog.
func (g *Graph) CreateNode(labels []string, props map[string]interface{}) (graph.NodeID, error) {
	g.lock.Lock()
	defer g.lock.Unlock()
	propValues, err := g.props(props)
	if err != nil {
		return 0, err
	}
	ids := make([]graph.LabelID, len(labels))
	for i, name := range labels {
		ids[i] = g.label(name)
	}
	set := graph.NewLabelSet(ids...)
	n := &nodeItem{
		id:       g.nextNode,
		labelSet: g.internLabelSet(set),
		props:    propValues,
	}
	g.nextNode++
	g.nodes.ReplaceOrInsert(n)
	for _, l := range set {
		g.byLabel.ReplaceOrInsert(labelItem{l, n.id})
	}
	return n.id, nil
}

// CreateEdge implements graph.Writer.
func (g *Graph) CreateEdge(src, tgt graph.NodeID, edgeType string, props map[string]interface{}) (graph.EdgeID, error) {
	g.lock.Lock()
	defer g.lock.Unlock()
	for _, n := range []graph.NodeID{src, tgt} {
		if !g.nodes.Has(&nodeItem{id: n}) {
			return 0, fmt.Errorf("can't create edge: node %d doesn't exist", n)
		}
	}
	propValues, err := g.props(props)
	if err != nil {
		return 0, err
	}
	e := &edgeRecord{
		Edge: graph.Edge{
			ID:   g.nextEdge,
			Src:  src,
			Tgt:  tgt,
			Type: g.edgeType(edgeType),
		},
		props: propValues,
	}
	g.nextEdge++
	g.edges[e.ID] = e
	g.out.ReplaceOrInsert(adjItem{src, e.ID})
	g.in.ReplaceOrInsert(adjItem{tgt, e.ID})
	return e.ID, nil
}

// DeleteEdge implements graph.Writer.
func (g *Graph) DeleteEdge(id graph.EdgeID) error {
	g.lock.Lock()
	defer g.lock.Unlock()
	return g.deleteEdgeLocked(id)
}

func (g *Graph) deleteEdgeLocked(id graph.EdgeID) error {
	e, ok := g.edges[id]
	if !ok {
		return fmt.Errorf("edge %d doesn't exist", id)
	}
	delete(g.edges, id)
	g.out.Delete(adjItem{e.Src, id})
	g.in.Delete(adjItem{e.Tgt, id})
	return nil
}

// DeleteNode implements graph.Writer. The node's edges are deleted too.
func (g *Graph) DeleteNode(id graph.NodeID) error {
	g.lock.Lock()
	defer g.lock.Unlock()
	item := g.nodes.Delete(&nodeItem{id: id})
	if item == nil {
		return fmt.Errorf("node %d doesn't exist", id)
	}
	for _, l := range g.labelSetsByID[item.(*nodeItem).labelSet] {
		g.byLabel.Delete(labelItem{l, id})
	}
	for _, e := range append(g.adjacent(g.out, id), g.adjacent(g.in, id)...) {
		// A self-loop shows up in both lists.
		if _, ok := g.edges[e.ID]; ok {
			if err := g.deleteEdgeLocked(e.ID); err != nil {
				return err
			}
		}
	}
	return nil
}

// SetNodeProperty implements graph.Writer.
func (g *Graph) SetNodeProperty(id graph.NodeID, prop string, value interface{}) error {
	g.lock.Lock()
	defer g.lock.Unlock()
	item := g.nodes.Get(&nodeItem{id: id})
	if item == nil {
		return fmt.Errorf("node %d doesn't exist", id)
	}
	pt, v, err := g.propType(prop, value)
	if err != nil {
		return err
	}
	item.(*nodeItem).props[pt.ID] = v
	return nil
}

// SetEdgeProperty implements graph.Writer.
func (g *Graph) SetEdgeProperty(id graph.EdgeID, prop string, value interface{}) error {
	g.lock.Lock()
	defer g.lock.Unlock()
	e, ok := g.edges[id]
	if !ok {
		return fmt.Errorf("edge %d doesn't exist", id)
	}
	pt, v, err := g.propType(prop, value)
	if err != nil {
		return err
	}
	e.props[pt.ID] = v
	return nil
}

var (
	_ graph.View     = (*Graph)(nil)
	_ graph.Metadata = (*Graph)(nil)
	_ graph.Writer   = (*Graph)(nil)
)
