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

// Package plangraph holds the logical plan of a query: a directed graph of
// operators such as scans, expansions, filters, joins, and projections, plus
// the topology algorithms the planner uses to decide where joins and
// materialization points go.
//
// The Graph is an arena. Nodes are referred to by NodeID handles, which stay
// valid for the lifetime of the Graph; removed nodes leave an empty slot
// behind rather than shifting other handles.
package plangraph

import (
	log "github.com/sirupsen/logrus"
)

// NodeID is a handle to a node in a Graph.
type NodeID int

// InvalidNode is returned by lookups that find nothing.
const InvalidNode NodeID = -1

// Node is a vertex of the plan graph. Data flows from a node's inputs to the
// node and on to its outputs.
type Node struct {
	ID NodeID
	Op Operator
	// The order of inputs is significant for binary operators: the first
	// input is the left side.
	inputs  []NodeID
	outputs []NodeID
}

// Inputs returns the node's inputs. The caller must not modify the slice.
func (n *Node) Inputs() []NodeID {
	return n.inputs
}

// Outputs returns the node's outputs. The caller must not modify the slice.
func (n *Node) Outputs() []NodeID {
	return n.outputs
}

// Graph is the plan of one query.
type Graph struct {
	nodes []*Node
	// version is incremented on every change to the edges of the graph.
	version uint64
}

// New returns an empty plan graph.
func New() *Graph {
	return &Graph{}
}

// Add creates a new node without any inputs or outputs.
func (g *Graph) Add(op Operator) NodeID {
	id := NodeID(len(g.nodes))
	g.nodes = append(g.nodes, &Node{ID: id, Op: op})
	g.version++
	return id
}

// Node returns the node with the given ID. It panics if the node doesn't
// exist or was removed, which indicates a bug in the caller.
func (g *Graph) Node(id NodeID) *Node {
	if id < 0 || int(id) >= len(g.nodes) || g.nodes[id] == nil {
		log.Panicf("plangraph: invalid node %d", id)
	}
	return g.nodes[id]
}

// Contains returns true if the node exists and hasn't been removed.
func (g *Graph) Contains(id NodeID) bool {
	return id >= 0 && int(id) < len(g.nodes) && g.nodes[id] != nil
}

// Op returns the operator of a node.
func (g *Graph) Op(id NodeID) Operator {
	return g.Node(id).Op
}

// Version returns a counter that changes whenever nodes are added, removed,
// or rewired.
func (g *Graph) Version() uint64 {
	return g.version
}

// Connect adds an edge from 'from' to 'to'.
func (g *Graph) Connect(from, to NodeID) {
	f, t := g.Node(from), g.Node(to)
	f.outputs = append(f.outputs, to)
	t.inputs = append(t.inputs, from)
	g.version++
}

// Disconnect removes one edge from 'from' to 'to', if there is one.
func (g *Graph) Disconnect(from, to NodeID) {
	f, t := g.Node(from), g.Node(to)
	removeFirst(&f.outputs, to)
	removeFirst(&t.inputs, from)
	g.version++
}

// NewOut creates a node and connects 'prev' to it.
func (g *Graph) NewOut(prev NodeID, op Operator) NodeID {
	id := g.Add(op)
	g.Connect(prev, id)
	return id
}

// InsertBefore creates a node that takes over all the inputs of 'node' and
// feeds into it. Each former input keeps its position in its list of
// outputs.
func (g *Graph) InsertBefore(node NodeID, op Operator) NodeID {
	id := g.Add(op)
	n, inserted := g.Node(node), g.Node(id)
	for _, in := range n.inputs {
		outs := g.Node(in).outputs
		for i := range outs {
			if outs[i] == node {
				outs[i] = id
				break
			}
		}
	}
	inserted.inputs = n.inputs
	n.inputs = []NodeID{id}
	inserted.outputs = []NodeID{node}
	g.version++
	return id
}

// InsertAfter creates a node that takes over all the outputs of 'node' and
// is fed by it. Each former output keeps its inputs in the same order.
func (g *Graph) InsertAfter(node NodeID, op Operator) NodeID {
	id := g.Add(op)
	n, inserted := g.Node(node), g.Node(id)
	for _, out := range n.outputs {
		ins := g.Node(out).inputs
		for i := range ins {
			if ins[i] == node {
				ins[i] = id
				break
			}
		}
	}
	inserted.outputs = n.outputs
	n.outputs = []NodeID{id}
	inserted.inputs = []NodeID{node}
	g.version++
	return id
}

// ClearInputs disconnects the node from all of its inputs.
func (g *Graph) ClearInputs(id NodeID) {
	n := g.Node(id)
	for _, in := range n.inputs {
		removeFirst(&g.Node(in).outputs, id)
	}
	n.inputs = nil
	g.version++
}

// ClearOutputs disconnects the node from all of its outputs.
func (g *Graph) ClearOutputs(id NodeID) {
	n := g.Node(id)
	for _, out := range n.outputs {
		removeFirst(&g.Node(out).inputs, id)
	}
	n.outputs = nil
	g.version++
}

// Remove disconnects a node and removes it from the graph.
func (g *Graph) Remove(id NodeID) {
	g.ClearInputs(id)
	g.ClearOutputs(id)
	g.nodes[id] = nil
	g.version++
}

// RemoveIsolatedNodes removes the nodes without inputs or outputs, except
// terminal nodes, which may stand alone. It returns the number of nodes
// removed.
func (g *Graph) RemoveIsolatedNodes() int {
	removed := 0
	for _, n := range g.nodes {
		if n != nil && len(n.inputs) == 0 && len(n.outputs) == 0 && !IsTerminal(n.Op) {
			g.Remove(n.ID)
			removed++
		}
	}
	return removed
}

// Nodes returns the nodes of the graph in ID order.
func (g *Graph) Nodes() []*Node {
	res := make([]*Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		if n != nil {
			res = append(res, n)
		}
	}
	return res
}

// Len returns the number of nodes in the graph.
func (g *Graph) Len() int {
	count := 0
	for _, n := range g.nodes {
		if n != nil {
			count++
		}
	}
	return count
}

// Roots returns the nodes without inputs, in ID order.
func (g *Graph) Roots() []NodeID {
	var res []NodeID
	for _, n := range g.nodes {
		if n != nil && len(n.inputs) == 0 {
			res = append(res, n.ID)
		}
	}
	return res
}

// Endpoints returns the nodes without outputs, in ID order.
func (g *Graph) Endpoints() []NodeID {
	var res []NodeID
	for _, n := range g.nodes {
		if n != nil && len(n.outputs) == 0 {
			res = append(res, n.ID)
		}
	}
	return res
}

// removeFirst removes the first occurrence of id from the list.
func removeFirst(list *[]NodeID, id NodeID) {
	l := *list
	for i := range l {
		if l[i] == id {
			*list = append(l[:i:i], l[i+1:]...)
			return
		}
	}
}
