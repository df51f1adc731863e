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

package plangraph

import (
	"fmt"

	"github.com/emirpasic/gods/queues/linkedlistqueue"
)

// PathKind classifies how a node can reach another node in the plan graph.
type PathKind uint8

// Kinds of paths.
const (
	// SameVar means the two nodes are the same.
	SameVar PathKind = iota + 1
	// BackwardPath means the target is an ancestor of the origin: its
	// columns are already in the origin's rows.
	BackwardPath
	// UndirectedPath means the two nodes are on different branches that
	// split from a common ancestor.
	UndirectedPath
	// NoPath means the two nodes are in disconnected parts of the graph.
	NoPath
)

func (k PathKind) String() string {
	switch k {
	case SameVar:
		return "SameVar"
	case BackwardPath:
		return "BackwardPath"
	case UndirectedPath:
		return "UndirectedPath"
	case NoPath:
		return "NoPath"
	}
	return fmt.Sprintf("PathKind(%d)", uint8(k))
}

// Path is the result of ShortestPath.
type Path struct {
	Kind PathKind
	// Ancestor is set for UndirectedPath to the ancestor of the origin from
	// which the downward search reached the target. For SameVar and
	// BackwardPath it's the target. It's InvalidNode for NoPath.
	Ancestor NodeID
}

// Topology answers reachability questions about a plan graph. The results of
// FindCommonSuccessor are cached until the graph changes.
type Topology struct {
	graph        *Graph
	successors   map[[2]NodeID]NodeID
	cacheVersion uint64
}

// NewTopology returns a Topology for the given graph.
func NewTopology(g *Graph) *Topology {
	return &Topology{
		graph:        g,
		successors:   make(map[[2]NodeID]NodeID),
		cacheVersion: g.Version(),
	}
}

type searchItem struct {
	node  NodeID
	pivot NodeID
}

// ShortestPath classifies the path from origin to target. It first searches
// upward from origin through inputs; a match there is a BackwardPath. It
// then searches from every node it saw, going down through outputs and then
// up through inputs; a match there is an UndirectedPath.
func (t *Topology) ShortestPath(origin, target NodeID) Path {
	if origin == target {
		return Path{Kind: SameVar, Ancestor: target}
	}
	phase1 := linkedlistqueue.New()
	phase2 := linkedlistqueue.New()
	visited := map[NodeID]bool{origin: true}
	phase1.Enqueue(origin)
	for !phase1.Empty() {
		item, _ := phase1.Dequeue()
		id := item.(NodeID)
		if id == target {
			return Path{Kind: BackwardPath, Ancestor: target}
		}
		n := t.graph.Node(id)
		for _, in := range n.inputs {
			if !visited[in] {
				visited[in] = true
				phase1.Enqueue(in)
			}
		}
		for _, out := range n.outputs {
			if !visited[out] {
				visited[out] = true
				phase2.Enqueue(searchItem{node: out, pivot: id})
			}
		}
	}
	for !phase2.Empty() {
		item, _ := phase2.Dequeue()
		current := item.(searchItem)
		if current.node == target {
			return Path{Kind: UndirectedPath, Ancestor: current.pivot}
		}
		n := t.graph.Node(current.node)
		for _, out := range n.outputs {
			if !visited[out] {
				visited[out] = true
				phase2.Enqueue(searchItem{node: out, pivot: current.pivot})
			}
		}
		for _, in := range n.inputs {
			if !visited[in] {
				visited[in] = true
				phase2.Enqueue(searchItem{node: in, pivot: current.pivot})
			}
		}
	}
	return Path{Kind: NoPath, Ancestor: InvalidNode}
}

// BranchTip returns the first node without outputs found by a breadth-first
// search down from origin. If several tips are reachable, the closest one
// wins.
func (t *Topology) BranchTip(origin NodeID) NodeID {
	q := linkedlistqueue.New()
	visited := map[NodeID]bool{origin: true}
	q.Enqueue(origin)
	for !q.Empty() {
		item, _ := q.Dequeue()
		n := t.graph.Node(item.(NodeID))
		if len(n.outputs) == 0 {
			return n.ID
		}
		for _, out := range n.outputs {
			if !visited[out] {
				visited[out] = true
				q.Enqueue(out)
			}
		}
	}
	return InvalidNode
}

// DetectLoops returns true if origin is its own ancestor. The search starts
// from origin's inputs and doesn't mark origin as visited, so reaching it
// again means there's a cycle.
func (t *Topology) DetectLoops(origin NodeID) bool {
	q := linkedlistqueue.New()
	visited := make(map[NodeID]bool)
	for _, in := range t.graph.Node(origin).inputs {
		q.Enqueue(in)
	}
	for !q.Empty() {
		item, _ := q.Dequeue()
		id := item.(NodeID)
		if id == origin {
			return true
		}
		for _, in := range t.graph.Node(id).inputs {
			if !visited[in] {
				visited[in] = true
				q.Enqueue(in)
			}
		}
	}
	return false
}

// FindCommonSuccessor returns the first node below 'a' that also has 'b' as
// an ancestor (or is 'b'), or InvalidNode if there's none. If a and b are the
// same node, it returns that node; if either is InvalidNode, it returns the
// other. Results are cached until the graph changes.
func (t *Topology) FindCommonSuccessor(a, b NodeID) NodeID {
	switch {
	case a == b:
		return a
	case a == InvalidNode:
		return b
	case b == InvalidNode:
		return a
	}
	if t.cacheVersion != t.graph.Version() {
		t.successors = make(map[[2]NodeID]NodeID)
		t.cacheVersion = t.graph.Version()
	}
	key := [2]NodeID{a, b}
	if res, ok := t.successors[key]; ok {
		return res
	}
	res := t.findCommonSuccessor(a, b)
	t.successors[key] = res
	return res
}

func (t *Topology) findCommonSuccessor(a, b NodeID) NodeID {
	down := linkedlistqueue.New()
	up := linkedlistqueue.New()
	visited := map[NodeID]bool{a: true}
	down.Enqueue(a)
	for !down.Empty() {
		item, _ := down.Dequeue()
		id := item.(NodeID)
		n := t.graph.Node(id)
		for _, out := range n.outputs {
			if !visited[out] {
				visited[out] = true
				down.Enqueue(out)
			}
		}
		// The successor must be strictly below a.
		if id == a {
			continue
		}
		if id == b {
			return id
		}
		up.Clear()
		for _, in := range n.inputs {
			if !visited[in] {
				visited[in] = true
				up.Enqueue(in)
			}
		}
		for !up.Empty() {
			item, _ := up.Dequeue()
			in := item.(NodeID)
			if in == b {
				return id
			}
			for _, next := range t.graph.Node(in).inputs {
				if !visited[next] {
					visited[next] = true
					up.Enqueue(next)
				}
			}
		}
	}
	return InvalidNode
}

// FindNextVar returns the first Var node found by a breadth-first search down
// from node, including node itself, or InvalidNode.
func (t *Topology) FindNextVar(node NodeID) NodeID {
	q := linkedlistqueue.New()
	visited := map[NodeID]bool{node: true}
	q.Enqueue(node)
	for !q.Empty() {
		item, _ := q.Dequeue()
		n := t.graph.Node(item.(NodeID))
		if _, ok := n.Op.(*Var); ok {
			return n.ID
		}
		for _, out := range n.outputs {
			if !visited[out] {
				visited[out] = true
				q.Enqueue(out)
			}
		}
	}
	return InvalidNode
}
