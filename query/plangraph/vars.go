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
	"github.com/ebay/akgraph/query/ast"
	"github.com/emirpasic/gods/queues/linkedlistqueue"
)

// VarEntry locates a pattern variable in the plan: its Var node and the
// Filter node just before it.
type VarEntry struct {
	Var    NodeID
	Filter NodeID
}

// Variables maps the pattern variables of a query to their plan nodes, and
// hands out declaration orders.
type Variables struct {
	graph   *Graph
	entries map[*ast.VarDecl]VarEntry
	// decls lists the registered variables in registration order, so that
	// iteration is deterministic.
	decls     []*ast.VarDecl
	nextOrder int
}

// NewVariables returns an empty registry for variables of the given graph.
func NewVariables(g *Graph) *Variables {
	return &Variables{
		graph:   g,
		entries: make(map[*ast.VarDecl]VarEntry),
	}
}

// Lookup returns the plan nodes of a variable.
func (v *Variables) Lookup(decl *ast.VarDecl) (VarEntry, bool) {
	e, ok := v.entries[decl]
	return e, ok
}

// VarNode returns the Var node of a variable, or InvalidNode if the variable
// isn't bound in the plan.
func (v *Variables) VarNode(decl *ast.VarDecl) NodeID {
	if e, ok := v.entries[decl]; ok {
		return e.Var
	}
	return InvalidNode
}

// FilterOf returns the Filter node in front of a Var node, or InvalidNode.
func (v *Variables) FilterOf(varNode NodeID) NodeID {
	op, ok := v.graph.Node(varNode).Op.(*Var)
	if !ok {
		return InvalidNode
	}
	if e, ok := v.entries[op.Decl]; ok && e.Var == varNode {
		return e.Filter
	}
	return InvalidNode
}

// Create adds a Filter node followed by a Var node for a new variable. The
// Filter has no inputs yet; the caller connects it. The variable takes the
// next declaration order.
func (v *Variables) Create(decl *ast.VarDecl) VarEntry {
	filter := v.graph.Add(&Filter{Decl: decl})
	varNode := v.graph.NewOut(filter, &Var{Decl: decl, Order: v.nextOrder})
	v.nextOrder++
	e := VarEntry{Var: varNode, Filter: filter}
	v.entries[decl] = e
	v.decls = append(v.decls, decl)
	return e
}

// Decls returns the registered variables in registration order.
func (v *Variables) Decls() []*ast.VarDecl {
	return v.decls
}

// ResetOrder restarts declaration orders from 0. It's called at the start of
// every pattern element.
func (v *Variables) ResetOrder() {
	v.nextOrder = 0
}

// SetNextOrder sets the declaration order of the next created variable.
func (v *Variables) SetNextOrder(order int) {
	v.nextOrder = order
}

// Order returns the declaration order of a Var node.
func (v *Variables) Order(varNode NodeID) int {
	return v.graph.Node(varNode).Op.(*Var).Order
}

// IncrementOrders shifts the declaration order of every Var node at or below
// 'from' by 'order'+1. It's used when a pattern reaches an existing variable,
// so that the existing variable and the variables after it sort after the
// variables of the pattern that leads to it.
func (v *Variables) IncrementOrders(order int, from NodeID) {
	q := linkedlistqueue.New()
	q.Enqueue(from)
	visited := map[NodeID]bool{from: true}
	for !q.Empty() {
		item, _ := q.Dequeue()
		n := v.graph.Node(item.(NodeID))
		if op, ok := n.Op.(*Var); ok {
			op.Order += order + 1
		}
		for _, out := range n.outputs {
			if !visited[out] {
				visited[out] = true
				q.Enqueue(out)
			}
		}
	}
}
