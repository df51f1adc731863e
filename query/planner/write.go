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

package planner

import (
	"github.com/ebay/akgraph/query/ast"
	"github.com/ebay/akgraph/query/plangraph"
)

// writeNode returns the Write node that the next write statement adds to.
// Consecutive write statements share one Write node.
func (g *generator) writeNode(prev plangraph.NodeID) (plangraph.NodeID, *plangraph.Write) {
	switch {
	case prev == plangraph.InvalidNode:
		g.write = g.plan.Add(new(plangraph.Write))
	case prev == g.write:
	default:
		g.write = g.plan.NewOut(prev, new(plangraph.Write))
	}
	return g.write, g.plan.Op(g.write).(*plangraph.Write)
}

// fetchForWrite makes the properties that a written value reads available
// to the Write node.
func (g *generator) fetchForWrite(node plangraph.NodeID, w *plangraph.Write, e ast.Expr) error {
	var err error
	ast.Walk(e, func(x ast.Expr) bool {
		if err != nil {
			return false
		}
		switch x := x.(type) {
		case *ast.Property:
			if w.IsPending(x.Decl) || len(g.plan.Node(node).Inputs()) == 0 {
				err = errorf(x.Loc(), "Write statements can only read properties of matched entities")
				return false
			}
			key := propKey{x.Decl, x.PropType.ID}
			if !g.writeFetches[key] {
				g.writeFetches[key] = true
				g.plan.InsertBefore(node, &plangraph.GetPropertyWithNull{Decl: x.Decl, PropType: x.PropType})
			}
		case *ast.EntityTypes, *ast.PathExpr:
			err = errorf(x.Loc(), "Unsupported expression in a write statement: %v", x)
		case *ast.FunctionInvocation:
			if x.Aggregate {
				err = errorf(x.Loc(), "Aggregate functions are not allowed in write statements")
			}
		}
		return err == nil
	})
	return err
}

// bound returns true if the variable refers to an existing or pending
// entity.
func (g *generator) bound(w *plangraph.Write, decl *ast.VarDecl) bool {
	return g.vars.VarNode(decl) != plangraph.InvalidNode || w.IsPending(decl)
}

func (g *generator) create(stmt *ast.CreateStmt, prev plangraph.NodeID) (plangraph.NodeID, error) {
	node, w := g.writeNode(prev)
	for _, element := range stmt.Patterns {
		if element.Origin == nil {
			return node, errorf(element.Loc(), "CREATE statement must have a node pattern as origin")
		}
		lhs, err := g.createNode(node, w, element.Origin)
		if err != nil {
			return node, err
		}
		for _, link := range element.Chain {
			rhs, err := g.createNode(node, w, link.Target)
			if err != nil {
				return node, err
			}
			e := link.Edge
			if g.bound(w, e.Decl) {
				return node, errorf(e.Loc(), "Cannot create edge %v, the variable is already bound", e.Decl)
			}
			if len(e.TypeNames) != 1 {
				return node, errorf(e.Loc(), "Created edges need exactly one edge type")
			}
			edge := &plangraph.PendingEdge{Decl: e.Decl, Type: e.TypeNames[0], Props: e.Props}
			switch e.Direction {
			case ast.DirOut:
				edge.Src, edge.Tgt = lhs, rhs
			case ast.DirIn:
				edge.Src, edge.Tgt = rhs, lhs
			default:
				return node, errorf(e.Loc(), "Cannot use undirected edges in write statements")
			}
			for _, p := range e.Props {
				if err := g.fetchForWrite(node, w, p.Value); err != nil {
					return node, err
				}
			}
			w.Edges = append(w.Edges, edge)
			lhs = rhs
		}
	}
	return node, nil
}

// createNode returns the variable of a node in a CREATE pattern, adding a
// pending node to the Write if the variable isn't bound yet.
func (g *generator) createNode(node plangraph.NodeID, w *plangraph.Write, n *ast.NodePattern) (*ast.VarDecl, error) {
	if g.bound(w, n.Decl) {
		if len(n.LabelNames) > 0 || len(n.Props) > 0 {
			return nil, errorf(n.Loc(), "Cannot add labels or properties to the bound variable %v", n.Decl)
		}
		return n.Decl, nil
	}
	for _, p := range n.Props {
		if err := g.fetchForWrite(node, w, p.Value); err != nil {
			return nil, err
		}
	}
	w.Nodes = append(w.Nodes, &plangraph.PendingNode{Decl: n.Decl, Labels: n.LabelNames, Props: n.Props})
	return n.Decl, nil
}

func (g *generator) set(stmt *ast.SetStmt, prev plangraph.NodeID) (plangraph.NodeID, error) {
	node, w := g.writeNode(prev)
	for _, item := range stmt.Items {
		if !g.bound(w, item.Decl) {
			return node, errorf(item.Loc(), "variable %v is not bound", item.Decl)
		}
		if item.Decl.Kind == ast.VarValue {
			return node, errorf(item.Loc(), "Can only set properties of nodes or edges, not %v", item.Decl.Type)
		}
		if err := g.fetchForWrite(node, w, item.Value); err != nil {
			return node, err
		}
		w.Sets = append(w.Sets, item)
	}
	return node, nil
}

func (g *generator) delete(stmt *ast.DeleteStmt, prev plangraph.NodeID) (plangraph.NodeID, error) {
	node, w := g.writeNode(prev)
	for _, decl := range stmt.Targets {
		switch decl.Kind {
		case ast.VarNode, ast.VarEdge:
		default:
			return node, errorf(stmt.Loc(), "Can only delete nodes or edges, not '%v'", decl.Type)
		}
		if w.IsPending(decl) {
			return node, errorf(stmt.Loc(), "Cannot delete pending %v %v", decl.Kind, decl)
		}
		if g.vars.VarNode(decl) == plangraph.InvalidNode {
			return node, errorf(stmt.Loc(), "Cannot delete %v, the variable is not bound", decl)
		}
		if decl.Kind == ast.VarNode {
			w.DeleteNodes = append(w.DeleteNodes, decl)
		} else {
			w.DeleteEdges = append(w.DeleteEdges, decl)
		}
	}
	return node, nil
}
