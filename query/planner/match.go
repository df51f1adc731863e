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
	log "github.com/sirupsen/logrus"
)

// propConstraint is a property in a MATCH pattern, as in (n {name: "Bob"}).
type propConstraint struct {
	// varNode is the Var node of the entity.
	varNode plangraph.NodeID
	// expr compares the property with the constraint's value.
	expr ast.Expr
}

// match adds the patterns of a MATCH clause to the plan, then attaches its
// WHERE conjuncts to the filters of the variables they depend on.
func (g *generator) match(stmt *ast.MatchStmt) error {
	for _, element := range stmt.Patterns {
		if err := g.patternElement(element); err != nil {
			return err
		}
	}
	if stmt.Where != nil {
		return g.where(stmt.Where)
	}
	return nil
}

// patternElement builds the Scan -> Filter -> Var -> expand -> ... chain for
// a pattern element.
func (g *generator) patternElement(element *ast.PatternElement) error {
	if element.Origin == nil {
		return errorf(element.Loc(), "Empty match pattern element")
	}
	// Declaration orders restart at every pattern element.
	g.vars.ResetOrder()
	current := g.origin(element.Origin)
	for _, link := range element.Chain {
		var err error
		current, err = g.edge(current, link.Edge)
		if err != nil {
			return err
		}
		current, err = g.target(current, link.Target)
		if err != nil {
			return err
		}
	}
	return nil
}

// origin returns the Var node for the first node of a pattern element,
// scanning all nodes if the variable is new.
func (g *generator) origin(n *ast.NodePattern) plangraph.NodeID {
	entry, ok := g.vars.Lookup(n.Decl)
	if ok {
		g.vars.SetNextOrder(g.vars.Order(entry.Var) + 1)
	} else {
		scan := g.plan.Add(new(plangraph.ScanNodes))
		entry = g.vars.Create(n.Decl)
		g.plan.Connect(scan, entry.Filter)
	}
	g.filter(entry.Filter).AddLabels(n.Labels, n.LabelNames)
	g.addPropConstraints(entry.Var, n.Decl, n.Props)
	return entry.Var
}

func (g *generator) edge(prev plangraph.NodeID, e *ast.EdgePattern) (plangraph.NodeID, error) {
	var expand plangraph.Operator
	switch e.Direction {
	case ast.DirOut:
		expand = new(plangraph.GetOutEdges)
	case ast.DirIn:
		expand = new(plangraph.GetInEdges)
	case ast.DirAny:
		expand = new(plangraph.GetEdges)
	default:
		return plangraph.InvalidNode, fatalf("unexpected edge direction %v", e.Direction)
	}
	if len(e.Types) > 1 {
		return plangraph.InvalidNode, errorf(e.Loc(), "Only one edge type constraint is supported for now")
	}
	if _, ok := g.vars.Lookup(e.Decl); ok {
		return plangraph.InvalidNode, errorf(e.Loc(), "Re-using the same edge variable, this is not supported")
	}
	expandNode := g.plan.NewOut(prev, expand)
	entry := g.vars.Create(e.Decl)
	g.plan.Connect(expandNode, entry.Filter)
	filter := g.filter(entry.Filter)
	for i, t := range e.Types {
		filter.AddEdgeType(t, nameAt(e.TypeNames, i))
	}
	g.addPropConstraints(entry.Var, e.Decl, e.Props)
	return entry.Var, nil
}

// target returns the Var node for the node an edge leads to. If the variable
// was bound before, the edge's target feeds into its existing filter, and
// the plan must not have become cyclic.
func (g *generator) target(prev plangraph.NodeID, n *ast.NodePattern) (plangraph.NodeID, error) {
	get := g.plan.NewOut(prev, new(plangraph.GetEdgeTarget))
	entry, ok := g.vars.Lookup(n.Decl)
	if ok {
		g.vars.IncrementOrders(g.vars.Order(prev), entry.Filter)
		g.plan.Connect(get, entry.Filter)
		if g.topo.DetectLoops(entry.Filter) {
			return plangraph.InvalidNode, errorf(n.Loc(), "Loop detected. This is not supported yet")
		}
	} else {
		entry = g.vars.Create(n.Decl)
		g.plan.Connect(get, entry.Filter)
	}
	g.filter(entry.Filter).AddLabels(n.Labels, n.LabelNames)
	g.addPropConstraints(entry.Var, n.Decl, n.Props)
	return entry.Var, nil
}

func (g *generator) addPropConstraints(varNode plangraph.NodeID, decl *ast.VarDecl, props []ast.PropConstraint) {
	for _, p := range props {
		g.props = append(g.props, propConstraint{
			varNode: varNode,
			expr: &ast.Binary{
				Location: p.Location,
				Op:       ast.OpEqual,
				LHS:      &ast.Property{Location: p.Location, Decl: decl, PropType: p.PropType},
				RHS:      p.Value,
			},
		})
	}
}

// where splits a WHERE expression on its top-level ANDs. Label and edge type
// tests are pushed into their variable's filter. Every other conjunct
// becomes a predicate on the filter of the latest variable it depends on.
func (g *generator) where(e ast.Expr) error {
	for _, conjunct := range ast.Conjuncts(e) {
		if types, ok := conjunct.(*ast.EntityTypes); ok {
			if err := g.pushEntityTypes(types); err != nil {
				return err
			}
			continue
		}
		deps, err := g.vars.Dependencies(conjunct)
		if err != nil {
			return errorf(conjunct.Loc(), "%v", err)
		}
		latest, ok := deps.Latest(g.vars)
		if !ok {
			return errorf(conjunct.Loc(), "Where clauses without dependencies are not supported yet")
		}
		pred := &plangraph.Predicate{
			Expr:   conjunct,
			Deps:   deps,
			Filter: g.vars.FilterOf(latest.Var),
		}
		g.filter(pred.Filter).AddPredicate(pred)
		g.predicates = append(g.predicates, pred)
	}
	return nil
}

func (g *generator) pushEntityTypes(e *ast.EntityTypes) error {
	entry, ok := g.vars.Lookup(e.Decl)
	if !ok {
		return errorf(e.Loc(), "variable %v is not bound by a pattern", e.Decl)
	}
	filter := g.filter(entry.Filter)
	if e.Decl.Kind == ast.VarEdge {
		if len(e.EdgeTypes) != 1 {
			return errorf(e.Loc(), "Only one edge type constraint is supported for now")
		}
		filter.AddEdgeType(e.EdgeTypes[0], nameAt(e.Names, 0))
		if len(filter.EdgeTypes) > 1 {
			return errorf(e.Loc(), "Only one edge type constraint is supported for now")
		}
		return nil
	}
	filter.AddLabels(e.Labels, e.Names)
	return nil
}

// finishMatch runs once all the MATCH clauses are planned. It adds the joins
// that bring every predicate's dependencies into one row stream, then folds
// the plan's branches into a single endpoint, which it returns.
func (g *generator) finishMatch() (plangraph.NodeID, error) {
	g.placeJoinsOnVars()
	if err := g.placePropConstraints(); err != nil {
		return plangraph.InvalidNode, err
	}
	if err := g.placePredicateJoins(); err != nil {
		return plangraph.InvalidNode, err
	}
	return g.endpoint()
}

// placeJoinsOnVars joins the streams that reach the same variable from
// different edges. Joins are binary, so a variable with more than two
// inputs gets a chain of them.
func (g *generator) placeJoinsOnVars() {
	for _, decl := range g.vars.Decls() {
		entry, _ := g.vars.Lookup(decl)
		inputs := g.plan.Node(entry.Filter).Inputs()
		if len(inputs) < 2 {
			continue
		}
		extra := append([]plangraph.NodeID(nil), inputs[2:]...)
		join := g.plan.InsertBefore(entry.Filter, &plangraph.Join{Kind: plangraph.JoinOnTarget})
		for _, in := range extra {
			g.plan.Disconnect(in, join)
			join = g.plan.InsertBefore(entry.Filter, &plangraph.Join{Kind: plangraph.JoinOnTarget})
			g.plan.Connect(in, join)
		}
	}
}

// placePropConstraints attaches each pattern property constraint to the
// latest variable it reads, with the data flow it needs.
func (g *generator) placePropConstraints() error {
	for _, p := range g.props {
		deps, err := g.vars.Dependencies(p.expr)
		if err != nil {
			return errorf(p.expr.Loc(), "%v", err)
		}
		host := p.varNode
		order := g.vars.Order(host)
		for _, dep := range deps.Vars {
			if o := g.vars.Order(dep.Var); o > order {
				host, order = dep.Var, o
			}
		}
		for _, dep := range deps.Vars {
			if err := g.insertDataFlow(host, dep.Var); err != nil {
				return err
			}
		}
		pred := &plangraph.Predicate{Expr: p.expr, Deps: deps, Filter: g.vars.FilterOf(host)}
		g.filter(pred.Filter).AddPredicate(pred)
	}
	return nil
}

// placePredicateJoins makes each WHERE predicate's dependencies available at
// the filter that evaluates it. If the branches of the dependencies already
// merge below the predicate's variable, the predicate moves down to the
// first variable after the merge.
func (g *generator) placePredicateJoins() error {
	for _, pred := range g.predicates {
		host := g.vars.VarNode(g.filter(pred.Filter).Decl)
		next, err := pred.Deps.CommonSuccessor(g.topo, host)
		if err != nil {
			return errorf(pred.Expr.Loc(), "%v", err)
		}
		if next != host {
			g.filter(pred.Filter).RemovePredicate(pred)
			pred.Filter = g.vars.FilterOf(next)
			if pred.Filter == plangraph.InvalidNode {
				return fatalf("variable node %d has no filter", next)
			}
			g.filter(pred.Filter).AddPredicate(pred)
			host = next
		}
		for _, dep := range pred.Deps.Vars {
			if err := g.insertDataFlow(host, dep.Var); err != nil {
				return err
			}
		}
	}
	return nil
}

// insertDataFlow makes the variable 'dep' readable at the filter of 'host',
// depending on how the two are connected.
func (g *generator) insertDataFlow(host, dep plangraph.NodeID) error {
	filter := g.vars.FilterOf(host)
	path := g.topo.ShortestPath(host, dep)
	log.WithFields(log.Fields{
		"host": g.plan.Op(host),
		"dep":  g.plan.Op(dep),
		"path": path.Kind,
	}).Debug("Placing data flow")
	switch path.Kind {
	case plangraph.SameVar:
		return nil
	case plangraph.BackwardPath:
		// The dependency is already in the stream, but the filter needs
		// its rows pinned down.
		inputs := g.plan.Node(filter).Inputs()
		if len(inputs) == 1 && g.plan.Op(inputs[0]).Opcode() == plangraph.OpMaterialize {
			return nil
		}
		g.plan.InsertBefore(filter, new(plangraph.Materialize))
		return nil
	case plangraph.UndirectedPath:
		join := g.plan.InsertBefore(filter, &plangraph.Join{
			Kind:     plangraph.JoinOnAncestor,
			Ancestor: g.declOf(path.Ancestor),
		})
		g.plan.Connect(g.topo.BranchTip(dep), join)
		if g.topo.DetectLoops(join) {
			return fatalf("joining %v into %v created a cycle", g.plan.Op(dep), g.plan.Op(host))
		}
		return nil
	case plangraph.NoPath:
		product := g.plan.InsertBefore(filter, new(plangraph.CartesianProduct))
		g.plan.Connect(g.topo.BranchTip(dep), product)
		return nil
	}
	return fatalf("unexpected path kind %v", path.Kind)
}

// endpoint folds the branch endpoints of the plan into one, left to right:
// the first endpoint is joined with the second, that join with the third,
// and so on.
func (g *generator) endpoint() (plangraph.NodeID, error) {
	ends := g.plan.Endpoints()
	if len(ends) == 0 {
		return plangraph.InvalidNode, errorf(ast.Location{}, "No endpoints found, loops are not supported yet")
	}
	rhs := ends[0]
	for _, lhs := range ends[1:] {
		path := g.topo.ShortestPath(rhs, lhs)
		var op plangraph.Operator
		switch path.Kind {
		case plangraph.UndirectedPath:
			op = &plangraph.Join{Kind: plangraph.JoinOnAncestor, Ancestor: g.declOf(path.Ancestor)}
		case plangraph.NoPath:
			op = new(plangraph.CartesianProduct)
		default:
			return plangraph.InvalidNode, fatalf("unexpected %v between endpoints %v and %v",
				path.Kind, g.plan.Op(rhs), g.plan.Op(lhs))
		}
		join := g.plan.Add(op)
		g.plan.Connect(rhs, join)
		g.plan.Connect(lhs, join)
		rhs = join
	}
	return rhs, nil
}

func nameAt(names []string, i int) string {
	if i < len(names) {
		return names[i]
	}
	return ""
}
