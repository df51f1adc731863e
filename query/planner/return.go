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
	"github.com/ebay/akgraph/graph"
	"github.com/ebay/akgraph/query/ast"
	"github.com/ebay/akgraph/query/plangraph"
)

type propKey struct {
	decl *ast.VarDecl
	prop graph.PropertyTypeID
}

// fetches adds the nodes that read properties and entity types to a
// chain. Each (variable, property) pair is fetched once.
type fetches struct {
	plan  *plangraph.Graph
	props map[propKey]bool
	types map[*ast.VarDecl]bool
}

func newFetches(plan *plangraph.Graph) *fetches {
	return &fetches{
		plan:  plan,
		props: make(map[propKey]bool),
		types: make(map[*ast.VarDecl]bool),
	}
}

// add walks the expression and chains a fetch after 'prev' for each
// property or entity type it reads that isn't fetched yet. It returns the
// new end of the chain.
func (f *fetches) add(prev plangraph.NodeID, e ast.Expr) (plangraph.NodeID, error) {
	var err error
	ast.Walk(e, func(x ast.Expr) bool {
		if err != nil {
			return false
		}
		switch x := x.(type) {
		case *ast.Property:
			key := propKey{x.Decl, x.PropType.ID}
			if !f.props[key] {
				f.props[key] = true
				prev = f.plan.NewOut(prev, &plangraph.GetPropertyWithNull{Decl: x.Decl, PropType: x.PropType})
			}
		case *ast.EntityTypes:
			if !f.types[x.Decl] {
				f.types[x.Decl] = true
				prev = f.plan.NewOut(prev, &plangraph.GetEntityType{Decl: x.Decl})
			}
		case *ast.PathExpr:
			err = errorf(x.Loc(), "Path expression not supported yet")
		}
		return true
	})
	return prev, err
}

// returnStmt chains the nodes that compute the RETURN items after 'prev':
// property and entity type fetches, function evaluation, aggregation, then
// ORDER BY, SKIP, LIMIT, and finally ProduceResults.
func (g *generator) returnStmt(stmt *ast.ReturnStmt, prev plangraph.NodeID) (plangraph.NodeID, error) {
	if prev == plangraph.InvalidNode {
		return prev, errorf(stmt.Loc(), "Return statement without previous node")
	}
	if stmt.Distinct {
		return prev, errorf(stmt.Loc(), "DISTINCT not supported")
	}
	aggregating := false
	for _, item := range stmt.Items {
		if ast.HasAggregate(item.Expr) {
			aggregating = true
		}
	}

	fetch := newFetches(g.plan)
	var funcs, aggregates []*ast.FunctionInvocation
	var groupBy []ast.Expr
	for _, item := range stmt.Items {
		var err error
		prev, err = fetch.add(prev, item.Expr)
		if err != nil {
			return prev, err
		}
		if err := collectFuncs(item.Expr, false, &funcs, &aggregates); err != nil {
			return prev, err
		}
		if aggregating && !ast.HasAggregate(item.Expr) {
			switch item.Expr.(type) {
			case *ast.Symbol, *ast.Property:
				groupBy = append(groupBy, item.Expr)
			default:
				return prev, errorf(item.Expr.Loc(), "Complex grouping keys are not supported yet. "+
					"Only variables (e.g. n), or property expression (e.g. n.name) are allowed")
			}
		}
	}
	for _, sort := range stmt.OrderBy {
		if ast.HasAggregate(sort.Expr) {
			return prev, errorf(sort.Expr.Loc(), "Aggregate functions are not allowed in ORDER BY")
		}
		if !aggregating {
			// ORDER BY may read properties that aren't returned. After
			// aggregating, only the group keys and aggregates exist.
			var err error
			prev, err = fetch.add(prev, sort.Expr)
			if err != nil {
				return prev, err
			}
			if err := collectFuncs(sort.Expr, false, &funcs, &aggregates); err != nil {
				return prev, err
			}
		}
	}

	if len(funcs) > 0 {
		prev = g.plan.NewOut(prev, &plangraph.FuncEval{Funcs: funcs})
	}
	if len(aggregates) > 0 {
		prev = g.plan.NewOut(prev, &plangraph.AggregateEval{Aggregates: aggregates, GroupBy: groupBy})
	}
	if len(stmt.OrderBy) > 0 {
		prev = g.plan.NewOut(prev, &plangraph.OrderBy{Items: stmt.OrderBy})
	}
	if stmt.Skip != nil {
		n, err := rowCount("SKIP", stmt.Skip)
		if err != nil {
			return prev, err
		}
		prev = g.plan.NewOut(prev, &plangraph.Skip{Count: n})
	}
	if stmt.Limit != nil {
		n, err := rowCount("LIMIT", stmt.Limit)
		if err != nil {
			return prev, err
		}
		prev = g.plan.NewOut(prev, &plangraph.Limit{Count: n})
	}
	return g.plan.NewOut(prev, &plangraph.ProduceResults{Items: stmt.Items}), nil
}

// collectFuncs appends the function invocations of e to funcs or aggregates,
// innermost first. Aggregates can't be nested in other functions, since
// FuncEval runs before AggregateEval.
func collectFuncs(e ast.Expr, inFunc bool, funcs, aggregates *[]*ast.FunctionInvocation) error {
	switch e := e.(type) {
	case *ast.Binary:
		if err := collectFuncs(e.LHS, inFunc, funcs, aggregates); err != nil {
			return err
		}
		return collectFuncs(e.RHS, inFunc, funcs, aggregates)
	case *ast.Unary:
		return collectFuncs(e.Operand, inFunc, funcs, aggregates)
	case *ast.FunctionInvocation:
		if e.Aggregate && inFunc {
			return errorf(e.Loc(), "Aggregate functions can't be nested in other functions yet")
		}
		for _, arg := range e.Args {
			if err := collectFuncs(arg, true, funcs, aggregates); err != nil {
				return err
			}
		}
		if e.Aggregate {
			*aggregates = append(*aggregates, e)
		} else {
			*funcs = append(*funcs, e)
		}
	}
	return nil
}

// rowCount returns the value of a SKIP or LIMIT expression, which must be a
// non-negative integer literal.
func rowCount(clause string, e ast.Expr) (uint64, error) {
	if ast.HasAggregate(e) {
		return 0, errorf(e.Loc(), "Aggregate functions are not allowed in %s", clause)
	}
	lit, ok := e.(*ast.Literal)
	if !ok {
		return 0, errorf(e.Loc(), "%s must be a constant", clause)
	}
	n, ok := lit.Value.(int64)
	if !ok || n < 0 {
		return 0, errorf(e.Loc(), "%s must be a non-negative integer, got %v", clause, lit)
	}
	return uint64(n), nil
}
