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

// Package planner turns an annotated query into a plan graph. Generate walks
// the statements pattern by pattern, binding each variable to a Filter and a
// Var node, and uses the plan's topology to decide where joins, cartesian
// products, and materialize points must go so that every expression can read
// the variables it depends on. Optimize then applies a small set of local
// rewrite rules to the finished plan.
package planner

import (
	"fmt"

	"github.com/ebay/akgraph/query/ast"
	"github.com/ebay/akgraph/query/plangraph"
	log "github.com/sirupsen/logrus"
)

// Error is returned when a query can't be planned, usually because it uses
// a construct that isn't supported.
type Error struct {
	Msg string
	// Loc is where the offending construct starts in the query text. It may be
	// zero.
	Loc ast.Location
}

func (e *Error) Error() string {
	if e.Loc.IsZero() {
		return e.Msg
	}
	return fmt.Sprintf("%v: %s", e.Loc, e.Msg)
}

// FatalError is returned when the planner reaches a state it doesn't
// expect. It indicates a bug in the planner rather than a problem with the
// query.
type FatalError struct {
	Msg string
}

func (e *FatalError) Error() string {
	return "internal planner error: " + e.Msg
}

func errorf(loc ast.Location, format string, args ...interface{}) error {
	return &Error{Msg: fmt.Sprintf(format, args...), Loc: loc}
}

func fatalf(format string, args ...interface{}) error {
	return &FatalError{Msg: fmt.Sprintf(format, args...)}
}

// Generate builds the plan graph for the query. The query must be resolved:
// labels, edge types, and property types in MATCH patterns carry their IDs,
// and every expression is typed.
func Generate(q *ast.Query) (*plangraph.Graph, error) {
	if len(q.Stmts) == 0 {
		return nil, errorf(ast.Location{}, "Query has no statements")
	}
	gen := newGenerator()
	if err := gen.generate(q.Stmts); err != nil {
		return nil, err
	}
	removed := gen.plan.RemoveIsolatedNodes()
	log.WithFields(log.Fields{
		"nodes":   gen.plan.Len(),
		"removed": removed,
	}).Debugf("Generated plan:\n%v", gen.plan)
	return gen.plan, nil
}

// generator holds the state of one call to Generate.
type generator struct {
	plan *plangraph.Graph
	vars *plangraph.Variables
	topo *plangraph.Topology
	// predicates are the WHERE predicates, in the order they were attached.
	predicates []*plangraph.Predicate
	// props are the property constraints from MATCH patterns. They're
	// attached once all the patterns are known.
	props []propConstraint
	// write is the Write node of the current run of write statements, or
	// InvalidNode.
	write plangraph.NodeID
	// writeFetches are the properties fetched for the Write node.
	writeFetches map[propKey]bool
}

func newGenerator() *generator {
	plan := plangraph.New()
	return &generator{
		plan:  plan,
		vars:  plangraph.NewVariables(plan),
		topo:  plangraph.NewTopology(plan),
		write: plangraph.InvalidNode,

		writeFetches: make(map[propKey]bool),
	}
}

func (g *generator) generate(stmts []ast.Stmt) error {
	switch stmt := stmts[0].(type) {
	case *ast.CreateGraphStmt, *ast.LoadGraphStmt, *ast.ListGraphStmt,
		*ast.S3ConnectStmt, *ast.S3TransferStmt:
		if len(stmts) > 1 {
			return errorf(stmts[1].Loc(), "Graph commands must be the only statement of a query")
		}
		return g.command(stmt)
	}

	// Read statements come first. The plan of all the MATCH clauses is
	// finished as a whole, which folds it into a single endpoint.
	current := plangraph.InvalidNode
	i := 0
	for ; i < len(stmts); i++ {
		match, ok := stmts[i].(*ast.MatchStmt)
		if !ok {
			break
		}
		if err := g.match(match); err != nil {
			return err
		}
	}
	if i > 0 {
		var err error
		current, err = g.finishMatch()
		if err != nil {
			return err
		}
	}

	terminated := false
	for ; i < len(stmts); i++ {
		var err error
		switch stmt := stmts[i].(type) {
		case *ast.CreateStmt:
			current, err = g.create(stmt, current)
			terminated = true
		case *ast.SetStmt:
			current, err = g.set(stmt, current)
			terminated = true
		case *ast.DeleteStmt:
			current, err = g.delete(stmt, current)
			terminated = true
		case *ast.CallStmt:
			if current != plangraph.InvalidNode {
				return errorf(stmt.Loc(), "CALL must be the first statement of a query")
			}
			current, err = g.call(stmt)
			terminated = i+1 == len(stmts)
			if terminated {
				// CALL without RETURN returns every yielded column.
				g.plan.NewOut(current, new(plangraph.ProduceResults))
			}
		case *ast.ReturnStmt:
			if i+1 < len(stmts) {
				return errorf(stmts[i+1].Loc(), "RETURN must be the last statement of a query")
			}
			current, err = g.returnStmt(stmt, current)
			terminated = true
		case *ast.MatchStmt:
			return errorf(stmt.Loc(), "MATCH after a write statement is not supported yet")
		case *ast.CreateGraphStmt, *ast.LoadGraphStmt, *ast.ListGraphStmt,
			*ast.S3ConnectStmt, *ast.S3TransferStmt:
			return errorf(stmt.Loc(), "Graph commands must be the only statement of a query")
		default:
			return fatalf("unexpected statement type %T", stmt)
		}
		if err != nil {
			return err
		}
	}
	if !terminated {
		return errorf(stmts[len(stmts)-1].Loc(),
			"Query must end with RETURN, CALL, or a write statement")
	}
	return nil
}

// command plans a graph command, which runs on its own and reports its
// outcome as a result.
func (g *generator) command(stmt ast.Stmt) error {
	var op plangraph.Operator
	switch stmt := stmt.(type) {
	case *ast.CreateGraphStmt:
		op = &plangraph.CreateGraph{Name: stmt.Name}
	case *ast.LoadGraphStmt:
		op = &plangraph.LoadGraph{Name: stmt.Name, Path: stmt.Path}
	case *ast.ListGraphStmt:
		op = new(plangraph.ListGraph)
	case *ast.S3ConnectStmt:
		op = &plangraph.S3Connect{
			AccessID:  stmt.AccessID,
			SecretKey: stmt.SecretKey,
			Region:    stmt.Region,
		}
	case *ast.S3TransferStmt:
		op = &plangraph.S3Transfer{
			Direction: stmt.Direction,
			URL:       stmt.URL,
			LocalDir:  stmt.LocalDir,
		}
	default:
		return fatalf("unexpected command type %T", stmt)
	}
	g.plan.NewOut(g.plan.Add(op), new(plangraph.ProduceResults))
	return nil
}

// call plans a CALL statement.
func (g *generator) call(stmt *ast.CallStmt) (plangraph.NodeID, error) {
	proc := ast.LookupProcedure(stmt.Procedure)
	if proc == nil {
		return plangraph.InvalidNode, errorf(stmt.Loc(), "Unknown procedure %v", stmt.Procedure)
	}
	for _, y := range stmt.Yield {
		if proc.Column(y.Field) < 0 {
			return plangraph.InvalidNode, errorf(stmt.Loc(),
				"Procedure %v has no column %v", proc.Name, y.Field)
		}
	}
	return g.plan.Add(&plangraph.ProcedureEval{Procedure: proc, Yield: stmt.Yield}), nil
}

// declOf returns the variable of a Var node, or nil if the node isn't a Var.
func (g *generator) declOf(id plangraph.NodeID) *ast.VarDecl {
	if id == plangraph.InvalidNode {
		return nil
	}
	if v, ok := g.plan.Op(id).(*plangraph.Var); ok {
		return v.Decl
	}
	return nil
}

func (g *generator) filter(id plangraph.NodeID) *plangraph.Filter {
	return g.plan.Op(id).(*plangraph.Filter)
}
