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

	"github.com/ebay/akgraph/query/ast"
)

// VarDependency is a reference from an expression to a pattern variable.
type VarDependency struct {
	Decl *ast.VarDecl
	// Var is the Var node of the variable.
	Var NodeID
	// Expr is the sub-expression that refers to the variable.
	Expr ast.Expr
}

// Dependencies lists what an expression reads: the pattern variables it
// refers to and the function invocations it contains.
type Dependencies struct {
	Vars  []VarDependency
	Funcs []*ast.FunctionInvocation
}

// Dependencies computes the dependencies of an expression on the variables
// bound in the plan. Path expressions aren't supported.
func (v *Variables) Dependencies(e ast.Expr) (Dependencies, error) {
	var deps Dependencies
	err := deps.add(v, e)
	return deps, err
}

func (deps *Dependencies) add(v *Variables, e ast.Expr) error {
	addVar := func(decl *ast.VarDecl) error {
		varNode := v.VarNode(decl)
		if varNode == InvalidNode {
			return fmt.Errorf("variable %v is not bound by a pattern", decl)
		}
		deps.Vars = append(deps.Vars, VarDependency{Decl: decl, Var: varNode, Expr: e})
		return nil
	}
	switch e := e.(type) {
	case *ast.Literal:
		return nil
	case *ast.Symbol:
		return addVar(e.Decl)
	case *ast.Property:
		return addVar(e.Decl)
	case *ast.EntityTypes:
		return addVar(e.Decl)
	case *ast.Binary:
		if err := deps.add(v, e.LHS); err != nil {
			return err
		}
		return deps.add(v, e.RHS)
	case *ast.Unary:
		return deps.add(v, e.Operand)
	case *ast.FunctionInvocation:
		for _, arg := range e.Args {
			if err := deps.add(v, arg); err != nil {
				return err
			}
		}
		deps.Funcs = append(deps.Funcs, e)
		return nil
	case *ast.PathExpr:
		return fmt.Errorf("path expressions are not supported yet")
	}
	return fmt.Errorf("unexpected expression type %T", e)
}

// Latest returns the dependency whose variable has the highest declaration
// order. Ties go to the earliest dependency. It returns false if there are
// no variable dependencies.
func (deps *Dependencies) Latest(v *Variables) (VarDependency, bool) {
	if len(deps.Vars) == 0 {
		return VarDependency{}, false
	}
	latest := deps.Vars[0]
	order := v.Order(latest.Var)
	for _, dep := range deps.Vars[1:] {
		if o := v.Order(dep.Var); o > order {
			order = o
			latest = dep
		}
	}
	return latest, true
}

// CommonSuccessor returns the first Var node below both 'varNode' and all of
// the dependencies' variables, where the rows carry every variable the
// expression reads. If some dependency doesn't share a successor with
// 'varNode', that dependency is skipped. It returns an error if a common
// successor has no Var node below it.
func (deps *Dependencies) CommonSuccessor(topo *Topology, varNode NodeID) (NodeID, error) {
	for _, dep := range deps.Vars {
		successor := topo.FindCommonSuccessor(varNode, dep.Var)
		if successor == InvalidNode {
			continue
		}
		next := topo.FindNextVar(successor)
		if next == InvalidNode {
			return InvalidNode, fmt.Errorf("no variable below the common successor of %v and %v",
				topo.graph.Op(varNode), dep.Decl)
		}
		varNode = next
	}
	return varNode, nil
}

// Predicate is a boolean expression from a WHERE clause or a pattern's
// property constraints, attached to the Filter node of the variable where
// it's evaluated.
type Predicate struct {
	Expr ast.Expr
	Deps Dependencies
	// Filter is the Filter node that holds the predicate.
	Filter NodeID
}
