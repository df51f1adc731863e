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
	"testing"

	"github.com/ebay/akgraph/graph"
	"github.com/ebay/akgraph/query/ast"
	"github.com/ebay/akgraph/query/plangraph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var agePropType = graph.PropertyType{ID: 2, Name: "age", Kind: graph.ValueInt64}

// labelScanPlan builds ScanNodes -> NodeFilter n:Person -> Var n ->
// ProduceResults.
func labelScanPlan() (*plangraph.Graph, *plangraph.Variables, *ast.VarDecl) {
	plan := plangraph.New()
	vars := plangraph.NewVariables(plan)
	n := new(ast.DeclContext).Declare("n", ast.VarNode)
	scan := plan.Add(new(plangraph.ScanNodes))
	entry := vars.Create(n)
	plan.Connect(scan, entry.Filter)
	plan.Op(entry.Filter).(*plangraph.Filter).AddLabels(graph.NewLabelSet(1), []string{"Person"})
	plan.NewOut(entry.Var, new(plangraph.ProduceResults))
	return plan, vars, n
}

func Test_fuseScanAndLabelFilter(t *testing.T) {
	plan, _, _ := labelScanPlan()
	assert.True(t, fuseScanAndLabelFilter(plan))
	assert.False(t, fuseScanAndLabelFilter(plan))
	assert.True(t, pruneDeadNodes(plan))
	assert.Equal(t, "#4 ScanNodesByLabel Person\n"+
		"\t#2 Var n order=0\n"+
		"\t\t#3 ProduceResults\n", plan.String())
}

func Test_fuseScanAndLabelFilter_skips(t *testing.T) {
	t.Run("predicate", func(t *testing.T) {
		plan, vars, n := labelScanPlan()
		entry, _ := vars.Lookup(n)
		plan.Op(entry.Filter).(*plangraph.Filter).AddPredicate(&plangraph.Predicate{
			Expr:   &ast.Binary{Op: ast.OpEqual, LHS: &ast.Property{Decl: n, PropType: agePropType}, RHS: &ast.Literal{Value: int64(3)}},
			Filter: entry.Filter,
		})
		assert.False(t, fuseScanAndLabelFilter(plan))
	})
	t.Run("no labels", func(t *testing.T) {
		plan := plangraph.New()
		vars := plangraph.NewVariables(plan)
		entry := vars.Create(new(ast.DeclContext).Declare("n", ast.VarNode))
		plan.Connect(plan.Add(new(plangraph.ScanNodes)), entry.Filter)
		assert.False(t, fuseScanAndLabelFilter(plan))
	})
	t.Run("joined filter", func(t *testing.T) {
		plan, vars, n := labelScanPlan()
		entry, _ := vars.Lookup(n)
		plan.Connect(plan.Add(new(plangraph.ScanNodes)), entry.Filter)
		assert.False(t, fuseScanAndLabelFilter(plan))
	})
}

func Test_notNullToGetProperty(t *testing.T) {
	plan, vars, n := labelScanPlan()
	entry, _ := vars.Lookup(n)
	filter := plan.Op(entry.Filter).(*plangraph.Filter)
	other := new(ast.DeclContext).Declare("m", ast.VarNode)
	own := &plangraph.Predicate{
		Expr:   &ast.Unary{Op: ast.OpIsNotNull, Operand: &ast.Property{Decl: n, PropType: agePropType}},
		Filter: entry.Filter,
	}
	foreign := &plangraph.Predicate{
		Expr:   &ast.Unary{Op: ast.OpIsNotNull, Operand: &ast.Property{Decl: other, PropType: agePropType}},
		Filter: entry.Filter,
	}
	filter.AddPredicate(own)
	filter.AddPredicate(foreign)

	assert.True(t, notNullToGetProperty(plan))
	assert.Equal(t, []*plangraph.Predicate{foreign}, filter.Predicates)
	outs := plan.Node(entry.Var).Outputs()
	require.Len(t, outs, 1)
	get, ok := plan.Op(outs[0]).(*plangraph.GetProperty)
	require.True(t, ok)
	assert.Equal(t, n, get.Decl)
	assert.Equal(t, agePropType, get.PropType)
	assert.Equal(t, plangraph.OpProduceResults, plan.Op(plan.Node(outs[0]).Outputs()[0]).Opcode())
	assert.False(t, notNullToGetProperty(plan))
}

func Test_pruneDeadNodes(t *testing.T) {
	plan, vars, n := labelScanPlan()
	entry, _ := vars.Lookup(n)
	dead := plan.NewOut(entry.Var, &plangraph.GetPropertyWithNull{Decl: n, PropType: agePropType})
	deader := plan.NewOut(dead, new(plangraph.Materialize))
	before := plan.Len()
	assert.True(t, pruneDeadNodes(plan))
	assert.Equal(t, before-2, plan.Len())
	assert.False(t, plan.Contains(dead))
	assert.False(t, plan.Contains(deader))
	assert.False(t, pruneDeadNodes(plan))
}

func Test_Optimize_idempotent(t *testing.T) {
	plan, _, _ := labelScanPlan()
	Optimize(plan)
	assert.Equal(t, 3, plan.Len())
	fingerprint := plan.Fingerprint()
	Optimize(plan)
	assert.Equal(t, fingerprint, plan.Fingerprint())
}

func Test_Rules_named(t *testing.T) {
	names := make(map[string]bool)
	for _, rule := range Rules {
		assert.NotEmpty(t, rule.Name)
		assert.NotNil(t, rule.Apply)
		assert.False(t, names[rule.Name], "duplicate rule %v", rule.Name)
		names[rule.Name] = true
	}
}
